package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/outfitlab/outfit-relay/internal/core/domain"
	"github.com/outfitlab/outfit-relay/internal/infrastructure/resilience"
)

const DefaultSubject = "outfits.recommended"

// Bus publishes and consumes outfit recommendation events on a single subject.
type Bus struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

type eventMessage struct {
	RequestID     string    `json:"request_id"`
	BaseProductID string    `json:"base_product_id"`
	SuggestionIDs []string  `json:"suggestion_ids"`
	Mock          bool      `json:"mock"`
	Model         string    `json:"model,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func Connect(url, subject string, options Options) (*Bus, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("outfit-relay"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Bus{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
	}, nil
}

func (b *Bus) Subject() string {
	return b.subject
}

func (b *Bus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

func (b *Bus) PublishOutfitRecommended(ctx context.Context, event domain.OutfitEvent) error {
	payload, err := EncodeEvent(event)
	if err != nil {
		return err
	}

	call := func(_ context.Context) error {
		if err := b.conn.Publish(b.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if b.executor != nil {
		err = b.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// SubscribeOutfitRecommended blocks until ctx is done, then drains the subscription.
func (b *Bus) SubscribeOutfitRecommended(ctx context.Context, queue string, handler func(context.Context, domain.OutfitEvent) error) error {
	sub, err := b.conn.QueueSubscribe(b.subject, queue, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		event, err := DecodeEvent(msg.Data)
		if err != nil {
			slog.Warn("outfit_event_decode_failed", "subject", msg.Subject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, event); err != nil {
			slog.Error("outfit_event_handler_failed", "request_id", event.RequestID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := b.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func EncodeEvent(event domain.OutfitEvent) ([]byte, error) {
	ids := event.SuggestionIDs
	if ids == nil {
		ids = []string{}
	}
	payload, err := json.Marshal(eventMessage{
		RequestID:     event.RequestID,
		BaseProductID: event.BaseProductID,
		SuggestionIDs: ids,
		Mock:          event.Mock,
		Model:         event.Model,
		CreatedAt:     event.CreatedAt.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode outfit event: %w", err)
	}
	return payload, nil
}

func DecodeEvent(data []byte) (domain.OutfitEvent, error) {
	var msg eventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return domain.OutfitEvent{}, fmt.Errorf("decode outfit event: %w", err)
	}
	if msg.BaseProductID == "" {
		return domain.OutfitEvent{}, errors.New("decode outfit event: base_product_id is empty")
	}
	return domain.OutfitEvent{
		RequestID:     msg.RequestID,
		BaseProductID: msg.BaseProductID,
		SuggestionIDs: msg.SuggestionIDs,
		Mock:          msg.Mock,
		Model:         msg.Model,
		CreatedAt:     msg.CreatedAt,
	}, nil
}
