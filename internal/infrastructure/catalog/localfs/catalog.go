package localfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/outfitlab/outfit-relay/internal/core/domain"
)

const maxRemoteCatalogBytes = 8 << 20

type Options struct {
	// Cache keeps the first successful read until Invalidate is called.
	Cache      bool
	HTTPClient *http.Client
}

// Catalog reads the product document from a local path or an http(s) URL.
type Catalog struct {
	source     string
	cache      bool
	httpClient *http.Client

	mu     sync.RWMutex
	cached domain.Catalog
}

func New(source string, opts Options) *Catalog {
	if source == "" {
		source = "./web/products.json"
	}
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Catalog{
		source:     source,
		cache:      opts.Cache,
		httpClient: client,
	}
}

func (c *Catalog) Source() string {
	return c.source
}

func (c *Catalog) Load(ctx context.Context) (domain.Catalog, error) {
	if c.cache {
		c.mu.RLock()
		cached := c.cached
		c.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}
	}

	data, err := c.read(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCatalogUnavailable, "read catalog", err)
	}
	catalog, err := Decode(c.source, data)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCatalogMalformed, "decode catalog", err)
	}

	if c.cache {
		c.mu.Lock()
		c.cached = catalog
		c.mu.Unlock()
	}
	return catalog, nil
}

func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}

func (c *Catalog) read(ctx context.Context) ([]byte, error) {
	if isRemote(c.source) {
		return c.fetch(ctx)
	}
	data, err := os.ReadFile(c.source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("catalog file %s does not exist", c.source)
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

func (c *Catalog) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.source, nil)
	if err != nil {
		return nil, fmt.Errorf("create catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/yaml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			return nil, fmt.Errorf("catalog status: %s", resp.Status)
		}
		return nil, fmt.Errorf("catalog status: %s: %s", resp.Status, msg)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteCatalogBytes))
	if err != nil {
		return nil, fmt.Errorf("read catalog body: %w", err)
	}
	return data, nil
}

// Decode parses a catalog document; YAML is chosen by the .yaml/.yml extension, JSON otherwise.
func Decode(source string, data []byte) (domain.Catalog, error) {
	var catalog domain.Catalog
	switch documentExt(source) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &catalog); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &catalog); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	}
	if catalog == nil {
		return nil, errors.New("catalog document is empty")
	}
	return catalog, nil
}

func isRemote(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func documentExt(source string) string {
	if isRemote(source) {
		if u, err := url.Parse(source); err == nil {
			return strings.ToLower(path.Ext(u.Path))
		}
	}
	return strings.ToLower(path.Ext(source))
}
