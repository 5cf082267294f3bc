// Package mcpadapter exposes the outfit relay as Model Context Protocol tools.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/outfitlab/outfit-relay/internal/core/domain"
	"github.com/outfitlab/outfit-relay/internal/core/ports"
)

const (
	ToolRecommendOutfit = "recommend_outfit"
	ToolListProducts    = "list_products"
)

type Server struct {
	recommender ports.OutfitRecommender
	catalog     ports.CatalogReader
}

type errorPayload struct {
	Error string `json:"error"`
	Raw   any    `json:"raw,omitempty"`
}

func New(recommender ports.OutfitRecommender, catalog ports.CatalogReader) *Server {
	return &Server{recommender: recommender, catalog: catalog}
}

// MCPServer registers the relay tools on a fresh protocol server.
func (s *Server) MCPServer(version string) *server.MCPServer {
	srv := server.NewMCPServer("outfit-relay", version, server.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool(ToolRecommendOutfit,
		mcp.WithDescription("Build an outfit around a catalog product. Returns the base product, suggested products and raw model diagnostics."),
		mcp.WithString("base_product_id", mcp.Required(), mcp.Description("Catalog id of the product the outfit is built around.")),
		mcp.WithString("occasion", mcp.Description("Occasion preference, defaults to any.")),
		mcp.WithString("style", mcp.Description("Style preference, defaults to any.")),
		mcp.WithBoolean("mock", mcp.Description("Skip the model and return every other catalog product.")),
	), s.recommendOutfit)

	srv.AddTool(mcp.NewTool(ToolListProducts,
		mcp.WithDescription("List the product catalog."),
	), s.listProducts)

	return srv
}

func (s *Server) ServeStdio(version string) error {
	return server.ServeStdio(s.MCPServer(version))
}

func (s *Server) recommendOutfit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	baseID, err := req.RequireString("base_product_id")
	if err != nil {
		return errorResult(domain.WrapError(domain.ErrInvalidRequest, ToolRecommendOutfit, err)), nil
	}

	outfit, err := s.recommender.Recommend(ctx, domain.OutfitRequest{
		BaseProductID: baseID,
		Preferences: domain.Preferences{
			Occasion: req.GetString("occasion", ""),
			Style:    req.GetString("style", ""),
		},
		Mock:      req.GetBool("mock", false),
		RequestID: "mcp-" + uuid.NewString(),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(outfit)
}

func (s *Server) listProducts(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	catalog, err := s.catalog.Products(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	if catalog == nil {
		catalog = domain.Catalog{}
	}
	return jsonResult(catalog)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}

// errorResult reports domain failures as tool errors so the calling model can read them.
func errorResult(err error) *mcp.CallToolResult {
	body := errorPayload{Error: err.Error()}
	if raw, ok := domain.RawOf(err); ok {
		if rm, isRaw := raw.(json.RawMessage); !isRaw || len(rm) > 0 {
			body.Raw = raw
		}
	}
	payload, marshalErr := json.Marshal(body)
	if marshalErr != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(payload))},
		IsError: true,
	}
}
