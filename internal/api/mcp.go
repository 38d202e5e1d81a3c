package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ShalihaZarook05/Flat-price-prediction/internal/history"
)

// MCPDeps carries the collaborators for the MCP surface.
type MCPDeps struct {
	History   *history.Store
	Predictor PricePredictor
}

// NewMCPServer builds an MCP server exposing the prediction history as tools
// and the recent records as a resource, for use over stdio.
func NewMCPServer(deps MCPDeps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"flatprice",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("Predict flat sale prices from property attributes and manage the locally stored prediction history."),
		server.WithRecovery(),
	)

	s.AddTool(mcp.NewTool("predict_price",
		mcp.WithDescription("Request a price prediction for a flat and record it in the local history. Attributes are passed to the model as-is."),
		mcp.WithString("attributes",
			mcp.Description(`Property attributes as a JSON object, e.g. {"area": 54, "rooms": 2, "floor": 3}`),
			mcp.Required(),
		),
	), deps.handlePredictTool)

	s.AddTool(mcp.NewTool("list_history",
		mcp.WithDescription("List stored prediction records, newest first."),
		mcp.WithString("filter",
			mcp.Description(`"all" or "favorites"`),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of records to return. 0 means no limit."),
		),
	), deps.handleListTool)

	s.AddTool(mcp.NewTool("toggle_favorite",
		mcp.WithDescription("Flip the favorite flag on a prediction record. Unknown ids are ignored."),
		mcp.WithString("id",
			mcp.Description("Record id as returned by list_history"),
			mcp.Required(),
		),
	), deps.handleToggleTool)

	s.AddTool(mcp.NewTool("remove_prediction",
		mcp.WithDescription("Delete a prediction record from the history. Unknown ids are ignored."),
		mcp.WithString("id",
			mcp.Description("Record id as returned by list_history"),
			mcp.Required(),
		),
	), deps.handleRemoveTool)

	s.AddTool(mcp.NewTool("clear_history",
		mcp.WithDescription("Delete every stored prediction record."),
	), deps.handleClearTool)

	s.AddResource(mcp.NewResource(
		"history://recent",
		"Recent predictions",
		mcp.WithResourceDescription("The stored prediction history, newest first, as a JSON array."),
		mcp.WithMIMEType("application/json"),
	), deps.handleRecentResource)

	return s
}

func (d MCPDeps) handlePredictTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("attributes")
	if err != nil {
		return mcpError(err.Error()), nil
	}
	var input map[string]any
	if err := json.Unmarshal([]byte(raw), &input); err != nil {
		return mcpError(fmt.Sprintf("attributes must be a JSON object: %v", err)), nil
	}

	result, err := d.Predictor.Predict(ctx, input)
	if err != nil {
		return mcpError(fmt.Sprintf("prediction failed: %v", err)), nil
	}
	rec := d.History.AddPrediction(input, result.PredictedPrice)

	out, err := json.Marshal(map[string]any{
		"id":              rec.ID,
		"predicted_price": result.PredictedPrice,
	})
	if err != nil {
		return mcpError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcpText(string(out)), nil
}

func (d MCPDeps) handleListTool(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := req.GetString("filter", "all")
	limit := req.GetInt("limit", 0)

	var records []history.Record
	switch filter {
	case "all":
		records = d.History.Items()
	case "favorites":
		records = d.History.Favorites()
	default:
		return mcpError(fmt.Sprintf("unknown filter %q, want \"all\" or \"favorites\"", filter)), nil
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	out, err := json.Marshal(toRecordList(records))
	if err != nil {
		return mcpError(fmt.Sprintf("encoding records: %v", err)), nil
	}
	return mcpText(string(out)), nil
}

func (d MCPDeps) handleToggleTool(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcpError(err.Error()), nil
	}
	d.History.ToggleFavorite(id)
	return mcpText(fmt.Sprintf("toggled favorite on %s", id)), nil
}

func (d MCPDeps) handleRemoveTool(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcpError(err.Error()), nil
	}
	d.History.Remove(id)
	return mcpText(fmt.Sprintf("removed %s", id)), nil
}

func (d MCPDeps) handleClearTool(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d.History.ClearAll()
	return mcpText("history cleared"), nil
}

func (d MCPDeps) handleRecentResource(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	out, err := json.Marshal(toRecordList(d.History.Items()))
	if err != nil {
		return nil, fmt.Errorf("encoding records: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(out),
		},
	}, nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
	}
}

func mcpError(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: true,
	}
}
