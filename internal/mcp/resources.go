package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

func (h *handlers) dashboard(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}

	d, err := h.svc.Stats.Dashboard(ctx, uid)
	if err != nil {
		return nil, err
	}

	active, err := h.svc.Workouts.Active(ctx, uid)
	if err != nil {
		h.log.Warn("dashboard: active session lookup failed", "error", err)
	}

	weightStats, err := h.svc.Weight.Statistics(ctx, uid)
	if err != nil {
		h.log.Warn("dashboard: weight statistics failed", "error", err)
	}

	summary := map[string]any{
		"stats":          d,
		"active_session": active,
		"weight":         weightStats,
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
