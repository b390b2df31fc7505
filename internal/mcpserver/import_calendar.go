package mcpserver

import (
	"bytes"
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

type importResult struct {
	Imported int    `json:"imported"`
	Source   string `json:"source"`
}

func (s *Server) importCalendar(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	data, source, err := s.fetch.Load(ctx, raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	n, err := s.svc.Import(ctx, bytes.NewReader(data))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("import failed: %v", err)), nil
	}
	return jsonResult(importResult{Imported: n, Source: source}), nil
}
