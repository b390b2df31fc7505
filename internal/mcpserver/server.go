// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes agenda tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/agenda/internal/apptservice"
	"github.com/starford/agenda/internal/calendar"
	"github.com/starford/agenda/internal/feed"
	"github.com/starford/agenda/internal/models"
)

const gridResourceURI = "agenda://grid-config"

// Server wraps the MCP server with agenda tools.
type Server struct {
	mcp   *server.MCPServer
	svc   *apptservice.Service
	fetch *feed.Fetcher
}

// New creates a new MCP server with all agenda tools registered.
func New(svc *apptservice.Service) *Server {
	s := &Server{svc: svc, fetch: feed.NewFetcher(feed.BlockedAddr)}

	s.mcp = server.NewMCPServer(
		"Agenda",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_appointments",
		mcp.WithDescription("List the appointments visible in a daily, weekly or monthly window."),
		mcp.WithString("view", mcp.Description("daily, weekly or monthly (default daily)")),
		mcp.WithString("date", mcp.Description("Anchor date YYYY-MM-DD (default today)")),
		mcp.WithString("locale", mcp.Description("Label locale, e.g. pt-BR or en-US")),
	), s.listAppointments)

	s.mcp.AddTool(mcp.NewTool("search_appointments",
		mcp.WithDescription("Full-text search through appointment titles, patient names and notes."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchAppointments)

	s.mcp.AddTool(mcp.NewTool("day_layout",
		mcp.WithDescription("Column layout of one day: overlapping appointments are split into side-by-side columns."),
		mcp.WithString("date", mcp.Description("Day YYYY-MM-DD (default today)")),
	), s.dayLayout)

	s.mcp.AddTool(mcp.NewTool("create_appointment",
		mcp.WithDescription("Create an appointment. Read the grid contract first via the "+
			"grid_config tool or the agenda://grid-config resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Appointment title")),
		mcp.WithString("patient_name", mcp.Required(), mcp.Description("Patient name")),
		mcp.WithString("start", mcp.Required(), mcp.Description("Start time (RFC 3339 or YYYY-MM-DDTHH:MM)")),
		mcp.WithString("end", mcp.Required(), mcp.Description("End time, after start")),
		mcp.WithString("notes", mcp.Description("Free-form notes")),
		mcp.WithString("color", mcp.Description("Colour token #rrggbb (default #3b82f6)")),
	), s.createAppointment)

	s.mcp.AddTool(mcp.NewTool("drop_appointment",
		mcp.WithDescription("Move an appointment onto a grid cell, keeping its duration."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Appointment id")),
		mcp.WithString("view", mcp.Required(), mcp.Description("daily or weekly")),
		mcp.WithString("target", mcp.Required(), mcp.Description("Drop target id: H:M (daily) or D-H-M (weekly)")),
		mcp.WithString("date", mcp.Description("Anchor date YYYY-MM-DD of the grid (default today)")),
	), s.dropAppointment)

	s.mcp.AddTool(mcp.NewTool("delete_appointment",
		mcp.WithDescription("Delete an appointment by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Appointment id")),
	), s.deleteAppointment)

	s.mcp.AddTool(mcp.NewTool("grid_config",
		mcp.WithDescription("Returns the current grid tunables and the time/drop-target format contract."),
	), s.gridConfig)

	s.mcp.AddTool(mcp.NewTool("import_calendar",
		mcp.WithDescription("Import appointments from an iCalendar feed (http, https or webcal URL) or a base64 data: URI."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s)/webcal URL or data:text/calendar;base64,... URI")),
	), s.importCalendar)

	// Resource: grid contract.
	s.mcp.AddResource(
		mcp.NewResource(gridResourceURI, "Grid Contract",
			mcp.WithResourceDescription("Time formats, drop-target ids and current grid tunables."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readGridResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

// parseTime accepts RFC 3339 or a local YYYY-MM-DDTHH:MM wall-clock time.
func (s *Server) parseTime(v string) (time.Time, error) {
	loc := s.svc.Settings().Location
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.In(loc), nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04", v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q", v)
	}
	return t, nil
}

func (s *Server) listAppointments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view, err := models.ParseViewType(req.GetString("view", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	date, err := s.svc.ParseDate(req.GetString("date", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var loc calendar.Locale
	if tag := req.GetString("locale", ""); tag != "" {
		if loc, err = calendar.LookupLocale(tag); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	return jsonResult(s.svc.List(ctx, view, date, loc)), nil
}

func (s *Server) searchAppointments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) dayLayout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := s.svc.ParseDate(req.GetString("date", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.svc.DayLayout(ctx, date)), nil
}

func (s *Server) createAppointment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	patient, err := req.RequireString("patient_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawStart, err := req.RequireString("start")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawEnd, err := req.RequireString("end")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	start, err := s.parseTime(rawStart)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	end, err := s.parseTime(rawEnd)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	a, err := s.svc.Create(ctx, apptservice.Input{
		Title:       title,
		PatientName: patient,
		Start:       start,
		End:         end,
		Notes:       req.GetString("notes", ""),
		Color:       req.GetString("color", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(a), nil
}

func (s *Server) dropAppointment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	view, err := req.RequireString("view")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target, err := req.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	a, err := s.svc.Drop(ctx, id, apptservice.DropInput{
		View:   view,
		Date:   req.GetString("date", ""),
		Target: target,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(a), nil
}

func (s *Server) deleteAppointment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Delete(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

type gridInfo struct {
	Settings  apptservice.Settings `json:"settings"`
	Locale    string               `json:"locale"`
	Timezone  string               `json:"timezone"`
	WeekStart string               `json:"week_start"`
}

func (s *Server) currentGrid() gridInfo {
	st := s.svc.Settings()
	return gridInfo{
		Settings:  st,
		Locale:    st.Locale.Tag().String(),
		Timezone:  st.Location.String(),
		WeekStart: st.WeekStart.String(),
	}
}

func (s *Server) gridConfig(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(s.currentGrid(), "", "  ")
	return mcp.NewToolResultText(GridContract + "\n## Current\n\n```json\n" + string(out) + "\n```\n"), nil
}

func (s *Server) readGridResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	out, _ := json.MarshalIndent(s.currentGrid(), "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      gridResourceURI,
			MIMEType: "text/markdown",
			Text:     GridContract + "\n## Current\n\n```json\n" + string(out) + "\n```\n",
		},
	}, nil
}
