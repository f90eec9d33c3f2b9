// Package mcp exposes the workflow engine to agent tooling over the Model
// Context Protocol.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stagecoach-io/stagecoach"
	"github.com/stagecoach-io/stagecoach/pkg/domain"
	"github.com/stagecoach-io/stagecoach/pkg/registry"
)

// Engine is the slice of the Transition Engine exposed as tools.
type Engine interface {
	CreateItem(ctx context.Context, spec stagecoach.NewItem) (*domain.WorkItem, error)
	GetItem(ctx context.Context, id string) (*domain.WorkItem, error)
	RequestTransition(ctx context.Context, itemID, targetStatus, actor string) (*domain.WorkItem, error)
	RecordSignoff(ctx context.Context, itemID, stageID, role, approver string) (*domain.WorkItem, error)
	SetCriterion(ctx context.Context, itemID, criterion string, satisfied bool) (*domain.WorkItem, error)
}

// EventSink receives emitted external events.
type EventSink interface {
	HandleEvent(ctx context.Context, event domain.ExternalEvent)
}

// Server wraps the engine and exposes it as an MCP server.
type Server struct {
	engine    Engine
	registry  *registry.Registry
	events    EventSink
	mcpServer *server.MCPServer
}

// NewServer creates an MCP server over the engine. events may be nil; the
// emit_event tool then reports that ingestion is unavailable.
func NewServer(engine Engine, reg *registry.Registry, events EventSink) *Server {
	s := &Server{
		engine:    engine,
		registry:  reg,
		events:    events,
		mcpServer: server.NewMCPServer("stagecoach-mcp", strings.TrimSpace(stagecoach.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	sseServer := server.NewSSEServer(s.mcpServer,
		server.WithBaseURL(fmt.Sprintf("http://localhost:%d", port)))

	httpServer := &http.Server{Addr: addr, Handler: sseServer}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("create_item",
		mcp.WithDescription("Create a work item on a team's active workflow configuration."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item ID")),
		mcp.WithString("team", mcp.Required(), mcp.Description("Team ID")),
		mcp.WithString("complexity", mcp.Description("Complexity level ID (optional)")),
		mcp.WithNumber("weight", mcp.Description("Complexity weight, used when no level is given")),
		mcp.WithString("assignee", mcp.Description("Initial assignee (optional)")),
	), s.handleCreateItem)

	s.mcpServer.AddTool(mcp.NewTool("get_item",
		mcp.WithDescription("Fetch a work item: status, history, signoffs and criteria."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item ID")),
	), s.handleGetItem)

	s.mcpServer.AddTool(mcp.NewTool("request_transition",
		mcp.WithDescription("Move an item to a target status. Fails if the edge is illegal or the departing stage's gates are unsatisfied."),
		mcp.WithString("item", mcp.Required(), mcp.Description("Item ID")),
		mcp.WithString("to", mcp.Required(), mcp.Description("Target status ID")),
		mcp.WithString("actor", mcp.Description("Who requests the move")),
	), s.handleTransition)

	s.mcpServer.AddTool(mcp.NewTool("record_signoff",
		mcp.WithDescription("Record an approval signoff for a role on a stage. Recording the same role twice is a no-op."),
		mcp.WithString("item", mcp.Required(), mcp.Description("Item ID")),
		mcp.WithString("stage", mcp.Required(), mcp.Description("Stage ID")),
		mcp.WithString("role", mcp.Required(), mcp.Description("Approving role")),
		mcp.WithString("approver", mcp.Description("Who signs off")),
	), s.handleSignoff)

	s.mcpServer.AddTool(mcp.NewTool("set_criterion",
		mcp.WithDescription("Record an externally evaluated exit-criterion result on an item."),
		mcp.WithString("item", mcp.Required(), mcp.Description("Item ID")),
		mcp.WithString("criterion", mcp.Required(), mcp.Description("Criterion name")),
		mcp.WithBoolean("satisfied", mcp.Required(), mcp.Description("Whether the criterion holds")),
	), s.handleSetCriterion)

	s.mcpServer.AddTool(mcp.NewTool("emit_event",
		mcp.WithDescription("Feed an external event (alert_fired, pr_merged, ...) into the automation rules."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Event type")),
		mcp.WithString("item", mcp.Description("Item the event concerns (optional)")),
		mcp.WithString("team", mcp.Description("Team the event concerns (optional)")),
		mcp.WithString("payload", mcp.Description("JSON object with event data (optional)")),
	), s.handleEmitEvent)

	s.mcpServer.AddTool(mcp.NewTool("inspect_config",
		mcp.WithDescription("Get a team's active workflow configuration: stages, statuses and legal transitions."),
		mcp.WithString("team", mcp.Required(), mcp.Description("Team ID")),
	), s.handleInspectConfig)
}

func (s *Server) handleCreateItem(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	spec := stagecoach.NewItem{
		ID:         request.GetString("id", ""),
		Team:       request.GetString("team", ""),
		Complexity: request.GetString("complexity", ""),
		Weight:     request.GetInt("weight", 0),
		Assignee:   request.GetString("assignee", ""),
	}
	item, err := s.engine.CreateItem(ctx, spec)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("create failed: %v", err)), nil
	}
	return itemResult(item)
}

func (s *Server) handleGetItem(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	item, err := s.engine.GetItem(ctx, request.GetString("id", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err)), nil
	}
	return itemResult(item)
}

func (s *Server) handleTransition(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	item, err := s.engine.RequestTransition(ctx,
		request.GetString("item", ""),
		request.GetString("to", ""),
		request.GetString("actor", "mcp"))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("transition rejected: %v", err)), nil
	}
	return itemResult(item)
}

func (s *Server) handleSignoff(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	item, err := s.engine.RecordSignoff(ctx,
		request.GetString("item", ""),
		request.GetString("stage", ""),
		request.GetString("role", ""),
		request.GetString("approver", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("signoff failed: %v", err)), nil
	}
	return itemResult(item)
}

func (s *Server) handleSetCriterion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	item, err := s.engine.SetCriterion(ctx,
		request.GetString("item", ""),
		request.GetString("criterion", ""),
		request.GetBool("satisfied", false))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("criterion update failed: %v", err)), nil
	}
	return itemResult(item)
}

func (s *Server) handleEmitEvent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.events == nil {
		return mcp.NewToolResultError("event ingestion is not configured"), nil
	}

	event := domain.ExternalEvent{
		Type: request.GetString("type", ""),
		Item: request.GetString("item", ""),
		Team: request.GetString("team", ""),
		At:   time.Now().UTC(),
	}
	if raw := request.GetString("payload", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &event.Payload); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid payload JSON: %v", err)), nil
		}
	}

	s.events.HandleEvent(ctx, event)
	return mcp.NewToolResultText(fmt.Sprintf("event %q accepted", event.Type)), nil
}

func (s *Server) handleInspectConfig(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	team := request.GetString("team", "")
	cfg, ok := s.registry.Active(team)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown team %q", team)), nil
	}
	jsonBytes, _ := json.Marshal(cfg)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func itemResult(item *domain.WorkItem) (*mcp.CallToolResult, error) {
	jsonBytes, _ := json.Marshal(item)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("stagecoach://teams", "Configured Teams",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, _ := json.Marshal(s.registry.Teams())
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "stagecoach://teams",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
