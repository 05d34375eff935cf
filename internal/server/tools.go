package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/appmixer-mcp/internal/events"
	"github.com/standardbeagle/appmixer-mcp/internal/registry"
)

const (
	methodListTools = "tools/list"
	methodCallTool  = "tools/call"
)

// registerTools registers the static tools with the MCP server. Gateway
// tools are never registered: tools/list and tools/call are answered by
// toolsMiddleware straight from the registry.
func (s *Server) registerTools() {
	for _, d := range registry.StaticDescriptors() {
		s.mcpServer.AddTool(toolFromDescriptor(d), s.wrapStaticTool)
	}
}

func (s *Server) wrapStaticTool(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.callTool(ctx, req.Params)
}

// toolsMiddleware serves tools/list with a freshly fetched tool set and
// routes every tools/call through the registry.
func (s *Server) toolsMiddleware(next mcp.MethodHandler) mcp.MethodHandler {
	return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
		switch method {
		case methodListTools:
			return s.listTools(ctx), nil
		case methodCallTool:
			if r, ok := req.(*mcp.CallToolRequest); ok {
				res, err := s.callTool(ctx, r.Params)
				if err != nil {
					return nil, err
				}
				return res, nil
			}
		}
		return next(ctx, method, req)
	}
}

func (s *Server) listTools(ctx context.Context) *mcp.ListToolsResult {
	descs := s.registry.ListTools(ctx)
	tools := make([]*mcp.Tool, len(descs))
	for i, d := range descs {
		tools[i] = toolFromDescriptor(d)
	}
	return &mcp.ListToolsResult{Tools: tools}
}

func (s *Server) callTool(ctx context.Context, params *mcp.CallToolParamsRaw) (*mcp.CallToolResult, error) {
	if params == nil {
		return nil, errors.New("missing tool call parameters")
	}

	var args map[string]any
	if len(params.Arguments) > 0 {
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			return errorResult(fmt.Errorf("invalid arguments for %s: %w", params.Name, err)), nil
		}
	}

	result, err := s.registry.Invoke(ctx, params.Name, args)
	if err != nil {
		var nf *registry.NotFoundError
		if errors.As(err, &nf) {
			return nil, fmt.Errorf("tool %s not found", params.Name)
		}
		return errorResult(err), nil
	}
	return toCallToolResult(result), nil
}

// handleEvent is the monitor callback.
func (s *Server) handleEvent(ev events.Event) {
	if !ev.ChangesTools() {
		return
	}
	s.logger.Info("gateway set changed", "event", ev.Type)
	s.NotifyToolsChanged()
}

// NotifyToolsChanged sends notifications/tools/list_changed to every
// connected session. The SDK has no direct call for this, so one static tool
// is re-registered, which schedules the notification without changing the
// tool set.
func (s *Server) NotifyToolsChanged() {
	d := registry.StaticDescriptors()[0]
	s.mcpServer.AddTool(toolFromDescriptor(d), s.wrapStaticTool)
}

func toolFromDescriptor(d registry.Descriptor) *mcp.Tool {
	t := &mcp.Tool{
		Name:        d.Name,
		Title:       d.Title,
		Description: d.Description,
		InputSchema: d.InputSchema,
	}
	if d.Title != "" {
		t.Annotations = &mcp.ToolAnnotations{Title: d.Title}
	}
	return t
}

// errorResult creates an error CallToolResult.
func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}

func toCallToolResult(r *registry.Result) *mcp.CallToolResult {
	content := make([]mcp.Content, len(r.Content))
	for i, c := range r.Content {
		content[i] = &mcp.TextContent{Text: c.Text}
	}
	return &mcp.CallToolResult{Content: content, IsError: r.IsError}
}
