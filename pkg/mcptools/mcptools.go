// Package mcptools exposes the record store as MCP tools.
//
// Each tool follows the same pattern:
//   - a struct with its dependencies injected via constructor
//   - Definition() returns the mcp.Tool schema
//   - Handle() processes the request and returns a result
//
// Tool failures are reported as error results, never as Go errors, so the
// calling agent sees the message.
package mcptools

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/matzehuels/dagplanner/pkg/push"
	rserver "github.com/matzehuels/dagplanner/pkg/server"
)

// Broadcaster forwards saved layers to live sessions.
type Broadcaster interface {
	Broadcast(push.Update)
}

// NewServer creates an MCP server with all dagplanner tools registered.
// hub may be nil.
func NewServer(version string, resolve rserver.Resolver, hub Broadcaster) *server.MCPServer {
	s := server.NewMCPServer(
		"dagplanner",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	for _, t := range LayerTools(resolve, hub) {
		s.AddTool(t.Definition(), t.Handle)
	}
	data := NewDataTool(resolve)
	s.AddTool(data.Definition(), data.Handle)
	export := NewExportTool(resolve)
	s.AddTool(export.Definition(), export.Handle)
	return s
}

const instructions = `dagplanner keeps a four-layer model of a software project:
function (what), logic (how), code (where) and order (when).

Build the layers top-down with build_function_layer_dag, build_logic_layer_dag,
build_code_layer_dag and build_order_layer_dag, passing each layer as a Mermaid
flowchart ("A[Label] --> B[Label]" lines). Use get_dag_data to read back what
was saved and export_dag for a single composite document.`

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError("encode result: " + err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
