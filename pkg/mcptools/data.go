package mcptools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/matzehuels/dagplanner/pkg/dag"
	errs "github.com/matzehuels/dagplanner/pkg/errors"
	"github.com/matzehuels/dagplanner/pkg/records"
	rserver "github.com/matzehuels/dagplanner/pkg/server"
	"github.com/matzehuels/dagplanner/pkg/store"
)

// DataTool handles the get_dag_data MCP tool.
type DataTool struct {
	resolve rserver.Resolver
}

// NewDataTool creates a DataTool.
func NewDataTool(resolve rserver.Resolver) *DataTool {
	return &DataTool{resolve: resolve}
}

// Definition returns the MCP tool definition for get_dag_data.
func (t *DataTool) Definition() mcp.Tool {
	return mcp.NewTool("get_dag_data",
		mcp.WithDescription("List the saved DAG records of a project, grouped by layer, newest first."),
		mcp.WithString("project_path",
			mcp.Description("Project root directory; empty means the server default"),
		),
	)
}

// Handle processes the get_dag_data tool call.
func (t *DataTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectPath := req.GetString("project_path", "")
	st, dir, err := t.resolve(projectPath)
	if err != nil {
		return mcp.NewToolResultError(errs.UserMessage(err)), nil
	}
	all, err := st.ListAll(ctx)
	if err != nil {
		return mcp.NewToolResultError("list records: " + err.Error()), nil
	}
	return jsonResult(records.ToWire(all, projectPath, dir, time.Now()))
}

// ExportTool handles the export_dag MCP tool.
type ExportTool struct {
	resolve rserver.Resolver
}

// NewExportTool creates an ExportTool.
func NewExportTool(resolve rserver.Resolver) *ExportTool {
	return &ExportTool{resolve: resolve}
}

// Definition returns the MCP tool definition for export_dag.
func (t *ExportTool) Definition() mcp.Tool {
	return mcp.NewTool("export_dag",
		mcp.WithDescription("Export the latest record of every layer as one document."),
		mcp.WithString("project_path",
			mcp.Description("Project root directory; empty means the server default"),
		),
		mcp.WithString("format",
			mcp.Description("Output format"),
			mcp.Enum("mermaid", "json"),
		),
		mcp.WithString("layer",
			mcp.Description("Export only this layer; its Mermaid form keeps node labels"),
			mcp.Enum("function", "logic", "code", "order"),
		),
	)
}

// Handle loads the newest record of each layer into a fresh session and
// exports it.
func (t *ExportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := store.ParseFormat(req.GetString("format", "mermaid"))
	if err != nil {
		return mcp.NewToolResultError(errs.UserMessage(err)), nil
	}
	var only dag.Layer
	if name := req.GetString("layer", ""); name != "" {
		if only, err = dag.ParseLayer(name); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	st, _, err := t.resolve(req.GetString("project_path", ""))
	if err != nil {
		return mcp.NewToolResultError(errs.UserMessage(err)), nil
	}
	all, err := st.ListAll(ctx)
	if err != nil {
		return mcp.NewToolResultError("list records: " + err.Error()), nil
	}

	session := store.New()
	for _, l := range dag.Layers() {
		recs := all[l]
		if len(recs) == 0 {
			continue
		}
		latest := recs[0]
		in := store.MermaidInput{
			Text:       latest.InputData.MermaidDag,
			SourceName: latest.FileName,
			Timestamp:  latest.Timestamp,
		}
		if err := session.LoadLayer(l, in); err != nil {
			return mcp.NewToolResultError(errs.UserMessage(err)), nil
		}
	}
	var out []byte
	if only != "" {
		out, err = session.ExportLayer(only, format)
	} else {
		out, err = session.ExportAll(format)
	}
	if err != nil {
		return mcp.NewToolResultError(errs.UserMessage(err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
