package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/matzehuels/dagplanner/pkg/dag"
	errs "github.com/matzehuels/dagplanner/pkg/errors"
	"github.com/matzehuels/dagplanner/pkg/push"
	"github.com/matzehuels/dagplanner/pkg/records"
	rserver "github.com/matzehuels/dagplanner/pkg/server"
)

// layerParams names the layer-specific arguments of a build tool.
type layerParams struct {
	description  string
	requirements string // free-text argument stored as requirements
	requiresDesc string
	previous     string // result of the layer above, if any
}

var paramsByLayer = map[dag.Layer]layerParams{
	dag.LayerFunction: {
		description:  "Build the function layer (what): business goals and functional requirements.",
		requirements: "business_requirements",
		requiresDesc: "Business requirements list",
	},
	dag.LayerLogic: {
		description:  "Build the logic layer (how): the technical architecture that realises the functions.",
		requirements: "technical_architecture",
		requiresDesc: "Technical architecture design",
		previous:     "function_layer_result",
	},
	dag.LayerCode: {
		description:  "Build the code layer (where): concrete implementation units such as files and modules.",
		requirements: "implementation_details",
		requiresDesc: "Implementation details and technology choices",
		previous:     "logic_layer_result",
	},
	dag.LayerOrder: {
		description:  "Build the order layer (when): the execution order of the work.",
		requirements: "execution_strategy",
		requiresDesc: "Execution strategy and scheduling",
		previous:     "code_layer_result",
	},
}

// LayerTool handles one build_<layer>_layer_dag tool.
type LayerTool struct {
	layer   dag.Layer
	resolve rserver.Resolver
	hub     Broadcaster
}

// NewLayerTool creates the build tool for layer.
func NewLayerTool(layer dag.Layer, resolve rserver.Resolver, hub Broadcaster) *LayerTool {
	return &LayerTool{layer: layer, resolve: resolve, hub: hub}
}

// LayerTools returns the build tools of all four layers.
func LayerTools(resolve rserver.Resolver, hub Broadcaster) []*LayerTool {
	out := make([]*LayerTool, 0, 4)
	for _, l := range dag.Layers() {
		out = append(out, NewLayerTool(l, resolve, hub))
	}
	return out
}

// Name returns the tool name.
func (t *LayerTool) Name() string {
	return fmt.Sprintf("build_%s_layer_dag", t.layer)
}

// Definition returns the MCP tool definition.
func (t *LayerTool) Definition() mcp.Tool {
	p := paramsByLayer[t.layer]
	opts := []mcp.ToolOption{
		mcp.WithDescription(p.description),
		mcp.WithString("mermaid_dag",
			mcp.Required(),
			mcp.Description(fmt.Sprintf("%s as a Mermaid flowchart", t.layer.Title())),
		),
		mcp.WithString("project_path",
			mcp.Description("Project root directory; empty means the server default"),
		),
		mcp.WithString("project_description",
			mcp.Description("Project description and goals"),
		),
		mcp.WithString(p.requirements,
			mcp.Description(p.requiresDesc),
		),
	}
	if p.previous != "" {
		opts = append(opts, mcp.WithString(p.previous,
			mcp.Description("Result of building the layer above"),
		))
	}
	return mcp.NewTool(t.Name(), opts...)
}

// LayerResult is the JSON reply of a build tool.
type LayerResult struct {
	Success   bool      `json:"success"`
	LayerType dag.Layer `json:"layer_type"`
	LayerName string    `json:"layer_name"`
	DagID     string    `json:"dag_id"`
	FileName  string    `json:"file_name"`
	NodeCount int       `json:"node_count"`
	EdgeCount int       `json:"edge_count"`
}

// Handle saves the layer as a record and broadcasts it.
func (t *LayerTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p := paramsByLayer[t.layer]
	text := req.GetString("mermaid_dag", "")
	projectPath := strings.TrimSpace(req.GetString("project_path", ""))

	description := req.GetString("project_description", "")
	if description == "" && p.previous != "" {
		description = req.GetString(p.previous, "")
	}

	st, _, err := t.resolve(projectPath)
	if err != nil {
		return mcp.NewToolResultError(errs.UserMessage(err)), nil
	}
	rec, err := records.NewRecord(t.layer, text, records.Options{
		ProjectDescription: description,
		Requirements:       req.GetString(p.requirements, ""),
		ProjectPath:        projectPath,
	})
	if err != nil {
		return mcp.NewToolResultError(errs.UserMessage(err)), nil
	}
	if err := st.Save(ctx, rec); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("save %s layer: %v", t.layer, err)), nil
	}
	if t.hub != nil {
		t.hub.Broadcast(push.Update{
			Layer:         string(t.layer),
			MermaidSource: text,
			Source:        "mcp:" + rec.FileName,
		})
	}
	return jsonResult(LayerResult{
		Success:   true,
		LayerType: t.layer,
		LayerName: rec.LayerName,
		DagID:     rec.ID,
		FileName:  rec.FileName,
		NodeCount: rec.NodeCount(),
		EdgeCount: rec.EdgeCount(),
	})
}
