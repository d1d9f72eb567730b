package mcptools

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/matzehuels/dagplanner/pkg/dag"
	"github.com/matzehuels/dagplanner/pkg/push"
	"github.com/matzehuels/dagplanner/pkg/remote"
	rserver "github.com/matzehuels/dagplanner/pkg/server"
)

type recordingHub struct {
	mu      sync.Mutex
	updates []push.Update
}

func (h *recordingHub) Broadcast(u push.Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, u)
}

func newResolver(t *testing.T) rserver.Resolver {
	t.Helper()
	return rserver.ProjectFiles(t.TempDir(), log.New(&strings.Builder{}))
}

func makeReq(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(r *mcp.CallToolResult) string {
	if r == nil {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestLayerToolDefinitions(t *testing.T) {
	tools := LayerTools(nil, nil)
	var names []string
	for _, tool := range tools {
		def := tool.Definition()
		names = append(names, def.Name)
		if !slices.Contains(def.InputSchema.Required, "mermaid_dag") {
			t.Errorf("%s: mermaid_dag not required", def.Name)
		}
		if _, ok := def.InputSchema.Properties["project_path"]; !ok {
			t.Errorf("%s: missing project_path", def.Name)
		}
	}
	want := []string{"build_function_layer_dag", "build_logic_layer_dag", "build_code_layer_dag", "build_order_layer_dag"}
	if !slices.Equal(names, want) {
		t.Errorf("names = %v, want %v", names, want)
	}

	logic := NewLayerTool(dag.LayerLogic, nil, nil).Definition()
	for _, p := range []string{"technical_architecture", "function_layer_result"} {
		if _, ok := logic.InputSchema.Properties[p]; !ok {
			t.Errorf("logic tool missing %s", p)
		}
	}
}

func TestLayerToolSavesAndBroadcasts(t *testing.T) {
	resolve := newResolver(t)
	hub := &recordingHub{}
	tool := NewLayerTool(dag.LayerCode, resolve, hub)

	res, err := tool.Handle(context.Background(), makeReq(map[string]any{
		"mermaid_dag":            "main.go --> server.go\nserver.go --> db.go",
		"implementation_details": "Go, chi",
		"logic_layer_result":     "api over db",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("error result: %s", resultText(res))
	}
	var out LayerResult
	if err := json.Unmarshal([]byte(resultText(res)), &out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !out.Success || out.NodeCount != 3 || out.EdgeCount != 2 || out.LayerType != dag.LayerCode {
		t.Errorf("result = %+v", out)
	}

	st, _, err := resolve("")
	if err != nil {
		t.Fatal(err)
	}
	rec, err := st.Get(context.Background(), out.DagID)
	if err != nil {
		t.Fatalf("record not saved: %v", err)
	}
	if rec.InputData.Requirements != "Go, chi" || rec.InputData.ProjectDescription != "api over db" {
		t.Errorf("input data = %+v", rec.InputData)
	}

	if len(hub.updates) != 1 || hub.updates[0].Layer != "code" {
		t.Errorf("broadcasts = %+v", hub.updates)
	}
}

func TestLayerToolRejectsBlankMermaid(t *testing.T) {
	hub := &recordingHub{}
	tool := NewLayerTool(dag.LayerOrder, newResolver(t), hub)
	res, err := tool.Handle(context.Background(), makeReq(map[string]any{"mermaid_dag": " "}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Errorf("want error result, got %s", resultText(res))
	}
	if len(hub.updates) != 0 {
		t.Errorf("blank layer was broadcast")
	}
}

func TestDataAndExportTools(t *testing.T) {
	ctx := context.Background()
	resolve := newResolver(t)
	for layer, text := range map[dag.Layer]string{
		dag.LayerFunction: "Goal --> Feature",
		dag.LayerOrder:    "S1 --> S2",
	} {
		res, err := NewLayerTool(layer, resolve, nil).Handle(ctx, makeReq(map[string]any{"mermaid_dag": text}))
		if err != nil || res.IsError {
			t.Fatalf("save %s: %v %s", layer, err, resultText(res))
		}
	}

	res, err := NewDataTool(resolve).Handle(ctx, makeReq(nil))
	if err != nil || res.IsError {
		t.Fatalf("get_dag_data: %v %s", err, resultText(res))
	}
	var resp remote.Response
	if err := json.Unmarshal([]byte(resultText(res)), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Summary.TotalFiles != 2 {
		t.Errorf("total = %d, want 2", resp.Summary.TotalFiles)
	}

	res, err = NewExportTool(resolve).Handle(ctx, makeReq(map[string]any{"format": "mermaid"}))
	if err != nil || res.IsError {
		t.Fatalf("export_dag: %v %s", err, resultText(res))
	}
	text := resultText(res)
	for _, want := range []string{"%% function layer", "Goal --> Feature", "%% order layer", "S1 --> S2"} {
		if !strings.Contains(text, want) {
			t.Errorf("export missing %q:\n%s", want, text)
		}
	}

	res, err = NewExportTool(resolve).Handle(ctx, makeReq(map[string]any{"format": "mermaid", "layer": "order"}))
	if err != nil || res.IsError {
		t.Fatalf("export_dag layer: %v %s", err, resultText(res))
	}
	if text := resultText(res); !strings.Contains(text, "S1 --> S2") || strings.Contains(text, "Goal") {
		t.Errorf("order export = %q, want only the order layer", text)
	}

	for _, args := range []map[string]any{{"format": "yaml"}, {"layer": "physics"}} {
		res, err = NewExportTool(resolve).Handle(ctx, makeReq(args))
		if err != nil {
			t.Fatal(err)
		}
		if !res.IsError {
			t.Errorf("%v should be an error result", args)
		}
	}
}

func TestNewServerRegistersTools(t *testing.T) {
	s := NewServer("test", newResolver(t), nil)
	if s == nil {
		t.Fatal("nil server")
	}
}
