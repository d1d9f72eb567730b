// Package records persists saved layer snapshots on the server side of the
// remote store.
//
// A [Record] is what a producer (an MCP tool call, `dagplanner push`, or
// another process writing into the records directory) submitted for one
// layer, plus the graph parsed from it. Every [Store] backend lists records
// newest first; [ToWire] turns a listing into the /api/dag-data response
// that sync clients consume.
//
// Backends:
//   - [FileStore]: one JSON document per record, "<layer>_layer_<id>.json"
//   - [SQLiteStore]: a single SQLite database (modernc.org/sqlite, no cgo)
//   - [MongoStore]: a MongoDB collection
package records

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matzehuels/dagplanner/pkg/dag"
	errs "github.com/matzehuels/dagplanner/pkg/errors"
	"github.com/matzehuels/dagplanner/pkg/mermaid"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("record not found")

// Record is one saved snapshot of a layer.
type Record struct {
	ID          string    `json:"id" bson:"_id"`
	LayerType   dag.Layer `json:"layer_type" bson:"layer_type"`
	LayerName   string    `json:"layer_name" bson:"layer_name"`
	FileName    string    `json:"file_name" bson:"file_name"`
	ProjectPath string    `json:"project_path,omitempty" bson:"project_path,omitempty"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
	SizeBytes   int64     `json:"size_bytes" bson:"size_bytes"`
	InputData   InputData `json:"input_data" bson:"input_data"`
	ParsedDag   ParsedDag `json:"parsed_dag" bson:"parsed_dag"`
}

// InputData is what the producer submitted.
type InputData struct {
	ProjectDescription string `json:"project_description,omitempty" bson:"project_description,omitempty"`
	MermaidDag         string `json:"mermaid_dag" bson:"mermaid_dag"`
	Requirements       string `json:"requirements,omitempty" bson:"requirements,omitempty"`
	Timestamp          string `json:"timestamp,omitempty" bson:"timestamp,omitempty"`
}

// ParsedDag is the graph parsed from the submitted Mermaid text.
type ParsedDag struct {
	Nodes    []dag.Node `json:"nodes" bson:"nodes"`
	Edges    []dag.Edge `json:"edges" bson:"edges"`
	Metadata Counts     `json:"metadata" bson:"metadata"`
}

// Counts summarizes a parsed graph.
type Counts struct {
	Layer     dag.Layer `json:"layer" bson:"layer"`
	NodeCount int       `json:"node_count" bson:"node_count"`
	EdgeCount int       `json:"edge_count" bson:"edge_count"`
}

// Options carries the optional fields of a new record.
type Options struct {
	ID                 string
	ProjectDescription string
	Requirements       string
	ProjectPath        string
	Now                time.Time
}

// NewRecord builds a record for layer from Mermaid text. Blank text is
// rejected with INVALID_MERMAID. The text is parsed
// to fill the parsed graph and counts. Without an explicit ID the record id
// is derived from layer and text, so resubmitting identical text overwrites
// the earlier record.
func NewRecord(layer dag.Layer, text string, opts Options) (*Record, error) {
	if !layer.Valid() {
		return nil, errs.Wrap(errs.ErrCodeInvalidLayer, dag.ErrInvalidLayer, "unknown layer %q", string(layer))
	}
	if strings.TrimSpace(text) == "" {
		return nil, errs.New(errs.ErrCodeInvalidMermaidDag, "empty mermaid text for %s layer", layer)
	}
	id := opts.ID
	if id == "" {
		id = ContentID(layer, text)
	}
	if err := errs.ValidateRecordID(id); err != nil {
		return nil, err
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	g := mermaid.Parse(text)
	return &Record{
		ID:          id,
		LayerType:   layer,
		LayerName:   layer.Title(),
		FileName:    FileName(layer, id),
		ProjectPath: opts.ProjectPath,
		Timestamp:   now,
		InputData: InputData{
			ProjectDescription: opts.ProjectDescription,
			MermaidDag:         text,
			Requirements:       opts.Requirements,
			Timestamp:          now.Format(time.RFC3339Nano),
		},
		ParsedDag: ParsedDag{
			Nodes:    g.Nodes,
			Edges:    g.Edges,
			Metadata: Counts{Layer: layer, NodeCount: len(g.Nodes), EdgeCount: len(g.Edges)},
		},
	}, nil
}

// ContentID derives a short record id from layer and Mermaid text.
func ContentID(layer dag.Layer, text string) string {
	sum := sha256.Sum256([]byte(string(layer) + "\x00" + text))
	return hex.EncodeToString(sum[:4])
}

// FileName returns the file name a record is stored under.
func FileName(layer dag.Layer, id string) string {
	return fmt.Sprintf("%s_layer_%s.json", layer, id)
}

// NodeCount returns the number of parsed nodes.
func (r *Record) NodeCount() int { return len(r.ParsedDag.Nodes) }

// EdgeCount returns the number of parsed edges.
func (r *Record) EdgeCount() int { return len(r.ParsedDag.Edges) }

func (r *Record) validate() error {
	if r == nil {
		return errs.New(errs.ErrCodeInvalidInput, "nil record")
	}
	if !r.LayerType.Valid() {
		return errs.Wrap(errs.ErrCodeInvalidLayer, dag.ErrInvalidLayer, "unknown layer %q", string(r.LayerType))
	}
	return errs.ValidateRecordID(r.ID)
}
