package remote

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/matzehuels/dagplanner/pkg/dag"
)

// Response is the body of GET /api/dag-data.
type Response struct {
	Success       bool                `json:"success"`
	ProjectPath   string              `json:"project_path,omitempty"`
	DagsDirectory string              `json:"dags_directory,omitempty"`
	Dags          map[string][]Record `json:"dags"`
	Summary       Summary             `json:"summary"`
	Message       string              `json:"message,omitempty"`
	LastScan      string              `json:"last_scan,omitempty"`
	Error         string              `json:"error,omitempty"`
}

// Summary counts records per layer.
type Summary struct {
	TotalFiles  int            `json:"total_files"`
	LayersFound []string       `json:"layers_found"`
	LayerCounts map[string]int `json:"layer_counts"`
}

// Record is one saved layer snapshot as listed by the remote store.
type Record struct {
	FileName    string     `json:"file_name"`
	FilePath    string     `json:"file_path,omitempty"`
	LayerType   string     `json:"layer_type"`
	LayerName   string     `json:"layer_name,omitempty"`
	Timestamp   string     `json:"timestamp"`
	FileSize    int64      `json:"file_size"`
	CreatedTime string     `json:"created_time,omitempty"`
	DagData     *Payload   `json:"dag_data,omitempty"`
	InputData   *InputData `json:"input_data,omitempty"`
}

// Payload is the record's DAG document.
type Payload struct {
	InputData  *InputData      `json:"input_data,omitempty"`
	MermaidDag string          `json:"mermaid_dag,omitempty"`
	LayerType  string          `json:"layer_type,omitempty"`
	LayerName  string          `json:"layer_name,omitempty"`
	ParsedDag  json.RawMessage `json:"parsed_dag,omitempty"`
	Validation json.RawMessage `json:"validation,omitempty"`
}

// InputData is what the producer originally submitted for a layer.
type InputData struct {
	ProjectDescription string `json:"project_description,omitempty"`
	MermaidDag         string `json:"mermaid_dag,omitempty"`
	Requirements       string `json:"requirements,omitempty"`
	Timestamp          string `json:"timestamp,omitempty"`
}

// RecordCount returns the number of records across all layers.
func (r Response) RecordCount() int {
	n := 0
	for _, recs := range r.Dags {
		n += len(recs)
	}
	return n
}

// Records returns the records listed for layer.
func (r Response) Records(layer dag.Layer) []Record {
	return r.Dags[string(layer)]
}

// MermaidSource returns the record's Mermaid text. The first non-empty of
// these paths wins:
//
//  1. dag_data.input_data.mermaid_dag
//  2. dag_data.mermaid_dag
//  3. input_data.mermaid_dag
//
// A record with none of them is contentless.
func (r Record) MermaidSource() (string, bool) {
	if d := r.DagData; d != nil {
		if d.InputData != nil && strings.TrimSpace(d.InputData.MermaidDag) != "" {
			return d.InputData.MermaidDag, true
		}
		if strings.TrimSpace(d.MermaidDag) != "" {
			return d.MermaidDag, true
		}
	}
	if r.InputData != nil && strings.TrimSpace(r.InputData.MermaidDag) != "" {
		return r.InputData.MermaidDag, true
	}
	return "", false
}

// Layer returns the record's layer tag.
func (r Record) Layer() (dag.Layer, error) { return dag.ParseLayer(r.LayerType) }

// Time returns the record's timestamp, falling back to the input timestamps
// and the file creation time. Unparseable values yield the zero time.
func (r Record) Time() time.Time {
	candidates := []string{r.Timestamp}
	if r.DagData != nil && r.DagData.InputData != nil {
		candidates = append(candidates, r.DagData.InputData.Timestamp)
	}
	if r.InputData != nil {
		candidates = append(candidates, r.InputData.Timestamp)
	}
	candidates = append(candidates, r.CreatedTime)
	for _, s := range candidates {
		if t, ok := ParseTime(s); ok {
			return t
		}
	}
	return time.Time{}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTime parses RFC 3339 timestamps and ISO timestamps without zone,
// which are taken as UTC.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SortNewestFirst sorts records by timestamp, newest first. Records with
// equal timestamps keep their relative order.
func SortNewestFirst(records []Record) {
	slices.SortStableFunc(records, func(a, b Record) int {
		return b.Time().Compare(a.Time())
	})
}

// Latest returns the most recent record that has Mermaid content.
// Contentless records are skipped in favor of the next most recent one.
func Latest(records []Record) (Record, string, bool) {
	sorted := slices.Clone(records)
	SortNewestFirst(sorted)
	for _, r := range sorted {
		if src, ok := r.MermaidSource(); ok {
			return r, src, true
		}
	}
	return Record{}, "", false
}
