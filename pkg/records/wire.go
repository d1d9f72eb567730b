package records

import (
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/matzehuels/dagplanner/pkg/dag"
	"github.com/matzehuels/dagplanner/pkg/remote"
)

// ToWire builds the /api/dag-data response for a listing. Every layer key is
// present, with records newest first. dir is reported as the records
// directory and used to fill file paths; it may be empty for database
// backends.
func ToWire(all map[dag.Layer][]Record, projectPath, dir string, now time.Time) remote.Response {
	resp := remote.Response{
		Success:       true,
		ProjectPath:   projectPath,
		DagsDirectory: dir,
		Dags:          make(map[string][]remote.Record, len(dag.Layers())),
		Summary: remote.Summary{
			LayersFound: []string{},
			LayerCounts: make(map[string]int, len(dag.Layers())),
		},
		LastScan: now.UTC().Format(time.RFC3339Nano),
	}
	for _, l := range dag.Layers() {
		recs := all[l]
		out := make([]remote.Record, 0, len(recs))
		for _, r := range recs {
			out = append(out, WireRecord(r, dir))
		}
		resp.Dags[string(l)] = out
		resp.Summary.LayerCounts[string(l)] = len(out)
		resp.Summary.TotalFiles += len(out)
		if len(out) > 0 {
			resp.Summary.LayersFound = append(resp.Summary.LayersFound, string(l))
		}
	}
	if resp.Summary.TotalFiles == 0 {
		resp.Message = "no DAG records found"
	}
	return resp
}

// WireRecord converts one record to its listing form.
func WireRecord(r Record, dir string) remote.Record {
	input := &remote.InputData{
		ProjectDescription: r.InputData.ProjectDescription,
		MermaidDag:         r.InputData.MermaidDag,
		Requirements:       r.InputData.Requirements,
		Timestamp:          r.InputData.Timestamp,
	}
	parsed, _ := json.Marshal(r.ParsedDag)
	ts := r.Timestamp.UTC().Format(time.RFC3339Nano)

	out := remote.Record{
		FileName:    r.FileName,
		LayerType:   string(r.LayerType),
		LayerName:   r.LayerName,
		Timestamp:   ts,
		FileSize:    r.SizeBytes,
		CreatedTime: ts,
		DagData: &remote.Payload{
			InputData:  input,
			MermaidDag: r.InputData.MermaidDag,
			LayerType:  string(r.LayerType),
			LayerName:  r.LayerName,
			ParsedDag:  parsed,
		},
		InputData: input,
	}
	if dir != "" && r.FileName != "" {
		out.FilePath = filepath.Join(dir, r.FileName)
	}
	return out
}
