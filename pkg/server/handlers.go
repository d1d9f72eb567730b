package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/dagplanner/pkg/dag"
	errs "github.com/matzehuels/dagplanner/pkg/errors"
	"github.com/matzehuels/dagplanner/pkg/push"
	"github.com/matzehuels/dagplanner/pkg/records"
	"github.com/matzehuels/dagplanner/pkg/remote"
)

const maxRequestBody = 8 << 20

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	Success     bool           `json:"success"`
	ProjectPath string         `json:"project_path,omitempty"`
	Total       int            `json:"total_files"`
	LayerCounts map[string]int `json:"layer_counts"`
	NodeCounts  map[string]int `json:"node_counts"`
	EdgeCounts  map[string]int `json:"edge_counts"`
}

func (s *Server) dagData(w http.ResponseWriter, r *http.Request) {
	projectPath := r.URL.Query().Get("project_path")
	st, dir, err := s.resolve(projectPath)
	if err != nil {
		s.fail(w, err)
		return
	}
	all, err := st.ListAll(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records.ToWire(all, projectPath, dir, s.now()))
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	projectPath := r.URL.Query().Get("project_path")
	st, _, err := s.resolve(projectPath)
	if err != nil {
		s.fail(w, err)
		return
	}
	all, err := st.ListAll(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	resp := StatsResponse{
		Success:     true,
		ProjectPath: projectPath,
		LayerCounts: make(map[string]int),
		NodeCounts:  make(map[string]int),
		EdgeCounts:  make(map[string]int),
	}
	for _, l := range dag.Layers() {
		recs := all[l]
		resp.LayerCounts[string(l)] = len(recs)
		resp.Total += len(recs)
		// counts of the record a sync would pick
		if len(recs) > 0 {
			resp.NodeCounts[string(l)] = recs[0].NodeCount()
			resp.EdgeCounts[string(l)] = recs[0].EdgeCount()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) saveRecord(w http.ResponseWriter, r *http.Request) {
	var req remote.SaveRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		s.fail(w, errs.Wrap(errs.ErrCodeInvalidInput, err, "read body"))
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		s.fail(w, errs.Wrap(errs.ErrCodeInvalidInput, err, "decode body"))
		return
	}
	layer, err := dag.ParseLayer(req.LayerType)
	if err != nil {
		s.fail(w, errs.Wrap(errs.ErrCodeInvalidLayer, err, "unknown layer %q", req.LayerType))
		return
	}

	projectPath := r.URL.Query().Get("project_path")
	st, _, err := s.resolve(projectPath)
	if err != nil {
		s.fail(w, err)
		return
	}

	rec, err := records.NewRecord(layer, req.MermaidDag, records.Options{
		ID:                 req.ID,
		ProjectDescription: req.ProjectDescription,
		Requirements:       req.Requirements,
		ProjectPath:        projectPath,
		Now:                s.now(),
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	_, getErr := st.Get(r.Context(), rec.ID)
	existed := getErr == nil

	if err := st.Save(r.Context(), rec); err != nil {
		s.fail(w, err)
		return
	}
	s.logger.Info("record saved", "layer", layer, "id", rec.ID, "nodes", rec.NodeCount(), "edges", rec.EdgeCount())

	if s.hub != nil {
		s.hub.Broadcast(push.Update{
			Layer:         string(layer),
			MermaidSource: req.MermaidDag,
			Source:        "api:" + rec.FileName,
		})
	}
	writeJSON(w, http.StatusOK, remote.SaveResult{
		Success:       true,
		ID:            rec.ID,
		FileName:      rec.FileName,
		SizeBytes:     rec.SizeBytes,
		NodeCount:     rec.NodeCount(),
		EdgeCount:     rec.EdgeCount(),
		BackupCreated: existed,
	})
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	st, id, ok := s.recordTarget(w, r)
	if !ok {
		return
	}
	rec, err := st.Get(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request) {
	st, id, ok := s.recordTarget(w, r)
	if !ok {
		return
	}
	if err := st.Delete(r.Context(), id); err != nil {
		s.fail(w, err)
		return
	}
	s.logger.Info("record deleted", "id", id)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
}

func (s *Server) recordTarget(w http.ResponseWriter, r *http.Request) (records.Store, string, bool) {
	id := chi.URLParam(r, "id")
	if err := errs.ValidateRecordID(id); err != nil {
		s.fail(w, err)
		return nil, "", false
	}
	st, _, err := s.resolve(r.URL.Query().Get("project_path"))
	if err != nil {
		s.fail(w, err)
		return nil, "", false
	}
	return st, id, true
}

// fail writes an error body in the shape clients expect from every route.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   errs.UserMessage(err),
		"code":    errs.GetCode(err),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, records.ErrNotFound):
		return http.StatusNotFound
	}
	switch errs.GetCode(err) {
	case errs.ErrCodeInvalidInput, errs.ErrCodeInvalidLayer, errs.ErrCodeInvalidPath,
		errs.ErrCodeInvalidRecordID, errs.ErrCodeInvalidMermaidDag:
		return http.StatusBadRequest
	case errs.ErrCodeNotFound, errs.ErrCodeRecordNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
