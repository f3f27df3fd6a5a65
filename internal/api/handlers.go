package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/user/expdata/internal/export"
	"github.com/user/expdata/pkg/sink"
)

func (s *Server) listApps(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"apps": s.svc.AppNames()})
}

func (s *Server) sessionData(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	tabs, err := s.svc.SessionData(r.Context(), code)
	if err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}
	writeJSON(w, http.StatusOK, tabs)
}

// requestFromQuery reads format, kind and session from the query string.
func requestFromQuery(r *http.Request) (export.Request, error) {
	query := r.URL.Query()
	format, err := sink.ParseFormat(query.Get("format"))
	if err != nil {
		return export.Request{}, err
	}
	kind, err := export.ParseKind(query.Get("kind"))
	if err != nil {
		return export.Request{}, err
	}
	return export.Request{Kind: kind, Format: format, Sessions: query["session"]}, nil
}

func (s *Server) downloadExport(w http.ResponseWriter, r *http.Request) {
	app := r.PathValue("app")
	req, err := requestFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.Apps = []string{app}

	data, rows, err := s.svc.Bytes(r.Context(), req)
	if err != nil {
		s.log("ERROR", "Export download failed", "app", app, "format", req.Format, "error", err)
		http.Error(w, err.Error(), statusOf(err))
		return
	}

	name := export.FileName(app, req.Format, time.Now())
	w.Header().Set("Content-Type", req.Format.MimeType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("X-Export-Rows", fmt.Sprint(rows))
	w.Write(data)
}

func (s *Server) createExport(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Apps     []string `json:"apps"`
		Kind     string   `json:"kind"`
		Format   string   `json:"format"`
		Sessions []string `json:"sessions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	format, err := sink.ParseFormat(body.Format)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	kind, err := export.ParseKind(body.Kind)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	arts, err := s.svc.Export(r.Context(), export.Request{Apps: body.Apps, Kind: kind, Format: format, Sessions: body.Sessions})
	if err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}
	writeJSON(w, http.StatusCreated, arts)
}

func (s *Server) downloadArtifact(w http.ResponseWriter, r *http.Request) {
	run, name := r.PathValue("run"), r.PathValue("name")
	if name != filepath.Base(name) || strings.Contains(name, "..") {
		http.Error(w, "invalid file name", http.StatusBadRequest)
		return
	}
	rc, err := s.svc.OpenArtifact(r.Context(), run, name)
	if err != nil {
		http.Error(w, "artifact not found", http.StatusNotFound)
		return
	}
	defer rc.Close()

	contentType := "application/octet-stream"
	if f, err := sink.ParseFormat(strings.TrimPrefix(filepath.Ext(name), ".")); err == nil && filepath.Ext(name) != "" {
		contentType = f.MimeType()
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	io.Copy(w, rc)
}

func (s *Server) lastScheduledRun(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		http.Error(w, "no schedules configured", http.StatusNotFound)
		return
	}
	arts := s.scheduler.Last(r.Context(), r.PathValue("name"))
	if arts == nil {
		http.Error(w, "no completed run", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, arts)
}
