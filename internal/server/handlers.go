package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"ytcmd/internal/command"
	"ytcmd/internal/metadata"
	"ytcmd/internal/model"
)

const maxRequestBytes = 64 << 10

type downloadRequest struct {
	URL        string `json:"url"`
	Type       string `json:"type"`
	OutputPath string `json:"outputPath,omitempty"`
}

type downloadResponse struct {
	Status  string `json:"status"`
	Command string `json:"command"`
	Message string `json:"message"`
}

type historyRequest struct {
	URL     string `json:"url"`
	Mode    string `json:"mode"`
	Command string `json:"command"`
	Title   string `json:"title,omitempty"`
}

type statusResponse struct {
	ExecutionEnabled bool     `json:"execution_enabled"`
	Modes            []string `json:"modes"`
	OutputPath       string   `json:"output_path"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	url := strings.TrimSpace(r.URL.Query().Get("url"))
	if url == "" {
		writeError(w, http.StatusBadRequest, "URL is required")
		return
	}
	info, err := s.meta.Lookup(r.Context(), url)
	if err != nil {
		if errors.Is(err, metadata.ErrUnsupportedURL) {
			writeError(w, http.StatusBadRequest, "unsupported URL")
			return
		}
		s.log.Warn("metadata lookup failed", "url", url, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch video info")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if !s.settings.ExecutionAllowed() {
		writeError(w, http.StatusForbidden, "local download execution is not available in this environment")
		return
	}
	var req downloadRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "URL is required")
		return
	}
	mode, ok := model.ParseMode(req.Type)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown download type")
		return
	}
	outputPath := req.OutputPath
	if strings.TrimSpace(outputPath) == "" {
		outputPath = s.settings.OutputPath
	}
	inv, _, ok := command.GenerateFor(model.DownloadRequest{URL: req.URL, Mode: mode, OutputPath: outputPath}, s.settings.CommandOptions())
	if !ok {
		writeError(w, http.StatusBadRequest, "unsupported URL")
		return
	}
	cmd := inv.Display()
	if err := s.spawn(cmd); err != nil {
		s.log.Error("failed to start download", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to start download")
		return
	}
	writeJSON(w, http.StatusOK, downloadResponse{
		Status:  "started",
		Command: cmd,
		Message: "Download started in background",
	})
}

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history is not enabled")
		return
	}
	items, err := s.history.List(r.Context())
	if err != nil {
		s.log.Error("list history", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleHistoryAdd(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history is not enabled")
		return
	}
	var req historyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	mode, ok := model.ParseMode(req.Mode)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown mode")
		return
	}
	item, err := s.history.Add(r.Context(), model.HistoryItem{
		URL:     req.URL,
		Mode:    mode,
		Command: req.Command,
		Title:   req.Title,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	modes := make([]string, 0, len(model.AllModes()))
	for _, m := range model.AllModes() {
		modes = append(modes, string(m))
	}
	writeJSON(w, http.StatusOK, statusResponse{
		ExecutionEnabled: s.settings.ExecutionAllowed(),
		Modes:            modes,
		OutputPath:       s.settings.OutputPath,
	})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
