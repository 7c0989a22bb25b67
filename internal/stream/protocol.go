package stream

import (
	"encoding/json"
	"fmt"
	"strings"

	"ytcmd/internal/model"
)

// Client to server events.
const (
	EventStartDownload  = "start-download"
	EventCancelDownload = "cancel-download"
)

// Server to client events.
const (
	EventDownloadStarted  = "download-started"
	EventDownloadLog      = "download-log"
	EventDownloadProgress = "download-progress"
	EventDownloadComplete = "download-complete"
)

// Message is the JSON envelope exchanged on the channel.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Started is the payload of download-started.
type Started struct {
	ID      string `json:"id"`
	Command string `json:"command"`
}

// StartRequest is the decoded payload of start-download: either a literal
// shell command or a structured request to generate one.
type StartRequest struct {
	Command string
	Request *model.DownloadRequest
}

func NewMessage(event string, data any) (Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return Message{Event: event, Data: raw}, nil
}

func ParseStartRequest(data json.RawMessage) (StartRequest, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return StartRequest{}, fmt.Errorf("start-download requires a command")
	}
	if strings.HasPrefix(trimmed, `"`) {
		var cmd string
		if err := json.Unmarshal(data, &cmd); err != nil {
			return StartRequest{}, fmt.Errorf("decode command: %w", err)
		}
		if strings.TrimSpace(cmd) == "" {
			return StartRequest{}, fmt.Errorf("start-download requires a command")
		}
		return StartRequest{Command: cmd}, nil
	}
	var req model.DownloadRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return StartRequest{}, fmt.Errorf("decode download request: %w", err)
	}
	if strings.TrimSpace(req.URL) == "" {
		return StartRequest{}, fmt.Errorf("download request requires a url")
	}
	mode, ok := model.ParseMode(string(req.Mode))
	if !ok {
		return StartRequest{}, fmt.Errorf("unknown mode %q", req.Mode)
	}
	req.Mode = mode
	return StartRequest{Request: &req}, nil
}
