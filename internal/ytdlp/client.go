package ytdlp

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

type DependencyReport struct {
	YTDLPFound   bool   `json:"yt_dlp_found"`
	YTDLPPath    string `json:"yt_dlp_path,omitempty"`
	FFmpegFound  bool   `json:"ffmpeg_found"`
	FFmpegPath   string `json:"ffmpeg_path,omitempty"`
	WhisperFound bool   `json:"whisper_found"`
	WhisperPath  string `json:"whisper_path,omitempty"`
}

// DependencyStatus looks the external tools up on PATH. Generated commands
// are never gated on it; it only feeds the doctor report.
func DependencyStatus() DependencyReport {
	report := DependencyReport{}
	if path, err := exec.LookPath("yt-dlp"); err == nil {
		report.YTDLPFound = true
		report.YTDLPPath = path
	}
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		report.FFmpegFound = true
		report.FFmpegPath = path
	}
	if path, err := exec.LookPath("whisper"); err == nil {
		report.WhisperFound = true
		report.WhisperPath = path
	}
	return report
}

// DumpJSON returns yt-dlp's single-video info JSON for url.
func DumpJSON(ctx context.Context, url string) ([]byte, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("video URL is required")
	}

	cmd := exec.CommandContext(ctx, "yt-dlp", "-J", "--skip-download", "--no-playlist", "--no-warnings", url)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("yt-dlp failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("yt-dlp returned empty output")
	}
	return stdout.Bytes(), nil
}

// RunDetached starts command in the background with its output going to the
// operator log only. It returns once the process has been started.
func RunDetached(command string, logger *slog.Logger) (*Process, error) {
	log := logger.With("component", "detached")
	p, err := Spawn(context.Background(), ShellSpec(command), Handlers{
		Output: func(stream OutputStream, text string) {
			log.Info(FormatOutput(stream, text))
		},
		Exit: func(succeeded bool, err error) {
			if succeeded {
				log.Info("download finished")
				return
			}
			log.Error("download failed", "err", err)
		},
	})
	if err != nil {
		return nil, err
	}
	log.Info("download started", "pid", p.PID())
	return p, nil
}
