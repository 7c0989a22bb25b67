package cli

import (
	"encoding/json"
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ytcmd/internal/command"
	"ytcmd/internal/config"
	"ytcmd/internal/model"
	"ytcmd/internal/runstore"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w
	defer func() {
		os.Stdout = oldStdout
	}()
	defer r.Close()

	done := make(chan []byte)
	go func() {
		b, _ := io.ReadAll(r)
		done <- b
	}()

	fn()

	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return string(<-done)
}

// setupWorkspace writes a settings file whose state lives in a temp dir and
// puts a fake yt-dlp on PATH.
func setupWorkspace(t *testing.T, ytScript string) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv(config.EnvVercel, "")
	t.Setenv(config.EnvRestricted, "")

	fakeBin := filepath.Join(tmp, "bin")
	if err := os.MkdirAll(fakeBin, 0o755); err != nil {
		t.Fatal(err)
	}
	if ytScript != "" {
		if err := os.WriteFile(filepath.Join(fakeBin, "yt-dlp"), []byte(ytScript), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	t.Setenv("PATH", fakeBin+":"+os.Getenv("PATH"))

	cfg := filepath.Join(tmp, "config", "settings.json")
	if err := runstore.WriteJSON(cfg, config.Settings{
		OutputPath: filepath.Join(tmp, "out"),
		HistoryDB:  filepath.Join(tmp, "state", "history.db"),
	}); err != nil {
		t.Fatal(err)
	}
	return cfg
}

const progressYTDLP = `#!/usr/bin/env bash
set -euo pipefail
found=0
for a in "$@"; do
  if [ "$a" = "--progress-template" ]; then found=1; fi
done
if [ "$found" -ne 1 ]; then
  echo "progress template missing" >&2
  exit 3
fi
echo "[progress] 10.0%"
echo "[progress] 55.0%"
echo "[progress] 100.0%"
`

func TestGenPrintsCommand(t *testing.T) {
	cfg := setupWorkspace(t, "")
	settings, err := config.Load(cfg)
	if err != nil {
		t.Fatal(err)
	}

	var runErr error
	out := captureStdout(t, func() {
		runErr = Run([]string{"gen", "https://youtu.be/abc", "--mode", "audio", "--config", cfg})
	})
	if runErr != nil {
		t.Fatalf("gen failed: %v", runErr)
	}
	req := model.DownloadRequest{URL: "https://youtu.be/abc", Mode: model.ModeAudio, OutputPath: settings.OutputPath}
	want := command.GenerateWith(req, command.Classify(req.URL), settings.CommandOptions())
	if strings.TrimSpace(out) != want {
		t.Fatalf("unexpected output:\n got %s\nwant %s", out, want)
	}
}

func TestGenRejectsUnsupportedURL(t *testing.T) {
	cfg := setupWorkspace(t, "")
	err := Run([]string{"gen", "--config", cfg, "https://example.com/video"})
	if !errors.Is(err, errNoCommand) {
		t.Fatalf("expected errNoCommand, got %v", err)
	}
	if err := Run([]string{"gen", "--config", cfg, "--mode", "gif", "https://youtu.be/abc"}); err == nil {
		t.Fatal("expected unknown mode to fail")
	}
}

func TestGenJSONSaveAndHistory(t *testing.T) {
	cfg := setupWorkspace(t, "")

	var runErr error
	out := captureStdout(t, func() {
		runErr = Run([]string{"gen", "--json", "--save", "--title", "Demo", "--mode", "transcribe", "--config", cfg,
			"https://www.youtube.com/watch?v=abc&list=PL123"})
	})
	if runErr != nil {
		t.Fatalf("gen failed: %v", runErr)
	}
	var res genResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if !res.Playlist || res.Platform != model.PlatformYouTube || res.Mode != model.ModeTranscribe {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Argv) != 3 || res.Argv[0] != "sh" || res.Argv[2] != res.Command {
		t.Fatalf("compound argv should wrap the script: %v", res.Argv)
	}

	out = captureStdout(t, func() {
		runErr = Run([]string{"history", "--json", "--config", cfg})
	})
	if runErr != nil {
		t.Fatalf("history failed: %v", runErr)
	}
	var items []model.HistoryItem
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(items) != 1 || items[0].Title != "Demo" || items[0].Command != res.Command {
		t.Fatalf("unexpected history: %+v", items)
	}

	if err := Run([]string{"history", "clear", "--yes", "--config", cfg}); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	out = captureStdout(t, func() {
		runErr = Run([]string{"history", "--config", cfg})
	})
	if runErr != nil || !strings.Contains(out, "(empty)") {
		t.Fatalf("expected empty history, got %q (%v)", out, runErr)
	}
}

func TestGenCopyAndArgv(t *testing.T) {
	cfg := setupWorkspace(t, "")
	var copied string
	old := writeClipboard
	writeClipboard = func(s string) error {
		copied = s
		return nil
	}
	defer func() { writeClipboard = old }()

	var runErr error
	out := captureStdout(t, func() {
		runErr = Run([]string{"gen", "--argv", "--copy", "--config", cfg, "https://youtu.be/abc"})
	})
	if runErr != nil {
		t.Fatalf("gen failed: %v", runErr)
	}
	line := strings.TrimSpace(out)
	if copied != line {
		t.Fatalf("clipboard %q does not match output %q", copied, line)
	}
	if !strings.HasPrefix(line, "yt-dlp ") || !strings.HasSuffix(line, " https://youtu.be/abc") {
		t.Fatalf("unexpected argv rendering: %s", line)
	}
}

func TestRunPlainStreamsProgress(t *testing.T) {
	cfg := setupWorkspace(t, progressYTDLP)

	var runErr error
	out := captureStdout(t, func() {
		runErr = Run([]string{"run", "--plain", "--mode", "audio", "--save", "--config", cfg, "https://youtu.be/abc"})
	})
	if runErr != nil {
		t.Fatalf("run failed: %v\n%s", runErr, out)
	}
	if !strings.Contains(out, "[progress] 55.0%") {
		t.Fatalf("expected streamed progress, got:\n%s", out)
	}
}

func TestRunLiteralCommandFailure(t *testing.T) {
	cfg := setupWorkspace(t, "")
	var runErr error
	out := captureStdout(t, func() {
		runErr = Run([]string{"run", "--plain", "--config", cfg, "--command", "echo oops >&2; exit 4"})
	})
	if runErr == nil {
		t.Fatal("expected failing command to return an error")
	}
	if !strings.Contains(out, "[stderr] oops") {
		t.Fatalf("expected tagged stderr, got:\n%s", out)
	}
}

func TestRunRefusedWhenRestricted(t *testing.T) {
	cfg := setupWorkspace(t, progressYTDLP)
	t.Setenv(config.EnvVercel, "1")
	err := Run([]string{"run", "--plain", "--config", cfg, "https://youtu.be/abc"})
	if !errors.Is(err, config.ErrExecutionDisabled) {
		t.Fatalf("expected ErrExecutionDisabled, got %v", err)
	}
}

func TestSettingsSetAndShow(t *testing.T) {
	cfg := setupWorkspace(t, "")
	var runErr error
	captureStdout(t, func() {
		runErr = Run([]string{"settings", "set", "--config", cfg, "audio_format=m4a", "whisper_model", "small"})
	})
	if runErr != nil {
		t.Fatalf("settings set failed: %v", runErr)
	}
	out := captureStdout(t, func() {
		runErr = Run([]string{"settings", "show", "--json", "--config", cfg})
	})
	if runErr != nil {
		t.Fatalf("settings show failed: %v", runErr)
	}
	var shown struct {
		Settings config.Settings `json:"settings"`
	}
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if shown.Settings.AudioFormat != "m4a" || shown.Settings.WhisperModel != "small" {
		t.Fatalf("unexpected settings: %+v", shown.Settings)
	}

	if err := Run([]string{"settings", "set", "--config", cfg, "colour=blue"}); err == nil {
		t.Fatal("expected unknown key to fail")
	}
}

func TestUnknownCommand(t *testing.T) {
	var runErr error
	captureStdout(t, func() {
		runErr = Run([]string{"frobnicate"})
	})
	if runErr == nil {
		t.Fatal("expected unknown command error")
	}
}

func TestParseInterspersed(t *testing.T) {
	fs := flag.NewFlagSet("t", flag.ContinueOnError)
	mode := fs.String("mode", "", "")
	jsonOut := fs.Bool("json", false, "")
	pos, err := parseInterspersed(fs, []string{"a", "--mode", "audio", "b", "--json"})
	if err != nil {
		t.Fatal(err)
	}
	if *mode != "audio" || !*jsonOut || len(pos) != 2 || pos[0] != "a" || pos[1] != "b" {
		t.Fatalf("unexpected parse: mode=%q json=%v pos=%v", *mode, *jsonOut, pos)
	}
}
