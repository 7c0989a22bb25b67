package ytdlp

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	out   []string
	err   []string
	exits int
	ok    bool
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		Output: func(stream OutputStream, text string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			if stream == StreamStderr {
				r.err = append(r.err, text)
				return
			}
			r.out = append(r.out, text)
		},
		Exit: func(succeeded bool, err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.exits++
			r.ok = succeeded
		},
	}
}

func TestSpawnStreamsBothOutputs(t *testing.T) {
	rec := &recorder{}
	p, err := Spawn(context.Background(), ShellSpec(`printf 'one\ntwo\r50%%\n'; echo oops >&2`), rec.handlers())
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	ok, err := p.Wait()
	if !ok || err != nil {
		t.Fatalf("expected success, got ok=%v err=%v", ok, err)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !slices.Equal(rec.out, []string{"one", "two", "50%"}) {
		t.Fatalf("unexpected stdout chunks: %q", rec.out)
	}
	if !slices.Equal(rec.err, []string{"oops"}) {
		t.Fatalf("unexpected stderr chunks: %q", rec.err)
	}
	if rec.exits != 1 || !rec.ok {
		t.Fatalf("expected exactly one successful exit, got %d ok=%v", rec.exits, rec.ok)
	}
}

func TestSpawnReportsFailure(t *testing.T) {
	rec := &recorder{}
	p, err := Spawn(context.Background(), ShellSpec("echo broken >&2; exit 3"), rec.handlers())
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	ok, err := p.Wait()
	if ok || err == nil {
		t.Fatalf("expected failure, got ok=%v err=%v", ok, err)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.exits != 1 || rec.ok {
		t.Fatalf("expected exactly one failed exit, got %d ok=%v", rec.exits, rec.ok)
	}
}

func TestSpawnArgvDoesNotUseShell(t *testing.T) {
	rec := &recorder{}
	p, err := Spawn(context.Background(), ArgvSpec([]string{"echo", "$HOME;", "x"}), rec.handlers())
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if ok, err := p.Wait(); !ok || err != nil {
		t.Fatalf("expected success, got %v %v", ok, err)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.out) != 1 || rec.out[0] != "$HOME; x" {
		t.Fatalf("argv was interpreted by a shell: %q", rec.out)
	}
}

func TestKillStopsProcessTree(t *testing.T) {
	rec := &recorder{}
	p, err := Spawn(context.Background(), ShellSpec("sleep 30 & sleep 30; wait"), rec.handlers())
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if err := p.Kill(); err != nil {
		t.Fatalf("kill: %v", err)
	}
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after kill")
	}
	if ok, _ := p.Wait(); ok {
		t.Fatal("killed process must not report success")
	}
	if err := p.Kill(); err != nil {
		t.Fatalf("kill after exit should be a no-op: %v", err)
	}
}

func TestContextCancelKills(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p, err := Spawn(ctx, ShellSpec("sleep 30"), Handlers{})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	cancel()
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after cancel")
	}
}

func TestSpawnRequiresCommand(t *testing.T) {
	if _, err := Spawn(context.Background(), Spec{}, Handlers{}); err == nil {
		t.Fatal("expected error for empty spec")
	}
}

func TestFormatOutput(t *testing.T) {
	if got := FormatOutput(StreamStderr, "x"); got != "[stderr] x" {
		t.Fatalf("unexpected stderr format %q", got)
	}
	if got := FormatOutput(StreamStdout, "x"); got != "x" {
		t.Fatalf("unexpected stdout format %q", got)
	}
}

func TestRunDetached(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	marker := filepath.Join(t.TempDir(), "done")
	p, err := RunDetached("touch "+marker, logger)
	if err != nil {
		t.Fatalf("run detached: %v", err)
	}
	if ok, err := p.Wait(); !ok || err != nil {
		t.Fatalf("expected success: %v %v", ok, err)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Fatalf("detached command did not run: %v", err)
	}
}

func TestDependencyStatusFindsFakeBinaries(t *testing.T) {
	bin := t.TempDir()
	for _, name := range []string{"yt-dlp", "whisper"} {
		if err := os.WriteFile(filepath.Join(bin, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	t.Setenv("PATH", bin)
	report := DependencyStatus()
	if !report.YTDLPFound || !report.WhisperFound {
		t.Fatalf("expected fake binaries found: %+v", report)
	}
	if report.FFmpegFound {
		t.Fatalf("ffmpeg should be missing: %+v", report)
	}
}
