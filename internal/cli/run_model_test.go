package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"ytcmd/internal/jobs"
	"ytcmd/internal/ytdlp"
)

func TestRunModelTracksEvents(t *testing.T) {
	job := jobs.New(ytdlp.ShellSpec("true"))
	m := newRunModel(job, make(chan jobs.Event))

	steps := []jobs.Event{
		{Kind: jobs.EventLog, Log: "[progress]  10.0% of 5.00MiB at 1.00MiB/s ETA 00:04"},
		{Kind: jobs.EventProgress, Progress: 10},
		{Kind: jobs.EventLog, Log: "[progress]  55.0% of 5.00MiB at 1.00MiB/s ETA 00:02"},
		{Kind: jobs.EventProgress, Progress: 55},
	}
	var model tea.Model = m
	for _, e := range steps {
		model, _ = model.Update(jobEventMsg(e))
	}
	rm := model.(runModel)
	if rm.percent != 55 || len(rm.logs) != 2 || rm.done {
		t.Fatalf("unexpected state: percent=%v logs=%d done=%v", rm.percent, len(rm.logs), rm.done)
	}
	if rm.status.ETA != "00:02" {
		t.Fatalf("expected status from log lines, got %+v", rm.status)
	}
	if view := rm.View(); !strings.Contains(view, "55.0%") || !strings.Contains(view, "ETA 00:02") {
		t.Fatalf("view missing progress:\n%s", view)
	}

	model, cmd := model.Update(jobEventMsg(jobs.Event{Kind: jobs.EventComplete, Success: true}))
	rm = model.(runModel)
	if !rm.done || !rm.success || rm.percent != 100 {
		t.Fatalf("unexpected final state: %+v", rm)
	}
	if cmd == nil {
		t.Fatal("expected quit command on completion")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.Quit on completion")
	}
}

func TestRunModelKeepsLastLogLines(t *testing.T) {
	m := newRunModel(jobs.New(ytdlp.ShellSpec("true")), make(chan jobs.Event))
	var model tea.Model = m
	for i := 0; i < visibleLogLines+5; i++ {
		model, _ = model.Update(jobEventMsg(jobs.Event{Kind: jobs.EventLog, Log: strings.Repeat("x", i+1)}))
	}
	rm := model.(runModel)
	if len(rm.logs) != visibleLogLines || rm.logs[0] != strings.Repeat("x", 6) {
		t.Fatalf("unexpected window: %v", rm.logs)
	}
}

func TestRunModelFirstKeyCancels(t *testing.T) {
	m := newRunModel(jobs.New(ytdlp.ShellSpec("true")), make(chan jobs.Event))
	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	rm := model.(runModel)
	if !rm.cancelling || cmd != nil {
		t.Fatalf("first ctrl+c should cancel without quitting: %+v", rm)
	}
	if _, cmd = rm.Update(tea.KeyMsg{Type: tea.KeyCtrlC}); cmd == nil {
		t.Fatal("second ctrl+c should quit")
	}
}
