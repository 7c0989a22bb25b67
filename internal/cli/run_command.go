package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"ytcmd/internal/command"
	"ytcmd/internal/config"
	"ytcmd/internal/jobs"
	"ytcmd/internal/model"
	"ytcmd/internal/ytdlp"
)

func runDownload(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	cf := addCommandFlags(fs)
	literal := fs.String("command", "", "run this literal shell command instead of generating one")
	plain := fs.Bool("plain", false, "print output lines instead of the progress view")
	save := fs.Bool("save", false, "record the command in history")
	fs.SetOutput(flag.CommandLine.Output())
	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}

	var (
		spec     ytdlp.Spec
		settings config.Settings
		item     model.HistoryItem
	)
	if cmd := strings.TrimSpace(*literal); cmd != "" {
		if settings, err = loadSettings(*cf.config); err != nil {
			return err
		}
		spec = ytdlp.ShellSpec(ytdlp.AugmentProgress(cmd))
		spec.Display = cmd
	} else {
		req, opts, s, err := cf.resolve(positional)
		if err != nil {
			return err
		}
		settings = s
		inv, _, ok := command.GenerateFor(req, opts)
		if !ok {
			return errNoCommand
		}
		spec = ytdlp.ArgvSpec(ytdlp.AugmentArgv(inv.Argv()))
		spec.Display = inv.Display()
		item = model.HistoryItem{URL: req.URL, Mode: req.Mode, Command: inv.Display()}
	}
	if !settings.ExecutionAllowed() {
		return config.ErrExecutionDisabled
	}
	if *save && item.URL != "" {
		if err := saveHistory(settings, item); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	job := jobs.New(spec)
	if *plain || !stdoutIsTTY() {
		return runPlain(ctx, job)
	}
	return runInteractive(ctx, job)
}

// runPlain streams output lines to stdout and returns once the job is done.
func runPlain(ctx context.Context, job *jobs.Job) error {
	fmt.Println(mutedStyle.Render("$ " + job.Command()))
	var mu sync.Mutex
	emit := func(e jobs.Event) {
		if e.Kind != jobs.EventLog {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		fmt.Println(e.Log)
	}
	if err := job.Start(ctx, emit); err != nil {
		return err
	}
	<-job.Done()
	return jobResult(job)
}

func runInteractive(ctx context.Context, job *jobs.Job) error {
	events := make(chan jobs.Event, 64)
	emit := func(e jobs.Event) { events <- e }

	m := newRunModel(job, events)
	p := tea.NewProgram(m, tea.WithContext(ctx))
	go func() {
		if err := job.Start(ctx, emit); err != nil {
			p.Send(runStartErrMsg{err: err})
		}
	}()
	finalModel, err := p.Run()
	// Keep the job unblocked once the view is gone.
	go func() {
		for {
			select {
			case <-events:
			case <-job.Done():
				return
			}
		}
	}()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		_ = job.Cancel()
		return err
	}
	if fm, ok := finalModel.(runModel); ok && !fm.done {
		_ = job.Cancel()
	}
	<-job.Done()
	return jobResult(job)
}

func jobResult(job *jobs.Job) error {
	snap := job.Snapshot()
	if snap.Status == model.StatusSuccess {
		return nil
	}
	if snap.Error != "" {
		return fmt.Errorf("download failed: %s", snap.Error)
	}
	return errors.New("download failed")
}
