package cli

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"ytcmd/internal/config"
	"ytcmd/internal/history"
	"ytcmd/internal/runstore"
	"ytcmd/internal/server"
)

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	cfg := fs.String("config", config.DefaultConfigPath, "settings file path")
	listen := fs.String("listen", "", "listen address (default from settings)")
	restricted := fs.Bool("restricted", false, "disable download execution regardless of settings")
	verbose := fs.Bool("verbose", false, "log every request")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	settings, err := loadSettings(*cfg)
	if err != nil {
		return err
	}
	if v := strings.TrimSpace(*listen); v != "" {
		settings.Listen = v
	}
	if *restricted {
		settings.Restricted = true
	}
	logger := newLogger(*verbose)

	lock, err := runstore.AcquireStateLock(settings.StateDir(), settings.Listen)
	if err != nil {
		return err
	}
	defer func() {
		_ = lock.Release()
	}()

	store, err := history.Open(settings.HistoryDB)
	if err != nil {
		return err
	}
	defer store.Close()

	if !settings.ExecutionAllowed() {
		logger.Warn("download execution disabled; serving command generation and metadata only")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(server.Options{
		Settings: settings,
		History:  store,
		Logger:   logger,
	})
	return srv.ListenAndServe(ctx, settings.Listen)
}
