package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"ytcmd/internal/config"
	"ytcmd/internal/history"
)

func runHistory(args []string) error {
	if len(args) == 0 {
		return runHistoryList(nil)
	}
	switch args[0] {
	case "list":
		return runHistoryList(args[1:])
	case "clear":
		return runHistoryClear(args[1:])
	case "help", "-h", "--help":
		printHistoryUsage()
		return nil
	default:
		if len(args[0]) > 0 && args[0][0] == '-' {
			return runHistoryList(args)
		}
		printHistoryUsage()
		return fmt.Errorf("unknown history subcommand %q", args[0])
	}
}

func openHistory(configPath string) (*history.Store, error) {
	settings, err := loadSettings(configPath)
	if err != nil {
		return nil, err
	}
	return history.Open(settings.HistoryDB)
}

func runHistoryList(args []string) error {
	fs := flag.NewFlagSet("history list", flag.ContinueOnError)
	cfg := fs.String("config", config.DefaultConfigPath, "settings file path")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openHistory(*cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	items, err := store.List(context.Background())
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(items)
	}
	if len(items) == 0 {
		fmt.Println("history: (empty)")
		return nil
	}
	for i, item := range items {
		when := time.UnixMilli(item.Timestamp).Local().Format("2006-01-02 15:04")
		label := item.URL
		if item.Title != "" {
			label = item.Title + " (" + item.URL + ")"
		}
		fmt.Printf("%2d. %s [%s] %s\n", i+1, mutedStyle.Render(when), item.Mode, label)
		fmt.Printf("    %s\n", firstLine(item.Command))
	}
	return nil
}

func runHistoryClear(args []string) error {
	fs := flag.NewFlagSet("history clear", flag.ContinueOnError)
	cfg := fs.String("config", config.DefaultConfigPath, "settings file path")
	yes := fs.Bool("yes", false, "skip confirmation")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*yes {
		ok, err := promptConfirm("clear command history? [y/N] ")
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("aborted")
		}
	}
	store, err := openHistory(*cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Clear(context.Background()); err != nil {
		return err
	}
	fmt.Println("history cleared")
	return nil
}

func printHistoryUsage() {
	fmt.Println("usage:")
	fmt.Println("  ytcmd history [list] [--json]")
	fmt.Println("  ytcmd history clear [--yes]")
}
