package cli

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"ytcmd/internal/config"
)

func runSettings(args []string) error {
	if len(args) == 0 {
		printSettingsUsage()
		return nil
	}
	switch args[0] {
	case "show":
		return runSettingsShow(args[1:])
	case "set":
		return runSettingsSet(args[1:])
	case "help", "-h", "--help":
		printSettingsUsage()
		return nil
	default:
		printSettingsUsage()
		return fmt.Errorf("unknown settings subcommand %q", args[0])
	}
}

func runSettingsShow(args []string) error {
	fs := flag.NewFlagSet("settings show", flag.ContinueOnError)
	cfg := fs.String("config", config.DefaultConfigPath, "settings file path")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	configPath := config.NormalizeConfigPath(*cfg)
	settings, err := loadSettings(configPath)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]any{
			"config_path":       configPath,
			"settings":          settings,
			"execution_enabled": settings.ExecutionAllowed(),
		})
	}

	fmt.Printf("config: %s\n", configPath)
	printSettings(settings)
	fmt.Printf("execution_enabled: %t\n", settings.ExecutionAllowed())
	if config.RestrictedByEnv() {
		fmt.Println(mutedStyle.Render("  (disabled by " + config.EnvVercel + "/" + config.EnvRestricted + " in the environment)"))
	}
	return nil
}

// runSettingsSet takes key=value pairs or alternating key value arguments.
func runSettingsSet(args []string) error {
	fs := flag.NewFlagSet("settings set", flag.ContinueOnError)
	cfg := fs.String("config", config.DefaultConfigPath, "settings file path")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	pairs, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	assignments, err := parseAssignments(pairs)
	if err != nil {
		return err
	}
	if len(assignments) == 0 {
		printSettingsUsage()
		return fmt.Errorf("settings set requires at least one key=value")
	}

	res, err := config.Update(*cfg, func(s *config.Settings) error {
		for _, a := range assignments {
			if err := config.Set(s, a[0], a[1]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(res)
	}
	fmt.Printf("updated settings in %s\n", res.ConfigPath)
	printSettings(res.Settings)
	return nil
}

func parseAssignments(args []string) ([][2]string, error) {
	out := make([][2]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if key, value, ok := strings.Cut(args[i], "="); ok {
			out = append(out, [2]string{key, value})
			continue
		}
		if i+1 >= len(args) {
			return nil, fmt.Errorf("missing value for %q", args[i])
		}
		out = append(out, [2]string{args[i], args[i+1]})
		i++
	}
	return out, nil
}

func printSettings(s config.Settings) {
	fmt.Printf("listen: %s\n", s.Listen)
	fmt.Printf("output_path: %s\n", s.OutputPath)
	fmt.Printf("restricted: %t\n", s.Restricted)
	fmt.Printf("kill_on_disconnect: %t\n", s.KillsOnDisconnect())
	fmt.Printf("audio_format: %s\n", s.AudioFormat)
	fmt.Printf("sub_langs: %s\n", s.SubLangs)
	fmt.Printf("whisper_model: %s\n", s.WhisperModel)
	fmt.Printf("history_db: %s\n", s.HistoryDB)
	fmt.Printf("rate_limit_rps: %s\n", strconv.FormatFloat(s.RateLimitRPS, 'f', -1, 64))
	fmt.Printf("rate_limit_burst: %d\n", s.RateLimitBurst)
	if len(s.AllowedOrigins) == 0 {
		fmt.Println("allowed_origins: (same origin only)")
		return
	}
	fmt.Printf("allowed_origins: %s\n", strings.Join(s.AllowedOrigins, ","))
}

func printSettingsUsage() {
	fmt.Println("usage:")
	fmt.Println("  ytcmd settings show [--json]")
	fmt.Println("  ytcmd settings set key=value [key=value...]")
	fmt.Println()
	fmt.Println("keys: listen, output_path, restricted, kill_on_disconnect, audio_format,")
	fmt.Println("      sub_langs, whisper_model, history_db, rate_limit_rps, rate_limit_burst,")
	fmt.Println("      allowed_origins (comma separated)")
}
