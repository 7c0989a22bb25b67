package cli

import (
	"errors"
	"flag"
	"fmt"

	"ytcmd/internal/config"
)

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	cfg := fs.String("config", config.DefaultConfigPath, "settings file path")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := config.Init(config.InitOptions{ConfigPath: *cfg})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(res)
	}
	if res.CreatedConfig {
		fmt.Printf("created %s\n", res.ConfigPath)
	} else {
		fmt.Printf("using existing %s\n", res.ConfigPath)
	}
	fmt.Printf("state: %s\n", res.StateDir)
	printDoctor(res.DoctorResult)
	return nil
}

func runDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	cfg := fs.String("config", config.DefaultConfigPath, "settings file path")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	settings, err := loadSettings(*cfg)
	if err != nil {
		return err
	}
	res, err := config.Doctor(config.DoctorOptions{ConfigPath: *cfg, Settings: settings})
	if err != nil {
		return err
	}
	if *jsonOut {
		if err := printJSON(res); err != nil {
			return err
		}
	} else {
		printDoctor(res)
	}
	if !res.OK {
		return errors.New("doctor checks failed")
	}
	return nil
}

func printDoctor(res config.DoctorResult) {
	for _, c := range res.Checks {
		status := okStyle.Render("ok")
		switch {
		case !c.OK && c.Optional:
			status = mutedStyle.Render("missing (optional)")
		case !c.OK:
			status = errorStyle.Render("fail")
		}
		fmt.Printf("%s: %s (%s)\n", c.Name, status, c.Message)
	}
	fmt.Printf("execution_enabled: %t\n", res.ExecutionEnabled)
	if res.OK {
		fmt.Println("doctor: all checks passed")
	}
}
