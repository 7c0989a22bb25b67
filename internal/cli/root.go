package cli

import "fmt"

func Run(args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "gen":
		return runGen(args[1:])
	case "run":
		return runDownload(args[1:])
	case "serve":
		return runServe(args[1:])
	case "history":
		return runHistory(args[1:])
	case "settings":
		return runSettings(args[1:])
	case "init":
		return runInit(args[1:])
	case "doctor":
		return runDoctor(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("ytcmd: yt-dlp command generator and download runner")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  ytcmd gen https://youtu.be/<id>")
	fmt.Println("  ytcmd gen --mode subtitles --output ~/Videos <url>")
	fmt.Println("  ytcmd run --mode audio <url>")
	fmt.Println("  ytcmd serve")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  gen       print the yt-dlp command for a URL")
	fmt.Println("  run       generate and execute a command with live progress")
	fmt.Println("  serve     HTTP API and streaming channel for the web UI")
	fmt.Println("  history   list or clear recently generated commands")
	fmt.Println("  settings  show/update settings")
	fmt.Println("  init      create the settings file and run environment checks")
	fmt.Println("  doctor    check yt-dlp, ffmpeg, whisper and writable directories")
	fmt.Println()
	fmt.Println("Modes: video (default), audio, subtitles, transcribe")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Use --json on commands for machine-readable output")
	fmt.Println("  - Execution is disabled when settings.restricted is set or VERCEL/YTCMD_RESTRICTED is present")
}
