package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/atotto/clipboard"

	"ytcmd/internal/command"
	"ytcmd/internal/config"
	"ytcmd/internal/history"
	"ytcmd/internal/model"
)

var errNoCommand = errors.New("no command: the URL is empty or not a supported YouTube/Bilibili link")

// writeClipboard is swapped in tests.
var writeClipboard = clipboard.WriteAll

type genResult struct {
	URL      string         `json:"url"`
	Mode     model.Mode     `json:"mode"`
	Platform model.Platform `json:"platform"`
	Playlist bool           `json:"playlist"`
	Command  string         `json:"command"`
	Argv     []string       `json:"argv"`
}

// commandFlags are shared by gen and run.
type commandFlags struct {
	url          *string
	mode         *string
	output       *string
	config       *string
	audioFormat  *string
	subLangs     *string
	whisperModel *string
}

func addCommandFlags(fs *flag.FlagSet) commandFlags {
	return commandFlags{
		url:          fs.String("url", "", "video or playlist URL (or pass it as the first argument)"),
		mode:         fs.String("mode", string(model.ModeVideo), "video|audio|subtitles|transcribe"),
		output:       fs.String("output", "", "output directory (default from settings)"),
		config:       fs.String("config", config.DefaultConfigPath, "settings file path"),
		audioFormat:  fs.String("audio-format", "", "audio format override (mp3, m4a, opus...)"),
		subLangs:     fs.String("sub-langs", "", "subtitle languages: en|zh|all or a yt-dlp --sub-langs value"),
		whisperModel: fs.String("whisper-model", "", "whisper model for transcription"),
	}
}

// resolve turns the flags into a request, its options and the settings used.
func (f commandFlags) resolve(positional []string) (model.DownloadRequest, command.Options, config.Settings, error) {
	settings, err := loadSettings(*f.config)
	if err != nil {
		return model.DownloadRequest{}, command.Options{}, config.Settings{}, err
	}
	mode, ok := model.ParseMode(*f.mode)
	if !ok {
		return model.DownloadRequest{}, command.Options{}, config.Settings{}, fmt.Errorf("unknown mode %q (want video, audio, subtitles or transcribe)", *f.mode)
	}
	url := urlArg(*f.url, positional)
	if url == "" {
		if url, err = promptRequired("URL"); err != nil {
			return model.DownloadRequest{}, command.Options{}, config.Settings{}, err
		}
	}
	output := strings.TrimSpace(*f.output)
	if output == "" {
		output = settings.OutputPath
	}

	opts := settings.CommandOptions()
	if v := strings.TrimSpace(*f.audioFormat); v != "" {
		opts.AudioFormat = v
	}
	if v := strings.TrimSpace(*f.subLangs); v != "" {
		opts.SubLangs = v
	}
	if v := strings.TrimSpace(*f.whisperModel); v != "" {
		opts.WhisperModel = v
	}
	return model.DownloadRequest{URL: url, Mode: mode, OutputPath: output}, opts, settings, nil
}

func runGen(args []string) error {
	fs := flag.NewFlagSet("gen", flag.ContinueOnError)
	cf := addCommandFlags(fs)
	argvOut := fs.Bool("argv", false, "print the argument vector (shell-escaped) instead of the display form")
	copyOut := fs.Bool("copy", false, "copy the command to the clipboard")
	save := fs.Bool("save", false, "record the command in history")
	title := fs.String("title", "", "title stored with --save")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}

	req, opts, settings, err := cf.resolve(positional)
	if err != nil {
		return err
	}
	inv, cls, ok := command.GenerateFor(req, opts)
	if !ok {
		return errNoCommand
	}

	text := inv.Display()
	if *argvOut {
		text = inv.QuotedArgv()
	}
	if *copyOut {
		if err := writeClipboard(text); err != nil {
			fmt.Fprintln(os.Stderr, errorStyle.Render("clipboard unavailable: "+err.Error()))
		} else if !*jsonOut {
			fmt.Fprintln(os.Stderr, mutedStyle.Render("copied to clipboard"))
		}
	}
	if *save {
		if err := saveHistory(settings, model.HistoryItem{
			URL:     req.URL,
			Mode:    req.Mode,
			Command: inv.Display(),
			Title:   strings.TrimSpace(*title),
		}); err != nil {
			return err
		}
	}

	if *jsonOut {
		return printJSON(genResult{
			URL:      req.URL,
			Mode:     req.Mode,
			Platform: cls.Platform,
			Playlist: cls.IsPlaylist,
			Command:  inv.Display(),
			Argv:     inv.Argv(),
		})
	}
	fmt.Println(text)
	return nil
}

func saveHistory(settings config.Settings, item model.HistoryItem) error {
	store, err := history.Open(settings.HistoryDB)
	if err != nil {
		return err
	}
	defer store.Close()
	if _, err := store.Add(context.Background(), item); err != nil {
		return err
	}
	return nil
}
