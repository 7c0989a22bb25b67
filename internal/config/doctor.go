package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"ytcmd/internal/runstore"
	"ytcmd/internal/ytdlp"
)

type DoctorOptions struct {
	ConfigPath string
	Settings   Settings
}

type DoctorResult struct {
	OK               bool          `json:"ok"`
	ExecutionEnabled bool          `json:"execution_enabled"`
	Checks           []DoctorCheck `json:"checks"`
}

// DoctorCheck is one preflight result. Optional checks never fail the run;
// whisper is only needed by the subtitle fallback and transcription.
type DoctorCheck struct {
	Name     string `json:"name"`
	OK       bool   `json:"ok"`
	Optional bool   `json:"optional,omitempty"`
	Message  string `json:"message"`
}

type InitOptions struct {
	ConfigPath string
}

type InitResult struct {
	ConfigPath    string       `json:"config_path"`
	StateDir      string       `json:"state_dir"`
	CreatedConfig bool         `json:"created_config"`
	Settings      Settings     `json:"settings"`
	DoctorResult  DoctorResult `json:"doctor"`
}

func Doctor(opts DoctorOptions) (DoctorResult, error) {
	configPath := NormalizeConfigPath(opts.ConfigPath)
	settings := Normalize(opts.Settings)

	checks := make([]DoctorCheck, 0, 6)
	dep := ytdlp.DependencyStatus()
	checks = append(checks,
		DoctorCheck{
			Name:    "dependency:yt-dlp",
			OK:      dep.YTDLPFound,
			Message: dependencyMessage(dep.YTDLPFound, dep.YTDLPPath, "yt-dlp"),
		},
		DoctorCheck{
			Name:    "dependency:ffmpeg",
			OK:      dep.FFmpegFound,
			Message: dependencyMessage(dep.FFmpegFound, dep.FFmpegPath, "ffmpeg"),
		},
		DoctorCheck{
			Name:     "dependency:whisper",
			OK:       dep.WhisperFound,
			Optional: true,
			Message:  dependencyMessage(dep.WhisperFound, dep.WhisperPath, "whisper"),
		},
	)

	stateOK, stateMessage := ensureWritableDir(settings.StateDir())
	checks = append(checks, DoctorCheck{Name: "directory:state", OK: stateOK, Message: stateMessage})

	cfgOK, cfgMessage := ensureWritableDir(filepath.Dir(configPath))
	checks = append(checks, DoctorCheck{Name: "directory:config", OK: cfgOK, Message: cfgMessage})

	outOK, outMessage := ensureWritableDir(settings.OutputPath)
	checks = append(checks, DoctorCheck{Name: "directory:output", OK: outOK, Message: outMessage})

	ok := true
	for _, c := range checks {
		if !c.OK && !c.Optional {
			ok = false
			break
		}
	}
	return DoctorResult{OK: ok, ExecutionEnabled: settings.ExecutionAllowed(), Checks: checks}, nil
}

// Init writes a default settings file when none exists and runs the doctor.
func Init(opts InitOptions) (InitResult, error) {
	configPath := NormalizeConfigPath(opts.ConfigPath)

	created := false
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		created = true
		if _, err := Save(configPath, Defaults()); err != nil {
			return InitResult{}, err
		}
	}
	settings, err := Load(configPath)
	if err != nil {
		return InitResult{}, err
	}
	if err := runstore.Mkdir(settings.StateDir()); err != nil {
		return InitResult{}, err
	}
	doc, err := Doctor(DoctorOptions{ConfigPath: configPath, Settings: settings})
	if err != nil {
		return InitResult{}, err
	}
	return InitResult{
		ConfigPath:    configPath,
		StateDir:      settings.StateDir(),
		CreatedConfig: created,
		Settings:      settings,
		DoctorResult:  doc,
	}, nil
}

func dependencyMessage(ok bool, path, name string) string {
	if ok {
		return name + " found at " + path
	}
	return name + " not found on PATH"
}

func ensureWritableDir(path string) (bool, string) {
	if strings.TrimSpace(path) == "" {
		return false, "empty path"
	}
	if err := runstore.Mkdir(path); err != nil {
		return false, err.Error()
	}
	f, err := os.CreateTemp(path, "ytcmd-check-*.tmp")
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return true, "writable"
}
