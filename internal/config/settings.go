package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ytcmd/internal/command"
	"ytcmd/internal/runstore"
)

const (
	DefaultConfigPath     = "config/settings.json"
	DefaultListen         = "127.0.0.1:8080"
	DefaultOutputPath     = "."
	DefaultHistoryDB      = "data/history.db"
	DefaultRateLimitRPS   = 5.0
	DefaultRateLimitBurst = 10
)

// Environment variables that disable local execution.
const (
	EnvVercel     = "VERCEL"
	EnvRestricted = "YTCMD_RESTRICTED"
)

// ErrExecutionDisabled is returned when the environment forbids spawning
// downloads. Command generation stays available.
var ErrExecutionDisabled = errors.New("download execution is disabled in this environment")

type Settings struct {
	Listen           string   `json:"listen,omitempty"`
	OutputPath       string   `json:"output_path,omitempty"`
	Restricted       bool     `json:"restricted,omitempty"`
	KillOnDisconnect *bool    `json:"kill_on_disconnect,omitempty"`
	AudioFormat      string   `json:"audio_format,omitempty"`
	SubLangs         string   `json:"sub_langs,omitempty"`
	WhisperModel     string   `json:"whisper_model,omitempty"`
	HistoryDB        string   `json:"history_db,omitempty"`
	RateLimitRPS     float64  `json:"rate_limit_rps,omitempty"`
	RateLimitBurst   int      `json:"rate_limit_burst,omitempty"`
	AllowedOrigins   []string `json:"allowed_origins,omitempty"`
}

type UpdateResult struct {
	ConfigPath string   `json:"config_path"`
	Settings   Settings `json:"settings"`
}

func Defaults() Settings {
	opts := command.DefaultOptions()
	kill := true
	return Settings{
		Listen:           DefaultListen,
		OutputPath:       DefaultOutputPath,
		KillOnDisconnect: &kill,
		AudioFormat:      opts.AudioFormat,
		SubLangs:         opts.SubLangs,
		WhisperModel:     opts.WhisperModel,
		HistoryDB:        DefaultHistoryDB,
		RateLimitRPS:     DefaultRateLimitRPS,
		RateLimitBurst:   DefaultRateLimitBurst,
		AllowedOrigins:   []string{},
	}
}

// Normalize fills unset fields with defaults and drops invalid values.
func Normalize(raw Settings) Settings {
	def := Defaults()
	norm := raw
	norm.Listen = firstNonEmpty(norm.Listen, def.Listen)
	norm.OutputPath = firstNonEmpty(norm.OutputPath, def.OutputPath)
	if norm.KillOnDisconnect == nil {
		norm.KillOnDisconnect = def.KillOnDisconnect
	}
	norm.AudioFormat = strings.ToLower(firstNonEmpty(norm.AudioFormat, def.AudioFormat))
	norm.SubLangs = firstNonEmpty(norm.SubLangs, def.SubLangs)
	norm.WhisperModel = firstNonEmpty(norm.WhisperModel, def.WhisperModel)
	norm.HistoryDB = firstNonEmpty(norm.HistoryDB, def.HistoryDB)
	if norm.RateLimitRPS <= 0 {
		norm.RateLimitRPS = def.RateLimitRPS
	}
	if norm.RateLimitBurst <= 0 {
		norm.RateLimitBurst = def.RateLimitBurst
	}
	norm.AllowedOrigins = normalizeList(norm.AllowedOrigins)
	return norm
}

func normalizeList(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, v := range raw {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func NormalizeConfigPath(configPath string) string {
	if p := strings.TrimSpace(configPath); p != "" {
		return p
	}
	return DefaultConfigPath
}

// Load reads the settings file. A missing file yields the defaults.
func Load(configPath string) (Settings, error) {
	path := NormalizeConfigPath(configPath)
	var raw Settings
	if err := runstore.ReadJSON(path, &raw); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Defaults(), nil
		}
		return Settings{}, err
	}
	return Normalize(raw), nil
}

func Save(configPath string, s Settings) (UpdateResult, error) {
	path := NormalizeConfigPath(configPath)
	norm := Normalize(s)
	if err := runstore.WriteJSON(path, norm); err != nil {
		return UpdateResult{}, err
	}
	return UpdateResult{ConfigPath: path, Settings: norm}, nil
}

// Update loads the settings, applies fn and saves the result.
func Update(configPath string, fn func(*Settings) error) (UpdateResult, error) {
	current, err := Load(configPath)
	if err != nil {
		return UpdateResult{}, err
	}
	if err := fn(&current); err != nil {
		return UpdateResult{}, err
	}
	return Save(configPath, current)
}

// Set assigns one setting from its JSON key and a string value.
func Set(s *Settings, key, value string) error {
	value = strings.TrimSpace(value)
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), "-", "_") {
	case "listen":
		s.Listen = value
	case "output_path":
		s.OutputPath = value
	case "restricted":
		b, err := parseBool(value)
		if err != nil {
			return fmt.Errorf("restricted: %w", err)
		}
		s.Restricted = b
	case "kill_on_disconnect":
		b, err := parseBool(value)
		if err != nil {
			return fmt.Errorf("kill_on_disconnect: %w", err)
		}
		s.KillOnDisconnect = &b
	case "audio_format":
		s.AudioFormat = value
	case "sub_langs":
		s.SubLangs = value
	case "whisper_model":
		s.WhisperModel = value
	case "history_db":
		s.HistoryDB = value
	case "rate_limit_rps":
		var v float64
		if _, err := fmt.Sscanf(value, "%g", &v); err != nil || v <= 0 {
			return fmt.Errorf("rate_limit_rps must be a positive number")
		}
		s.RateLimitRPS = v
	case "rate_limit_burst":
		var v int
		if _, err := fmt.Sscanf(value, "%d", &v); err != nil || v <= 0 {
			return fmt.Errorf("rate_limit_burst must be a positive integer")
		}
		s.RateLimitBurst = v
	case "allowed_origins":
		s.AllowedOrigins = strings.Split(value, ",")
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", raw)
	}
}

// KillsOnDisconnect reports whether a stream job dies with its client.
func (s Settings) KillsOnDisconnect() bool {
	return s.KillOnDisconnect == nil || *s.KillOnDisconnect
}

func (s Settings) CommandOptions() command.Options {
	opts := command.DefaultOptions()
	opts.AudioFormat = firstNonEmpty(s.AudioFormat, opts.AudioFormat)
	opts.SubLangs = firstNonEmpty(s.SubLangs, opts.SubLangs)
	opts.WhisperModel = firstNonEmpty(s.WhisperModel, opts.WhisperModel)
	return opts
}

// StateDir holds the history database and the server lock.
func (s Settings) StateDir() string {
	return filepath.Dir(firstNonEmpty(s.HistoryDB, DefaultHistoryDB))
}

// ExecutionAllowed is false on restricted hosts: when the settings say so or
// a serverless marker is present in the environment.
func (s Settings) ExecutionAllowed() bool {
	return !s.Restricted && !RestrictedByEnv()
}

func RestrictedByEnv() bool {
	for _, key := range []string{EnvVercel, EnvRestricted} {
		if v, ok := os.LookupEnv(key); ok && v != "" && v != "0" {
			return true
		}
	}
	return false
}
