package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Listen != DefaultListen || s.AudioFormat != "mp3" || !s.KillsOnDisconnect() {
		t.Fatalf("unexpected defaults: %+v", s)
	}
}

func TestSaveNormalizesAndRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "settings.json")
	kill := false
	res, err := Save(path, Settings{
		AudioFormat:      " M4A ",
		KillOnDisconnect: &kill,
		RateLimitRPS:     -1,
		AllowedOrigins:   []string{" http://a ", "", "http://a"},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if res.ConfigPath != path {
		t.Fatalf("config path = %q", res.ConfigPath)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.AudioFormat != "m4a" {
		t.Fatalf("audio format = %q", got.AudioFormat)
	}
	if got.KillsOnDisconnect() {
		t.Fatal("expected kill_on_disconnect=false to survive")
	}
	if got.RateLimitRPS != DefaultRateLimitRPS {
		t.Fatalf("rate limit = %v", got.RateLimitRPS)
	}
	if len(got.AllowedOrigins) != 1 || got.AllowedOrigins[0] != "http://a" {
		t.Fatalf("origins = %v", got.AllowedOrigins)
	}
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{nope"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse JSON") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestUpdateAppliesSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	res, err := Update(path, func(s *Settings) error {
		if err := Set(s, "whisper-model", "small"); err != nil {
			return err
		}
		return Set(s, "restricted", "yes")
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.Settings.WhisperModel != "small" || !res.Settings.Restricted {
		t.Fatalf("unexpected settings: %+v", res.Settings)
	}
	if res.Settings.CommandOptions().WhisperModel != "small" {
		t.Fatal("command options should carry the whisper model")
	}
	if res.Settings.ExecutionAllowed() {
		t.Fatal("restricted settings must disable execution")
	}
}

func TestSetRejectsBadValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"restricted", "maybe"},
		{"rate_limit_rps", "0"},
		{"rate_limit_burst", "x"},
		{"colour", "blue"},
	}
	for _, tc := range tests {
		var s Settings
		if err := Set(&s, tc.key, tc.value); err == nil {
			t.Errorf("Set(%q, %q) should fail", tc.key, tc.value)
		}
	}
}

func TestExecutionAllowedHonorsEnvironment(t *testing.T) {
	t.Setenv(EnvVercel, "")
	t.Setenv(EnvRestricted, "")
	s := Defaults()
	if !s.ExecutionAllowed() {
		t.Fatal("expected execution to be allowed by default")
	}
	t.Setenv(EnvVercel, "1")
	if s.ExecutionAllowed() {
		t.Fatal("expected VERCEL to disable execution")
	}
	t.Setenv(EnvVercel, "")
	t.Setenv(EnvRestricted, "true")
	if s.ExecutionAllowed() {
		t.Fatal("expected YTCMD_RESTRICTED to disable execution")
	}
}

func TestStateDir(t *testing.T) {
	s := Settings{HistoryDB: "/var/lib/ytcmd/history.db"}
	if got := s.StateDir(); got != "/var/lib/ytcmd" {
		t.Fatalf("state dir = %q", got)
	}
}
