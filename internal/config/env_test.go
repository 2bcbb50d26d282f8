package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"notetube/internal/domain"
)

// TestApplyEnvOverridesSettings checks NOTETUBE_* overlays.
func TestApplyEnvOverridesSettings(t *testing.T) {
	t.Setenv("NOTETUBE_PROVIDER", "remote")
	t.Setenv("NOTETUBE_FORMAT", "pdf")
	t.Setenv("NOTETUBE_POLL_INTERVAL", "2")
	t.Setenv("NOTETUBE_MAX_WAIT", "not-a-number")
	t.Setenv(APIKeyEnv, "key-123")

	got := ApplyEnv(DefaultSettings())
	if got.Provider != domain.ProviderRemote {
		t.Fatalf("provider = %q, want remote", got.Provider)
	}
	if got.Format != "pdf" {
		t.Fatalf("format = %q, want pdf", got.Format)
	}
	if got.Remote.PollIntervalSeconds != 2 {
		t.Fatalf("poll interval = %d, want 2", got.Remote.PollIntervalSeconds)
	}
	if got.Remote.MaxWaitMinutes != 30 {
		t.Fatalf("max wait = %d, want default 30", got.Remote.MaxWaitMinutes)
	}
	if got.Remote.APIKey != "key-123" {
		t.Fatalf("api key = %q", got.Remote.APIKey)
	}
}

// TestLoadDotEnvKeepsExistingValues checks .env never overrides the shell.
func TestLoadDotEnvKeepsExistingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "NOTETUBE_TEST_FROM_FILE=file\nNOTETUBE_TEST_SHELL=file\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("NOTETUBE_TEST_SHELL", "shell")
	t.Setenv("NOTETUBE_TEST_FROM_FILE", "")
	os.Unsetenv("NOTETUBE_TEST_FROM_FILE")

	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("NOTETUBE_TEST_FROM_FILE"); got != "file" {
		t.Fatalf("from file = %q, want file", got)
	}
	if got := os.Getenv("NOTETUBE_TEST_SHELL"); got != "shell" {
		t.Fatalf("shell value = %q, want shell", got)
	}
}

// TestValidateRejectsBadSettings checks struct rules and the key rule.
func TestValidateRejectsBadSettings(t *testing.T) {
	bad := DefaultSettings()
	bad.Format = "rtf"
	if err := Validate(bad); err == nil {
		t.Fatal("expected error for unknown format")
	}

	bounds := DefaultSettings()
	bounds.Summary.MinLength = bounds.Summary.MaxLength + 1
	if err := Validate(bounds); err == nil {
		t.Fatal("expected error for min above max")
	}

	remote := DefaultSettings()
	remote.Provider = domain.ProviderRemote
	if err := Validate(remote); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("Validate(remote) error = %v, want ErrMissingAPIKey", err)
	}
	remote.Remote.APIKey = "key"
	if err := Validate(remote); err != nil {
		t.Fatalf("Validate(remote with key) error = %v", err)
	}
}

// TestNormalizeFillsDefaults checks trimming and fallback values.
func TestNormalizeFillsDefaults(t *testing.T) {
	got := Normalize(domain.Settings{
		Provider:  " Remote ",
		OutputDir: " /out ",
		Format:    "DOCX",
		Remote:    domain.RemoteSettings{BaseURL: "https://api.example.com/"},
	})
	if got.Provider != domain.ProviderRemote || got.OutputDir != "/out" {
		t.Fatalf("normalized = %+v", got)
	}
	if got.Format != "word" || got.Language != "auto" {
		t.Fatalf("format/language = %q/%q", got.Format, got.Language)
	}
	if got.Tools.Ytdlp != "yt-dlp" || got.Remote.BaseURL != "https://api.example.com" {
		t.Fatalf("tools/base = %+v %q", got.Tools, got.Remote.BaseURL)
	}
}

// TestLoadAppliesEnvironment reads the file and overlays variables.
func TestLoadAppliesEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	if err := os.WriteFile(path, []byte(`{"outputDir":"/from-file","format":"pdf"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("NOTETUBE_FORMAT", "word")

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.OutputDir != "/from-file" || got.Format != "word" {
		t.Fatalf("settings = %+v", got)
	}
}
