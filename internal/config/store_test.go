package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"notetube/internal/domain"
)

// TestDefaultSettings verifies baseline defaults are present and valid.
func TestDefaultSettings(t *testing.T) {
	cfg := DefaultSettings()
	if cfg.Language != "auto" {
		t.Fatalf("language = %q, want auto", cfg.Language)
	}
	if cfg.Provider != domain.ProviderLocal {
		t.Fatalf("provider = %q, want local", cfg.Provider)
	}
	if !strings.HasSuffix(filepath.ToSlash(cfg.ModelPath), "/.notetube/models") {
		t.Fatalf("model path = %q", cfg.ModelPath)
	}
	if cfg.OutputDir == "" {
		t.Fatal("expected non-empty output dir")
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate(defaults) error = %v", err)
	}
}

// TestJSONStoreLoadMissingReturnsDefaults checks first-run behavior.
func TestJSONStoreLoadMissingReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "settings.json")
	store := NewJSONStore(path)

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Language != "auto" {
		t.Fatalf("language = %q, want auto", got.Language)
	}
}

// TestJSONStoreSaveAndLoadRoundTrip checks persisted settings fidelity.
func TestJSONStoreSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	store := NewJSONStore(path)
	want := DefaultSettings()
	want.ModelPath = "/models/base.bin"
	want.OutputDir = "/out"
	want.Language = "en"
	want.Format = "pdf"

	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Fatalf("settings = %+v, want %+v", got, want)
	}
}

// TestJSONStoreNeverPersistsAPIKey keeps the secret out of the file.
func TestJSONStoreNeverPersistsAPIKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store := NewJSONStore(path)
	cfg := DefaultSettings()
	cfg.Remote.APIKey = "secret-key"

	if err := store.Save(cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(string(data), "secret-key") {
		t.Fatalf("settings file contains api key: %s", data)
	}
}

// TestJSONStoreLoadPartialKeepsDefaults checks older files gain new fields.
func TestJSONStoreLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	data, _ := json.Marshal(map[string]string{"outputDir": "/custom"})
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := NewJSONStore(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.OutputDir != "/custom" {
		t.Fatalf("output dir = %q, want /custom", got.OutputDir)
	}
	if got.Summary.MaxLength != 200 || got.Remote.PollIntervalSeconds != 5 {
		t.Fatalf("defaults lost: %+v", got)
	}
}

// TestJSONStoreLoadInvalidJSON checks parse error handling.
func TestJSONStoreLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not-json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	store := NewJSONStore(path)
	if _, err := store.Load(); err == nil {
		t.Fatal("expected json parse error")
	}
}
