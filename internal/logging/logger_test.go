package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

// TestNewWritesJSON checks structured output with fields.
func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New("debug", "json", &buf)
	log.WithField("run_id", "r1").Info("stage started")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if entry["run_id"] != "r1" {
		t.Fatalf("run_id = %v, want r1", entry["run_id"])
	}
	if entry["msg"] != "stage started" {
		t.Fatalf("msg = %v", entry["msg"])
	}
}

// TestNewUnknownLevelFallsBackToInfo keeps the logger usable.
func TestNewUnknownLevelFallsBackToInfo(t *testing.T) {
	log := New("loud", "", &bytes.Buffer{})
	if log.GetLevel() != logrus.InfoLevel {
		t.Fatalf("level = %s, want info", log.GetLevel())
	}
}

// TestNewTextFormat selects the text formatter.
func TestNewTextFormat(t *testing.T) {
	var buf bytes.Buffer
	New("info", "text", &buf).Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Fatalf("output = %q, want text format", buf.String())
	}
}
