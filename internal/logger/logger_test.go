package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNew_JSONLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log, closeFn, err := New(Options{Level: "warn", Format: "json", Output: &buf})
	if err != nil {
		t.Fatal(err)
	}
	log.Info("hidden")
	log.Warn("shown", zap.String("locator", "ci.yml"))
	closeFn()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["msg"] != "shown" || entry["locator"] != "ci.yml" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNew_File(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "wfedit.log")
	log, closeFn, err := New(Options{Level: "debug", Output: &buf, File: path})
	if err != nil {
		t.Fatal(err)
	}
	log.Debug("to both")
	closeFn()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"msg":"to both"`) {
		t.Errorf("log file = %q", data)
	}
	if !strings.Contains(buf.String(), "to both") {
		t.Errorf("console = %q", buf.String())
	}
}

func TestNew_Invalid(t *testing.T) {
	if _, _, err := New(Options{Level: "loud"}); err == nil {
		t.Error("New() accepted level loud")
	}
	if _, _, err := New(Options{Format: "xml"}); err == nil {
		t.Error("New() accepted format xml")
	}
}

func TestInstall(t *testing.T) {
	var buf bytes.Buffer
	_, restore, err := Install(Options{Output: &buf})
	if err != nil {
		t.Fatal(err)
	}
	zap.L().Info("global")
	restore()
	if !strings.Contains(buf.String(), "global") {
		t.Errorf("global logger not installed: %q", buf.String())
	}
}
