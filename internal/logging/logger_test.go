package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesJSONToLogFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "nested", "wacored.log")

	logger, err := New(logPath, "test-instance")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Info("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "\"instance\":\"test-instance\"") {
		t.Errorf("log output missing instance field: %s", data)
	}
	if !strings.Contains(string(data), "\"msg\":\"hello\"") {
		t.Errorf("log output missing message: %s", data)
	}
}

func TestTraceAddsTraceField(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "wacored.log")

	logger, err := New(logPath, "test-instance")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	Trace(logger, "quiet detail")
	_ = logger.Sync()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "\"trace\":true") {
		t.Errorf("log output missing trace field: %s", data)
	}
}
