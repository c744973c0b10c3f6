package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLogLevel(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("parseLogLevel() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseLogLevel() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("PUSHCAST_TEST_FROM_FILE=file\nPUSHCAST_TEST_PRESET=file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("PUSHCAST_TEST_PRESET", "process")
	t.Setenv("PUSHCAST_TEST_FROM_FILE", "")
	_ = os.Unsetenv("PUSHCAST_TEST_FROM_FILE")

	if err := loadEnvFile(path, true); err != nil {
		t.Fatalf("loadEnvFile() error = %v", err)
	}

	if got := os.Getenv("PUSHCAST_TEST_FROM_FILE"); got != "file" {
		t.Errorf("PUSHCAST_TEST_FROM_FILE = %q, want file", got)
	}
	if got := os.Getenv("PUSHCAST_TEST_PRESET"); got != "process" {
		t.Errorf("PUSHCAST_TEST_PRESET = %q, existing variables must win", got)
	}
}

func TestLoadEnvFile_Missing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), ".env")

	if err := loadEnvFile(missing, false); err != nil {
		t.Errorf("missing default env file should be ignored, got %v", err)
	}
	if err := loadEnvFile(missing, true); err == nil {
		t.Error("missing explicit env file should be an error")
	}
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("PORT", "3900")

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Port != 3900 {
		t.Errorf("Port = %d, want 3900 from PORT", cfg.Port)
	}
	if configSource("") != "defaults" {
		t.Errorf("configSource(\"\") = %q", configSource(""))
	}
}
