package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/erickim73/lineclient/pkg/protocol"
)

// writes a config file into a temp dir and returns its path
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Address() != "localhost:7878" {
		t.Fatalf("expected localhost:7878, got %s", cfg.Address())
	}
	if cfg.BufferSize != 1024 {
		t.Fatalf("expected buffer size 1024, got %d", cfg.BufferSize)
	}
	if cfg.GetTerminator() != protocol.LF {
		t.Fatalf("expected lf terminator, got %s", cfg.GetTerminator())
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
host: 127.0.0.1
port: 9000
network: tcp4
terminator: cr
flush_after_write: false
dial_timeout_ms: 250
prompt: ""
history_dir: /tmp/transcripts
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Address() != "127.0.0.1:9000" {
		t.Fatalf("expected 127.0.0.1:9000, got %s", cfg.Address())
	}
	if cfg.Network != "tcp4" {
		t.Fatalf("expected tcp4, got %s", cfg.Network)
	}
	if cfg.GetTerminator() != protocol.CR {
		t.Fatalf("expected cr terminator, got %s", cfg.GetTerminator())
	}
	if cfg.FlushAfterWrite {
		t.Fatalf("expected flush_after_write false")
	}
	if cfg.DialTimeout != 250*time.Millisecond {
		t.Fatalf("expected 250ms dial timeout, got %s", cfg.DialTimeout)
	}
	if cfg.Prompt != "" {
		t.Fatalf("expected empty prompt, got %q", cfg.Prompt)
	}
	if cfg.HistoryDir != "/tmp/transcripts" {
		t.Fatalf("expected history dir, got %q", cfg.HistoryDir)
	}

	// untouched keys keep defaults
	if cfg.BufferSize != 1024 || cfg.ExitKeyword != "exit" {
		t.Fatalf("expected defaults for missing keys, got buffer=%d exit=%q", cfg.BufferSize, cfg.ExitKeyword)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "port: 9000\nterminator: cr\n")

	cfg := DefaultConfig()
	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	configFile, showHistory, err := ParseFlags(fs, cfg, []string{"-config", path, "-terminator", "crlf", "-dial-timeout", "100"})
	if err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	if configFile != path {
		t.Fatalf("expected config path %s, got %s", path, configFile)
	}
	if showHistory {
		t.Fatalf("show-history should default to false")
	}

	cfg, err = LoadFromFile(configFile)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	ApplyFlags(fs, cfg)

	if cfg.Port != 9000 {
		t.Fatalf("expected port from file, got %d", cfg.Port)
	}
	if cfg.GetTerminator() != protocol.CRLF {
		t.Fatalf("expected flag to override terminator, got %s", cfg.GetTerminator())
	}
	if cfg.DialTimeout != 100*time.Millisecond {
		t.Fatalf("expected 100ms dial timeout, got %s", cfg.DialTimeout)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = 70000
	cfg.Network = "udp"
	cfg.Terminator = "semicolon"
	cfg.BufferSize = 0
	cfg.LogLevel = "verbos"
	cfg.LogFormat = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	for _, want := range []string{"port 70000", "udp", "semicolon", "buffer size", "verbos", "xml"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %q, got %v", want, err)
		}
	}
}
