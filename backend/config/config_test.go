package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIListenAddr != ":8080" || cfg.WSListenAddr != ":8888" {
		t.Fatalf("listen addrs=%q,%q", cfg.APIListenAddr, cfg.WSListenAddr)
	}
	if cfg.PingInterval != 5*time.Second || cfg.PongWait != 7*time.Second {
		t.Fatalf("ping=%s pong=%s", cfg.PingInterval, cfg.PongWait)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Fatalf("AllowedOrigins=%v, want [*]", cfg.AllowedOrigins)
	}
	if err = cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoad_FlagsOverride(t *testing.T) {
	cfg, err := Load([]string{"-w", ":9999", "--log-level", "warn", "--ws-send-queue", "8"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WSListenAddr != ":9999" || cfg.SendQueueSize != 8 {
		t.Fatalf("cfg=%+v", cfg)
	}
	lvl, err := cfg.Level()
	if err != nil || lvl != zerolog.WarnLevel {
		t.Fatalf("Level=%v,%v, want warn", lvl, err)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("SIGNAL_WS_LISTEN_ADDR", ":7777")
	t.Setenv("SIGNAL_WS_PING_INTERVAL", "1s")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WSListenAddr != ":7777" || cfg.PingInterval != time.Second {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	data := []byte("api-listen-addr: \":6060\"\nallowed-origins:\n  - app.example.com\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load([]string{"--config", path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIListenAddr != ":6060" {
		t.Fatalf("APIListenAddr=%q, want :6060", cfg.APIListenAddr)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "app.example.com" {
		t.Fatalf("AllowedOrigins=%v", cfg.AllowedOrigins)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load([]string{"--no-such-flag"}); !errors.Is(err, ErrParse) {
		t.Fatalf("unknown flag err=%v, want ErrParse", err)
	}
	if _, err := Load([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}); !errors.Is(err, ErrParse) {
		t.Fatalf("missing config err=%v, want ErrParse", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, ErrFormat},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, ErrParse},
		{"pong before ping", func(c *Config) { c.PongWait = c.PingInterval }, ErrParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(nil)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			tt.mutate(cfg)
			if err = cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate err=%v, want %v", err, tt.wantErr)
			}
		})
	}
}
