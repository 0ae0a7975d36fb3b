package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
[mainConfig]
port = 9000

[chatConfig]
bufferMode = "memory"
dispatchPollSeconds = 5
`)
	conf, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if conf.MainConfig.Port != 9000 {
		t.Fatalf("expected port 9000, got %d", conf.MainConfig.Port)
	}
	if conf.ChatConfig.BufferMode != "memory" {
		t.Fatalf("expected memory buffer, got %s", conf.ChatConfig.BufferMode)
	}
	if got := conf.ChatConfig.DispatchPollInterval(); got != 5*time.Second {
		t.Fatalf("expected 5s poll, got %s", got)
	}
	if got := conf.ChatConfig.FlushInterval(); got != 5*time.Minute {
		t.Fatalf("expected default 5m flush, got %s", got)
	}
	if got := conf.ChatConfig.BufferTTL(); got != 24*time.Hour {
		t.Fatalf("expected default 24h ttl, got %s", got)
	}
	if conf.ChatConfig.HistoryMaxLimit != 100 {
		t.Fatalf("expected default history max 100, got %d", conf.ChatConfig.HistoryMaxLimit)
	}
}

func TestLoadFileEnvOverride(t *testing.T) {
	t.Setenv("CHAT_JWT_SECRET", "from-env")
	t.Setenv("CHAT_MYSQL_PASSWORD", "db-pass")
	path := writeConfig(t, `
[jwtConfig]
secret = "from-file"
`)
	conf, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if conf.JWTConfig.Secret != "from-env" {
		t.Fatalf("expected env secret, got %s", conf.JWTConfig.Secret)
	}
	if conf.MysqlConfig.Password != "db-pass" {
		t.Fatalf("expected env db password, got %s", conf.MysqlConfig.Password)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadFileMalformed(t *testing.T) {
	path := writeConfig(t, "[mainConfig\nport = ")
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected decode error")
	}
}
