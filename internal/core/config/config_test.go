package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func unsetAPIKeys() {
	os.Unsetenv("TR_API_KEY")
	for _, k := range []string{"TR_API_KEY_1", "TR_API_KEY_2", "TR_API_KEY_3"} {
		os.Unsetenv(k)
	}
}

func TestAPIKeys(t *testing.T) {
	unsetAPIKeys()

	t.Run("no keys disables auth", func(t *testing.T) {
		keys, err := APIKeys()
		if err != nil {
			t.Fatalf("APIKeys() error = %v, want nil", err)
		}
		if len(keys) != 0 {
			t.Errorf("expected 0 keys, got %d", len(keys))
		}
	})

	t.Run("single key", func(t *testing.T) {
		os.Setenv("TR_API_KEY", "  0123456789abcdef  ")
		defer os.Unsetenv("TR_API_KEY")

		keys, err := APIKeys()
		if err != nil {
			t.Fatalf("APIKeys() error = %v, want nil", err)
		}
		if len(keys) != 1 || keys[0] != "0123456789abcdef" {
			t.Errorf("keys = %q, want [0123456789abcdef]", keys)
		}
	})

	t.Run("numbered keys stop at first gap", func(t *testing.T) {
		os.Setenv("TR_API_KEY_1", "key-one-0123456789")
		os.Setenv("TR_API_KEY_2", "key-two-0123456789")
		os.Setenv("TR_API_KEY_3", "")
		defer unsetAPIKeys()

		keys, err := APIKeys()
		if err != nil {
			t.Fatalf("APIKeys() error = %v, want nil", err)
		}
		if len(keys) != 2 {
			t.Errorf("expected 2 keys, got %d", len(keys))
		}
	})

	t.Run("short key", func(t *testing.T) {
		os.Setenv("TR_API_KEY", "short")
		defer os.Unsetenv("TR_API_KEY")

		if _, err := APIKeys(); err == nil {
			t.Error("expected error for short key")
		}
	})

	t.Run("key with whitespace", func(t *testing.T) {
		os.Setenv("TR_API_KEY", "0123456789 abcdef")
		defer os.Unsetenv("TR_API_KEY")

		if _, err := APIKeys(); err == nil {
			t.Error("expected error for embedded whitespace")
		}
	})

	t.Run("duplicate key", func(t *testing.T) {
		os.Setenv("TR_API_KEY", "same-key-0123456789")
		os.Setenv("TR_API_KEY_1", "same-key-0123456789")
		defer unsetAPIKeys()

		if _, err := APIKeys(); err == nil {
			t.Error("expected error for duplicate key")
		}
	})
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("", nil)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil", err)
	}

	want := DefaultConfig()
	if cfg.Server != want.Server {
		t.Errorf("Server = %+v, want %+v", cfg.Server, want.Server)
	}
	if cfg.Rules != want.Rules {
		t.Errorf("Rules = %+v, want %+v", cfg.Rules, want.Rules)
	}
	if cfg.Eval.Workers != 4 {
		t.Errorf("Eval.Workers = %d, want 4", cfg.Eval.Workers)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v, want info/json", cfg.Log)
	}
	if cfg.DBURL != "" {
		t.Errorf("DBURL = %q, want empty", cfg.DBURL)
	}
	if cfg.Server.Addr() != "0.0.0.0:50051" {
		t.Errorf("Addr() = %q, want 0.0.0.0:50051", cfg.Server.Addr())
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tagrules.yaml")
	content := `server:
  port: 6000
  request_timeout: 5s
rules:
  dir: /etc/tagrules
  skip_invalid: true
eval:
  workers: 8
log:
  level: DEBUG
  format: text
db:
  url: sqlite:///tmp/tagrules.db
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path, nil)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil", err)
	}
	if cfg.Server.Port != 6000 {
		t.Errorf("Port = %d, want 6000", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %v, want 5s", cfg.Server.RequestTimeout)
	}
	if cfg.Rules.Dir != "/etc/tagrules" || !cfg.Rules.SkipInvalid {
		t.Errorf("Rules = %+v", cfg.Rules)
	}
	if cfg.Eval.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Eval.Workers)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v, want debug/text", cfg.Log)
	}
	if cfg.DBURL != "sqlite:///tmp/tagrules.db" {
		t.Errorf("DBURL = %q", cfg.DBURL)
	}
	// Unset keys keep defaults
	if cfg.Rules.TagsGlob != "*.tags" {
		t.Errorf("TagsGlob = %q, want *.tags", cfg.Rules.TagsGlob)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("TR_SERVER_PORT", "7000")
	t.Setenv("TR_EVAL_WORKERS", "2")
	t.Setenv("TR_RULES_WATCH", "true")

	cfg, err := LoadConfig("", nil)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Eval.Workers != 2 {
		t.Errorf("Workers = %d, want 2", cfg.Eval.Workers)
	}
	if !cfg.Rules.Watch {
		t.Error("Watch = false, want true")
	}
}

func TestLoadConfigFlags(t *testing.T) {
	t.Setenv("TR_SERVER_PORT", "7000")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 50051, "")
	flags.String("log-level", "info", "")
	flags.String("rules-dir", "./config", "")
	if err := flags.Parse([]string{"--port=8000"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig("", flags)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("Port = %d, want 8000 (flag over env)", cfg.Server.Port)
	}
	// Unchanged flags do not override defaults
	if cfg.Log.Level != "info" {
		t.Errorf("Level = %q, want info", cfg.Log.Level)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"zero timeout", func(c *Config) { c.Server.RequestTimeout = 0 }},
		{"zero batch size", func(c *Config) { c.Server.MaxBatchSize = 0 }},
		{"zero workers", func(c *Config) { c.Eval.Workers = 0 }},
		{"empty rules dir", func(c *Config) { c.Rules.Dir = "" }},
		{"unknown level", func(c *Config) { c.Log.Level = "verbose" }},
		{"unknown format", func(c *Config) { c.Log.Format = "xml" }},
	}

	if err := validateConfig(DefaultConfig()); err != nil {
		t.Fatalf("validateConfig(default) error = %v, want nil", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := validateConfig(cfg); err == nil {
				t.Error("validateConfig() error = nil, want error")
			}
		})
	}
}
