package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps CLI flag names to configuration keys.
var flagKeys = map[string]string{
	"host":         "server.host",
	"port":         "server.port",
	"metrics-addr": "server.metrics_addr",
	"rules-dir":    "rules.dir",
	"tags-glob":    "rules.tags_glob",
	"rules-glob":   "rules.rules_glob",
	"skip-invalid": "rules.skip_invalid",
	"watch":        "rules.watch",
	"workers":      "eval.workers",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"db-url":       "db.url",
}

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
// flags may be nil; only flags named in flagKeys are bound.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	d := DefaultConfig()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.metrics_addr", d.Server.MetricsAddr)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout.String())
	v.SetDefault("server.max_batch_size", d.Server.MaxBatchSize)
	v.SetDefault("rules.dir", d.Rules.Dir)
	v.SetDefault("rules.tags_glob", d.Rules.TagsGlob)
	v.SetDefault("rules.rules_glob", d.Rules.RulesGlob)
	v.SetDefault("rules.skip_invalid", d.Rules.SkipInvalid)
	v.SetDefault("rules.watch", d.Rules.Watch)
	v.SetDefault("eval.workers", d.Eval.Workers)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("db.url", "")

	// Bind environment variables with TR_ prefix
	v.SetEnvPrefix("TR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	// Load config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Security check: reject secrets in config files
	// Secrets must be environment-only per 12-factor principles
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("server.host"),
			Port:           v.GetInt("server.port"),
			MetricsAddr:    v.GetString("server.metrics_addr"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
			MaxBatchSize:   v.GetInt("server.max_batch_size"),
		},
		Rules: RulesConfig{
			Dir:         v.GetString("rules.dir"),
			TagsGlob:    v.GetString("rules.tags_glob"),
			RulesGlob:   v.GetString("rules.rules_glob"),
			SkipInvalid: v.GetBool("rules.skip_invalid"),
			Watch:       v.GetBool("rules.watch"),
		},
		Eval: EvalConfig{
			Workers: v.GetInt("eval.workers"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
		DBURL: v.GetString("db.url"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks port range, positive sizes and durations, and log settings.
func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Server.MaxBatchSize <= 0 {
		return fmt.Errorf("max_batch_size must be positive, got %d", cfg.Server.MaxBatchSize)
	}
	if cfg.Eval.Workers <= 0 {
		return fmt.Errorf("eval.workers must be positive, got %d", cfg.Eval.Workers)
	}
	if cfg.Rules.Dir == "" {
		return fmt.Errorf("rules.dir must not be empty")
	}
	switch cfg.Log.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of trace, debug, info, warn, error, got %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", cfg.Log.Format)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets (12-factor principle).
// InConfig looks at the file only, so TR_API_KEY in the environment is allowed.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("api_key") || v.InConfig("server.api_key") {
		return fmt.Errorf("API keys not allowed in config files (use TR_API_KEY environment variable)")
	}
	return nil
}
