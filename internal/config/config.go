package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	DefaultConfigDir  = ".helion"
	DefaultConfigFile = "config.json"
	DefaultDBFile     = ".helion/helion.db"
)

// Load reads the config file (if present) and returns a populated Config.
// Environment variables override file values (e.g. HELION_JIRA_API_TOKEN
// overrides jira.api_token). The configPath flag may override the default
// location.
func Load(configPath string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix("helion")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(filepath.Join(home, DefaultConfigDir))
	}

	setDefaults(v, home)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !isNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// No config file yet; defaults and env apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Database.Path = expandHome(cfg.Database.Path, home)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to disk as JSON.
func Save(cfg *Config, configPath string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("cannot determine home directory: %w", err)
	}

	if configPath == "" {
		configPath = filepath.Join(home, DefaultConfigDir, DefaultConfigFile)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("serialising config: %w", err)
	}

	return os.WriteFile(configPath, data, 0o600)
}

func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("environment", "dev")

	v.SetDefault("server.port", 8080)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", filepath.Join(home, DefaultDBFile))
	v.SetDefault("database.dsn", "")

	v.SetDefault("ollama.base_url", "http://localhost:11434")
	v.SetDefault("ollama.model", "llama3.2")
	v.SetDefault("ollama.timeout_sec", 120)
	v.SetDefault("ollama.temperature", 0.0)
	v.SetDefault("ollama.top_p", 1.0)
	v.SetDefault("ollama.repeat_penalty", 1.0)
	v.SetDefault("ollama.seed", 42)

	v.SetDefault("jira.issue_type", "Task")
	v.SetDefault("jira.epic_issue_type", "Epic")
	v.SetDefault("jira.timeout_sec", 30)

	v.SetDefault("retention.enabled", true)
	v.SetDefault("retention.hours", 48)
	v.SetDefault("retention.schedule", "@hourly")

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.jwt_secret", "change-me-in-production")
	v.SetDefault("auth.expire_minutes", 60)
}

// validate rejects configuration values that would misbehave at runtime.
func validate(cfg *Config) error {
	if cfg.Ollama.TimeoutSec <= 0 || cfg.Ollama.TimeoutSec > 300 {
		return fmt.Errorf("ollama.timeout_sec must be in (0, 300], got %d", cfg.Ollama.TimeoutSec)
	}
	if cfg.Ollama.Temperature < 0 || cfg.Ollama.Temperature > 2 {
		return fmt.Errorf("ollama.temperature must be in [0, 2], got %v", cfg.Ollama.Temperature)
	}
	if cfg.Ollama.TopP < 0 || cfg.Ollama.TopP > 1 {
		return fmt.Errorf("ollama.top_p must be in [0, 1], got %v", cfg.Ollama.TopP)
	}
	if cfg.Jira.TimeoutSec <= 0 || cfg.Jira.TimeoutSec > 120 {
		return fmt.Errorf("jira.timeout_sec must be in (0, 120], got %d", cfg.Jira.TimeoutSec)
	}
	if cfg.Retention.Hours < 1 || cfg.Retention.Hours > 8760 {
		return fmt.Errorf("retention.hours must be between 1 and 8760, got %d", cfg.Retention.Hours)
	}
	if cfg.Auth.Enabled && strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return fmt.Errorf("auth.jwt_secret must be set when auth is enabled")
	}
	if cfg.Auth.ExpireMinutes < 1 || cfg.Auth.ExpireMinutes > 10080 {
		return fmt.Errorf("auth.expire_minutes must be between 1 and 10080, got %d", cfg.Auth.ExpireMinutes)
	}
	if u := strings.ToLower(strings.TrimSpace(cfg.Ollama.BaseURL)); u != "" &&
		!strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return fmt.Errorf("ollama.base_url must use http or https")
	}
	if u := strings.ToLower(strings.TrimSpace(cfg.Jira.BaseURL)); u != "" &&
		!strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return fmt.Errorf("jira.base_url must use http or https")
	}
	return nil
}

// ConfigPath returns the effective config file path.
func ConfigPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile), nil
}

func expandHome(path, home string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

func isNotExist(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file")
}
