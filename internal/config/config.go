// Package config resolves mailpurge settings from defaults, config.yaml,
// .env files and MAILPURGE_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/joshsymonds/mailpurge/internal/dispatch"
	"github.com/joshsymonds/mailpurge/internal/source"
)

const (
	envPrefix = "MAILPURGE_"
	fileName  = "config.yaml"
)

type Config struct {
	CredentialsDir  string  `yaml:"credentials_dir"`
	BatchSize       int     `yaml:"batch_size"`
	Workers         int     `yaml:"workers"`
	MaxItems        int     `yaml:"max_items"`
	ProtectStarred  bool    `yaml:"protect_starred"`
	LabelMode       string  `yaml:"label_mode"`
	RPS             int     `yaml:"rps"`
	JournalPath     string  `yaml:"journal_path"`
	MetricsTextfile string  `yaml:"metrics_textfile,omitempty"`
	LogLevel        string  `yaml:"log_level"`
}

// Defaults returns the settings used when nothing overrides them.
func Defaults(dir string) Config {
	return Config{
		CredentialsDir: dir,
		BatchSize:      dispatch.DefaultChunkSize,
		Workers:        dispatch.DefaultWorkers,
		ProtectStarred: true,
		LabelMode:      source.ModeAny.String(),
		JournalPath:    filepath.Join(dir, "journal.db"),
		LogLevel:       "info",
	}
}

// Dir returns the config directory. MAILPURGE_CONFIG_DIR wins over the
// user config dir.
func Dir() (string, error) {
	if dir := os.Getenv(envPrefix + "CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "mailpurge"), nil
}

func Path(dir string) string { return filepath.Join(dir, fileName) }

// Load resolves the effective config for dir. A missing config.yaml or .env
// is not an error.
func Load(dir string) (*Config, error) {
	loadDotenv(dir)

	cfg := Defaults(dir)
	data, err := os.ReadFile(Path(dir))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", Path(dir), err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotenv reads .env from the working directory and the config dir.
// Variables already in the environment are kept.
func loadDotenv(dir string) {
	for _, p := range []string{".env", filepath.Join(dir, ".env")} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v := os.Getenv(envPrefix + key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := os.Getenv(envPrefix + key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, key, err)
		}
		*dst = n
		return nil
	}

	str("CREDENTIALS_DIR", &c.CredentialsDir)
	str("LABEL_MODE", &c.LabelMode)
	str("JOURNAL_PATH", &c.JournalPath)
	str("METRICS_TEXTFILE", &c.MetricsTextfile)
	str("LOG_LEVEL", &c.LogLevel)
	for key, dst := range map[string]*int{
		"BATCH_SIZE": &c.BatchSize,
		"WORKERS":    &c.Workers,
		"MAX_ITEMS":  &c.MaxItems,
		"RPS":        &c.RPS,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	if v := os.Getenv(envPrefix + "PROTECT_STARRED"); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sPROTECT_STARRED: %w", envPrefix, err)
		}
		c.ProtectStarred = b
	}
	return nil
}

// normalize clamps numeric settings to the API limits.
func (c *Config) normalize() error {
	c.BatchSize = dispatch.ClampChunkSize(c.BatchSize)
	c.Workers = dispatch.ClampWorkers(c.Workers)
	if c.MaxItems < 0 {
		c.MaxItems = 0
	}
	if c.RPS < 0 {
		c.RPS = 0
	}
	mode, err := source.ParseMode(c.LabelMode)
	if err != nil {
		return err
	}
	c.LabelMode = mode.String()
	return nil
}

// Mode returns the parsed label mode.
func (c *Config) Mode() source.Mode {
	m, _ := source.ParseMode(c.LabelMode)
	return m
}

// Save writes cfg to dir/config.yaml.
func Save(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(Path(dir), data, 0o600)
}
