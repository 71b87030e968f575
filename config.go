package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// --- Config Types ---

type Config struct {
	Discord       DiscordBotConfig `yaml:"discord"`
	DataDir       string           `yaml:"data_dir"`
	TmpDir        string           `yaml:"tmp_dir"`
	Timezone      string           `yaml:"timezone"`
	PageCharLimit int              `yaml:"page_char_limit"`
	HTTP          HTTPConfig       `yaml:"http"`
	Logging       LoggingConfig    `yaml:"logging"`

	baseDir string
	loc     *time.Location
}

// DiscordBotConfig holds configuration for the Discord gateway session.
type DiscordBotConfig struct {
	Token string `yaml:"token"` // $ENV_VAR supported, default $BOT_TOKEN
	AppID string `yaml:"app_id,omitempty"`
	// SyncOnReady overwrites global and guild commands on every READY.
	SyncOnReady bool `yaml:"sync_on_ready,omitempty"`
}

// HTTPConfig configures the ops server (health + metrics). Empty Addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

type LoggingConfig struct {
	Level     string `yaml:"level,omitempty"`       // "debug", "info", "warn", "error" (default "info")
	Format    string `yaml:"format,omitempty"`      // "text", "json" (default "text")
	File      string `yaml:"file,omitempty"`        // default <log_dir>/bot.log
	MaxSizeMB int    `yaml:"max_size_mb,omitempty"` // default 50
	MaxFiles  int    `yaml:"max_files,omitempty"`   // default 5
}

func (c LoggingConfig) levelOrDefault() string {
	if c.Level != "" {
		return c.Level
	}
	return "info"
}
func (c LoggingConfig) formatOrDefault() string {
	if c.Format != "" {
		return c.Format
	}
	return "text"
}
func (c LoggingConfig) maxSizeMBOrDefault() int {
	if c.MaxSizeMB > 0 {
		return c.MaxSizeMB
	}
	return 50
}
func (c LoggingConfig) maxFilesOrDefault() int {
	if c.MaxFiles > 0 {
		return c.MaxFiles
	}
	return 5
}

const (
	defaultTimezone      = "Asia/Taipei"
	defaultPageCharLimit = 1990
)

// envFilePriority lists the dotenv files tried in order; only the first
// existing one is loaded.
var envFilePriority = []string{
	".env.dev",
	".env.development",
	".env.prod",
	".env.production",
	".env",
}

// configVariantSuffixes are tried before the plain file name, e.g.
// data/bot_setting_dev.json wins over data/bot_setting.json.
var configVariantSuffixes = []string{"dev", "development", "prod", "production"}

// --- Config Loading ---

// loadDotEnv loads the first existing dotenv file from dir. Variables
// already present in the environment are not overridden.
func loadDotEnv(dir string) string {
	for _, name := range envFilePriority {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			logWarn("dotenv load failed", "path", path, "error", err)
			return ""
		}
		return path
	}
	return ""
}

// resolveConfigPath returns the highest-priority variant of path that
// exists, or path itself.
func resolveConfigPath(path string) string {
	path = filepath.Clean(path)
	dir, file := filepath.Split(path)
	ext := filepath.Ext(file)
	name := strings.TrimSuffix(file, ext)
	for _, suffix := range configVariantSuffixes {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%s%s", name, suffix, ext))
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return path
}

// loadConfig reads the YAML config. A missing file is not an error: the
// bot can run on defaults plus $BOT_TOKEN.
func loadConfig(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}
	path = resolveConfigPath(path)

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg.baseDir = filepath.Dir(path)

	// Defaults.
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.TmpDir == "" {
		cfg.TmpDir = "tmp"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = defaultTimezone
	}
	if cfg.PageCharLimit <= 0 {
		cfg.PageCharLimit = defaultPageCharLimit
	}
	if cfg.Discord.Token == "" {
		cfg.Discord.Token = "$BOT_TOKEN"
	}

	cfg.resolveSecrets()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", cfg.Timezone, err)
	}
	cfg.loc = loc
	return &cfg, nil
}

// resolveEnvRef resolves a "$ENV_VAR" reference; other values are returned
// unchanged.
func resolveEnvRef(value, fieldName string) string {
	if !strings.HasPrefix(value, "$") {
		return value
	}
	envKey := value[1:]
	if envKey == "" {
		return value
	}
	envVal := os.Getenv(envKey)
	if envVal == "" {
		logWarn("env var reference not set", "field", fieldName, "envVar", envKey)
		return ""
	}
	return envVal
}

// resolveSecrets resolves $ENV_VAR references in secret config fields.
func (cfg *Config) resolveSecrets() {
	cfg.Discord.Token = resolveEnvRef(cfg.Discord.Token, "discord.token")
	cfg.Discord.AppID = resolveEnvRef(cfg.Discord.AppID, "discord.app_id")
}

// dataPath resolves a file inside the data dir, honouring _dev/_prod variants.
func (cfg *Config) dataPath(name string) string {
	return resolveConfigPath(filepath.Join(cfg.DataDir, name))
}

func (cfg *Config) pidFilePath() string {
	return filepath.Join(cfg.TmpDir, "pids.txt")
}

func (cfg *Config) location() *time.Location {
	if cfg.loc != nil {
		return cfg.loc
	}
	return time.Local
}
