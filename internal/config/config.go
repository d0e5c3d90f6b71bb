package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultHost               = "127.0.0.1"
	defaultPort               = 5000
	defaultOutputDir          = "generated_logs"
	defaultFilePrefix         = "clientlog"
	defaultNumFiles           = 1
	defaultLinesPerFile       = 3000
	defaultMaxPreviewChars    = 20000
	defaultRecentFiles        = 50
	defaultStatusPushInterval = time.Second
	defaultLogLevel           = "info"
	defaultLogMaxSizeMB       = 10
	defaultLogMaxBackups      = 3
	defaultLogMaxAgeDays      = 28
	maxPort                   = 65535
)

var validLogLevels = map[string]struct{}{
	"trace": {}, "debug": {}, "info": {}, "warn": {}, "error": {}, "fatal": {}, "panic": {}, "disabled": {},
}

// Config describes runtime configuration for the service.
type Config struct {
	Host                string        `yaml:"host"`
	Port                int           `yaml:"port"`
	Debug               bool          `yaml:"debug"`
	OutputDir           string        `yaml:"output_dir"`
	FilePrefix          string        `yaml:"file_prefix"`
	DefaultNumFiles     int           `yaml:"default_num_files"`
	DefaultLinesPerFile int           `yaml:"default_lines_per_file"`
	MaxPreviewChars     int           `yaml:"max_preview_chars"`
	RecentFiles         int           `yaml:"recent_files"`
	StatusPushInterval  time.Duration `yaml:"status_push_interval"`
	CORSOrigins         []string      `yaml:"cors_origins"`
	Log                 LogConfig     `yaml:"log"`
}

// LogConfig controls log level and the optional rotating log file.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Host:                defaultHost,
		Port:                defaultPort,
		OutputDir:           defaultOutputDir,
		FilePrefix:          defaultFilePrefix,
		DefaultNumFiles:     defaultNumFiles,
		DefaultLinesPerFile: defaultLinesPerFile,
		MaxPreviewChars:     defaultMaxPreviewChars,
		RecentFiles:         defaultRecentFiles,
		StatusPushInterval:  defaultStatusPushInterval,
		Log: LogConfig{
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
		},
	}
}

// Load reads YAML config from the provided path. If the file does not exist
// or is empty, defaults are returned with no error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, errors.New("empty config path")
	}
	fileData, err := os.ReadFile(path) //nolint:gosec // config path is controlled by deployment
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if len(fileData) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(fileData, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Normalize fills zero values with defaults and tidies list and string fields.
func (c *Config) Normalize() {
	def := Default()
	if strings.TrimSpace(c.Host) == "" {
		c.Host = def.Host
	}
	if c.Port == 0 {
		c.Port = def.Port
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		c.OutputDir = def.OutputDir
	}
	if strings.TrimSpace(c.FilePrefix) == "" {
		c.FilePrefix = def.FilePrefix
	}
	if c.DefaultNumFiles == 0 {
		c.DefaultNumFiles = def.DefaultNumFiles
	}
	if c.DefaultLinesPerFile == 0 {
		c.DefaultLinesPerFile = def.DefaultLinesPerFile
	}
	if c.MaxPreviewChars == 0 {
		c.MaxPreviewChars = def.MaxPreviewChars
	}
	if c.RecentFiles == 0 {
		c.RecentFiles = def.RecentFiles
	}
	if c.StatusPushInterval == 0 {
		c.StatusPushInterval = def.StatusPushInterval
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = def.Log.MaxSizeMB
	}
	c.CORSOrigins = normalizeOrigins(c.CORSOrigins)
}

// Validate rejects values the service cannot run with.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > maxPort {
		return fmt.Errorf("invalid port: %d (must be 1..%d)", c.Port, maxPort)
	}
	if c.DefaultNumFiles < 0 {
		return fmt.Errorf("invalid default_num_files: %d (must be >= 0)", c.DefaultNumFiles)
	}
	if c.DefaultLinesPerFile < 1 {
		return fmt.Errorf("invalid default_lines_per_file: %d (must be >= 1)", c.DefaultLinesPerFile)
	}
	if c.MaxPreviewChars < 1 {
		return fmt.Errorf("invalid max_preview_chars: %d (must be >= 1)", c.MaxPreviewChars)
	}
	if c.RecentFiles < 1 {
		return fmt.Errorf("invalid recent_files: %d (must be >= 1)", c.RecentFiles)
	}
	if c.StatusPushInterval < 0 {
		return fmt.Errorf("invalid status_push_interval: %s", c.StatusPushInterval)
	}
	if _, ok := validLogLevels[c.Log.Level]; !ok {
		return fmt.Errorf("invalid log level: %q", c.Log.Level)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return errors.New("invalid log rotation settings: values must be >= 0")
	}
	return nil
}

// Addr is the listen address built from host and port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func normalizeOrigins(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	normalized := make([]string, 0, len(in))
	for _, origin := range in {
		o := strings.TrimRight(strings.TrimSpace(origin), "/")
		if o == "" {
			continue
		}
		if _, ok := seen[o]; ok {
			continue
		}
		seen[o] = struct{}{}
		normalized = append(normalized, o)
	}
	return normalized
}
