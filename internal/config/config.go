// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dotandev/fewdat/internal/errors"
	"github.com/dotandev/fewdat/internal/script"
)

// Config represents the general configuration for fewdat
type Config struct {
	LogLevel string `json:"log_level,omitempty"`
	// Permissive skips unknown opcodes one byte at a time instead of
	// failing the decode.
	Permissive bool `json:"permissive,omitempty"`
	// BackwardLabels inserts markers for labels whose target was already
	// passed when the label was first referenced.
	BackwardLabels bool `json:"backward_labels"`
	// LegacyReturnTitle decodes 0xF0 as ReturnTitle for older titles.
	LegacyReturnTitle bool   `json:"legacy_return_title,omitempty"`
	Workers           int    `json:"workers,omitempty"`
	OutputDir         string `json:"output_dir,omitempty"`
	HistoryPath       string `json:"history_path,omitempty"`
	// OpcodeTable is a version constraint the built-in opcode table must
	// satisfy, e.g. ">= 1.2".
	OpcodeTable string `json:"opcode_table,omitempty"`
	Tracing     bool   `json:"tracing,omitempty"`
	OTLPURL     string `json:"otlp_url,omitempty"`
	// CrashReporting opts in to anonymous crash reports.
	CrashReporting bool   `json:"crash_reporting,omitempty"`
	CrashSentryDSN string `json:"crash_sentry_dsn,omitempty"`
	CrashEndpoint  string `json:"crash_endpoint,omitempty"`
}

var defaultConfig = &Config{
	LogLevel:       "info",
	BackwardLabels: true,
	Workers:        1,
	HistoryPath:    filepath.Join(os.ExpandEnv("$HOME"), ".fewdat", "history.db"),
	OTLPURL:        "http://localhost:4318",
}

// GetConfigPath returns the path to the fewdat configuration directory
func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".fewdat"), nil
}

// GetGeneralConfigPath returns the path to the general configuration file
func GetGeneralConfigPath() (string, error) {
	configDir, err := GetConfigPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// LoadConfig loads the general configuration from disk (JSON format)
func LoadConfig() (*Config, error) {
	configPath, err := GetGeneralConfigPath()
	if err != nil {
		return nil, err
	}

	// If file doesn't exist, return default config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.WrapConfigError("failed to read config file", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, errors.WrapConfigError("failed to parse config file", err)
	}

	return config, nil
}

// Load builds the configuration from defaults, the first TOML file found and
// FEWDAT_* environment variables, in that order of precedence.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.loadFromFile(); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.LogLevel = getEnv("FEWDAT_LOG_LEVEL", c.LogLevel)
	c.OutputDir = getEnv("FEWDAT_OUTPUT_DIR", c.OutputDir)
	c.HistoryPath = getEnv("FEWDAT_HISTORY_PATH", c.HistoryPath)
	c.OpcodeTable = getEnv("FEWDAT_OPCODE_TABLE", c.OpcodeTable)
	c.OTLPURL = getEnv("FEWDAT_OTLP_URL", c.OTLPURL)
	c.CrashSentryDSN = getEnv("FEWDAT_SENTRY_DSN", c.CrashSentryDSN)
	c.CrashEndpoint = getEnv("FEWDAT_CRASH_ENDPOINT", c.CrashEndpoint)

	for key, dst := range map[string]*bool{
		"FEWDAT_PERMISSIVE":          &c.Permissive,
		"FEWDAT_BACKWARD_LABELS":     &c.BackwardLabels,
		"FEWDAT_LEGACY_RETURN_TITLE": &c.LegacyReturnTitle,
		"FEWDAT_TRACING":             &c.Tracing,
		"FEWDAT_CRASH_REPORTING":     &c.CrashReporting,
	} {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = parseBool(v)
		}
	}

	if v := os.Getenv("FEWDAT_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.WrapConfigError("FEWDAT_WORKERS must be an integer", err)
		}
		c.Workers = n
	}
	return nil
}

func (c *Config) loadFromFile() error {
	paths := []string{
		".fewdat.toml",
		filepath.Join(os.ExpandEnv("$HOME"), ".fewdat.toml"),
		"/etc/fewdat/config.toml",
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return c.loadTOML(path)
	}

	return nil
}

func (c *Config) loadTOML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WrapConfigError("failed to read "+path, err)
	}

	return c.parseTOML(string(data))
}

func (c *Config) parseTOML(content string) error {
	lines := strings.Split(content, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)

		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "[") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), "\"'")

		switch key {
		case "log_level":
			c.LogLevel = value
		case "permissive":
			c.Permissive = parseBool(value)
		case "backward_labels":
			c.BackwardLabels = parseBool(value)
		case "legacy_return_title":
			c.LegacyReturnTitle = parseBool(value)
		case "workers":
			n, err := strconv.Atoi(value)
			if err != nil {
				return errors.WrapConfigError("workers must be an integer", err)
			}
			c.Workers = n
		case "output_dir":
			c.OutputDir = value
		case "history_path":
			c.HistoryPath = value
		case "opcode_table":
			c.OpcodeTable = value
		case "tracing":
			c.Tracing = parseBool(value)
		case "otlp_url":
			c.OTLPURL = value
		case "crash_reporting":
			c.CrashReporting = parseBool(value)
		case "crash_sentry_dsn":
			c.CrashSentryDSN = value
		case "crash_endpoint":
			c.CrashEndpoint = value
		}
	}

	return nil
}

// SaveConfig saves the configuration to disk (JSON format)
func SaveConfig(config *Config) error {
	configPath, err := GetGeneralConfigPath()
	if err != nil {
		return err
	}

	// Ensure config directory exists
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return errors.WrapConfigError("failed to create config directory", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return errors.WrapConfigError("failed to marshal config", err)
	}

	// Write with restricted permissions (owner only)
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return errors.WrapConfigError("failed to write config file", err)
	}

	return nil
}

// Validate runs DefaultValidators against the config.
func (c *Config) Validate() error {
	return RunValidators(c, DefaultValidators())
}

// ScriptOptions returns the decoder options selected by the config.
func (c *Config) ScriptOptions() script.Options {
	return script.Options{
		Permissive:        c.Permissive,
		BackwardLabels:    c.BackwardLabels,
		LegacyReturnTitle: c.LegacyReturnTitle,
	}
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{LogLevel: %s, Workers: %d, Permissive: %t, OutputDir: %s, OpcodeTable: %q}",
		c.LogLevel, c.Workers, c.Permissive, c.OutputDir, c.OpcodeTable,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel:       defaultConfig.LogLevel,
		BackwardLabels: defaultConfig.BackwardLabels,
		Workers:        defaultConfig.Workers,
		HistoryPath:    defaultConfig.HistoryPath,
		OTLPURL:        defaultConfig.OTLPURL,
	}
}

func (c *Config) WithLogLevel(level string) *Config {
	c.LogLevel = level
	return c
}

func (c *Config) WithWorkers(n int) *Config {
	c.Workers = n
	return c
}

func (c *Config) WithOutputDir(dir string) *Config {
	c.OutputDir = dir
	return c
}
