// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"strconv"
	"strings"

	"github.com/dotandev/fewdat/internal/errors"
	"github.com/dotandev/fewdat/internal/script"
)

// Validator validates a specific aspect of the configuration.
type Validator interface {
	Validate(cfg *Config) error
}

// LogLevelValidator checks that the log level is a known value.
type LogLevelValidator struct{}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func (v LogLevelValidator) Validate(cfg *Config) error {
	if cfg.LogLevel == "" {
		return nil
	}
	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return errors.WrapValidationError("log_level must be one of: debug, info, warn, error")
	}
	return nil
}

// WorkersValidator checks the batch worker count.
type WorkersValidator struct{}

const maxWorkers = 256

func (v WorkersValidator) Validate(cfg *Config) error {
	if cfg.Workers < 1 || cfg.Workers > maxWorkers {
		return errors.WrapValidationError("workers must be between 1 and " + strconv.Itoa(maxWorkers))
	}
	return nil
}

// OpcodeTableValidator checks that the built-in opcode table satisfies the
// configured constraint.
type OpcodeTableValidator struct{}

func (v OpcodeTableValidator) Validate(cfg *Config) error {
	return script.CheckTableVersion(cfg.OpcodeTable)
}

// TracingValidator checks the OTLP endpoint when tracing is enabled.
type TracingValidator struct{}

func (v TracingValidator) Validate(cfg *Config) error {
	if !cfg.Tracing {
		return nil
	}
	if cfg.OTLPURL == "" {
		return errors.WrapValidationError("otlp_url cannot be empty when tracing is enabled")
	}
	if !strings.HasPrefix(cfg.OTLPURL, "http://") && !strings.HasPrefix(cfg.OTLPURL, "https://") {
		return errors.WrapValidationError("otlp_url must use http or https scheme")
	}
	return nil
}

// CrashReportingValidator requires a custom crash endpoint to use https.
type CrashReportingValidator struct{}

func (v CrashReportingValidator) Validate(cfg *Config) error {
	if !cfg.CrashReporting || cfg.CrashEndpoint == "" {
		return nil
	}
	if !strings.HasPrefix(cfg.CrashEndpoint, "https://") {
		return errors.WrapValidationError("crash_endpoint must use https scheme")
	}
	return nil
}

// DefaultValidators returns the standard set of validators.
func DefaultValidators() []Validator {
	return []Validator{
		LogLevelValidator{},
		WorkersValidator{},
		OpcodeTableValidator{},
		TracingValidator{},
		CrashReportingValidator{},
	}
}

// RunValidators executes each validator against the config, returning the
// first error encountered.
func RunValidators(cfg *Config, validators []Validator) error {
	for _, v := range validators {
		if err := v.Validate(cfg); err != nil {
			return err
		}
	}
	return nil
}
