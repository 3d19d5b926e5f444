// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package crashreport sends opt-in anonymous crash reports for fewdat.
//
// Two sinks are supported and may be used together: a Sentry project
// (crash_sentry_dsn) and a custom HTTPS endpoint that accepts a JSON Report
// (crash_endpoint). Nothing is sent unless crash_reporting is enabled. Reports
// never include script contents or file names, only the error, the stack,
// the command path and build information.
package crashreport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/dotandev/fewdat/internal/config"
	"github.com/dotandev/fewdat/internal/logger"
	"github.com/getsentry/sentry-go"
)

const defaultTimeout = 5 * time.Second

// Report is the JSON payload delivered to the custom endpoint.
type Report struct {
	Version      string `json:"version"`
	OpcodeTable  string `json:"opcode_table,omitempty"`
	OS           string `json:"os"`
	Arch         string `json:"arch"`
	GoVersion    string `json:"go_version"`
	CrashTime    string `json:"crash_time"`
	ErrorMessage string `json:"error_message"`
	StackTrace   string `json:"stack_trace,omitempty"`
	// Command is the cobra command path, e.g. "fewdat decode".
	Command string `json:"command,omitempty"`
}

// Config controls crash reporter behaviour.
type Config struct {
	Enabled     bool
	SentryDSN   string
	Endpoint    string
	Version     string
	OpcodeTable string
}

// FromConfig builds a reporter config from the loaded fewdat config.
func FromConfig(c *config.Config, version, table string) Config {
	return Config{
		Enabled:     c.CrashReporting,
		SentryDSN:   c.CrashSentryDSN,
		Endpoint:    c.CrashEndpoint,
		Version:     version,
		OpcodeTable: table,
	}
}

// Reporter dispatches crash reports to all configured sinks.
type Reporter struct {
	cfg          Config
	client       *http.Client
	sentryActive bool
}

// New creates a Reporter, initialising Sentry when enabled with a DSN.
func New(cfg Config) *Reporter {
	r := &Reporter{
		cfg:    cfg,
		client: &http.Client{Timeout: defaultTimeout},
	}
	if cfg.Enabled && cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:     cfg.SentryDSN,
			Release: "fewdat@" + cfg.Version,
		})
		if err != nil {
			logger.Logger.Debug("Sentry disabled", "error", err)
		} else {
			r.sentryActive = true
		}
	}
	return r
}

// IsEnabled reports whether Send will deliver anything.
func (r *Reporter) IsEnabled() bool {
	return r.cfg.Enabled && (r.sentryActive || r.cfg.Endpoint != "")
}

// Send builds a Report from err and stack and delivers it to every active
// sink. Sink failures are joined.
func (r *Reporter) Send(ctx context.Context, err error, stack []byte, command string) error {
	if !r.IsEnabled() {
		return nil
	}

	report := r.buildReport(err, stack, command)

	var errs []error
	if r.sentryActive {
		r.sendToSentry(report)
	}
	if r.cfg.Endpoint != "" {
		if sendErr := r.sendToEndpoint(ctx, report); sendErr != nil {
			errs = append(errs, sendErr)
		}
	}
	if joined := errors.Join(errs...); joined != nil {
		return fmt.Errorf("crashreport: %w", joined)
	}
	return nil
}

func (r *Reporter) sendToSentry(report Report) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("os", report.OS)
		scope.SetTag("arch", report.Arch)
		scope.SetTag("go_version", report.GoVersion)
		scope.SetTag("command", report.Command)
		scope.SetTag("opcode_table", report.OpcodeTable)
		scope.SetExtra("stack_trace", report.StackTrace)
		sentry.CaptureMessage(report.ErrorMessage)
	})
	sentry.Flush(defaultTimeout)
}

func (r *Reporter) sendToEndpoint(ctx context.Context, report Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "fewdat/"+r.cfg.Version)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return nil
}

func (r *Reporter) buildReport(err error, stack []byte, command string) Report {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	goVersion := runtime.Version()
	if bi, ok := debug.ReadBuildInfo(); ok {
		goVersion = bi.GoVersion
	}
	return Report{
		Version:      r.cfg.Version,
		OpcodeTable:  r.cfg.OpcodeTable,
		OS:           runtime.GOOS,
		Arch:         runtime.GOARCH,
		GoVersion:    goVersion,
		CrashTime:    time.Now().UTC().Format(time.RFC3339),
		ErrorMessage: msg,
		StackTrace:   string(stack),
		Command:      command,
	}
}

// HandlePanic is deferred around command execution. It reports an in-flight
// panic and then re-panics so the process still exits non-zero.
func (r *Reporter) HandlePanic(ctx context.Context, command string) {
	if v := recover(); v != nil {
		r.ReportPanic(ctx, v, command)
		panic(v)
	}
}

// ReportPanic sends a report for a value already recovered by the caller.
// Delivery failures are logged at debug level only.
func (r *Reporter) ReportPanic(ctx context.Context, v any, command string) {
	panicErr, ok := v.(error)
	if !ok {
		panicErr = fmt.Errorf("%v", v)
	}
	if err := r.Send(ctx, panicErr, debug.Stack(), command); err != nil {
		logger.Logger.Debug("Crash report not delivered", "error", err)
	}
}
