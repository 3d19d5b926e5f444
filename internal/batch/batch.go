// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package batch converts script files on disk, routing each input by name
// and running jobs on a bounded worker pool.
package batch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/dotandev/fewdat/internal/dat"
	"github.com/dotandev/fewdat/internal/errors"
	"github.com/dotandev/fewdat/internal/history"
	"github.com/dotandev/fewdat/internal/logger"
	"github.com/dotandev/fewdat/internal/script"
	"github.com/dotandev/fewdat/internal/strtable"
	"github.com/dotandev/fewdat/internal/telemetry"
)

// Recorder stores finished jobs. *history.Store implements it.
type Recorder interface {
	Record(ctx context.Context, job *history.Job) error
}

// Options controls a batch run.
type Options struct {
	// OutputDir receives all outputs. Empty writes next to each input.
	OutputDir string
	// Workers bounds concurrent jobs. Values below 1 mean 1.
	Workers int
	Script  script.Options
	// Metadata overrides the sidecar used by encrypt jobs.
	Metadata string
	// Action, when set, is used for every input instead of Route.
	Action Action
	// Recorder, when set, receives one history entry per job.
	Recorder Recorder
}

// Result is the outcome of one input file.
type Result struct {
	Input        string
	Action       Action
	Outputs      []string
	Instructions int
	Strings      int
	Skipped      int
	Duration     time.Duration
	Err          error
}

// Failed counts results with an error.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// Run processes every path and returns results in input order. A failing
// job does not stop the others; cancelling ctx stops dispatching new jobs
// and marks the undispatched ones with ctx.Err().
func Run(ctx context.Context, paths []string, opts Options) []Result {
	results := make([]Result, len(paths))
	if len(paths) == 0 {
		return results
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	logger.Logger.Info("Starting batch", "files", len(paths), "workers", workers)

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = Process(ctx, paths[i], opts)
			}
		}()
	}

	next := 0
dispatch:
	for ; next < len(paths); next++ {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- next:
		}
	}
	close(jobs)
	wg.Wait()

	for i := next; i < len(paths); i++ {
		results[i] = Result{Input: paths[i], Err: ctx.Err()}
	}

	logger.Logger.Info("Batch complete", "files", len(paths), "failed", Failed(results))
	return results
}

// Process runs the job routed for path.
func Process(ctx context.Context, path string, opts Options) Result {
	start := time.Now()
	res := Result{Input: path}

	action, err := opts.Action, error(nil)
	if action == "" {
		action, err = Route(path)
	}
	if err != nil {
		res.Err = err
		res.Duration = time.Since(start)
		logger.Logger.Warn("Skipping file", "input", path, "error", err)
		return res
	}
	res.Action = action

	ctx, span := telemetry.GetTracer().Start(ctx, "batch."+string(action))
	span.SetAttributes(attribute.String("fewdat.input", path))
	defer span.End()

	if err := ctx.Err(); err != nil {
		res.Err = err
	} else {
		switch action {
		case ActionDecode:
			err = decodeFile(path, opts, &res)
		case ActionDecrypt:
			err = decryptFile(path, opts, &res)
		case ActionEncrypt:
			err = encryptFile(path, opts, &res)
		}
		res.Err = err
	}
	res.Duration = time.Since(start)

	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
		logger.Logger.Error("Job failed", "input", path, "action", action, "error", res.Err)
	} else {
		span.SetAttributes(
			attribute.Int("fewdat.instructions", res.Instructions),
			attribute.Int("fewdat.strings", res.Strings),
		)
		logger.Logger.Info("Job completed", "input", path, "action", action,
			"outputs", len(res.Outputs), "duration", res.Duration)
	}

	record(ctx, opts.Recorder, start, res)
	return res
}

func record(ctx context.Context, rec Recorder, start time.Time, res Result) {
	if rec == nil {
		return
	}
	job := &history.Job{
		StartedAt:    start,
		Duration:     res.Duration,
		Action:       string(res.Action),
		Input:        res.Input,
		Outputs:      res.Outputs,
		Status:       history.StatusOK,
		Instructions: res.Instructions,
		Strings:      res.Strings,
	}
	if res.Err != nil {
		job.Status = history.StatusFailed
		job.Error = res.Err.Error()
	}
	// history must not fail a conversion that already succeeded
	if err := rec.Record(context.WithoutCancel(ctx), job); err != nil {
		logger.Logger.Warn("Failed to record job", "input", res.Input, "error", err)
	}
}

func outputDir(path string, opts Options) string {
	if opts.OutputDir != "" {
		return opts.OutputDir
	}
	return filepath.Dir(path)
}

func decodeFile(path string, opts Options, res *Result) error {
	container, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	r, err := dat.Open(container, opts.Script)
	if err != nil {
		return err
	}

	text, err := textBytes(func(b *bytes.Buffer) error {
		return strtable.WriteLines(b, r.Strings.Lines())
	})
	if err != nil {
		return err
	}
	listing, err := textBytes(func(b *bytes.Buffer) error {
		_, err := r.Listing.WriteTo(b)
		return err
	})
	if err != nil {
		return err
	}

	dir, stem := outputDir(path, opts), Stem(path)
	artifacts := []artifact{
		{filepath.Join(dir, stem+MetadataSuffix+DatExt), r.Capture},
		{filepath.Join(dir, stem+TextExt), text},
		{filepath.Join(dir, stem+ListingExt), listing},
	}
	if err := writeAtomic(artifacts); err != nil {
		return err
	}

	res.Outputs = paths(artifacts)
	res.Instructions = r.Listing.Count()
	res.Strings = r.Strings.Len()
	res.Skipped = r.Listing.Skipped
	return nil
}

func decryptFile(path string, opts Options, res *Result) error {
	container, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	plain, err := dat.Decrypt(container)
	if err != nil {
		return err
	}

	out := filepath.Join(outputDir(path, opts), Stem(path)+DatExt)
	if sameFile(out, path) {
		return errors.WrapValidationError("decrypting " + path + " in place would overwrite it; choose an output directory")
	}
	artifacts := []artifact{{out, plain}}
	if err := writeAtomic(artifacts); err != nil {
		return err
	}
	res.Outputs = paths(artifacts)
	return nil
}

func encryptFile(path string, opts Options, res *Result) error {
	out := filepath.Join(outputDir(path, opts), Stem(path)+DatExt)
	if sameFile(filepath.Dir(out), filepath.Dir(path)) && exists(out) {
		return errors.WrapValidationError("encrypting " + path + " next to its text would overwrite " + out + "; choose an output directory")
	}

	metaPath := opts.Metadata
	if metaPath == "" {
		metaPath = MetadataPath(path)
	}
	capture, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.WrapMissingSidecar(metaPath)
		}
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	lines, err := strtable.ReadLines(f)
	f.Close()
	if err != nil {
		return err
	}

	container, err := dat.Encrypt(lines, capture)
	if err != nil {
		return err
	}

	artifacts := []artifact{{out, container}}
	if err := writeAtomic(artifacts); err != nil {
		return err
	}
	res.Outputs = paths(artifacts)
	res.Strings = len(lines)
	return nil
}

func paths(artifacts []artifact) []string {
	out := make([]string, len(artifacts))
	for i, a := range artifacts {
		out[i] = a.path
	}
	return out
}
