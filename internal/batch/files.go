// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package batch

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// artifact is one output file of a job.
type artifact struct {
	path string
	data []byte
}

// writeAtomic writes every artifact to a temporary file next to its target
// and renames them into place only once all writes succeeded. Nothing is
// left behind on failure.
func writeAtomic(artifacts []artifact) error {
	temps := make([]string, 0, len(artifacts))
	cleanup := func() {
		for _, t := range temps {
			_ = os.Remove(t)
		}
	}

	for _, a := range artifacts {
		dir := filepath.Dir(a.path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			cleanup()
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		f, err := os.CreateTemp(dir, "."+filepath.Base(a.path)+".*.tmp")
		if err != nil {
			cleanup()
			return fmt.Errorf("failed to create temp file: %w", err)
		}
		temps = append(temps, f.Name())
		if _, err := f.Write(a.data); err != nil {
			f.Close()
			cleanup()
			return fmt.Errorf("failed to write %s: %w", a.path, err)
		}
		if err := f.Close(); err != nil {
			cleanup()
			return fmt.Errorf("failed to close %s: %w", a.path, err)
		}
	}

	for i, a := range artifacts {
		if err := os.Rename(temps[i], a.path); err != nil {
			cleanup()
			return fmt.Errorf("failed to move %s into place: %w", a.path, err)
		}
	}
	return nil
}

func sameFile(a, b string) bool {
	ia, err := os.Stat(a)
	if err != nil {
		return false
	}
	ib, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ia, ib)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func textBytes(write func(*bytes.Buffer) error) ([]byte, error) {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
