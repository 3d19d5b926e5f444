// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"sync"
	"time"

	"github.com/dotandev/fewdat/internal/history"
	"github.com/dotandev/fewdat/internal/logger"
	"github.com/dotandev/fewdat/internal/shutdown"
)

const shutdownTimeout = 3 * time.Second

var shutdownState struct {
	mu          sync.RWMutex
	coordinator *shutdown.Coordinator
}

func setShutdownCoordinator(c *shutdown.Coordinator) {
	shutdownState.mu.Lock()
	defer shutdownState.mu.Unlock()
	shutdownState.coordinator = c
}

func clearShutdownCoordinator() {
	shutdownState.mu.Lock()
	defer shutdownState.mu.Unlock()
	shutdownState.coordinator = nil
}

// registerShutdownHook returns false when no coordinator is active, in which
// case the caller owns cleanup.
func registerShutdownHook(name string, fn shutdown.HookFunc) bool {
	shutdownState.mu.RLock()
	c := shutdownState.coordinator
	shutdownState.mu.RUnlock()
	if c == nil {
		return false
	}
	c.Register(name, fn)
	return true
}

func runShutdownHooksWithTimeout(c *shutdown.Coordinator, timeout time.Duration) {
	if c == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := c.Run(ctx); err != nil {
		logger.Logger.Warn("Shutdown hooks completed with errors", "error", err)
	}
}

// openHistory opens the job store and arranges for it to be closed on
// shutdown. The returned func closes it when no coordinator is active.
func openHistory(ctx context.Context) (*history.Store, func(), error) {
	store, err := history.NewStore(cfg.HistoryPath)
	if err != nil {
		return nil, nil, err
	}

	if err := store.Cleanup(ctx, history.DefaultTTL, history.DefaultMaxJobs); err != nil {
		logger.Logger.Warn("History cleanup failed", "error", err)
	}

	closeStore := func(context.Context) error { return store.Close() }
	if registerShutdownHook("history-close", closeStore) {
		return store, func() {}, nil
	}
	return store, func() { _ = store.Close() }, nil
}
