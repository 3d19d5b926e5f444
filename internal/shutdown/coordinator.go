// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package shutdown runs cleanup hooks (history database, trace exporter)
// when a command finishes or is interrupted.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dotandev/fewdat/internal/logger"
)

type HookFunc func(context.Context) error

type hook struct {
	name string
	fn   HookFunc
}

// Coordinator runs registered shutdown hooks exactly once in LIFO order.
type Coordinator struct {
	mu    sync.Mutex
	hooks []hook
	ran   bool
}

func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// Register adds a hook. Hooks registered after Run are ignored.
func (c *Coordinator) Register(name string, fn HookFunc) {
	if fn == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ran {
		logger.Logger.Debug("Ignoring shutdown hook registered after shutdown", "hook", name)
		return
	}

	c.hooks = append(c.hooks, hook{name: name, fn: fn})
}

// Len reports how many hooks are waiting to run.
func (c *Coordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ran {
		return 0
	}
	return len(c.hooks)
}

// Run executes the hooks newest first, splitting the time left on ctx evenly
// between the remaining hooks. It returns every hook error joined.
func (c *Coordinator) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.ran {
		c.mu.Unlock()
		return nil
	}
	c.ran = true
	hooks := c.hooks
	c.hooks = nil
	c.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]

		hookCtx, cancel := perHookContext(ctx, i+1)
		start := time.Now()
		err := h.fn(hookCtx)
		cancel()

		logger.Logger.Debug("Shutdown hook finished", "hook", h.name, "duration", time.Since(start), "error", err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}

	return errors.Join(errs...)
}

func perHookContext(ctx context.Context, hooksRemaining int) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok || hooksRemaining <= 0 {
		return ctx, func() {}
	}

	remaining := time.Until(deadline)
	if remaining <= 0 {
		return context.WithTimeout(ctx, 1*time.Millisecond)
	}

	return context.WithTimeout(ctx, remaining/time.Duration(hooksRemaining))
}
