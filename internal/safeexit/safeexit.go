// Package safeexit adapts safeExit.go's signal-driven cleanup registry into
// a context.Context the pipeline can select on for cancellation, instead of
// calling os.Exit directly — the orchestrator decides how to end the
// process once every registered cleanup has run.
package safeexit

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Exit listens for termination signals and cancels a context in response,
// running any registered cleanup funcs exactly once before doing so.
type Exit struct {
	mu     sync.Mutex
	funcs  []func()
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// New returns an Exit wired to a freshly derived, cancellable context.
func New(parent context.Context) *Exit {
	ctx, cancel := context.WithCancel(parent)
	return &Exit{ctx: ctx, cancel: cancel}
}

// Context returns the context that is canceled once a termination signal
// arrives or Stop is called.
func (e *Exit) Context() context.Context { return e.ctx }

// Register queues a cleanup func to run once, in registration order, when
// the process is asked to stop.
func (e *Exit) Register(f func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.funcs = append(e.funcs, f)
}

// Listen blocks, watching for SIGHUP/SIGINT/SIGTERM/SIGQUIT, and triggers
// Stop on the first one received. Intended to run in its own goroutine.
func (e *Exit) Listen() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-sigs
	e.Stop()
}

// Stop runs every registered cleanup func once and cancels the context.
func (e *Exit) Stop() {
	e.once.Do(func() {
		e.mu.Lock()
		funcs := append([]func(){}, e.funcs...)
		e.mu.Unlock()

		for _, f := range funcs {
			f()
		}
		e.cancel()
	})
}
