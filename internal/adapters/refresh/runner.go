// Package refresh runs the periodic session refresh loop.
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// SessionRefresher is the slice of the auth manager the runner needs.
type SessionRefresher interface {
	IsValid(ctx context.Context) bool
	Refresh(ctx context.Context) error
}

// Runner ticks at a configured interval and re-stamps the session expiry
// while the session is valid. Wake triggers an immediate out-of-band refresh,
// typically wired to request activity so an active user never expires
// mid-use.
type Runner struct {
	auth     SessionRefresher
	interval time.Duration
	logger   *slog.Logger

	// wake is buffered so callers never block; coalescing multiple wakes
	// into one pending refresh is the desired behavior.
	wake chan struct{}
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Auth     SessionRefresher
	Interval time.Duration // default 5m when zero
	Logger   *slog.Logger
}

// NewRunner creates a session refresh runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Auth == nil {
		return nil, errors.New("auth manager is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{
		auth:     opts.Auth,
		interval: opts.Interval,
		logger:   opts.Logger,
		wake:     make(chan struct{}, 1),
	}, nil
}

// Wake requests an immediate refresh pass. Safe to call from any goroutine;
// never blocks.
func (r *Runner) Wake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run starts the refresh loop and runs until the context is cancelled.
// Errors from individual refresh attempts are logged and the loop continues.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("session refresh runner starting", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("session refresh runner stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			r.refreshOnce(ctx)

		case <-r.wake:
			r.refreshOnce(ctx)
		}
	}
}

// refreshOnce re-stamps the session expiry when the session is still valid.
// IsValid enforces lazy expiry itself, so an expired session is signed out
// here rather than refreshed.
func (r *Runner) refreshOnce(ctx context.Context) {
	if !r.auth.IsValid(ctx) {
		return
	}
	if err := r.auth.Refresh(ctx); err != nil {
		r.logger.Warn("session refresh failed", "error", err)
	}
}
