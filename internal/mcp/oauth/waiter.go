package oauth

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// AuthChecker reports whether an identity is authenticated.
type AuthChecker interface {
	IsAuthenticated(ctx context.Context, identity string) bool
}

// LoginWaiter blocks until an identity finishes the browser login. Callers
// waiting on the same identity share one poll loop, so one login flow is
// never watched twice.
type LoginWaiter struct {
	checker  AuthChecker
	timeout  time.Duration
	interval time.Duration
	group    singleflight.Group
}

// NewLoginWaiter creates a waiter. Zero durations select
// DefaultLoginWaitTimeout and DefaultLoginPollInterval.
func NewLoginWaiter(checker AuthChecker, timeout, interval time.Duration) *LoginWaiter {
	if timeout <= 0 {
		timeout = DefaultLoginWaitTimeout
	}
	if interval <= 0 {
		interval = DefaultLoginPollInterval
	}
	return &LoginWaiter{checker: checker, timeout: timeout, interval: interval}
}

// Wait returns true once identity is authenticated, false on timeout or when
// ctx is done. start, when not nil, runs once per shared wait before polling
// begins; callers joining a wait already in flight never run theirs.
// Cancelling ctx only releases this caller; the shared poll keeps running for
// the others until it resolves.
func (w *LoginWaiter) Wait(ctx context.Context, identity string, start func()) bool {
	if w.checker.IsAuthenticated(ctx, identity) {
		return true
	}

	pollCtx := context.WithoutCancel(ctx)
	ch := w.group.DoChan(identity, func() (any, error) {
		if start != nil {
			start()
		}
		return w.poll(pollCtx, identity), nil
	})

	select {
	case res := <-ch:
		ok, _ := res.Val.(bool)
		return ok
	case <-ctx.Done():
		return false
	}
}

func (w *LoginWaiter) poll(ctx context.Context, identity string) bool {
	timer := time.NewTimer(w.timeout)
	defer timer.Stop()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if w.checker.IsAuthenticated(ctx, identity) {
				return true
			}
		case <-timer.C:
			return w.checker.IsAuthenticated(ctx, identity)
		}
	}
}
