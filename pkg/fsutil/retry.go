package fsutil

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

const (
	DefaultAttempts = 5
	DefaultDelay    = 100 * time.Millisecond
)

// Replaceable so tests can inject lock errors.
var (
	removeFunc    = os.Remove
	removeAllFunc = os.RemoveAll
	renameFunc    = os.Rename
	mkdirAllFunc  = os.MkdirAll
)

// RetryError is returned when a filesystem mutation still fails after the
// retry ceiling.
type RetryError struct {
	Op       string
	Path     string
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("%s %s: giving up after %d attempts: %v", e.Op, e.Path, e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }

// IsRetryExhausted reports whether err came from a Retrier that ran out of
// attempts.
func IsRetryExhausted(err error) bool {
	var e *RetryError
	return errors.As(err, &e)
}

// Retrier runs filesystem mutations, retrying transient lock and permission
// errors with a doubling delay. The zero value uses the defaults.
type Retrier struct {
	Attempts int
	Delay    time.Duration
}

// Default is the policy used when callers pass nil.
var Default = &Retrier{Attempts: DefaultAttempts, Delay: DefaultDelay}

func (r *Retrier) attempts() int {
	if r == nil || r.Attempts <= 0 {
		return DefaultAttempts
	}
	return r.Attempts
}

func (r *Retrier) delay() time.Duration {
	if r == nil || r.Delay <= 0 {
		return DefaultDelay
	}
	return r.Delay
}

// Do runs fn until it succeeds, returns a non-transient error, or the
// attempt ceiling is reached. Cancelling ctx stops the backoff early.
func (r *Retrier) Do(ctx context.Context, op, path string, fn func() error) error {
	log := logger.FromContext(ctx)
	attempts := r.attempts()
	delay := r.delay()

	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if !IsTransient(err) {
			return errors.WithStack(err)
		}
		if i == attempts {
			break
		}
		log.Debug("transient filesystem error, retrying", logger.Data{
			"op":      op,
			"path":    path,
			"attempt": i,
			"delay":   delay.String(),
			"error":   err.Error(),
		})
		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
	return &RetryError{Op: op, Path: path, Attempts: attempts, Err: err}
}

// Remove deletes a file or empty directory. A missing path is not an error.
func (r *Retrier) Remove(ctx context.Context, path string) error {
	return r.Do(ctx, "remove", path, func() error {
		err := removeFunc(path)
		if os.IsNotExist(err) {
			return nil
		}
		return err
	})
}

// RemoveAll deletes path and everything below it.
func (r *Retrier) RemoveAll(ctx context.Context, path string) error {
	return r.Do(ctx, "remove", path, func() error {
		return removeAllFunc(path)
	})
}

// Rename moves src to dst.
func (r *Retrier) Rename(ctx context.Context, src, dst string) error {
	return r.Do(ctx, "rename", src, func() error {
		return renameFunc(src, dst)
	})
}

// MkdirAll creates path and its parents.
func (r *Retrier) MkdirAll(ctx context.Context, path string) error {
	return r.Do(ctx, "mkdir", path, func() error {
		return mkdirAllFunc(path, 0755)
	})
}
