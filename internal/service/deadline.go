package service

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	minRevisionTimeout = 5 * time.Second
	maxRevisionTimeout = 120 * time.Second
)

// ErrDeadlineExceeded matches every *DeadlineExceededError
var ErrDeadlineExceeded = errors.New("revision deadline exceeded")

// DeadlineExceededError reports the step that was running when the shared
// revision deadline passed.
type DeadlineExceededError struct {
	Step     string
	Deadline time.Time
}

func (e *DeadlineExceededError) Error() string {
	return fmt.Sprintf("revision deadline exceeded during %s (deadline %s)", e.Step, e.Deadline.Format(time.RFC3339))
}

func (e *DeadlineExceededError) Is(target error) bool {
	return target == ErrDeadlineExceeded
}

// clampRevisionTimeout bounds the wall-clock budget of one revision attempt
func clampRevisionTimeout(d time.Duration) time.Duration {
	return min(max(d, minRevisionTimeout), maxRevisionTimeout)
}

// awaitWithDeadline runs fn and returns its result, or a
// *DeadlineExceededError as soon as the deadline passes.
func awaitWithDeadline[T any](ctx context.Context, deadline time.Time, step string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	if !time.Now().Before(deadline) {
		return zero, &DeadlineExceededError{Step: step, Deadline: deadline}
	}

	callCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(callCtx)
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && !time.Now().Before(deadline) {
			return zero, &DeadlineExceededError{Step: step, Deadline: deadline}
		}
		return r.value, r.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, &DeadlineExceededError{Step: step, Deadline: deadline}
	}
}

// subDeadline returns the earlier of parent and now+timeout
func subDeadline(parent time.Time, timeout time.Duration) time.Time {
	if timeout <= 0 {
		return parent
	}
	sub := time.Now().Add(timeout)
	if sub.Before(parent) {
		return sub
	}
	return parent
}
