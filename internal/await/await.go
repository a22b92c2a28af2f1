// Package await provides the bounded-wait combinator used for every
// backend call with a deadline.
//
// The combinator races a real operation against a timer and reports which
// side won. The loser is NOT canceled: a timed-out call keeps running in a
// detached goroutine and its eventual result is discarded. Callers that
// install results into shared state must therefore tolerate late losers,
// which the stores do by replacing collections wholesale and by sequencing
// refreshes.
package await

import "time"

// Result carries the outcome of a raced call.
type Result[T any] struct {
	Value    T
	Err      error
	TimedOut bool
}

// First runs fn and waits at most d for it to finish. If the timer wins,
// the returned Result has TimedOut set and the zero value; fn continues in
// the background and its result is ignored.
func First[T any](d time.Duration, fn func() (T, error)) Result[T] {
	done := make(chan Result[T], 1)
	go func() {
		v, err := fn()
		done <- Result[T]{Value: v, Err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case r := <-done:
		return r
	case <-timer.C:
		var zero T
		return Result[T]{Value: zero, TimedOut: true}
	}
}
