// Package testutil provides shared test helpers for exercising stores and
// services under concurrency.
package testutil

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"credvault/internal/sentinel"
)

// ConcurrentResult tracks outcomes of concurrent test operations.
type ConcurrentResult struct {
	Successes    int
	Errors       int
	AlreadyUsed  int
	InvalidState int
	Revoked      int
	NotFounds    int
	Expired      int
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int {
	return r.Successes + r.Errors + r.AlreadyUsed + r.InvalidState + r.Revoked + r.NotFounds + r.Expired
}

// RunConcurrent executes fn in parallel goroutines and collects results.
// Errors are categorized by the store sentinels so races over single-use
// state can assert exact winner/loser counts.
func RunConcurrent(goroutines int, fn func(idx int) error) *ConcurrentResult {
	var wg sync.WaitGroup
	var successes, errs, used, invalid, revoked, notFounds, expired atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			err := fn(idx)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				used.Add(1)
			case errors.Is(err, sentinel.ErrInvalidState):
				invalid.Add(1)
			case errors.Is(err, sentinel.ErrRevoked):
				revoked.Add(1)
			case errors.Is(err, sentinel.ErrNotFound):
				notFounds.Add(1)
			case errors.Is(err, sentinel.ErrExpired):
				expired.Add(1)
			default:
				errs.Add(1)
			}
		}(i)
	}

	wg.Wait()

	return &ConcurrentResult{
		Successes:    int(successes.Load()),
		Errors:       int(errs.Load()),
		AlreadyUsed:  int(used.Load()),
		InvalidState: int(invalid.Load()),
		Revoked:      int(revoked.Load()),
		NotFounds:    int(notFounds.Load()),
		Expired:      int(expired.Load()),
	}
}

// RunConcurrentCtx executes fn in parallel goroutines with context support.
func RunConcurrentCtx(ctx context.Context, goroutines int, fn func(ctx context.Context, idx int) error) *ConcurrentResult {
	return RunConcurrent(goroutines, func(idx int) error {
		return fn(ctx, idx)
	})
}

// RunConcurrentCollect executes fn in parallel and collects all errors.
// Use this when a test needs to inspect error types beyond the standard
// categories.
func RunConcurrentCollect(goroutines int, fn func(idx int) error) (successes int, errs []error) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var successCount atomic.Int32
	collected := make([]error, 0)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if err := fn(idx); err != nil {
				mu.Lock()
				collected = append(collected, err)
				mu.Unlock()
			} else {
				successCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	return int(successCount.Load()), collected
}
