// Package parallel runs one task per item and collects a structured outcome
// for each of them.
package parallel

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Outcome is the result of fn for the item at Index.
type Outcome[R any] struct {
	Index int
	Value R
	Err   error
}

// Map calls fn for every item on its own goroutine and waits for all of them.
// Outcomes are returned in input order. A failing or panicking call never
// stops the others.
func Map[T, R any](ctx context.Context, items []T, fn func(context.Context, int, T) (R, error)) []Outcome[R] {
	outcomes := make([]Outcome[R], len(items))
	if len(items) == 0 {
		return outcomes
	}

	var g errgroup.Group
	g.SetLimit(len(items))

	for i, item := range items {
		g.Go(func() error {
			outcomes[i] = run(ctx, i, item, fn)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func run[T, R any](ctx context.Context, i int, item T, fn func(context.Context, int, T) (R, error)) (out Outcome[R]) {
	out.Index = i
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("panic: %v", r)
		}
	}()
	out.Value, out.Err = fn(ctx, i, item)
	return out
}

// Succeeded returns the outcomes without an error.
func Succeeded[R any](outcomes []Outcome[R]) []Outcome[R] {
	var ok []Outcome[R]
	for _, o := range outcomes {
		if o.Err == nil {
			ok = append(ok, o)
		}
	}
	return ok
}

// Failed returns the outcomes that carry an error.
func Failed[R any](outcomes []Outcome[R]) []Outcome[R] {
	var failed []Outcome[R]
	for _, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}
