/*
Package bridge serializes work onto the messaging loop's goroutine.

PURPOSE:
  The messaging loop is single-goroutine and cooperative; the operator
  surface runs on independent goroutines (HTTP handlers). Any operator
  action that must touch the chat transport is submitted here, executed
  exactly once on the loop goroutine, ordered after any earlier submission,
  with the result delivered back without blocking the loop on the caller.

CONTRACT:
  - Submit is safe from any goroutine.
  - Actions run in submission order, one at a time.
  - The caller observes the action's error (or the context's) synchronously.
  - A stopped bridge rejects submissions with ErrStopped rather than
    dropping them silently.

SEE ALSO:
  - chat/loop.go: Runs the bridge and submits inbound updates to it
*/
package bridge

import (
	"context"
	"errors"
)

// ErrStopped is returned by Submit once the bridge's run loop has exited.
var ErrStopped = errors.New("bridge stopped")

// Action is a unit of work executed on the loop goroutine.
type Action func(ctx context.Context) error

type job struct {
	action Action
	done   chan error
}

// Bridge is a single-consumer run loop with thread-safe submission.
type Bridge struct {
	jobs    chan job
	stopped chan struct{}
}

// New creates a bridge. The buffer absorbs operator bursts without making
// HTTP handlers wait for the loop to drain.
func New(buffer int) *Bridge {
	return &Bridge{
		jobs:    make(chan job, buffer),
		stopped: make(chan struct{}),
	}
}

// Run executes submitted actions until ctx is canceled. It must be called
// exactly once, from the goroutine that owns the chat transport.
func (b *Bridge) Run(ctx context.Context) error {
	defer close(b.stopped)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-b.jobs:
			// done is buffered, so a caller that gave up never blocks the loop.
			j.done <- j.action(ctx)
		}
	}
}

// Submit enqueues action and waits for its result. Returns the action's
// error, ctx's error if the caller gives up first, or ErrStopped if the
// run loop has exited.
func (b *Bridge) Submit(ctx context.Context, action Action) error {
	j := job{action: action, done: make(chan error, 1)}

	select {
	case b.jobs <- j:
	case <-b.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-j.done:
		return err
	case <-b.stopped:
		// The loop exited after accepting the job but before running it.
		select {
		case err := <-j.done:
			return err
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}
