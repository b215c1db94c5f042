// Package future polls asynchronous runtime jobs. Polling never blocks; Wait
// is the single blocking helper and is meant for one-off setup work.
package future

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OCAP2/markertracker/pkg/spatial"
	"github.com/cenkalti/backoff"
)

// ErrWaitTimeout is returned by Wait when the future did not become ready in time.
var ErrWaitTimeout = errors.New("timed out waiting for future")

var errPending = errors.New("future pending")

// Checker reports whether a future has completed.
type Checker interface {
	Ready(f spatial.Future) (bool, error)
}

// Poller polls futures through the session's future extension.
type Poller struct {
	session spatial.Session
}

// NewPoller creates a Poller for session.
func NewPoller(session spatial.Session) *Poller {
	return &Poller{session: session}
}

// Poll returns the current state of f.
func (p *Poller) Poll(f spatial.Future) (spatial.FutureState, error) {
	api := p.session.Extensions().Future
	if api == nil {
		return 0, spatial.MissingExtension(spatial.ExtFuture)
	}

	state, res := api.PollFuture(f)
	if err := spatial.Check(spatial.OpPollFuture, res); err != nil {
		return 0, err
	}
	return state, nil
}

// Ready reports whether f has reached FutureStateReady.
func (p *Poller) Ready(f spatial.Future) (bool, error) {
	state, err := p.Poll(f)
	if err != nil {
		return false, err
	}
	return state == spatial.FutureStateReady, nil
}

// WaitOptions bound a blocking Wait.
type WaitOptions struct {
	Interval time.Duration // sleep between polls
	Timeout  time.Duration // zero means no bound other than ctx
}

// DefaultWaitOptions polls every millisecond for up to ten seconds.
var DefaultWaitOptions = WaitOptions{
	Interval: time.Millisecond,
	Timeout:  10 * time.Second,
}

// Wait blocks until f is ready, sleeping opts.Interval between polls.
// Poll errors end the wait immediately.
func Wait(ctx context.Context, c Checker, f spatial.Future, opts WaitOptions) error {
	if opts.Interval <= 0 {
		opts.Interval = DefaultWaitOptions.Interval
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(opts.Interval)
	if opts.Timeout > 0 {
		maxRetries := uint64(opts.Timeout / opts.Interval)
		if maxRetries == 0 {
			maxRetries = 1
		}
		b = backoff.WithMaxRetries(b, maxRetries)
	}
	b = backoff.WithContext(b, ctx)

	operation := func() error {
		ready, err := c.Ready(f)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ready {
			return errPending
		}
		return nil
	}

	err := backoff.Retry(operation, b)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errPending):
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("waiting for future %d: %w", f, ctxErr)
		}
		return fmt.Errorf("future %d: %w", f, ErrWaitTimeout)
	default:
		return err
	}
}
