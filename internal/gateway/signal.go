package gateway

import "context"

// signal is a binary, auto-resetting wake condition. Setting while already
// set is a no-op; each set releases at most one waiter, and the condition
// clears as soon as a waiter is released.
type signal struct {
	ch chan struct{}
}

func newSignal() *signal {
	return &signal{ch: make(chan struct{}, 1)}
}

// Set arms the signal if it is not already armed.
func (s *signal) Set() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until the signal fires or ctx is done. Returns false on
// cancellation.
func (s *signal) Wait(ctx context.Context) bool {
	select {
	case <-s.ch:
		return true
	case <-ctx.Done():
		return false
	}
}
