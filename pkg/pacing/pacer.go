package pacing

import (
	"context"
	"math/rand"
	"time"
)

// Pacer inserts a pause before a request. The portal's bot-mitigation layer
// fingerprints fixed-interval traffic, so every pause is randomized.
type Pacer interface {
	// Pause blocks for the pacer's delay or until the context is cancelled
	Pause(ctx context.Context) error
}

// JitterPacer sleeps for Base + uniform(0, Jitter)
type JitterPacer struct {
	Base   time.Duration
	Jitter time.Duration
}

// NewJitterPacer creates a pacer with the given base delay and jitter
func NewJitterPacer(base, jitter time.Duration) *JitterPacer {
	return &JitterPacer{Base: base, Jitter: jitter}
}

// Pause blocks for the randomized delay
func (p *JitterPacer) Pause(ctx context.Context) error {
	delay := p.Base
	if p.Jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(p.Jitter) + 1))
	}
	return sleep(ctx, delay)
}

// Fixed is a pacer with a constant delay and no jitter. Used for the
// page-load-to-submit gap, where a fixed couple of seconds is the human
// pattern.
type Fixed time.Duration

// Pause blocks for the fixed delay
func (f Fixed) Pause(ctx context.Context) error {
	return sleep(ctx, time.Duration(f))
}

// None is a pacer that never pauses
type None struct{}

// Pause returns immediately
func (None) Pause(ctx context.Context) error { return nil }

func sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
