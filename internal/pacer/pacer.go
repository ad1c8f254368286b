// Package pacer throttles outgoing TNFS transactions for a single mount.
//
// Retro devices share slow servers (floppy-backed, single threaded). On top
// of the server-mandated minimum retry interval, a client may cap its own
// request rate so bursts of directory reads do not swamp the server.
package pacer

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer wraps a token bucket limiter. A nil *Pacer never waits, so callers
// can hold one unconditionally.
//
// Thread safety:
// All methods are safe for concurrent use.
type Pacer struct {
	limiter *rate.Limiter
}

// New returns a Pacer allowing requestsPerSecond sustained with the given
// burst. requestsPerSecond == 0 disables pacing and New returns nil.
//
// A burst of 0 is raised to 1: a bucket that can never hold a token would
// block forever.
func New(requestsPerSecond float64, burst int) *Pacer {
	if requestsPerSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Wait blocks until the next request may be sent or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

// Allow reports whether a request may be sent right now, consuming a token
// if so.
func (p *Pacer) Allow() bool {
	if p == nil {
		return true
	}
	return p.limiter.Allow()
}

// Delay returns how long the next request would have to wait, without
// consuming a token.
func (p *Pacer) Delay() time.Duration {
	if p == nil {
		return 0
	}
	r := p.limiter.Reserve()
	d := r.Delay()
	r.Cancel()
	return d
}

// SetRate changes the sustained rate. Zero or less removes the limit.
func (p *Pacer) SetRate(requestsPerSecond float64) {
	if p == nil {
		return
	}
	if requestsPerSecond <= 0 {
		p.limiter.SetLimit(rate.Inf)
		return
	}
	p.limiter.SetLimit(rate.Limit(requestsPerSecond))
}
