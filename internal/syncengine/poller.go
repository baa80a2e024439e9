package syncengine

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LoopConfig tunes a polling loop.
type LoopConfig struct {
	Interval   time.Duration
	MaxBackoff time.Duration
	// Jitter spreads each delay by up to this fraction in either direction.
	Jitter float64
	// Limiter, when set, is waited on before every fetch. Loops may share it.
	Limiter *rate.Limiter
}

// Loop runs fetch immediately and then once per interval until stopped.
// Fetches never overlap. After consecutive failures the delay grows
// exponentially up to MaxBackoff.
type Loop struct {
	cfg   LoopConfig
	fetch func(context.Context) error
	kick  chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewLoop(cfg LoopConfig, fetch func(context.Context) error) *Loop {
	return &Loop{
		cfg:   cfg,
		fetch: fetch,
		kick:  make(chan struct{}, 1),
	}
}

// Start launches the loop. Starting a running loop does nothing.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}
	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})
	go l.run(ctx, l.done)
}

// Stop cancels the loop and waits for the fetch in progress to return.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Trigger asks for a fetch as soon as the current one finishes. Triggers
// that arrive while one is already queued are merged.
func (l *Loop) Trigger() {
	select {
	case l.kick <- struct{}{}:
	default:
	}
}

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	failures := 0
	for {
		if l.cfg.Limiter != nil {
			if err := l.cfg.Limiter.Wait(ctx); err != nil {
				return
			}
		}
		err := l.fetch(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			failures++
		} else {
			failures = 0
		}

		t := time.NewTimer(Backoff(l.cfg.Interval, l.cfg.MaxBackoff, failures, l.cfg.Jitter, rand.Float64))
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-l.kick:
			t.Stop()
		case <-t.C:
		}
	}
}

// Backoff returns the delay before the next fetch: interval when healthy,
// interval·2^failures capped at maxDelay otherwise, spread by ±jitter using rnd,
// which returns values in [0, 1).
func Backoff(interval, maxDelay time.Duration, failures int, jitter float64, rnd func() float64) time.Duration {
	d := interval
	if maxDelay < interval {
		maxDelay = interval
	}
	for i := 0; i < failures && d < maxDelay; i++ {
		d *= 2
	}
	if d > maxDelay {
		d = maxDelay
	}
	if jitter > 0 && rnd != nil {
		d = time.Duration(float64(d) * (1 + jitter*(2*rnd()-1)))
	}
	return d
}
