package looper

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/edaniels/golog"
)

type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

var SystemClock Clock = realClock{}

const overrunLogInterval = time.Second

// Looper calls a function at a fixed period.  It sleeps until SpinWindow
// before each deadline and then spins.
type Looper struct {
	// Accessed atomically; kept first for alignment on 32-bit ARM.
	ticks    uint64
	overruns uint64

	Period     time.Duration
	SpinWindow time.Duration
	Clock      Clock

	log golog.Logger
}

func New(period, spinWindow time.Duration, logger golog.Logger) *Looper {
	return &Looper{
		Period:     period,
		SpinWindow: spinWindow,
		Clock:      SystemClock,
		log:        logger.Named("looper"),
	}
}

// Run calls tick once per period until ctx is done.  tick is passed the time
// since its previous call.  A tick that finishes after the next deadline is
// counted as an overrun and the schedule restarts from now.
func (l *Looper) Run(ctx context.Context, tick func(dt time.Duration)) {
	clock := l.Clock
	last := clock.Now()
	deadline := last.Add(l.Period)
	var lastOverrunLog time.Time
	var unlogged uint64

	for ctx.Err() == nil {
		l.waitUntil(ctx, deadline)
		if ctx.Err() != nil {
			return
		}

		now := clock.Now()
		tick(now.Sub(last))
		last = now
		atomic.AddUint64(&l.ticks, 1)

		deadline = deadline.Add(l.Period)
		if finished := clock.Now(); finished.After(deadline) {
			atomic.AddUint64(&l.overruns, 1)
			unlogged++
			if finished.Sub(lastOverrunLog) >= overrunLogInterval {
				l.log.Warnw("control loop overran", "late", finished.Sub(deadline), "count", unlogged)
				lastOverrunLog = finished
				unlogged = 0
			}
			deadline = finished.Add(l.Period)
		}
	}
}

func (l *Looper) waitUntil(ctx context.Context, deadline time.Time) {
	clock := l.Clock
	if remaining := deadline.Sub(clock.Now()) - l.SpinWindow; remaining > 0 {
		clock.Sleep(remaining)
	}
	for clock.Now().Before(deadline) {
		if ctx.Err() != nil {
			return
		}
	}
}

func (l *Looper) Ticks() uint64 {
	return atomic.LoadUint64(&l.ticks)
}

func (l *Looper) Overruns() uint64 {
	return atomic.LoadUint64(&l.overruns)
}
