package encoder

import (
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrDisconnected = errors.New("encoder disconnected")
	ErrStale        = errors.New("encoder reading stale")
)

// Counter is a raw quadrature count source for one side of the drive.
type Counter interface {
	Count() (int64, error)
}

type Config struct {
	PulsesPerRev  int
	WheelDiameter float64 // metres
	Reverse       bool
}

// Rates measured over shorter windows than this are too noisy at 360 PPR; we
// keep reporting the previous rate until enough time has passed.
const minRateWindow = 2 * time.Millisecond

// Encoder converts a Counter into wheel travel (metres) and wheel speed (m/s).
type Encoder struct {
	counter Counter
	cfg     Config
	now     func() time.Time

	lock          sync.Mutex
	haveRate      bool
	lastRateCount int64
	lastRateTime  time.Time
	rate          float64
}

type Option func(e *Encoder)

// WithClock replaces the wall clock used for rate measurement.
func WithClock(now func() time.Time) Option {
	return func(e *Encoder) {
		e.now = now
	}
}

func New(counter Counter, cfg Config, opts ...Option) *Encoder {
	e := &Encoder{
		counter: counter,
		cfg:     cfg,
		now:     time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Encoder) DistancePerPulse() float64 {
	if e.cfg.PulsesPerRev <= 0 {
		return 0
	}
	return e.cfg.WheelDiameter * math.Pi / float64(e.cfg.PulsesPerRev)
}

func (e *Encoder) count() (int64, error) {
	c, err := e.counter.Count()
	if err != nil {
		return 0, err
	}
	if e.cfg.Reverse {
		c = -c
	}
	return c, nil
}

// Distance returns the total travel since the counter started, in metres.
func (e *Encoder) Distance() (float64, error) {
	c, err := e.count()
	if err != nil {
		return 0, errors.Wrap(err, "reading encoder distance")
	}
	return float64(c) * e.DistancePerPulse(), nil
}

// Rate returns the wheel speed in metres per second, measured between
// successive calls.  The first call returns 0.
func (e *Encoder) Rate() (float64, error) {
	c, err := e.count()
	if err != nil {
		return 0, errors.Wrap(err, "reading encoder rate")
	}
	now := e.now()

	e.lock.Lock()
	defer e.lock.Unlock()

	if !e.haveRate {
		e.haveRate = true
		e.lastRateCount = c
		e.lastRateTime = now
		return 0, nil
	}
	dt := now.Sub(e.lastRateTime)
	if dt < minRateWindow {
		return e.rate, nil
	}
	e.rate = float64(c-e.lastRateCount) * e.DistancePerPulse() / dt.Seconds()
	e.lastRateCount = c
	e.lastRateTime = now
	return e.rate, nil
}
