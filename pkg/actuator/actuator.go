package actuator

import (
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/team6063/jeff/pkg/motor"
)

type RawPWM interface {
	SetRaw(v uint16) error
}

const (
	BucketOn  uint16 = 1000
	BucketOff uint16 = 500

	DefaultNetMaxSpeed = 0.2
)

// Bucket is a two-position actuator flipped by Toggle.  It starts retracted
// so the first toggle extends it.
type Bucket struct {
	out RawPWM
	log golog.Logger

	lock     sync.Mutex
	extended bool
}

func NewBucket(out RawPWM, logger golog.Logger) *Bucket {
	return &Bucket{
		out: out,
		log: logger.Named("bucket"),
	}
}

func (b *Bucket) Toggle() error {
	b.lock.Lock()
	defer b.lock.Unlock()

	level := BucketOn
	if b.extended {
		level = BucketOff
	}
	if err := b.out.SetRaw(level); err != nil {
		return errors.Wrap(err, "moving bucket")
	}
	b.extended = !b.extended
	b.log.Debugw("bucket toggled", "extended", b.extended)
	return nil
}

func (b *Bucket) Extended() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.extended
}

// Net drives the net winch at a fraction of full power.
type Net struct {
	out motor.Motor

	lock     sync.Mutex
	maxSpeed float64
}

func NewNet(out motor.Motor) *Net {
	return &Net{
		out:      out,
		maxSpeed: DefaultNetMaxSpeed,
	}
}

func (n *Net) SetMaxSpeed(s float64) {
	if s < 0 {
		s = 0
	} else if s > 1 {
		s = 1
	}
	n.lock.Lock()
	defer n.lock.Unlock()
	n.maxSpeed = s
}

func (n *Net) MaxSpeed() float64 {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.maxSpeed
}

func (n *Net) SetSpeed(v float64) error {
	return n.out.Set(motor.Clamp(v) * n.MaxSpeed())
}
