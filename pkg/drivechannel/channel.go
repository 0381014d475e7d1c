package drivechannel

import (
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/team6063/jeff/pkg/motor"
)

type RateSource interface {
	// Rate returns the wheel surface speed in metres per second.
	Rate() (float64, error)
}

type Config struct {
	// MaxVelocity converts a normalised speed into a velocity setpoint.
	MaxVelocity float64
	// Kf is the feed-forward applied to the normalised speed.
	Kf float64
}

// Channel is one side of the drivetrain.  The commanded speed and PID flag
// are written by whichever caller last set them and applied on the next
// Actuate.
type Channel struct {
	name string
	out  motor.Motor
	rate RateSource
	cfg  Config
	log  golog.Logger

	lock   sync.Mutex
	law    Law
	speed  float64
	usePID bool
	last   float64
}

func New(name string, out motor.Motor, rate RateSource, law Law, cfg Config, logger golog.Logger) *Channel {
	return &Channel{
		name: name,
		out:  out,
		rate: rate,
		law:  law,
		cfg:  cfg,
		log:  logger.Named(name),
	}
}

func (c *Channel) Name() string {
	return c.name
}

func (c *Channel) SetSpeed(v float64) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.speed = motor.Clamp(v)
}

func (c *Channel) Speed() float64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.speed
}

func (c *Channel) SetUsePID(b bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if b != c.usePID {
		c.law.Reset()
		c.log.Debugw("PID mode changed", "usePID", b)
	}
	c.usePID = b
}

func (c *Channel) UsePID() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.usePID
}

// Output returns the motor command written by the last Actuate.
func (c *Channel) Output() float64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.last
}

// Actuate computes and writes one motor command.  dt is the time since the
// previous call.
func (c *Channel) Actuate(dt time.Duration) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	// Sampled every tick so the rate always spans the last period.
	rate, err := c.rate.Rate()

	out := c.speed
	var rateErr error
	if c.usePID {
		if err != nil {
			rateErr = errors.Wrapf(err, "%s channel running open loop", c.name)
		} else {
			correction := c.law.Update(c.speed*c.cfg.MaxVelocity, rate, dt)
			out = motor.Clamp(c.cfg.Kf*c.speed + correction)
		}
	}

	c.last = out
	if err := c.out.Set(out); err != nil {
		return errors.Wrapf(err, "setting %s motors", c.name)
	}
	return rateErr
}
