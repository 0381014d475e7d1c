package motor

import (
	"sync"
	"time"

	"github.com/team6063/jeff/pkg/pca9685"
	"go.uber.org/multierr"
)

// Motor accepts a normalised command in [-1, 1].
type Motor interface {
	Set(v float64) error
}

func Clamp(v float64) float64 {
	if v > 1 {
		return 1
	} else if v < -1 {
		return -1
	}
	return v
}

// Group drives several motor controllers ganged onto one gearbox.  Inversion
// is fixed when the group is built.
type Group struct {
	motors   []Motor
	inverted bool

	lock sync.Mutex
	last float64
}

func NewGroup(inverted bool, motors ...Motor) *Group {
	return &Group{
		motors:   motors,
		inverted: inverted,
	}
}

func (g *Group) Set(v float64) error {
	v = Clamp(v)
	g.lock.Lock()
	g.last = v
	g.lock.Unlock()

	if g.inverted {
		v = -v
	}
	var errs error
	for _, m := range g.motors {
		errs = multierr.Append(errs, m.Set(v))
	}
	return errs
}

// Get returns the last command, before inversion.
func (g *Group) Get() float64 {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.last
}

func (g *Group) Inverted() bool {
	return g.inverted
}

// PWM is a Victor SP style controller driven by a servo-pulse output.
type PWM struct {
	out pca9685.Channel
}

func NewPWM(ctrl pca9685.Interface, port int) *PWM {
	return &PWM{out: pca9685.Channel{Ctrl: ctrl, Port: port}}
}

func (p *PWM) Set(v float64) error {
	return p.out.SetPulse(PulseWidth(v))
}

// PulseWidth maps [-1, 1] linearly onto the controller's pulse range.
func PulseWidth(v float64) time.Duration {
	v = Clamp(v)
	halfRange := float64(pca9685.MotorMaxPulse - pca9685.MotorNeutralPulse)
	return pca9685.MotorNeutralPulse + time.Duration(v*halfRange)
}
