package drivechannel

import (
	"strings"
	"time"

	"github.com/felixge/pidctrl"
	"github.com/pkg/errors"
	"go.einride.tech/pid"
)

// Law is a feedback controller that turns a velocity error into a
// correction.  Update is called once per control period.
type Law interface {
	Update(setpoint, measured float64, dt time.Duration) float64
	Reset()
}

type Gains struct {
	P float64 `yaml:"p"`
	I float64 `yaml:"i"`
	D float64 `yaml:"d"`
}

const (
	LawPIDCtrl = "pidctrl"
	LawEinride = "einride"
)

var ErrUnknownLaw = errors.New("unknown control law")

func NewLaw(name string, g Gains) (Law, error) {
	switch strings.ToLower(name) {
	case "", LawPIDCtrl:
		return NewPIDCtrlLaw(g), nil
	case LawEinride:
		return NewEinrideLaw(g), nil
	}
	return nil, errors.Wrapf(ErrUnknownLaw, "%q", name)
}

// PIDCtrlLaw wraps felixge/pidctrl.  The output is limited to [-1, 1] since
// it is added straight onto a motor command.
type PIDCtrlLaw struct {
	gains Gains
	ctrl  *pidctrl.PIDController
}

func NewPIDCtrlLaw(g Gains) *PIDCtrlLaw {
	l := &PIDCtrlLaw{gains: g}
	l.Reset()
	return l
}

func (l *PIDCtrlLaw) Update(setpoint, measured float64, dt time.Duration) float64 {
	l.ctrl.Set(setpoint)
	return l.ctrl.UpdateDuration(measured, dt)
}

// Reset drops the integral and derivative history.  pidctrl has no reset of
// its own so the controller is rebuilt.
func (l *PIDCtrlLaw) Reset() {
	l.ctrl = pidctrl.NewPIDController(l.gains.P, l.gains.I, l.gains.D).SetOutputLimits(-1, 1)
}

// EinrideLaw wraps go.einride.tech/pid.
type EinrideLaw struct {
	ctrl pid.Controller
}

func NewEinrideLaw(g Gains) *EinrideLaw {
	return &EinrideLaw{
		ctrl: pid.Controller{
			Config: pid.ControllerConfig{
				ProportionalGain: g.P,
				IntegralGain:     g.I,
				DerivativeGain:   g.D,
			},
		},
	}
}

func (l *EinrideLaw) Update(setpoint, measured float64, dt time.Duration) float64 {
	l.ctrl.Update(pid.ControllerInput{
		ReferenceSignal:  setpoint,
		ActualSignal:     measured,
		SamplingInterval: dt,
	})
	out := l.ctrl.State.ControlSignal
	if out > 1 {
		return 1
	} else if out < -1 {
		return -1
	}
	return out
}

func (l *EinrideLaw) Reset() {
	l.ctrl.Reset()
}
