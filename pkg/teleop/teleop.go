package teleop

import (
	"context"
	"sync"
	"time"

	"github.com/edaniels/golog"

	"github.com/team6063/jeff/pkg/joystick"
	"github.com/team6063/jeff/pkg/robot"
	"github.com/team6063/jeff/pkg/tunable"
)

const UpdateInterval = 20 * time.Millisecond

// Robot is the part of the robot API that teleop drives.
type Robot interface {
	SetMotorSpeeds(left, right float64, usePID bool)
	CancelDrive()
	Halt()
	ToggleBucket() error
	SetNetMotorSpeed(v float64) error
	SecondaryJoystickMode() robot.SecondaryMode
	SetSecondaryJoystickMode(m robot.SecondaryMode)
}

// Mix converts flight stick axes to wheel speeds.  x and y are the stick
// (right and back positive), throttle runs from -1 (full) to +1 (off) and
// scales the output between 1.0 and 0.3.
func Mix(x, y, throttle float64) (left, right float64) {
	scale := 0.3 + 0.7*(-(throttle-1)/2)
	left = scale * (x/2 - y)
	right = scale * (-y - x/2)
	return
}

type Mode struct {
	robot    Robot
	tunables *tunable.Tunables
	log      golog.Logger

	cancel         context.CancelFunc
	stopWG         sync.WaitGroup
	joystickEvents chan *joystick.Event
}

func New(r Robot, tunables *tunable.Tunables, logger golog.Logger) *Mode {
	return &Mode{
		robot:          r,
		tunables:       tunables,
		log:            logger.Named("teleop"),
		joystickEvents: make(chan *joystick.Event),
	}
}

func (m *Mode) Name() string {
	return "Teleop mode"
}

func (m *Mode) Start(ctx context.Context) {
	m.stopWG.Add(1)
	var loopCtx context.Context
	loopCtx, m.cancel = context.WithCancel(ctx)
	go m.loop(loopCtx)
}

func (m *Mode) Stop() {
	m.cancel()
	m.stopWG.Wait()
}

// OnJoystickEvent must only be called while the mode is running.
func (m *Mode) OnJoystickEvent(event *joystick.Event) {
	m.joystickEvents <- event
}

type sticks struct {
	x, y, throttle float64
	hatX           float64
}

func (m *Mode) loop(ctx context.Context) {
	defer m.stopWG.Done()
	defer m.robot.Halt()

	// The operator has the drive now.
	m.robot.CancelDrive()

	ticker := time.NewTicker(UpdateInterval)
	defer ticker.Stop()

	var s sticks
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l, r := Mix(s.x, s.y, s.throttle)
			m.robot.SetMotorSpeeds(l, r, true)
		case event := <-m.joystickEvents:
			m.handle(&s, event)
		}
	}
}

func (m *Mode) handle(s *sticks, event *joystick.Event) {
	switch event.Type {
	case joystick.EventTypeAxis:
		v := event.Float()
		switch event.Number {
		case joystick.AxisX:
			s.x = v
		case joystick.AxisY:
			s.y = v
		case joystick.AxisThrottle:
			s.throttle = v
		case joystick.AxisHatX:
			if v != 0 && s.hatX == 0 && m.tunables != nil {
				if v > 0 {
					m.tunables.AdjustCurrent(1)
				} else {
					m.tunables.AdjustCurrent(-1)
				}
			}
			s.hatX = v
		case joystick.AxisHatY:
			m.secondaryAxis(v)
		}
	case joystick.EventTypeButton:
		if !event.Pressed() {
			return
		}
		switch event.Number {
		case joystick.ButtonTrigger:
			if err := m.robot.ToggleBucket(); err != nil {
				m.log.Errorw("failed to toggle bucket", "error", err)
			}
		case joystick.ButtonThumb:
			next := robot.SecondaryWinch
			if m.robot.SecondaryJoystickMode() == robot.SecondaryWinch {
				next = robot.SecondaryNet
			}
			// Leave the net stationary when handing the hat over.
			if err := m.robot.SetNetMotorSpeed(0); err != nil {
				m.log.Errorw("failed to stop net", "error", err)
			}
			m.robot.SetSecondaryJoystickMode(next)
		case joystick.ButtonNextTunable:
			if m.tunables != nil {
				m.tunables.SelectNext()
			}
		}
	}
}

// secondaryAxis routes the hat's up/down axis according to the secondary
// joystick mode.  Hat up is negative.
func (m *Mode) secondaryAxis(v float64) {
	switch m.robot.SecondaryJoystickMode() {
	case robot.SecondaryNet:
		if err := m.robot.SetNetMotorSpeed(-v); err != nil {
			m.log.Errorw("failed to set net speed", "error", err)
		}
	case robot.SecondaryWinch:
		// No winch is fitted.
		m.log.Debugw("winch input ignored", "value", -v)
	}
}
