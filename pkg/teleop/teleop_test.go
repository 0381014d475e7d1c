package teleop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"go.viam.com/test"

	"github.com/team6063/jeff/pkg/joystick"
	"github.com/team6063/jeff/pkg/robot"
	"github.com/team6063/jeff/pkg/tunable"
)

type fakeRobot struct {
	lock        sync.Mutex
	left, right float64
	usePID      bool
	speedCalls  int
	halts       int
	cancels     int
	toggles     int
	net         []float64
	secondary   robot.SecondaryMode
}

func (f *fakeRobot) SetMotorSpeeds(left, right float64, usePID bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.left, f.right, f.usePID = left, right, usePID
	f.speedCalls++
}

func (f *fakeRobot) CancelDrive() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.cancels++
}

func (f *fakeRobot) Halt() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.halts++
}

func (f *fakeRobot) ToggleBucket() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.toggles++
	return nil
}

func (f *fakeRobot) SetNetMotorSpeed(v float64) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.net = append(f.net, v)
	return nil
}

func (f *fakeRobot) SecondaryJoystickMode() robot.SecondaryMode {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.secondary
}

func (f *fakeRobot) SetSecondaryJoystickMode(m robot.SecondaryMode) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.secondary = m
}

func (f *fakeRobot) speeds() (float64, float64, bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.left, f.right, f.usePID
}

func axis(n uint8, v int16) *joystick.Event {
	return &joystick.Event{Type: joystick.EventTypeAxis, Number: n, Value: v}
}

func press(n uint8) *joystick.Event {
	return &joystick.Event{Type: joystick.EventTypeButton, Number: n, Value: 1}
}

func TestMix(t *testing.T) {
	l, r := Mix(0, -1, -1)
	test.That(t, l, test.ShouldEqual, 1.0)
	test.That(t, r, test.ShouldEqual, 1.0)

	l, r = Mix(1, 0, 1)
	test.That(t, l, test.ShouldAlmostEqual, 0.15)
	test.That(t, r, test.ShouldAlmostEqual, -0.15)

	l, r = Mix(0, 0, 0)
	test.That(t, l, test.ShouldEqual, 0.0)
	test.That(t, r, test.ShouldEqual, 0.0)

	// Full throttle, stick back and right.
	l, r = Mix(0.5, 0.5, -1)
	test.That(t, l, test.ShouldAlmostEqual, -0.25)
	test.That(t, r, test.ShouldAlmostEqual, -0.75)
}

func startMode(t *testing.T, ts *tunable.Tunables) (*Mode, *fakeRobot) {
	fr := &fakeRobot{}
	m := New(fr, ts, golog.NewTestLogger(t))
	test.That(t, m.Name(), test.ShouldEqual, "Teleop mode")
	m.Start(context.Background())
	return m, fr
}

func TestStickDrivesMotors(t *testing.T) {
	m, fr := startMode(t, nil)
	m.OnJoystickEvent(axis(joystick.AxisThrottle, -joystick.AxisMax))
	m.OnJoystickEvent(axis(joystick.AxisY, -joystick.AxisMax))

	deadline := time.Now().Add(2 * time.Second)
	for {
		l, r, usePID := fr.speeds()
		if l == 1 && r == 1 {
			test.That(t, usePID, test.ShouldBeTrue)
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("speeds never reached full forward, last %v %v", l, r)
		}
		time.Sleep(UpdateInterval / 2)
	}

	m.Stop()
	fr.lock.Lock()
	defer fr.lock.Unlock()
	test.That(t, fr.halts, test.ShouldEqual, 1)
	test.That(t, fr.cancels, test.ShouldEqual, 1)
}

func TestButtons(t *testing.T) {
	m, fr := startMode(t, nil)
	defer m.Stop()

	m.OnJoystickEvent(press(joystick.ButtonTrigger))
	m.OnJoystickEvent(&joystick.Event{Type: joystick.EventTypeButton, Number: joystick.ButtonTrigger, Value: 0})
	m.OnJoystickEvent(axis(joystick.AxisHatY, -joystick.AxisMax))
	m.OnJoystickEvent(press(joystick.ButtonThumb))
	m.OnJoystickEvent(axis(joystick.AxisHatY, joystick.AxisMax))
	// Each send completes only once the previous event has been handled.
	m.OnJoystickEvent(axis(joystick.AxisX, 0))

	fr.lock.Lock()
	defer fr.lock.Unlock()
	test.That(t, fr.toggles, test.ShouldEqual, 1)
	test.That(t, fr.secondary, test.ShouldEqual, robot.SecondaryWinch)
	// Hat up drives the net forward, then the mode switch stops it and the
	// winch input goes nowhere.
	test.That(t, fr.net, test.ShouldResemble, []float64{1, 0})
}

func TestHatAdjustsTunables(t *testing.T) {
	ts := &tunable.Tunables{Log: golog.NewTestLogger(t)}
	af := ts.Create("angle factor", 1, 0.1, 0, 3, nil)
	ns := ts.Create("net max speed", 0.2, 0.05, 0, 1, nil)

	m, _ := startMode(t, ts)
	m.OnJoystickEvent(axis(joystick.AxisHatX, joystick.AxisMax))
	m.OnJoystickEvent(axis(joystick.AxisHatX, joystick.AxisMax))
	m.OnJoystickEvent(axis(joystick.AxisHatX, 0))
	m.OnJoystickEvent(axis(joystick.AxisHatX, joystick.AxisMax))
	m.OnJoystickEvent(axis(joystick.AxisHatX, 0))
	m.OnJoystickEvent(press(joystick.ButtonNextTunable))
	m.OnJoystickEvent(axis(joystick.AxisHatX, -joystick.AxisMax))
	m.OnJoystickEvent(axis(joystick.AxisX, 0))
	m.Stop()

	// A held hat only counts once.
	test.That(t, af.Get(), test.ShouldAlmostEqual, 1.2)
	test.That(t, ns.Get(), test.ShouldAlmostEqual, 0.15)
}
