package motor

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.einride.tech/can"
	"go.viam.com/test"

	"github.com/team6063/jeff/pkg/pca9685"
)

type recordingMotor struct {
	values []float64
	err    error
}

func (r *recordingMotor) Set(v float64) error {
	r.values = append(r.values, v)
	return r.err
}

func TestGroupClampsAndInverts(t *testing.T) {
	a, b := &recordingMotor{}, &recordingMotor{}
	g := NewGroup(true, a, b)

	test.That(t, g.Set(0.5), test.ShouldBeNil)
	test.That(t, g.Set(3), test.ShouldBeNil)
	test.That(t, g.Set(-7), test.ShouldBeNil)

	test.That(t, a.values, test.ShouldResemble, []float64{-0.5, -1, 1})
	test.That(t, b.values, test.ShouldResemble, []float64{-0.5, -1, 1})
	test.That(t, g.Get(), test.ShouldEqual, -1.0)
	test.That(t, g.Inverted(), test.ShouldBeTrue)
}

func TestGroupReportsAllErrors(t *testing.T) {
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	a, b := &recordingMotor{err: errA}, &recordingMotor{err: errB}
	g := NewGroup(false, a, b)

	err := g.Set(0.2)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "a failed")
	test.That(t, err.Error(), test.ShouldContainSubstring, "b failed")
	// Both controllers were still commanded.
	test.That(t, b.values, test.ShouldResemble, []float64{0.2})
}

func TestPulseWidth(t *testing.T) {
	test.That(t, PulseWidth(0), test.ShouldEqual, pca9685.MotorNeutralPulse)
	test.That(t, PulseWidth(1), test.ShouldEqual, pca9685.MotorMaxPulse)
	test.That(t, PulseWidth(-1), test.ShouldEqual, pca9685.MotorMinPulse)
	test.That(t, PulseWidth(5), test.ShouldEqual, pca9685.MotorMaxPulse)
	test.That(t, PulseWidth(0.5), test.ShouldEqual, 1750*time.Microsecond)
}

type fakeTransmitter struct {
	frames []can.Frame
}

func (f *fakeTransmitter) TransmitFrame(ctx context.Context, frame can.Frame) error {
	f.frames = append(f.frames, frame)
	return nil
}

func TestCANDutyCycle(t *testing.T) {
	tx := &fakeTransmitter{}
	bus := &CANBus{tx: tx}
	m := bus.Motor(3)

	test.That(t, m.Set(1), test.ShouldBeNil)
	test.That(t, m.Set(-2), test.ShouldBeNil)
	test.That(t, m.Set(0), test.ShouldBeNil)

	test.That(t, tx.frames, test.ShouldHaveLength, 3)
	test.That(t, tx.frames[0].ID, test.ShouldEqual, uint32(0x203))
	test.That(t, tx.frames[0].Length, test.ShouldEqual, uint8(2))
	test.That(t, tx.frames[0].Data[0], test.ShouldEqual, byte(0x7f))
	test.That(t, tx.frames[0].Data[1], test.ShouldEqual, byte(0xff))
	// -32767
	test.That(t, tx.frames[1].Data[0], test.ShouldEqual, byte(0x80))
	test.That(t, tx.frames[1].Data[1], test.ShouldEqual, byte(0x01))
	test.That(t, tx.frames[2].Data[0], test.ShouldEqual, byte(0))
	test.That(t, tx.frames[2].Data[1], test.ShouldEqual, byte(0))

	test.That(t, bus.Close(), test.ShouldBeNil)
}
