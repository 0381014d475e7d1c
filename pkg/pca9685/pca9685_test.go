package pca9685

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

type regWrite struct {
	reg byte
	buf []byte
}

type fakeDev struct {
	writes []regWrite
}

func (f *fakeDev) WriteReg(reg byte, buf []byte) error {
	f.writes = append(f.writes, regWrite{reg, append([]byte(nil), buf...)})
	return nil
}

func (f *fakeDev) Close() error {
	return nil
}

func TestSetRaw(t *testing.T) {
	dev := &fakeDev{}
	p := &PCA9685{dev: dev}

	test.That(t, p.SetRaw(7, 1000), test.ShouldBeNil)
	test.That(t, dev.writes, test.ShouldHaveLength, 1)
	test.That(t, dev.writes[0].reg, test.ShouldEqual, byte(RegLEDBase+7*4))
	test.That(t, dev.writes[0].buf, test.ShouldResemble, []byte{0, 0, 0xe8, 0x03})

	// Clamped to 12 bits.
	test.That(t, p.SetRaw(0, 0xffff), test.ShouldBeNil)
	test.That(t, dev.writes[1].buf, test.ShouldResemble, []byte{0, 0, 0xff, 0x0f})

	err := p.SetRaw(16, 0)
	test.That(t, errors.Cause(err), test.ShouldEqual, ErrPortOutOfRange)
	err = p.SetRaw(-1, 0)
	test.That(t, errors.Cause(err), test.ShouldEqual, ErrPortOutOfRange)
}

func TestSetPulse(t *testing.T) {
	dev := &fakeDev{}
	c := Channel{Ctrl: &PCA9685{dev: dev}, Port: 2}

	test.That(t, c.SetPulse(MotorNeutralPulse), test.ShouldBeNil)
	// 4095 * 1.5 / 20 = 307
	test.That(t, dev.writes[0].buf, test.ShouldResemble, []byte{0, 0, 0x33, 0x01})

	test.That(t, c.SetPulse(time.Hour), test.ShouldBeNil)
	test.That(t, dev.writes[1].buf, test.ShouldResemble, []byte{0, 0, 0xff, 0x0f})
}
