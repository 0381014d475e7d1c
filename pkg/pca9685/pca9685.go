package pca9685

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/exp/io/i2c"
)

const (
	DefaultAddr = 0x40

	RegMode1 = 0x00
	RegMode2 = 0x01

	// Each PWM output has two 16-bit (low byte first) registers.
	// First register is the on time, second is the off time.
	RegLEDBase = 0x06

	RegPreScale = 0xfe // Pre-scaler for PWM frequency.
	RegTestMode = 0xff

	NumPorts = 16

	PWMPeriod = 20 * time.Millisecond

	PWMMax = 4095
)

// Victor SP pulse widths: 1.0ms full reverse, 1.5ms neutral, 2.0ms full forward.
const (
	MotorMinPulse     = 1000 * time.Microsecond
	MotorNeutralPulse = 1500 * time.Microsecond
	MotorMaxPulse     = 2000 * time.Microsecond
)

var ErrPortOutOfRange = errors.New("PWM port out of range")

type Interface interface {
	Configure() error
	SetPulse(port int, width time.Duration) error
	SetRaw(port int, value uint16) error
	Close() error
}

type regWriter interface {
	WriteReg(reg byte, buf []byte) error
	Close() error
}

type PCA9685 struct {
	dev regWriter
}

func New(deviceFile string) (*PCA9685, error) {
	dev, err := i2c.Open(&i2c.Devfs{Dev: deviceFile}, DefaultAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "opening PCA9685 on %s", deviceFile)
	}
	return &PCA9685{
		dev: dev,
	}, nil
}

func (p *PCA9685) Configure() (err error) {
	// Put device to sleep.
	err = p.dev.WriteReg(RegMode1, []byte{0x11})
	if err != nil {
		return
	}
	// Update pre-scaler for 50Hz.
	err = p.dev.WriteReg(RegPreScale, []byte{0x79})
	if err != nil {
		return
	}
	// Trigger a reset
	err = p.dev.WriteReg(RegMode1, []byte{0x01})
	if err != nil {
		return
	}
	// Required delay after reset.
	time.Sleep(1 * time.Millisecond)
	// Enable.
	err = p.dev.WriteReg(RegMode1, []byte{0x81})
	return
}

// SetPulse sets the high time of each PWM period on port.
func (p *PCA9685) SetPulse(port int, width time.Duration) error {
	if width < 0 {
		width = 0
	} else if width > PWMPeriod {
		width = PWMPeriod
	}
	return p.SetRaw(port, uint16(PWMMax*width/PWMPeriod))
}

// SetRaw writes the off-count directly, clamped to the 12-bit range.
func (p *PCA9685) SetRaw(port int, value uint16) error {
	if port < 0 || port >= NumPorts {
		return errors.Wrapf(ErrPortOutOfRange, "port %d", port)
	}
	if value > PWMMax {
		value = PWMMax
	}
	addr := RegLEDBase + port*4
	return p.dev.WriteReg(byte(addr), []byte{0, 0, byte(value & 0xff), byte(value >> 8)})
}

func (p *PCA9685) Close() error {
	return p.dev.Close()
}

// Channel binds one output port of a controller.
type Channel struct {
	Ctrl Interface
	Port int
}

func (c Channel) SetPulse(width time.Duration) error {
	return c.Ctrl.SetPulse(c.Port, width)
}

func (c Channel) SetRaw(value uint16) error {
	return c.Ctrl.SetRaw(c.Port, value)
}
