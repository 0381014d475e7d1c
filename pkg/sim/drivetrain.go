// Package sim is an in-memory differential drivetrain.  It stands in for the
// motor controllers, wheel encoders and gyro so the control stack can be run
// without the robot.
package sim

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/team6063/jeff/pkg/chassis"
	"github.com/team6063/jeff/pkg/motor"
	"github.com/team6063/jeff/pkg/pose"
)

type Config struct {
	WheelSeparation float64
	MetresPerPulse  float64
	// Ground speed of a wheel at full command.
	MaxVelocity float64
	// First-order lag between command and wheel speed.
	TimeConstant time.Duration

	// Wiring quirks, mirrored from the real robot.
	InvertLeft          bool
	InvertRight         bool
	ReverseLeftCounter  bool
	ReverseRightCounter bool
}

func DefaultConfig() Config {
	return Config{
		WheelSeparation:    chassis.WheelSeparationM,
		MetresPerPulse:     chassis.MetresPerPulse,
		MaxVelocity:        chassis.MaxVelocityMPerS,
		TimeConstant:       50 * time.Millisecond,
		InvertRight:        true,
		ReverseLeftCounter: true,
	}
}

type Drivetrain struct {
	cfg Config

	lock                    sync.Mutex
	now                     time.Time
	leftCmd, rightCmd       float64
	leftVel, rightVel       float64
	leftDist, rightDist     float64
	gyroDeg                 float64
	pose                    pose.Pose
	encoderFault, gyroFault error
}

func New(cfg Config) *Drivetrain {
	return &Drivetrain{
		cfg: cfg,
		now: time.Unix(0, 0),
	}
}

// Now is the simulated time.  It only moves when the drivetrain is stepped.
func (d *Drivetrain) Now() time.Time {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.now
}

// Sleep steps the simulation by dur, so the drivetrain can serve as the
// control loop's clock.
func (d *Drivetrain) Sleep(dur time.Duration) {
	d.Step(dur)
}

// Step advances the physics by dt.
func (d *Drivetrain) Step(dt time.Duration) {
	if dt <= 0 {
		return
	}
	d.lock.Lock()
	defer d.lock.Unlock()

	secs := dt.Seconds()
	alpha := 1.0
	if d.cfg.TimeConstant > 0 {
		alpha = 1 - math.Exp(-secs/d.cfg.TimeConstant.Seconds())
	}
	left, right := d.leftCmd, d.rightCmd
	if d.cfg.InvertLeft {
		left = -left
	}
	if d.cfg.InvertRight {
		right = -right
	}
	d.leftVel += (left*d.cfg.MaxVelocity - d.leftVel) * alpha
	d.rightVel += (right*d.cfg.MaxVelocity - d.rightVel) * alpha

	dL := d.leftVel * secs
	dR := d.rightVel * secs
	d.leftDist += dL
	d.rightDist += dR

	fwd := (dL + dR) / 2
	dTheta := (dL - dR) / d.cfg.WheelSeparation
	mid := d.pose.Heading + dTheta/2
	d.pose.X += fwd * math.Sin(mid)
	d.pose.Y += fwd * math.Cos(mid)
	d.pose.Heading += dTheta
	d.gyroDeg += dTheta * 180 / math.Pi

	d.now = d.now.Add(dt)
}

// Loop steps the simulation in real time until ctx is done.
func (d *Drivetrain) Loop(ctx context.Context, wg *sync.WaitGroup, period time.Duration) {
	defer wg.Done()

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			d.Step(now.Sub(last))
			last = now
		}
	}
}

// TruePose is the exact pose, free of encoder quantisation.
func (d *Drivetrain) TruePose() pose.Pose {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.pose
}

func (d *Drivetrain) SetEncoderFault(err error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.encoderFault = err
}

func (d *Drivetrain) SetGyroFault(err error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.gyroFault = err
}

func (d *Drivetrain) LeftMotor() motor.Motor {
	return &simMotor{d: d, left: true}
}

func (d *Drivetrain) RightMotor() motor.Motor {
	return &simMotor{d: d}
}

// MotorCommands returns the raw commands last received by each side.
func (d *Drivetrain) MotorCommands() (left, right float64) {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.leftCmd, d.rightCmd
}

type simMotor struct {
	d    *Drivetrain
	left bool
}

func (m *simMotor) Set(v float64) error {
	m.d.lock.Lock()
	defer m.d.lock.Unlock()
	if m.left {
		m.d.leftCmd = motor.Clamp(v)
	} else {
		m.d.rightCmd = motor.Clamp(v)
	}
	return nil
}

// LeftCounter and RightCounter report encoder pulses.
func (d *Drivetrain) LeftCounter() *Counter {
	return &Counter{d: d, left: true}
}

func (d *Drivetrain) RightCounter() *Counter {
	return &Counter{d: d}
}

type Counter struct {
	d    *Drivetrain
	left bool
}

func (c *Counter) Count() (int64, error) {
	c.d.lock.Lock()
	defer c.d.lock.Unlock()
	if c.d.encoderFault != nil {
		return 0, c.d.encoderFault
	}
	dist, reverse := c.d.rightDist, c.d.cfg.ReverseRightCounter
	if c.left {
		dist, reverse = c.d.leftDist, c.d.cfg.ReverseLeftCounter
	}
	if reverse {
		dist = -dist
	}
	return int64(math.Round(dist / c.d.cfg.MetresPerPulse)), nil
}

// Angle is the gyro heading in degrees, clockwise positive.
func (d *Drivetrain) Angle() (float64, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.gyroFault != nil {
		return 0, d.gyroFault
	}
	return d.gyroDeg, nil
}
