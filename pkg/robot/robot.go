package robot

import (
	"context"
	"strings"
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/team6063/jeff/pkg/actuator"
	"github.com/team6063/jeff/pkg/angle"
	"github.com/team6063/jeff/pkg/config"
	"github.com/team6063/jeff/pkg/drive"
	"github.com/team6063/jeff/pkg/drivechannel"
	"github.com/team6063/jeff/pkg/hardware"
	"github.com/team6063/jeff/pkg/odometry"
	"github.com/team6063/jeff/pkg/pose"
)

// SecondaryMode selects what the secondary joystick controls.
type SecondaryMode int

const (
	SecondaryNet SecondaryMode = iota
	SecondaryWinch
)

func (m SecondaryMode) String() string {
	switch m {
	case SecondaryNet:
		return "net"
	case SecondaryWinch:
		return "winch"
	}
	return "unknown"
}

// Robot is the control API used by the operator modes.  It owns the pose
// tracker, both drive channels, the drive coordinator and the auxiliary
// actuators.
type Robot struct {
	log golog.Logger
	hw  *hardware.Hardware

	tracker     *odometry.Tracker
	left, right *drivechannel.Channel
	coordinator *drive.Coordinator
	bucket      *actuator.Bucket
	net         *actuator.Net

	modeLock  sync.Mutex
	secondary SecondaryMode

	cancel context.CancelFunc
	loopWG sync.WaitGroup
}

func New(cfg config.Config, hw *hardware.Hardware, logger golog.Logger) (*Robot, error) {
	bearing, ok := drive.BearingByName(strings.ToLower(cfg.Drive.Bearing))
	if !ok {
		return nil, errors.Errorf("unknown bearing mode %q", cfg.Drive.Bearing)
	}
	gains := drivechannel.Gains{P: cfg.PID.Kp, I: cfg.PID.Ki, D: cfg.PID.Kd}
	leftLaw, err := drivechannel.NewLaw(cfg.PID.Law, gains)
	if err != nil {
		return nil, err
	}
	rightLaw, err := drivechannel.NewLaw(cfg.PID.Law, gains)
	if err != nil {
		return nil, err
	}
	chanCfg := drivechannel.Config{MaxVelocity: cfg.PID.MaxVelocity, Kf: cfg.PID.Kf}

	odoCfg := odometry.DefaultConfig(cfg.Chassis.WheelSeparation)
	if cfg.Drive.GyroScale != 0 {
		odoCfg.GyroScale = cfg.Drive.GyroScale
	}
	tracker := odometry.New(hw.LeftEncoder, hw.RightEncoder, hw.Gyro, odoCfg, logger)

	left := drivechannel.New("left", hw.LeftMotors, hw.LeftEncoder, leftLaw, chanCfg, logger)
	right := drivechannel.New("right", hw.RightMotors, hw.RightEncoder, rightLaw, chanCfg, logger)

	driveCfg := drive.Config{
		PositionTolerance: cfg.Drive.PositionTolerance,
		HeadingTolerance:  cfg.Drive.HeadingTolerance,
		AngleFactor:       cfg.Drive.AngleFactor,
		Bearing:           bearing,
		Period:            cfg.Drive.Period,
		SpinWindow:        cfg.Drive.SpinWindow,
	}

	net := actuator.NewNet(hw.NetMotor)
	net.SetMaxSpeed(cfg.Net.MaxSpeed)

	return &Robot{
		log:         logger.Named("robot"),
		hw:          hw,
		tracker:     tracker,
		left:        left,
		right:       right,
		coordinator: drive.New(tracker, left, right, driveCfg, logger),
		bucket:      actuator.NewBucket(hw.Bucket, logger),
		net:         net,
		secondary:   SecondaryNet,
	}, nil
}

// Start runs the drive control loop in the background.
func (r *Robot) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.loopWG.Add(1)
	go func() {
		defer r.loopWG.Done()
		r.coordinator.Run(ctx)
	}()
}

// Stop ends the control loop, leaving the drive channels at zero.
func (r *Robot) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	r.loopWG.Wait()
	r.cancel = nil
}

func (r *Robot) DriveTo(x, y, heading float64) {
	r.coordinator.DriveTo(x, y, heading)
}

func (r *Robot) DriveToAngle(heading float64) {
	r.coordinator.DriveToAngle(heading)
}

// CancelDrive abandons the current target.
func (r *Robot) CancelDrive() {
	r.coordinator.Cancel()
}

func (r *Robot) IsBusy() bool {
	return r.coordinator.IsBusy()
}

func (r *Robot) SetMotorSpeeds(left, right float64, usePID bool) {
	r.coordinator.SetMotorSpeeds(left, right, usePID)
}

// Halt zeroes the drive channels without touching the target.
func (r *Robot) Halt() {
	r.coordinator.Halt()
}

func (r *Robot) ToggleBucket() error {
	return r.bucket.Toggle()
}

func (r *Robot) BucketExtended() bool {
	return r.bucket.Extended()
}

func (r *Robot) SetNetMotorSpeed(v float64) error {
	return r.net.SetSpeed(v)
}

func (r *Robot) SetMaxNetSpeed(v float64) {
	r.net.SetMaxSpeed(v)
}

func (r *Robot) MaxNetSpeed() float64 {
	return r.net.MaxSpeed()
}

func (r *Robot) GetTargetX() float64 {
	return r.coordinator.TargetX()
}

func (r *Robot) GetTargetY() float64 {
	return r.coordinator.TargetY()
}

func (r *Robot) GetTargetAngle() float64 {
	return r.coordinator.TargetAngle()
}

func (r *Robot) Pose() pose.Pose {
	return r.tracker.Pose()
}

// HeadingDegrees is the current heading wrapped to (-180, 180].
func (r *Robot) HeadingDegrees() float64 {
	return angle.FromFloat(r.tracker.Pose().Heading).Degrees()
}

func (r *Robot) ResetPose(p pose.Pose) {
	r.tracker.Reset(p)
}

func (r *Robot) SetAngleFactor(f float64) {
	r.coordinator.SetAngleFactor(f)
}

func (r *Robot) AngleFactor() float64 {
	return r.coordinator.AngleFactor()
}

func (r *Robot) SetSecondaryJoystickMode(m SecondaryMode) {
	r.modeLock.Lock()
	defer r.modeLock.Unlock()
	if m != r.secondary {
		r.log.Infow("secondary joystick mode", "mode", m.String())
	}
	r.secondary = m
}

func (r *Robot) SecondaryJoystickMode() SecondaryMode {
	r.modeLock.Lock()
	defer r.modeLock.Unlock()
	return r.secondary
}

// Coordinator exposes the drive coordinator, mainly so tests and tools can
// tick it by hand.
func (r *Robot) Coordinator() *drive.Coordinator {
	return r.coordinator
}

func (r *Robot) Hardware() *hardware.Hardware {
	return r.hw
}
