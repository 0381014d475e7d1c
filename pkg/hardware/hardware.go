package hardware

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/team6063/jeff/pkg/actuator"
	"github.com/team6063/jeff/pkg/config"
	"github.com/team6063/jeff/pkg/encoder"
	"github.com/team6063/jeff/pkg/gyro"
	"github.com/team6063/jeff/pkg/motor"
	"github.com/team6063/jeff/pkg/pca9685"
	"github.com/team6063/jeff/pkg/sim"
)

const (
	simStepPeriod  = time.Millisecond
	canDialTimeout = 2 * time.Second
)

// Hardware owns every device handle.  Nothing else opens devices, so the
// handles are passed to the control stack from here.
type Hardware struct {
	LeftEncoder, RightEncoder *encoder.Encoder
	Gyro                      gyro.Gyro
	LeftMotors, RightMotors   *motor.Group
	NetMotor                  motor.Motor
	Bucket                    actuator.RawPWM

	// Sim is set when running against the simulated drivetrain.
	Sim *sim.Drivetrain

	log       golog.Logger
	loops     []func(ctx context.Context, wg *sync.WaitGroup)
	beforeRun []func() error
	closers   []io.Closer

	cancel context.CancelFunc
	loopWG sync.WaitGroup
}

// New opens the devices named in cfg.  With the sim backend no devices are
// touched.
func New(cfg config.Config, logger golog.Logger) (*Hardware, error) {
	logger = logger.Named("hardware")
	if strings.EqualFold(cfg.Hardware.Backend, "sim") {
		return NewSim(cfg, logger), nil
	}

	h := &Hardware{log: logger}
	if err := h.openReal(cfg); err != nil {
		return nil, multierr.Append(err, h.closeAll())
	}
	return h, nil
}

func encoderConfig(cfg config.Config, reverse bool) encoder.Config {
	return encoder.Config{
		PulsesPerRev:  cfg.Chassis.PulsesPerRev,
		WheelDiameter: cfg.Chassis.WheelDiameter,
		Reverse:       reverse,
	}
}

func (h *Hardware) openReal(cfg config.Config) error {
	hw := cfg.Hardware

	pwm, err := pca9685.New(hw.I2CDevice)
	if err != nil {
		return err
	}
	h.closers = append(h.closers, pwm)
	if err := pwm.Configure(); err != nil {
		return errors.Wrap(err, "configuring PCA9685")
	}
	h.Bucket = pca9685.Channel{Ctrl: pwm, Port: hw.BucketPort}

	switch strings.ToLower(hw.MotorBackend) {
	case "can":
		ctx, cancel := context.WithTimeout(context.Background(), canDialTimeout)
		defer cancel()
		bus, err := motor.DialCAN(ctx, hw.CANInterface)
		if err != nil {
			return err
		}
		h.closers = append(h.closers, bus)
		h.LeftMotors = motor.NewGroup(hw.InvertLeft, canMotors(bus, hw.LeftCANIDs)...)
		h.RightMotors = motor.NewGroup(hw.InvertRight, canMotors(bus, hw.RightCANIDs)...)
		h.NetMotor = bus.Motor(uint8(hw.NetCANID))
	default:
		h.LeftMotors = motor.NewGroup(hw.InvertLeft, pwmMotors(pwm, hw.LeftPorts)...)
		h.RightMotors = motor.NewGroup(hw.InvertRight, pwmMotors(pwm, hw.RightPorts)...)
		h.NetMotor = motor.NewPWM(pwm, hw.NetPort)
	}

	bridge, err := encoder.OpenSerialBridge(hw.SerialPort, h.log)
	if err != nil {
		return err
	}
	h.closers = append(h.closers, bridge)
	h.loops = append(h.loops, bridge.Loop)
	h.LeftEncoder = encoder.New(bridge.Left(), encoderConfig(cfg, hw.ReverseLeftEncoder))
	h.RightEncoder = encoder.New(bridge.Right(), encoderConfig(cfg, hw.ReverseRightEncoder))

	g, err := gyro.NewADXRS450(hw.SPIDevice, h.log)
	if err != nil {
		return err
	}
	h.closers = append(h.closers, g)
	h.Gyro = g
	samples := hw.GyroCalibrationSamples
	h.beforeRun = append(h.beforeRun, func() error {
		h.log.Infow("calibrating gyro, keep the robot still", "samples", samples)
		return g.Calibrate(samples)
	})
	h.loops = append(h.loops, g.Loop)
	return nil
}

func canMotors(bus *motor.CANBus, ids []int) []motor.Motor {
	var ms []motor.Motor
	for _, id := range ids {
		ms = append(ms, bus.Motor(uint8(id)))
	}
	return ms
}

func pwmMotors(pwm pca9685.Interface, ports []int) []motor.Motor {
	var ms []motor.Motor
	for _, p := range ports {
		ms = append(ms, motor.NewPWM(pwm, p))
	}
	return ms
}

// NewSim builds the hardware on a simulated drivetrain wired the same way as
// the robot.
func NewSim(cfg config.Config, logger golog.Logger) *Hardware {
	hw := cfg.Hardware
	simCfg := sim.DefaultConfig()
	simCfg.WheelSeparation = cfg.Chassis.WheelSeparation
	simCfg.MetresPerPulse = encoder.New(nil, encoderConfig(cfg, false)).DistancePerPulse()
	simCfg.MaxVelocity = cfg.PID.MaxVelocity
	simCfg.InvertLeft = hw.InvertLeft
	simCfg.InvertRight = hw.InvertRight
	simCfg.ReverseLeftCounter = hw.ReverseLeftEncoder
	simCfg.ReverseRightCounter = hw.ReverseRightEncoder
	d := sim.New(simCfg)

	clock := encoder.WithClock(d.Now)
	return &Hardware{
		LeftEncoder:  encoder.New(d.LeftCounter(), encoderConfig(cfg, hw.ReverseLeftEncoder), clock),
		RightEncoder: encoder.New(d.RightCounter(), encoderConfig(cfg, hw.ReverseRightEncoder), clock),
		Gyro:         d,
		LeftMotors:   motor.NewGroup(hw.InvertLeft, d.LeftMotor()),
		RightMotors:  motor.NewGroup(hw.InvertRight, d.RightMotor()),
		NetMotor:     &sim.MotorOutput{},
		Bucket:       &sim.PWMOutput{},
		Sim:          d,
		log:          logger,
	}
}

// Start runs any start-up calibration and then the background device loops.
// A sim drivetrain is stepped in real time only if stepSim is set.
func (h *Hardware) Start(ctx context.Context, stepSim bool) error {
	for _, f := range h.beforeRun {
		if err := f(); err != nil {
			return err
		}
	}
	loops := h.loops
	if h.Sim != nil && stepSim {
		loops = append(loops, func(ctx context.Context, wg *sync.WaitGroup) {
			h.Sim.Loop(ctx, wg, simStepPeriod)
		})
	}

	ctx, h.cancel = context.WithCancel(ctx)
	for _, loop := range loops {
		h.loopWG.Add(1)
		go loop(ctx, &h.loopWG)
	}
	h.log.Infow("hardware started", "sim", h.Sim != nil, "loops", len(loops))
	return nil
}

// Shutdown stops the motors, the background loops and closes every device.
func (h *Hardware) Shutdown() error {
	var errs error
	for _, g := range []*motor.Group{h.LeftMotors, h.RightMotors} {
		if g != nil {
			errs = multierr.Append(errs, g.Set(0))
		}
	}
	if h.NetMotor != nil {
		errs = multierr.Append(errs, h.NetMotor.Set(0))
	}
	if h.cancel != nil {
		h.cancel()
		h.loopWG.Wait()
		h.cancel = nil
	}
	errs = multierr.Append(errs, h.closeAll())
	if errs != nil {
		h.log.Warnw("hardware shutdown had errors", "error", errs)
	} else {
		fmt.Println("HW: Shut down")
	}
	return errs
}

func (h *Hardware) closeAll() error {
	var errs error
	for i := len(h.closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, h.closers[i].Close())
	}
	h.closers = nil
	return errs
}
