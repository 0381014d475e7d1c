package config

import (
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	yaml "gopkg.in/yaml.v2"

	"github.com/team6063/jeff/pkg/chassis"
)

const DefaultPath = "/cfg/jeff.yaml"

type Config struct {
	LogLevel   string     `yaml:"log_level"`
	Chassis    Chassis    `yaml:"chassis"`
	Drive      Drive      `yaml:"drive"`
	PID        PID        `yaml:"pid"`
	Hardware   Hardware   `yaml:"hardware"`
	Net        Net        `yaml:"net"`
	Autonomous Autonomous `yaml:"autonomous"`
	Joystick   Joystick   `yaml:"joystick"`
}

type Chassis struct {
	WheelDiameter   float64 `yaml:"wheel_diameter"`
	WheelSeparation float64 `yaml:"wheel_separation"`
	PulsesPerRev    int     `yaml:"pulses_per_rev"`
}

type Drive struct {
	Period            time.Duration `yaml:"period"`
	SpinWindow        time.Duration `yaml:"spin_window"`
	PositionTolerance float64       `yaml:"position_tolerance"`
	HeadingTolerance  float64       `yaml:"heading_tolerance"`
	AngleFactor       float64       `yaml:"angle_factor"`
	// "atan" or "atan2".
	Bearing   string  `yaml:"bearing"`
	GyroScale float64 `yaml:"gyro_scale"`
}

type PID struct {
	// "pidctrl" or "einride".
	Law         string  `yaml:"law"`
	Kp          float64 `yaml:"kp"`
	Ki          float64 `yaml:"ki"`
	Kd          float64 `yaml:"kd"`
	Kf          float64 `yaml:"kf"`
	MaxVelocity float64 `yaml:"max_velocity"`
}

type Hardware struct {
	// "sim" or "real".
	Backend string `yaml:"backend"`
	// "pwm" or "can".
	MotorBackend string `yaml:"motor_backend"`

	SerialPort   string `yaml:"serial_port"`
	SPIDevice    string `yaml:"spi_device"`
	I2CDevice    string `yaml:"i2c_device"`
	CANInterface string `yaml:"can_interface"`

	LeftPorts  []int `yaml:"left_ports"`
	RightPorts []int `yaml:"right_ports"`
	NetPort    int   `yaml:"net_port"`
	BucketPort int   `yaml:"bucket_port"`

	LeftCANIDs  []int `yaml:"left_can_ids"`
	RightCANIDs []int `yaml:"right_can_ids"`
	NetCANID    int   `yaml:"net_can_id"`

	InvertLeft          bool `yaml:"invert_left"`
	InvertRight         bool `yaml:"invert_right"`
	ReverseLeftEncoder  bool `yaml:"reverse_left_encoder"`
	ReverseRightEncoder bool `yaml:"reverse_right_encoder"`

	GyroCalibrationSamples int `yaml:"gyro_calibration_samples"`
}

type Net struct {
	MaxSpeed float64 `yaml:"max_speed"`
}

type Autonomous struct {
	X       float64       `yaml:"x"`
	Y       float64       `yaml:"y"`
	Heading float64       `yaml:"heading"`
	Timeout time.Duration `yaml:"timeout"`
}

type Joystick struct {
	Device string `yaml:"device"`
}

func Default() Config {
	return Config{
		LogLevel: "info",
		Chassis: Chassis{
			WheelDiameter:   chassis.WheelDiameterM,
			WheelSeparation: chassis.WheelSeparationM,
			PulsesPerRev:    chassis.EncoderPulsesPerRev,
		},
		Drive: Drive{
			Period:            4 * time.Millisecond,
			SpinWindow:        500 * time.Microsecond,
			PositionTolerance: 0.05,
			HeadingTolerance:  0.02,
			AngleFactor:       1.0,
			Bearing:           "atan",
			GyroScale:         math.Pi / 180,
		},
		PID: PID{
			Law:         "pidctrl",
			Kp:          0.1,
			Ki:          0.5,
			Kd:          0,
			Kf:          1.0,
			MaxVelocity: chassis.MaxVelocityMPerS,
		},
		Hardware: Hardware{
			Backend:                "real",
			MotorBackend:           "pwm",
			SerialPort:             "/dev/ttyACM0",
			SPIDevice:              "/dev/spidev0.0",
			I2CDevice:              "/dev/i2c-1",
			CANInterface:           "can0",
			LeftPorts:              []int{0, 1},
			RightPorts:             []int{2, 3},
			NetPort:                4,
			BucketPort:             7,
			LeftCANIDs:             []int{1, 2},
			RightCANIDs:            []int{3, 4},
			NetCANID:               5,
			InvertRight:            true,
			ReverseLeftEncoder:     true,
			GyroCalibrationSamples: 1000,
		},
		Net: Net{
			MaxSpeed: 0.2,
		},
		Autonomous: Autonomous{
			Y:       2,
			Timeout: 15 * time.Second,
		},
		Joystick: Joystick{
			Device: "/dev/input/js0",
		},
	}
}

// Load reads path over the defaults.  A missing file is not an error.
func Load(path string, logger golog.Logger) (Config, error) {
	cfg := Default()
	data, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Warnw("config file not found, using defaults", "path", path)
		return cfg, nil
	} else if err != nil {
		return cfg, errors.Wrap(err, "reading config")
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing %s", path)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			errs = multierr.Append(errs, errors.Errorf(format, args...))
		}
	}
	oneOf := func(v string, options ...string) bool {
		for _, o := range options {
			if strings.EqualFold(v, o) {
				return true
			}
		}
		return false
	}

	check(oneOf(c.Drive.Bearing, "atan", "atan2"), "drive.bearing %q must be atan or atan2", c.Drive.Bearing)
	check(oneOf(c.PID.Law, "pidctrl", "einride"), "pid.law %q must be pidctrl or einride", c.PID.Law)
	check(oneOf(c.Hardware.Backend, "sim", "real"), "hardware.backend %q must be sim or real", c.Hardware.Backend)
	check(oneOf(c.Hardware.MotorBackend, "pwm", "can"), "hardware.motor_backend %q must be pwm or can", c.Hardware.MotorBackend)
	check(c.Drive.Period > 0, "drive.period must be positive")
	check(c.Drive.SpinWindow >= 0 && c.Drive.SpinWindow < c.Drive.Period, "drive.spin_window must be within the period")
	// Arrival uses open intervals, so a zero tolerance can never be met.
	check(c.Drive.PositionTolerance > 0, "drive.position_tolerance must be positive")
	check(c.Drive.HeadingTolerance > 0, "drive.heading_tolerance must be positive")
	check(c.Chassis.WheelSeparation > 0, "chassis.wheel_separation must be positive")
	check(c.Chassis.PulsesPerRev > 0, "chassis.pulses_per_rev must be positive")
	check(c.PID.MaxVelocity > 0, "pid.max_velocity must be positive")
	return errs
}

// InUsePath is where the effective configuration is written, next to path.
func InUsePath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-in-use" + ext
}

// WriteInUse records the configuration actually in use beside path.
func (c Config) WriteInUse(path string) error {
	data, err := yaml.Marshal(&c)
	if err != nil {
		return errors.Wrap(err, "marshalling config")
	}
	out := InUsePath(path)
	if err := ioutil.WriteFile(out, data, 0666); err != nil {
		return errors.Wrapf(err, "writing %s", out)
	}
	return nil
}
