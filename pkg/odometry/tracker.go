package odometry

import (
	"math"
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/team6063/jeff/pkg/pose"
)

var ErrGyroFallback = errors.New("gyro unavailable, using encoder heading")

type DistanceSource interface {
	// Distance returns the cumulative distance travelled in metres.
	Distance() (float64, error)
}

type AngleSource interface {
	// Angle returns the cumulative rotation, clockwise positive.
	Angle() (float64, error)
}

type Config struct {
	WheelSeparation float64
	// GyroScale converts gyro units into radians.
	GyroScale float64
}

func DefaultConfig(wheelSeparation float64) Config {
	return Config{
		WheelSeparation: wheelSeparation,
		GyroScale:       math.Pi / 180,
	}
}

// Tracker integrates wheel travel and gyro rotation into a pose.
type Tracker struct {
	left, right DistanceSource
	gyro        AngleSource
	cfg         Config
	log         golog.Logger

	updateLock sync.Mutex
	primed     bool
	gyroPrimed bool
	lastL      float64
	lastR      float64
	lastGyro   float64

	poseLock       sync.Mutex
	pose           pose.Pose
	encoderHeading float64
}

func New(left, right DistanceSource, gyro AngleSource, cfg Config, logger golog.Logger) *Tracker {
	return &Tracker{
		left:  left,
		right: right,
		gyro:  gyro,
		cfg:   cfg,
		log:   logger.Named("odometry"),
	}
}

// Update advances the pose by the sensor change since the previous call.
// The first call only records the starting readings.
func (t *Tracker) Update() error {
	t.updateLock.Lock()
	defer t.updateLock.Unlock()

	l, err := t.left.Distance()
	if err != nil {
		return errors.Wrap(err, "reading left encoder")
	}
	r, err := t.right.Distance()
	if err != nil {
		return errors.Wrap(err, "reading right encoder")
	}
	g, gyroErr := t.gyro.Angle()

	if !t.primed {
		t.lastL, t.lastR = l, r
		t.primed = true
		if gyroErr == nil {
			t.lastGyro = g
			t.gyroPrimed = true
		}
		return nil
	}

	dL := l - t.lastL
	dR := r - t.lastR
	t.lastL, t.lastR = l, r

	d := (dL + dR) / 2
	dEnc := (dL - dR) / t.cfg.WheelSeparation

	var dTheta float64
	var result error
	switch {
	case gyroErr != nil:
		// Rebaseline the gyro once it comes back.
		t.gyroPrimed = false
		dTheta = dEnc
		result = multierr.Append(ErrGyroFallback, gyroErr)
	case !t.gyroPrimed:
		t.lastGyro = g
		t.gyroPrimed = true
		dTheta = dEnc
	default:
		dTheta = (g - t.lastGyro) * t.cfg.GyroScale
		t.lastGyro = g
	}

	t.poseLock.Lock()
	mid := t.pose.Heading + dTheta/2
	t.pose.X += d * math.Sin(mid)
	t.pose.Y += d * math.Cos(mid)
	t.pose.Heading += dTheta
	t.encoderHeading += dEnc
	t.poseLock.Unlock()

	return result
}

func (t *Tracker) Pose() pose.Pose {
	t.poseLock.Lock()
	defer t.poseLock.Unlock()
	return t.pose
}

// EncoderHeading is the heading from wheel travel alone, for comparison with
// the gyro.
func (t *Tracker) EncoderHeading() float64 {
	t.poseLock.Lock()
	defer t.poseLock.Unlock()
	return t.encoderHeading
}

// Reset sets the pose.  Sensor baselines are kept so the next Update only
// applies the change since the last one.
func (t *Tracker) Reset(p pose.Pose) {
	t.updateLock.Lock()
	defer t.updateLock.Unlock()
	t.poseLock.Lock()
	defer t.poseLock.Unlock()
	t.pose = p
	t.encoderHeading = p.Heading
	t.log.Infow("pose reset", "pose", p.String())
}
