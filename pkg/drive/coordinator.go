package drive

import (
	"context"
	"sync"
	"time"

	"github.com/edaniels/golog"

	"github.com/team6063/jeff/pkg/looper"
	"github.com/team6063/jeff/pkg/pose"
)

type State int

const (
	Idle State = iota
	Seeking
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Seeking:
		return "seeking"
	}
	return "unknown"
}

const (
	DefaultPositionTolerance = 0.05
	DefaultHeadingTolerance  = 0.02
	DefaultPeriod            = 4 * time.Millisecond
	DefaultSpinWindow        = 500 * time.Microsecond

	errorLogInterval = time.Second
)

type Config struct {
	PositionTolerance float64
	HeadingTolerance  float64
	AngleFactor       float64
	Bearing           BearingFunc
	Period            time.Duration
	SpinWindow        time.Duration
}

func DefaultConfig() Config {
	return Config{
		PositionTolerance: DefaultPositionTolerance,
		HeadingTolerance:  DefaultHeadingTolerance,
		AngleFactor:       1.0,
		Bearing:           AtanBearing,
		Period:            DefaultPeriod,
		SpinWindow:        DefaultSpinWindow,
	}
}

type Tracker interface {
	Update() error
	Pose() pose.Pose
}

type Channel interface {
	Name() string
	SetSpeed(v float64)
	SetUsePID(b bool)
	Actuate(dt time.Duration) error
}

// Coordinator drives the robot toward a single target pose.  Setting a
// target makes it busy until a control tick finds the pose within tolerance.
type Coordinator struct {
	tracker     Tracker
	left, right Channel
	cfg         Config
	log         golog.Logger

	lock        sync.Mutex
	target      pose.Pose
	busy        bool
	angleFactor float64

	loop *looper.Looper
	errs *errorLimiter
}

func New(tracker Tracker, left, right Channel, cfg Config, logger golog.Logger) *Coordinator {
	if cfg.Bearing == nil {
		cfg.Bearing = AtanBearing
	}
	logger = logger.Named("drive")
	return &Coordinator{
		tracker:     tracker,
		left:        left,
		right:       right,
		cfg:         cfg,
		log:         logger,
		angleFactor: cfg.AngleFactor,
		loop:        looper.New(cfg.Period, cfg.SpinWindow, logger),
		errs:        newErrorLimiter(errorLogInterval),
	}
}

// Looper exposes the control loop for stats and for swapping its clock.
func (c *Coordinator) Looper() *looper.Looper {
	return c.loop
}

func (c *Coordinator) DriveTo(x, y, heading float64) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.target = pose.Pose{X: x, Y: y, Heading: heading}
	c.busy = true
	c.log.Infow("new target", "target", c.target.String())
}

// DriveToAngle replaces only the target heading.
func (c *Coordinator) DriveToAngle(heading float64) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.target.Heading = heading
	c.busy = true
	c.log.Infow("new target heading", "target", c.target.String())
}

// Cancel drops the current target without touching the channels.  Modes use
// it when handing the drive back to the operator.
func (c *Coordinator) Cancel() {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.busy {
		c.log.Infow("target cancelled", "target", c.target.String())
	}
	c.busy = false
}

func (c *Coordinator) IsBusy() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.busy
}

func (c *Coordinator) State() State {
	if c.IsBusy() {
		return Seeking
	}
	return Idle
}

func (c *Coordinator) Target() pose.Pose {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.target
}

func (c *Coordinator) TargetX() float64     { return c.Target().X }
func (c *Coordinator) TargetY() float64     { return c.Target().Y }
func (c *Coordinator) TargetAngle() float64 { return c.Target().Heading }

func (c *Coordinator) SetAngleFactor(f float64) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.angleFactor = f
}

func (c *Coordinator) AngleFactor() float64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.angleFactor
}

// Step runs one seeking update against the tracker's current pose.  On
// arrival the channels are left as they are.
func (c *Coordinator) Step() {
	current := c.tracker.Pose()

	c.lock.Lock()
	if !c.busy {
		c.lock.Unlock()
		return
	}
	target := c.target
	factor := c.angleFactor
	if current.Within(target, c.cfg.PositionTolerance, c.cfg.HeadingTolerance) {
		c.busy = false
		c.lock.Unlock()
		c.log.Infow("arrived", "pose", current.String(), "target", target.String())
		return
	}
	c.lock.Unlock()

	left, right := Steer(current, target, factor, c.cfg.Bearing)
	c.setChannels(left, right, true)
}

// SetMotorSpeeds writes both channels directly.  Speeds are only scaled down
// when the larger of the two signed values exceeds 1.
func (c *Coordinator) SetMotorSpeeds(left, right float64, usePID bool) {
	left, right = NormaliseSigned(left, right)
	c.setChannels(left, right, usePID)
}

// Halt sets both channels to open-loop zero.  The target is unchanged.
func (c *Coordinator) Halt() {
	c.setChannels(0, 0, false)
}

func (c *Coordinator) setChannels(left, right float64, usePID bool) {
	c.left.SetSpeed(left)
	c.left.SetUsePID(usePID)
	c.right.SetSpeed(right)
	c.right.SetUsePID(usePID)
}

// Run executes the control loop until ctx is done, then zeroes both channels.
func (c *Coordinator) Run(ctx context.Context) {
	c.log.Infow("control loop starting", "period", c.cfg.Period)
	c.loop.Run(ctx, c.Tick)

	c.Halt()
	for _, ch := range []Channel{c.left, c.right} {
		if err := ch.Actuate(c.cfg.Period); err != nil {
			c.log.Warnw("failed to zero channel", "channel", ch.Name(), "error", err)
		}
	}
	c.log.Infow("control loop stopped", "ticks", c.loop.Ticks(), "overruns", c.loop.Overruns())
}

// Tick is one control period: update the pose, step toward the target, then
// actuate left and right.  Run calls it from the fixed-period loop.
func (c *Coordinator) Tick(dt time.Duration) {
	if err := c.tracker.Update(); err != nil {
		c.errs.log(c.log, "tracker", err)
	}
	c.Step()
	if err := c.left.Actuate(dt); err != nil {
		c.errs.log(c.log, c.left.Name(), err)
	}
	if err := c.right.Actuate(dt); err != nil {
		c.errs.log(c.log, c.right.Name(), err)
	}
}

// errorLimiter logs at most one error per source per interval and counts the
// rest.
type errorLimiter struct {
	interval time.Duration
	last     map[string]time.Time
	dropped  map[string]int
}

func newErrorLimiter(interval time.Duration) *errorLimiter {
	return &errorLimiter{
		interval: interval,
		last:     map[string]time.Time{},
		dropped:  map[string]int{},
	}
}

func (l *errorLimiter) log(logger golog.Logger, source string, err error) {
	now := time.Now()
	if now.Sub(l.last[source]) < l.interval {
		l.dropped[source]++
		return
	}
	logger.Warnw("control tick error", "source", source, "error", err, "suppressed", l.dropped[source])
	l.last[source] = now
	l.dropped[source] = 0
}

// DistanceToTarget is the straight-line distance from pose to the target.
func (c *Coordinator) DistanceToTarget() float64 {
	current := c.tracker.Pose()
	return current.Offset(c.Target()).Norm()
}
