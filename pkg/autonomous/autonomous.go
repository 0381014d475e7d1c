package autonomous

import (
	"context"
	"sync"
	"time"

	"github.com/edaniels/golog"

	"github.com/team6063/jeff/pkg/config"
)

const PollInterval = 20 * time.Millisecond

type Robot interface {
	DriveTo(x, y, heading float64)
	IsBusy() bool
	CancelDrive()
	Halt()
}

type Outcome int

const (
	Running Outcome = iota
	Arrived
	TimedOut
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Running:
		return "running"
	case Arrived:
		return "arrived"
	case TimedOut:
		return "timed out"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Mode drives to a single target pose and then stops.
type Mode struct {
	robot  Robot
	target config.Autonomous
	log    golog.Logger

	PollInterval time.Duration

	lock    sync.Mutex
	outcome Outcome

	cancel context.CancelFunc
	stopWG sync.WaitGroup
	done   chan struct{}
}

func New(r Robot, target config.Autonomous, logger golog.Logger) *Mode {
	return &Mode{
		robot:        r,
		target:       target,
		log:          logger.Named("autonomous"),
		PollInterval: PollInterval,
	}
}

func (m *Mode) Name() string {
	return "Autonomous mode"
}

func (m *Mode) Start(ctx context.Context) {
	m.lock.Lock()
	m.outcome = Running
	m.done = make(chan struct{})
	m.lock.Unlock()

	m.stopWG.Add(1)
	var loopCtx context.Context
	loopCtx, m.cancel = context.WithCancel(ctx)
	go m.loop(loopCtx)
}

func (m *Mode) Stop() {
	m.cancel()
	m.stopWG.Wait()
}

// Done is closed once the run has finished for any reason.
func (m *Mode) Done() <-chan struct{} {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.done
}

func (m *Mode) Outcome() Outcome {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.outcome
}

func (m *Mode) finish(o Outcome) {
	m.lock.Lock()
	m.outcome = o
	close(m.done)
	m.lock.Unlock()
}

func (m *Mode) loop(ctx context.Context) {
	defer m.stopWG.Done()

	t := m.target
	m.log.Infow("driving to target", "x", t.X, "y", t.Y, "heading", t.Heading)
	start := time.Now()
	m.robot.DriveTo(t.X, t.Y, t.Heading)

	var timeout <-chan time.Time
	if t.Timeout > 0 {
		timer := time.NewTimer(t.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}
	ticker := time.NewTicker(m.PollInterval)
	defer ticker.Stop()

	outcome := Cancelled
	defer func() {
		if outcome != Arrived {
			m.robot.CancelDrive()
		}
		m.robot.Halt()
		m.finish(outcome)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timeout:
			m.log.Warnw("target not reached in time", "timeout", t.Timeout)
			outcome = TimedOut
			return
		case <-ticker.C:
			if !m.robot.IsBusy() {
				m.log.Infow("target reached", "elapsed", time.Since(start))
				outcome = Arrived
				return
			}
		}
	}
}
