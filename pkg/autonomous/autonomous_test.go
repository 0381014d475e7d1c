package autonomous

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"go.viam.com/test"

	"github.com/team6063/jeff/pkg/config"
)

type fakeRobot struct {
	lock      sync.Mutex
	target    [3]float64
	busyPolls int
	halts     int
	cancels   int
}

func (f *fakeRobot) CancelDrive() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.cancels++
}

func (f *fakeRobot) DriveTo(x, y, heading float64) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.target = [3]float64{x, y, heading}
}

// IsBusy reports busy for the configured number of polls; -1 is forever.
func (f *fakeRobot) IsBusy() bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.busyPolls < 0 {
		return true
	}
	if f.busyPolls == 0 {
		return false
	}
	f.busyPolls--
	return true
}

func (f *fakeRobot) Halt() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.halts++
}

func run(t *testing.T, fr *fakeRobot, target config.Autonomous) *Mode {
	m := New(fr, target, golog.NewTestLogger(t))
	m.PollInterval = time.Millisecond
	m.Start(context.Background())
	select {
	case <-m.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("autonomous run did not finish")
	}
	m.Stop()
	return m
}

func TestArrives(t *testing.T) {
	fr := &fakeRobot{busyPolls: 5}
	m := run(t, fr, config.Autonomous{X: 1, Y: 2, Heading: 0.5, Timeout: time.Minute})

	test.That(t, m.Outcome(), test.ShouldEqual, Arrived)
	test.That(t, fr.target, test.ShouldResemble, [3]float64{1, 2, 0.5})
	test.That(t, fr.cancels, test.ShouldEqual, 0)
	test.That(t, fr.halts, test.ShouldEqual, 1)
}

func TestTimesOut(t *testing.T) {
	fr := &fakeRobot{busyPolls: -1}
	m := run(t, fr, config.Autonomous{Y: 2, Timeout: 20 * time.Millisecond})

	test.That(t, m.Outcome(), test.ShouldEqual, TimedOut)
	test.That(t, m.Outcome().String(), test.ShouldEqual, "timed out")
	test.That(t, fr.halts, test.ShouldEqual, 1)
	test.That(t, fr.cancels, test.ShouldEqual, 1)
}

func TestStopCancels(t *testing.T) {
	fr := &fakeRobot{busyPolls: -1}
	m := New(fr, config.Autonomous{Y: 2}, golog.NewTestLogger(t))
	m.Start(context.Background())
	m.Stop()

	<-m.Done()
	test.That(t, m.Outcome(), test.ShouldEqual, Cancelled)
	test.That(t, fr.halts, test.ShouldEqual, 1)
}
