package encoder

import (
	"context"
	"io"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

type fakeCounter struct {
	count int64
	err   error
}

func (f *fakeCounter) Count() (int64, error) {
	return f.count, f.err
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func TestAccumulatorWraps(t *testing.T) {
	var a Accumulator
	a.Poll([2]int16{32760, -32760})
	test.That(t, a.Counts(), test.ShouldResemble, [2]int64{0, 0})

	// Left wraps forwards past +32767, right wraps backwards past -32768.
	a.Poll([2]int16{-32766, 32766})
	test.That(t, a.Counts(), test.ShouldResemble, [2]int64{10, -10})

	a.Poll([2]int16{-32756, 32756})
	test.That(t, a.Counts(), test.ShouldResemble, [2]int64{20, -20})

	a.Zero()
	test.That(t, a.Counts(), test.ShouldResemble, [2]int64{0, 0})
}

func TestDistanceAndReverse(t *testing.T) {
	c := &fakeCounter{count: 360}
	cfg := Config{PulsesPerRev: 360, WheelDiameter: 0.1524}
	e := New(c, cfg)
	d, err := e.Distance()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d, test.ShouldAlmostEqual, 0.1524*math.Pi, 1e-12)

	cfg.Reverse = true
	e = New(c, cfg)
	d, err = e.Distance()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d, test.ShouldAlmostEqual, -0.1524*math.Pi, 1e-12)
}

func TestDistanceError(t *testing.T) {
	e := New(&fakeCounter{err: ErrDisconnected}, Config{PulsesPerRev: 360, WheelDiameter: 0.1524})
	_, err := e.Distance()
	test.That(t, errors.Is(err, ErrDisconnected), test.ShouldBeTrue)
}

func TestRate(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	c := &fakeCounter{}
	e := New(c, Config{PulsesPerRev: 100, WheelDiameter: 1 / math.Pi}, WithClock(clock.now))
	// 1 pulse = 1cm.

	r, err := e.Rate()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r, test.ShouldEqual, 0.0)

	clock.t = clock.t.Add(10 * time.Millisecond)
	c.count = 5
	r, err = e.Rate()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r, test.ShouldAlmostEqual, 5.0, 1e-9)

	// Too soon for a new measurement: previous rate is held.
	clock.t = clock.t.Add(time.Millisecond)
	c.count = 100
	r, err = e.Rate()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r, test.ShouldAlmostEqual, 5.0, 1e-9)

	clock.t = clock.t.Add(9 * time.Millisecond)
	r, err = e.Rate()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r, test.ShouldAlmostEqual, 95.0, 1e-9)
}

func TestParseCountLine(t *testing.T) {
	raw, err := parseCountLine("12,-7\r\n")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, raw, test.ShouldResemble, [2]int16{12, -7})

	_, err = parseCountLine("init")
	test.That(t, err, test.ShouldNotBeNil)
	_, err = parseCountLine("1,2,3")
	test.That(t, err, test.ShouldNotBeNil)
	_, err = parseCountLine("40000,0")
	test.That(t, err, test.ShouldNotBeNil)
}

type readCloser struct {
	io.Reader
}

func (readCloser) Close() error { return nil }

func TestSerialBridge(t *testing.T) {
	logger := golog.NewTestLogger(t)
	clock := &fakeClock{t: time.Unix(1000, 0)}
	b := NewSerialBridge(readCloser{strings.NewReader("init\n0,0\n10,-4\ngarbage\n25,-8\n")}, logger)
	b.now = clock.now

	_, err := b.Left().Count()
	test.That(t, errors.Is(err, ErrDisconnected), test.ShouldBeTrue)

	var wg sync.WaitGroup
	wg.Add(1)
	b.Loop(context.Background(), &wg)
	wg.Wait()

	// The reader hit EOF so the bridge reports itself disconnected.
	_, err = b.Left().Count()
	test.That(t, errors.Is(err, ErrDisconnected), test.ShouldBeTrue)

	test.That(t, b.acc.Counts(), test.ShouldResemble, [2]int64{25, -8})
}

func TestSerialBridgeStale(t *testing.T) {
	logger := golog.NewTestLogger(t)
	clock := &fakeClock{t: time.Unix(1000, 0)}
	b := NewSerialBridge(readCloser{strings.NewReader("")}, logger)
	b.now = clock.now

	b.acc.Poll([2]int16{0, 0})
	b.acc.Poll([2]int16{3, 4})
	b.lastUpdate = clock.t

	l, err := b.Left().Count()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, l, test.ShouldEqual, int64(3))
	r, err := b.Right().Count()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r, test.ShouldEqual, int64(4))

	clock.t = clock.t.Add(DefaultStaleAfter + time.Millisecond)
	_, err = b.Right().Count()
	test.That(t, errors.Is(err, ErrStale), test.ShouldBeTrue)
}

func TestSerialBridgeLoopExitsOnQuietLink(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	b := NewSerialBridge(pr, golog.NewTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go b.Loop(ctx, &wg)

	time.Sleep(20 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("bridge loop still blocked reading after cancel")
	}
	// Closing again after the loop closed the port is harmless.
	test.That(t, b.Close(), test.ShouldBeNil)
}
