package gyro

import (
	"context"
	"math/bits"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"
)

const (
	// Sensor data request, "SQ" sequence bits zero.  Parity is added by
	// withParity.
	cmdSensorData uint32 = 0x20000000

	// Rate data is a signed 16-bit value at 80 LSB per °/s.
	LSBPerDegPerSec = 80.0

	statusValidData = 0x1

	SampleInterval = time.Millisecond

	DefaultCalibrationSamples = 1000
)

var (
	ErrNotReady  = errors.New("gyro not ready")
	ErrBadStatus = errors.New("gyro returned invalid status")
)

// Gyro is an accumulating heading source.  Angles are in degrees, clockwise
// positive, and are never wrapped.
type Gyro interface {
	Angle() (float64, error)
}

type txer interface {
	Tx(w, r []byte) error
}

// ADXRS450 integrates the rate output of an ADXRS450 yaw-rate gyro in a
// background loop.
type ADXRS450 struct {
	conn txer
	port spi.PortCloser
	log  golog.Logger
	now  func() time.Time

	w, r [4]byte

	lock   sync.Mutex
	offset float64 // °/s
	angle  float64
	ready  bool
	err    error
}

func NewADXRS450(deviceFile string, logger golog.Logger) (*ADXRS450, error) {
	// Make sure periph is initialized.
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "initialising periph host")
	}

	// Use spireg SPI port registry to find the SPI bus.
	p, err := spireg.Open(deviceFile)
	if err != nil {
		return nil, errors.Wrapf(err, "opening SPI port %s", deviceFile)
	}

	// The ADXRS450 is SPI mode 0, up to 8MHz.
	c, err := p.Connect(physic.MegaHertz*4, spi.Mode0, 8)
	if err != nil {
		_ = p.Close()
		return nil, errors.Wrap(err, "connecting to gyro")
	}

	g := newADXRS450(c, logger)
	g.port = p
	return g, nil
}

func newADXRS450(conn txer, logger golog.Logger) *ADXRS450 {
	return &ADXRS450{
		conn: conn,
		log:  logger,
		now:  time.Now,
	}
}

func withParity(cmd uint32) uint32 {
	// The device wants odd parity over the whole command word.
	if bits.OnesCount32(cmd)%2 == 0 {
		cmd |= 1
	}
	return cmd
}

// ReadRate does one sensor-data transaction and returns the uncorrected rate
// in °/s.  The device answers each request with the data for the previous one.
func (g *ADXRS450) ReadRate() (float64, error) {
	cmd := withParity(cmdSensorData)
	g.w[0] = byte(cmd >> 24)
	g.w[1] = byte(cmd >> 16)
	g.w[2] = byte(cmd >> 8)
	g.w[3] = byte(cmd)
	if err := g.conn.Tx(g.w[:], g.r[:]); err != nil {
		return 0, errors.Wrap(err, "gyro SPI transfer")
	}
	resp := uint32(g.r[0])<<24 | uint32(g.r[1])<<16 | uint32(g.r[2])<<8 | uint32(g.r[3])
	return decodeRate(resp)
}

func decodeRate(resp uint32) (float64, error) {
	status := (resp >> 26) & 0x3
	if status != statusValidData {
		return 0, errors.Wrapf(ErrBadStatus, "status=%d word=%08x", status, resp)
	}
	raw := int16(resp >> 10)
	return float64(raw) / LSBPerDegPerSec, nil
}

// Calibrate averages the rate over n samples while the robot is still and
// uses the result as the zero-rate offset.  It also zeroes the angle.
func (g *ADXRS450) Calibrate(n int) error {
	g.log.Infow("calibrating gyro, keep the robot still", "samples", n)
	// Flush the pipelined response from before.
	if _, err := g.ReadRate(); err != nil && errors.Cause(err) != ErrBadStatus {
		return err
	}
	var sum float64
	for i := 0; i < n; i++ {
		r, err := g.ReadRate()
		if err != nil {
			return err
		}
		sum += r
		time.Sleep(SampleInterval)
	}
	offset := sum / float64(n)
	g.log.Infow("gyro calibrated", "offset_dps", offset)

	g.lock.Lock()
	g.offset = offset
	g.angle = 0
	g.ready = true
	g.err = nil
	g.lock.Unlock()
	return nil
}

func (g *ADXRS450) Offset() float64 {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.offset
}

// Loop integrates the rate every SampleInterval until ctx is done.
func (g *ADXRS450) Loop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	defer g.log.Infow("gyro loop exited")

	ticker := time.NewTicker(SampleInterval)
	defer ticker.Stop()

	last := g.now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		rate, err := g.ReadRate()
		now := g.now()
		dt := now.Sub(last).Seconds()
		last = now
		g.integrate(rate, dt, err)
	}
}

func (g *ADXRS450) integrate(rate, dt float64, err error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if err != nil {
		g.err = err
		return
	}
	g.err = nil
	g.angle += (rate - g.offset) * dt
}

func (g *ADXRS450) Angle() (float64, error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if !g.ready {
		return 0, ErrNotReady
	}
	return g.angle, g.err
}

func (g *ADXRS450) Reset() {
	g.lock.Lock()
	g.angle = 0
	g.lock.Unlock()
}

func (g *ADXRS450) Close() error {
	if g.port == nil {
		return nil
	}
	return g.port.Close()
}
