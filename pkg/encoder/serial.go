package encoder

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.bug.st/serial"
)

const (
	SerialBaudRate = 115200

	// The bridge firmware reports every 2ms; anything older than this means the
	// link has stalled.
	DefaultStaleAfter = 50 * time.Millisecond
)

// SerialBridge reads both drive encoders from a microcontroller that streams
// its raw 16-bit counter values as "left,right\n" lines.
type SerialBridge struct {
	port       io.ReadCloser
	log        golog.Logger
	staleAfter time.Duration
	now        func() time.Time

	closeOnce sync.Once
	closeErr  error

	lock       sync.Mutex
	acc        Accumulator
	lastUpdate time.Time
	loopErr    error
}

func OpenSerialBridge(portName string, logger golog.Logger) (*SerialBridge, error) {
	mode := &serial.Mode{BaudRate: SerialBaudRate}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "opening encoder bridge on %s", portName)
	}
	return NewSerialBridge(port, logger), nil
}

func NewSerialBridge(port io.ReadCloser, logger golog.Logger) *SerialBridge {
	return &SerialBridge{
		port:       port,
		log:        logger,
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
	}
}

// Loop reads lines until the port fails or ctx is done.  A quiet link blocks
// the read, so the port is closed when ctx is done.
func (b *SerialBridge) Loop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	defer b.log.Infow("encoder bridge loop exited")

	exited := make(chan struct{})
	defer close(exited)
	go func() {
		select {
		case <-ctx.Done():
			if err := b.Close(); err != nil {
				b.log.Warnw("closing encoder bridge", "error", err)
			}
		case <-exited:
		}
	}()

	scanner := bufio.NewScanner(b.port)
	for ctx.Err() == nil {
		if !scanner.Scan() {
			err := scanner.Err()
			if err == nil {
				err = io.EOF
			}
			b.lock.Lock()
			b.loopErr = err
			b.lock.Unlock()
			if ctx.Err() == nil {
				b.log.Errorw("encoder bridge read failed", "error", err)
			}
			return
		}
		raw, err := parseCountLine(scanner.Text())
		if err != nil {
			b.log.Debugw("ignoring encoder bridge line", "line", scanner.Text(), "error", err)
			continue
		}
		b.lock.Lock()
		b.acc.Poll(raw)
		b.lastUpdate = b.now()
		b.lock.Unlock()
	}
}

func parseCountLine(line string) ([2]int16, error) {
	var raw [2]int16
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != 2 {
		return raw, errors.Errorf("expected 2 fields, got %d", len(parts))
	}
	for i, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 16)
		if err != nil {
			return raw, errors.Wrapf(err, "field %d", i)
		}
		raw[i] = int16(v)
	}
	return raw, nil
}

func (b *SerialBridge) counts() ([2]int64, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.loopErr != nil {
		return [2]int64{}, errors.Wrap(ErrDisconnected, b.loopErr.Error())
	}
	if b.lastUpdate.IsZero() {
		return [2]int64{}, ErrDisconnected
	}
	if age := b.now().Sub(b.lastUpdate); age > b.staleAfter {
		return [2]int64{}, errors.Wrapf(ErrStale, "last update %v ago", age)
	}
	return b.acc.Counts(), nil
}

func (b *SerialBridge) Left() Counter {
	return bridgeCounter{b: b, side: 0}
}

func (b *SerialBridge) Right() Counter {
	return bridgeCounter{b: b, side: 1}
}

// Close may be called more than once.
func (b *SerialBridge) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = b.port.Close()
	})
	return b.closeErr
}

type bridgeCounter struct {
	b    *SerialBridge
	side int
}

func (c bridgeCounter) Count() (int64, error) {
	counts, err := c.b.counts()
	if err != nil {
		return 0, err
	}
	return counts[c.side], nil
}
