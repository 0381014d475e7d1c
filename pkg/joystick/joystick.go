package joystick

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
)

// Mappings for the driver's flight stick (Extreme 3D layout):
//
// Axes
//
//    Stick  l/r  = 0 (left = -32767; right = +32767)
//           f/b  = 1 (forward = -32767; back = +32767)
//    Twist       = 2 (anticlockwise = -32767)
//    Throttle    = 3 (full = -32767; off = +32767)
//    Hat    l/r  = 4
//           u/d  = 5 (up = -32767; down = +32767)
//
// Buttons
//
//    Trigger = 0
//    Thumb   = 1
//    3..6 on the stick head, 7..12 on the base.

type EventType uint8

const (
	EventTypeButton = 1
	EventTypeAxis   = 2
	EventTypeInit   = 0x80
)

const (
	ButtonTrigger = 0
	ButtonThumb   = 1
	Button3       = 2
	Button4       = 3
	Button5       = 4
	Button6       = 5
	// Base buttons 11 and 12.
	ButtonNextTunable = 10
	ButtonMode        = 11

	AxisX        = 0
	AxisY        = 1
	AxisTwist    = 2
	AxisThrottle = 3
	AxisHatX     = 4
	AxisHatY     = 5

	AxisMax = 32767
)

func (e EventType) String() string {
	switch e {
	case EventTypeAxis:
		return "axis"
	case EventTypeButton:
		return "button"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(e))
	}
}

type Joystick struct {
	device io.ReadCloser

	deviceEpoch    uint32
	wallclockEpoch time.Time
}

type rawEvent struct {
	Time   uint32
	Value  int16
	Type   uint8
	Number uint8
}

type Event struct {
	Time   time.Time
	Value  int16
	Type   EventType
	Number uint8
}

func (e *Event) String() string {
	return fmt.Sprintf("%v(%v)=%v", e.Type, e.Number, e.Value)
}

// Float returns an axis value scaled to [-1, 1].
func (e *Event) Float() float64 {
	v := float64(e.Value) / AxisMax
	if v < -1 {
		return -1
	}
	return v
}

func (e *Event) Pressed() bool {
	return e.Type == EventTypeButton && e.Value == 1
}

func NewJoystick(device string) (*Joystick, error) {
	f, err := os.Open(device)
	if err != nil {
		return nil, errors.Wrap(err, "opening joystick")
	}
	return New(f), nil
}

// New reads joystick events in the Linux js format from r.
func New(r io.ReadCloser) *Joystick {
	return &Joystick{
		device: r,
	}
}

func (j *Joystick) ReadEvent() (*Event, error) {
	var rawEvent rawEvent
	err := binary.Read(j.device, binary.LittleEndian, &rawEvent)
	if err != nil {
		return nil, err
	}

	if j.deviceEpoch == 0 {
		j.deviceEpoch = rawEvent.Time
		j.wallclockEpoch = time.Now()
	}

	return &Event{
		Time:   j.wallclockEpoch.Add(time.Duration(rawEvent.Time-j.deviceEpoch) * time.Millisecond),
		Value:  rawEvent.Value,
		Type:   EventType(rawEvent.Type &^ EventTypeInit),
		Number: rawEvent.Number,
	}, nil
}

func (j *Joystick) Close() error {
	return j.device.Close()
}

// Loop forwards events to the events channel until ctx is done or the device
// fails.  The channel is closed on return.
func (j *Joystick) Loop(ctx context.Context, events chan<- *Event, logger golog.Logger) error {
	defer close(events)
	for ctx.Err() == nil {
		event, err := j.ReadEvent()
		if err != nil {
			logger.Errorw("failed to read from joystick", "error", err)
			return err
		}
		logger.Debugw("joystick event", "event", event.String())
		select {
		case events <- event:
		case <-ctx.Done():
		}
	}
	return ctx.Err()
}
