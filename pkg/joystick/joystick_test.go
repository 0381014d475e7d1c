package joystick

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"io/ioutil"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"go.viam.com/test"
)

func encode(t *testing.T, events ...rawEvent) io.ReadCloser {
	var buf bytes.Buffer
	for _, e := range events {
		test.That(t, binary.Write(&buf, binary.LittleEndian, e), test.ShouldBeNil)
	}
	return ioutil.NopCloser(&buf)
}

func TestReadEvent(t *testing.T) {
	j := New(encode(t,
		rawEvent{Time: 1000, Value: -32767, Type: EventTypeAxis | EventTypeInit, Number: AxisY},
		rawEvent{Time: 1250, Value: 1, Type: EventTypeButton, Number: ButtonTrigger},
	))

	e, err := j.ReadEvent()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, e.Type, test.ShouldEqual, EventType(EventTypeAxis))
	test.That(t, e.Number, test.ShouldEqual, uint8(AxisY))
	test.That(t, e.Float(), test.ShouldEqual, -1.0)
	test.That(t, e.Pressed(), test.ShouldBeFalse)
	first := e.Time

	e, err = j.ReadEvent()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, e.Pressed(), test.ShouldBeTrue)
	test.That(t, e.Time.Sub(first), test.ShouldEqual, 250*time.Millisecond)
	test.That(t, e.String(), test.ShouldEqual, "button(0)=1")

	_, err = j.ReadEvent()
	test.That(t, err, test.ShouldEqual, io.EOF)
}

func TestFloatClamps(t *testing.T) {
	e := &Event{Type: EventTypeAxis, Value: -32768}
	test.That(t, e.Float(), test.ShouldEqual, -1.0)
	e.Value = 16384
	test.That(t, e.Float(), test.ShouldAlmostEqual, 0.5, 1e-4)
}

func TestLoopClosesChannel(t *testing.T) {
	j := New(encode(t, rawEvent{Time: 1, Value: 1, Type: EventTypeButton, Number: ButtonMode}))
	events := make(chan *Event, 4)
	err := j.Loop(context.Background(), events, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldEqual, io.EOF)

	var got []*Event
	for e := range events {
		got = append(got, e)
	}
	test.That(t, got, test.ShouldHaveLength, 1)
	test.That(t, got[0].Number, test.ShouldEqual, uint8(ButtonMode))
}
