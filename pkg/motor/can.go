package motor

import (
	"context"
	"encoding/binary"
	"math"
	"net"
	"time"

	"github.com/pkg/errors"
	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
)

const (
	// Duty-cycle command frames are sent on DutyCycleBaseID + device number.
	DutyCycleBaseID uint32 = 0x200

	canSendTimeout = 5 * time.Millisecond
)

type frameTransmitter interface {
	TransmitFrame(ctx context.Context, frame can.Frame) error
}

// CANBus owns a SocketCAN connection shared by several motor controllers.
type CANBus struct {
	conn net.Conn
	tx   frameTransmitter
}

func DialCAN(ctx context.Context, iface string) (*CANBus, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, errors.Wrapf(err, "socketcan dial %s", iface)
	}
	return &CANBus{
		conn: conn,
		tx:   socketcan.NewTransmitter(conn),
	}, nil
}

func (b *CANBus) Motor(device uint8) *CAN {
	return &CAN{tx: b.tx, id: DutyCycleBaseID + uint32(device)}
}

func (b *CANBus) Close() error {
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

// CAN is a motor controller on the CAN bus taking signed 16-bit duty-cycle
// frames.
type CAN struct {
	tx frameTransmitter
	id uint32
}

func (c *CAN) Set(v float64) error {
	ctx, cancel := context.WithTimeout(context.Background(), canSendTimeout)
	defer cancel()
	if err := c.tx.TransmitFrame(ctx, DutyCycleFrame(c.id, v)); err != nil {
		return errors.Wrapf(err, "sending duty cycle to 0x%x", c.id)
	}
	return nil
}

func DutyCycleFrame(id uint32, v float64) can.Frame {
	duty := int16(math.Round(Clamp(v) * math.MaxInt16))
	f := can.Frame{
		ID:     id,
		Length: 2,
	}
	binary.BigEndian.PutUint16(f.Data[:2], uint16(duty))
	return f
}
