// Package canopen provides the ambient types shared by every CANopen
// service built on top of it: the wire-level CAN frame, the bus
// abstraction external drivers implement, and the subscriber registry
// used to route received frames to the service that owns a COB-ID.
package canopen

import "fmt"

// Frame flag bits, mirroring the classic and CAN-FD controller status bits.
const (
	FlagIDE uint8 = 1 << iota // extended (29-bit) identifier
	FlagRTR                   // remote transmission request
	FlagFDF                   // CAN-FD frame format
	FlagBRS                   // bit-rate switch (CAN-FD)
	FlagESI                   // error state indicator (CAN-FD)
)

// MaxDataBytes is the payload size of a classic CAN frame.
const MaxDataBytes = 8

// Frame is a single CAN (or CAN-FD) frame as delivered by / sent to a [Bus].
type Frame struct {
	ID    uint32
	Flags uint8
	DLC   uint8
	Data  [MaxDataBytes]byte
}

// NewFrame builds a Frame with the given identifier, flags and data length.
func NewFrame(id uint32, flags uint8, dlc uint8) Frame {
	return Frame{ID: id, Flags: flags, DLC: dlc}
}

func (f Frame) String() string {
	return fmt.Sprintf("id=x%x flags=x%x dlc=%d data=% x", f.ID, f.Flags, f.DLC, f.Data[:f.DLC])
}

// Extended reports whether the frame carries a 29-bit identifier.
func (f Frame) Extended() bool { return f.Flags&FlagIDE != 0 }

// FrameListener receives CAN frames as they arrive. Handle must not block;
// it runs on the goroutine that drives the underlying [Bus].
type FrameListener interface {
	Handle(frame Frame)
}

// Bus is the external CAN channel collaborator: a driver for SocketCAN, a
// virtual/loopback channel, or a user-supplied transport. The RPDO core
// never talks to a Bus directly, only through a [BusManager].
type Bus interface {
	Connect(...any) error
	Disconnect() error
	Send(frame Frame) error
	Subscribe(callback FrameListener) error
}
