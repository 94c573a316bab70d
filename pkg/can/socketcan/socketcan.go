// Package socketcan implements [canopen.Bus] over a Linux SocketCAN raw
// CAN socket. It is the real external CAN-channel driver that the RPDO
// core (§6.1) only ever consumes through a [canopen.BusManager] — the
// core itself never imports this package.
package socketcan

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"unsafe"

	canopen "github.com/canopenx/rpdo"
	"golang.org/x/sys/unix"
)

const frameSize = 16 // struct can_frame, as laid out on the wire by the kernel

// DefaultReadTimeout bounds each blocking read so Disconnect can always
// join the reception goroutine promptly.
var DefaultReadTimeout = unix.Timeval{Sec: 0, Usec: 200000}

type wireFrame struct {
	id   uint32
	dlc  uint8
	pad  uint8
	res0 uint8
	res1 uint8
	data [8]uint8
}

// Bus is a [canopen.Bus] backed by an AF_CAN SOCK_RAW socket bound to a
// named interface (e.g. "can0").
type Bus struct {
	fd     int
	file   *os.File
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	listener canopen.FrameListener
	logger   *slog.Logger
}

// NewBus opens (but does not yet start reception on) a raw CAN socket
// bound to channel, which must already be administratively up.
func NewBus(channel string) (canopen.Bus, error) {
	iface, err := unix.IfNameIndex()
	if err != nil {
		return nil, fmt.Errorf("socketcan: enumerate interfaces: %w", err)
	}
	var index int
	for _, entry := range iface {
		if entry.Name == channel {
			index = int(entry.Index)
			break
		}
	}
	if index == 0 {
		return nil, fmt.Errorf("socketcan: interface %q not found", channel)
	}

	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("socketcan: create socket: %w", err)
	}
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &DefaultReadTimeout); err != nil {
		return nil, fmt.Errorf("socketcan: set receive timeout: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: index}); err != nil {
		return nil, fmt.Errorf("socketcan: bind %s: %w", channel, err)
	}
	return &Bus{fd: fd, logger: slog.Default().With("service", "[SocketCAN]", "channel", channel)}, nil
}

// Connect starts the background reception goroutine.
func (b *Bus) Connect(...any) error {
	var ctx context.Context
	ctx, b.cancel = context.WithCancel(context.Background())
	b.file = os.NewFile(uintptr(b.fd), "socketcan")
	b.wg.Add(1)
	go b.receiveLoop(ctx)
	return nil
}

// Disconnect stops reception and closes the socket.
func (b *Bus) Disconnect() error {
	if b.cancel == nil {
		return nil
	}
	b.cancel()
	b.wg.Wait()
	return b.file.Close()
}

// Send writes frame to the CAN socket in the kernel's struct can_frame
// layout.
func (b *Bus) Send(frame canopen.Frame) error {
	wire := wireFrame{id: frame.ID, dlc: frame.DLC, pad: frame.Flags, data: frame.Data}
	raw := (*(*[frameSize]byte)(unsafe.Pointer(&wire)))[:]
	n, err := b.file.Write(raw)
	if err != nil {
		return err
	}
	if n != frameSize {
		return fmt.Errorf("socketcan: short write: wrote %d of %d bytes", n, frameSize)
	}
	return nil
}

// Subscribe installs the listener invoked for every frame received on the
// socket.
func (b *Bus) Subscribe(listener canopen.FrameListener) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listener = listener
	return nil
}

// SetReceiveOwn toggles CAN_RAW_RECV_OWN_MSGS, echoing locally-sent frames
// back to this socket's own listener — useful for loopback testing against
// real SocketCAN ("vcan0").
func (b *Bus) SetReceiveOwn(enabled bool) error {
	value := 0
	if enabled {
		value = 1
	}
	return unix.SetsockoptInt(b.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_RECV_OWN_MSGS, value)
}

// SetFilters installs a CAN_RAW_FILTER list, restricting which CAN IDs the
// kernel delivers to this socket.
func (b *Bus) SetFilters(filters []unix.CanFilter) error {
	return unix.SetsockoptCanRawFilter(b.fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, filters)
}

func (b *Bus) receiveLoop(ctx context.Context) {
	defer b.wg.Done()
	raw := make([]byte, frameSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := b.file.Read(raw)
		if err != nil {
			if pathErr, ok := err.(*os.PathError); ok && pathErr.Timeout() {
				continue
			}
			b.logger.Warn("reception stopped", "err", err)
			return
		}
		if n != frameSize {
			continue
		}
		wire := (*wireFrame)(unsafe.Pointer(&raw[0]))
		frame := canopen.Frame{ID: wire.id, DLC: wire.dlc, Flags: wire.pad, Data: wire.data}

		b.mu.Lock()
		listener := b.listener
		b.mu.Unlock()
		if listener != nil {
			listener.Handle(frame)
		}
	}
}
