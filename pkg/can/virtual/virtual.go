// Package virtual implements an in-process loopback [canopen.Bus], used
// for tests and local development in place of a real CAN adapter. Every
// Bus sharing the same channel name joins the same broadcast domain, so
// N buses opened against "sim0" all see each other's frames — the
// in-process analogue of the teacher's TCP broker.
package virtual

import (
	"sync"

	canopen "github.com/canopenx/rpdo"
)

var (
	registryMu sync.Mutex
	registry   = map[string]*broker{}
)

// broker is the shared broadcast domain for one channel name.
type broker struct {
	mu      sync.Mutex
	members map[*Bus]struct{}
}

func getBroker(channel string) *broker {
	registryMu.Lock()
	defer registryMu.Unlock()
	b, ok := registry[channel]
	if !ok {
		b = &broker{members: make(map[*Bus]struct{})}
		registry[channel] = b
	}
	return b
}

// Bus is a [canopen.Bus] backed by an in-process broadcast domain rather
// than a physical or networked CAN adapter.
type Bus struct {
	mu           sync.Mutex
	channel      string
	broker       *broker
	connected    bool
	receiveOwn   bool
	framehandler canopen.FrameListener
}

// NewVirtualCanBus returns a [canopen.Bus] joining the loopback broadcast
// domain named by channel once [Bus.Connect] is called.
func NewVirtualCanBus(channel string) (canopen.Bus, error) {
	return &Bus{channel: channel}, nil
}

// Connect joins the broadcast domain for this bus's channel name.
func (b *Bus) Connect(...any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broker = getBroker(b.channel)
	b.broker.mu.Lock()
	b.broker.members[b] = struct{}{}
	b.broker.mu.Unlock()
	b.connected = true
	return nil
}

// Disconnect leaves the broadcast domain.
func (b *Bus) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.broker != nil {
		b.broker.mu.Lock()
		delete(b.broker.members, b)
		b.broker.mu.Unlock()
	}
	b.connected = false
	return nil
}

// SetReceiveOwn controls whether frames this bus sends are echoed back to
// its own listener, matching the real CAN controller's optional loopback.
func (b *Bus) SetReceiveOwn(receiveOwn bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receiveOwn = receiveOwn
}

// Send broadcasts frame to every other bus joined to the same channel,
// and to this bus's own listener if receive-own is enabled.
func (b *Bus) Send(frame canopen.Frame) error {
	b.mu.Lock()
	br := b.broker
	selfHandler := b.framehandler
	receiveOwn := b.receiveOwn
	b.mu.Unlock()

	if br == nil {
		return canopen.ErrInvalidState
	}

	br.mu.Lock()
	peers := make([]*Bus, 0, len(br.members))
	for peer := range br.members {
		if peer != b {
			peers = append(peers, peer)
		}
	}
	br.mu.Unlock()

	if receiveOwn && selfHandler != nil {
		selfHandler.Handle(frame)
	}
	for _, peer := range peers {
		peer.mu.Lock()
		handler := peer.framehandler
		peer.mu.Unlock()
		if handler != nil {
			handler.Handle(frame)
		}
	}
	return nil
}

// Subscribe installs the listener that receives every frame broadcast by
// another member of this bus's channel.
func (b *Bus) Subscribe(framehandler canopen.FrameListener) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.framehandler = framehandler
	return nil
}
