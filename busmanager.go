package canopen

import (
	"fmt"
	"sync"
)

// BusManager multiplexes a single [Bus] among many subscribers, each
// registered against the COB-ID it cares about. It is the only thing
// that ever talks to the underlying driver; services such as the RPDO
// state machine subscribe and send frames through it instead.
type BusManager struct {
	mu          sync.RWMutex
	bus         Bus
	subscribers map[uint32]FrameListener
}

// NewBusManager wraps bus, subscribing to it immediately so frames start
// flowing to whatever listeners are registered afterwards.
func NewBusManager(bus Bus) (*BusManager, error) {
	bm := &BusManager{
		bus:         bus,
		subscribers: make(map[uint32]FrameListener),
	}
	if err := bus.Subscribe(bm); err != nil {
		return nil, fmt.Errorf("subscribe to bus: %w", err)
	}
	return bm, nil
}

// Handle implements [FrameListener]; it is invoked by the underlying bus
// driver for every received frame and dispatches it to the registered
// listener for that COB-ID, if any.
func (bm *BusManager) Handle(frame Frame) {
	bm.mu.RLock()
	listener, ok := bm.subscribers[frame.ID]
	bm.mu.RUnlock()
	if ok {
		listener.Handle(frame)
	}
}

// Subscribe registers listener to receive frames with the given COB-ID,
// replacing any previous registration for that ID.
func (bm *BusManager) Subscribe(cobID uint32, listener FrameListener) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	bm.subscribers[cobID] = listener
}

// Unsubscribe removes any listener registered for cobID.
func (bm *BusManager) Unsubscribe(cobID uint32) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	delete(bm.subscribers, cobID)
}

// Send transmits frame on the underlying bus.
func (bm *BusManager) Send(frame Frame) error {
	return bm.bus.Send(frame)
}
