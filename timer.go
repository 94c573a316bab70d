package canopen

import (
	"sync"
	"sync/atomic"
	"time"
)

// Timer is the re-armable one-shot deadline abstraction the RPDO service
// uses for its event timer and synchronous-window timer. Stop guarantees
// that any fire which has not already won its race to run will never run
// after Stop returns — the race the source's raw platform timers left to
// the caller to avoid.
type Timer interface {
	// Reset (re-)arms the timer to fire callback after d, replacing any
	// previously armed deadline and callback.
	Reset(d time.Duration, callback func())
	// Stop disarms the timer. Cancellation is resolved atomically against
	// a concurrent fire: if fire has not yet committed to running when
	// Stop's cancellation lands, it observes itself cancelled and never
	// invokes callback, no matter how much earlier fire had already read
	// the timer's state.
	Stop()
}

// NewTimer returns a [Timer] backed by [time.AfterFunc].
func NewTimer() Timer {
	return &afterFuncTimer{}
}

// afterFuncTimer resolves the cancel-vs-fire race with a compare-and-swap
// on the arming itself rather than a generation counter compared after an
// unlock. A generation snapshot taken under the lock and compared later,
// once unlocked, leaves a window in which Stop can complete in between —
// fire would then act on a decision that was already stale by the time it
// used it. Tying the decision to a single atomic op on the arming removes
// that window: whichever of fire or Stop resolves the arming first is the
// only one whose outcome can ever be observed.
type afterFuncTimer struct {
	mu    sync.Mutex
	timer *time.Timer
	armed *arming
}

type arming struct {
	resolved atomic.Bool
	callback func()
}

func (t *afterFuncTimer) Reset(d time.Duration, callback func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	if t.armed != nil {
		t.armed.resolved.Store(true)
	}

	a := &arming{callback: callback}
	t.armed = a
	t.timer = time.AfterFunc(d, func() {
		if a.resolved.CompareAndSwap(false, true) {
			a.callback()
		}
	})
}

func (t *afterFuncTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	if t.armed != nil {
		t.armed.resolved.Store(true)
		t.armed = nil
	}
}
