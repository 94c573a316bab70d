package od

import "sync/atomic"

// dummyBitmap is the process-wide table of built-in data-type codes that
// are legal but storageless RPDO mapping targets (§4.5). Reads are
// lock-free; writes are expected only during startup configuration, so a
// plain atomic word is enough — no ordering guarantee beyond load/store is
// required.
var dummyBitmap atomic.Uint32

// SetDummyMapped marks dataType as a legal dummy mapping target (or clears
// it, if mapped is false).
func SetDummyMapped(dataType uint8, mapped bool) {
	if dataType > 31 {
		return
	}
	for {
		old := dummyBitmap.Load()
		var next uint32
		if mapped {
			next = old | (1 << dataType)
		} else {
			next = old &^ (1 << dataType)
		}
		if dummyBitmap.CompareAndSwap(old, next) {
			return
		}
	}
}

// IsDummyMapped reports whether dataType is a legal dummy mapping target.
func IsDummyMapped(dataType uint8) bool {
	if dataType > 31 {
		return false
	}
	return dummyBitmap.Load()&(1<<dataType) != 0
}

// DefaultDummyTypes enables the standard basic data types (BOOLEAN through
// UNSIGNED32 plus REAL32) as dummy mapping targets, matching the common
// CANopen device profile default.
func DefaultDummyTypes() {
	for _, dt := range []uint8{BOOLEAN, INTEGER8, INTEGER16, INTEGER32, UNSIGNED8, UNSIGNED16, UNSIGNED32, REAL32} {
		SetDummyMapped(dt, true)
	}
}
