package pdo

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"time"

	canopen "github.com/canopenx/rpdo"
	"github.com/canopenx/rpdo/pkg/emergency"
	"github.com/canopenx/rpdo/pkg/od"
)

// Indication is invoked after every frame that reaches the dictionary
// update step (event-driven arrival or a SYNC tick with a buffered
// frame), carrying the resulting abort code (0 on success) and the raw
// payload. It runs on the goroutine that drove the receive or must not
// block (§4.4).
type Indication func(rpdo *RPDO, abort od.Abort, payload []byte, userData any)

// ErrorHandler is invoked asynchronously on runtime anomalies: PDO
// length mismatches and event-timer timeouts, carrying the CiA 301
// emergency error code and error register value.
type ErrorHandler func(rpdo *RPDO, eec uint16, errorRegister byte, userData any)

// RPDO is one configured Receive-PDO service instance, bound to a
// communication parameter object (0x1400+n) and a mapping parameter
// object (0x1600+n). It is not internally thread-safe beyond its own
// mutex: Start, Stop, Handle, OnSync and Rtr are all expected to run on
// the same executor (§5).
type RPDO struct {
	mu sync.Mutex

	bm     *canopen.BusManager
	logger *slog.Logger
	dict   *od.ObjectDictionary
	emcy   *emergency.EMCY
	alloc  canopen.Allocator

	num       uint16
	commEntry *od.Entry
	mapEntry  *od.Entry

	comm    CommunicationParameter
	mapping MappingRecord

	started          bool
	subscribed       bool
	subscribedID     uint32
	haveReceivedData bool

	eventTimer      canopen.Timer
	syncWindowTimer canopen.Timer
	syncWindow      func() time.Duration

	rxBuf    []byte
	rxLen    int
	buffered bool

	ind         Indication
	indUserData any
	errh        ErrorHandler
	errUserData any
}

// NewRPDO constructs an RPDO bound to rpdoNum (1-based), requiring that
// dict already contains both its communication (0x1400+n-1) and mapping
// (0x1600+n-1) parameter objects. The service starts in the STOPPED
// state; call [RPDO.Start] to activate it.
func NewRPDO(
	alloc canopen.Allocator,
	bm *canopen.BusManager,
	logger *slog.Logger,
	dict *od.ObjectDictionary,
	emcy *emergency.EMCY,
	rpdoNum uint16,
) (*RPDO, error) {
	if bm == nil || dict == nil || emcy == nil || rpdoNum < 1 || rpdoNum > 512 {
		return nil, canopen.ErrIllegalArgument
	}
	if alloc == nil {
		alloc = canopen.DefaultAllocator
	}
	if logger == nil {
		logger = slog.Default()
	}

	offset := rpdoNum - 1
	commEntry, ok := dict.Find(od.EntryRPDOCommunicationStart + offset)
	if !ok {
		return nil, canopen.ErrOdParameters
	}
	mapEntry, ok := dict.Find(od.EntryRPDOMappingStart + offset)
	if !ok {
		return nil, canopen.ErrOdParameters
	}

	scratch, err := alloc.Alloc(CanMaxLen)
	if err != nil {
		return nil, canopen.ErrOutOfMemory
	}

	rpdo := &RPDO{
		bm:        bm,
		logger:    logger.With("service", "[RPDO]", "num", rpdoNum),
		dict:      dict,
		emcy:      emcy,
		alloc:     alloc,
		num:       rpdoNum,
		commEntry: commEntry,
		mapEntry:  mapEntry,
		rxBuf:     scratch,

		eventTimer:      canopen.NewTimer(),
		syncWindowTimer: canopen.NewTimer(),
	}

	if err := rpdo.loadComm(); err != nil {
		alloc.Free(scratch)
		return nil, err
	}
	if err := rpdo.loadMapping(); err != nil {
		alloc.Free(scratch)
		return nil, err
	}

	commEntry.AddExtension(rpdo, od.ReadEntryDefault, rpdo.writeComm)
	mapEntry.AddExtension(rpdo, od.ReadEntryDefault, rpdo.writeMapping)

	rpdo.logger.Debug("created RPDO",
		"cobId", fmt.Sprintf("x%x", rpdo.comm.CobID),
		"valid", rpdo.comm.Valid(),
		"mapped", rpdo.mapping.Count,
	)
	return rpdo, nil
}

// SetSyncWindow installs the accessor the service consults at SYNC time
// for the synchronous window length (external object 0x1007); a nil
// accessor, or one returning 0, disables the window (no discard).
func (rpdo *RPDO) SetSyncWindow(fn func() time.Duration) {
	rpdo.mu.Lock()
	defer rpdo.mu.Unlock()
	rpdo.syncWindow = fn
}

// SetIndication installs the per-frame indication callback.
func (rpdo *RPDO) SetIndication(ind Indication, userData any) {
	rpdo.mu.Lock()
	defer rpdo.mu.Unlock()
	rpdo.ind = ind
	rpdo.indUserData = userData
}

// SetErrorHandler installs the asynchronous runtime-error callback.
func (rpdo *RPDO) SetErrorHandler(errh ErrorHandler, userData any) {
	rpdo.mu.Lock()
	defer rpdo.mu.Unlock()
	rpdo.errh = errh
	rpdo.errUserData = userData
}

func (rpdo *RPDO) loadComm() error {
	sub := func(i uint8) ([]byte, error) {
		raw, abort := rpdo.commEntry.Upload(i)
		if abort != od.AbortNone {
			return nil, canopen.ErrOdParameters
		}
		return raw, nil
	}
	cobRaw, err := sub(od.SubPdoCobId)
	if err != nil || len(cobRaw) < 4 {
		return canopen.ErrOdParameters
	}
	transRaw, err := sub(od.SubPdoTransmissionType)
	if err != nil || len(transRaw) < 1 {
		return canopen.ErrOdParameters
	}
	inhibitRaw, err := sub(od.SubPdoInhibitTime)
	if err != nil || len(inhibitRaw) < 2 {
		return canopen.ErrOdParameters
	}
	eventRaw, err := sub(od.SubPdoEventTimer)
	if err != nil || len(eventRaw) < 2 {
		return canopen.ErrOdParameters
	}
	syncRaw, err := sub(od.SubPdoSyncStart)
	if err != nil || len(syncRaw) < 1 {
		return canopen.ErrOdParameters
	}

	rpdo.comm = CommunicationParameter{
		HighestSub:       6,
		CobID:            binary.LittleEndian.Uint32(cobRaw),
		TransmissionType: transRaw[0],
		InhibitTime:      binary.LittleEndian.Uint16(inhibitRaw),
		EventTimer:       binary.LittleEndian.Uint16(eventRaw),
		SyncStart:        syncRaw[0],
	}
	return nil
}

func (rpdo *RPDO) loadMapping() error {
	countRaw, abort := rpdo.mapEntry.Upload(od.SubPdoNbMappings)
	if abort != od.AbortNone || len(countRaw) < 1 {
		return canopen.ErrOdParameters
	}
	count := countRaw[0]
	if count > od.MaxMappedEntriesPdo {
		return canopen.ErrOdParameters
	}
	rpdo.mapping = MappingRecord{Count: count}
	for i := uint8(0); i < count; i++ {
		raw, abort := rpdo.mapEntry.Upload(i + 1)
		if abort != od.AbortNone || len(raw) < 4 {
			return canopen.ErrOdParameters
		}
		rpdo.mapping.Descriptors[i] = DecodeMappingDescriptor(binary.LittleEndian.Uint32(raw))
	}
	return nil
}

// synchronous reports whether the current transmission type selects
// synchronous (as opposed to event-driven) delivery.
func (rpdo *RPDO) synchronous() bool {
	return TransmissionTypeSynchronous(rpdo.comm.TransmissionType)
}

// Start activates the service: if the communication parameter is valid,
// it registers the CAN receiver. Calling Start when already started is a
// no-op (§3.3, P2).
func (rpdo *RPDO) Start() error {
	rpdo.mu.Lock()
	defer rpdo.mu.Unlock()
	if rpdo.started {
		return nil
	}
	rpdo.started = true
	if rpdo.comm.Valid() {
		rpdo.registerReceiverLocked()
	}
	return nil
}

// Stop deactivates the service: it unregisters the receiver and cancels
// both timers. By the time Stop returns, no further indication or error
// callback will be invoked until the next Start (P5).
func (rpdo *RPDO) Stop() {
	rpdo.mu.Lock()
	defer rpdo.mu.Unlock()
	rpdo.unregisterReceiverLocked()
	rpdo.eventTimer.Stop()
	rpdo.syncWindowTimer.Stop()
	rpdo.buffered = false
	rpdo.rxLen = 0
	rpdo.haveReceivedData = false
	rpdo.started = false
}

// IsStopped reports whether the service is currently stopped.
func (rpdo *RPDO) IsStopped() bool {
	rpdo.mu.Lock()
	defer rpdo.mu.Unlock()
	return !rpdo.started
}

func (rpdo *RPDO) registerReceiverLocked() {
	if rpdo.subscribed {
		rpdo.bm.Unsubscribe(rpdo.subscribedID)
	}
	id := rpdo.comm.ID()
	rpdo.bm.Subscribe(id, rpdo)
	rpdo.subscribed = true
	rpdo.subscribedID = id
}

func (rpdo *RPDO) unregisterReceiverLocked() {
	if rpdo.subscribed {
		rpdo.bm.Unsubscribe(rpdo.subscribedID)
		rpdo.subscribed = false
	}
}

// Handle implements [canopen.FrameListener]. It is invoked by the
// [canopen.BusManager] for every frame matching this RPDO's COB-ID.
func (rpdo *RPDO) Handle(frame canopen.Frame) {
	rpdo.mu.Lock()
	defer rpdo.mu.Unlock()

	if !rpdo.started || !rpdo.comm.Valid() {
		return
	}
	if TransmissionTypeReserved(rpdo.comm.TransmissionType) {
		return
	}

	data := frame.Data[:frame.DLC]
	rpdo.haveReceivedData = true

	if !rpdo.synchronous() {
		abort := PdoDn(&rpdo.mapping, rpdo.dict, data)
		rpdo.notifyIndicationLocked(abort, data)
		rpdo.reportLengthErrorLocked(abort, len(data)*8)
		if rpdo.comm.EventTimer != 0 {
			rpdo.eventTimer.Reset(time.Duration(rpdo.comm.EventTimer)*time.Millisecond, rpdo.onEventTimeout)
		}
		return
	}

	rpdo.syncWindowTimer.Stop()
	n := copy(rpdo.rxBuf, data)
	rpdo.rxLen = n
	rpdo.buffered = true
	if rpdo.syncWindow != nil {
		if w := rpdo.syncWindow(); w > 0 {
			rpdo.syncWindowTimer.Reset(w, rpdo.onSyncWindowExpire)
		}
	}
}

// OnSync delivers a SYNC tick with the given counter value. For a
// synchronous RPDO with a buffered frame it runs pdo_dn and forwards the
// result to the indication callback, additionally reporting a length
// emergency if the buffered payload didn't match the mapped width (§4.4).
func (rpdo *RPDO) OnSync(counter uint8) error {
	rpdo.mu.Lock()
	defer rpdo.mu.Unlock()

	if counter > 240 {
		return canopen.ErrIllegalArgument
	}
	if !rpdo.comm.Valid() || !rpdo.synchronous() {
		return nil
	}
	rpdo.syncWindowTimer.Stop()
	if !rpdo.buffered {
		return nil
	}

	payload := rpdo.rxBuf[:rpdo.rxLen]
	abort := PdoDn(&rpdo.mapping, rpdo.dict, payload)
	rpdo.notifyIndicationLocked(abort, payload)
	rpdo.reportLengthErrorLocked(abort, rpdo.rxLen*8)

	rpdo.buffered = false
	if abort == od.AbortPdoLen {
		return abort
	}
	return nil
}

// Rtr transmits an empty remote-transmission-request frame at the
// configured COB-ID, soliciting a producer update; the response arrives
// through the normal receive path. It is a no-op if the PDO is invalid.
func (rpdo *RPDO) Rtr() error {
	rpdo.mu.Lock()
	defer rpdo.mu.Unlock()
	if !rpdo.comm.Valid() {
		return nil
	}
	var flags uint8 = canopen.FlagRTR
	if rpdo.comm.Extended() {
		flags |= canopen.FlagIDE
	}
	return rpdo.bm.Send(canopen.NewFrame(rpdo.comm.ID(), flags, 0))
}

func (rpdo *RPDO) onEventTimeout() {
	rpdo.mu.Lock()
	defer rpdo.mu.Unlock()
	if !rpdo.started {
		return
	}
	rpdo.reportErrorLocked(emergency.ErrRpdoTimeout, emergency.EmRPDOTimeOut)
}

func (rpdo *RPDO) onSyncWindowExpire() {
	rpdo.mu.Lock()
	defer rpdo.mu.Unlock()
	if !rpdo.started {
		return
	}
	// Sync window expired with no (new) frame processed: discard silently.
	rpdo.buffered = false
}

func (rpdo *RPDO) notifyIndicationLocked(abort od.Abort, payload []byte) {
	if rpdo.ind != nil {
		rpdo.ind(rpdo, abort, payload, rpdo.indUserData)
	}
}

func (rpdo *RPDO) reportErrorLocked(eec uint16, statusBit byte) {
	rpdo.emcy.ErrorReport(statusBit, eec)
	if rpdo.errh != nil {
		rpdo.errh(rpdo, eec, emergency.ErrRegCommunication, rpdo.errUserData)
	}
}

// reportLengthErrorLocked implements §4.4's length-mismatch emergency
// dispatch (step 5), common to both the event-driven and synchronous
// delivery paths: a short payload under PDO_LEN reports 0x8210, a longer
// one that still unpacked cleanly reports 0x8220.
func (rpdo *RPDO) reportLengthErrorLocked(abort od.Abort, payloadBits int) {
	mappedBits := rpdo.mapping.TotalBits()
	switch {
	case abort == od.AbortPdoLen && payloadBits < mappedBits:
		rpdo.reportErrorLocked(emergency.ErrPdoLength, emergency.EmRPDOWrongLength)
	case abort == od.AbortNone && payloadBits > mappedBits:
		rpdo.reportErrorLocked(emergency.ErrPdoLengthExc, emergency.EmRPDOWrongLength)
	}
}
