package pdo

import (
	"encoding/binary"
	"time"

	canopen "github.com/canopenx/rpdo"
	"github.com/canopenx/rpdo/pkg/od"
)

// writeComm is the [od.StreamWriter] installed on this RPDO's
// communication parameter entry (0x1400+n), implementing every rule of
// §4.3's download-indication table for sub-indices 0x00-0x06.
func (rpdo *RPDO) writeComm(stream *od.Stream, data []byte) (uint16, error) {
	rpdo.mu.Lock()
	defer rpdo.mu.Unlock()

	switch stream.Subindex {
	case od.SubPdoHighestSubIndex:
		return 0, od.AbortNoWrite

	case od.SubPdoCobId:
		if len(data) < 4 {
			return 0, od.AbortTypeLenLo
		}
		if len(data) > 4 {
			return 0, od.AbortTypeLenHi
		}
		newRaw := binary.LittleEndian.Uint32(data)
		oldRaw := rpdo.comm.CobID
		if newRaw != oldRaw {
			oldID, _, oldValid := canopen.ExtractCobID(oldRaw)
			newID, newExt, newValid := canopen.ExtractCobID(newRaw)
			if oldValid && newID != oldID {
				return 0, od.AbortParamVal
			}
			if !newExt && newRaw&canopen.CobIDMaskExt > canopen.CobIDMaskStd {
				return 0, od.AbortParamVal
			}

			rpdo.comm.CobID = newRaw
			switch {
			case newValid && !oldValid:
				rpdo.registerReceiverLocked()
				if rpdo.comm.EventTimer != 0 {
					rpdo.eventTimer.Reset(time.Duration(rpdo.comm.EventTimer)*time.Millisecond, rpdo.onEventTimeout)
				}
			case !newValid && oldValid:
				rpdo.unregisterReceiverLocked()
				rpdo.eventTimer.Stop()
			case newValid && oldValid:
				rpdo.registerReceiverLocked()
			}
		}
		return od.WriteEntryDefault(stream, data)

	case od.SubPdoTransmissionType:
		if len(data) < 1 {
			return 0, od.AbortTypeLenLo
		}
		t := data[0]
		if TransmissionTypeReserved(t) {
			return 0, od.AbortParamVal
		}
		rpdo.comm.TransmissionType = t
		return od.WriteEntryDefault(stream, data)

	case od.SubPdoInhibitTime:
		if len(data) < 2 {
			return 0, od.AbortTypeLenLo
		}
		if rpdo.comm.Valid() {
			return 0, od.AbortParamVal
		}
		rpdo.comm.InhibitTime = binary.LittleEndian.Uint16(data)
		return od.WriteEntryDefault(stream, data)

	case od.SubPdoReserved:
		return 0, od.AbortNoSub

	case od.SubPdoEventTimer:
		if len(data) < 2 {
			return 0, od.AbortTypeLenLo
		}
		newTimer := binary.LittleEndian.Uint16(data)
		rpdo.comm.EventTimer = newTimer
		rpdo.eventTimer.Stop()
		if newTimer != 0 && rpdo.haveReceivedData && rpdo.comm.Valid() {
			rpdo.eventTimer.Reset(time.Duration(newTimer)*time.Millisecond, rpdo.onEventTimeout)
		}
		return od.WriteEntryDefault(stream, data)

	case od.SubPdoSyncStart:
		if len(data) < 1 {
			return 0, od.AbortTypeLenLo
		}
		rpdo.comm.SyncStart = data[0]
		return od.WriteEntryDefault(stream, data)

	default:
		return 0, od.AbortNoSub
	}
}

// writeMapping is the [od.StreamWriter] installed on this RPDO's mapping
// parameter entry (0x1600+n), implementing §4.3's rules for sub-index
// 0x00 (mapped-object count) and 0x01-0x40 (individual descriptors),
// including the chk_rpdo eligibility check on every descriptor accepted
// while the record is (re)built (§4.2).
func (rpdo *RPDO) writeMapping(stream *od.Stream, data []byte) (uint16, error) {
	rpdo.mu.Lock()
	defer rpdo.mu.Unlock()

	sub := stream.Subindex

	if sub == od.SubPdoNbMappings {
		if len(data) < 1 {
			return 0, od.AbortTypeLenLo
		}
		newCount := data[0]
		if newCount > od.MaxMappedEntriesPdo {
			return 0, od.AbortParamVal
		}
		if rpdo.comm.Valid() {
			return 0, od.AbortParamVal
		}
		if newCount > 0 {
			total := 0
			for i := uint8(0); i < newCount; i++ {
				d := rpdo.mapping.Descriptors[i]
				if d.Empty() {
					continue
				}
				if abort := ChkRpdo(rpdo.dict, d.Index, d.SubIndex); abort != od.AbortNone {
					return 0, abort
				}
				total += int(d.LengthBits)
				if total > MaxMappingBits {
					return 0, od.AbortPdoLen
				}
			}
		}
		rpdo.mapping.Count = newCount
		return od.WriteEntryDefault(stream, data)
	}

	if sub < 1 || sub > od.MaxMappedEntriesPdo {
		return 0, od.AbortNoSub
	}
	if len(data) < 4 {
		return 0, od.AbortTypeLenLo
	}
	if rpdo.mapping.Count != 0 || rpdo.comm.Valid() {
		return 0, od.AbortParamVal
	}
	raw := binary.LittleEndian.Uint32(data)
	descriptor := DecodeMappingDescriptor(raw)
	if !descriptor.Empty() {
		if abort := ChkRpdo(rpdo.dict, descriptor.Index, descriptor.SubIndex); abort != od.AbortNone {
			return 0, abort
		}
	}
	rpdo.mapping.Descriptors[sub-1] = descriptor
	return od.WriteEntryDefault(stream, data)
}
