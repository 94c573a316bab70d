package pdo

import canopen "github.com/canopenx/rpdo"

// Transmission-type ranges, per §4.4.
const (
	TransmissionTypeSyncAcyclic uint8 = 0x00
	TransmissionTypeSync240     uint8 = 0xF0
	TransmissionTypeReservedLo  uint8 = 0xF1
	TransmissionTypeReservedHi  uint8 = 0xFD
	TransmissionTypeEventLo     uint8 = 0xFE
	TransmissionTypeEventHi     uint8 = 0xFF
)

// CommunicationParameter is the decoded form of a 0x14xx (or 0x18xx)
// object: cob-id plus the transmission/timing sub-objects (§3.1).
type CommunicationParameter struct {
	HighestSub       uint8
	CobID            uint32
	TransmissionType uint8
	InhibitTime      uint16
	EventTimer       uint16
	SyncStart        uint8
}

// ID, Extended and Valid decode CobID's packed CAN-ID and flag bits.
func (c CommunicationParameter) ID() uint32 {
	id, _, _ := canopen.ExtractCobID(c.CobID)
	return id
}

func (c CommunicationParameter) Extended() bool {
	_, ext, _ := canopen.ExtractCobID(c.CobID)
	return ext
}

func (c CommunicationParameter) Valid() bool {
	_, _, valid := canopen.ExtractCobID(c.CobID)
	return valid
}

// TransmissionTypeReserved reports whether t falls in the reserved transmission-type
// range 0xF1..0xFD, which the configuration validator must reject.
func TransmissionTypeReserved(t uint8) bool {
	return t >= TransmissionTypeReservedLo && t <= TransmissionTypeReservedHi
}

// TransmissionTypeSynchronous reports whether t selects synchronous (acyclic or cyclic)
// delivery, as opposed to event-driven.
func TransmissionTypeSynchronous(t uint8) bool {
	return t <= TransmissionTypeSync240
}
