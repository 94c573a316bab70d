package pdo

import (
	"github.com/canopenx/rpdo/pkg/od"
)

// CanMaxLen is the payload size of a classic CAN frame, in bytes.
const CanMaxLen = 8

// MaxMappingBits is the total bit budget of a PDO mapping (I1).
const MaxMappingBits = CanMaxLen * 8

// MappingDescriptor is a single mapping slot: "bits [offset, offset+Length)
// of the payload are dictionary entry (Index, SubIndex)". The zero value
// is the empty/skip descriptor.
type MappingDescriptor struct {
	Index      uint16
	SubIndex   uint8
	LengthBits uint8
}

// Empty reports whether d is the all-zero "skip this slot" descriptor.
func (d MappingDescriptor) Empty() bool {
	return d.Index == 0 && d.SubIndex == 0 && d.LengthBits == 0
}

// DecodeMappingDescriptor unpacks the 32-bit wire form
// [index:16 | sub-index:8 | length-in-bits:8].
func DecodeMappingDescriptor(raw uint32) MappingDescriptor {
	return MappingDescriptor{
		Index:      uint16(raw >> 16),
		SubIndex:   uint8(raw >> 8),
		LengthBits: uint8(raw),
	}
}

// Encode packs d back into its 32-bit wire form.
func (d MappingDescriptor) Encode() uint32 {
	return uint32(d.Index)<<16 | uint32(d.SubIndex)<<8 | uint32(d.LengthBits)
}

// MappingRecord is a PDO mapping parameter: a count of 0..64 descriptors.
type MappingRecord struct {
	Count       uint8
	Descriptors [od.MaxMappedEntriesPdo]MappingDescriptor
}

// TotalBits sums LengthBits over the first Count descriptors.
func (m *MappingRecord) TotalBits() int {
	total := 0
	for i := 0; i < int(m.Count); i++ {
		total += int(m.Descriptors[i].LengthBits)
	}
	return total
}

func bytesForBits(bits int) int {
	return (bits + 7) / 8
}

// Pack serializes values (one per descriptor slot, widened to 64 bits)
// into a CAN payload per the mapping, LSB-first within each byte and
// little-endian across bytes. It returns the bytes committed so far and
// [od.AbortPdoLen] if the mapped width exceeds [MaxMappingBits].
func (m *MappingRecord) Pack(values []uint64) ([]byte, od.Abort) {
	out := make([]byte, CanMaxLen)
	offset := 0
	for i := 0; i < int(m.Count); i++ {
		d := m.Descriptors[i]
		if d.Empty() {
			continue
		}
		width := int(d.LengthBits)
		var value uint64
		if i < len(values) {
			value = values[i]
		}
		if !WriteBits(out, offset, width, value) {
			return out[:bytesForBits(offset)], od.AbortPdoLen
		}
		offset += width
	}
	return out[:bytesForBits(offset)], od.AbortNone
}

// Unpack is Pack's inverse: it extracts one value per descriptor slot from
// a received CAN payload. Empty descriptors yield zero. A descriptor that
// would read past len(data)*8 bits fails the whole call with
// [od.AbortPdoLen].
func (m *MappingRecord) Unpack(data []byte) ([]uint64, od.Abort) {
	values := make([]uint64, m.Count)
	offset := 0
	for i := 0; i < int(m.Count); i++ {
		d := m.Descriptors[i]
		if d.Empty() {
			continue
		}
		width := int(d.LengthBits)
		value, ok := ReadBits(data, offset, width)
		if !ok {
			return values, od.AbortPdoLen
		}
		values[i] = value
		offset += width
	}
	return values, od.AbortNone
}

// PdoDn walks the mapping against a received payload, writing each
// non-empty descriptor's slice into the object dictionary — dropped
// silently for a dummy target, delivered to the sub-object's download
// indication otherwise. It fails fast with [od.AbortPdoLen] if the payload
// is shorter than the mapped bit total, before any dictionary write; the
// first non-zero abort code from a download indication aborts the walk.
func PdoDn(m *MappingRecord, dict *od.ObjectDictionary, data []byte) od.Abort {
	if len(data)*8 < m.TotalBits() {
		return od.AbortPdoLen
	}
	offset := 0
	for i := 0; i < int(m.Count); i++ {
		d := m.Descriptors[i]
		if d.Empty() {
			continue
		}
		width := int(d.LengthBits)
		value, _ := ReadBits(data, offset, width)
		offset += width

		if od.IsBasicDataTypeIndex(d.Index) && d.SubIndex == 0 {
			continue // dummy entry: slice dropped
		}
		entry, ok := dict.Find(d.Index)
		if !ok {
			return od.AbortNoObj
		}
		buf := make([]byte, bytesForBits(width))
		WriteBits(buf, 0, width, value)
		if abort := entry.Download(d.SubIndex, buf); abort != od.AbortNone {
			return abort
		}
	}
	return od.AbortNone
}

// PdoUp is PdoDn's mirror for the transmit direction: it reads every
// non-empty descriptor's source sub-object and packs the result into out.
// Dummy targets contribute zero bits. An upload indication is expected to
// return the value whole — no partial/segmented transfer is permitted
// inside a PDO — so any length mismatch fails with [od.AbortPdoLen].
func PdoUp(m *MappingRecord, dict *od.ObjectDictionary, out []byte) od.Abort {
	offset := 0
	for i := 0; i < int(m.Count); i++ {
		d := m.Descriptors[i]
		if d.Empty() {
			continue
		}
		width := int(d.LengthBits)
		var value uint64

		if !(od.IsBasicDataTypeIndex(d.Index) && d.SubIndex == 0) {
			entry, ok := dict.Find(d.Index)
			if !ok {
				return od.AbortNoObj
			}
			raw, abort := entry.Upload(d.SubIndex)
			if abort != od.AbortNone {
				return abort
			}
			if bytesForBits(width) != len(raw) {
				return od.AbortPdoLen
			}
			value, _ = ReadBits(raw, 0, width)
		}

		if !WriteBits(out, offset, width, value) {
			return od.AbortPdoLen
		}
		offset += width
	}
	return od.AbortNone
}
