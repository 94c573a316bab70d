package pdo

import (
	"testing"

	"github.com/canopenx/rpdo/pkg/od"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rwPdoAttr() od.Attribute {
	return od.AttributeSdoRw | od.AttributeRpdo | od.AttributeTpdo
}

// TestPackUnpackRoundTrip is P1: for any mapping with total bits <= 64,
// unpack(pack(values)) reproduces the mapped values pointwise.
func TestPackUnpackRoundTrip(t *testing.T) {
	m := &MappingRecord{Count: 3}
	m.Descriptors[0] = MappingDescriptor{Index: 0x2000, SubIndex: 0, LengthBits: 8}
	m.Descriptors[1] = MappingDescriptor{Index: 0x2001, SubIndex: 0, LengthBits: 16}
	m.Descriptors[2] = MappingDescriptor{Index: 0x2002, SubIndex: 0, LengthBits: 32}

	values := []uint64{0x7F, 0xBEEF, 0xC0FFEE42}
	packed, abort := m.Pack(values)
	require.Equal(t, od.AbortNone, abort)
	assert.Len(t, packed, 7)

	unpacked, abort := m.Unpack(packed)
	require.Equal(t, od.AbortNone, abort)
	assert.Equal(t, values, unpacked)
}

func TestPackFailsPastMaxMappingBits(t *testing.T) {
	m := &MappingRecord{Count: 1}
	m.Descriptors[0] = MappingDescriptor{Index: 0x2000, SubIndex: 0, LengthBits: 65}
	_, abort := m.Pack([]uint64{1})
	assert.Equal(t, od.AbortPdoLen, abort)
}

func TestUnpackEmptyDescriptorYieldsZero(t *testing.T) {
	m := &MappingRecord{Count: 2}
	m.Descriptors[0] = MappingDescriptor{} // empty/skip
	m.Descriptors[1] = MappingDescriptor{Index: 0x2000, SubIndex: 0, LengthBits: 8}
	data := []byte{0xAA}
	values, abort := m.Unpack(data)
	require.Equal(t, od.AbortNone, abort)
	assert.Equal(t, uint64(0), values[0])
	assert.Equal(t, uint64(0xAA), values[1])
}

func newDictWithU64(t *testing.T, index uint16) *od.ObjectDictionary {
	t.Helper()
	dict := od.NewObjectDictionary()
	_, err := dict.AddVariableType(index, "test object", od.UNSIGNED64, rwPdoAttr(), "0")
	require.NoError(t, err)
	return dict
}

func TestPdoDnScenario1EventDrivenHappyPath(t *testing.T) {
	dict := newDictWithU64(t, 0x2020)
	m := &MappingRecord{Count: 1}
	m.Descriptors[0] = MappingDescriptor{Index: 0x2020, SubIndex: 0, LengthBits: 64}

	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	abort := PdoDn(m, dict, data)
	require.Equal(t, od.AbortNone, abort)

	entry, ok := dict.Find(0x2020)
	require.True(t, ok)
	raw, abort := entry.Upload(0)
	require.Equal(t, od.AbortNone, abort)
	assert.Equal(t, data, raw)
}

func TestPdoDnShortPayloadReturnsPdoLenBeforeAnyWrite(t *testing.T) {
	dict := newDictWithU64(t, 0x2020)
	entry, _ := dict.Find(0x2020)
	before, _ := entry.Upload(0)

	m := &MappingRecord{Count: 1}
	m.Descriptors[0] = MappingDescriptor{Index: 0x2020, SubIndex: 0, LengthBits: 64}

	abort := PdoDn(m, dict, []byte{1, 2, 3, 4, 5, 6, 7}) // 7 bytes, 64 bits mapped
	assert.Equal(t, od.AbortPdoLen, abort)

	after, _ := entry.Upload(0)
	assert.Equal(t, before, after)
}

func TestPdoDnDummyEntryDropsSlice(t *testing.T) {
	od.SetDummyMapped(od.UNSIGNED8, true)
	t.Cleanup(func() { od.SetDummyMapped(od.UNSIGNED8, false) })

	dict := od.NewObjectDictionary()
	m := &MappingRecord{Count: 1}
	m.Descriptors[0] = MappingDescriptor{Index: uint16(od.UNSIGNED8), SubIndex: 0, LengthBits: 8}

	abort := PdoDn(m, dict, []byte{0x42})
	assert.Equal(t, od.AbortNone, abort)
}

func TestPdoUpRoundTripsThroughDictionary(t *testing.T) {
	dict := newDictWithU64(t, 0x2020)
	entry, _ := dict.Find(0x2020)
	require.Equal(t, od.AbortNone, entry.Download(0, []byte{1, 2, 3, 4, 5, 6, 7, 8}))

	m := &MappingRecord{Count: 1}
	m.Descriptors[0] = MappingDescriptor{Index: 0x2020, SubIndex: 0, LengthBits: 64}

	out := make([]byte, 8)
	abort := PdoUp(m, dict, out)
	require.Equal(t, od.AbortNone, abort)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, out)
}

func TestMappingDescriptorEncodeDecode(t *testing.T) {
	d := MappingDescriptor{Index: 0x2020, SubIndex: 3, LengthBits: 40}
	raw := d.Encode()
	decoded := DecodeMappingDescriptor(raw)
	assert.Equal(t, d, decoded)
}

func TestMappingDescriptorEmpty(t *testing.T) {
	assert.True(t, MappingDescriptor{}.Empty())
	assert.False(t, MappingDescriptor{Index: 1}.Empty())
}
