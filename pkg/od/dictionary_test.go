package od

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectDictionaryAddFind(t *testing.T) {
	dict := NewObjectDictionary()
	_, ok := dict.Find(0x2000)
	assert.False(t, ok)

	entry, err := dict.AddVariableType(0x2000, "x", UNSIGNED8, AttributeSdoRw, "0")
	require.NoError(t, err)

	found, ok := dict.Find(0x2000)
	require.True(t, ok)
	assert.Same(t, entry, found)
}

func TestEntrySubOnVariableRejectsNonZeroSubIndex(t *testing.T) {
	dict := NewObjectDictionary()
	entry, err := dict.AddVariableType(0x2000, "x", UNSIGNED8, AttributeSdoRw, "0")
	require.NoError(t, err)

	_, abort := entry.Sub(0)
	assert.Equal(t, AbortNone, abort)
	_, abort = entry.Sub(1)
	assert.Equal(t, AbortNoSub, abort)
}

func TestEntrySubOnRecordWalksVariables(t *testing.T) {
	list := &VariableList{ObjectType: ObjectTypeRECORD}
	v0, _ := NewVariable(0, "count", UNSIGNED8, AttributeSdoRw, "0")
	v1, _ := NewVariable(1, "item", UNSIGNED32, AttributeSdoRw, "0")
	list.Variables = append(list.Variables, v0, v1)
	entry := NewEntry(0x2100, "record", list, ObjectTypeRECORD)

	got, abort := entry.Sub(1)
	require.Equal(t, AbortNone, abort)
	assert.Same(t, v1, got)

	_, abort = entry.Sub(5)
	assert.Equal(t, AbortNoSub, abort)
}

func TestEntryDownloadUploadRoundTripWithoutExtension(t *testing.T) {
	dict := NewObjectDictionary()
	entry, err := dict.AddVariableType(0x2000, "x", UNSIGNED16, AttributeSdoRw, "0")
	require.NoError(t, err)

	abort := entry.Download(0, []byte{0x34, 0x12})
	require.Equal(t, AbortNone, abort)

	raw, abort := entry.Upload(0)
	require.Equal(t, AbortNone, abort)
	assert.Equal(t, []byte{0x34, 0x12}, raw)
}

func TestEntryDownloadMissingSubIndexReturnsNoSubWithoutInvokingExtension(t *testing.T) {
	dict := NewObjectDictionary()
	entry, err := dict.AddVariableType(0x2000, "x", UNSIGNED8, AttributeSdoRw, "0")
	require.NoError(t, err)

	called := false
	entry.AddExtension(entry, ReadEntryDefault, func(stream *Stream, data []byte) (uint16, error) {
		called = true
		return WriteEntryDefault(stream, data)
	})

	abort := entry.Download(9, []byte{1})
	assert.Equal(t, AbortNoSub, abort)
	assert.False(t, called, "extension must not run for a sub-index absent from the record")
}

func TestEntryAddExtensionInterceptsReadAndWrite(t *testing.T) {
	dict := NewObjectDictionary()
	entry, err := dict.AddVariableType(0x2000, "x", UNSIGNED8, AttributeSdoRw, "0")
	require.NoError(t, err)

	var lastWritten []byte
	entry.AddExtension(entry,
		func(stream *Stream, data []byte) (uint16, error) {
			return uint16(copy(data, []byte{0x99})), nil
		},
		func(stream *Stream, data []byte) (uint16, error) {
			lastWritten = append([]byte(nil), data...)
			return WriteEntryDefault(stream, data)
		},
	)

	abort := entry.Download(0, []byte{0x42})
	require.Equal(t, AbortNone, abort)
	assert.Equal(t, []byte{0x42}, lastWritten)

	raw, abort := entry.Upload(0)
	require.Equal(t, AbortNone, abort)
	assert.Equal(t, []byte{0x99}, raw, "the custom reader, not the stored value, answers Upload")
}

func TestAddRPDORejectsOutOfRangeNumber(t *testing.T) {
	dict := NewObjectDictionary()
	_, _, err := dict.AddRPDO(0)
	assert.Equal(t, AbortError, err)
	_, _, err = dict.AddRPDO(513)
	assert.Equal(t, AbortError, err)
}

func TestAddRPDOLaysOutDefaultCommAndMapping(t *testing.T) {
	dict := NewObjectDictionary()
	commEntry, mapEntry, err := dict.AddRPDO(3)
	require.NoError(t, err)

	assert.Equal(t, EntryRPDOCommunicationStart+2, commEntry.Index)
	assert.Equal(t, EntryRPDOMappingStart+2, mapEntry.Index)

	cobRaw, abort := commEntry.Upload(SubPdoCobId)
	require.Equal(t, AbortNone, abort)
	id, _, valid := extractTestCobID(cobRaw)
	assert.Equal(t, uint32(0), id)
	assert.False(t, valid, "default COB-ID is marked invalid")

	countRaw, abort := mapEntry.Upload(SubPdoNbMappings)
	require.Equal(t, AbortNone, abort)
	assert.Equal(t, byte(0), countRaw[0])

	foundComm, ok := dict.Find(EntryRPDOCommunicationStart + 2)
	require.True(t, ok)
	assert.Same(t, commEntry, foundComm)
}

// extractTestCobID mirrors the root package's COB-ID layout without
// importing it, to keep this package's tests free of an import cycle.
func extractTestCobID(raw []byte) (id uint32, extended bool, valid bool) {
	v := uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16 | uint32(raw[3])<<24
	extended = v&(1<<29) != 0
	valid = v&(1<<31) == 0
	if extended {
		id = v & 0x1FFFFFFF
	} else {
		id = v & 0x7FF
	}
	return id, extended, valid
}

func TestDummyMappedRoundTrip(t *testing.T) {
	assert.False(t, IsDummyMapped(UNSIGNED8))
	SetDummyMapped(UNSIGNED8, true)
	t.Cleanup(func() { SetDummyMapped(UNSIGNED8, false) })
	assert.True(t, IsDummyMapped(UNSIGNED8))
	SetDummyMapped(UNSIGNED8, false)
	assert.False(t, IsDummyMapped(UNSIGNED8))
}

func TestSetDummyMappedIgnoresOutOfRangeDataType(t *testing.T) {
	SetDummyMapped(200, true)
	assert.False(t, IsDummyMapped(200))
}

func TestDefaultDummyTypesEnablesBasicTypes(t *testing.T) {
	for _, dt := range []uint8{BOOLEAN, INTEGER8, INTEGER16, INTEGER32, UNSIGNED8, UNSIGNED16, UNSIGNED32, REAL32} {
		SetDummyMapped(dt, false)
	}
	DefaultDummyTypes()
	t.Cleanup(func() {
		for _, dt := range []uint8{BOOLEAN, INTEGER8, INTEGER16, INTEGER32, UNSIGNED8, UNSIGNED16, UNSIGNED32, REAL32} {
			SetDummyMapped(dt, false)
		}
	})
	assert.True(t, IsDummyMapped(UNSIGNED16))
	assert.False(t, IsDummyMapped(UNSIGNED64), "UNSIGNED64 is not in the default dummy set")
}

func TestIsBasicDataTypeIndex(t *testing.T) {
	assert.True(t, IsBasicDataTypeIndex(0x0001))
	assert.True(t, IsBasicDataTypeIndex(0x001B))
	assert.False(t, IsBasicDataTypeIndex(0x0000))
	assert.False(t, IsBasicDataTypeIndex(0x2000))
}
