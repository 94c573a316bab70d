package od

// Stream is the per-access context handed to a [StreamReader] or
// [StreamWriter]: the target object plus whatever offset bookkeeping a
// segmented SDO transfer needs. The RPDO core only ever performs single-
// segment, whole-value accesses, so DataOffset is always 0 on entry.
type Stream struct {
	// Object is the extension owner when a custom reader/writer is
	// installed (e.g. the *RPDO that owns this parameter object);
	// otherwise it is the same value as Variable.
	Object   any
	// Variable is always the sub-object actually being accessed, letting
	// an extension commit through [ReadEntryDefault]/[WriteEntryDefault]
	// regardless of what Object holds.
	Variable *Variable
	Index    uint16
	Subindex uint8
	DataOffset uint32
	DataLength uint32
}

// StreamReader reads the current value of a sub-object into data, returning
// the number of bytes produced.
type StreamReader func(stream *Stream, data []byte) (uint16, error)

// StreamWriter validates and applies a write of data to a sub-object,
// returning the number of bytes consumed.
type StreamWriter func(stream *Stream, data []byte) (uint16, error)

// extension pairs a custom reader/writer with the object they intercept,
// installed via [Entry.AddExtension].
type extension struct {
	object any
	read   StreamReader
	write  StreamWriter
}

// ReadEntryDefault is the [StreamReader] used by every sub-object that has
// no custom extension: it copies the variable's raw stored bytes.
func ReadEntryDefault(stream *Stream, data []byte) (uint16, error) {
	if stream.Variable == nil {
		return 0, AbortError
	}
	raw := stream.Variable.Bytes()
	n := copy(data, raw)
	return uint16(n), nil
}

// WriteEntryDefault is the [StreamWriter] used by every sub-object that has
// no custom extension: it overwrites the variable's raw stored bytes.
func WriteEntryDefault(stream *Stream, data []byte) (uint16, error) {
	if stream.Variable == nil {
		return 0, AbortError
	}
	stream.Variable.SetBytes(data)
	return uint16(len(data)), nil
}

// ReadEntryDisabled rejects every read with NoRead, for write-only
// entries. Nothing in this module installs it.
func ReadEntryDisabled(stream *Stream, data []byte) (uint16, error) {
	return 0, AbortNoRead
}

// WriteEntryDisabled rejects every write with NoWrite, for read-only
// sub-objects. Nothing in this module installs it; the RPDO's own writer
// answers writes to 0x1400:00 with NoWrite directly.
func WriteEntryDisabled(stream *Stream, data []byte) (uint16, error) {
	return 0, AbortNoWrite
}
