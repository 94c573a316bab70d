package od

import "sync"

// Entry is one indexed object in the dictionary: a VAR/DOMAIN backed by a
// single [Variable], or an ARRAY/RECORD backed by a [VariableList] of
// sub-entries. At most one [StreamReader]/[StreamWriter] pair may be
// installed on an Entry via [Entry.AddExtension]; it intercepts every
// sub-index access on that entry, the default otherwise applying per
// sub-object.
type Entry struct {
	Index      uint16
	Name       string
	ObjectType uint8

	object any // *Variable or *VariableList

	mu  sync.Mutex
	ext *extension
}

// VariableList backs an ARRAY or RECORD [Entry].
type VariableList struct {
	ObjectType uint8
	Variables  []*Variable
}

// NewEntry wraps object (a *Variable or *VariableList) at index.
func NewEntry(index uint16, name string, object any, objectType uint8) *Entry {
	return &Entry{Index: index, Name: name, object: object, ObjectType: objectType}
}

// Sub resolves a sub-index to its [Variable], AbortNoSub if absent.
func (e *Entry) Sub(subIndex uint8) (*Variable, Abort) {
	switch obj := e.object.(type) {
	case *Variable:
		if subIndex != 0 {
			return nil, AbortNoSub
		}
		return obj, AbortNone
	case *VariableList:
		for _, v := range obj.Variables {
			if v.SubIndex == subIndex {
				return v, AbortNone
			}
		}
		return nil, AbortNoSub
	default:
		return nil, AbortError
	}
}

// AddExtension installs a custom reader/writer pair owned by object,
// intercepting every access to this entry's sub-objects.
func (e *Entry) AddExtension(object any, read StreamReader, write StreamWriter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ext = &extension{object: object, read: read, write: write}
}

// Download applies a write of data to sub-index subIndex, running the
// installed extension if any, the default [WriteEntryDefault] otherwise.
func (e *Entry) Download(subIndex uint8, data []byte) Abort {
	variable, abort := e.Sub(subIndex)
	if abort != AbortNone {
		return abort
	}
	e.mu.Lock()
	ext := e.ext
	e.mu.Unlock()

	stream := &Stream{Index: e.Index, Subindex: subIndex, DataLength: variable.DataLength(), Variable: variable}
	if ext != nil {
		stream.Object = ext.object
		_, err := ext.write(stream, data)
		return asAbort(err)
	}
	stream.Object = variable
	_, err := WriteEntryDefault(stream, data)
	return asAbort(err)
}

// Upload reads the current value of sub-index subIndex, running the
// installed extension if any, the default [ReadEntryDefault] otherwise.
func (e *Entry) Upload(subIndex uint8) ([]byte, Abort) {
	variable, abort := e.Sub(subIndex)
	if abort != AbortNone {
		return nil, abort
	}
	e.mu.Lock()
	ext := e.ext
	e.mu.Unlock()

	length := variable.DataLength()
	out := make([]byte, length)
	stream := &Stream{Index: e.Index, Subindex: subIndex, DataLength: length, Variable: variable}
	if ext != nil {
		stream.Object = ext.object
		n, err := ext.read(stream, out)
		if err != nil {
			return nil, asAbort(err)
		}
		return out[:n], AbortNone
	}
	stream.Object = variable
	n, err := ReadEntryDefault(stream, out)
	if err != nil {
		return nil, asAbort(err)
	}
	return out[:n], AbortNone
}

func asAbort(err error) Abort {
	if err == nil {
		return AbortNone
	}
	if a, ok := err.(Abort); ok {
		return a
	}
	return AbortError
}

// ObjectDictionary indexes every [Entry] of a CANopen node by its 16-bit
// index.
type ObjectDictionary struct {
	mu      sync.RWMutex
	entries map[uint16]*Entry
}

// NewObjectDictionary returns an empty dictionary.
func NewObjectDictionary() *ObjectDictionary {
	return &ObjectDictionary{entries: make(map[uint16]*Entry)}
}

// Add inserts or replaces the entry at its index.
func (od *ObjectDictionary) Add(entry *Entry) {
	od.mu.Lock()
	defer od.mu.Unlock()
	od.entries[entry.Index] = entry
}

// Find returns the entry at index, or false if absent.
func (od *ObjectDictionary) Find(index uint16) (*Entry, bool) {
	od.mu.RLock()
	defer od.mu.RUnlock()
	e, ok := od.entries[index]
	return e, ok
}

// AddVariableType adds a VAR entry at index holding a single [Variable].
func (od *ObjectDictionary) AddVariableType(index uint16, name string, dataType uint8, attribute Attribute, value string) (*Entry, error) {
	variable, err := NewVariable(0, name, dataType, attribute, value)
	if err != nil {
		return nil, err
	}
	entry := NewEntry(index, name, variable, ObjectTypeVAR)
	od.Add(entry)
	return entry, nil
}

// AddRecord adds an ARRAY/RECORD entry at index holding varList.
func (od *ObjectDictionary) AddRecord(index uint16, name string, varList *VariableList) *Entry {
	entry := NewEntry(index, name, varList, varList.ObjectType)
	od.Add(entry)
	return entry
}

// AddRPDO creates the default 0x1400+n/0x1600+n communication and mapping
// parameter objects for RPDO number rpdoNb (1-based).
func (od *ObjectDictionary) AddRPDO(rpdoNb uint16) (commEntry, mapEntry *Entry, err error) {
	if rpdoNb < 1 || rpdoNb > 512 {
		return nil, nil, AbortError
	}
	offset := rpdoNb - 1

	comm := &VariableList{ObjectType: ObjectTypeRECORD}
	addSub := func(sub uint8, name string, dt uint8, attr Attribute, value string) {
		v, _ := NewVariable(sub, name, dt, attr, value)
		comm.Variables = append(comm.Variables, v)
	}
	addSub(SubPdoHighestSubIndex, "highest sub-index supported", UNSIGNED8, AttributeSdoR, "0x6")
	addSub(SubPdoCobId, "COB-ID used by RPDO", UNSIGNED32, AttributeSdoRw, "0x80000000")
	addSub(SubPdoTransmissionType, "transmission type", UNSIGNED8, AttributeSdoRw, "0xFE")
	addSub(SubPdoInhibitTime, "inhibit time", UNSIGNED16, AttributeSdoRw, "0x0")
	addSub(SubPdoReserved, "reserved", UNSIGNED8, AttributeSdoRw, "0x0")
	addSub(SubPdoEventTimer, "event timer", UNSIGNED16, AttributeSdoRw, "0x0")
	addSub(SubPdoSyncStart, "SYNC start value", UNSIGNED8, AttributeSdoRw, "0x0")
	commEntry = od.AddRecord(EntryRPDOCommunicationStart+offset, "RPDO communication parameter", comm)

	mapList := &VariableList{ObjectType: ObjectTypeRECORD}
	mv, _ := NewVariable(SubPdoNbMappings, "number of mapped application objects", UNSIGNED8, AttributeSdoRw, "0x0")
	mapList.Variables = append(mapList.Variables, mv)
	for i := uint8(1); i <= MaxMappedEntriesPdo; i++ {
		v, _ := NewVariable(i, "mapped object", UNSIGNED32, AttributeSdoRw, "0x0")
		mapList.Variables = append(mapList.Variables, v)
	}
	mapEntry = od.AddRecord(EntryRPDOMappingStart+offset, "RPDO mapping parameter", mapList)
	return commEntry, mapEntry, nil
}
