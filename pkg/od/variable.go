package od

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"sync"
)

// Variable is the storage cell for a "VAR" object, or for one sub-entry of
// a "RECORD"/"ARRAY" object. Its value is kept as a raw little-endian byte
// slice, exactly as it travels on the wire, and decoded on demand.
type Variable struct {
	mu sync.RWMutex

	Name      string
	SubIndex  uint8
	DataType  uint8
	Attribute Attribute

	value        []byte
	valueDefault []byte
}

// NewVariable builds a Variable already initialized to value, given as a
// base-0 (auto-detect) integer/float literal or, for string types, the
// literal string itself.
func NewVariable(subIndex uint8, name string, dataType uint8, attribute Attribute, value string) (*Variable, error) {
	encoded, err := EncodeFromString(value, dataType)
	if err != nil {
		return nil, err
	}
	def := make([]byte, len(encoded))
	copy(def, encoded)
	return &Variable{
		SubIndex:     subIndex,
		Name:         name,
		DataType:     dataType,
		Attribute:    attribute,
		value:        encoded,
		valueDefault: def,
	}, nil
}

// DataLength returns the size in bytes of the variable's current value.
func (v *Variable) DataLength() uint32 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return uint32(len(v.value))
}

// Bytes returns a copy of the variable's raw value.
func (v *Variable) Bytes() []byte {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]byte, len(v.value))
	copy(out, v.value)
	return out
}

// SetBytes overwrites the variable's raw value with a copy of data.
func (v *Variable) SetBytes(data []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.value = append(v.value[:0], data...)
}

// Uint8, Uint16, Uint32 and Uint64 decode the variable's current value as
// an unsigned integer of the given width. Uint64 widens a stored value
// shorter than 8 bytes by zero-extension; Uint8, Uint16 and Uint32 return
// AbortTypeLenLo when the stored value is shorter than their width.
func (v *Variable) Uint8() (uint8, error) {
	u, err := v.uint(1)
	return uint8(u), err
}

func (v *Variable) Uint16() (uint16, error) {
	u, err := v.uint(2)
	return uint16(u), err
}

func (v *Variable) Uint32() (uint32, error) {
	u, err := v.uint(4)
	return uint32(u), err
}

func (v *Variable) Uint64() (uint64, error) {
	return v.uint(8)
}

func (v *Variable) uint(width int) (uint64, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if len(v.value) < width {
		if width < 8 {
			return 0, AbortTypeLenLo
		}
		var wide [8]byte
		copy(wide[:], v.value)
		return binary.LittleEndian.Uint64(wide[:]), nil
	}
	switch width {
	case 1:
		return uint64(v.value[0]), nil
	case 2:
		return uint64(binary.LittleEndian.Uint16(v.value)), nil
	case 4:
		return uint64(binary.LittleEndian.Uint32(v.value)), nil
	default:
		return binary.LittleEndian.Uint64(v.value), nil
	}
}

// EncodeFromString parses value into the little-endian wire representation
// of dataType.
func EncodeFromString(value string, dataType uint8) ([]byte, error) {
	if value == "" {
		value = "0"
	}
	switch dataType {
	case BOOLEAN, UNSIGNED8:
		u, err := strconv.ParseUint(value, 0, 8)
		if err != nil {
			return nil, err
		}
		return []byte{byte(u)}, nil
	case INTEGER8:
		i, err := strconv.ParseInt(value, 0, 8)
		if err != nil {
			return nil, err
		}
		return []byte{byte(i)}, nil
	case UNSIGNED16:
		u, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return nil, err
		}
		data := make([]byte, 2)
		binary.LittleEndian.PutUint16(data, uint16(u))
		return data, nil
	case INTEGER16:
		i, err := strconv.ParseInt(value, 0, 16)
		if err != nil {
			return nil, err
		}
		data := make([]byte, 2)
		binary.LittleEndian.PutUint16(data, uint16(i))
		return data, nil
	case UNSIGNED32:
		u, err := strconv.ParseUint(value, 0, 32)
		if err != nil {
			return nil, err
		}
		data := make([]byte, 4)
		binary.LittleEndian.PutUint32(data, uint32(u))
		return data, nil
	case INTEGER32:
		i, err := strconv.ParseInt(value, 0, 32)
		if err != nil {
			return nil, err
		}
		data := make([]byte, 4)
		binary.LittleEndian.PutUint32(data, uint32(i))
		return data, nil
	case REAL32:
		f, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return nil, err
		}
		data := make([]byte, 4)
		binary.LittleEndian.PutUint32(data, math.Float32bits(float32(f)))
		return data, nil
	case UNSIGNED64:
		u, err := strconv.ParseUint(value, 0, 64)
		if err != nil {
			return nil, err
		}
		data := make([]byte, 8)
		binary.LittleEndian.PutUint64(data, u)
		return data, nil
	case INTEGER64:
		i, err := strconv.ParseInt(value, 0, 64)
		if err != nil {
			return nil, err
		}
		data := make([]byte, 8)
		binary.LittleEndian.PutUint64(data, uint64(i))
		return data, nil
	case REAL64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, err
		}
		data := make([]byte, 8)
		binary.LittleEndian.PutUint64(data, math.Float64bits(f))
		return data, nil
	case VISIBLE_STRING, OCTET_STRING, UNICODE_STRING:
		return []byte(value), nil
	case DOMAIN:
		return []byte{}, nil
	default:
		return nil, fmt.Errorf("od: unsupported data type x%x", dataType)
	}
}

// EncodeAttribute derives an [Attribute] mask from an EDS-style access type
// string ("ro", "wo", "rw", "rwr", "rww", "const") plus the PDOMapping flag.
func EncodeAttribute(accessType string, pdoMapping bool, dataType uint8) Attribute {
	var attr Attribute
	switch accessType {
	case "ro", "const":
		attr = AttributeSdoR
	case "wo":
		attr = AttributeSdoW
	case "rwr":
		attr = AttributeSdoRw | AttributeRWR
	case "rww":
		attr = AttributeSdoRw | AttributeRWW
	default:
		attr = AttributeSdoRw
	}
	if pdoMapping {
		if attr.CanWrite() && attr&AttributeRWR == 0 {
			attr |= AttributeRpdo
		}
		if attr.CanRead() && attr&AttributeRWW == 0 {
			attr |= AttributeTpdo
		}
	}
	switch dataType {
	case VISIBLE_STRING, OCTET_STRING, UNICODE_STRING:
		attr |= AttributeStr
	case UNSIGNED16, INTEGER16, UNSIGNED32, INTEGER32, UNSIGNED64, INTEGER64, REAL32, REAL64:
		attr |= AttributeMb
	}
	return attr
}
