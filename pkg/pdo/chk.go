package pdo

import "github.com/canopenx/rpdo/pkg/od"

// ChkRpdo implements the §4.2 decision tree gatekeeping a mapping
// descriptor as an RPDO (write) target.
func ChkRpdo(dict *od.ObjectDictionary, index uint16, subIndex uint8) od.Abort {
	return chk(dict, index, subIndex, false)
}

// ChkTpdo is ChkRpdo's mirror for the TPDO (read) direction.
func ChkTpdo(dict *od.ObjectDictionary, index uint16, subIndex uint8) od.Abort {
	return chk(dict, index, subIndex, true)
}

func chk(dict *od.ObjectDictionary, index uint16, subIndex uint8, upload bool) od.Abort {
	if od.IsBasicDataTypeIndex(index) {
		if subIndex != 0 {
			return od.AbortNoObj // illegal dummy reference
		}
		if od.IsDummyMapped(uint8(index)) {
			return od.AbortNone
		}
		return od.AbortNoObj
	}

	entry, ok := dict.Find(index)
	if !ok {
		return od.AbortNoObj
	}
	variable, abort := entry.Sub(subIndex)
	if abort != od.AbortNone {
		return abort
	}

	if upload {
		if !variable.Attribute.CanRead() {
			return od.AbortNoRead
		}
		if variable.Attribute.ExcludedFromTPDO() {
			return od.AbortNoPdo
		}
		return od.AbortNone
	}

	if !variable.Attribute.CanWrite() {
		return od.AbortNoWrite
	}
	if variable.Attribute.ExcludedFromRPDO() {
		return od.AbortNoPdo
	}
	return od.AbortNone
}
