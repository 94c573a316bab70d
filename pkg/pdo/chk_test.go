package pdo

import (
	"testing"

	"github.com/canopenx/rpdo/pkg/od"
	"github.com/stretchr/testify/assert"
)

func TestChkRpdoDummyEntry(t *testing.T) {
	dict := od.NewObjectDictionary()
	od.SetDummyMapped(od.UNSIGNED16, true)
	t.Cleanup(func() { od.SetDummyMapped(od.UNSIGNED16, false) })

	assert.Equal(t, od.AbortNone, ChkRpdo(dict, uint16(od.UNSIGNED16), 0))
}

func TestChkRpdoDummyNotRegistered(t *testing.T) {
	dict := od.NewObjectDictionary()
	assert.Equal(t, od.AbortNoObj, ChkRpdo(dict, uint16(od.UNSIGNED16), 0))
}

func TestChkRpdoIllegalDummySubIndex(t *testing.T) {
	dict := od.NewObjectDictionary()
	od.SetDummyMapped(od.UNSIGNED16, true)
	t.Cleanup(func() { od.SetDummyMapped(od.UNSIGNED16, false) })
	assert.Equal(t, od.AbortNoObj, ChkRpdo(dict, uint16(od.UNSIGNED16), 1))
}

func TestChkRpdoMissingObject(t *testing.T) {
	dict := od.NewObjectDictionary()
	assert.Equal(t, od.AbortNoObj, ChkRpdo(dict, 0x2020, 0))
}

func TestChkRpdoMissingSubIndex(t *testing.T) {
	dict := od.NewObjectDictionary()
	dict.AddVariableType(0x2020, "x", od.UNSIGNED8, od.AttributeSdoRw|od.AttributeRpdo, "0")
	assert.Equal(t, od.AbortNoSub, ChkRpdo(dict, 0x2020, 5))
}

func TestChkRpdoReadOnlyRejected(t *testing.T) {
	dict := od.NewObjectDictionary()
	dict.AddVariableType(0x2020, "x", od.UNSIGNED8, od.AttributeSdoR|od.AttributeRpdo, "0")
	assert.Equal(t, od.AbortNoWrite, ChkRpdo(dict, 0x2020, 0))
}

func TestChkRpdoNotMappableRejected(t *testing.T) {
	dict := od.NewObjectDictionary()
	dict.AddVariableType(0x2020, "x", od.UNSIGNED8, od.AttributeSdoRw, "0")
	assert.Equal(t, od.AbortNoPdo, ChkRpdo(dict, 0x2020, 0))
}

func TestChkRpdoRWRExcluded(t *testing.T) {
	dict := od.NewObjectDictionary()
	dict.AddVariableType(0x2020, "x", od.UNSIGNED8, od.AttributeSdoRw|od.AttributeRWR|od.AttributeRpdo, "0")
	assert.Equal(t, od.AbortNoPdo, ChkRpdo(dict, 0x2020, 0))
}

func TestChkRpdoAccepted(t *testing.T) {
	dict := od.NewObjectDictionary()
	dict.AddVariableType(0x2020, "x", od.UNSIGNED8, od.AttributeSdoRw|od.AttributeRpdo, "0")
	assert.Equal(t, od.AbortNone, ChkRpdo(dict, 0x2020, 0))
}

func TestChkTpdoRWWExcluded(t *testing.T) {
	dict := od.NewObjectDictionary()
	dict.AddVariableType(0x2020, "x", od.UNSIGNED8, od.AttributeSdoRw|od.AttributeRWW|od.AttributeTpdo, "0")
	assert.Equal(t, od.AbortNoPdo, ChkTpdo(dict, 0x2020, 0))
}

func TestChkTpdoWriteOnlyRejected(t *testing.T) {
	dict := od.NewObjectDictionary()
	dict.AddVariableType(0x2020, "x", od.UNSIGNED8, od.AttributeSdoW|od.AttributeTpdo, "0")
	assert.Equal(t, od.AbortNoRead, ChkTpdo(dict, 0x2020, 0))
}

func TestChkTpdoAccepted(t *testing.T) {
	dict := od.NewObjectDictionary()
	dict.AddVariableType(0x2020, "x", od.UNSIGNED8, od.AttributeSdoRw|od.AttributeTpdo, "0")
	assert.Equal(t, od.AbortNone, ChkTpdo(dict, 0x2020, 0))
}
