package canopen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameExtended(t *testing.T) {
	assert.False(t, NewFrame(0x1, 0, 8).Extended())
	assert.True(t, NewFrame(0x1, FlagIDE, 8).Extended())
}

func TestFrameStringIncludesIDAndPayload(t *testing.T) {
	f := NewFrame(0x201, 0, 2)
	f.Data[0] = 0xAB
	f.Data[1] = 0xCD
	s := f.String()
	assert.Contains(t, s, "id=x201")
	assert.Contains(t, s, "ab cd")
}
