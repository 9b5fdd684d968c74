package b1ee

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_EncodeCommandComplete_Reset(t *testing.T) {
	// spec.md testable scenario 1: Reset round-trip.
	// Command:  01 03 0C 00
	// Reply:    04 0E 04 01 03 0C 00
	got := EncodeCommandComplete(OpReset, StatusSuccess, nil)

	assert.Equal(t, []byte{0x04, 0x0E, 0x04, 0x01, 0x03, 0x0C, 0x00}, got)
}

func Test_EncodeCommandComplete_ReadBDAddr(t *testing.T) {
	addr := [6]byte{0xB2, 0x10, 0x01, 0x00, 0x00, 0x7F}

	got := EncodeCommandComplete(OpReadBDAddr, StatusSuccess, addr[:])

	assert.Equal(t, byte(0x04), got[0])
	assert.Equal(t, EventCommandComplete, got[1])
	assert.Equal(t, addr[:], got[7:13])
}

func Test_MakeOpCode(t *testing.T) {
	assert.Equal(t, OpReset, MakeOpCode(0x03, 0x003))
	assert.Equal(t, OpLESetAdvertiseEnable, MakeOpCode(0x08, 0x00A))
}

func Test_eventMaskAllows(t *testing.T) {
	var mask uint64 = 1 << (EventCommandComplete - 1)

	assert.True(t, eventMaskAllows(mask, EventCommandComplete))
	assert.False(t, eventMaskAllows(mask, EventCommandStatus))
	assert.False(t, eventMaskAllows(0, 65))
}

func Test_EncodeLEAdvertisingReport(t *testing.T) {
	addr := [6]byte{1, 2, 3, 4, 5, 6}
	data := []byte{0x02, 0x01, 0x06}

	got := EncodeLEAdvertisingReport(addr, data, -60)

	assert.Equal(t, byte(PacketTypeEvent), got[0])
	assert.Equal(t, EventLEMetaEvent, got[1])
	assert.Equal(t, SubeventLEAdvertisingReport, got[3])
	assert.Equal(t, addr[:], got[7:13])
	assert.Equal(t, byte(len(data)), got[13])
	assert.Equal(t, data, got[14:17])
	assert.Equal(t, byte(0xC4), got[17]) // -60 as a signed byte
}

func Test_forceEnabledEventMaskBits_includesMandatoryEvents(t *testing.T) {
	assert.True(t, eventMaskAllows(forceEnabledEventMaskBits, EventCommandComplete))
	assert.True(t, eventMaskAllows(forceEnabledEventMaskBits, EventCommandStatus))
	assert.True(t, eventMaskAllows(forceEnabledEventMaskBits, EventNumCompletedPackets))
}
