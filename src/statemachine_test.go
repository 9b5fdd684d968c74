package b1ee

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_tickAdvertising_notYetDue(t *testing.T) {
	adv := &AdvertisingState{NextTx: 1000}

	due := tickAdvertising(adv, 0x0800, 39, 500)

	assert.False(t, due)
	assert.Equal(t, int64(1000), adv.NextTx) // unchanged
}

func Test_tickAdvertising_dueAtExactInstant(t *testing.T) {
	// The "<=" resolution of spec.md 9's open question: due exactly at
	// "after" still fires.
	adv := &AdvertisingState{NextTx: 500}

	due := tickAdvertising(adv, 0x0800, 39, 500)

	assert.True(t, due)
}

func Test_tickAdvertising_channelCyclesThenWraps(t *testing.T) {
	adv := &AdvertisingState{NextTx: 0, Channel: 0, NextInstant: 0}

	tickAdvertising(adv, 0x0010, 39, 0)
	assert.Equal(t, 1, adv.Channel)

	tickAdvertising(adv, 0x0010, 39, adv.NextTx)
	assert.Equal(t, 2, adv.Channel)

	tickAdvertising(adv, 0x0010, 39, adv.NextTx)
	assert.Equal(t, 0, adv.Channel) // wrapped back to 0, a new interval started
	assert.Equal(t, int64(0x0010)*unit625, adv.NextInstant)
}

func Test_tickScanning_symmetricWithAdvertising(t *testing.T) {
	scan := &ScanningState{NextInstant: 0, Channel: 2}

	due := tickScanning(scan, 0x0020, 0)

	assert.True(t, due)
	assert.Equal(t, 0, scan.Channel) // wraps 2 -> 0
	assert.Equal(t, int64(0x0020)*unit625, scan.NextInstant)
}

func Test_unit625_matchesStatedDefaultInterval(t *testing.T) {
	// spec.md 4.2: default advertising interval min/max 0x0800 is
	// documented as approximately 1.28 seconds.
	const oneSecond = 1_000_000_000

	got := int64(0x0800) * unit625

	assert.InDelta(t, float64(1.28*oneSecond), float64(got), float64(oneSecond)*0.01)
}
