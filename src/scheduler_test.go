package b1ee

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRadio is a RadioSource that replays a fixed sequence of
// packets, one per GetNextPacket call, and records delivered PDUs.
type scriptedRadio struct {
	packets []*PhysicalPacket
	idx     int

	delivered [][]byte
	completed int

	deletePending bool
	deleteReady   bool
}

func (r *scriptedRadio) GetNextPacket(after int64) (*PhysicalPacket, bool) {
	if r.idx >= len(r.packets) {
		return nil, false
	}

	p := r.packets[r.idx]
	if p.StartTime < after {
		return nil, false
	}

	return p, true
}

func (r *scriptedRadio) EndOfPacket(pkt *PhysicalPacket, rxData []byte) {
	r.completed++
	if len(rxData) > 0 {
		r.delivered = append(r.delivered, rxData)
	}

	r.idx++
}

func (r *scriptedRadio) IsDeletePending() bool { return r.deletePending }
func (r *scriptedRadio) SetDeleteReady()       { r.deleteReady = true }

func Test_Scheduler_deliversTxToOverlappingRx(t *testing.T) {
	// spec.md testable scenario 5: cross-client reception. A Tx on
	// channel 37 starting at t=0 is delivered to an Rx open on the same
	// channel for the whole transmission.
	pdu := []byte{0x00, 0x02, 1, 2}
	tx := &PhysicalPacket{
		Direction: Tx, Channel: 37, StartTime: 0, EndTime: txOnAirTime(len(pdu)),
		AccessAddress: AdvertisingAccessAddress, PDU: pdu,
	}
	rx := &PhysicalPacket{
		Direction: Rx, Channel: 37, StartTime: 0, EndTime: txOnAirTime(len(pdu)) + 1000,
	}

	txRadio := &scriptedRadio{packets: []*PhysicalPacket{tx}}
	rxRadio := &scriptedRadio{packets: []*PhysicalPacket{rx}}

	s := NewScheduler()
	s.Register(txRadio)
	s.Register(rxRadio)

	for i := 0; i < 10_000 && len(rxRadio.delivered) == 0; i++ {
		s.step()
	}

	require.Len(t, rxRadio.delivered, 1)
	assert.Equal(t, pdu, rxRadio.delivered[0])
}

func Test_Scheduler_collisionSuppressesDelivery(t *testing.T) {
	// spec.md testable scenario 6: two overlapping Tx on the same
	// channel collide, and neither reaches a listening Rx.
	pdu := []byte{0xAA}
	tx1 := &PhysicalPacket{Direction: Tx, Channel: 37, StartTime: 0, EndTime: txOnAirTime(len(pdu)), PDU: pdu}
	tx2 := &PhysicalPacket{Direction: Tx, Channel: 37, StartTime: 0, EndTime: txOnAirTime(len(pdu)), PDU: pdu}
	rx := &PhysicalPacket{Direction: Rx, Channel: 37, StartTime: 0, EndTime: txOnAirTime(len(pdu)) + 1000}

	tx1Radio := &scriptedRadio{packets: []*PhysicalPacket{tx1}}
	tx2Radio := &scriptedRadio{packets: []*PhysicalPacket{tx2}}
	rxRadio := &scriptedRadio{packets: []*PhysicalPacket{rx}}

	s := NewScheduler()
	s.Register(tx1Radio)
	s.Register(tx2Radio)
	s.Register(rxRadio)

	for i := 0; i < 10_000 && rxRadio.completed == 0; i++ {
		s.step()
	}

	assert.Empty(t, rxRadio.delivered)
}

func Test_Scheduler_nonOverlappingChannelsDoNotCollide(t *testing.T) {
	pdu := []byte{0xAA}
	tx1 := &PhysicalPacket{Direction: Tx, Channel: 37, StartTime: 0, EndTime: txOnAirTime(len(pdu)), PDU: pdu}
	tx2 := &PhysicalPacket{Direction: Tx, Channel: 38, StartTime: 0, EndTime: txOnAirTime(len(pdu)), PDU: pdu}
	rx := &PhysicalPacket{Direction: Rx, Channel: 37, StartTime: 0, EndTime: txOnAirTime(len(pdu)) + 1000}

	tx1Radio := &scriptedRadio{packets: []*PhysicalPacket{tx1}}
	tx2Radio := &scriptedRadio{packets: []*PhysicalPacket{tx2}}
	rxRadio := &scriptedRadio{packets: []*PhysicalPacket{rx}}

	s := NewScheduler()
	s.Register(tx1Radio)
	s.Register(tx2Radio)
	s.Register(rxRadio)

	for i := 0; i < 10_000 && len(rxRadio.delivered) == 0; i++ {
		s.step()
	}

	require.Len(t, rxRadio.delivered, 1)
}

func Test_Scheduler_unregisterStopsPolling(t *testing.T) {
	pdu := []byte{0x01}
	radio := &scriptedRadio{packets: []*PhysicalPacket{
		{Direction: Tx, Channel: 37, StartTime: 0, EndTime: txOnAirTime(len(pdu)), PDU: pdu},
	}}

	s := NewScheduler()
	s.Register(radio)
	s.Unregister(radio)

	for i := 0; i < 100; i++ {
		s.step()
	}

	assert.Equal(t, 0, radio.completed)
}

func Test_Scheduler_reapsDeletePending(t *testing.T) {
	radio := &scriptedRadio{deletePending: true}

	s := NewScheduler()
	s.Register(radio)
	s.step()

	assert.True(t, radio.deleteReady)
}

func Test_canDeliver(t *testing.T) {
	tx := &PhysicalPacket{Channel: 37, StartTime: 100, EndTime: 200}

	openEarly := &PhysicalPacket{Channel: 37, StartTime: 0, EndTime: 100 + preambleAirBits}
	assert.True(t, canDeliver(openEarly, tx))

	closesTooSoon := &PhysicalPacket{Channel: 37, StartTime: 0, EndTime: 100 + preambleAirBits - 1}
	assert.False(t, canDeliver(closesTooSoon, tx))

	opensLate := &PhysicalPacket{Channel: 37, StartTime: 150, EndTime: 300}
	assert.False(t, canDeliver(opensLate, tx))

	wrongChannel := &PhysicalPacket{Channel: 38, StartTime: 0, EndTime: 300}
	assert.False(t, canDeliver(wrongChannel, tx))
}
