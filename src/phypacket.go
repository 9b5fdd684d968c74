package b1ee

/*------------------------------------------------------------------
 *
 * Purpose: One transmission or receive window in the shared radio
 *          simulation. A Link Layer reuses a single scratch instance
 *          of this per get_next_packet call; the scheduler consumes
 *          it (reads its fields, maybe delivers it) before the Link
 *          Layer is polled again, so aliasing across iterations never
 *          happens while the scheduler mutex is held.
 *
 *------------------------------------------------------------------*/

// Direction of a PhysicalPacket: outbound transmission or an open
// receive window.
type Direction int

const (
	Tx Direction = iota
	Rx
)

// Modulation is fixed for this core; every packet uses GFSK as used
// by the BLE LE PHY.
type Modulation int

const GFSKLE Modulation = 0

// AdvertisingAccessAddress is the fixed access address used by every
// advertising-channel PDU.
const AdvertisingAccessAddress uint32 = 0x8E89BED6

// Preamble byte values, selected by bit 0 of the access address.
const (
	preambleOnes  = 0x55
	preambleZeros = 0xAA
)

func preambleFor(accessAddress uint32) byte {
	if accessAddress&1 != 0 {
		return preambleOnes
	}

	return preambleZeros
}

// PhysicalPacket is one transmission (Tx) or receive window (Rx) as
// scheduled by a Link Layer's state machines and consumed by the
// shared PHY scheduler.
type PhysicalPacket struct {
	Direction     Direction
	Channel       int // RF channel index, 0-39 (37/38/39 for advertising)
	Modulation    Modulation
	StartTime     int64 // simulated ns
	EndTime       int64 // simulated ns
	AccessAddress uint32
	Preamble      byte
	PDU           []byte // for Tx: the bytes to send. Unused for Rx.

	// Owning Link Layer and the index into its state-machine array
	// that produced (Tx) or is waiting on (Rx) this packet.
	Owner        *LinkLayer
	MachineIndex int
}

// txOnAirTime returns the simulated end_time minus start_time for a
// Tx packet of the given PDU length: preamble + access address + PDU
// + CRC, in the simulator's "1 bit = 1 ns" convention (spec.md 4.3/4.4,
// preserved verbatim per DESIGN.md's Open Question #3 - this is
// dimensionally wrong for real BLE but the collision and timing tests
// are built against it). This is the formula phylayer.cpp's set_pdu
// uses for end_time and carries no inter-frame space; see tIFS for
// that separate quantity.
func txOnAirTime(pduLen int) int64 {
	const preambleBits = 8
	const accessAddressBits = 32
	const crcBits = 24

	return int64(preambleBits + accessAddressBits + pduLen*8 + crcBits)
}

// tIFS is the BLE inter-frame space, in the simulator's "1 bit = 1 ns"
// convention. It belongs only in the per-channel Tx advance within one
// advertising event (statemachine.go's tickAdvertising), never in a
// Tx's own end_time.
const tIFS int64 = 150
