package b1ee

/*------------------------------------------------------------------
 *
 * Purpose: The small fixed-capacity set of Link-Layer state machines
 *          a controller owns, and the per-role scheduling math that
 *          decides "when is my next PHY packet?" (spec.md 3, 4.3).
 *
 * Grounded on the teacher's tq.go round-robin per-channel queue
 * service (the N-way round robin over machines here stands in for
 * tq.go's round robin over MAX_RADIO_CHANS) and beacon.go's
 * randomized-delay periodic-transmission scheduling (the
 * [0,10)ms advertising jitter is the same shape as beacon.go's
 * spread-out retransmission delay).
 *
 *------------------------------------------------------------------*/

// NumStateMachines is N in spec.md 3: the fixed number of
// Link-Layer state machines each controller owns. At most two may
// be concurrently active (one advertising, one scanning).
const NumStateMachines = 2

// LinkLayerState is the role a state machine is currently playing.
// Only Idle, Advertising and Scanning are reachable in this core;
// the others are reserved per spec.md 4.6.
type LinkLayerState int

const (
	StateIdle LinkLayerState = iota
	StateAdvertising
	StateScanning
	StateInitiator
	StateSlave
	StateMaster
)

// AdvertisingSubState is the sub-state of an Advertising machine.
// Only Advertise is reachable in this core.
type AdvertisingSubState int

const (
	SubStateAdvertise AdvertisingSubState = iota
	SubStateAdvertiseRequest
	SubStateAdvertiseResponse
)

// ScanningSubState is the sub-state of a Scanning machine. Only Scan
// is reachable in this core.
type ScanningSubState int

const (
	SubStateScan ScanningSubState = iota
	SubStateScanRequest
	SubStateScanResponse
)

// AdvertisingState is the Advertising-role data of one state machine.
type AdvertisingState struct {
	SubState   AdvertisingSubState
	NextInstant int64 // next_advertising_instant, simulated ns
	NextTx      int64 // next_advertising_tx, simulated ns; always >= NextInstant
	Channel     int   // 0, 1 or 2 -> RF channel 37+Channel
}

// ScanningState is the Scanning-role data of one state machine.
type ScanningState struct {
	SubState    ScanningSubState
	NextInstant int64 // next_scanning_instant, simulated ns
	Channel     int   // 0, 1 or 2 -> RF channel 37+Channel
}

// StateMachine is one of a Link Layer's fixed array of state
// machines, tagged by which role (if any) it currently plays.
type StateMachine struct {
	State LinkLayerState
	Adv   AdvertisingState
	Scan  ScanningState
}

func (m *StateMachine) reset() {
	*m = StateMachine{State: StateIdle}
}

// unit625 is one advertising-interval/scan-interval unit, 625
// microseconds, expressed in the simulator's nanosecond clock.
// spec.md 4.2's stated default (interval min/max 0x0800 => ~1.28s)
// only holds with this unit (the 4.3 pseudocode's literal "625 ns" is
// corrected here to 625 us to match that explicit default and real
// BLE units).
const unit625 int64 = 625_000

// tIFS-adjacent scan-window trailer, subtracted from the window
// close time per spec.md 4.3.
const scanWindowTrailer int64 = 150

// tickAdvertising advances one Advertising machine by one
// get_next_packet call and reports whether it produced a Tx due at
// or before "after". pduLen is the Tx PDU's total length in bytes,
// used only for the non-wraparound per-channel Tx-time advance. The
// resolution of the "> after" vs "<= after" open question (spec.md 9)
// is <=: due now or in the past triggers emission.
func tickAdvertising(adv *AdvertisingState, intervalMin uint16, pduLen int, after int64) (due bool) {
	if adv.NextTx > after {
		return false
	}

	adv.Channel = (adv.Channel + 1) % 3
	if adv.Channel == 0 {
		adv.NextInstant += int64(intervalMin) * unit625
		adv.NextTx = adv.NextInstant + int64(pseudoRandBelow(16))*unit625
	} else {
		adv.NextTx += txOnAirTime(pduLen) + tIFS
	}

	if adv.NextTx < after {
		// Still behind schedule after one step: skip a full interval
		// rather than let the backlog grow unbounded.
		adv.NextInstant += int64(intervalMin) * unit625
		adv.NextTx = adv.NextInstant + int64(pseudoRandBelow(16))*unit625
	}

	return true
}

// tickScanning advances one Scanning machine by one get_next_packet
// call and reports whether its scan window is due at or before
// "after". Same "<=" resolution as advertising, applied consistently.
func tickScanning(scan *ScanningState, interval uint16, after int64) (due bool) {
	if scan.NextInstant > after {
		return false
	}

	scan.Channel = (scan.Channel + 1) % 3
	scan.NextInstant += int64(interval) * unit625

	if scan.NextInstant < after {
		scan.NextInstant += int64(interval) * unit625
	}

	return true
}
