package b1ee

/*------------------------------------------------------------------
 *
 * Purpose: Per-controller Link-Layer state: advertising/scan
 *          parameters and enable flags, the state-machine array, and
 *          the HCI-driven mutators that touch them (spec.md 3, 4.2).
 *
 * Grounded on the teacher's ax25_pad.go small-setter style (each
 * mutator does one thing, guarded by the caller's mutex) and
 * beacon.go's enable-flag/interval bookkeeping for periodic
 * transmission.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/binary"
	"errors"
)

// MaxAdvDataLen and MaxScanRspDataLen bound advertising/scan-response
// payloads at 31 bytes (spec.md 3).
const (
	MaxAdvDataLen     = 31
	MaxScanRspDataLen = 31
)

// Default advertising parameters restored by Reset (spec.md 4.2).
const (
	defaultAdvIntervalUnits uint16 = 0x0800 // ~1.28s, see statemachine.go's unit625
	defaultAdvType          byte   = 0x00   // ADV_IND
	defaultAdvChannelMap    byte   = 0x07
	defaultAdvFilterPolicy  byte   = 0x00
)

// Default LMP features page 0 and LL supported-states bits restored
// by Reset, matching linklayer.cpp's reset().
const (
	defaultLMPFeaturesPage0 uint64 = 0x8000006000000000
	defaultSupportedStates  uint64 = 0x37
)

// AdvertisingParameters holds LE Set Advertising Parameters state.
type AdvertisingParameters struct {
	IntervalMin     uint16
	IntervalMax     uint16
	AdvType         byte
	OwnAddrType     byte
	DirectAddrType  byte
	DirectAddr      [6]byte
	ChannelMap      byte
	FilterPolicy    byte
}

// ScanParameters holds LE Set Scan Parameters state.
type ScanParameters struct {
	ScanType         byte
	Interval         uint16
	Window           uint16
	OwnAddrType      byte
	FilterPolicy     byte
	FilterDuplicates byte
}

// LinkLayer is the per-controller Link Layer of spec.md 3: identity,
// advertising/scan configuration, and the small fixed array of state
// machines that drive PHY scheduling.
type LinkLayer struct {
	BDAddr [6]byte

	LMPFeatures     [4][8]byte // four pages of LMP feature bits
	LEFeatures      [8]byte
	SupportedStates [8]byte

	AdvParams          AdvertisingParameters
	AdvData            [MaxAdvDataLen]byte
	AdvDataLen         int
	ScanRspData        [MaxScanRspDataLen]byte
	ScanRspDataLen     int
	AdvertisingEnabled bool

	ScanParams  ScanParameters
	ScanEnabled bool

	LastClock int64

	Machines    [NumStateMachines]StateMachine
	LastMachine int

	packet PhysicalPacket // reusable scratch, per spec.md 9

	// Report is called when a Scanning machine in sub-state Scan
	// receives a non-empty PDU (spec.md 4.5): the Link Layer's
	// host-facing hook. Set by the owning Controller. channel is the
	// RF channel the report arrived on (SPEC_FULL.md 4.9).
	Report func(bdAddr [6]byte, data []byte, channel int)
}

// NewLinkLayer returns a Link Layer with its BD_ADDR set and all
// other state at its Reset default.
func NewLinkLayer(bdAddr [6]byte) *LinkLayer {
	ll := &LinkLayer{BDAddr: bdAddr}
	ll.Reset()

	return ll
}

// Reset restores every mutable field to its spec.md 4.2/6 default and
// marks every state machine Idle.
func (ll *LinkLayer) Reset() {
	ll.LMPFeatures = [4][8]byte{}
	binary.LittleEndian.PutUint64(ll.LMPFeatures[0][:], defaultLMPFeaturesPage0)
	ll.LEFeatures = [8]byte{}
	ll.SupportedStates = [8]byte{}
	binary.LittleEndian.PutUint64(ll.SupportedStates[:], defaultSupportedStates)

	ll.AdvParams = AdvertisingParameters{
		IntervalMin:  defaultAdvIntervalUnits,
		IntervalMax:  defaultAdvIntervalUnits,
		AdvType:      defaultAdvType,
		ChannelMap:   defaultAdvChannelMap,
		FilterPolicy: defaultAdvFilterPolicy,
	}
	ll.AdvDataLen = 0
	ll.AdvData = [MaxAdvDataLen]byte{}
	ll.ScanRspDataLen = 0
	ll.ScanRspData = [MaxScanRspDataLen]byte{}
	ll.AdvertisingEnabled = false

	ll.ScanParams = ScanParameters{}
	ll.ScanEnabled = false

	for i := range ll.Machines {
		ll.Machines[i].reset()
	}

	ll.LastMachine = NumStateMachines - 1
}

var (
	// ErrNoFreeStateMachine is returned by SetAdvertisingEnable/
	// SetScanEnable(true) when every state machine is already active,
	// per spec.md 4.2/8 ("Enable twice fails").
	ErrNoFreeStateMachine = errors.New("b1ee: no free link-layer state machine")
)

// SetAdvertisingData truncates/zero-pads data to 31 bytes (spec.md 4.2).
func (ll *LinkLayer) SetAdvertisingData(data []byte) {
	ll.AdvData = [MaxAdvDataLen]byte{}
	n := copy(ll.AdvData[:], data)
	ll.AdvDataLen = n
}

// SetScanResponseData truncates/zero-pads data to 31 bytes.
func (ll *LinkLayer) SetScanResponseData(data []byte) {
	ll.ScanRspData = [MaxScanRspDataLen]byte{}
	n := copy(ll.ScanRspData[:], data)
	ll.ScanRspDataLen = n
}

// SetAdvertisingParameters stores the LE Set Advertising Parameters
// fields. Valid at any time; it does not itself enable advertising.
func (ll *LinkLayer) SetAdvertisingParameters(p AdvertisingParameters) {
	ll.AdvParams = p
}

// SetScanParameters stores the LE Set Scan Parameters fields.
func (ll *LinkLayer) SetScanParameters(p ScanParameters) {
	ll.ScanParams = p
}

// SetAdvertisingEnable implements LE Set Advertise Enable (spec.md
// 4.2). enable=true finds the lowest-indexed Idle machine and starts
// it advertising, seeded from LastClock; enable=false finds the
// Advertising machine and returns it to Idle. Enabling while already
// enabled is a no-op that fails (ErrNoFreeStateMachine is reused for
// this case per spec.md 4.2's "no-op returning failure").
func (ll *LinkLayer) SetAdvertisingEnable(enable bool) error {
	if enable {
		if ll.AdvertisingEnabled {
			return ErrNoFreeStateMachine
		}

		idx := ll.findIdleMachine()
		if idx < 0 {
			return ErrNoFreeStateMachine
		}

		ll.Machines[idx] = StateMachine{
			State: StateAdvertising,
			Adv: AdvertisingState{
				SubState:    SubStateAdvertise,
				NextInstant: ll.LastClock,
				NextTx:      ll.LastClock + int64(pseudoRandBelow(16))*unit625,
				Channel:     0,
			},
		}
		ll.AdvertisingEnabled = true

		return nil
	}

	idx := ll.findMachineInState(StateAdvertising)
	if idx < 0 {
		return nil
	}

	ll.Machines[idx].reset()
	ll.AdvertisingEnabled = false

	return nil
}

// SetScanEnable implements LE Set Scan Enable, symmetric with
// SetAdvertisingEnable.
func (ll *LinkLayer) SetScanEnable(enable bool) error {
	if enable {
		if ll.ScanEnabled {
			return ErrNoFreeStateMachine
		}

		idx := ll.findIdleMachine()
		if idx < 0 {
			return ErrNoFreeStateMachine
		}

		ll.Machines[idx] = StateMachine{
			State: StateScanning,
			Scan: ScanningState{
				SubState:    SubStateScan,
				NextInstant: ll.LastClock,
				Channel:     0,
			},
		}
		ll.ScanEnabled = true

		return nil
	}

	idx := ll.findMachineInState(StateScanning)
	if idx < 0 {
		return nil
	}

	ll.Machines[idx].reset()
	ll.ScanEnabled = false

	return nil
}

func (ll *LinkLayer) findIdleMachine() int {
	for i := range ll.Machines {
		if ll.Machines[i].State == StateIdle {
			return i
		}
	}

	return -1
}

func (ll *LinkLayer) findMachineInState(state LinkLayerState) int {
	for i := range ll.Machines {
		if ll.Machines[i].State == state {
			return i
		}
	}

	return -1
}

// buildAdvertisingPDU lays out an ADV_IND-shaped PDU: header byte
// (always 0x00, spec.md 9's design note - the advertising type
// parameter does not change the header byte), length byte, BD_ADDR,
// advertising data.
func (ll *LinkLayer) buildAdvertisingPDU() []byte {
	pdu := make([]byte, 2+6+ll.AdvDataLen)
	pdu[0] = 0x00
	pdu[1] = byte(6 + ll.AdvDataLen)
	copy(pdu[2:8], ll.BDAddr[:])
	copy(pdu[8:], ll.AdvData[:ll.AdvDataLen])

	return pdu
}

// GetNextPacket implements spec.md 4.3's get_next_packet: round-robin
// over the state-machine array starting at (LastMachine+1)%N,
// returning the first machine's due PHY packet. The returned pointer
// aliases the Link Layer's single scratch PhysicalPacket and is only
// valid until the next call (spec.md 9).
func (ll *LinkLayer) GetNextPacket(after int64) (*PhysicalPacket, bool) {
	ll.LastClock = after

	for step := 0; step < NumStateMachines; step++ {
		idx := (ll.LastMachine + 1 + step) % NumStateMachines
		m := &ll.Machines[idx]

		switch m.State {
		case StateAdvertising:
			pdu := ll.buildAdvertisingPDU()
			startTime := m.Adv.NextTx
			channel := 37 + m.Adv.Channel

			if !tickAdvertising(&m.Adv, ll.AdvParams.IntervalMin, len(pdu), after) {
				continue
			}

			aa := AdvertisingAccessAddress
			ll.packet = PhysicalPacket{
				Direction:     Tx,
				Channel:       channel,
				Modulation:    GFSKLE,
				StartTime:     startTime,
				AccessAddress: aa,
				Preamble:      preambleFor(aa),
				PDU:           pdu,
				Owner:         ll,
				MachineIndex:  idx,
			}
			ll.packet.EndTime = ll.packet.StartTime + txOnAirTime(len(pdu))
			ll.LastMachine = idx

			return &ll.packet, true

		case StateScanning:
			startTime := m.Scan.NextInstant
			channel := 37 + m.Scan.Channel
			window := int64(ll.ScanParams.Window) * unit625

			if !tickScanning(&m.Scan, ll.ScanParams.Interval, after) {
				continue
			}

			ll.packet = PhysicalPacket{
				Direction:    Rx,
				Channel:      channel,
				Modulation:   GFSKLE,
				StartTime:    startTime,
				EndTime:      startTime + window - scanWindowTrailer,
				Owner:        ll,
				MachineIndex: idx,
			}
			ll.LastMachine = idx

			return &ll.packet, true

		default: // Idle, or a reserved state unreachable in this core
			continue
		}
	}

	return nil, false
}

// EndOfPacket is called by the scheduler when a packet this Link
// Layer owns reaches its end_time (spec.md 4.4/4.5). rxData is nil
// for a Tx's own completion and for an Rx window closing with
// nothing received; it carries the delivered PDU bytes when a
// scanning machine received a transmission mid-window.
func (ll *LinkLayer) EndOfPacket(pkt *PhysicalPacket, rxData []byte) {
	if pkt.Direction != Rx || len(rxData) == 0 {
		return
	}

	if pkt.MachineIndex < 0 || pkt.MachineIndex >= NumStateMachines {
		return
	}

	m := &ll.Machines[pkt.MachineIndex]
	if m.State != StateScanning || m.Scan.SubState != SubStateScan {
		return
	}

	if len(rxData) < 8 {
		return
	}

	var bdAddr [6]byte
	copy(bdAddr[:], rxData[2:8])
	data := rxData[8:]

	if ll.Report != nil {
		ll.Report(bdAddr, data, pkt.Channel)
	}
}
