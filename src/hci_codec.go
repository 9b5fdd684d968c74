package b1ee

/*------------------------------------------------------------------
 *
 * Purpose: Encode/decode HCI command and event packets on the wire
 *          format used by real BLE controllers: little-endian
 *          opcodes, a one-byte parameter length, event-mask gated
 *          delivery.
 *
 * Grounded on the teacher's hand-rolled field-at-a-time wire codecs
 * in ax25_pad.go/kiss_frame.go - no example repo carries a generic
 * binary-protocol codec library, so this does the same by hand with
 * encoding/binary.
 *
 *------------------------------------------------------------------*/

import "encoding/binary"

// HCI packet type indicator, the first byte of every frame on the wire.
const (
	PacketTypeCommand byte = 0x01
	PacketTypeACLData byte = 0x02
	PacketTypeEvent   byte = 0x04
)

// OpCode packs (OGF << 10) | OCF, per the Bluetooth Core spec.
type OpCode uint16

func MakeOpCode(ogf, ocf uint16) OpCode {
	return OpCode((ogf << 10) | (ocf & 0x3FF))
}

// The BLE-host command subset this core supports (spec.md 4.1).
const (
	OpSetEventMask                   OpCode = 0x0C01
	OpReset                          OpCode = 0x0C03
	OpWriteLEHostSupported           OpCode = 0x0C6D
	OpReadLocalVersionInformation    OpCode = 0x1001
	OpReadLocalSupportedCommands     OpCode = 0x1002
	OpReadLocalSupportedFeatures     OpCode = 0x1003
	OpReadLocalExtendedFeatures      OpCode = 0x1004
	OpReadBufferSize                 OpCode = 0x1005
	OpReadBDAddr                     OpCode = 0x1009
	OpLESetEventMask                 OpCode = 0x2001
	OpLEReadBufferSize               OpCode = 0x2002
	OpLEReadLocalSupportedFeatures   OpCode = 0x2003
	OpLESetAdvertisingParameters     OpCode = 0x2006
	OpLEReadAdvertisingChannelTXPwr  OpCode = 0x2007
	OpLESetAdvertisingData           OpCode = 0x2008
	OpLESetScanResponseData          OpCode = 0x2009
	OpLESetAdvertiseEnable           OpCode = 0x200A
	OpLESetScanParameters            OpCode = 0x200B
	OpLESetScanEnable                OpCode = 0x200C
	OpLEReadWhiteListSize            OpCode = 0x200F
	OpLEReadSupportedStates          OpCode = 0x201C
)

// HCI event codes this core emits.
const (
	EventCommandComplete       byte = 0x0E
	EventCommandStatus         byte = 0x0F
	EventNumCompletedPackets   byte = 0x13
	EventLEMetaEvent           byte = 0x3E
	SubeventLEAdvertisingReport byte = 0x02
)

// HCI command status codes (spec.md 7).
const (
	StatusSuccess                       byte = 0x00
	StatusUnknownHCICommand             byte = 0x01
	StatusInvalidHCICommandParameters    byte = 0x12
)

// forceEnabledEventMaskBits is OR'd into the HCI event mask on every
// Set Event Mask regardless of what the host requested: Command
// Complete, Command Status and Number of Completed Packets can never
// be masked off (spec.md 4.1).
const forceEnabledEventMaskBits uint64 = (1 << (EventCommandComplete - 1)) |
	(1 << (EventCommandStatus - 1)) |
	(1 << (EventNumCompletedPackets - 1))

// numHCICommandPackets is the fixed "number of HCI command packets"
// field this single-command-in-flight controller always reports.
const numHCICommandPackets byte = 1

// eventMaskAllows reports whether event code is permitted by mask,
// per spec.md 4.1: event E is sent iff bit (E-1) of mask is set.
func eventMaskAllows(mask uint64, eventCode byte) bool {
	bit := uint(eventCode - 1)
	if bit >= 64 {
		return false
	}

	return mask&(1<<bit) != 0
}

func encodeEvent(code byte, params []byte) []byte {
	out := make([]byte, 0, 3+len(params))
	out = append(out, PacketTypeEvent, code, byte(len(params)))

	return append(out, params...)
}

// EncodeCommandComplete builds the wire bytes for the mandatory
// Command Complete reply (spec.md 4.1).
func EncodeCommandComplete(opcode OpCode, status byte, returnParams []byte) []byte {
	params := make([]byte, 0, 4+len(returnParams))
	params = append(params, numHCICommandPackets)
	params = appendOpCode(params, opcode)
	params = append(params, status)
	params = append(params, returnParams...)

	return encodeEvent(EventCommandComplete, params)
}

// EncodeCommandStatus builds the Command Status reply used for an
// unrecognized opcode (spec.md 4.1/7).
func EncodeCommandStatus(status byte, opcode OpCode) []byte {
	params := make([]byte, 0, 4)
	params = append(params, status, numHCICommandPackets)
	params = appendOpCode(params, opcode)

	return encodeEvent(EventCommandStatus, params)
}

// EncodeLEAdvertisingReport builds an LE Meta Event / LE Advertising
// Report carrying one report, per spec.md 4.5.
func EncodeLEAdvertisingReport(bdAddr [6]byte, data []byte, rssi int8) []byte {
	params := make([]byte, 0, 4+6+1+len(data)+1)
	params = append(params,
		SubeventLEAdvertisingReport,
		0x01, // num_reports
		0x00, // event_type: ADV_IND
		0x00, // addr_type: public
	)
	params = append(params, bdAddr[:]...)
	params = append(params, byte(len(data)))
	params = append(params, data...)
	params = append(params, byte(rssi))

	return encodeEvent(EventLEMetaEvent, params)
}

func appendOpCode(b []byte, opcode OpCode) []byte {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], uint16(opcode))

	return append(b, buf[:]...)
}

// CommandFrame is one decoded inbound HCI command.
type CommandFrame struct {
	Opcode OpCode
	Params []byte
}
