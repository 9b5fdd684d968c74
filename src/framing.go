package b1ee

/*------------------------------------------------------------------
 *
 * Purpose: Split HCI command frames out of an inbound byte stream.
 *
 * Grounded on the teacher's kiss_frame.go incremental frame
 * accumulator: bytes arrive in arbitrary chunks from the socket and
 * are appended to a buffer; a frame is extracted (and its bytes
 * consumed) only once it is fully present.
 *
 *------------------------------------------------------------------*/

import "encoding/binary"

// commandHeaderLen is the number of bytes preceding a command's
// parameters: packet type (1) + opcode (2) + parameter length (1).
const commandHeaderLen = 4

// aclHeaderLen is the number of bytes preceding an ACL data packet's
// payload: packet type (1) + connection handle/flags (2) + length (2).
const aclHeaderLen = 5

// Framer accumulates inbound bytes from one connection and yields
// complete HCI command frames. ACL data packets are recognized and
// silently drained (this core has no data-channel support); any
// other leading byte is malformed and ends the stream.
type Framer struct {
	buf []byte
}

// Feed appends newly read bytes to the framer's buffer.
func (f *Framer) Feed(b []byte) {
	f.buf = append(f.buf, b...)
}

// Next extracts the next complete command frame, if any. malformed
// is true iff the leading byte was neither a command (0x01) nor ACL
// data (0x02) marker, per spec.md 4.1 - the caller must tear down
// the connection in that case. ACL data frames are consumed
// transparently and never themselves returned.
func (f *Framer) Next() (frame CommandFrame, ok bool, malformed bool) {
	for {
		if len(f.buf) == 0 {
			return CommandFrame{}, false, false
		}

		switch f.buf[0] {
		case PacketTypeCommand:
			if len(f.buf) < commandHeaderLen {
				return CommandFrame{}, false, false
			}

			opcode := OpCode(binary.LittleEndian.Uint16(f.buf[1:3]))
			plen := int(f.buf[3])
			total := commandHeaderLen + plen

			if len(f.buf) < total {
				return CommandFrame{}, false, false
			}

			params := append([]byte(nil), f.buf[commandHeaderLen:total]...)
			f.buf = f.buf[total:]

			return CommandFrame{Opcode: opcode, Params: params}, true, false

		case PacketTypeACLData:
			if len(f.buf) < aclHeaderLen {
				return CommandFrame{}, false, false
			}

			length := int(binary.LittleEndian.Uint16(f.buf[3:5]))
			total := aclHeaderLen + length

			if len(f.buf) < total {
				return CommandFrame{}, false, false
			}

			f.buf = f.buf[total:] // unhandled in this core; drop and keep reading

			continue

		default:
			f.buf = nil

			return CommandFrame{}, false, true
		}
	}
}
