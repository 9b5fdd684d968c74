package b1ee

/*------------------------------------------------------------------
 *
 * Purpose: Map HCI opcode -> handler, validate parameter length, and
 *          format the mandatory Command Complete / Command Status
 *          reply (spec.md 2, 4.1, 7).
 *
 * Grounded on the teacher's server.go datakind switch dispatch (one
 * case per AGWPE command byte, each producing exactly one reply).
 *
 *------------------------------------------------------------------*/

import "encoding/binary"

// commandHandler processes a command's parameters (already
// length-validated) and returns the status and return-parameter
// bytes for its Command Complete reply.
type commandHandler func(c *Controller, params []byte) (status byte, returnParams []byte)

type commandSpec struct {
	paramLen int // exact expected parameter length; -1 means variable
	handler  commandHandler
}

var commandTable = map[OpCode]commandSpec{
	OpSetEventMask:                 {8, handleSetEventMask},
	OpReset:                        {0, handleReset},
	OpWriteLEHostSupported:         {2, handleWriteLEHostSupported},
	OpReadLocalVersionInformation:  {0, handleReadLocalVersionInformation},
	OpReadLocalSupportedCommands:   {0, handleReadLocalSupportedCommands},
	OpReadLocalSupportedFeatures:   {0, handleReadLocalSupportedFeatures},
	OpReadLocalExtendedFeatures:    {1, handleReadLocalExtendedFeatures},
	OpReadBufferSize:               {0, handleReadBufferSize},
	OpReadBDAddr:                   {0, handleReadBDAddr},
	OpLESetEventMask:               {8, handleLESetEventMask},
	OpLEReadBufferSize:             {0, handleLEReadBufferSize},
	OpLEReadLocalSupportedFeatures: {0, handleLEReadLocalSupportedFeatures},
	OpLESetAdvertisingParameters:   {15, handleLESetAdvertisingParameters},
	OpLEReadAdvertisingChannelTXPwr: {0, handleLEReadAdvertisingChannelTXPower},
	OpLESetAdvertisingData:         {-1, handleLESetAdvertisingData},
	OpLESetScanResponseData:        {-1, handleLESetScanResponseData},
	OpLESetAdvertiseEnable:         {1, handleLESetAdvertiseEnable},
	OpLESetScanParameters:          {7, handleLESetScanParameters},
	OpLESetScanEnable:              {2, handleLESetScanEnable},
	OpLEReadWhiteListSize:          {0, handleLEReadWhiteListSize},
	OpLEReadSupportedStates:        {0, handleLEReadSupportedStates},
}

// Dispatch processes one decoded command frame and returns the wire
// bytes of its reply event, per spec.md 4.1/7: Command Status with
// StatusUnknownHCICommand for an unrecognized opcode, Command
// Complete with StatusInvalidHCICommandParameters for a parameter
// length mismatch, otherwise the handler's own status.
func (c *Controller) Dispatch(frame CommandFrame, mu lockable) []byte {
	spec, known := commandTable[frame.Opcode]
	if !known {
		return EncodeCommandStatus(StatusUnknownHCICommand, frame.Opcode)
	}

	if spec.paramLen >= 0 && len(frame.Params) != spec.paramLen {
		return EncodeCommandComplete(frame.Opcode, StatusInvalidHCICommandParameters, nil)
	}

	if mu != nil {
		mu.Lock()
	}
	status, returnParams := spec.handler(c, frame.Params)
	if mu != nil {
		mu.Unlock()
	}

	return EncodeCommandComplete(frame.Opcode, status, returnParams)
}

// lockable is the minimal surface Dispatch needs from *sync.Mutex;
// defined as an interface so tests can dispatch without a scheduler.
type lockable interface {
	Lock()
	Unlock()
}

func handleSetEventMask(c *Controller, params []byte) (byte, []byte) {
	mask := binary.LittleEndian.Uint64(params)
	c.hciEventMask = mask | forceEnabledEventMaskBits

	return StatusSuccess, nil
}

func handleReset(c *Controller, _ []byte) (byte, []byte) {
	c.Reset()

	return StatusSuccess, nil
}

func handleWriteLEHostSupported(_ *Controller, _ []byte) (byte, []byte) {
	return StatusSuccess, nil
}

func handleReadLocalVersionInformation(c *Controller, _ []byte) (byte, []byte) {
	out := make([]byte, 0, 8)
	out = append(out, hciLLVersion)
	out = appendUint16(out, uint16(c.hciRevision))
	out = append(out, hciLLVersion) // LMP version
	out = appendUint16(out, manufacturerID)
	out = appendUint16(out, c.llSubversion)

	return StatusSuccess, out
}

func handleReadLocalSupportedCommands(_ *Controller, _ []byte) (byte, []byte) {
	return StatusSuccess, make([]byte, 64)
}

func handleReadLocalSupportedFeatures(c *Controller, _ []byte) (byte, []byte) {
	return StatusSuccess, append([]byte(nil), c.LL.LMPFeatures[0][:]...)
}

func handleReadLocalExtendedFeatures(c *Controller, params []byte) (byte, []byte) {
	page := params[0]
	if int(page) >= len(c.LL.LMPFeatures) {
		return StatusInvalidHCICommandParameters, nil
	}

	out := make([]byte, 0, 10)
	out = append(out, page, byte(len(c.LL.LMPFeatures)-1))
	out = append(out, c.LL.LMPFeatures[page][:]...)

	return StatusSuccess, out
}

func handleReadBufferSize(_ *Controller, _ []byte) (byte, []byte) {
	out := make([]byte, 0, 7)
	out = appendUint16(out, leACLDataPacketLength)
	out = append(out, 0) // synchronous data packet length: unused
	out = appendUint16(out, uint16(leACLTotalNumPackets))
	out = appendUint16(out, 0) // total num synchronous packets: unused

	return StatusSuccess, out
}

func handleReadBDAddr(c *Controller, _ []byte) (byte, []byte) {
	addr := c.LL.BDAddr

	return StatusSuccess, addr[:]
}

func handleLESetEventMask(c *Controller, params []byte) (byte, []byte) {
	c.leEventMask = binary.LittleEndian.Uint64(params)

	return StatusSuccess, nil
}

func handleLEReadBufferSize(_ *Controller, _ []byte) (byte, []byte) {
	out := make([]byte, 0, 3)
	out = appendUint16(out, leACLDataPacketLength)
	out = append(out, leACLTotalNumPackets)

	return StatusSuccess, out
}

func handleLEReadLocalSupportedFeatures(c *Controller, _ []byte) (byte, []byte) {
	return StatusSuccess, append([]byte(nil), c.LL.LEFeatures[:]...)
}

func handleLESetAdvertisingParameters(c *Controller, params []byte) (byte, []byte) {
	p := AdvertisingParameters{
		IntervalMin:    binary.LittleEndian.Uint16(params[0:2]),
		IntervalMax:    binary.LittleEndian.Uint16(params[2:4]),
		AdvType:        params[4],
		OwnAddrType:    params[5],
		DirectAddrType: params[6],
		ChannelMap:     params[13],
		FilterPolicy:   params[14],
	}
	copy(p.DirectAddr[:], params[7:13])
	c.LL.SetAdvertisingParameters(p)

	return StatusSuccess, nil
}

func handleLEReadAdvertisingChannelTXPower(_ *Controller, _ []byte) (byte, []byte) {
	return StatusSuccess, []byte{0} // fixed 0 dBm; no path-loss model exists to make this meaningful
}

func handleLESetAdvertisingData(c *Controller, params []byte) (byte, []byte) {
	n, ok := lengthPrefixedPayload(params, MaxAdvDataLen)
	if !ok {
		return StatusInvalidHCICommandParameters, nil
	}

	c.LL.SetAdvertisingData(params[1 : 1+n])

	return StatusSuccess, nil
}

func handleLESetScanResponseData(c *Controller, params []byte) (byte, []byte) {
	n, ok := lengthPrefixedPayload(params, MaxScanRspDataLen)
	if !ok {
		return StatusInvalidHCICommandParameters, nil
	}

	c.LL.SetScanResponseData(params[1 : 1+n])

	return StatusSuccess, nil
}

// lengthPrefixedPayload validates a [len byte, data...] command
// parameter block and returns the (possibly truncated-for-validation)
// declared length. Data beyond max is still truncated/zero-padded by
// the Link Layer setter per spec.md 4.2 - this only rejects a frame
// that is too short to contain what it claims.
func lengthPrefixedPayload(params []byte, max int) (int, bool) {
	if len(params) < 1 {
		return 0, false
	}

	n := int(params[0])
	if n > max {
		n = max
	}

	if len(params) < 1+n {
		return 0, false
	}

	return n, true
}

func handleLESetAdvertiseEnable(c *Controller, params []byte) (byte, []byte) {
	if err := c.LL.SetAdvertisingEnable(params[0] != 0); err != nil {
		return StatusInvalidHCICommandParameters, nil
	}

	return StatusSuccess, nil
}

func handleLESetScanParameters(c *Controller, params []byte) (byte, []byte) {
	p := ScanParameters{
		ScanType:     params[0],
		Interval:     binary.LittleEndian.Uint16(params[1:3]),
		Window:       binary.LittleEndian.Uint16(params[3:5]),
		OwnAddrType:  params[5],
		FilterPolicy: params[6],
	}
	c.LL.SetScanParameters(p)

	return StatusSuccess, nil
}

func handleLESetScanEnable(c *Controller, params []byte) (byte, []byte) {
	c.LL.ScanParams.FilterDuplicates = params[1]

	if err := c.LL.SetScanEnable(params[0] != 0); err != nil {
		return StatusInvalidHCICommandParameters, nil
	}

	return StatusSuccess, nil
}

func handleLEReadWhiteListSize(_ *Controller, _ []byte) (byte, []byte) {
	return StatusSuccess, []byte{0}
}

func handleLEReadSupportedStates(c *Controller, _ []byte) (byte, []byte) {
	return StatusSuccess, append([]byte(nil), c.LL.SupportedStates[:]...)
}

func appendUint16(b []byte, v uint16) []byte {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)

	return append(b, buf[:]...)
}
