package b1ee

/*------------------------------------------------------------------
 *
 * Purpose: Bind one connected client to one Link Layer + HCI pair:
 *          derive its BD_ADDR, route inbound bytes through the
 *          command dispatcher, and route generated events back out
 *          (spec.md 2's "Controller facade", 3's lifecycle).
 *
 * Grounded on the teacher's server.go per-client state
 * (client_sock[MAX_NET_CLIENTS] plus the two enable_send_*_to_client
 * flag arrays), generalized from a fixed-size client array to one
 * Controller per accepted connection.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/binary"
	"net"
	"sync"
	"sync/atomic"
)

// ACL buffer sizing constants a Controller reports (spec.md 3, 6).
const (
	leACLDataPacketLength uint16 = 27
	leACLTotalNumPackets  byte   = 4
)

const manufacturerID uint16 = 0xFFFF

// hciLLVersion is both the HCI version and the LL (LMP) version, fixed
// at 0x06 (Bluetooth 4.0) per spec.md 6.
const hciLLVersion byte = 0x06

// Controller is one connected client's facade: its derived BD_ADDR,
// its HCI/LE event masks, and the Link Layer the scheduler drives.
// It implements RadioSource for the scheduler and owns the
// connection's write path for the I/O side.
type Controller struct {
	LL *LinkLayer

	hciEventMask uint64
	leEventMask  uint64

	conn   net.Conn
	writeMu sync.Mutex

	deletePending atomic.Bool
	deleteReady   atomic.Bool

	logger Logger

	// hciRevision/llSubversion are derived once at process start from
	// the process start time, per spec.md 6, so they're stable within a run
	// but differ across runs.
	hciRevision byte
	llSubversion uint16

	onReport func(c *Controller, bdAddr [6]byte, data []byte, channel int)
}

// NewController derives a BD_ADDR from conn's remote address (spec.md
// 6) and returns a freshly-Reset Controller bound to it.
func NewController(conn net.Conn, hciRevision byte, llSubversion uint16, logger Logger) *Controller {
	c := &Controller{
		conn:         conn,
		logger:       logger,
		hciRevision:  hciRevision,
		llSubversion: llSubversion,
	}
	c.LL = NewLinkLayer(deriveBDAddr(conn))
	c.LL.Report = func(bdAddr [6]byte, data []byte, channel int) {
		c.sendAdvertisingReport(bdAddr, data)

		if c.onReport != nil {
			c.onReport(c, bdAddr, data, channel)
		}
	}
	c.Reset()

	return c
}

// deriveBDAddr implements spec.md 6: ((peer_addr << 16) | peer_port)
// as a 48-bit integer, for an IPv4 TCP peer.
func deriveBDAddr(conn net.Conn) [6]byte {
	var bdAddr [6]byte

	addr, ok := conn.RemoteAddr().(*net.TCPAddr)
	if !ok || addr.IP.To4() == nil {
		return bdAddr
	}

	ip4 := addr.IP.To4()
	value := (uint64(binary.BigEndian.Uint32(ip4)) << 16) | uint64(uint16(addr.Port))

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], value)
	copy(bdAddr[:], buf[:6])

	return bdAddr
}

// Reset restores HCI masks and the Link Layer to their spec.md 6
// defaults.
func (c *Controller) Reset() {
	c.hciEventMask = defaultHCIEventMask | forceEnabledEventMaskBits
	c.leEventMask = defaultLEEventMask
	c.LL.Reset()
}

const (
	defaultHCIEventMask uint64 = 0x00001FFFFFFFFFFF
	defaultLEEventMask  uint64 = 0x000000000000001F
)

// BDAddr returns the controller's derived device address.
func (c *Controller) BDAddr() [6]byte { return c.LL.BDAddr }

// SendEvent writes event bytes to the client iff its event code is
// allowed by the current HCI event mask (spec.md 4.1). LE Meta Events
// are additionally gated by the LE event mask's sub-event bit, per
// the same masking rule applied one level down.
func (c *Controller) SendEvent(eventBytes []byte) {
	if len(eventBytes) < 2 {
		return
	}

	eventCode := eventBytes[1]
	if !eventMaskAllows(c.hciEventMask, eventCode) {
		return
	}

	if eventCode == EventLEMetaEvent && len(eventBytes) >= 4 {
		subevent := eventBytes[3]
		if !eventMaskAllows(c.leEventMask, subevent) {
			return
		}
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.conn.Write(eventBytes); err != nil && c.logger != nil {
		c.logger.Debugf("write to %s failed: %v", c.conn.RemoteAddr(), err)
	}
}

// sendAdvertisingReport is the Link Layer's host-facing hook for
// spec.md 4.5's LE Advertising Report.
func (c *Controller) sendAdvertisingReport(bdAddr [6]byte, data []byte) {
	const rssi int8 = -60
	c.SendEvent(EncodeLEAdvertisingReport(bdAddr, data, rssi))
}

// --- RadioSource, for the scheduler ---

func (c *Controller) GetNextPacket(after int64) (*PhysicalPacket, bool) {
	if c.deletePending.Load() {
		return nil, false
	}

	return c.LL.GetNextPacket(after)
}

func (c *Controller) EndOfPacket(pkt *PhysicalPacket, rxData []byte) {
	c.LL.EndOfPacket(pkt, rxData)
}

func (c *Controller) IsDeletePending() bool { return c.deletePending.Load() }

func (c *Controller) SetDeleteReady() { c.deleteReady.Store(true) }

func (c *Controller) IsDeleteReady() bool { return c.deleteReady.Load() }

// RequestDelete marks the connection for the scheduler's two-phase
// teardown (spec.md 3/5): it stops offering packets immediately, and
// the I/O side waits for IsDeleteReady before reclaiming it.
func (c *Controller) RequestDelete() {
	c.deletePending.Store(true)
}
