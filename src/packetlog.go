package b1ee

/*------------------------------------------------------------------
 *
 * Purpose: Optional CSV audit trail of every LE Advertising Report
 *          actually delivered to a scanning client, one file per day
 *          (SPEC_FULL.md 4.9).
 *
 * Grounded on the teacher's log.go daily-rotated writer (opens a new
 * dated file per day, one line per received frame), with the rotation
 * filename itself built from lestrrat-go/strftime's Format function,
 * the same one xmit.go/tq.go use for their own daily log names.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lestrrat-go/strftime"
)

// packetLogPattern names one file per UTC day.
const packetLogPattern = "advreports-%Y%m%d.csv"

var packetLogHeader = []string{"timestamp", "scanner_bd_addr", "advertiser_bd_addr", "channel", "rssi", "data_hex"}

// PacketLog appends one CSV row per delivered advertising report to a
// daily-rotated file under dir. A PacketLog with an empty dir is a
// no-op, so callers can construct one unconditionally from Config.
type PacketLog struct {
	dir     string
	mu      sync.Mutex
	openDay string
	f       *os.File
	w       *csv.Writer
	nowFunc func() time.Time
}

// NewPacketLog returns a PacketLog writing under dir, or a no-op
// logger if dir is empty.
func NewPacketLog(dir string) (*PacketLog, error) {
	if dir == "" {
		return &PacketLog{}, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("packetlog: create %s: %w", dir, err)
	}

	return &PacketLog{dir: dir, nowFunc: time.Now}, nil
}

// Record appends one advertising report delivered to scanner from
// advertiser on channel. It rotates to a new day's file as needed and
// is safe for concurrent use.
func (p *PacketLog) Record(scanner, advertiser [6]byte, channel int, rssi int8, data []byte) {
	if p == nil || p.dir == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if p.nowFunc != nil {
		now = p.nowFunc()
	}

	name, err := strftime.Format(packetLogPattern, now.UTC())
	if err != nil {
		return
	}

	if name != p.openDay {
		if err := p.rotate(name); err != nil {
			return
		}
	}

	row := []string{
		now.UTC().Format(time.RFC3339Nano),
		formatBDAddr(scanner),
		formatBDAddr(advertiser),
		fmt.Sprintf("%d", channel),
		fmt.Sprintf("%d", rssi),
		hex.EncodeToString(data),
	}

	if err := p.w.Write(row); err == nil {
		p.w.Flush()
	}
}

func (p *PacketLog) rotate(name string) error {
	if p.f != nil {
		p.w.Flush()
		p.f.Close()
	}

	f, err := os.OpenFile(filepath.Join(p.dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	writeHeader := false
	if info, statErr := f.Stat(); statErr == nil && info.Size() == 0 {
		writeHeader = true
	}

	p.f = f
	p.w = csv.NewWriter(f)
	p.openDay = name

	if writeHeader {
		p.w.Write(packetLogHeader)
		p.w.Flush()
	}

	return nil
}

// Close flushes and closes the current log file, if any.
func (p *PacketLog) Close() error {
	if p == nil || p.f == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.w.Flush()

	return p.f.Close()
}

func formatBDAddr(addr [6]byte) string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X",
		addr[5], addr[4], addr[3], addr[2], addr[1], addr[0])
}
