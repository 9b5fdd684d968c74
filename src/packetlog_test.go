package b1ee

import (
	"encoding/csv"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_PacketLog_noopWithEmptyDir(t *testing.T) {
	pl, err := NewPacketLog("")
	require.NoError(t, err)

	pl.Record([6]byte{9, 9, 9, 9, 9, 9}, [6]byte{1, 2, 3, 4, 5, 6}, 37, -50, []byte{0xAA})
	require.NoError(t, pl.Close())
}

func Test_PacketLog_writesCSVRow(t *testing.T) {
	dir := t.TempDir()

	pl, err := NewPacketLog(dir)
	require.NoError(t, err)

	fixed := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	pl.nowFunc = func() time.Time { return fixed }

	scanner := [6]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}
	advertiser := [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	pl.Record(scanner, advertiser, 37, -60, []byte{0x02, 0x01, 0x06})
	require.NoError(t, pl.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "advreports-20260729.csv", entries[0].Name())

	f, err := os.Open(dir + "/" + entries[0].Name())
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2) // header + one record

	assert.Equal(t, packetLogHeader, rows[0])
	assert.Equal(t, "66:55:44:33:22:11", rows[1][1])
	assert.Equal(t, "FF:EE:DD:CC:BB:AA", rows[1][2])
	assert.Equal(t, "37", rows[1][3])
	assert.Equal(t, "-60", rows[1][4])
	assert.Equal(t, "020106", rows[1][5])
}
