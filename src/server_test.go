package b1ee

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitForAddr polls until srv has bound a listener and returns its
// address.
func waitForAddr(t *testing.T, srv *Server) net.Addr {
	t.Helper()

	for i := 0; i < 200; i++ {
		if addr := srv.Addr(); addr != nil {
			return addr
		}

		time.Sleep(5 * time.Millisecond)
	}

	t.Fatal("server never bound a listener")

	return nil
}

func Test_Server_resetRoundTrip(t *testing.T) {
	scheduler := NewScheduler()
	scheduler.SetIdleSleep(100)

	srv := NewServer("127.0.0.1:0", scheduler, nil, nil, 0x01, 0x1234)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go scheduler.Run(ctx)
	go srv.Run(ctx)

	addr := waitForAddr(t, srv)

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte{0x01, 0x03, 0x0C, 0x00})
	require.NoError(t, err)

	buf := make([]byte, 16)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	require.NoError(t, err)

	assert.Equal(t, []byte{0x04, 0x0E, 0x04, 0x01, 0x03, 0x0C, 0x00}, buf[:n])
}

func Test_Server_malformedFrameClosesConnection(t *testing.T) {
	scheduler := NewScheduler()
	srv := NewServer("127.0.0.1:0", scheduler, nil, nil, 0x01, 0x1234)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go scheduler.Run(ctx)
	go srv.Run(ctx)

	addr := waitForAddr(t, srv)

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte{0xFF})
	require.NoError(t, err)

	buf := make([]byte, 16)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = conn.Read(buf)
	assert.Error(t, err) // server closed the connection
}

func Test_Server_connCountTracksLifecycle(t *testing.T) {
	scheduler := NewScheduler()
	scheduler.SetIdleSleep(100)

	srv := NewServer("127.0.0.1:0", scheduler, nil, nil, 0x01, 0x1234)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go scheduler.Run(ctx)
	go srv.Run(ctx)

	addr := waitForAddr(t, srv)

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return srv.ConnCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool { return srv.ConnCount() == 0 }, time.Second, 5*time.Millisecond)
}
