package b1ee

/*------------------------------------------------------------------
 *
 * Purpose: Accept HCI TCP clients, wire each to a Controller and the
 *          shared Scheduler, and drive its read loop until it
 *          disconnects (spec.md 3, 5, 6).
 *
 * Grounded on the teacher's server.go connect_listen_thread (Listen,
 * SO_REUSEADDR via a raw sockopt call, then one goroutine per
 * accepted client reading frames in a loop) and cmd_listen_thread
 * (read, decode, dispatch, write reply). Generalized from a fixed
 * MAX_NET_CLIENTS array of client slots to one goroutine per
 * connection, since nothing here needs a stable small client index.
 *
 *------------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Server accepts HCI TCP clients and registers each with a Scheduler.
type Server struct {
	listenAddr string
	scheduler  *Scheduler
	logger     Logger
	packetLog  *PacketLog
	hciRevision byte
	llSubversion uint16

	mu        sync.Mutex
	listener  net.Listener
	conns     map[*Controller]struct{}
}

// NewServer returns a Server that will listen on listenAddr once Run
// is called. hciRevision/llSubversion are reported verbatim in Read
// Local Version Information (spec.md 6).
func NewServer(listenAddr string, scheduler *Scheduler, logger Logger, packetLog *PacketLog, hciRevision byte, llSubversion uint16) *Server {
	return &Server{
		listenAddr:   listenAddr,
		scheduler:    scheduler,
		logger:       logger,
		packetLog:    packetLog,
		hciRevision:  hciRevision,
		llSubversion: llSubversion,
		conns:        make(map[*Controller]struct{}),
	}
}

// Run listens on s.listenAddr and accepts clients until ctx is
// cancelled or Listen fails.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.listenAddr, err)
	}

	setReuseAddr(listener, s.logger)

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	if s.logger != nil {
		s.logger.Infof("listening for HCI clients on %s", s.listenAddr)
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("server: accept: %w", err)
			}
		}

		go s.handleConn(ctx, conn)
	}
}

// setReuseAddr sets SO_REUSEADDR on the listening socket so a quick
// restart doesn't fail to bind while the previous socket lingers in
// TIME_WAIT, matching the teacher's server_connect_listen_thread.
func setReuseAddr(listener net.Listener, logger Logger) {
	tcpListener, ok := listener.(*net.TCPListener)
	if !ok {
		return
	}

	file, err := tcpListener.File()
	if err != nil {
		return
	}
	defer file.Close()

	if err := unix.SetsockoptInt(int(file.Fd()), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil && logger != nil {
		logger.Warnf("SO_REUSEADDR failed: %v", err)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr()

	ctrl := NewController(conn, s.hciRevision, s.llSubversion, s.logger)
	ctrl.onReport = func(c *Controller, advAddr [6]byte, data []byte, channel int) {
		const rssi int8 = -60
		if s.packetLog != nil {
			s.packetLog.Record(c.BDAddr(), advAddr, channel, rssi, data)
		}
	}

	s.mu.Lock()
	s.conns[ctrl] = struct{}{}
	s.mu.Unlock()

	s.scheduler.Register(ctrl)

	if s.logger != nil {
		s.logger.Infof("client connected: %s (BD_ADDR %s)", remote, formatBDAddr(ctrl.BDAddr()))
	}

	s.readLoop(ctx, conn, ctrl)

	// Two-phase teardown (spec.md 3/5): stop offering packets, wait for
	// the scheduler to observe that and mark us delete-ready, then
	// unregister. The scheduler reaps delete-pending radios once per
	// step, so this is a short, bounded wait in practice.
	ctrl.RequestDelete()
	waitForDeleteReady(ctx, ctrl)
	s.scheduler.Unregister(ctrl)

	s.mu.Lock()
	delete(s.conns, ctrl)
	s.mu.Unlock()

	conn.Close()

	if s.logger != nil {
		s.logger.Infof("client disconnected: %s", remote)
	}
}

func (s *Server) readLoop(ctx context.Context, conn net.Conn, ctrl *Controller) {
	framer := &Framer{}
	buf := make([]byte, 4096)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := conn.Read(buf)
		if err != nil {
			return
		}

		framer.Feed(buf[:n])

		for {
			frame, ok, malformed := framer.Next()
			if malformed {
				if s.logger != nil {
					s.logger.Warnf("malformed frame from %s, dropping connection", conn.RemoteAddr())
				}

				return
			}

			if !ok {
				break
			}

			reply := ctrl.Dispatch(frame, s.scheduler.Mutex())
			ctrl.SendEvent(reply)
		}
	}
}

// waitForDeleteReady blocks until the scheduler marks ctrl
// delete-ready, polling at a scheduler-step-sized interval so it never
// spins.
func waitForDeleteReady(ctx context.Context, ctrl *Controller) {
	ticker := time.NewTicker(time.Microsecond * 50)
	defer ticker.Stop()

	for !ctrl.IsDeleteReady() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Addr returns the server's actual listening address, or nil before
// Run has bound a listener. Mainly useful for tests that listen on
// ":0" and need the OS-assigned port.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// ConnCount reports the number of currently connected clients, mainly
// for diagnostics.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.conns)
}
