package b1ee

/*------------------------------------------------------------------
 *
 * Purpose: Advertise the HCI TCP port over DNS-SD/mDNS so a client on
 *          the same network segment can discover the simulated
 *          controller without a hardcoded address (SPEC_FULL.md
 *          4.10).
 *
 * Grounded on the teacher's dns_sd.go (built a Service, added it to
 * a Responder, ran the Responder until its context is cancelled),
 * which the teacher only reaches via a cgo bridge from its DNSSD
 * config option. Reimplemented as a plain Go call from this core's
 * own Config.AnnounceService flag instead of through cgo.
 *
 *------------------------------------------------------------------*/

import (
	"context"
	"fmt"

	"github.com/brutella/dnssd"
)

// ServiceType is the DNS-SD service type this core announces itself
// under.
const ServiceType = "_b1ee-hci._tcp"

// Announcer runs a DNS-SD responder for the lifetime of a context.
type Announcer struct {
	responder dnssd.Responder
	name      string
	port      int
	logger    Logger
}

// NewAnnouncer registers a service named name for port under
// ServiceType. The returned Announcer does nothing until Run is
// called.
func NewAnnouncer(name string, port int, logger Logger) (*Announcer, error) {
	cfg := dnssd.Config{ //nolint:exhaustruct
		Name: name,
		Type: ServiceType,
		Port: port,
	}

	svc, err := dnssd.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("announce: build service: %w", err)
	}

	responder, err := dnssd.NewResponder()
	if err != nil {
		return nil, fmt.Errorf("announce: new responder: %w", err)
	}

	if _, err := responder.Add(svc); err != nil {
		return nil, fmt.Errorf("announce: add service: %w", err)
	}

	return &Announcer{responder: responder, name: name, port: port, logger: logger}, nil
}

// Run blocks, serving mDNS responses, until ctx is cancelled.
func (a *Announcer) Run(ctx context.Context) error {
	if a.logger != nil {
		a.logger.Infof("announcing %s on port %d as %q", ServiceType, a.port, a.name)
	}

	return a.responder.Respond(ctx)
}
