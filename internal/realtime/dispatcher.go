package realtime

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Dispatcher delivers events to the local connections that are subscribed
// and still authorized at the time of delivery.
type Dispatcher struct {
	registry *Registry
	perms    PermissionChecker
}

// NewDispatcher creates a Dispatcher over the registry.
func NewDispatcher(registry *Registry, perms PermissionChecker) *Dispatcher {
	return &Dispatcher{registry: registry, perms: perms}
}

// Dispatch enqueues the event payload on every authorized recipient and
// returns how many connections it was enqueued on. Each connection receives
// the event at most once. Connections whose queue is full or closed are
// disconnected asynchronously.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) int {
	if err := ev.Validate(); err != nil {
		log.Warn().Err(err).Msg("realtime: dropping event")
		return 0
	}

	delivered := 0
	for _, rcpt := range d.registry.recipients(ev) {
		if !d.authorized(ctx, ev, rcpt) {
			continue
		}
		if !rcpt.conn.enqueue(ev.Payload) {
			d.evict(rcpt.conn)
			continue
		}
		delivered++
	}

	log.Debug().
		Str("kind", string(ev.Kind)).
		Str("team_id", ev.TeamID).
		Str("board_id", ev.BoardID).
		Int("delivered", delivered).
		Msg("realtime: event dispatched")

	return delivered
}

func (d *Dispatcher) authorized(ctx context.Context, ev Event, rcpt recipient) bool {
	if !rcpt.authenticated {
		return ev.Kind.audience() == audienceBoard && rcpt.canRead
	}
	// Users named by the mutation are targeted on purpose, e.g. a member who
	// was just removed from the board.
	if rcpt.ensured {
		return true
	}
	perm, scopeID, ok := ev.permission()
	if !ok {
		return true
	}
	return d.perms.HasPermission(ctx, rcpt.userID, scopeID, perm)
}

func (d *Dispatcher) evict(c *Connection) {
	log.Warn().Str("conn_id", c.ID()).Msg("realtime: outbound queue unavailable, disconnecting")
	go d.registry.Disconnect(c.ID())
}
