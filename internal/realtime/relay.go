package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// LocalDispatcher delivers an event to connections on this node.
// *Dispatcher satisfies this interface.
type LocalDispatcher interface {
	Dispatch(ctx context.Context, ev Event) int
}

// Relay fans an event out locally and, when a cluster bus is configured, to
// the other nodes. Only Broadcast publishes; messages received from the bus
// are dispatched locally and never published again.
type Relay struct {
	local  LocalDispatcher
	bus    ClusterBus // nil when clustering is disabled
	nodeID string

	mu          sync.Mutex
	unsubscribe func()
}

// NewRelay creates a Relay. bus may be nil for a single-node deployment.
func NewRelay(local LocalDispatcher, bus ClusterBus, nodeID string) *Relay {
	return &Relay{local: local, bus: bus, nodeID: nodeID}
}

// Clustered reports whether events are published to other nodes.
func (r *Relay) Clustered() bool { return r.bus != nil }

// Broadcast delivers an event that originated on this node.
func (r *Relay) Broadcast(ctx context.Context, ev Event) {
	r.local.Dispatch(ctx, ev)

	if r.bus == nil {
		return
	}

	data, err := json.Marshal(ClusterMessage{Origin: OriginLocal, Node: r.nodeID, Event: ev})
	if err != nil {
		log.Error().Err(err).Str("kind", string(ev.Kind)).Msg("realtime: encode cluster message")
		return
	}
	if err := r.bus.Publish(ctx, data); err != nil {
		// Local delivery already happened; other nodes miss this event.
		log.Error().Err(err).Str("kind", string(ev.Kind)).Msg("realtime: publish cluster message")
	}
}

// OnClusterMessage handles one raw message received from the cluster bus.
func (r *Relay) OnClusterMessage(ctx context.Context, raw []byte) {
	var msg ClusterMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Error().Err(err).Int("bytes", len(raw)).Msg("realtime: cannot decode cluster message")
		return
	}
	if msg.Node != "" && msg.Node == r.nodeID {
		return
	}

	log.Debug().
		Str("kind", string(msg.Event.Kind)).
		Str("origin", string(msg.Origin)).
		Str("from_node", msg.Node).
		Msg("realtime: cluster message received")

	r.local.Dispatch(ctx, msg.Event)
}

// Start subscribes to the cluster bus. It is a no-op without a bus.
func (r *Relay) Start(ctx context.Context) error {
	if r.bus == nil {
		return nil
	}

	unsubscribe, err := r.bus.Subscribe(ctx, func(payload []byte) {
		r.OnClusterMessage(ctx, payload)
	})
	if err != nil {
		return fmt.Errorf("realtime.Relay.Start: %w", err)
	}

	r.mu.Lock()
	r.unsubscribe = unsubscribe
	r.mu.Unlock()

	log.Info().Str("node_id", r.nodeID).Msg("realtime: cluster relay subscribed")
	return nil
}

// Stop closes the cluster subscription.
func (r *Relay) Stop() {
	r.mu.Lock()
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	r.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
