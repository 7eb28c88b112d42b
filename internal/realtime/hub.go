// Package realtime implements the collaboration broadcast hub: it tracks
// live client connections and their subscriptions and fans out change
// events to the connections that are interested in and allowed to see
// them, on this node and, through a cluster bus, on every other node.
package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Options configures a Hub. Zero values select the defaults.
type Options struct {
	QueueSize      int
	SweepInterval  time.Duration
	StaleThreshold time.Duration

	// Bus enables clustering when non-nil.
	Bus    ClusterBus
	NodeID string

	ReadTokens ReadTokenValidator
	Clock      func() time.Time
}

// Hub wires the registry, dispatcher, relay and sweeper together and is the
// entry point for both the transport adapter and the CRUD layer.
type Hub struct {
	registry   *Registry
	dispatcher *Dispatcher
	relay      *Relay
	sweeper    *Sweeper
	store      Store
	nodeID     string
}

// NewHub creates a Hub. Call Start before serving connections.
func NewHub(auth AuthValidator, perms PermissionChecker, store Store, opts Options) *Hub {
	regOpts := []RegistryOption{WithQueueSize(opts.QueueSize)}
	if opts.Clock != nil {
		regOpts = append(regOpts, WithClock(opts.Clock))
	}
	if opts.ReadTokens != nil {
		regOpts = append(regOpts, WithReadTokens(opts.ReadTokens))
	}

	nodeID := opts.NodeID
	if nodeID == "" {
		nodeID = uuid.NewString()
	}

	registry := NewRegistry(auth, store, regOpts...)
	dispatcher := NewDispatcher(registry, perms)

	return &Hub{
		registry:   registry,
		dispatcher: dispatcher,
		relay:      NewRelay(dispatcher, opts.Bus, nodeID),
		sweeper:    NewSweeper(registry, opts.SweepInterval, opts.StaleThreshold),
		store:      store,
		nodeID:     nodeID,
	}
}

// Registry exposes the connection registry.
func (h *Hub) Registry() *Registry { return h.registry }

// Sweeper exposes the liveness sweeper.
func (h *Hub) Sweeper() *Sweeper { return h.sweeper }

// Start subscribes to the cluster bus and starts the sweeper.
func (h *Hub) Start(ctx context.Context) error {
	if err := h.relay.Start(ctx); err != nil {
		return fmt.Errorf("realtime.Hub.Start: %w", err)
	}
	h.sweeper.Start(ctx)
	log.Info().
		Str("node_id", h.nodeID).
		Bool("clustered", h.relay.Clustered()).
		Msg("realtime: hub started")
	return nil
}

// Shutdown stops the sweeper, disconnects every connection and finally
// closes the cluster subscription.
func (h *Hub) Shutdown() {
	h.sweeper.Stop()

	ids := h.registry.IDs()
	for _, id := range ids {
		h.registry.Disconnect(id)
	}

	h.relay.Stop()
	log.Info().Int("connections", len(ids)).Msg("realtime: hub stopped")
}

// Connect registers a new transport connection.
func (h *Hub) Connect() *Connection {
	return h.registry.Connect()
}

// Disconnect tears down a connection. Safe to call more than once.
func (h *Hub) Disconnect(id string) {
	h.registry.Disconnect(id)
}

// Touch records transport-level activity, such as ping and pong frames, that
// never reaches HandleMessage.
func (h *Hub) Touch(id string) {
	h.registry.Touch(id)
}

// Broadcast validates an event and delivers it locally and to the cluster.
func (h *Hub) Broadcast(ctx context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("realtime.Hub.Broadcast: %w", err)
	}
	h.relay.Broadcast(ctx, ev)
	return nil
}

// SweepStale runs one liveness sweep immediately and returns how many
// connections were evicted.
func (h *Hub) SweepStale() int {
	return h.sweeper.Sweep(h.registry.now())
}

// HubStats extends registry counters with cluster information.
type HubStats struct {
	Stats
	NodeID    string `json:"node_id"`
	Clustered bool   `json:"clustered"`
}

// Stats returns current hub counters.
func (h *Hub) Stats() HubStats {
	return HubStats{
		Stats:     h.registry.Stats(),
		NodeID:    h.nodeID,
		Clustered: h.relay.Clustered(),
	}
}
