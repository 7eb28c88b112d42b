package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/domain"
)

// Sentinel errors returned by Registry operations.
var (
	ErrUnknownConnection = errors.New("realtime: unknown connection")
	ErrAuthFailed        = errors.New("realtime: authentication failed")
	ErrNotAuthenticated  = errors.New("realtime: connection not authenticated")
	ErrInvalidReadToken  = errors.New("realtime: invalid read token")
)

const defaultQueueSize = 64

// RegistryOption configures optional Registry parameters.
type RegistryOption func(*Registry)

// WithQueueSize sets the capacity of each connection's outbound queue.
func WithQueueSize(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.queueSize = n
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// WithReadTokens enables anonymous block subscriptions backed by board
// share tokens.
func WithReadTokens(v ReadTokenValidator) RegistryOption {
	return func(r *Registry) {
		r.readTokens = v
	}
}

// Registry owns every live Connection and the subscription index. A single
// RWMutex guards both as one unit.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
	index *subscriptionIndex

	auth       AuthValidator
	store      Store
	readTokens ReadTokenValidator
	queueSize  int
	now        func() time.Time
}

// NewRegistry creates an empty Registry.
func NewRegistry(auth AuthValidator, store Store, opts ...RegistryOption) *Registry {
	r := &Registry{
		conns:     make(map[string]*Connection),
		index:     newSubscriptionIndex(),
		auth:      auth,
		store:     store,
		queueSize: defaultQueueSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect allocates a new unauthenticated connection with no subscriptions.
func (r *Registry) Connect() *Connection {
	c := newConnection(uuid.NewString(), r.queueSize, r.now())

	r.mu.Lock()
	r.conns[c.id] = c
	r.mu.Unlock()

	log.Debug().Str("conn_id", c.id).Msg("realtime: connection opened")
	return c
}

// Get returns the live connection with the given id.
func (r *Registry) Get(id string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// UserID returns the user bound to the connection, if it has authenticated.
func (r *Registry) UserID(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	if !ok || !c.authenticated {
		return "", false
	}
	return c.userID, true
}

// Authenticate validates token and binds the resulting user to the
// connection. On failure the connection keeps its previous state.
func (r *Registry) Authenticate(ctx context.Context, id, token string) (string, error) {
	if _, ok := r.Get(id); !ok {
		return "", fmt.Errorf("realtime.Registry.Authenticate: %w", ErrUnknownConnection)
	}

	userID, err := r.auth.ValidateToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("realtime.Registry.Authenticate: %w: %w", ErrAuthFailed, err)
	}
	if userID == "" {
		return "", fmt.Errorf("realtime.Registry.Authenticate: %w: empty user id", ErrAuthFailed)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// The connection may have been closed while the token was validated.
	c, ok := r.conns[id]
	if !ok {
		return "", fmt.Errorf("realtime.Registry.Authenticate: %w", ErrUnknownConnection)
	}

	if c.authenticated && c.userID != userID {
		r.index.removeUser(c.userID, c)
	}
	c.userID = userID
	c.authenticated = true
	r.index.addUser(userID, c)

	return userID, nil
}

// lookupAuthenticated must be called with r.mu held.
func (r *Registry) lookupAuthenticated(id string) (*Connection, error) {
	c, ok := r.conns[id]
	if !ok {
		return nil, ErrUnknownConnection
	}
	if !c.authenticated {
		return nil, ErrNotAuthenticated
	}
	return c, nil
}

// SubscribeTeam registers interest in every event of a team. It is a no-op
// when already subscribed.
func (r *Registry) SubscribeTeam(id, teamID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.lookupAuthenticated(id)
	if err != nil {
		return fmt.Errorf("realtime.Registry.SubscribeTeam: %w", err)
	}
	if _, ok := c.teams[teamID]; ok {
		return nil
	}
	r.index.addTeam(teamID, c)
	return nil
}

// UnsubscribeTeam is the inverse of SubscribeTeam and equally idempotent.
func (r *Registry) UnsubscribeTeam(id, teamID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.lookupAuthenticated(id)
	if err != nil {
		return fmt.Errorf("realtime.Registry.UnsubscribeTeam: %w", err)
	}
	if _, ok := c.teams[teamID]; !ok {
		return nil
	}
	r.index.removeTeam(teamID, c)
	return nil
}

// SubscribeBlocks registers interest in each of the given blocks or boards.
func (r *Registry) SubscribeBlocks(id string, blockIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.lookupAuthenticated(id)
	if err != nil {
		return fmt.Errorf("realtime.Registry.SubscribeBlocks: %w", err)
	}
	for _, blockID := range blockIDs {
		if _, ok := c.blocks[blockID]; ok {
			continue
		}
		r.index.addBlock(blockID, c)
	}
	return nil
}

// SubscribeBlocksWithReadToken lets a connection without a session follow
// blocks of a shared board. Each block is resolved to its board and the
// token is checked against that board; blocks that fail are skipped.
func (r *Registry) SubscribeBlocksWithReadToken(ctx context.Context, id, readToken string, blockIDs []string) error {
	if r.readTokens == nil || r.store == nil || readToken == "" {
		return fmt.Errorf("realtime.Registry.SubscribeBlocksWithReadToken: %w", ErrInvalidReadToken)
	}
	if _, ok := r.Get(id); !ok {
		return fmt.Errorf("realtime.Registry.SubscribeBlocksWithReadToken: %w", ErrUnknownConnection)
	}

	granted := make(map[string]string, len(blockIDs)) // block id -> board id
	for _, blockID := range blockIDs {
		boardID, err := r.boardForBlock(ctx, blockID)
		if err != nil {
			log.Debug().Err(err).Str("block_id", blockID).Msg("realtime: cannot resolve block for read token")
			continue
		}
		valid, err := r.readTokens.ValidateReadToken(ctx, boardID, readToken)
		if err != nil || !valid {
			log.Debug().Err(err).Str("board_id", boardID).Msg("realtime: read token rejected")
			continue
		}
		granted[blockID] = boardID
	}
	if len(granted) == 0 {
		return fmt.Errorf("realtime.Registry.SubscribeBlocksWithReadToken: %w", ErrInvalidReadToken)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return fmt.Errorf("realtime.Registry.SubscribeBlocksWithReadToken: %w", ErrUnknownConnection)
	}
	for blockID, boardID := range granted {
		c.readBoards[boardID] = struct{}{}
		if _, ok := c.blocks[blockID]; !ok {
			r.index.addBlock(blockID, c)
		}
	}
	return nil
}

// boardForBlock resolves a block id to its board. Clients follow a whole
// shared board by passing the board id itself, which is not a block.
func (r *Registry) boardForBlock(ctx context.Context, blockID string) (string, error) {
	block, err := r.store.GetBlock(ctx, blockID)
	if errors.Is(err, domain.ErrNotFound) {
		return blockID, nil
	}
	if err != nil {
		return "", err
	}
	if block.BoardID == "" {
		return block.ID, nil
	}
	return block.BoardID, nil
}

// UnsubscribeBlocks removes block subscriptions. Anonymous connections that
// subscribed through a read token may unsubscribe as well.
func (r *Registry) UnsubscribeBlocks(id string, blockIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return fmt.Errorf("realtime.Registry.UnsubscribeBlocks: %w", ErrUnknownConnection)
	}
	if !c.authenticated && len(c.readBoards) == 0 {
		return fmt.Errorf("realtime.Registry.UnsubscribeBlocks: %w", ErrNotAuthenticated)
	}
	for _, blockID := range blockIDs {
		if _, ok := c.blocks[blockID]; !ok {
			continue
		}
		r.index.removeBlock(blockID, c)
	}
	return nil
}

// Disconnect removes the connection from every index and the master set,
// then releases its outbound queue. It reports whether the connection was
// still registered; calling it again is a no-op.
func (r *Registry) Disconnect(id string) bool {
	r.mu.Lock()
	c, ok := r.conns[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	for teamID := range c.teams {
		r.index.removeTeam(teamID, c)
	}
	for blockID := range c.blocks {
		r.index.removeBlock(blockID, c)
	}
	if c.authenticated {
		r.index.removeUser(c.userID, c)
	}
	delete(r.conns, id)
	r.mu.Unlock()

	c.release()
	log.Debug().Str("conn_id", id).Msg("realtime: connection closed")
	return true
}

// Touch records inbound activity on the connection.
func (r *Registry) Touch(id string) {
	if c, ok := r.Get(id); ok {
		c.touch(r.now())
	}
}

// Stale returns the ids of connections idle since before cutoff.
func (r *Registry) Stale(cutoff time.Time) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, c := range r.conns {
		if c.LastActive().Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

// IDs returns the ids of all live connections.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}

// Stats is a point-in-time summary of the registry.
type Stats struct {
	Connections   int `json:"connections"`
	Authenticated int `json:"authenticated"`
	Users         int `json:"users"`
	Teams         int `json:"teams"`
	Blocks        int `json:"blocks"`
}

// Stats returns current registry counters.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{
		Connections: len(r.conns),
		Users:       len(r.index.byUser),
		Teams:       len(r.index.byTeam),
		Blocks:      len(r.index.byBlock),
	}
	for _, c := range r.conns {
		if c.authenticated {
			s.Authenticated++
		}
	}
	return s
}

// recipient is a candidate connection together with the state needed to
// authorize it, copied while the read lock is held.
type recipient struct {
	conn          *Connection
	userID        string
	authenticated bool
	canRead       bool
	ensured       bool
}

// recipients resolves the deduplicated candidate set for an event.
func (r *Registry) recipients(ev Event) []recipient {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		out  []recipient
		seen = make(map[*Connection]int)
	)
	add := func(conns []*Connection, ensured bool) {
		for _, c := range conns {
			if i, ok := seen[c]; ok {
				out[i].ensured = out[i].ensured || ensured
				continue
			}
			_, canRead := c.readBoards[ev.BoardID]
			seen[c] = len(out)
			out = append(out, recipient{
				conn:          c,
				userID:        c.userID,
				authenticated: c.authenticated,
				canRead:       canRead && ev.BoardID != "",
				ensured:       ensured,
			})
		}
	}

	switch ev.Kind.audience() {
	case audienceBoard:
		if ev.TeamID != "" {
			add(r.index.connectionsForTeam(ev.TeamID), false)
		}
		if ev.BlockID != "" {
			add(r.index.connectionsForBlock(ev.BlockID), false)
		}
		add(r.index.connectionsForBlock(ev.BoardID), false)
	case audienceTeam:
		add(r.index.connectionsForTeam(ev.TeamID), false)
	case audienceUser:
		var mine []*Connection
		for _, c := range r.index.connectionsForTeam(ev.TeamID) {
			if c.authenticated && c.userID == ev.UserID {
				mine = append(mine, c)
			}
		}
		add(mine, false)
	case audienceAll:
		add(r.index.allUsers(), false)
	case audienceUnknown:
	}

	for _, userID := range ev.EnsureUsers {
		add(r.index.connectionsForUser(userID), true)
	}

	return out
}
