package realtime_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/realtime"
)

var errBadToken = errors.New("bad token")

// --- mock AuthValidator ---

type mockAuth struct {
	users map[string]string // token -> user id
}

func (m *mockAuth) ValidateToken(_ context.Context, token string) (string, error) {
	if u, ok := m.users[token]; ok {
		return u, nil
	}
	return "", errBadToken
}

// --- mock PermissionChecker ---

type permKey struct {
	userID  string
	scopeID string
}

type mockPerms struct {
	mu     sync.Mutex
	denied map[permKey]bool
	calls  int
}

func (m *mockPerms) HasPermission(_ context.Context, userID, scopeID string, _ domain.Permission) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return !m.denied[permKey{userID, scopeID}]
}

func (m *mockPerms) deny(userID, scopeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.denied == nil {
		m.denied = make(map[permKey]bool)
	}
	m.denied[permKey{userID, scopeID}] = true
}

func (m *mockPerms) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// --- mock Store ---

type mockStore struct {
	blocks     map[string]*domain.Block
	members    map[string][]*domain.BoardMember
	membersErr error
}

func (m *mockStore) GetBlock(_ context.Context, id string) (*domain.Block, error) {
	if b, ok := m.blocks[id]; ok {
		return b, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) GetMembersForBoard(_ context.Context, boardID string) ([]*domain.BoardMember, error) {
	if m.membersErr != nil {
		return nil, m.membersErr
	}
	return m.members[boardID], nil
}

// --- mock ReadTokenValidator ---

type mockReadTokens struct {
	tokens map[string]string // board id -> token
}

func (m *mockReadTokens) ValidateReadToken(_ context.Context, boardID, readToken string) (bool, error) {
	return m.tokens[boardID] == readToken, nil
}

// --- fake clock ---

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- helpers ---

type fixture struct {
	hub   *realtime.Hub
	auth  *mockAuth
	perms *mockPerms
	store *mockStore
	clock *fakeClock
}

func newFixture(t *testing.T, opts realtime.Options) *fixture {
	t.Helper()

	f := &fixture{
		auth: &mockAuth{users: map[string]string{
			"token-a": "userA",
			"token-b": "userB",
			"token-1": "u1",
		}},
		perms: &mockPerms{},
		store: &mockStore{
			blocks:  map[string]*domain.Block{},
			members: map[string][]*domain.BoardMember{},
		},
		clock: newFakeClock(),
	}
	if opts.Clock == nil {
		opts.Clock = f.clock.Now
	}
	f.hub = realtime.NewHub(f.auth, f.perms, f.store, opts)
	t.Cleanup(f.hub.Shutdown)
	return f
}

// authed connects and authenticates with the given token.
func (f *fixture) authed(t *testing.T, token string) *realtime.Connection {
	t.Helper()
	c := f.hub.Connect()
	_, err := f.hub.Registry().Authenticate(context.Background(), c.ID(), token)
	require.NoError(t, err)
	return c
}

func (f *fixture) command(t *testing.T, c *realtime.Connection, raw string) error {
	t.Helper()
	return f.hub.HandleMessage(context.Background(), c.ID(), []byte(raw))
}

func receive(t *testing.T, c *realtime.Connection) string {
	t.Helper()
	select {
	case msg := <-c.Outbound():
		return string(msg)
	case <-time.After(time.Second):
		t.Fatalf("connection %s received nothing", c.ID())
		return ""
	}
}

func assertNothing(t *testing.T, c *realtime.Connection) {
	t.Helper()
	select {
	case msg := <-c.Outbound():
		t.Fatalf("connection %s unexpectedly received %s", c.ID(), msg)
	default:
	}
}

func boardEvent(teamID, boardID string, ensure ...string) realtime.Event {
	return realtime.Event{
		Kind:        realtime.EventBoardChanged,
		TeamID:      teamID,
		BoardID:     boardID,
		Payload:     []byte(`{"action":"UPDATE_BOARD","team_id":"` + teamID + `","board":{"id":"` + boardID + `"}}`),
		EnsureUsers: ensure,
	}
}
