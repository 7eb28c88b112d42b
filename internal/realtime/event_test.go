package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/boardsync/internal/domain"
)

func testNow() time.Time {
	return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
}

func TestEvent_Validate(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"action":"UPDATE_BOARD"}`)
	tests := []struct {
		name    string
		event   Event
		wantErr bool
	}{
		{"board event", Event{Kind: EventBoardChanged, BoardID: "b1", Payload: payload}, false},
		{"board event without board", Event{Kind: EventBlockChanged, TeamID: "t1", Payload: payload}, true},
		{"team event", Event{Kind: EventSubscriptionChanged, TeamID: "t1", Payload: payload}, false},
		{"team event without team", Event{Kind: EventSubscriptionChanged, Payload: payload}, true},
		{"user event", Event{Kind: EventCategoryChanged, TeamID: "t1", UserID: "u1", Payload: payload}, false},
		{"user event without user", Event{Kind: EventCategoryChanged, TeamID: "t1", Payload: payload}, true},
		{"global event", Event{Kind: EventConfigChanged, Payload: payload}, false},
		{"missing payload", Event{Kind: EventConfigChanged}, true},
		{"unknown kind", Event{Kind: "bogus", Payload: payload}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.event.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidEvent)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestEvent_Permission(t *testing.T) {
	t.Parallel()

	perm, scope, ok := Event{Kind: EventMemberDeleted, TeamID: "t1", BoardID: "b1"}.permission()
	assert.True(t, ok)
	assert.Equal(t, domain.PermissionViewBoard, perm)
	assert.Equal(t, "b1", scope)

	perm, scope, ok = Event{Kind: EventCategoriesReordered, TeamID: "t1", UserID: "u1"}.permission()
	assert.True(t, ok)
	assert.Equal(t, domain.PermissionViewTeam, perm)
	assert.Equal(t, "t1", scope)

	_, _, ok = Event{Kind: EventCardLimitTimestampChanged}.permission()
	assert.False(t, ok)
}

func TestEventKind_Action(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ActionUpdateBlock, EventBlockDeleted.Action())
	assert.Equal(t, ActionDeleteMember, EventMemberDeleted.Action())
	assert.Equal(t, ActionReorderCategoryBoards, EventCategoryBoardsReordered.Action())
	assert.Equal(t, Action(""), EventKind("bogus").Action())
}

func TestConnection_EnqueueNeverBlocks(t *testing.T) {
	t.Parallel()

	c := newConnection("c1", 1, testNow())
	assert.True(t, c.enqueue([]byte("a")))
	assert.False(t, c.enqueue([]byte("b")), "full queue")

	<-c.send
	c.release()
	c.release()
	assert.False(t, c.enqueue([]byte("c")), "released connection")
}
