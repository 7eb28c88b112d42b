package realtime

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gosuda/boardsync/internal/domain"
)

// ErrInvalidEvent is returned when an event is missing the ids its kind needs.
var ErrInvalidEvent = errors.New("realtime: invalid event") //nolint:gochecknoglobals // sentinel error

// EventKind identifies which change an Event notifies about.
type EventKind string

const (
	EventBlockChanged              EventKind = "block_changed"
	EventBlockDeleted              EventKind = "block_deleted"
	EventBoardChanged              EventKind = "board_changed"
	EventBoardDeleted              EventKind = "board_deleted"
	EventMemberChanged             EventKind = "member_changed"
	EventMemberDeleted             EventKind = "member_deleted"
	EventCategoryChanged           EventKind = "category_changed"
	EventCategoryBoardChanged      EventKind = "category_board_changed"
	EventConfigChanged             EventKind = "config_changed"
	EventSubscriptionChanged       EventKind = "subscription_changed"
	EventCardLimitTimestampChanged EventKind = "card_limit_timestamp_changed"
	EventCategoriesReordered       EventKind = "categories_reordered"
	EventCategoryBoardsReordered   EventKind = "category_boards_reordered"
)

// audience decides how recipients of an event are resolved.
type audience int

const (
	audienceUnknown audience = iota
	// audienceBoard: team subscribers plus block/board subscribers, checked
	// against the board.
	audienceBoard
	// audienceTeam: team subscribers, checked against the team.
	audienceTeam
	// audienceUser: the team subscribers that belong to Event.UserID.
	audienceUser
	// audienceAll: every authenticated connection.
	audienceAll
)

func (k EventKind) audience() audience {
	switch k {
	case EventBlockChanged, EventBlockDeleted, EventBoardChanged, EventBoardDeleted,
		EventMemberChanged, EventMemberDeleted:
		return audienceBoard
	case EventSubscriptionChanged:
		return audienceTeam
	case EventCategoryChanged, EventCategoryBoardChanged, EventCategoriesReordered, EventCategoryBoardsReordered:
		return audienceUser
	case EventConfigChanged, EventCardLimitTimestampChanged:
		return audienceAll
	default:
		return audienceUnknown
	}
}

// Action returns the outbound envelope action clients see for this kind.
func (k EventKind) Action() Action {
	switch k {
	case EventBlockChanged, EventBlockDeleted:
		return ActionUpdateBlock
	case EventBoardChanged, EventBoardDeleted:
		return ActionUpdateBoard
	case EventMemberChanged:
		return ActionUpdateMember
	case EventMemberDeleted:
		return ActionDeleteMember
	case EventCategoryChanged:
		return ActionUpdateCategory
	case EventCategoryBoardChanged:
		return ActionUpdateBoardCategory
	case EventConfigChanged:
		return ActionUpdateClientConfig
	case EventSubscriptionChanged:
		return ActionUpdateSubscription
	case EventCardLimitTimestampChanged:
		return ActionUpdateCardLimitTimestamp
	case EventCategoriesReordered:
		return ActionReorderCategories
	case EventCategoryBoardsReordered:
		return ActionReorderCategoryBoards
	default:
		return ""
	}
}

// Event is a single change notification. Payload holds the already encoded
// outbound envelope so every recipient, local or on another node, receives
// the same bytes.
type Event struct {
	Kind        EventKind       `json:"kind"`
	TeamID      string          `json:"team_id,omitempty"`
	BoardID     string          `json:"board_id,omitempty"`
	BlockID     string          `json:"block_id,omitempty"`
	UserID      string          `json:"user_id,omitempty"`
	Payload     json.RawMessage `json:"payload"`
	EnsureUsers []string        `json:"ensure_users,omitempty"`
}

// Validate checks that the event carries the ids its kind is routed by.
func (e Event) Validate() error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%w: %s without payload", ErrInvalidEvent, e.Kind)
	}
	switch e.Kind.audience() {
	case audienceBoard:
		if e.BoardID == "" {
			return fmt.Errorf("%w: %s without board_id", ErrInvalidEvent, e.Kind)
		}
	case audienceTeam:
		if e.TeamID == "" {
			return fmt.Errorf("%w: %s without team_id", ErrInvalidEvent, e.Kind)
		}
	case audienceUser:
		if e.TeamID == "" || e.UserID == "" {
			return fmt.Errorf("%w: %s without team_id/user_id", ErrInvalidEvent, e.Kind)
		}
	case audienceAll:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	}
	return nil
}

// permission returns the permission and scope id a recipient must hold at
// delivery time. ok is false for kinds that only need an authenticated
// connection.
func (e Event) permission() (perm domain.Permission, scopeID string, ok bool) {
	switch e.Kind.audience() {
	case audienceBoard:
		return domain.PermissionViewBoard, e.BoardID, true
	case audienceTeam, audienceUser:
		return domain.PermissionViewTeam, e.TeamID, true
	default:
		return "", "", false
	}
}

// Origin tags where a ClusterMessage was produced.
type Origin string

const (
	OriginLocal   Origin = "local"
	OriginCluster Origin = "cluster"
)

// ClusterMessage is the unit exchanged between nodes over the cluster bus.
type ClusterMessage struct {
	Origin Origin `json:"origin"`
	Node   string `json:"node"`
	Event  Event  `json:"event"`
}
