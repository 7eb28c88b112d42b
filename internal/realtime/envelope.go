package realtime

import (
	"github.com/gosuda/boardsync/internal/domain"
)

// Action is the discriminator of inbound commands and outbound envelopes.
type Action string

// Inbound command actions.
const (
	ActionAuth              Action = "AUTH"
	ActionSubscribeTeam     Action = "SUBSCRIBE_TEAM"
	ActionUnsubscribeTeam   Action = "UNSUBSCRIBE_TEAM"
	ActionSubscribeBlocks   Action = "SUBSCRIBE_BLOCKS"
	ActionUnsubscribeBlocks Action = "UNSUBSCRIBE_BLOCKS"
)

// Outbound envelope actions.
const (
	ActionUpdateBlock              Action = "UPDATE_BLOCK"
	ActionUpdateBoard              Action = "UPDATE_BOARD"
	ActionUpdateMember             Action = "UPDATE_MEMBER"
	ActionDeleteMember             Action = "DELETE_MEMBER"
	ActionUpdateCategory           Action = "UPDATE_CATEGORY"
	ActionUpdateBoardCategory      Action = "UPDATE_BOARD_CATEGORY"
	ActionUpdateClientConfig       Action = "UPDATE_CLIENT_CONFIG"
	ActionUpdateSubscription       Action = "UPDATE_SUBSCRIPTION"
	ActionUpdateCardLimitTimestamp Action = "UPDATE_CARD_LIMIT_TIMESTAMP"
	ActionReorderCategories        Action = "REORDER_CATEGORIES"
	ActionReorderCategoryBoards    Action = "REORDER_CATEGORY_BOARDS"
)

// Command is one inbound message from a client.
type Command struct {
	Action    Action   `json:"action"`
	TeamID    string   `json:"team_id,omitempty"`
	Token     string   `json:"token,omitempty"`
	ReadToken string   `json:"read_token,omitempty"`
	BlockIDs  []string `json:"block_ids,omitempty"`
}

// UpdateBlockMsg is sent on block changes and deletions.
type UpdateBlockMsg struct {
	Action Action        `json:"action"`
	TeamID string        `json:"team_id"`
	Block  *domain.Block `json:"block"`
}

// UpdateBoardMsg is sent on board changes and deletions.
type UpdateBoardMsg struct {
	Action Action        `json:"action"`
	TeamID string        `json:"team_id"`
	Board  *domain.Board `json:"board"`
}

// UpdateMemberMsg is sent when a board membership is added, changed or removed.
type UpdateMemberMsg struct {
	Action Action              `json:"action"`
	TeamID string              `json:"team_id"`
	Member *domain.BoardMember `json:"member"`
}

// UpdateCategoryMsg carries either a category or a batch of board-to-category
// moves, never both.
type UpdateCategoryMsg struct {
	Action          Action                  `json:"action"`
	TeamID          string                  `json:"team_id"`
	Category        *domain.Category        `json:"category,omitempty"`
	BoardCategories []*domain.BoardCategory `json:"block_categories,omitempty"`
}

// UpdateClientConfigMsg is sent to every authenticated client.
type UpdateClientConfigMsg struct {
	Action       Action               `json:"action"`
	TeamID       string               `json:"team_id"`
	ClientConfig *domain.ClientConfig `json:"clientconfig"`
}

// UpdateSubscriptionMsg is sent when a card or board subscription changes.
type UpdateSubscriptionMsg struct {
	Action       Action               `json:"action"`
	TeamID       string               `json:"team_id"`
	Subscription *domain.Subscription `json:"subscription"`
}

// UpdateCardLimitTimestampMsg is sent when the card limit cutoff moves.
type UpdateCardLimitTimestampMsg struct {
	Action    Action `json:"action"`
	TeamID    string `json:"team_id"`
	Timestamp int64  `json:"timestamp"`
}

// CategoryReorderMsg is sent when a user reorders their sidebar categories.
type CategoryReorderMsg struct {
	Action        Action   `json:"action"`
	TeamID        string   `json:"team_id"`
	CategoryOrder []string `json:"category_order"`
}

// CategoryBoardsReorderMsg is sent when boards inside a category are reordered.
type CategoryBoardsReorderMsg struct {
	Action     Action   `json:"action"`
	TeamID     string   `json:"team_id"`
	CategoryID string   `json:"category_id"`
	BoardOrder []string `json:"board_order"`
}
