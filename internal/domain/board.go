package domain

import (
	"context"
	"encoding/json"
)

// BoardType distinguishes open boards (visible to every team member) from
// private ones (visible to board members only).
type BoardType string

const (
	BoardTypeOpen    BoardType = "O"
	BoardTypePrivate BoardType = "P"
)

// Board is the snapshot of a board carried in UPDATE_BOARD envelopes.
// Timestamps are unix milliseconds; a non-zero DeleteAt marks a deletion.
type Board struct {
	ID          string          `json:"id"`
	TeamID      string          `json:"team_id,omitempty"`
	ChannelID   string          `json:"channel_id,omitempty"`
	Type        BoardType       `json:"type,omitempty"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Icon        string          `json:"icon,omitempty"`
	IsTemplate  bool            `json:"is_template,omitempty"`
	Properties  json.RawMessage `json:"properties,omitempty"`
	CreatedBy   string          `json:"created_by,omitempty"`
	ModifiedBy  string          `json:"modified_by,omitempty"`
	CreateAt    int64           `json:"create_at,omitempty"`
	UpdateAt    int64           `json:"update_at,omitempty"`
	DeleteAt    int64           `json:"delete_at,omitempty"`
}

// Block is a card, view, comment or any other node that lives on a board.
type Block struct {
	ID         string          `json:"id"`
	ParentID   string          `json:"parent_id,omitempty"`
	BoardID    string          `json:"board_id,omitempty"`
	Type       string          `json:"type,omitempty"`
	Title      string          `json:"title,omitempty"`
	Fields     json.RawMessage `json:"fields,omitempty"`
	CreatedBy  string          `json:"created_by,omitempty"`
	ModifiedBy string          `json:"modified_by,omitempty"`
	CreateAt   int64           `json:"create_at,omitempty"`
	UpdateAt   int64           `json:"update_at,omitempty"`
	DeleteAt   int64           `json:"delete_at,omitempty"`
}

// BoardMember ties a user to a board together with the scheme roles they hold.
type BoardMember struct {
	BoardID         string `json:"board_id"`
	UserID          string `json:"user_id"`
	Roles           string `json:"roles,omitempty"`
	SchemeAdmin     bool   `json:"scheme_admin,omitempty"`
	SchemeEditor    bool   `json:"scheme_editor,omitempty"`
	SchemeCommenter bool   `json:"scheme_commenter,omitempty"`
	SchemeViewer    bool   `json:"scheme_viewer,omitempty"`
}

// Category is a user's sidebar grouping of boards within a team.
type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	TeamID    string `json:"team_id,omitempty"`
	Collapsed bool   `json:"collapsed,omitempty"`
	SortOrder int    `json:"sort_order,omitempty"`
	Type      string `json:"type,omitempty"`
	CreateAt  int64  `json:"create_at,omitempty"`
	UpdateAt  int64  `json:"update_at,omitempty"`
	DeleteAt  int64  `json:"delete_at,omitempty"`
}

// BoardCategory records that a board was moved into a category.
type BoardCategory struct {
	BoardID    string `json:"board_id"`
	CategoryID string `json:"category_id"`
	Hidden     bool   `json:"hidden,omitempty"`
}

// ClientConfig is a single client-visible server setting.
type ClientConfig struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Subscription is a user's follow of a card or board for notifications.
type Subscription struct {
	BlockType      string `json:"block_type,omitempty"`
	BlockID        string `json:"block_id"`
	SubscriberType string `json:"subscriber_type,omitempty"`
	SubscriberID   string `json:"subscriber_id"`
	NotifiedAt     int64  `json:"notified_at,omitempty"`
	CreateAt       int64  `json:"create_at,omitempty"`
	DeleteAt       int64  `json:"delete_at,omitempty"`
}

// BoardReader exposes the read-only lookups the real-time hub needs.
type BoardReader interface {
	GetBlock(ctx context.Context, id string) (*Block, error)
	GetMembersForBoard(ctx context.Context, boardID string) ([]*BoardMember, error)
}
