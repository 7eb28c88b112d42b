package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/domain"
)

// BroadcastAPI is called by the CRUD layer after a mutation commits.
// *Hub satisfies this interface.
type BroadcastAPI interface {
	BroadcastBlockChange(ctx context.Context, teamID string, block *domain.Block) error
	BroadcastBlockDelete(ctx context.Context, teamID, blockID, boardID string) error
	BroadcastBoardChange(ctx context.Context, teamID string, board *domain.Board) error
	BroadcastBoardDelete(ctx context.Context, teamID, boardID string) error
	BroadcastMemberChange(ctx context.Context, teamID, boardID string, member *domain.BoardMember) error
	BroadcastMemberDelete(ctx context.Context, teamID, boardID, userID string) error
	BroadcastCategoryChange(ctx context.Context, category *domain.Category) error
	BroadcastCategoryBoardChange(ctx context.Context, teamID, userID string, boardCategories []*domain.BoardCategory) error
	BroadcastConfigChange(ctx context.Context, clientConfig *domain.ClientConfig) error
	BroadcastSubscriptionChange(ctx context.Context, teamID string, subscription *domain.Subscription) error
	BroadcastCardLimitTimestampChange(ctx context.Context, cardLimitTimestamp int64) error
	BroadcastCategoryReorder(ctx context.Context, teamID, userID string, categoryOrder []string) error
	BroadcastCategoryBoardsReorder(ctx context.Context, teamID, userID, categoryID string, boardOrder []string) error
}

var _ BroadcastAPI = (*Hub)(nil)

func (h *Hub) send(ctx context.Context, ev Event, msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("realtime.Hub.send(%s): %w", ev.Kind, err)
	}
	ev.Payload = payload
	return h.Broadcast(ctx, ev)
}

func (h *Hub) nowMillis() int64 {
	return h.registry.now().UnixMilli()
}

// boardMembers returns the user ids of the board's members. A failed lookup
// only narrows delivery to subscribers, so it is logged rather than
// returned.
func (h *Hub) boardMembers(ctx context.Context, boardID string) []string {
	if h.store == nil {
		return nil
	}
	members, err := h.store.GetMembersForBoard(ctx, boardID)
	if err != nil {
		log.Warn().Err(err).Str("board_id", boardID).Msg("realtime: cannot load board members")
		return nil
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids
}

func (h *Hub) BroadcastBlockChange(ctx context.Context, teamID string, block *domain.Block) error {
	if block == nil {
		return fmt.Errorf("realtime.Hub.BroadcastBlockChange: %w: nil block", ErrInvalidEvent)
	}
	ev := Event{Kind: EventBlockChanged, TeamID: teamID, BoardID: block.BoardID, BlockID: block.ID}
	return h.send(ctx, ev, UpdateBlockMsg{Action: ActionUpdateBlock, TeamID: teamID, Block: block})
}

func (h *Hub) BroadcastBlockDelete(ctx context.Context, teamID, blockID, boardID string) error {
	now := h.nowMillis()
	block := &domain.Block{ID: blockID, BoardID: boardID, UpdateAt: now, DeleteAt: now}
	ev := Event{Kind: EventBlockDeleted, TeamID: teamID, BoardID: boardID, BlockID: blockID}
	return h.send(ctx, ev, UpdateBlockMsg{Action: ActionUpdateBlock, TeamID: teamID, Block: block})
}

// BroadcastBoardChange also reaches every current board member, whether or
// not they subscribed to the team.
func (h *Hub) BroadcastBoardChange(ctx context.Context, teamID string, board *domain.Board) error {
	if board == nil {
		return fmt.Errorf("realtime.Hub.BroadcastBoardChange: %w: nil board", ErrInvalidEvent)
	}
	ev := Event{
		Kind:        EventBoardChanged,
		TeamID:      teamID,
		BoardID:     board.ID,
		EnsureUsers: h.boardMembers(ctx, board.ID),
	}
	return h.send(ctx, ev, UpdateBoardMsg{Action: ActionUpdateBoard, TeamID: teamID, Board: board})
}

func (h *Hub) BroadcastBoardDelete(ctx context.Context, teamID, boardID string) error {
	now := h.nowMillis()
	board := &domain.Board{ID: boardID, TeamID: teamID, UpdateAt: now, DeleteAt: now}
	ev := Event{Kind: EventBoardDeleted, TeamID: teamID, BoardID: boardID}
	return h.send(ctx, ev, UpdateBoardMsg{Action: ActionUpdateBoard, TeamID: teamID, Board: board})
}

// BroadcastMemberChange makes sure the affected user hears about it even
// before they have subscribed to anything on the board.
func (h *Hub) BroadcastMemberChange(ctx context.Context, teamID, boardID string, member *domain.BoardMember) error {
	if member == nil {
		return fmt.Errorf("realtime.Hub.BroadcastMemberChange: %w: nil member", ErrInvalidEvent)
	}
	ev := Event{
		Kind:        EventMemberChanged,
		TeamID:      teamID,
		BoardID:     boardID,
		EnsureUsers: []string{member.UserID},
	}
	return h.send(ctx, ev, UpdateMemberMsg{Action: ActionUpdateMember, TeamID: teamID, Member: member})
}

func (h *Hub) BroadcastMemberDelete(ctx context.Context, teamID, boardID, userID string) error {
	member := &domain.BoardMember{BoardID: boardID, UserID: userID}
	ev := Event{
		Kind:        EventMemberDeleted,
		TeamID:      teamID,
		BoardID:     boardID,
		EnsureUsers: []string{userID},
	}
	return h.send(ctx, ev, UpdateMemberMsg{Action: ActionDeleteMember, TeamID: teamID, Member: member})
}

func (h *Hub) BroadcastCategoryChange(ctx context.Context, category *domain.Category) error {
	if category == nil {
		return fmt.Errorf("realtime.Hub.BroadcastCategoryChange: %w: nil category", ErrInvalidEvent)
	}
	ev := Event{Kind: EventCategoryChanged, TeamID: category.TeamID, UserID: category.UserID}
	return h.send(ctx, ev, UpdateCategoryMsg{Action: ActionUpdateCategory, TeamID: category.TeamID, Category: category})
}

func (h *Hub) BroadcastCategoryBoardChange(ctx context.Context, teamID, userID string, boardCategories []*domain.BoardCategory) error {
	ev := Event{Kind: EventCategoryBoardChanged, TeamID: teamID, UserID: userID}
	return h.send(ctx, ev, UpdateCategoryMsg{
		Action:          ActionUpdateBoardCategory,
		TeamID:          teamID,
		BoardCategories: boardCategories,
	})
}

func (h *Hub) BroadcastConfigChange(ctx context.Context, clientConfig *domain.ClientConfig) error {
	ev := Event{Kind: EventConfigChanged}
	return h.send(ctx, ev, UpdateClientConfigMsg{Action: ActionUpdateClientConfig, ClientConfig: clientConfig})
}

func (h *Hub) BroadcastSubscriptionChange(ctx context.Context, teamID string, subscription *domain.Subscription) error {
	ev := Event{Kind: EventSubscriptionChanged, TeamID: teamID}
	return h.send(ctx, ev, UpdateSubscriptionMsg{
		Action:       ActionUpdateSubscription,
		TeamID:       teamID,
		Subscription: subscription,
	})
}

func (h *Hub) BroadcastCardLimitTimestampChange(ctx context.Context, cardLimitTimestamp int64) error {
	ev := Event{Kind: EventCardLimitTimestampChanged}
	return h.send(ctx, ev, UpdateCardLimitTimestampMsg{
		Action:    ActionUpdateCardLimitTimestamp,
		Timestamp: cardLimitTimestamp,
	})
}

func (h *Hub) BroadcastCategoryReorder(ctx context.Context, teamID, userID string, categoryOrder []string) error {
	ev := Event{Kind: EventCategoriesReordered, TeamID: teamID, UserID: userID}
	return h.send(ctx, ev, CategoryReorderMsg{
		Action:        ActionReorderCategories,
		TeamID:        teamID,
		CategoryOrder: categoryOrder,
	})
}

func (h *Hub) BroadcastCategoryBoardsReorder(ctx context.Context, teamID, userID, categoryID string, boardOrder []string) error {
	ev := Event{Kind: EventCategoryBoardsReordered, TeamID: teamID, UserID: userID}
	return h.send(ctx, ev, CategoryBoardsReorderMsg{
		Action:     ActionReorderCategoryBoards,
		TeamID:     teamID,
		CategoryID: categoryID,
		BoardOrder: boardOrder,
	})
}
