package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Errors for commands that are rejected before reaching the registry.
var (
	ErrMalformedCommand = errors.New("realtime: malformed command")
	ErrUnknownAction    = errors.New("realtime: unknown action")
	ErrMissingTeamID    = errors.New("realtime: command requires team_id")
	ErrMissingBlockIDs  = errors.New("realtime: command requires block_ids")
)

// HandleMessage processes one inbound message from a connection. Any
// message, valid or not, counts as activity. Rejected commands are logged
// and leave the connection open and its state unchanged.
func (h *Hub) HandleMessage(ctx context.Context, connID string, raw []byte) error {
	h.registry.Touch(connID)

	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		log.Warn().Err(err).Str("conn_id", connID).Msg("realtime: malformed command")
		return fmt.Errorf("realtime.Hub.HandleMessage: %w: %w", ErrMalformedCommand, err)
	}

	if err := h.execute(ctx, connID, cmd); err != nil {
		log.Warn().Err(err).
			Str("conn_id", connID).
			Str("action", string(cmd.Action)).
			Msg("realtime: command rejected")
		return fmt.Errorf("realtime.Hub.HandleMessage: %w", err)
	}
	return nil
}

func (h *Hub) execute(ctx context.Context, connID string, cmd Command) error {
	switch cmd.Action {
	case ActionAuth:
		userID, err := h.registry.Authenticate(ctx, connID, cmd.Token)
		if err != nil {
			return err
		}
		log.Debug().Str("conn_id", connID).Str("user_id", userID).Msg("realtime: connection authenticated")
		return nil

	case ActionSubscribeTeam:
		if cmd.TeamID == "" {
			return ErrMissingTeamID
		}
		return h.registry.SubscribeTeam(connID, cmd.TeamID)

	case ActionUnsubscribeTeam:
		if cmd.TeamID == "" {
			return ErrMissingTeamID
		}
		return h.registry.UnsubscribeTeam(connID, cmd.TeamID)

	case ActionSubscribeBlocks:
		if len(cmd.BlockIDs) == 0 {
			return ErrMissingBlockIDs
		}
		if _, ok := h.registry.UserID(connID); !ok && cmd.ReadToken != "" {
			return h.registry.SubscribeBlocksWithReadToken(ctx, connID, cmd.ReadToken, cmd.BlockIDs)
		}
		return h.registry.SubscribeBlocks(connID, cmd.BlockIDs)

	case ActionUnsubscribeBlocks:
		if len(cmd.BlockIDs) == 0 {
			return ErrMissingBlockIDs
		}
		return h.registry.UnsubscribeBlocks(connID, cmd.BlockIDs)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
}
