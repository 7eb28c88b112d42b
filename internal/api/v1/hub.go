package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/boardsync/internal/realtime"
	"github.com/gosuda/boardsync/internal/server/middleware"
)

type GetHubStatsOutput struct {
	Body realtime.HubStats
}

type PublishEventInput struct {
	Body struct {
		Kind        string         `json:"kind" enum:"block_changed,block_deleted,board_changed,board_deleted,member_changed,member_deleted,category_changed,category_board_changed,config_changed,subscription_changed,card_limit_timestamp_changed,categories_reordered,category_boards_reordered" doc:"Event kind"`
		TeamID      string         `json:"team_id,omitempty" doc:"Team the change belongs to"`
		BoardID     string         `json:"board_id,omitempty" doc:"Board the change belongs to"`
		BlockID     string         `json:"block_id,omitempty" doc:"Changed block"`
		UserID      string         `json:"user_id,omitempty" doc:"Owner of a user-scoped change"`
		EnsureUsers []string       `json:"ensure_users,omitempty" doc:"Users that must receive the event even without a subscription"`
		Payload     map[string]any `json:"payload" doc:"Envelope delivered verbatim to clients"`
	}
}

type PublishEventOutput struct {
	Body struct {
		Accepted bool `json:"accepted"`
	}
}

type SweepOutput struct {
	Body struct {
		Evicted int `json:"evicted"`
	}
}

func RegisterHubRoutes(api huma.API, hub HubAdmin) {
	huma.Register(api, huma.Operation{
		OperationID: "get-hub-stats",
		Method:      http.MethodGet,
		Path:        "/hub/stats",
		Summary:     "Get live connection and subscription counts",
		Tags:        []string{"Hub"},
	}, func(ctx context.Context, _ *struct{}) (*GetHubStatsOutput, error) {
		if err := requireAdmin(ctx); err != nil {
			return nil, err
		}
		return &GetHubStatsOutput{Body: hub.Stats()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "publish-hub-event",
		Method:        http.MethodPost,
		Path:          "/hub/events",
		Summary:       "Broadcast a change event to subscribed clients",
		Tags:          []string{"Hub"},
		DefaultStatus: http.StatusAccepted,
	}, func(ctx context.Context, input *PublishEventInput) (*PublishEventOutput, error) {
		if err := requireAdmin(ctx); err != nil {
			return nil, err
		}

		payload, err := json.Marshal(input.Body.Payload)
		if err != nil {
			return nil, huma.Error400BadRequest("payload is not valid JSON", err)
		}
		if input.Body.Payload == nil {
			payload = nil
		}

		ev := realtime.Event{
			Kind:        realtime.EventKind(input.Body.Kind),
			TeamID:      input.Body.TeamID,
			BoardID:     input.Body.BoardID,
			BlockID:     input.Body.BlockID,
			UserID:      input.Body.UserID,
			EnsureUsers: input.Body.EnsureUsers,
			Payload:     payload,
		}

		if err := hub.Broadcast(ctx, ev); err != nil {
			if errors.Is(err, realtime.ErrInvalidEvent) {
				return nil, huma.Error400BadRequest(err.Error())
			}
			return nil, huma.Error500InternalServerError("failed to broadcast event", err)
		}

		out := &PublishEventOutput{}
		out.Body.Accepted = true
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "sweep-hub",
		Method:      http.MethodPost,
		Path:        "/hub/sweep",
		Summary:     "Evict idle connections now",
		Tags:        []string{"Hub"},
	}, func(ctx context.Context, _ *struct{}) (*SweepOutput, error) {
		if err := requireAdmin(ctx); err != nil {
			return nil, err
		}
		out := &SweepOutput{}
		out.Body.Evicted = hub.SweepStale()
		return out, nil
	})
}

func requireAdmin(ctx context.Context) error {
	role, ok := middleware.RoleFromContext(ctx)
	if !ok || role != middleware.RoleAdmin {
		return huma.Error403Forbidden("admin role required")
	}
	return nil
}
