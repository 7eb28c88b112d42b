package v1

import (
	"context"

	"github.com/gosuda/boardsync/internal/realtime"
)

// HubAdmin abstracts the hub operations exposed over HTTP for handler testing.
// *realtime.Hub satisfies this interface.
type HubAdmin interface {
	Stats() realtime.HubStats
	Broadcast(ctx context.Context, ev realtime.Event) error
	SweepStale() int
}
