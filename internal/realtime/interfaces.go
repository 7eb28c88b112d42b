package realtime

import (
	"context"

	"github.com/gosuda/boardsync/internal/domain"
)

// AuthValidator resolves a session token to a user id.
// *auth.Validator satisfies this interface.
type AuthValidator interface {
	ValidateToken(ctx context.Context, token string) (string, error)
}

// ReadTokenValidator checks a board share token. It is optional; without it
// anonymous connections can never subscribe.
// *postgres.Store satisfies this interface.
type ReadTokenValidator interface {
	ValidateReadToken(ctx context.Context, boardID, readToken string) (bool, error)
}

// PermissionChecker answers whether a user holds a permission on a team or
// board. It is consulted at delivery time for every recipient.
// *postgres.Store satisfies this interface.
type PermissionChecker interface {
	HasPermission(ctx context.Context, userID, scopeID string, perm domain.Permission) bool
}

// Store provides read-only snapshots used while building payloads and
// resolving read-token subscriptions.
// *postgres.Store satisfies this interface.
type Store interface {
	domain.BoardReader
}

// ClusterBus is an opaque at-most-once pub/sub transport between nodes.
// Subscribe returns a function that closes the subscription.
type ClusterBus interface {
	Publish(ctx context.Context, payload []byte) error
	Subscribe(ctx context.Context, handler func(payload []byte)) (func(), error)
}
