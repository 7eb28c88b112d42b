package auth

import (
	"context"

	"github.com/gosuda/boardsync/internal/domain"
)

// PermissionChecker is the permission lookup SingleUserPermissions wraps.
type PermissionChecker interface {
	HasPermission(ctx context.Context, userID, scopeID string, perm domain.Permission) bool
}

// SingleUserPermissions grants SingleUserID every permission and defers
// everyone else to next. The single user owns every team and board but has
// no membership rows.
type SingleUserPermissions struct {
	next PermissionChecker
}

func NewSingleUserPermissions(next PermissionChecker) *SingleUserPermissions {
	return &SingleUserPermissions{next: next}
}

func (p *SingleUserPermissions) HasPermission(ctx context.Context, userID, scopeID string, perm domain.Permission) bool {
	if userID == SingleUserID {
		return true
	}
	return p.next.HasPermission(ctx, userID, scopeID, perm)
}
