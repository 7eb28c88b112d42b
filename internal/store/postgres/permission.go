package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/boardsync/internal/domain"
)

// Every query takes ($1 = scope id, $2 = user id) and returns one boolean.
var permissionQueries = map[domain.Permission]string{
	domain.PermissionViewTeam: `SELECT EXISTS (
		SELECT 1 FROM team_members WHERE team_id = $1 AND user_id = $2)`,

	// Open boards are readable by every member of the owning team.
	domain.PermissionViewBoard: `SELECT EXISTS (
		SELECT 1 FROM board_members WHERE board_id = $1 AND user_id = $2
	) OR EXISTS (
		SELECT 1 FROM boards b
		JOIN team_members tm ON tm.team_id = b.team_id
		WHERE b.id = $1 AND b.type = 'O' AND b.delete_at = 0 AND tm.user_id = $2)`,
}

type PermissionRepo struct {
	pool *pgxpool.Pool
}

func NewPermissionRepo(pool *pgxpool.Pool) *PermissionRepo {
	return &PermissionRepo{pool: pool}
}

// Check reports whether userID holds perm on the team or board scopeID.
func (r *PermissionRepo) Check(ctx context.Context, userID, scopeID string, perm domain.Permission) (bool, error) {
	query, ok := permissionQueries[perm]
	if !ok {
		return false, fmt.Errorf("permissionRepo.Check: unknown permission %q", perm)
	}

	var allowed bool
	if err := r.pool.QueryRow(ctx, query, scopeID, userID).Scan(&allowed); err != nil {
		return false, fmt.Errorf("permissionRepo.Check: %w", err)
	}

	return allowed, nil
}
