package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/domain"
)

// Store is the hub's read-only view of the board database. It satisfies the
// realtime Store, PermissionChecker and ReadTokenValidator interfaces.
type Store struct {
	pool        *pgxpool.Pool
	boards      *BoardRepo
	permissions *PermissionRepo
	sharing     *SharingRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{
		pool:        pool,
		boards:      NewBoardRepo(pool),
		permissions: NewPermissionRepo(pool),
		sharing:     NewSharingRepo(pool),
	}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres.Store.Ping: %w", err)
	}
	return nil
}

func (s *Store) Boards() *BoardRepo { return s.boards }

func (s *Store) GetBlock(ctx context.Context, id string) (*domain.Block, error) {
	return s.boards.GetBlock(ctx, id)
}

func (s *Store) GetMembersForBoard(ctx context.Context, boardID string) ([]*domain.BoardMember, error) {
	return s.boards.GetMembersForBoard(ctx, boardID)
}

// HasPermission denies on lookup errors; delivery must never fail open.
func (s *Store) HasPermission(ctx context.Context, userID, scopeID string, perm domain.Permission) bool {
	ok, err := s.permissions.Check(ctx, userID, scopeID, perm)
	if err != nil {
		log.Error().Err(err).
			Str("user_id", userID).
			Str("scope_id", scopeID).
			Str("permission", string(perm)).
			Msg("postgres: permission check failed")
		return false
	}
	return ok
}

func (s *Store) ValidateReadToken(ctx context.Context, boardID, readToken string) (bool, error) {
	return s.sharing.ValidateReadToken(ctx, boardID, readToken)
}
