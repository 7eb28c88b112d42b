package postgres

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SharingRepo struct {
	pool *pgxpool.Pool
}

func NewSharingRepo(pool *pgxpool.Pool) *SharingRepo {
	return &SharingRepo{pool: pool}
}

// ValidateReadToken reports whether readToken is the enabled share token of
// the board. A board that was never shared is not an error.
func (r *SharingRepo) ValidateReadToken(ctx context.Context, boardID, readToken string) (bool, error) {
	if readToken == "" {
		return false, nil
	}

	var (
		enabled bool
		token   string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT enabled, token FROM sharing WHERE id = $1`,
		boardID,
	).Scan(&enabled, &token)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sharingRepo.ValidateReadToken: %w", err)
	}

	return enabled && subtle.ConstantTimeCompare([]byte(token), []byte(readToken)) == 1, nil
}
