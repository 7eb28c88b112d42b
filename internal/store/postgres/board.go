package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/boardsync/internal/domain"
)

type BoardRepo struct {
	pool *pgxpool.Pool
}

func NewBoardRepo(pool *pgxpool.Pool) *BoardRepo {
	return &BoardRepo{pool: pool}
}

func (r *BoardRepo) GetBlock(ctx context.Context, id string) (*domain.Block, error) {
	var b domain.Block

	err := r.pool.QueryRow(ctx,
		`SELECT id, parent_id, board_id, type, title, fields, created_by, modified_by,
		        create_at, update_at, delete_at
		 FROM blocks WHERE id = $1 AND delete_at = 0`,
		id,
	).Scan(&b.ID, &b.ParentID, &b.BoardID, &b.Type, &b.Title, &b.Fields, &b.CreatedBy, &b.ModifiedBy,
		&b.CreateAt, &b.UpdateAt, &b.DeleteAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("boardRepo.GetBlock: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("boardRepo.GetBlock: %w", err)
	}

	return &b, nil
}

func (r *BoardRepo) GetBoard(ctx context.Context, id string) (*domain.Board, error) {
	var b domain.Board

	err := r.pool.QueryRow(ctx,
		`SELECT id, team_id, channel_id, type, title, description, icon, is_template, properties,
		        created_by, modified_by, create_at, update_at, delete_at
		 FROM boards WHERE id = $1 AND delete_at = 0`,
		id,
	).Scan(&b.ID, &b.TeamID, &b.ChannelID, &b.Type, &b.Title, &b.Description, &b.Icon, &b.IsTemplate,
		&b.Properties, &b.CreatedBy, &b.ModifiedBy, &b.CreateAt, &b.UpdateAt, &b.DeleteAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("boardRepo.GetBoard: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("boardRepo.GetBoard: %w", err)
	}

	return &b, nil
}

func (r *BoardRepo) GetMembersForBoard(ctx context.Context, boardID string) ([]*domain.BoardMember, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT board_id, user_id, roles, scheme_admin, scheme_editor, scheme_commenter, scheme_viewer
		 FROM board_members WHERE board_id = $1 ORDER BY user_id`,
		boardID,
	)
	if err != nil {
		return nil, fmt.Errorf("boardRepo.GetMembersForBoard: %w", err)
	}
	defer rows.Close()

	var members []*domain.BoardMember
	for rows.Next() {
		var m domain.BoardMember
		if err := rows.Scan(&m.BoardID, &m.UserID, &m.Roles,
			&m.SchemeAdmin, &m.SchemeEditor, &m.SchemeCommenter, &m.SchemeViewer); err != nil {
			return nil, fmt.Errorf("boardRepo.GetMembersForBoard: scan: %w", err)
		}
		members = append(members, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("boardRepo.GetMembersForBoard: rows: %w", err)
	}

	return members, nil
}
