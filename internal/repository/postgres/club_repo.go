package postgres

import (
	"context"
	"database/sql"
	"errors"

	"reconned/internal/domain"
)

type clubRepository struct {
	DB DBTX
}

func NewClubRepository(db DBTX) domain.ClubRepository {
	return &clubRepository{DB: db}
}

func (r *clubRepository) GetByID(ctx context.Context, id string) (*domain.Club, error) {
	query := `
		SELECT id, name, banned, ban_reason, ban_expires, created_at
		FROM clubs
		WHERE id = $1
	`
	c := &domain.Club{}
	var banReason sql.NullString
	var banExpires sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.Banned, &banReason, &banExpires, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrClubNotFound
		}
		return nil, err
	}
	c.BanReason = nullStringPtr(banReason)
	c.BanExpires = nullTimePtr(banExpires)
	return c, nil
}
