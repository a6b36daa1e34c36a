package postgres

import (
	"context"
	"database/sql"
	"errors"

	"reconned/internal/domain"
)

type userRepository struct {
	DB DBTX
}

func NewUserRepository(db DBTX) domain.UserRepository {
	return &userRepository{DB: db}
}

const userColumns = `id, email, name, email_verified, image, banned, ban_reason, ban_expires, created_at, updated_at`

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.DB.QueryRowContext(ctx, query, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUser(r.DB.QueryRowContext(ctx, query, email))
}

func scanUser(row *sql.Row) (*domain.User, error) {
	u := &domain.User{}
	var image, banReason sql.NullString
	var banExpires sql.NullTime
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.EmailVerified, &image, &u.Banned, &banReason, &banExpires, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	u.Image = nullStringPtr(image)
	u.BanReason = nullStringPtr(banReason)
	u.BanExpires = nullTimePtr(banExpires)
	return u, nil
}
