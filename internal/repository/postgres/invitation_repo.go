package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"reconned/internal/domain"
)

type invitationRepository struct {
	DB DBTX
}

func NewInvitationRepository(db DBTX) domain.InvitationRepository {
	return &invitationRepository{
		DB: db,
	}
}

const invitationColumns = `id, invite_code, email, user_id, club_id, status, expires_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvitation(row rowScanner) (*domain.Invitation, error) {
	inv := &domain.Invitation{}
	var userID sql.NullString
	err := row.Scan(&inv.ID, &inv.InviteCode, &inv.Email, &userID, &inv.ClubID, &inv.Status, &inv.ExpiresAt, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	inv.UserID = nullStringPtr(userID)
	return inv, nil
}

func (r *invitationRepository) Create(ctx context.Context, inv *domain.Invitation) error {
	query := `
		INSERT INTO club_invitations (invite_code, email, user_id, club_id, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (invite_code) DO NOTHING
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query,
		inv.InviteCode, inv.Email, inv.UserID, inv.ClubID, string(inv.Status), inv.ExpiresAt, inv.CreatedAt, inv.UpdatedAt,
	).Scan(&inv.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrCodeTaken
		}
		if isUniqueViolation(err, constraintActiveInvitation) {
			return domain.ErrDuplicatePending
		}
		if isForeignKeyViolation(err) {
			return domain.ErrClubNotFound
		}
		return err
	}
	return nil
}

func (r *invitationRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Invitation, error) {
	inv, err := scanInvitation(r.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInvitationNotFound
		}
		return nil, err
	}
	return inv, nil
}

func (r *invitationRepository) GetByID(ctx context.Context, id string) (*domain.Invitation, error) {
	return r.getOne(ctx, `SELECT `+invitationColumns+` FROM club_invitations WHERE id = $1`, id)
}

func (r *invitationRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Invitation, error) {
	return r.getOne(ctx, `SELECT `+invitationColumns+` FROM club_invitations WHERE id = $1 FOR UPDATE`, id)
}

func (r *invitationRepository) GetByCodeForUpdate(ctx context.Context, code string) (*domain.Invitation, error) {
	return r.getOne(ctx, `SELECT `+invitationColumns+` FROM club_invitations WHERE invite_code = $1 FOR UPDATE`, code)
}

func (r *invitationRepository) FindActive(ctx context.Context, clubID, email string) (*domain.Invitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM club_invitations
		WHERE club_id = $1 AND lower(email) = lower($2) AND status IN ('PENDING', 'REQUESTED')
		LIMIT 1
	`
	return r.getOne(ctx, query, clubID, email)
}

func (r *invitationRepository) ListPendingByEmailForUpdate(ctx context.Context, email string) ([]*domain.Invitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM club_invitations
		WHERE lower(email) = lower($1) AND status = 'PENDING'
		ORDER BY created_at
		FOR UPDATE
	`
	return r.list(ctx, query, email)
}

func (r *invitationRepository) ListByClubID(ctx context.Context, clubID string, status domain.InvitationStatus, params domain.PaginationParams) ([]*domain.Invitation, int, error) {
	where := `club_id = $1`
	args := []any{clubID}
	if status != "" {
		where += ` AND status = $2`
		args = append(args, string(status))
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM club_invitations WHERE ` + where
	if err := r.DB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(`
		SELECT %s
		FROM club_invitations
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, invitationColumns, where, len(args)+1, len(args)+2)
	args = append(args, params.PageSize, params.Offset())
	invitations, err := r.list(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	return invitations, total, nil
}

func (r *invitationRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Invitation, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	invitations := make([]*domain.Invitation, 0)
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}

func (r *invitationRepository) UpdateStatus(ctx context.Context, inv *domain.Invitation) error {
	query := `
		UPDATE club_invitations
		SET status = $2, user_id = $3, updated_at = $4
		WHERE id = $1
	`
	result, err := r.DB.ExecContext(ctx, query, inv.ID, string(inv.Status), inv.UserID, inv.UpdatedAt)
	if err != nil {
		return err
	}
	return affectedOne(result, domain.ErrInvitationNotFound)
}
