package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reconned/internal/domain"
)

type membershipRepository struct {
	DB DBTX
}

func NewMembershipRepository(db DBTX) domain.MembershipRepository {
	return &membershipRepository{
		DB: db,
	}
}

const membershipColumns = `id, club_id, user_id, role, created_at, end_date, reminder_sent_at`

func scanMembership(row rowScanner) (*domain.ClubMembership, error) {
	m := &domain.ClubMembership{}
	var endDate, reminderSentAt sql.NullTime
	if err := row.Scan(&m.ID, &m.ClubID, &m.UserID, &m.Role, &m.CreatedAt, &endDate, &reminderSentAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMembershipNotFound
		}
		return nil, err
	}
	m.EndDate = nullTimePtr(endDate)
	m.ReminderSentAt = nullTimePtr(reminderSentAt)
	return m, nil
}

func (r *membershipRepository) Create(ctx context.Context, m *domain.ClubMembership) error {
	query := `
		INSERT INTO club_memberships (club_id, user_id, role, created_at, end_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query, m.ClubID, m.UserID, string(m.Role), m.CreatedAt, m.EndDate).Scan(&m.ID)
	if err != nil {
		switch {
		case isUniqueViolation(err, constraintMembershipUserClub):
			return domain.ErrAlreadyMember
		case isUniqueViolation(err, constraintMembershipSingleOwner):
			return fmt.Errorf("%w: club already has an owner", domain.ErrConflict)
		case isForeignKeyViolation(err):
			return fmt.Errorf("%w: unknown club or user", domain.ErrNotFound)
		}
		return err
	}
	return nil
}

func (r *membershipRepository) GetByID(ctx context.Context, id string) (*domain.ClubMembership, error) {
	query := `SELECT ` + membershipColumns + ` FROM club_memberships WHERE id = $1`
	return scanMembership(r.DB.QueryRowContext(ctx, query, id))
}

func (r *membershipRepository) GetByClubAndUser(ctx context.Context, clubID, userID string) (*domain.ClubMembership, error) {
	query := `SELECT ` + membershipColumns + ` FROM club_memberships WHERE club_id = $1 AND user_id = $2`
	return scanMembership(r.DB.QueryRowContext(ctx, query, clubID, userID))
}

func (r *membershipRepository) ExistsByClubAndEmail(ctx context.Context, clubID, email string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM club_memberships m
			JOIN users u ON u.id = m.user_id
			WHERE m.club_id = $1 AND lower(u.email) = lower($2)
		)
	`
	var exists bool
	if err := r.DB.QueryRowContext(ctx, query, clubID, email).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

const clubMemberSelect = `
	SELECT m.id, m.club_id, m.user_id, m.role, u.name, u.email, m.created_at, m.end_date
	FROM club_memberships m
	JOIN users u ON u.id = m.user_id
`

func scanClubMembers(rows *sql.Rows) ([]*domain.ClubMember, error) {
	defer rows.Close()
	members := make([]*domain.ClubMember, 0)
	for rows.Next() {
		m := &domain.ClubMember{}
		var endDate sql.NullTime
		if err := rows.Scan(&m.MembershipID, &m.ClubID, &m.UserID, &m.Role, &m.Name, &m.Email, &m.CreatedAt, &endDate); err != nil {
			return nil, err
		}
		m.EndDate = nullTimePtr(endDate)
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *membershipRepository) ListByClubID(ctx context.Context, clubID string, params domain.PaginationParams) ([]*domain.ClubMember, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM club_memberships WHERE club_id = $1`
	if err := r.DB.QueryRowContext(ctx, countQuery, clubID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := clubMemberSelect + `
		WHERE m.club_id = $1
		ORDER BY m.created_at, m.id
		LIMIT $2 OFFSET $3
	`
	rows, err := r.DB.QueryContext(ctx, query, clubID, params.PageSize, params.Offset())
	if err != nil {
		return nil, 0, err
	}
	members, err := scanClubMembers(rows)
	if err != nil {
		return nil, 0, err
	}
	return members, total, nil
}

func (r *membershipRepository) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	query := `UPDATE club_memberships SET role = $2 WHERE id = $1`
	result, err := r.DB.ExecContext(ctx, query, id, string(role))
	if err != nil {
		if isUniqueViolation(err, constraintMembershipSingleOwner) {
			return fmt.Errorf("%w: club already has an owner", domain.ErrConflict)
		}
		return err
	}
	return affectedOne(result, domain.ErrMembershipNotFound)
}

func (r *membershipRepository) Delete(ctx context.Context, id string) error {
	result, err := r.DB.ExecContext(ctx, `DELETE FROM club_memberships WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return affectedOne(result, domain.ErrMembershipNotFound)
}

func (r *membershipRepository) ListEndingBetween(ctx context.Context, from, to time.Time) ([]*domain.ClubMember, error) {
	query := clubMemberSelect + `
		WHERE m.end_date >= $1 AND m.end_date < $2 AND m.reminder_sent_at IS NULL
		ORDER BY m.end_date
	`
	rows, err := r.DB.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	return scanClubMembers(rows)
}

func (r *membershipRepository) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	result, err := r.DB.ExecContext(ctx, `UPDATE club_memberships SET reminder_sent_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	return affectedOne(result, domain.ErrMembershipNotFound)
}
