package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"reconned/internal/domain"
)

type eventRegistrationRepository struct {
	DB DBTX
}

func NewEventRegistrationRepository(db DBTX) domain.EventRegistrationRepository {
	return &eventRegistrationRepository{
		DB: db,
	}
}

func (r *eventRegistrationRepository) Upsert(ctx context.Context, reg *domain.EventRegistration) (bool, error) {
	query := `
		INSERT INTO event_registrations (event_id, created_by_id, type, payment_method, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT ON CONSTRAINT event_registrations_event_creator_key DO UPDATE
		SET type = EXCLUDED.type, payment_method = EXCLUDED.payment_method, updated_at = EXCLUDED.updated_at
		RETURNING id, attended, created_at, (xmax = 0) AS inserted
	`
	var created bool
	err := r.DB.QueryRowContext(ctx, query,
		reg.EventID, reg.CreatedByID, string(reg.Type), string(reg.PaymentMethod), reg.CreatedAt, reg.UpdatedAt,
	).Scan(&reg.ID, &reg.Attended, &reg.CreatedAt, &created)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, domain.ErrEventNotFound
		}
		return false, err
	}
	return created, nil
}

const registrationColumns = `id, event_id, created_by_id, type, payment_method, attended, created_at, updated_at`

func (r *eventRegistrationRepository) getOne(ctx context.Context, query string, args ...any) (*domain.EventRegistration, error) {
	reg := &domain.EventRegistration{}
	err := r.DB.QueryRowContext(ctx, query, args...).
		Scan(&reg.ID, &reg.EventID, &reg.CreatedByID, &reg.Type, &reg.PaymentMethod, &reg.Attended, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRegistrationNotFound
		}
		return nil, err
	}
	return reg, nil
}

func (r *eventRegistrationRepository) GetByID(ctx context.Context, id string) (*domain.EventRegistration, error) {
	return r.getOne(ctx, `SELECT `+registrationColumns+` FROM event_registrations WHERE id = $1`, id)
}

func (r *eventRegistrationRepository) GetByEventAndUser(ctx context.Context, eventID, userID string) (*domain.EventRegistration, error) {
	query := `SELECT ` + registrationColumns + ` FROM event_registrations WHERE event_id = $1 AND created_by_id = $2`
	return r.getOne(ctx, query, eventID, userID)
}

func (r *eventRegistrationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.DB.ExecContext(ctx, `DELETE FROM event_registrations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return affectedOne(result, domain.ErrRegistrationNotFound)
}

func (r *eventRegistrationRepository) SetAttended(ctx context.Context, id string, attended bool, updatedAt time.Time) error {
	query := `UPDATE event_registrations SET attended = $2, updated_at = $3 WHERE id = $1`
	result, err := r.DB.ExecContext(ctx, query, id, attended, updatedAt)
	if err != nil {
		return err
	}
	return affectedOne(result, domain.ErrRegistrationNotFound)
}

func (r *eventRegistrationRepository) ReplaceInvitedUsers(ctx context.Context, registrationID string, userIDs []string) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM event_registration_invited_users WHERE event_registration_id = $1`, registrationID); err != nil {
		return err
	}
	if len(userIDs) == 0 {
		return nil
	}
	query := `
		INSERT INTO event_registration_invited_users (event_registration_id, user_id)
		SELECT $1, unnest($2::uuid[])
	`
	if _, err := r.DB.ExecContext(ctx, query, registrationID, pq.Array(userIDs)); err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: unknown invited user", domain.ErrInvalidInput)
		}
		return err
	}
	return nil
}

func (r *eventRegistrationRepository) ListInvitedUserIDs(ctx context.Context, registrationID string) ([]string, error) {
	query := `
		SELECT user_id
		FROM event_registration_invited_users
		WHERE event_registration_id = $1
		ORDER BY user_id
	`
	rows, err := r.DB.QueryContext(ctx, query, registrationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *eventRegistrationRepository) ReplaceInviteesNotOnApp(ctx context.Context, registrationID string, invitees []*domain.EventInviteNotOnApp) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM event_invites_not_on_app WHERE event_registration_id = $1`, registrationID); err != nil {
		return err
	}
	query := `
		INSERT INTO event_invites_not_on_app (event_registration_id, name, email, token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	for _, inv := range invitees {
		inv.EventRegistrationID = registrationID
		if err := r.DB.QueryRowContext(ctx, query, registrationID, inv.Name, inv.Email, inv.Token, inv.ExpiresAt, inv.CreatedAt).Scan(&inv.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *eventRegistrationRepository) ListInviteesNotOnApp(ctx context.Context, registrationID string) ([]*domain.EventInviteNotOnApp, error) {
	query := `
		SELECT id, event_registration_id, name, email, token, expires_at, created_at
		FROM event_invites_not_on_app
		WHERE event_registration_id = $1
		ORDER BY created_at, email
	`
	rows, err := r.DB.QueryContext(ctx, query, registrationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	invitees := make([]*domain.EventInviteNotOnApp, 0)
	for rows.Next() {
		inv := &domain.EventInviteNotOnApp{}
		if err := rows.Scan(&inv.ID, &inv.EventRegistrationID, &inv.Name, &inv.Email, &inv.Token, &inv.ExpiresAt, &inv.CreatedAt); err != nil {
			return nil, err
		}
		invitees = append(invitees, inv)
	}
	return invitees, rows.Err()
}
