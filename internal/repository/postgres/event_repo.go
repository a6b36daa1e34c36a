package postgres

import (
	"context"
	"database/sql"
	"errors"

	"reconned/internal/domain"
)

type eventRepository struct {
	DB DBTX
}

func NewEventRepository(db DBTX) domain.EventRepository {
	return &eventRepository{
		DB: db,
	}
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	query := `
		SELECT id, club_id, name, is_private, date_registrations_open, date_registrations_close, date_start, date_end, created_at
		FROM events
		WHERE id = $1
	`
	e := &domain.Event{}
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.ClubID, &e.Name, &e.IsPrivate,
		&e.DateRegistrationsOpen, &e.DateRegistrationsClose, &e.DateStart, &e.DateEnd, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEventNotFound
		}
		return nil, err
	}
	return e, nil
}
