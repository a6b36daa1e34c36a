package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
)

// DBTX is satisfied by *sql.DB and *sql.Tx so repositories run unchanged
// inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Postgres error codes.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Constraint names from schema.sql that map to domain conflicts.
const (
	constraintActiveInvitation      = "club_invitations_active_email_idx"
	constraintMembershipUserClub    = "club_memberships_user_club_key"
	constraintMembershipSingleOwner = "club_memberships_single_owner_idx"
)

// pgError returns the postgres error code and constraint of err, if any.
func pgError(err error) (code, constraint string, ok bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint, true
	}
	return "", "", false
}

func isUniqueViolation(err error, constraint string) bool {
	code, c, ok := pgError(err)
	return ok && code == codeUniqueViolation && c == constraint
}

func isForeignKeyViolation(err error) bool {
	code, _, ok := pgError(err)
	return ok && code == codeForeignKeyViolation
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// affectedOne maps a zero-row write to notFound.
func affectedOne(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
