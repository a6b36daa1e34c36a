package domain

import (
	"context"
	"time"
)

// Club is an airsoft club. Only the fields this service needs are mapped.
// swagger:model Club
type Club struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Banned     bool       `json:"banned"`
	BanReason  *string    `json:"ban_reason,omitempty"`
	BanExpires *time.Time `json:"ban_expires,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ClubRepository defines read access to clubs.
type ClubRepository interface {
	GetByID(ctx context.Context, id string) (*Club, error)
}
