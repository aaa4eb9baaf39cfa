package domain

import (
	"time"

	"github.com/google/uuid"
)

// Backend is a stored daemon profile.
type Backend struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Label     string    `json:"label"`
	Target    Target    `json:"target"`
	ID        uuid.UUID `json:"id"`
	Active    bool      `json:"active"`
}
