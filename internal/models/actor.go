package models

import (
	"github.com/directaid/backend/internal/rbac"
	"github.com/google/uuid"
)

// Actor is whoever initiated an operation: a signed-in user or the system
// (payment webhooks, workers).
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role string    `json:"role"`
}

var SystemActor = Actor{Role: rbac.RoleSystem}

func (a Actor) IsAdmin() bool { return rbac.IsAdmin(a.Role) }

// Ref returns the actor id for audit rows; nil for the system.
func (a Actor) Ref() *uuid.UUID {
	if a.ID == uuid.Nil {
		return nil
	}
	id := a.ID
	return &id
}
