package auth

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/surplus-engine/pkg/enums"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

func (a Actor) IsZero() bool {
	return a.UserID == uuid.Nil
}

func (a Actor) IsAdmin() bool {
	return a.Role == enums.UserRoleAdmin
}

func (a Actor) Is(role enums.UserRole) bool {
	return a.Role == role
}
