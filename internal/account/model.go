package account

import (
	"time"

	"github.com/kharcha-app/kharcha/internal/domain"
)

// User is a primary account holder or one of its sub-accounts.
type User struct {
	ID           string
	OwnerID      string
	Role         domain.Role
	Phone        string
	Name         string
	PINHash      []byte
	TokenVersion int
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// Caller is the identity this user acts under.
func (u User) Caller() domain.Caller {
	return domain.Caller{ID: u.ID, OwnerID: u.OwnerID, Role: u.Role}
}

// Credentials request structure.
type Credentials struct {
	Phone string
	PIN   string
}
