package domain

// Role distinguishes primary account holders from delegated sub-accounts.
type Role string

const (
	RoleOwner      Role = "owner"
	RoleSubAccount Role = "sub_account"
)

// Caller is the authenticated identity handed to every manager call.
// For an owner ID == OwnerID.
type Caller struct {
	ID      string
	OwnerID string
	Role    Role
}

// Owner builds the caller identity of a primary account holder.
func Owner(id string) Caller {
	return Caller{ID: id, OwnerID: id, Role: RoleOwner}
}

// SubAccount builds the caller identity of a sub-account acting for ownerID.
func SubAccount(id, ownerID string) Caller {
	return Caller{ID: id, OwnerID: ownerID, Role: RoleSubAccount}
}

func (c Caller) IsOwner() bool { return c.Role == RoleOwner }

// Validate rejects an identity that cannot be attributed to an owner.
func (c Caller) Validate() error {
	if c.ID == "" || c.OwnerID == "" {
		return Validationf("caller identity is incomplete")
	}
	switch c.Role {
	case RoleOwner:
		if c.ID != c.OwnerID {
			return Validationf("owner caller must act for itself")
		}
	case RoleSubAccount:
	default:
		return Validationf("unknown caller role %q", c.Role)
	}
	return nil
}

// RequireOwner returns ErrForbidden unless the caller is a primary account holder.
func (c Caller) RequireOwner(action string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if !c.IsOwner() {
		return Forbidden("%s requires the primary account", action)
	}
	return nil
}
