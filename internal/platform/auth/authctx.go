package auth

import "context"

// AuthContext is the caller identity handed explicitly to report operations.
type AuthContext struct {
	UserID   string
	Roles    []string
	ClinicID string
}

// IsAdmin reports whether the caller holds the administrative role.
func (a AuthContext) IsAdmin() bool {
	for _, r := range a.Roles {
		if r == RoleAdmin {
			return true
		}
	}
	return false
}

// FromContext builds an AuthContext from the identity placed on ctx by the
// JWT or development middleware.
func FromContext(ctx context.Context, clinicID string) AuthContext {
	return AuthContext{
		UserID:   UserIDFromContext(ctx),
		Roles:    RolesFromContext(ctx),
		ClinicID: clinicID,
	}
}
