package domain

import "time"

// Principal is the authenticated staff member behind a request.
type Principal struct {
	UserID string
	UID    string
	Role   Role
	Email  string
}

// HasRole reports whether the principal holds one of roles.
func (p Principal) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// Token represents issued authentication token metadata.
type Token struct {
	ID        string
	SubjectID string
	Role      Role
	ExpiresAt time.Time
	IssuedAt  time.Time
}
