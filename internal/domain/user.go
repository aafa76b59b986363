package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of caller roles.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleReviewer Role = "Reviewer"
)

// ParseRole accepts role names case-insensitively.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, nil
	case "reviewer", "":
		return RoleReviewer, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Privileged reports whether the role may see soft-deleted rows and
// administer movies.
func (r Role) Privileged() bool { return r == RoleAdmin }

// User is consumed read-only as the review author reference.
type User struct {
	ID        string
	Username  string
	Email     string
	Role      Role
	CreatedAt time.Time
}

// Principal is the authenticated caller as supplied by the auth layer.
// Anonymous callers have an empty UserID and the Reviewer role.
type Principal struct {
	UserID string
	Role   Role
}

// Anonymous returns the principal used for unauthenticated reads.
func Anonymous() Principal { return Principal{Role: RoleReviewer} }

// Authenticated reports whether the principal identifies a user.
func (p Principal) Authenticated() bool { return p.UserID != "" }
