package auth

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Role is a position in the role hierarchy
type Role string

const (
	RoleClientUser  Role = "CLIENT_USER"  // Sees and edits own incidents
	RoleClientAdmin Role = "CLIENT_ADMIN" // Updates any incident, limited status transitions
	RoleAnalyst     Role = "ANALYST"      // Full access
)

var roleRank = map[Role]int{
	RoleClientUser:  1,
	RoleClientAdmin: 2,
	RoleAnalyst:     3,
}

// Roles returns every role ordered from lowest to highest rank
func Roles() []Role {
	return []Role{RoleClientUser, RoleClientAdmin, RoleAnalyst}
}

// Rank returns the numeric rank of the role. Unknown roles rank 0.
func (r Role) Rank() int {
	return roleRank[r]
}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// ParseRole parses a role name, case-insensitively
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// User is the authenticated principal projection passed through the request path
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  Role   `json:"role"`
}

// HasRole reports whether the user's rank is at least the required rank
func (u *User) HasRole(required Role) bool {
	return HasRole(u, required)
}

// HasRole reports whether user's rank is at least the rank of required.
// A nil user or an unknown role satisfies nothing.
func HasRole(user *User, required Role) bool {
	if user == nil || !user.Role.Valid() || !required.Valid() {
		return false
	}
	return user.Role.Rank() >= required.Rank()
}

// Account is the stored user record including credentials
type Account struct {
	User
	PasswordHash string     `json:"-"` // Never expose hash
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// UserStore persists user accounts
type UserStore interface {
	// GetUserByEmail returns the account or nil if no such email exists
	GetUserByEmail(ctx context.Context, email string) (*Account, error)
	// GetUser returns the account or nil if no such id exists
	GetUser(ctx context.Context, id string) (*Account, error)
	CreateUser(ctx context.Context, account *Account) error
	RecordLogin(ctx context.Context, userID string, at time.Time) error
}
