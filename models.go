package identity

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// RoleLabel is a capability tag attached to an identity. No hierarchy, set
// membership only.
type RoleLabel = string

const (
	// RoleUser is granted to every identity at creation
	RoleUser RoleLabel = "USER"
	// RoleAdmin unlocks the admin role-management surface
	RoleAdmin RoleLabel = "ADMIN"
)

// User is the identity record shared by every credential store variant.
// Username and email are unique within whichever store is queried; the role
// set of a persisted identity is never empty.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID           int64      `bun:"id,pk,autoincrement" json:"id,omitempty"`
	Username     string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email        string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash string     `bun:"password_hash,notnull" json:"password_hash,omitempty"`
	FirstName    string     `bun:"first_name" json:"first_name,omitempty"`
	LastName     string     `bun:"last_name" json:"last_name,omitempty"`
	Roles        []string   `bun:"roles" json:"roles,omitempty"`
	CreatedAt    *time.Time `bun:"created_at,nullzero" json:"created_at,omitempty"`
	UpdatedAt    *time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// HasRole reports set membership for a role label.
func (u *User) HasRole(role RoleLabel) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AddRole grants a role; granting an already present role is a no-op.
func (u *User) AddRole(role RoleLabel) *User {
	if role == "" || u.HasRole(role) {
		return u
	}
	u.Roles = append(u.Roles, role)
	return u
}

// RemoveRole revokes a role; revoking an absent role is a no-op.
func (u *User) RemoveRole(role RoleLabel) *User {
	for i, r := range u.Roles {
		if r == role {
			u.Roles = append(u.Roles[:i], u.Roles[i+1:]...)
			return u
		}
	}
	return u
}

// Touch bumps the updated timestamp.
func (u *User) Touch() *User {
	now := time.Now()
	u.UpdatedAt = &now
	return u
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	record.Roles = normalizeRoles(record.Roles)
	if len(record.Roles) == 0 {
		record.Roles = []string{RoleUser}
	}
}

// normalizeRoles trims labels, drops empties, and deduplicates while keeping
// first-seen order.
func normalizeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	seen := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		if _, dup := seen[role]; dup {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	return out
}

// sameRoleSet compares role sets order-independently.
func sameRoleSet(a, b []string) bool {
	a = normalizeRoles(a)
	b = normalizeRoles(b)
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, role := range a {
		set[role] = struct{}{}
	}
	for _, role := range b {
		if _, ok := set[role]; !ok {
			return false
		}
	}
	return true
}

// joinRoles serializes a role set for single-attribute storage.
func joinRoles(roles []string) string {
	return strings.Join(normalizeRoles(roles), ",")
}

// splitRoles parses a comma-joined role attribute; empty or missing input
// yields an empty set.
func splitRoles(joined string) []string {
	if strings.TrimSpace(joined) == "" {
		return nil
	}
	return normalizeRoles(strings.Split(joined, ","))
}

func cloneRoles(roles []string) []string {
	if roles == nil {
		return nil
	}
	return append([]string(nil), roles...)
}
