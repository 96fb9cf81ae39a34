package identity

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAuthorityPrefix namespaces role labels when they travel as granted
// authorities, following the authorization convention of the backend.
const RoleAuthorityPrefix = "ROLE_"

// AuthClaims represents the structured claims of a validated session
// credential.
type AuthClaims interface {
	Subject() string
	Username() string
	AuthorityList() []string
	RoleList() []string
	HasRole(role string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete claim set: subject carries the username and the
// auth claim carries the comma-joined role authorities.
type JWTClaims struct {
	jwt.RegisteredClaims
	Authorities string `json:"auth,omitempty"`
}

var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// Username returns the identity name the token was issued for.
func (c *JWTClaims) Username() string {
	return c.RegisteredClaims.Subject
}

// AuthorityList splits the auth claim, discarding empty segments.
func (c *JWTClaims) AuthorityList() []string {
	return splitAuthorities(c.Authorities)
}

// RoleList strips the authority prefix back off each granted authority.
func (c *JWTClaims) RoleList() []string {
	authorities := c.AuthorityList()
	roles := make([]string, 0, len(authorities))
	for _, authority := range authorities {
		roles = append(roles, strings.TrimPrefix(authority, RoleAuthorityPrefix))
	}
	return roles
}

// HasRole accepts either a bare role label or a prefixed authority.
func (c *JWTClaims) HasRole(role string) bool {
	want := AuthorityForRole(role)
	for _, authority := range c.AuthorityList() {
		if authority == want {
			return true
		}
	}
	return false
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// AuthorityForRole namespaces a role label unless it already is an
// authority.
func AuthorityForRole(role string) string {
	role = strings.TrimSpace(role)
	if role == "" || strings.HasPrefix(role, RoleAuthorityPrefix) {
		return role
	}
	return RoleAuthorityPrefix + role
}

// JoinAuthorities serializes a role set into the auth claim value.
func JoinAuthorities(roles []string) string {
	authorities := make([]string, 0, len(roles))
	for _, role := range normalizeRoles(roles) {
		authorities = append(authorities, AuthorityForRole(role))
	}
	return strings.Join(authorities, ",")
}

func splitAuthorities(joined string) []string {
	if strings.TrimSpace(joined) == "" {
		return nil
	}

	parts := strings.Split(joined, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// Principal is the authenticated caller reconstructed from a validated
// session credential.
type Principal struct {
	Username    string
	Authorities []string
}

// HasAuthority reports membership of an exact granted authority.
func (p *Principal) HasAuthority(authority string) bool {
	if p == nil {
		return false
	}
	for _, a := range p.Authorities {
		if a == authority {
			return true
		}
	}
	return false
}

// HasRole reports whether the principal carries the role, namespaced per
// the authorization convention.
func (p *Principal) HasRole(role string) bool {
	return p.HasAuthority(AuthorityForRole(role))
}

// PrincipalFromClaims rebuilds the principal from a token assumed already
// validated.
func PrincipalFromClaims(claims AuthClaims) *Principal {
	if claims == nil {
		return nil
	}
	return &Principal{
		Username:    claims.Username(),
		Authorities: claims.AuthorityList(),
	}
}
