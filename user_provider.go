package identity

import (
	"context"
	"strconv"

	"github.com/goliatone/go-errors"
)

// UserProvider resolves identities out of a credential store and verifies
// passwords against the stored hash.
type UserProvider struct {
	store     UserStore
	passwords PasswordAuthenticator
	logger    Logger
}

// NewUserProvider will create a new UserProvider
func NewUserProvider(store UserStore) *UserProvider {
	return &UserProvider{
		store:     store,
		passwords: defaultHasher,
		logger:    defLogger{},
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	if l != nil {
		u.logger = l
	}
	return u
}

// WithPasswordAuthenticator swaps the credential verifier, e.g. for a
// cheaper work factor in tests.
func (u *UserProvider) WithPasswordAuthenticator(p PasswordAuthenticator) *UserProvider {
	if p != nil {
		u.passwords = p
	}
	return u
}

// VerifyIdentity will find the user, compare the password, and return the
// identity. A lookup miss and a password miss collapse into the same error
// so callers never learn which half failed.
func (u *UserProvider) VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error) {
	user, err := u.lookup(ctx, identifier)
	if err != nil {
		if errors.IsNotFound(err) {
			u.logger.Debug("VerifyIdentity lookup miss for %s", identifier)
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user during verification")
	}

	if err := u.passwords.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		u.logger.Debug("VerifyIdentity password mismatch for %s", identifier)
		return nil, ErrMismatchedHashAndPassword
	}

	return identityFromUser(user), nil
}

// FindIdentityByIdentifier resolves an identity without touching the
// password credential.
func (u *UserProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	user, err := u.lookup(ctx, identifier)
	if err != nil {
		return nil, err
	}

	return identityFromUser(user), nil
}

// lookup tries the username first and falls back to the email.
func (u *UserProvider) lookup(ctx context.Context, identifier string) (*User, error) {
	user, err := u.store.FindByUsername(ctx, identifier)
	if err == nil {
		return user, nil
	}
	if !errors.IsNotFound(err) {
		return nil, err
	}

	return u.store.FindByEmail(ctx, identifier)
}

type authIdentity struct {
	id       int64
	username string
	email    string
	roles    []string
}

func identityFromUser(user *User) authIdentity {
	return authIdentity{
		id:       user.ID,
		username: user.Username,
		email:    user.Email,
		roles:    cloneRoles(user.Roles),
	}
}

func (a authIdentity) ID() string {
	return strconv.FormatInt(a.id, 10)
}

func (a authIdentity) Username() string {
	return a.username
}

func (a authIdentity) Email() string {
	return a.email
}

func (a authIdentity) Roles() []string {
	return cloneRoles(a.roles)
}

var _ Identity = authIdentity{}
var _ IdentityProvider = (*UserProvider)(nil)
