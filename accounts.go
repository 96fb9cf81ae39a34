package identity

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
)

// RegisterUserMessage is the registration payload.
type RegisterUserMessage struct {
	Username  string `form:"username" json:"username"`
	Email     string `form:"email" json:"email"`
	Password  string `form:"password" json:"password"`
	FirstName string `form:"first_name" json:"first_name"`
	LastName  string `form:"last_name" json:"last_name"`
}

func (m RegisterUserMessage) Type() string { return "user.register" }

// Validate will run validation rules
func (m RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Username, validation.Required, validation.Length(3, 50)),
		validation.Field(&m.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&m.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(&m.FirstName, validation.Length(0, 200)),
		validation.Field(&m.LastName, validation.Length(0, 200)),
	)
}

// AccountManager owns registration and role grant/revoke against the
// active credential store.
type AccountManager struct {
	store     UserStore
	sync      *Synchronizer
	passwords PasswordAuthenticator
	logger    Logger
}

type AccountManagerOption func(*AccountManager)

// WithAccountSynchronizer mirrors newly registered identities into the
// relational store when the file source is active.
func WithAccountSynchronizer(sync *Synchronizer) AccountManagerOption {
	return func(m *AccountManager) {
		m.sync = sync
	}
}

func WithAccountLogger(l Logger) AccountManagerOption {
	return func(m *AccountManager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithAccountPasswordAuthenticator swaps the password hasher used for new
// registrations.
func WithAccountPasswordAuthenticator(p PasswordAuthenticator) AccountManagerOption {
	return func(m *AccountManager) {
		if p != nil {
			m.passwords = p
		}
	}
}

func NewAccountManager(store UserStore, opts ...AccountManagerOption) *AccountManager {
	m := &AccountManager{
		store:     store,
		passwords: defaultHasher,
		logger:    defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// Register creates a new identity with the default role. A taken username
// or email fails with a conflict; the store's uniqueness constraint stays
// the authoritative guard when two registrations race the existence
// checks.
func (m *AccountManager) Register(ctx context.Context, msg RegisterUserMessage) (*User, error) {
	if err := msg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid registration payload")
	}

	if taken, err := m.store.ExistsByUsername(ctx, msg.Username); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrDuplicateUsername
	}

	if taken, err := m.store.ExistsByEmail(ctx, msg.Email); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrDuplicateEmail
	}

	hash, err := m.passwords.HashPassword(msg.Password)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
	}

	now := time.Now()
	user := &User{
		Username:     msg.Username,
		Email:        msg.Email,
		PasswordHash: hash,
		FirstName:    msg.FirstName,
		LastName:     msg.LastName,
		Roles:        []string{RoleUser},
		CreatedAt:    &now,
		UpdatedAt:    &now,
	}

	user, err = m.store.Save(ctx, user)
	if err != nil {
		return nil, err
	}

	m.syncRegistered(ctx, user.Username)

	return user, nil
}

// AddRole grants a role and persists; granting a role the identity already
// carries is a no-op at the data level.
func (m *AccountManager) AddRole(ctx context.Context, user *User, role RoleLabel) (*User, error) {
	if user.HasRole(role) {
		return user, nil
	}

	user.AddRole(role).Touch()
	return m.store.Save(ctx, user)
}

// RemoveRole revokes a role and persists; revoking an absent role is a
// no-op at the data level.
func (m *AccountManager) RemoveRole(ctx context.Context, user *User, role RoleLabel) (*User, error) {
	if !user.HasRole(role) {
		return user, nil
	}

	user.RemoveRole(role).Touch()
	return m.store.Save(ctx, user)
}

// syncRegistered mirrors the fresh registration right away instead of
// waiting for the first login.
func (m *AccountManager) syncRegistered(ctx context.Context, username string) {
	if !m.sync.Enabled() {
		return
	}
	if _, err := m.sync.SynchronizeUser(ctx, username); err != nil {
		m.logger.Error("failed to synchronize registered user %s: %s", username, err)
	}
}
