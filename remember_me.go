package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// RememberMeCookieName is the cookie the remember-me token travels in.
	RememberMeCookieName = "remember-me"
	// DefaultRememberMeTTL is the remember-me token lifetime.
	DefaultRememberMeTTL = 14 * 24 * time.Hour
)

type rememberedSession struct {
	username  string
	expiresAt time.Time
}

// RememberMeStore is the in-process expiring token table behind persistent
// login. Entries map an opaque random token to a username and expiry;
// expired entries are deleted lazily on first access and there is no
// sliding expiration. The table is volatile: a process restart forgets
// every remembered session.
type RememberMeStore struct {
	users  UserStore
	ttl    time.Duration
	logger Logger
	now    func() time.Time

	mu     sync.RWMutex
	tokens map[string]rememberedSession
}

type RememberMeOption func(*RememberMeStore)

// WithRememberMeTTL overrides the 14 day token lifetime.
func WithRememberMeTTL(ttl time.Duration) RememberMeOption {
	return func(s *RememberMeStore) {
		if ttl != 0 {
			s.ttl = ttl
		}
	}
}

// WithRememberMeClock overrides the time source, used by tests to force
// expiry.
func WithRememberMeClock(now func() time.Time) RememberMeOption {
	return func(s *RememberMeStore) {
		if now != nil {
			s.now = now
		}
	}
}

func WithRememberMeLogger(l Logger) RememberMeOption {
	return func(s *RememberMeStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewRememberMeStore builds a token table resolving usernames through the
// given credential store.
func NewRememberMeStore(users UserStore, opts ...RememberMeOption) *RememberMeStore {
	s := &RememberMeStore{
		users:  users,
		ttl:    DefaultRememberMeTTL,
		logger: defLogger{},
		now:    time.Now,
		tokens: make(map[string]rememberedSession),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Issue mints a cryptographically random token bound to the identity for
// the configured lifetime.
func (s *RememberMeStore) Issue(identity Identity) string {
	token := uuid.NewString()

	s.mu.Lock()
	s.tokens[token] = rememberedSession{
		username:  identity.Username(),
		expiresAt: s.now().Add(s.ttl),
	}
	s.mu.Unlock()

	return token
}

// Validate resolves a token back to its identity. An unknown token is
// absent; an expired token is deleted and absent; a live token is resolved
// through the credential store without extending its lifetime.
func (s *RememberMeStore) Validate(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrIdentityNotFound
	}

	s.mu.RLock()
	entry, ok := s.tokens[token]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrIdentityNotFound
	}

	if s.now().After(entry.expiresAt) {
		s.logger.Debug("remember-me token for %s expired, dropping it", entry.username)
		s.Forget(token)
		return nil, ErrIdentityNotFound
	}

	return s.users.FindByUsername(ctx, entry.username)
}

// Forget drops a token; dropping an absent token is a no-op, so concurrent
// expiry deletes stay idempotent.
func (s *RememberMeStore) Forget(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

// Len reports the number of live plus not-yet-collected entries.
func (s *RememberMeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}
