package identity

import (
	"context"
	"reflect"
)

// LoginListener observes successful authentications. Listeners run inline
// after credential verification and before the caller gets its token;
// listener failures must be swallowed by the listener itself.
type LoginListener func(ctx context.Context, identity Identity)

type Auther struct {
	provider        IdentityProvider
	signingKey      []byte
	signingMethod   string
	tokenExpiration int
	issuer          string
	audience        []string
	logger          Logger
	tokenService    TokenService
	rememberMe      *RememberMeStore
	listeners       []LoginListener
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, opts Config) *Auther {
	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetTokenExpiration(),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	).WithSigningMethod(opts.GetSigningMethod())

	return &Auther{
		provider:        provider,
		signingKey:      []byte(opts.GetSigningKey()),
		signingMethod:   opts.GetSigningMethod(),
		tokenExpiration: opts.GetTokenExpiration(),
		audience:        opts.GetAudience(),
		issuer:          opts.GetIssuer(),
		logger:          defLogger{},
		tokenService:    tokenService,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = logger
	s.tokenService = NewTokenService(
		s.signingKey,
		s.tokenExpiration,
		s.issuer,
		s.audience,
		logger,
	).WithSigningMethod(s.signingMethod)
	return s
}

// WithTokenService replaces the default token service, mostly for tests.
func (s *Auther) WithTokenService(ts TokenService) *Auther {
	if ts != nil {
		s.tokenService = ts
	}
	return s
}

// WithRememberMeStore enables persistent logins backed by the given token
// table.
func (s *Auther) WithRememberMeStore(store *RememberMeStore) *Auther {
	s.rememberMe = store
	return s
}

// WithLoginListener appends an observer invoked after each successful
// authentication. The identity synchronizer registers itself here.
func (s *Auther) WithLoginListener(listener LoginListener) *Auther {
	if listener != nil {
		s.listeners = append(s.listeners, listener)
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// RememberMeStore returns the remember-me token table, nil when persistent
// logins are disabled.
func (s *Auther) RememberMeStore() *RememberMeStore {
	return s.rememberMe
}

// Login verifies the identifier and password and returns a signed session
// credential. The identifier may be a username or an email; a lookup miss
// and a password miss report the same failure.
func (s *Auther) Login(ctx context.Context, identifier, password string) (string, error) {
	var err error
	var identity Identity

	if identity, err = s.provider.VerifyIdentity(ctx, identifier, password); err != nil {
		s.logger.Error("Login verify identity error: %s", err)
		return "", err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Login identity is nil or zero value")
		return "", ErrIdentityNotFound
	}

	s.notifyLogin(ctx, identity)

	return s.tokenService.Generate(identity)
}

// RememberedLogin resolves a remember-me token into a fresh session
// credential. An unknown, expired, or orphaned token fails without
// distinguishing the cases.
func (s *Auther) RememberedLogin(ctx context.Context, rememberToken string) (string, error) {
	if s.rememberMe == nil {
		return "", ErrIdentityNotFound
	}

	user, err := s.rememberMe.Validate(ctx, rememberToken)
	if err != nil {
		return "", err
	}

	identity := identityFromUser(user)
	s.notifyLogin(ctx, identity)

	return s.tokenService.Generate(identity)
}

// RememberSession mints a remember-me token for the identity; it returns
// the empty string when persistent logins are disabled.
func (s *Auther) RememberSession(identity Identity) string {
	if s.rememberMe == nil || identity == nil {
		return ""
	}
	return s.rememberMe.Issue(identity)
}

// ForgetRememberedSession drops a remember-me token on logout.
func (s *Auther) ForgetRememberedSession(rememberToken string) {
	if s.rememberMe == nil || rememberToken == "" {
		return
	}
	s.rememberMe.Forget(rememberToken)
}

// PrincipalFromToken verifies a session credential and rebuilds the caller
// it was issued for.
func (s *Auther) PrincipalFromToken(token string) (*Principal, error) {
	principal, err := s.tokenService.Principal(token)
	if err != nil {
		s.logger.Error("PrincipalFromToken validation failed: %s", err)
		return nil, err
	}
	return principal, nil
}

// IdentityFromPrincipal resolves the principal's username back through the
// credential store.
func (s *Auther) IdentityFromPrincipal(ctx context.Context, principal *Principal) (Identity, error) {
	if principal == nil || principal.Username == "" {
		return nil, ErrIdentityNotFound
	}

	identity, err := s.provider.FindIdentityByIdentifier(ctx, principal.Username)
	if err != nil {
		s.logger.Error("IdentityFromPrincipal find identity by identifier: %s", err)
		return nil, err
	}

	return identity, nil
}

// CurrentIdentity resolves the identity of the authenticated caller bound
// to the context, or reports it absent when no caller is bound.
func (s *Auther) CurrentIdentity(ctx context.Context) (Identity, error) {
	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		return nil, ErrIdentityNotFound
	}
	return s.IdentityFromPrincipal(ctx, principal)
}

func (s *Auther) notifyLogin(ctx context.Context, identity Identity) {
	for _, listener := range s.listeners {
		listener(ctx, identity)
	}
}

var _ Authenticator = (*Auther)(nil)
