package identity

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/skyexplorer/go-identity/middleware/jwtware"
)

// LoginRequest is the boundary shape of a password login.
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
}

func (r LoginRequest) GetIdentifier() string { return r.Identifier }
func (r LoginRequest) GetPassword() string   { return r.Password }
func (r LoginRequest) GetRememberMe() bool   { return r.RememberMe }

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

var _ LoginPayload = LoginRequest{}

type RouteAuthenticator struct {
	auth               *Auther
	cfg                Config
	cookieDuration     time.Duration
	rememberMeDuration time.Duration
	Logger             Logger
	AuthErrorHandler   func(c router.Context, err error) error
	ErrorHandler       func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther *Auther, cfg Config) (*RouteAuthenticator, error) {
	cookieDuration := 24 * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	rememberMeDuration := DefaultRememberMeTTL
	if cfg.GetRememberMeDuration() > 0 {
		rememberMeDuration = time.Duration(cfg.GetRememberMeDuration()) * time.Hour
	}

	a := &RouteAuthenticator{
		cfg:                cfg,
		auth:               auther,
		Logger:             defLogger{},
		cookieDuration:     cookieDuration,
		rememberMeDuration: rememberMeDuration,
	}

	a.ErrorHandler = a.defaultErrHandler
	a.AuthErrorHandler = a.defaultAuthErrHandler

	return a, nil
}

func (a RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

func (a RouteAuthenticator) GetRememberMeDuration() time.Duration {
	return a.rememberMeDuration
}

// ProtectedRoute guards a route behind a valid session credential, binding
// the authenticated principal to the request context.
func (a *RouteAuthenticator) ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return a.protected(cfg, "", errorHandler)
}

// RequireRole guards a route behind a valid session credential carrying the
// given role.
func (a *RouteAuthenticator) RequireRole(cfg Config, role string, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return a.protected(cfg, role, errorHandler)
}

func (a *RouteAuthenticator) protected(cfg Config, role string, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		ErrorHandler:   errorHandler,
		TokenValidator: routeTokenValidator{a.auth.TokenService()},
		AuthScheme:     cfg.GetAuthScheme(),
		ContextKey:     cfg.GetContextKey(),
		TokenLookup:    cfg.GetTokenLookup(),
		RequiredRole:   role,
		ContextEnricher: func(c context.Context, claims jwtware.AuthClaims) context.Context {
			return WithPrincipal(c, &Principal{
				Username:    claims.Username(),
				Authorities: claims.AuthorityList(),
			})
		},
	})
}

// Login authenticates the payload and binds the session cookie. A requested
// remember-me session additionally mints a persistent token cookie.
func (a *RouteAuthenticator) Login(ctx router.Context, payload LoginPayload) error {
	token, err := a.auth.Login(ctx.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Error("Login error: %s", err)
		return err
	}

	a.setCookieToken(ctx, token, a.cookieDuration)

	if payload.GetRememberMe() {
		if err := a.rememberSession(ctx, payload.GetIdentifier()); err != nil {
			a.Logger.Error("Login failed to establish remembered session: %s", err)
		}
	}

	return nil
}

// RestoreSession exchanges a live remember-me cookie for a fresh session
// credential. A dead token clears the cookie and reports the session absent.
func (a *RouteAuthenticator) RestoreSession(ctx router.Context) error {
	rememberToken := ctx.Cookies(RememberMeCookieName)
	if rememberToken == "" {
		return ErrIdentityNotFound
	}

	token, err := a.auth.RememberedLogin(ctx.Context(), rememberToken)
	if err != nil {
		a.cookieDel(ctx, RememberMeCookieName)
		return err
	}

	a.setCookieToken(ctx, token, a.cookieDuration)
	return nil
}

// Logout drops the session cookie and invalidates any remembered session.
func (a *RouteAuthenticator) Logout(ctx router.Context) {
	if rememberToken := ctx.Cookies(RememberMeCookieName); rememberToken != "" {
		a.auth.ForgetRememberedSession(rememberToken)
		a.cookieDel(ctx, RememberMeCookieName)
	}
	a.cookieDel(ctx, a.cfg.GetContextKey())
}

func (a *RouteAuthenticator) MakeClientRouteAuthErrorHandler(optional bool) func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		var richErr *errors.Error

		if errors.Is(err, jwtware.ErrAccessDenied) {
			richErr = ErrAccessDenied
		} else if IsTokenExpiredError(err) {
			richErr = ErrTokenExpired
		} else if IsMalformedError(err) {
			richErr = ErrTokenMalformed
		} else {
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
				WithCode(errors.CodeUnauthorized)
		}

		if optional {
			a.Logger.Info("Optional auth failed, proceeding: %s", richErr.Message)
			return ctx.Next()
		}

		return a.ErrorHandler(ctx, richErr)
	}
}

func (a *RouteAuthenticator) rememberSession(ctx router.Context, identifier string) error {
	identity, err := a.auth.provider.FindIdentityByIdentifier(ctx.Context(), identifier)
	if err != nil {
		return err
	}

	rememberToken := a.auth.RememberSession(identity)
	if rememberToken == "" {
		return nil
	}

	ctx.Cookie(&router.Cookie{
		Name:     RememberMeCookieName,
		Value:    rememberToken,
		Path:     "/",
		Expires:  time.Now().Add(a.rememberMeDuration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
	return nil
}

func (a *RouteAuthenticator) setCookieToken(c router.Context, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     a.cfg.GetContextKey(),
		Value:    val,
		Path:     "/",
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultAuthErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "An unexpected authentication error").
			WithCode(errors.CodeUnauthorized)
	}

	a.Logger.Info(
		"Authentication error %s (%s) at %s",
		richErr.Message,
		richErr.TextCode,
		c.OriginalURL(),
	)

	return c.JSON(richErr.Code, map[string]any{
		"error": richErr,
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Info(
		"Middleware error handler %s (%s): %s",
		richErr.Message,
		richErr.Category,
		print.MaybePrettyJSON(richErr.Metadata),
	)

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return a.AuthErrorHandler(c, richErr)
	default:
		return c.JSON(richErr.Code, router.ViewContext{
			"error": richErr,
		})
	}
}

// routeTokenValidator bridges the token service into the middleware without
// an import cycle.
type routeTokenValidator struct {
	tokens TokenService
}

func (v routeTokenValidator) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := v.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}

	mirrored, ok := claims.(jwtware.AuthClaims)
	if !ok {
		return nil, ErrTokenMalformed
	}

	return mirrored, nil
}
