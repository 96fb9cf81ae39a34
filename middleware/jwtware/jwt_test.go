package jwtware_test

import (
	"testing"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/skyexplorer/go-identity/middleware/jwtware"
)

type stubValidator struct{}

func (stubValidator) Validate(tokenString string) (jwtware.AuthClaims, error) {
	return nil, jwtware.ErrJWTMissingOrMalformed
}

type stubClaims struct {
	username string
	roles    []string
}

func (c stubClaims) Subject() string         { return c.username }
func (c stubClaims) Username() string        { return c.username }
func (c stubClaims) AuthorityList() []string { return c.roles }

func (c stubClaims) HasRole(role string) bool {
	for _, r := range c.roles {
		if r == role {
			return true
		}
	}
	return false
}

type claimsValidator struct {
	claims jwtware.AuthClaims
}

func (v claimsValidator) Validate(tokenString string) (jwtware.AuthClaims, error) {
	return v.claims, nil
}

func TestTokenFromHeader(t *testing.T) {
	t.Run("strips the auth scheme", func(t *testing.T) {
		token, err := jwtware.TokenFromHeader("Bearer abc.def.ghi", "Bearer")
		assert.NoError(t, err)
		assert.Equal(t, "abc.def.ghi", token)
	})

	t.Run("scheme match is case insensitive", func(t *testing.T) {
		token, err := jwtware.TokenFromHeader("bearer abc.def.ghi", "Bearer")
		assert.NoError(t, err)
		assert.Equal(t, "abc.def.ghi", token)
	})

	t.Run("missing scheme is malformed", func(t *testing.T) {
		_, err := jwtware.TokenFromHeader("abc.def.ghi", "Bearer")
		assert.ErrorIs(t, err, jwtware.ErrJWTMissingOrMalformed)
	})

	t.Run("empty header is malformed", func(t *testing.T) {
		_, err := jwtware.TokenFromHeader("", "Bearer")
		assert.ErrorIs(t, err, jwtware.ErrJWTMissingOrMalformed)
	})

	t.Run("empty scheme is malformed", func(t *testing.T) {
		_, err := jwtware.TokenFromHeader("Bearer abc", "")
		assert.ErrorIs(t, err, jwtware.ErrJWTMissingOrMalformed)
	})
}

func TestGetExtractors(t *testing.T) {
	t.Run("parses a multi source lookup", func(t *testing.T) {
		extractors := jwtware.GetExtractors("header:Authorization,cookie:jwt,query:auth_token,param:token")
		assert.Len(t, extractors, 4)
	})

	t.Run("ignores unknown sources", func(t *testing.T) {
		extractors := jwtware.GetExtractors("header:Authorization,session:jwt")
		assert.Len(t, extractors, 1)
	})
}

func TestJWTWare_RequiredRole(t *testing.T) {
	newCtx := func() *router.MockContext {
		ctx := router.NewMockContext()
		ctx.On("GetString", router.HeaderAuthorization, "").Return("Bearer abc.def.ghi")
		return ctx
	}

	passthrough := func(c router.Context) error { return nil }

	t.Run("missing role is access denied", func(t *testing.T) {
		handler := jwtware.New(jwtware.Config{
			TokenValidator: claimsValidator{stubClaims{username: "amelia", roles: []string{"USER"}}},
			RequiredRole:   "ADMIN",
			ErrorHandler: func(c router.Context, err error) error {
				return err
			},
		})(passthrough)

		err := handler(newCtx())
		require.Error(t, err)
		assert.ErrorIs(t, err, jwtware.ErrAccessDenied)
		assert.Contains(t, err.Error(), "ADMIN")
	})

	t.Run("matching role passes through", func(t *testing.T) {
		ctx := newCtx()
		ctx.On("Locals", "user", mock.Anything).Return(nil)

		handler := jwtware.New(jwtware.Config{
			TokenValidator: claimsValidator{stubClaims{username: "amelia", roles: []string{"USER", "ADMIN"}}},
			RequiredRole:   "ADMIN",
			ErrorHandler: func(c router.Context, err error) error {
				return err
			},
		})(passthrough)

		require.NoError(t, handler(ctx))
		assert.True(t, ctx.NextCalled)
	})

	t.Run("default error handler answers forbidden", func(t *testing.T) {
		ctx := newCtx()
		ctx.On("Status", router.StatusForbidden).Return(ctx)
		ctx.On("SendString", mock.AnythingOfType("string")).Return(nil)

		handler := jwtware.New(jwtware.Config{
			TokenValidator: claimsValidator{stubClaims{username: "amelia", roles: []string{"USER"}}},
			RequiredRole:   "ADMIN",
		})(passthrough)

		require.NoError(t, handler(ctx))
		ctx.AssertExpectations(t)
	})
}

func TestGetDefaultConfig(t *testing.T) {
	t.Run("fills in defaults", func(t *testing.T) {
		cfg := jwtware.GetDefaultConfig(jwtware.Config{TokenValidator: stubValidator{}})

		assert.Equal(t, "user", cfg.ContextKey)
		assert.Equal(t, "Bearer", cfg.AuthScheme)
		assert.NotEmpty(t, cfg.TokenLookup)
		assert.NotNil(t, cfg.SuccessHandler)
		assert.NotNil(t, cfg.ErrorHandler)
	})

	t.Run("panics without a token validator", func(t *testing.T) {
		assert.Panics(t, func() {
			jwtware.GetDefaultConfig(jwtware.Config{})
		})
	})
}
