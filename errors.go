package identity

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeIdentityNotFound   = "identity_not_found"
	TextCodeDuplicateUsername  = "identity_duplicate_username"
	TextCodeDuplicateEmail     = "identity_duplicate_email"
	TextCodeInvalidCredentials = "identity_invalid_credentials"
	TextCodeTokenExpired       = "identity_token_expired"
	TextCodeTokenMalformed     = "identity_token_malformed"
	TextCodeAccessDenied       = "identity_access_denied"
	TextCodeStorageFault       = "identity_storage_fault"
)

// ErrIdentityNotFound represents an absent lookup result. It is never a
// fault; callers treat it the way they would an empty optional.
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound).
	WithCode(errors.CodeNotFound)

// ErrDuplicateUsername is returned when registration hits a taken username.
var ErrDuplicateUsername = errors.New("username is already taken", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateUsername).
	WithCode(errors.CodeConflict)

// ErrDuplicateEmail is returned when registration hits a taken email.
var ErrDuplicateEmail = errors.New("email is already registered", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(errors.CodeConflict)

// ErrMismatchedHashAndPassword collapses identity-miss and password-miss so
// callers cannot tell which half of a login failed.
var ErrMismatchedHashAndPassword = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is the structured error for expired session credentials.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed covers every other token failure: bad signature, bad
// structure, unsupported format, empty input.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrAccessDenied is returned for role-gated actions attempted without the
// role. Distinct from not-found so it never leaks resource existence.
var ErrAccessDenied = errors.New("access denied", errors.CategoryAuthz).
	WithTextCode(TextCodeAccessDenied).
	WithCode(errors.CodeForbidden)

// ErrNoEmptyString rejects empty passwords before hashing.
var ErrNoEmptyString = errors.New("value must not be empty", errors.CategoryBadInput).
	WithCode(errors.CodeBadRequest)

// storageFault wraps an underlying parse/transform/write failure. Fatal to
// the current operation and distinguishable from not-found.
func storageFault(err error, msg string) *errors.Error {
	return errors.Wrap(err, errors.CategoryInternal, msg).
		WithTextCode(TextCodeStorageFault)
}

// IsConflict reports whether err is a duplicate-identity conflict.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.Category == errors.CategoryConflict
	}
	return false
}

// IsTokenExpiredError will check for error message
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode == TextCodeTokenExpired {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode == TextCodeTokenMalformed {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsTokenInvalid collapses every token failure mode into one predicate.
func IsTokenInvalid(err error) bool {
	return IsTokenExpiredError(err) || IsMalformedError(err)
}
