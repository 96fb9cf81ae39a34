package identity

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// UserStore is the credential-store contract shared by the relational and
// file-backed variants. Lookups report an absent record through a
// not-found error (see errors.IsNotFound), never through a fault; mutation
// failures are genuine faults or conflicts.
type UserStore interface {
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// FindAll enumerates every record; callers tolerate O(n) cost.
	FindAll(ctx context.Context) ([]*User, error)
	// Save inserts when the record carries no id, otherwise upserts by id.
	// The returned record has its id populated.
	Save(ctx context.Context, user *User) (*User, error)
	// DeleteByID removes the record if present and no-ops otherwise.
	DeleteByID(ctx context.Context, id int64) error
}

// NewUserStore selects the credential store variant configured as
// authoritative. db may be nil when the file source is active and no
// relational mirror is wanted.
func NewUserStore(cfg Config, db *bun.DB) (UserStore, error) {
	switch cfg.GetUserSource() {
	case UserSourceFile:
		return NewXMLUserStore(cfg.GetUsersFilePath())
	case UserSourceDatabase, "":
		if db == nil {
			return nil, errors.New("user source requires a database handle", errors.CategoryBadInput)
		}
		return NewBunUserStore(db), nil
	default:
		return nil, errors.New("unknown user source", errors.CategoryBadInput).
			WithMetadata(map[string]any{"source": cfg.GetUserSource()})
	}
}

func notFound(field, value string) *errors.Error {
	return errors.New("identity not found", errors.CategoryNotFound).
		WithTextCode(TextCodeIdentityNotFound).
		WithCode(errors.CodeNotFound).
		WithMetadata(map[string]any{field: value})
}
