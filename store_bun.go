package identity

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// BunUserStore is the relational credential store variant. Username and
// email uniqueness is enforced by the table constraints, which also act as
// the authoritative guard when two registrations race past the existence
// checks.
type BunUserStore struct {
	db     *bun.DB
	logger Logger
}

var _ UserStore = (*BunUserStore)(nil)

func NewBunUserStore(db *bun.DB) *BunUserStore {
	return &BunUserStore{
		db:     db,
		logger: defLogger{},
	}
}

func (s *BunUserStore) WithLogger(l Logger) *BunUserStore {
	if l != nil {
		s.logger = l
	}
	return s
}

func (s *BunUserStore) FindByID(ctx context.Context, id int64) (*User, error) {
	return s.findBy(ctx, "id", id)
}

func (s *BunUserStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	return s.findBy(ctx, "username", username)
}

func (s *BunUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.findBy(ctx, "email", email)
}

func (s *BunUserStore) findBy(ctx context.Context, column string, value any) (*User, error) {
	record := &User{}
	err := s.db.NewSelect().
		Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(column, fmt.Sprint(value))
		}
		return nil, storageFault(err, "failed to query users table")
	}

	return record, nil
}

func (s *BunUserStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return s.existsBy(ctx, "username", username)
}

func (s *BunUserStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.existsBy(ctx, "email", email)
}

func (s *BunUserStore) existsBy(ctx context.Context, column, value string) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*User)(nil)).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Exists(ctx)

	if err != nil {
		return false, storageFault(err, "failed to query users table")
	}

	return exists, nil
}

func (s *BunUserStore) FindAll(ctx context.Context) ([]*User, error) {
	var users []*User
	err := s.db.NewSelect().
		Model(&users).
		Order("id ASC").
		Scan(ctx)

	if err != nil {
		return nil, storageFault(err, "failed to enumerate users table")
	}

	return users, nil
}

func (s *BunUserStore) Save(ctx context.Context, user *User) (*User, error) {
	prepareUserDefaults(user)

	now := time.Now()
	if user.CreatedAt == nil {
		user.CreatedAt = &now
	}
	if user.UpdatedAt == nil {
		user.UpdatedAt = &now
	}

	if user.ID == 0 {
		return s.insert(ctx, user)
	}

	res, err := s.db.NewUpdate().
		Model(user).
		WherePK().
		Exec(ctx)

	if err != nil {
		return nil, s.writeError(err)
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		// upsert semantics: no record with this id, insert it
		return s.insert(ctx, user)
	}

	return user, nil
}

func (s *BunUserStore) insert(ctx context.Context, user *User) (*User, error) {
	if _, err := s.db.NewInsert().Model(user).Exec(ctx); err != nil {
		return nil, s.writeError(err)
	}
	return user, nil
}

func (s *BunUserStore) DeleteByID(ctx context.Context, id int64) error {
	_, err := s.db.NewDelete().
		Model((*User)(nil)).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)

	if err != nil {
		return storageFault(err, "failed to delete user record")
	}

	return nil
}

func (s *BunUserStore) writeError(err error) error {
	if isUniqueViolation(err) {
		return errors.Wrap(err, errors.CategoryConflict, "identity violates a uniqueness constraint").
			WithCode(errors.CodeConflict)
	}
	s.logger.Error("user store write failed: %s", err)
	return storageFault(err, "failed to persist user record")
}

// isUniqueViolation matches the constraint messages of the supported
// drivers (SQLite, Postgres).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
