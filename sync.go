package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
)

// Synchronizer mirrors identities from the file-backed credential store
// into the relational store after successful authentication, so relational
// foreign keys (bookings, saved flights, search history) stay valid while
// the file source is authoritative. Mirroring is strictly one-directional;
// the synchronizer never writes back to the file store.
//
// Two racing first-time synchronizations of the same username may both read
// "not found" and both insert; the relational uniqueness constraint is the
// guard that turns the second insert into a conflict instead of a silent
// duplicate.
type Synchronizer struct {
	source  UserStore
	target  UserStore
	enabled bool
	logger  Logger
}

// NewSynchronizer wires the file source to the relational target. The
// synchronizer is active only while Config selects the file source; when
// inactive SynchronizeUser is a no-op.
func NewSynchronizer(source, target UserStore, cfg Config) *Synchronizer {
	return &Synchronizer{
		source:  source,
		target:  target,
		enabled: cfg != nil && cfg.GetUserSource() == UserSourceFile,
		logger:  defLogger{},
	}
}

func (s *Synchronizer) WithLogger(l Logger) *Synchronizer {
	if l != nil {
		s.logger = l
	}
	return s
}

// Enabled reports whether synchronization is configured on.
func (s *Synchronizer) Enabled() bool {
	return s != nil && s.enabled
}

// SynchronizeUser mirrors the named identity into the relational store:
// absent source record is a no-op, a missing mirror is created, a mirror
// whose email or role set drifted is overwritten and touched, and an
// up-to-date mirror is left untouched.
func (s *Synchronizer) SynchronizeUser(ctx context.Context, username string) (*User, error) {
	if !s.Enabled() {
		return nil, nil
	}

	src, err := s.source.FindByUsername(ctx, username)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	existing, err := s.target.FindByUsername(ctx, username)
	if err != nil && !errors.IsNotFound(err) {
		return nil, err
	}

	now := time.Now()

	if existing == nil || errors.IsNotFound(err) {
		mirror := &User{
			Username:     src.Username,
			Email:        src.Email,
			PasswordHash: src.PasswordHash,
			FirstName:    src.FirstName,
			LastName:     src.LastName,
			Roles:        cloneRoles(src.Roles),
			CreatedAt:    &now,
			UpdatedAt:    &now,
		}
		s.logger.Debug("mirroring new identity %s into relational store", username)
		return s.target.Save(ctx, mirror)
	}

	if existing.Email == src.Email && sameRoleSet(existing.Roles, src.Roles) {
		return existing, nil
	}

	existing.Email = src.Email
	existing.Roles = cloneRoles(src.Roles)
	existing.UpdatedAt = &now

	s.logger.Debug("refreshing drifted identity mirror for %s", username)
	return s.target.Save(ctx, existing)
}

// LoginListener adapts the synchronizer to the authenticator's observer
// list; synchronization failures are logged, never surfaced to the login.
func (s *Synchronizer) LoginListener() LoginListener {
	return func(ctx context.Context, identity Identity) {
		if identity == nil {
			return
		}
		if _, err := s.SynchronizeUser(ctx, identity.Username()); err != nil {
			s.logger.Error("identity synchronization failed for %s: %s", identity.Username(), err)
		}
	}
}
