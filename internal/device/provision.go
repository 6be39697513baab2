package device

import (
	"context"
	"fmt"
	"strings"

	"zkbridge/internal/errs"
	"zkbridge/internal/terminal"
)

// DuplicateNameError reports an add that matched an existing enrollment by
// name, carrying the first-created record.
type DuplicateNameError struct {
	Existing terminal.User
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("user already exists as id %d (%s)", e.Existing.ID, e.Existing.Name)
}

func (e *DuplicateNameError) Unwrap() error { return errs.ErrDuplicateName }

// addUser enrolls a new user under the disable/enable bracket. A name that
// is already taken (trimmed, case-insensitive) returns the existing record
// instead of creating a duplicate; no mutation is attempted in that case.
func (s *Service) addUser(ctx context.Context, addr, name string) (terminal.User, string, error) {
	var created terminal.User
	var warn string
	err := s.guard.WithExclusive(ctx, addr, func(sess terminal.Session) error {
		dir, err := loadDirectory(sess)
		if err != nil {
			return err
		}
		if existing, found := dir.FindByName(name); found {
			return &DuplicateNameError{Existing: existing}
		}

		id := dir.NextID()
		trimmed := strings.TrimSpace(name)
		warn, err = s.guard.Bracket(sess, func() error {
			// New users start with no password and no card.
			return sess.SetUser(id, trimmed, terminal.PrivilegeDefault, "", nil)
		})
		if err != nil {
			return fmt.Errorf("set user: %w", err)
		}
		created = terminal.User{ID: id, Name: trimmed}
		return nil
	})
	return created, warn, err
}

// editUser renames an existing user. The terminal write replaces the whole
// record, so privilege, password, and card are carried over from the fetched
// record. A missing ID fails before any disable/enable call.
func (s *Service) editUser(ctx context.Context, addr string, id int, newName string) (terminal.User, string, error) {
	var updated terminal.User
	var warn string
	err := s.guard.WithExclusive(ctx, addr, func(sess terminal.Session) error {
		dir, err := loadDirectory(sess)
		if err != nil {
			return err
		}
		current, found := dir.Lookup(id)
		if !found {
			return fmt.Errorf("%w: user %d on %s", errs.ErrNotFound, id, addr)
		}

		privilege := terminal.PrivilegeDefault
		if current.Privilege != nil {
			privilege = *current.Privilege
		}
		password := ""
		if current.Password != nil {
			password = *current.Password
		}

		trimmed := strings.TrimSpace(newName)
		warn, err = s.guard.Bracket(sess, func() error {
			return sess.SetUser(id, trimmed, privilege, password, current.Card)
		})
		if err != nil {
			return fmt.Errorf("set user: %w", err)
		}
		updated = current
		updated.Name = trimmed
		return nil
	})
	return updated, warn, err
}

// deleteUser removes a user by terminal-local ID under the bracket. There is
// no existence pre-check: the protocol treats deleting a missing ID as a
// successful no-op and that passes through unchanged.
func (s *Service) deleteUser(ctx context.Context, addr string, id int) (string, error) {
	var warn string
	err := s.guard.WithExclusive(ctx, addr, func(sess terminal.Session) error {
		var err error
		warn, err = s.guard.Bracket(sess, func() error {
			return sess.DeleteUser(id)
		})
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
	return warn, err
}
