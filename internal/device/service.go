// Package device is the core of the terminal bridge: session lifecycle,
// identity resolution across terminals with overlapping numeric IDs,
// attendance ingestion, and user provisioning.
package device

import (
	"context"
	"fmt"
	"sort"
	"time"

	"zkbridge/internal/terminal"
)

// Service exposes the terminal operations. Envelope methods (GetUsers,
// AddUser, ...) never return an error or panic; every fault is converted to
// a Result at this boundary. The typed methods below them are for internal
// callers such as the records sync layer.
type Service struct {
	guard     *Guard
	retention time.Duration
}

// NewService creates the device service with a default retention window for
// attendance reads.
func NewService(guard *Guard, retention time.Duration) *Service {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &Service{guard: guard, retention: retention}
}

// Users reads the full directory of one terminal, sorted by ID.
func (s *Service) Users(ctx context.Context, addr string) ([]terminal.User, error) {
	var users []terminal.User
	err := s.guard.WithSession(ctx, addr, func(sess terminal.Session) error {
		dir, err := loadDirectory(sess)
		if err != nil {
			return err
		}
		users = make([]terminal.User, 0, len(dir.users))
		for _, u := range dir.users {
			users = append(users, u)
		}
		sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// RecentAttendance reads punches within the retention window, enriched with
// directory identity, newest first. A zero retention uses the default.
func (s *Service) RecentAttendance(ctx context.Context, addr string, retention time.Duration) ([]PunchRecord, error) {
	if retention <= 0 {
		retention = s.retention
	}
	var records []PunchRecord
	err := s.guard.WithSession(ctx, addr, func(sess terminal.Session) error {
		dir, err := loadDirectory(sess)
		if err != nil {
			return err
		}
		records, err = fetchRecent(sess, dir, retention, time.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// GetUsers returns the terminal directory in the uniform envelope.
func (s *Service) GetUsers(ctx context.Context, addr string) (res Result) {
	defer recoverInto(&res)
	users, err := s.Users(ctx, addr)
	if err != nil {
		return fail(err)
	}
	return ok(users, "")
}

// GetRecentAttendance returns enriched punches in the uniform envelope.
func (s *Service) GetRecentAttendance(ctx context.Context, addr string, retention time.Duration) (res Result) {
	defer recoverInto(&res)
	records, err := s.RecentAttendance(ctx, addr, retention)
	if err != nil {
		return fail(err)
	}
	return ok(records, "")
}

// AddUser enrolls a new user by name.
func (s *Service) AddUser(ctx context.Context, addr, name string) (res Result) {
	defer recoverInto(&res)
	created, warn, err := s.addUser(ctx, addr, name)
	if err != nil {
		return fail(err)
	}
	return ok(created, warn)
}

// EditUser renames an existing user.
func (s *Service) EditUser(ctx context.Context, addr string, id int, newName string) (res Result) {
	defer recoverInto(&res)
	updated, warn, err := s.editUser(ctx, addr, id, newName)
	if err != nil {
		return fail(err)
	}
	return ok(updated, warn)
}

// DeleteUser removes a user by terminal-local ID.
func (s *Service) DeleteUser(ctx context.Context, addr string, id int) (res Result) {
	defer recoverInto(&res)
	warn, err := s.deleteUser(ctx, addr, id)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]any{"deleted": id}, warn)
}

// recoverInto converts a panic from the layers below into a failure
// envelope so nothing escapes the operation boundary.
func recoverInto(res *Result) {
	if r := recover(); r != nil {
		*res = fail(fmt.Errorf("internal fault: %v", r))
	}
}
