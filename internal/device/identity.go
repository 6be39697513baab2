package device

import (
	"fmt"
	"strings"

	"zkbridge/internal/terminal"
)

// Directory is the resolved user set of one terminal, read once per session.
// It is never cached across sessions; the terminal state can change between
// connections.
type Directory struct {
	users map[int]terminal.User
}

// loadDirectory reads every enrolled user from the live session.
func loadDirectory(sess terminal.Session) (Directory, error) {
	users, err := sess.GetUsers()
	if err != nil {
		return Directory{}, fmt.Errorf("get users: %w", err)
	}
	m := make(map[int]terminal.User, len(users))
	for _, u := range users {
		m[u.ID] = u
	}
	return Directory{users: m}, nil
}

// Lookup returns the user with the given terminal-local ID.
func (d Directory) Lookup(id int) (terminal.User, bool) {
	u, ok := d.users[id]
	return u, ok
}

// FindByName matches case-insensitively on the trimmed name. Used to stop
// duplicate enrollments.
func (d Directory) FindByName(name string) (terminal.User, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	for _, u := range d.users {
		if strings.ToLower(strings.TrimSpace(u.Name)) == want {
			return u, true
		}
	}
	return terminal.User{}, false
}

// NextID returns the next free terminal-local ID: 1 for an empty terminal,
// max+1 otherwise. The sequence is scoped to one terminal; the same ID can
// exist on another device for a different person.
func (d Directory) NextID() int {
	maxID := 0
	for id := range d.users {
		if id > maxID {
			maxID = id
		}
	}
	return maxID + 1
}

// Enrich fills a punch with the directory identity for its user ID. Punches
// from IDs no longer enrolled are still emitted, labelled Unknown.
func (d Directory) Enrich(p terminal.Punch) PunchRecord {
	rec := PunchRecord{
		UserID: p.UserID,
		Name:   "Unknown",
		Time:   p.Time,
		Type:   p.Type,
		Status: terminal.Status(p.Type),
	}
	if u, ok := d.users[p.UserID]; ok {
		rec.Name = u.Name
		rec.Card = u.Card
		rec.Role = u.Privilege
	}
	return rec
}
