// Package terminal defines the view this service has of a biometric
// attendance terminal. The proprietary wire protocol itself lives in the
// protocol agent; everything here is the capability surface consumed by
// the device layer.
package terminal

import (
	"context"
	"fmt"
	"time"
)

// Privilege levels as reported by the terminal firmware.
const (
	PrivilegeDefault = 0
	PrivilegeAdmin   = 14
)

// User is one enrolled identity on a single terminal. The numeric ID is
// unique only within that terminal; identity across the fleet is always
// the (terminal address, ID) pair.
type User struct {
	ID        int     `json:"user_id"`
	Name      string  `json:"name"`
	Card      *string `json:"card,omitempty"`
	Privilege *int    `json:"role,omitempty"`
	Password  *string `json:"-"`
}

// Punch is one raw attendance event as read from the terminal.
type Punch struct {
	UserID int       `json:"user_id"`
	Time   time.Time `json:"time"`
	Type   int       `json:"punch_type"`
}

// punchStatus maps the terminal punch-type codes to their display labels.
var punchStatus = map[int]string{
	0: "Check In",
	1: "Check Out",
	2: "Break Out",
	3: "Break In",
	4: "Overtime In",
	5: "Overtime Out",
}

// Status renders a punch-type code. Codes outside the known set are kept
// rather than dropped, labelled with the raw value.
func Status(code int) string {
	if s, ok := punchStatus[code]; ok {
		return s
	}
	return fmt.Sprintf("Unknown (%d)", code)
}

// Session is one live connection to a terminal. Implementations are not
// safe for concurrent use; the device layer serializes access.
type Session interface {
	// Disconnect closes the connection. Safe to call after any failure.
	Disconnect() error
	// GetUsers returns every enrolled user.
	GetUsers() ([]User, error)
	// GetAttendance returns the full punch history, oldest first.
	GetAttendance() ([]Punch, error)
	// SetUser writes the complete user record; the terminal replaces the
	// whole record, it does not patch fields.
	SetUser(id int, name string, privilege int, password string, card *string) error
	// DeleteUser removes a user. Deleting an absent ID is a no-op.
	DeleteUser(id int) error
	// DisableDevice stops the terminal from accepting live punches.
	DisableDevice() error
	// EnableDevice resumes live punch collection.
	EnableDevice() error
}

// Dialer opens protocol sessions. The timeout bounds the connect attempt.
type Dialer interface {
	Dial(ctx context.Context, addr string, port int, timeout time.Duration) (Session, error)
}
