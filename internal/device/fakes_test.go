package device

import (
	"context"
	"time"

	"zkbridge/internal/terminal"
)

type setCall struct {
	id        int
	name      string
	privilege int
	password  string
	card      *string
}

// fakeSession records every protocol call so tests can assert ordering and
// bracket behavior.
type fakeSession struct {
	users   []terminal.User
	punches []terminal.Punch

	calls    []string
	setCalls []setCall
	delIDs   []int

	usersErr   error
	attErr     error
	setErr     error
	delErr     error
	disableErr error
	enableErr  error

	panicOnSet bool
}

var _ terminal.Session = (*fakeSession)(nil)

func (f *fakeSession) Disconnect() error {
	f.calls = append(f.calls, "disconnect")
	return nil
}

func (f *fakeSession) GetUsers() ([]terminal.User, error) {
	f.calls = append(f.calls, "getUsers")
	return append([]terminal.User(nil), f.users...), f.usersErr
}

func (f *fakeSession) GetAttendance() ([]terminal.Punch, error) {
	f.calls = append(f.calls, "getAttendance")
	return append([]terminal.Punch(nil), f.punches...), f.attErr
}

func (f *fakeSession) SetUser(id int, name string, privilege int, password string, card *string) error {
	f.calls = append(f.calls, "setUser")
	f.setCalls = append(f.setCalls, setCall{id: id, name: name, privilege: privilege, password: password, card: card})
	if f.panicOnSet {
		panic("wire fault")
	}
	return f.setErr
}

func (f *fakeSession) DeleteUser(id int) error {
	f.calls = append(f.calls, "deleteUser")
	f.delIDs = append(f.delIDs, id)
	return f.delErr
}

func (f *fakeSession) DisableDevice() error {
	f.calls = append(f.calls, "disable")
	return f.disableErr
}

func (f *fakeSession) EnableDevice() error {
	f.calls = append(f.calls, "enable")
	return f.enableErr
}

func (f *fakeSession) count(name string) int {
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

type fakeDialer struct {
	sess    *fakeSession
	dialErr error
	dials   int
}

var _ terminal.Dialer = (*fakeDialer)(nil)

func (f *fakeDialer) Dial(_ context.Context, _ string, _ int, _ time.Duration) (terminal.Session, error) {
	f.dials++
	if f.dialErr != nil {
		return nil, f.dialErr
	}
	return f.sess, nil
}

func newTestService(sess *fakeSession) (*Service, *fakeDialer) {
	d := &fakeDialer{sess: sess}
	return NewService(NewGuard(d, 4370, time.Second), 30*24*time.Hour), d
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
