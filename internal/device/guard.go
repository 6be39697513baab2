package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"zkbridge/internal/terminal"
)

// Guard owns terminal session lifecycle: one connection per operation,
// closed on every exit path, with writes serialized per terminal address.
type Guard struct {
	dialer  terminal.Dialer
	port    int
	timeout time.Duration
	locks   sync.Map // addr -> *sync.Mutex
}

// NewGuard creates a guard. Port and connect timeout are explicit; there is
// no ambient default port.
func NewGuard(dialer terminal.Dialer, port int, timeout time.Duration) *Guard {
	if port <= 0 {
		port = 4370
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Guard{dialer: dialer, port: port, timeout: timeout}
}

// WithSession opens one connection, runs fn, and disconnects regardless of
// how fn exits. Read operations use this directly and take no lock.
func (g *Guard) WithSession(ctx context.Context, addr string, fn func(terminal.Session) error) error {
	sess, err := g.dialer.Dial(ctx, addr, g.port, g.timeout)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Disconnect() }()
	return fn(sess)
}

// WithExclusive is WithSession under the per-address write lock. The lock is
// held until the session closes, so a bracketed mutation never interleaves
// with another write to the same terminal.
func (g *Guard) WithExclusive(ctx context.Context, addr string, fn func(terminal.Session) error) error {
	mu := g.lockFor(addr)
	mu.Lock()
	defer mu.Unlock()
	return g.WithSession(ctx, addr, fn)
}

// Bracket runs fn with the terminal disabled. Enable is attempted on every
// exit path after a successful disable, including when fn fails or panics:
// the terminal must not stay deaf to live punches. When the mutation
// succeeded but enable did not, the enable failure is returned as a warning
// rather than overriding the result.
func (g *Guard) Bracket(sess terminal.Session, fn func() error) (warn string, err error) {
	if derr := sess.DisableDevice(); derr != nil {
		return "", fmt.Errorf("disable device: %w", derr)
	}
	defer func() {
		if eerr := sess.EnableDevice(); eerr != nil && err == nil {
			warn = fmt.Sprintf("device re-enable failed: %v", eerr)
		}
	}()
	err = fn()
	return warn, err
}

func (g *Guard) lockFor(addr string) *sync.Mutex {
	if mu, ok := g.locks.Load(addr); ok {
		return mu.(*sync.Mutex)
	}
	mu, _ := g.locks.LoadOrStore(addr, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
