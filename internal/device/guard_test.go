package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zkbridge/internal/errs"
	"zkbridge/internal/terminal"
)

func TestWithSession_DisconnectsOnSuccess(t *testing.T) {
	sess := &fakeSession{}
	g := NewGuard(&fakeDialer{sess: sess}, 4370, time.Second)

	err := g.WithSession(context.Background(), "10.0.0.1", func(s terminal.Session) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, sess.count("disconnect"))
}

func TestWithSession_DisconnectsOnError(t *testing.T) {
	sess := &fakeSession{}
	g := NewGuard(&fakeDialer{sess: sess}, 4370, time.Second)

	boom := errors.New("boom")
	err := g.WithSession(context.Background(), "10.0.0.1", func(s terminal.Session) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, sess.count("disconnect"))
}

func TestWithSession_DisconnectsOnPanic(t *testing.T) {
	sess := &fakeSession{}
	g := NewGuard(&fakeDialer{sess: sess}, 4370, time.Second)

	require.Panics(t, func() {
		_ = g.WithSession(context.Background(), "10.0.0.1", func(s terminal.Session) error { panic("fault") })
	})
	assert.Equal(t, 1, sess.count("disconnect"))
}

func TestWithSession_DialFailure(t *testing.T) {
	dialErr := errors.New("connection failed: unreachable")
	g := NewGuard(&fakeDialer{dialErr: dialErr}, 4370, time.Second)

	err := g.WithSession(context.Background(), "10.0.0.1", func(s terminal.Session) error {
		t.Fatal("operation must not run without a session")
		return nil
	})
	require.ErrorIs(t, err, dialErr)
}

func TestBracket_EnableAfterSuccess(t *testing.T) {
	sess := &fakeSession{}
	g := NewGuard(&fakeDialer{sess: sess}, 4370, time.Second)

	warn, err := g.Bracket(sess, func() error { return nil })
	require.NoError(t, err)
	assert.Empty(t, warn)
	assert.Equal(t, []string{"disable", "enable"}, sess.calls)
}

func TestBracket_EnableAttemptedAfterFailure(t *testing.T) {
	sess := &fakeSession{}
	g := NewGuard(&fakeDialer{sess: sess}, 4370, time.Second)

	boom := errors.New("write rejected")
	warn, err := g.Bracket(sess, func() error { return boom })
	require.ErrorIs(t, err, boom)
	assert.Empty(t, warn)
	assert.Equal(t, 1, sess.count("enable"))
}

func TestBracket_EnableAttemptedAfterPanic(t *testing.T) {
	sess := &fakeSession{}
	g := NewGuard(&fakeDialer{sess: sess}, 4370, time.Second)

	require.Panics(t, func() {
		_, _ = g.Bracket(sess, func() error { panic("wire fault") })
	})
	assert.Equal(t, 1, sess.count("enable"))
}

func TestBracket_EnableFailureIsWarningOnly(t *testing.T) {
	sess := &fakeSession{enableErr: errors.New("enable timeout")}
	g := NewGuard(&fakeDialer{sess: sess}, 4370, time.Second)

	warn, err := g.Bracket(sess, func() error { return nil })
	require.NoError(t, err)
	assert.Contains(t, warn, "re-enable failed")
}

func TestBracket_DisableFailureSkipsOperation(t *testing.T) {
	sess := &fakeSession{disableErr: errors.New("busy")}
	g := NewGuard(&fakeDialer{sess: sess}, 4370, time.Second)

	ran := false
	_, err := g.Bracket(sess, func() error { ran = true; return nil })
	require.Error(t, err)
	assert.False(t, ran)
	assert.Equal(t, 0, sess.count("enable"))
}

func TestFail_ConnectionErrorMapsToBadGateway(t *testing.T) {
	res := fail(errs.ErrConnection)
	assert.False(t, res.Success)
	assert.Equal(t, 502, res.HTTPStatus())
}
