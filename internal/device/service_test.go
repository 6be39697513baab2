package device

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zkbridge/internal/errs"
	"zkbridge/internal/terminal"
)

func TestAddUser_EmptyDirectoryGetsIDOne(t *testing.T) {
	sess := &fakeSession{}
	svc, _ := newTestService(sess)

	res := svc.AddUser(context.Background(), "10.0.0.1", "Mostafa")
	require.True(t, res.Success, res.Error)

	require.Len(t, sess.setCalls, 1)
	call := sess.setCalls[0]
	assert.Equal(t, 1, call.id)
	assert.Equal(t, "Mostafa", call.name)
	assert.Equal(t, terminal.PrivilegeDefault, call.privilege)
	assert.Empty(t, call.password)
	assert.Nil(t, call.card)

	created, okType := res.Data.(terminal.User)
	require.True(t, okType)
	assert.Equal(t, 1, created.ID)
}

func TestAddUser_AllocatesMaxPlusOne(t *testing.T) {
	sess := &fakeSession{users: []terminal.User{
		{ID: 4, Name: "Ali"},
		{ID: 11, Name: "Sara"},
	}}
	svc, _ := newTestService(sess)

	res := svc.AddUser(context.Background(), "10.0.0.1", "Omar")
	require.True(t, res.Success, res.Error)
	require.Len(t, sess.setCalls, 1)
	assert.Equal(t, 12, sess.setCalls[0].id)
}

func TestAddUser_DuplicateNameReturnsExisting(t *testing.T) {
	sess := &fakeSession{users: []terminal.User{{ID: 3, Name: "Mostafa"}}}
	svc, _ := newTestService(sess)

	res := svc.AddUser(context.Background(), "10.0.0.1", "  mostafa ")
	assert.False(t, res.Success)
	assert.Equal(t, http.StatusConflict, res.HTTPStatus())

	existing, okType := res.Data.(terminal.User)
	require.True(t, okType)
	assert.Equal(t, 3, existing.ID)

	// No mutation, no bracket.
	assert.Empty(t, sess.setCalls)
	assert.Equal(t, 0, sess.count("disable"))
	assert.Equal(t, 0, sess.count("enable"))
}

func TestAddUser_SecondAddIsRejected(t *testing.T) {
	sess := &fakeSession{}
	svc, _ := newTestService(sess)

	first := svc.AddUser(context.Background(), "10.0.0.1", "Mostafa")
	require.True(t, first.Success, first.Error)

	// Simulate the terminal now holding the created record.
	sess.users = []terminal.User{{ID: 1, Name: "Mostafa"}}

	second := svc.AddUser(context.Background(), "10.0.0.1", "Mostafa")
	assert.False(t, second.Success)
	assert.Contains(t, second.Error, "already exists")
	assert.Len(t, sess.setCalls, 1, "no second record created")
}

func TestAddUser_BracketsMutation(t *testing.T) {
	sess := &fakeSession{}
	svc, _ := newTestService(sess)

	res := svc.AddUser(context.Background(), "10.0.0.1", "Ali")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, []string{"getUsers", "disable", "setUser", "enable", "disconnect"}, sess.calls)
}

func TestEditUser_NotFoundSkipsBracket(t *testing.T) {
	sess := &fakeSession{users: []terminal.User{{ID: 1, Name: "Ali"}}}
	svc, _ := newTestService(sess)

	res := svc.EditUser(context.Background(), "10.0.0.1", 42, "Omar")
	assert.False(t, res.Success)
	assert.Equal(t, http.StatusNotFound, res.HTTPStatus())

	assert.Equal(t, 0, sess.count("disable"))
	assert.Equal(t, 0, sess.count("enable"))
	assert.Equal(t, 0, sess.count("setUser"))
}

func TestEditUser_CarriesUntouchedFields(t *testing.T) {
	card := strPtr("5512")
	role := intPtr(terminal.PrivilegeAdmin)
	pass := strPtr("8842")
	sess := &fakeSession{users: []terminal.User{
		{ID: 7, Name: "Ali", Card: card, Privilege: role, Password: pass},
	}}
	svc, _ := newTestService(sess)

	res := svc.EditUser(context.Background(), "10.0.0.1", 7, "Aly")
	require.True(t, res.Success, res.Error)

	require.Len(t, sess.setCalls, 1)
	call := sess.setCalls[0]
	assert.Equal(t, 7, call.id)
	assert.Equal(t, "Aly", call.name)
	assert.Equal(t, terminal.PrivilegeAdmin, call.privilege)
	assert.Equal(t, "8842", call.password)
	assert.Equal(t, card, call.card)
}

func TestDeleteUser_AlwaysBracketsEvenOnFailure(t *testing.T) {
	sess := &fakeSession{delErr: errors.New("firmware rejected")}
	svc, _ := newTestService(sess)

	res := svc.DeleteUser(context.Background(), "10.0.0.1", 5)
	assert.False(t, res.Success)
	assert.Equal(t, []string{"disable", "deleteUser", "enable", "disconnect"}, sess.calls)
}

func TestDeleteUser_MissingIDIsNoOp(t *testing.T) {
	sess := &fakeSession{}
	svc, _ := newTestService(sess)

	res := svc.DeleteUser(context.Background(), "10.0.0.1", 99)
	assert.True(t, res.Success, res.Error)
	assert.Equal(t, []int{99}, sess.delIDs)
}

func TestMutation_EnableFailureSurfacesAsWarning(t *testing.T) {
	sess := &fakeSession{enableErr: errors.New("enable timeout")}
	svc, _ := newTestService(sess)

	res := svc.AddUser(context.Background(), "10.0.0.1", "Ali")
	require.True(t, res.Success, res.Error)
	assert.Contains(t, res.Warning, "re-enable failed")
	assert.Len(t, sess.setCalls, 1)
}

func TestEnvelope_ConnectionFailure(t *testing.T) {
	d := &fakeDialer{dialErr: errs.ErrConnection}
	svc := NewService(NewGuard(d, 4370, time.Second), 0)

	res := svc.GetUsers(context.Background(), "10.0.0.9")
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
	assert.Equal(t, http.StatusBadGateway, res.HTTPStatus())
}

func TestEnvelope_PanicIsConverted(t *testing.T) {
	sess := &fakeSession{panicOnSet: true}
	svc, _ := newTestService(sess)

	res := svc.AddUser(context.Background(), "10.0.0.1", "Ali")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "internal fault")
	// Guard still restored the terminal and closed the session.
	assert.Equal(t, 1, sess.count("enable"))
	assert.Equal(t, 1, sess.count("disconnect"))
}

func TestGetUsers_SortedByID(t *testing.T) {
	sess := &fakeSession{users: []terminal.User{
		{ID: 9, Name: "Sara"},
		{ID: 2, Name: "Ali"},
	}}
	svc, _ := newTestService(sess)

	users, err := svc.Users(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, 2, users[0].ID)
	assert.Equal(t, 9, users[1].ID)
}
