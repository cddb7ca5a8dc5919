package users

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailcore/posd/internal/credentials"
	"github.com/retailcore/posd/internal/domain"
	"github.com/retailcore/posd/internal/protocol"
	"github.com/retailcore/posd/internal/session"
	"github.com/retailcore/posd/internal/storage/memory"
)

type fixture struct {
	svc        *Service
	store      *memory.Store
	adminToken string
	staffToken string
	staff      domain.User
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.New()
	sessions := session.NewStore()
	admin := store.PutUser(domain.User{Username: "boss", FullName: "The Boss", Role: domain.RoleAdmin, Active: true})
	staff := store.PutUser(domain.User{Username: "till", FullName: "Till One", Role: domain.RoleEmployee, Active: true})
	adminToken, err := sessions.Create(admin)
	require.NoError(t, err)
	staffToken, err := sessions.Create(staff)
	require.NoError(t, err)
	return fixture{
		svc:        New(store, sessions, nil),
		store:      store,
		adminToken: adminToken,
		staffToken: staffToken,
		staff:      staff,
	}
}

func request(t *testing.T, action, token string, data any) *protocol.Request {
	t.Helper()
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		require.NoError(t, err)
		raw = b
	}
	return &protocol.Request{Action: action, Data: raw, SessionID: token, RequestID: "req-1"}
}

func TestGetEmployeesAdminOnly(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.GetEmployees(context.Background(), request(t, protocol.ActionGetEmployees, f.staffToken, nil))
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Access denied. Admin only.", resp.Message)

	resp, err = f.svc.GetEmployees(context.Background(), request(t, protocol.ActionGetEmployees, f.adminToken, nil))
	require.NoError(t, err)
	require.True(t, resp.Success)
	employees, ok := resp.Data.([]domain.User)
	require.True(t, ok)
	require.Len(t, employees, 1)
	assert.Equal(t, "till", employees[0].Username)
}

func TestGetUsersByRole(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.GetUsersByRole(context.Background(), request(t, protocol.ActionGetUsersByRole, f.adminToken, map[string]string{"role": domain.RoleAdmin}))
	require.NoError(t, err)
	require.True(t, resp.Success)
	admins, ok := resp.Data.([]domain.User)
	require.True(t, ok)
	require.Len(t, admins, 1)
	assert.Equal(t, "boss", admins[0].Username)

	resp, err = f.svc.GetUsersByRole(context.Background(), request(t, protocol.ActionGetUsersByRole, f.adminToken, map[string]string{}))
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Role parameter required", resp.Message)
}

func TestCreateUser(t *testing.T) {
	f := newFixture(t)

	data := map[string]string{
		"username": "newhire",
		"password": "changeme1",
		"fullName": "New Hire",
		"email":    "newhire@example.com",
	}
	resp, err := f.svc.CreateUser(context.Background(), request(t, protocol.ActionCreateUser, f.adminToken, data))
	require.NoError(t, err)
	require.True(t, resp.Success)

	created, ok := resp.Data.(domain.User)
	require.True(t, ok)
	assert.Equal(t, domain.RoleEmployee, created.Role)
	assert.True(t, created.Active)

	stored, err := f.store.GetUserByUsername(context.Background(), "newhire")
	require.NoError(t, err)
	assert.NotEqual(t, "changeme1", stored.PasswordHash)
	assert.True(t, credentials.Verify("changeme1", stored.PasswordHash))

	// Duplicate username rejected.
	resp, err = f.svc.CreateUser(context.Background(), request(t, protocol.ActionCreateUser, f.adminToken, data))
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Username already exists", resp.Message)
}

func TestCreateUserValidation(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.CreateUser(context.Background(), request(t, protocol.ActionCreateUser, f.staffToken, map[string]string{"username": "x"}))
	require.NoError(t, err)
	assert.Equal(t, "Access denied. Admin only.", resp.Message)

	resp, err = f.svc.CreateUser(context.Background(), request(t, protocol.ActionCreateUser, f.adminToken, map[string]string{
		"username": "shorty",
		"password": "short",
		"fullName": "Short Pass",
		"email":    "s@example.com",
	}))
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Password must be at least 8 characters", resp.Message)
}

func TestUpdateOwnProfile(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.UpdateUserProfile(context.Background(), request(t, protocol.ActionUpdateUserProfile, f.staffToken, map[string]string{
		"fullName": "Till Renamed",
		"phone":    "555-0101",
	}))
	require.NoError(t, err)
	require.True(t, resp.Success)

	stored, err := f.store.GetUser(context.Background(), f.staff.ID)
	require.NoError(t, err)
	assert.Equal(t, "Till Renamed", stored.FullName)
	assert.Equal(t, "555-0101", stored.Phone)
	// Identity fields never change through profile updates.
	assert.Equal(t, "till", stored.Username)
	assert.Equal(t, domain.RoleEmployee, stored.Role)
}

func TestUpdateOtherProfileNeedsAdmin(t *testing.T) {
	f := newFixture(t)
	other := f.store.PutUser(domain.User{Username: "other", FullName: "Other", Role: domain.RoleEmployee, Active: true})

	resp, err := f.svc.UpdateUserProfile(context.Background(), request(t, protocol.ActionUpdateUserProfile, f.staffToken, map[string]any{
		"userId":   other.ID,
		"fullName": "Hijacked",
	}))
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "Access denied. Admin only.", resp.Message)

	resp, err = f.svc.UpdateUserProfile(context.Background(), request(t, protocol.ActionUpdateUserProfile, f.adminToken, map[string]any{
		"userId":   other.ID,
		"fullName": "Renamed By Admin",
	}))
	require.NoError(t, err)
	assert.True(t, resp.Success)

	stored, err := f.store.GetUser(context.Background(), other.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed By Admin", stored.FullName)
}

func TestSearchUsers(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.SearchUsers(context.Background(), request(t, protocol.ActionSearchUsers, f.adminToken, map[string]string{"keyword": "till"}))
	require.NoError(t, err)
	require.True(t, resp.Success)
	users, ok := resp.Data.([]domain.User)
	require.True(t, ok)
	require.Len(t, users, 1)
	assert.Equal(t, "till", users[0].Username)
}
