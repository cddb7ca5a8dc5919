// Package users serves staff management and profile actions. Everything
// here except profile updates is restricted to administrators.
package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/retailcore/posd/internal/credentials"
	"github.com/retailcore/posd/internal/domain"
	"github.com/retailcore/posd/internal/protocol"
	"github.com/retailcore/posd/internal/services/authz"
	"github.com/retailcore/posd/internal/session"
	"github.com/retailcore/posd/internal/storage"
	"github.com/retailcore/posd/pkg/logger"
)

// Service manages user accounts.
type Service struct {
	store    storage.UserStore
	sessions *session.Store
	log      *logger.Logger
}

// New constructs the user service.
func New(store storage.UserStore, sessions *session.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{store: store, sessions: sessions, log: log}
}

// GetEmployees handles GET_EMPLOYEES. Admin only.
func (s *Service) GetEmployees(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if _, errResp := authz.RequireRole(s.sessions, req, domain.RoleAdmin); errResp != nil {
		return errResp, nil
	}
	employees, err := s.store.ListUsersByRole(ctx, domain.RoleEmployee)
	if err != nil {
		return nil, err
	}
	return protocol.OK(employees, fmt.Sprintf("Retrieved %d users", len(employees)), req.RequestID), nil
}

// GetUsersByRole handles GET_USERS_BY_ROLE. Admin only.
func (s *Service) GetUsersByRole(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if _, errResp := authz.RequireRole(s.sessions, req, domain.RoleAdmin); errResp != nil {
		return errResp, nil
	}
	var data struct {
		Role string `json:"role"`
	}
	if err := req.Bind(&data); err != nil || data.Role == "" {
		return protocol.Errorf(req.RequestID, "Role parameter required"), nil
	}
	users, err := s.store.ListUsersByRole(ctx, data.Role)
	if err != nil {
		return nil, err
	}
	return protocol.OK(users, "Users retrieved", req.RequestID), nil
}

// SearchUsers handles SEARCH_USERS. Admin only.
func (s *Service) SearchUsers(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if _, errResp := authz.RequireRole(s.sessions, req, domain.RoleAdmin); errResp != nil {
		return errResp, nil
	}
	var data struct {
		Keyword string `json:"keyword"`
	}
	if err := req.Bind(&data); err != nil {
		return protocol.Errorf(req.RequestID, "Keyword required"), nil
	}
	users, err := s.store.SearchUsers(ctx, data.Keyword)
	if err != nil {
		return nil, err
	}
	return protocol.OK(users, "Search successful", req.RequestID), nil
}

type createUserData struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
	Role     string `json:"role,omitempty"`
}

// CreateUser handles CREATE_USER. Admin only.
func (s *Service) CreateUser(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	sess, errResp := authz.RequireRole(s.sessions, req, domain.RoleAdmin)
	if errResp != nil {
		return errResp, nil
	}
	var data createUserData
	if err := req.Bind(&data); err != nil {
		return protocol.Errorf(req.RequestID, "Invalid register data"), nil
	}
	if data.Username == "" || data.FullName == "" || data.Email == "" {
		return protocol.Errorf(req.RequestID, "Username, full name and email are required"), nil
	}

	hash, err := credentials.Hash(data.Password)
	if err != nil {
		if errors.Is(err, credentials.ErrPasswordTooShort) {
			return protocol.Errorf(req.RequestID, "Password must be at least %d characters", credentials.MinPasswordLength), nil
		}
		return nil, err
	}

	role := data.Role
	if role == "" {
		role = domain.RoleEmployee
	}

	user, err := s.store.CreateUser(ctx, domain.User{
		Username:     data.Username,
		PasswordHash: hash,
		FullName:     data.FullName,
		Email:        data.Email,
		Phone:        data.Phone,
		Address:      data.Address,
		Role:         role,
		Active:       true,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return protocol.Errorf(req.RequestID, "Username already exists"), nil
		}
		return nil, err
	}

	s.log.WithField("username", user.Username).
		WithField("role", user.Role).
		WithField("by", sess.User.Username).
		Info("user created")
	return protocol.OK(user, "Register successful", req.RequestID), nil
}

type updateProfileData struct {
	UserID   *int64 `json:"userId,omitempty"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
}

// UpdateUserProfile handles UPDATE_USER_PROFILE. A user may update their own
// profile; admins may update anyone's.
func (s *Service) UpdateUserProfile(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	sess, errResp := authz.RequireSession(s.sessions, req)
	if errResp != nil {
		return errResp, nil
	}
	var data updateProfileData
	if err := req.Bind(&data); err != nil {
		return protocol.Errorf(req.RequestID, "Invalid profile data"), nil
	}

	targetID := sess.User.ID
	if data.UserID != nil {
		targetID = *data.UserID
	}
	if targetID != sess.User.ID && !sess.User.IsAdmin() {
		return protocol.Errorf(req.RequestID, "Access denied. Admin only."), nil
	}

	user, err := s.store.GetUser(ctx, targetID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return protocol.Errorf(req.RequestID, "User not found"), nil
		}
		return nil, err
	}

	if data.FullName != "" {
		user.FullName = data.FullName
	}
	if data.Email != "" {
		user.Email = data.Email
	}
	if data.Phone != "" {
		user.Phone = data.Phone
	}
	if data.Address != "" {
		user.Address = data.Address
	}

	updated, err := s.store.UpdateUser(ctx, user)
	if err != nil {
		return nil, err
	}
	return protocol.OK(updated, "Profile updated", req.RequestID), nil
}
