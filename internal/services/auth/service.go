// Package auth implements login and logout against the user store and the
// session authority.
package auth

import (
	"context"
	"errors"

	"github.com/retailcore/posd/internal/credentials"
	"github.com/retailcore/posd/internal/domain"
	"github.com/retailcore/posd/internal/metrics"
	"github.com/retailcore/posd/internal/protocol"
	"github.com/retailcore/posd/internal/session"
	"github.com/retailcore/posd/internal/storage"
	"github.com/retailcore/posd/pkg/logger"
)

// Service authenticates users and manages their sessions.
type Service struct {
	users    storage.UserStore
	sessions *session.Store
	log      *logger.Logger
}

// New constructs the auth service.
func New(users storage.UserStore, sessions *session.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &Service{users: users, sessions: sessions, log: log}
}

type loginData struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResult struct {
	SessionID string      `json:"sessionId"`
	User      domain.User `json:"user"`
}

// Login verifies credentials and creates a session. It is the only action
// served without a session token.
func (s *Service) Login(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	var data loginData
	if err := req.Bind(&data); err != nil {
		return protocol.Errorf(req.RequestID, "Invalid login data"), nil
	}
	if data.Username == "" || data.Password == "" {
		return protocol.Errorf(req.RequestID, "Invalid login data"), nil
	}

	user, err := s.users.GetUserByUsername(ctx, data.Username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return protocol.Errorf(req.RequestID, "User not found"), nil
		}
		return nil, err
	}
	if !credentials.Verify(data.Password, user.PasswordHash) {
		s.log.WithField("username", data.Username).Warn("failed login attempt")
		return protocol.Errorf(req.RequestID, "Invalid password"), nil
	}
	if !user.Active {
		return protocol.Errorf(req.RequestID, "Account is disabled"), nil
	}

	token, err := s.sessions.Create(user)
	if err != nil {
		return nil, err
	}
	metrics.SetActiveSessions(s.sessions.Len())

	s.log.WithField("username", user.Username).
		WithField("role", user.Role).
		Info("login successful")
	return protocol.OK(loginResult{SessionID: token, User: user}, "Login successful", req.RequestID), nil
}

// Logout removes the request's session.
func (s *Service) Logout(_ context.Context, req *protocol.Request) (*protocol.Response, error) {
	if req.SessionID == "" {
		return protocol.Errorf(req.RequestID, "Invalid session"), nil
	}
	if !s.sessions.Remove(req.SessionID) {
		return protocol.Errorf(req.RequestID, "Session not found"), nil
	}
	metrics.SetActiveSessions(s.sessions.Len())
	return protocol.OK(nil, "Logout successful", req.RequestID), nil
}
