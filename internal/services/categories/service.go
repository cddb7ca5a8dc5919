// Package categories exposes the product category catalog.
package categories

import (
	"context"

	"github.com/retailcore/posd/internal/protocol"
	"github.com/retailcore/posd/internal/services/authz"
	"github.com/retailcore/posd/internal/session"
	"github.com/retailcore/posd/internal/storage"
	"github.com/retailcore/posd/pkg/logger"
)

// Service reads categories.
type Service struct {
	store    storage.CategoryStore
	sessions *session.Store
	log      *logger.Logger
}

// New constructs the category service.
func New(store storage.CategoryStore, sessions *session.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("categories")
	}
	return &Service{store: store, sessions: sessions, log: log}
}

// GetCategories handles GET_CATEGORIES.
func (s *Service) GetCategories(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if _, errResp := authz.RequireSession(s.sessions, req); errResp != nil {
		return errResp, nil
	}
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	return protocol.OK(cats, "Categories retrieved", req.RequestID), nil
}
