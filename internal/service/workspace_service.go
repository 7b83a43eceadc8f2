package service

import (
	"context"
	"errors"
	"sync"

	dom "taskboard/internal/domain"
	"taskboard/internal/repo"
)

// WorkspaceService owns the single shared board and its membership.
type WorkspaceService struct {
	repo repo.WorkspaceRepo
	name string

	mu      sync.Mutex
	current *dom.Workspace
}

// NewWorkspaceService returns a service for the workspace called name
// (dom.DefaultWorkspaceName when empty).
func NewWorkspaceService(r repo.WorkspaceRepo, name string) *WorkspaceService {
	if name == "" {
		name = dom.DefaultWorkspaceName
	}
	return &WorkspaceService{repo: r, name: name}
}

// Enroll returns the workspace, creating it and adding userID as a member if
// needed. Repeated calls are idempotent.
func (s *WorkspaceService) Enroll(ctx context.Context, userID int64) (dom.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current.HasMember(userID) {
		return *s.current, nil
	}

	ws, err := s.repo.FindByName(ctx, s.name)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		ws = dom.Workspace{Name: s.name}
	case err != nil:
		return dom.Workspace{}, &dom.StoreError{Op: "find workspace", Err: err}
	}

	if ws.ID == 0 || !ws.HasMember(userID) {
		ws, err = s.repo.Save(ctx, ws.WithMember(userID))
		if err != nil {
			return dom.Workspace{}, &dom.StoreError{Op: "save workspace", Err: err}
		}
	}
	s.current = &ws
	return ws, nil
}
