package domain

import (
	"context"
	"slices"
	"time"
)

// DefaultWorkspaceName is the shared board every user is enrolled into.
const DefaultWorkspaceName = "Collaborative Board"

// Workspace holds tasks and members. Members are only ever added.
type Workspace struct {
	ID        int64
	Name      string
	Members   []int64
	CreatedAt time.Time
}

// HasMember reports whether userID is enrolled.
func (w Workspace) HasMember(userID int64) bool {
	return slices.Contains(w.Members, userID)
}

// WithMember returns a copy of w with userID enrolled. The member list of w is
// not modified.
func (w Workspace) WithMember(userID int64) Workspace {
	if w.HasMember(userID) {
		return w
	}
	members := make([]int64, 0, len(w.Members)+1)
	members = append(members, w.Members...)
	w.Members = append(members, userID)
	return w
}

type workspaceKey struct{}

// ContextWithWorkspace attaches the resolved workspace to ctx.
func ContextWithWorkspace(ctx context.Context, ws Workspace) context.Context {
	return context.WithValue(ctx, workspaceKey{}, ws)
}

// WorkspaceFromContext returns the workspace set by ContextWithWorkspace.
func WorkspaceFromContext(ctx context.Context) (Workspace, bool) {
	ws, ok := ctx.Value(workspaceKey{}).(Workspace)
	return ws, ok
}
