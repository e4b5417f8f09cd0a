// Package git loads the change set of a worktree against a base ref by
// shelling out to git.
package git

import (
	"context"

	"github.com/zjrosen/taskreview/internal/review/catalog"
)

// Change is one entry of the worktree's change list before contents are read.
type Change struct {
	Kind      catalog.ChangeKind
	OldPath   string
	NewPath   string
	Additions int
	Deletions int
	// HasCounts is false when git reported no line counts (untracked files).
	HasCounts bool
	Binary    bool
}

// Executor runs the git queries the diff source needs.
type Executor interface {
	IsGitRepo() bool
	GetRepoRoot() (string, error)
	// ListChanges returns tracked changes against base plus untracked files.
	ListChanges(ctx context.Context, base string) ([]Change, error)
	// ShowFile returns path's content at ref.
	ShowFile(ctx context.Context, ref, path string) (string, error)
	// ReadWorktreeFile returns path's content in the working tree.
	ReadWorktreeFile(path string) (string, error)
}
