package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zjrosen/taskreview/internal/log"
	"github.com/zjrosen/taskreview/internal/review/catalog"
)

var (
	// ErrNotGitRepo indicates the directory is not a git repository.
	ErrNotGitRepo = errors.New("not a git repository")

	// ErrUnknownRevision indicates the base ref does not resolve.
	ErrUnknownRevision = errors.New("unknown revision")

	// ErrPathOutsideRepo indicates a worktree read escaped the repository root.
	ErrPathOutsideRepo = errors.New("path outside repository")
)

var _ Executor = (*RealExecutor)(nil)

// RealExecutor implements Executor by executing git commands in workDir.
type RealExecutor struct {
	workDir string
}

// NewRealExecutor creates a RealExecutor rooted at workDir.
func NewRealExecutor(workDir string) *RealExecutor {
	return &RealExecutor{workDir: workDir}
}

// runGit executes git and returns raw stdout.
func (e *RealExecutor) runGit(ctx context.Context, args ...string) ([]byte, error) {
	//nolint:gosec // G204: args come from controlled sources
	cmd := exec.CommandContext(ctx, "git", args...)
	if e.workDir != "" {
		cmd.Dir = e.workDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, parseGitError(msg, err)
		}
		return nil, fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return stdout.Bytes(), nil
}

// parseGitError converts git stderr messages to sentinel errors.
func parseGitError(stderr string, originalErr error) error {
	lower := strings.ToLower(stderr)

	if strings.Contains(lower, "not a git repository") {
		return fmt.Errorf("%w: %s", ErrNotGitRepo, stderr)
	}
	if strings.Contains(lower, "unknown revision") || strings.Contains(lower, "bad revision") ||
		strings.Contains(lower, "invalid object name") {
		return fmt.Errorf("%w: %s", ErrUnknownRevision, stderr)
	}

	return fmt.Errorf("git error: %s: %w", stderr, originalErr)
}

// IsGitRepo checks if workDir is inside a git repository.
func (e *RealExecutor) IsGitRepo() bool {
	_, err := e.runGit(context.Background(), "rev-parse", "--git-dir")
	return err == nil
}

// GetRepoRoot returns the top-level directory of the repository.
func (e *RealExecutor) GetRepoRoot() (string, error) {
	out, err := e.runGit(context.Background(), "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// ListChanges combines name-status, numstat and mode summaries against base
// with the untracked file list.
func (e *RealExecutor) ListChanges(ctx context.Context, base string) ([]Change, error) {
	nameStatus, err := e.runGit(ctx, "diff", "--name-status", "-z", "-M", "-C", base, "--")
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	numstat, err := e.runGit(ctx, "diff", "--numstat", "-z", "-M", "-C", base, "--")
	if err != nil {
		return nil, fmt.Errorf("line counts: %w", err)
	}
	summary, err := e.runGit(ctx, "diff", "--summary", "-M", "-C", base, "--")
	if err != nil {
		return nil, fmt.Errorf("mode changes: %w", err)
	}
	untracked, err := e.runGit(ctx, "ls-files", "--others", "--exclude-standard", "-z")
	if err != nil {
		return nil, fmt.Errorf("untracked files: %w", err)
	}

	changes := parseNameStatus(string(nameStatus))
	applyNumstat(changes, parseNumstat(string(numstat)))
	applyModeChanges(changes, parseModeChanges(string(summary)))
	for _, path := range splitNul(string(untracked)) {
		changes = append(changes, Change{Kind: catalog.ChangeAdded, NewPath: path})
	}

	log.Debug(log.CatGit, "listed changes", "base", base, "count", len(changes))
	return changes, nil
}

// ShowFile returns path's content at ref.
func (e *RealExecutor) ShowFile(ctx context.Context, ref, path string) (string, error) {
	out, err := e.runGit(ctx, "show", ref+":"+filepath.ToSlash(path))
	if err != nil {
		return "", fmt.Errorf("show %s:%s: %w", ref, path, err)
	}
	return string(out), nil
}

// ReadWorktreeFile returns path's content relative to workDir.
func (e *RealExecutor) ReadWorktreeFile(path string) (string, error) {
	full := filepath.Join(e.workDir, filepath.FromSlash(path))
	rel, err := filepath.Rel(e.workDir, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathOutsideRepo, path)
	}
	data, err := os.ReadFile(full) // #nosec G304 -- confined to workDir above
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func splitNul(s string) []string {
	var out []string
	for _, part := range strings.Split(s, "\x00") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseNameStatus parses `git diff --name-status -z` output.
func parseNameStatus(out string) []Change {
	fields := strings.Split(out, "\x00")
	var changes []Change
	for i := 0; i < len(fields); i++ {
		status := strings.TrimSpace(fields[i])
		if status == "" {
			continue
		}
		code := status[0]
		switch code {
		case 'R', 'C':
			if i+2 >= len(fields) {
				return changes
			}
			kind := catalog.ChangeRenamed
			if code == 'C' {
				kind = catalog.ChangeCopied
			}
			changes = append(changes, Change{Kind: kind, OldPath: fields[i+1], NewPath: fields[i+2]})
			i += 2
		default:
			if i+1 >= len(fields) {
				return changes
			}
			path := fields[i+1]
			i++
			switch code {
			case 'A':
				changes = append(changes, Change{Kind: catalog.ChangeAdded, NewPath: path})
			case 'D':
				changes = append(changes, Change{Kind: catalog.ChangeDeleted, OldPath: path})
			default:
				changes = append(changes, Change{Kind: catalog.ChangeModified, OldPath: path, NewPath: path})
			}
		}
	}
	return changes
}

type lineStat struct {
	additions int
	deletions int
	binary    bool
}

// parseNumstat parses `git diff --numstat -z` output keyed by new path.
// Renames and copies appear as "adds\tdels\t" followed by old and new paths.
func parseNumstat(out string) map[string]lineStat {
	stats := make(map[string]lineStat)
	fields := strings.Split(out, "\x00")
	for i := 0; i < len(fields); i++ {
		f := strings.TrimLeft(fields[i], "\n")
		if f == "" {
			continue
		}
		parts := strings.SplitN(f, "\t", 3)
		if len(parts) < 3 {
			continue
		}
		stat := lineStat{}
		if parts[0] == "-" && parts[1] == "-" {
			stat.binary = true
		} else {
			stat.additions, _ = strconv.Atoi(parts[0])
			stat.deletions, _ = strconv.Atoi(parts[1])
		}
		path := parts[2]
		if path == "" {
			if i+2 >= len(fields) {
				break
			}
			path = fields[i+2]
			i += 2
		}
		stats[path] = stat
	}
	return stats
}

func applyNumstat(changes []Change, stats map[string]lineStat) {
	for i := range changes {
		key := changes[i].NewPath
		if key == "" {
			key = changes[i].OldPath
		}
		if s, ok := stats[key]; ok {
			changes[i].Additions = s.additions
			changes[i].Deletions = s.deletions
			changes[i].Binary = s.binary
			changes[i].HasCounts = true
		}
	}
}

// parseModeChanges returns paths listed as " mode change A => B path" in
// `git diff --summary` output.
func parseModeChanges(out string) map[string]bool {
	paths := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), "mode change ")
		if !ok {
			continue
		}
		parts := strings.SplitN(rest, " ", 4)
		if len(parts) == 4 && parts[1] == "=>" {
			paths[parts[3]] = true
		}
	}
	return paths
}

// applyModeChanges marks content-identical modifications whose mode changed.
func applyModeChanges(changes []Change, modes map[string]bool) {
	for i := range changes {
		c := &changes[i]
		if c.Kind == catalog.ChangeModified && modes[c.NewPath] && c.Additions == 0 && c.Deletions == 0 && !c.Binary {
			c.Kind = catalog.ChangePermissionChange
		}
	}
}
