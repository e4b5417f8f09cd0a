package catalog

import (
	"slices"
	"sync"

	"github.com/zjrosen/taskreview/internal/log"
)

// DefaultCollapsedKinds start collapsed regardless of size.
var DefaultCollapsedKinds = []ChangeKind{ChangeDeleted, ChangeRenamed, ChangeCopied, ChangePermissionChange}

// DefaultMaxExpandedLines is the changed-line count above which a file starts collapsed.
const DefaultMaxExpandedLines = 200

// ExpansionPolicy decides the initial expand/collapse state of each path
// exactly once per session. Later rebuilds of the catalog reuse the decision
// (or the user's toggle) so a re-render never flips a file on its own.
type ExpansionPolicy struct {
	collapsedKinds   []ChangeKind
	maxExpandedLines int

	mu      sync.Mutex
	decided map[string]bool
}

// NewExpansionPolicy creates a policy. A nil kinds slice uses DefaultCollapsedKinds;
// maxLines <= 0 uses DefaultMaxExpandedLines.
func NewExpansionPolicy(kinds []ChangeKind, maxLines int) *ExpansionPolicy {
	if kinds == nil {
		kinds = DefaultCollapsedKinds
	}
	if maxLines <= 0 {
		maxLines = DefaultMaxExpandedLines
	}
	return &ExpansionPolicy{
		collapsedKinds:   slices.Clone(kinds),
		maxExpandedLines: maxLines,
		decided:          make(map[string]bool),
	}
}

// Decide returns whether item starts expanded. The first call for a path
// applies the rule; every later call returns the recorded state.
func (p *ExpansionPolicy) Decide(item DiffItem) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if expanded, ok := p.decided[item.Key]; ok {
		return expanded
	}

	expanded := !slices.Contains(p.collapsedKinds, item.ChangeKind) &&
		item.ChangedLines() <= p.maxExpandedLines
	p.decided[item.Key] = expanded

	log.Debug(log.CatCatalog, "initial expansion decided", "path", item.Key, "expanded", expanded)
	return expanded
}

// Toggle records a user's explicit choice for path.
func (p *ExpansionPolicy) Toggle(path string, expanded bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decided[path] = expanded
}

// Expanded returns the recorded state for path and whether one exists.
func (p *ExpansionPolicy) Expanded(path string) (expanded, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	expanded, ok = p.decided[path]
	return expanded, ok
}

// Reset forgets every decision, starting a new session.
func (p *ExpansionPolicy) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decided = make(map[string]bool)
}
