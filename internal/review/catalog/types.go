// Package catalog builds the ordered, keyed sequence of diff items shown by
// the review pane and decides, once per path, whether each file starts
// expanded.
package catalog

// ChangeKind describes how a file changed.
type ChangeKind string

const (
	ChangeAdded            ChangeKind = "added"
	ChangeDeleted          ChangeKind = "deleted"
	ChangeModified         ChangeKind = "modified"
	ChangeRenamed          ChangeKind = "renamed"
	ChangeCopied           ChangeKind = "copied"
	ChangePermissionChange ChangeKind = "permissionChange"
)

// Valid reports whether k is one of the known change kinds.
func (k ChangeKind) Valid() bool {
	switch k {
	case ChangeAdded, ChangeDeleted, ChangeModified, ChangeRenamed, ChangeCopied, ChangePermissionChange:
		return true
	default:
		return false
	}
}

// DiffRecord is one file's change as supplied by the diff source, in no
// particular order.
type DiffRecord struct {
	OldPath        string
	NewPath        string
	OldContent     string
	NewContent     string
	ChangeKind     ChangeKind
	Additions      int
	Deletions      int
	ContentOmitted bool // contents dropped by the stream omit policy; counts still valid
}

// Key returns NewPath if present, else OldPath.
func (r DiffRecord) Key() string {
	if r.NewPath != "" {
		return r.NewPath
	}
	return r.OldPath
}

// DiffItem is one entry of the catalog.
type DiffItem struct {
	Key             string
	OldPath         string
	ChangeKind      ChangeKind
	Additions       int
	Deletions       int
	OldContent      string
	NewContent      string
	ContentOmitted  bool
	InitialExpanded bool
}

// ChangedLines returns additions+deletions.
func (i DiffItem) ChangedLines() int {
	return i.Additions + i.Deletions
}

// Identical reports whether old and new contents are byte-identical.
func (i DiffItem) Identical() bool {
	return i.OldContent == i.NewContent
}
