package catalog

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash/fnv"
	"sort"
	"strings"

	"github.com/zjrosen/taskreview/internal/log"
)

// Ordering compares two items for the catalog sort. It must be a strict weak order.
type Ordering func(a, b DiffItem) bool

// kindRank groups change kinds for DefaultOrdering.
var kindRank = map[ChangeKind]int{
	ChangeAdded:            0,
	ChangeModified:         1,
	ChangeRenamed:          2,
	ChangeCopied:           3,
	ChangePermissionChange: 4,
	ChangeDeleted:          5,
}

// DefaultOrdering groups by change kind, then sorts by path.
func DefaultOrdering(a, b DiffItem) bool {
	ra, rb := rankOf(a.ChangeKind), rankOf(b.ChangeKind)
	if ra != rb {
		return ra < rb
	}
	return a.Key < b.Key
}

// PathOrdering sorts by path only.
func PathOrdering(a, b DiffItem) bool {
	return a.Key < b.Key
}

func rankOf(k ChangeKind) int {
	if r, ok := kindRank[k]; ok {
		return r
	}
	return len(kindRank)
}

// Catalog is the ordered sequence of diff items plus a path index.
// A Catalog is immutable once built.
type Catalog struct {
	items    []DiffItem
	index    map[string]int
	identity string
}

// Build creates a catalog from an unordered record set. Records with an empty
// key are excluded. When two records share a key the later one wins at the
// first one's position. Items the ordering ties keep their input order.
// A nil policy expands everything; a nil order uses DefaultOrdering.
func Build(records []DiffRecord, policy *ExpansionPolicy, order Ordering) *Catalog {
	if order == nil {
		order = DefaultOrdering
	}

	items := make([]DiffItem, 0, len(records))
	seen := make(map[string]int, len(records))
	skipped := 0
	for _, r := range records {
		key := r.Key()
		if key == "" {
			skipped++
			continue
		}
		kind := r.ChangeKind
		if !kind.Valid() {
			kind = ChangeModified
		}
		item := DiffItem{
			Key:            key,
			OldPath:        r.OldPath,
			ChangeKind:     kind,
			Additions:      r.Additions,
			Deletions:      r.Deletions,
			OldContent:     r.OldContent,
			NewContent:     r.NewContent,
			ContentOmitted: r.ContentOmitted,
		}
		if i, dup := seen[key]; dup {
			items[i] = item
			continue
		}
		seen[key] = len(items)
		items = append(items, item)
	}
	if skipped > 0 {
		log.Warn(log.CatCatalog, "skipped records without a path", "count", skipped)
	}

	sort.SliceStable(items, func(i, j int) bool { return order(items[i], items[j]) })

	index := make(map[string]int, len(items))
	for i := range items {
		if policy != nil {
			items[i].InitialExpanded = policy.Decide(items[i])
		} else {
			items[i].InitialExpanded = true
		}
		index[items[i].Key] = i
	}

	c := &Catalog{items: items, index: index, identity: Identity(records)}
	log.Debug(log.CatCatalog, "catalog built", "items", len(items), "identity", c.identity)
	return c
}

// Empty returns a catalog with no items.
func Empty() *Catalog {
	return &Catalog{index: map[string]int{}, identity: Identity(nil)}
}

// Len returns the number of items.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// At returns the item at position i.
func (c *Catalog) At(i int) (DiffItem, bool) {
	if c == nil || i < 0 || i >= len(c.items) {
		return DiffItem{}, false
	}
	return c.items[i], true
}

// IndexOf returns the position of path.
func (c *Catalog) IndexOf(path string) (int, bool) {
	if c == nil {
		return 0, false
	}
	i, ok := c.index[path]
	return i, ok
}

// Contains reports whether path is a key of the catalog.
func (c *Catalog) Contains(path string) bool {
	_, ok := c.IndexOf(path)
	return ok
}

// Keys returns the item keys in catalog order.
func (c *Catalog) Keys() []string {
	if c == nil {
		return nil
	}
	keys := make([]string, len(c.items))
	for i, item := range c.items {
		keys[i] = item.Key
	}
	return keys
}

// Items returns a copy of the items in catalog order.
func (c *Catalog) Items() []DiffItem {
	if c == nil {
		return nil
	}
	out := make([]DiffItem, len(c.items))
	copy(out, c.items)
	return out
}

// Identity returns the identity of the record set this catalog was built from.
func (c *Catalog) Identity() string {
	if c == nil {
		return ""
	}
	return c.identity
}

// Clamp limits i to a valid position. Returns -1 for an empty catalog.
func (c *Catalog) Clamp(i int) int {
	n := c.Len()
	if n == 0 {
		return -1
	}
	return max(0, min(i, n-1))
}

// Identity fingerprints a record set independent of order: two sets with the
// same paths, kinds, counts and contents produce the same identity.
func Identity(records []DiffRecord) string {
	parts := make([]string, 0, len(records))
	for _, r := range records {
		oldSum := sha256.Sum256([]byte(r.OldContent))
		newSum := sha256.Sum256([]byte(r.NewContent))
		parts = append(parts, strings.Join([]string{
			r.OldPath, r.NewPath, string(r.ChangeKind),
			string(oldSum[:8]), string(newSum[:8]),
		}, "\x00")+countsSuffix(r))
	}
	sort.Strings(parts)

	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0xff})
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], h.Sum64())
	return hex.EncodeToString(buf[:])
}

func countsSuffix(r DiffRecord) string {
	var buf [17]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(r.Additions))
	binary.BigEndian.PutUint64(buf[8:16], uint64(r.Deletions))
	if r.ContentOmitted {
		buf[16] = 1
	}
	return string(buf[:])
}
