package render

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/taskreview/internal/config"
)

func numbered(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		b.WriteString("line ")
		b.WriteString(strings.Repeat("x", i%3))
		b.WriteString(string(rune('a' + i%26)))
		b.WriteString("\n")
	}
	return b.String()
}

func TestLineChangeCounts(t *testing.T) {
	tests := []struct {
		name      string
		old, new  string
		adds, del int
	}{
		{name: "identical", old: "a\nb\n", new: "a\nb\n"},
		{name: "added file", old: "", new: "a\nb\nc\n", adds: 3},
		{name: "deleted file", old: "a\nb\n", new: "", del: 2},
		{name: "one changed line", old: "a\nb\nc\n", new: "a\nB\nc\n", adds: 1, del: 1},
		{name: "no trailing newline", old: "a", new: "a\nb", adds: 2, del: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adds, dels := LineChangeCounts(tt.old, tt.new)
			require.Equal(t, tt.adds, adds)
			require.Equal(t, tt.del, dels)
		})
	}
}

func TestCompute_SingleHunkWithContext(t *testing.T) {
	old := "1\n2\n3\n4\n5\n6\n7\n8\n9\n10\n"
	new := "1\n2\n3\n4\nfive\n6\n7\n8\n9\n10\n"

	file, err := Compute(context.Background(), Params{Path: "n.txt", OldContent: old, NewContent: new, ContextLines: 3})
	require.NoError(t, err)
	require.Equal(t, 1, file.Additions)
	require.Equal(t, 1, file.Deletions)
	require.Len(t, file.Hunks, 1)

	h := file.Hunks[0]
	require.Equal(t, "@@ -2,7 +2,7 @@", h.Header())
	require.Len(t, h.Lines, 8)
	require.Equal(t, LineDeletion, h.Lines[3].Kind)
	require.Equal(t, "5", h.Lines[3].Text)
	require.Equal(t, 5, h.Lines[3].OldNum)
	require.Equal(t, LineAddition, h.Lines[4].Kind)
	require.Equal(t, 5, h.Lines[4].NewNum)
	require.Equal(t, 9, file.LineCount())
}

func TestCompute_SeparatesDistantChanges(t *testing.T) {
	oldLines := strings.Split(strings.TrimSuffix(numbered(40), "\n"), "\n")
	newLines := append([]string(nil), oldLines...)
	newLines[2] = "changed top"
	newLines[35] = "changed bottom"

	file, err := Compute(context.Background(), Params{
		OldContent:   strings.Join(oldLines, "\n") + "\n",
		NewContent:   strings.Join(newLines, "\n") + "\n",
		ContextLines: 3,
	})
	require.NoError(t, err)
	require.Len(t, file.Hunks, 2)
	require.Equal(t, 1, file.Hunks[0].OldStart)
	require.Equal(t, 33, file.Hunks[1].OldStart)
}

func TestCompute_MergesNearbyChanges(t *testing.T) {
	old := "a\nb\nc\nd\ne\nf\ng\n"
	new := "A\nb\nc\nd\ne\nf\nG\n"

	file, err := Compute(context.Background(), Params{OldContent: old, NewContent: new, ContextLines: 3})
	require.NoError(t, err)
	require.Len(t, file.Hunks, 1)
}

func TestCompute_PureAdditionStartsAtZero(t *testing.T) {
	file, err := Compute(context.Background(), Params{NewContent: "x\ny\n", ContextLines: 3})
	require.NoError(t, err)
	require.Len(t, file.Hunks, 1)
	require.Equal(t, "@@ -0,0 +1,2 @@", file.Hunks[0].Header())
}

func TestCompute_IdenticalHasNoHunks(t *testing.T) {
	file, err := Compute(context.Background(), Params{OldContent: "same\n", NewContent: "same\n"})
	require.NoError(t, err)
	require.Empty(t, file.Hunks)
	require.Zero(t, file.LineCount())
}

func TestCompute_WordSegments(t *testing.T) {
	file, err := Compute(context.Background(), Params{
		OldContent: "return foo(bar)\n",
		NewContent: "return foo(baz)\n",
	})
	require.NoError(t, err)
	lines := file.Hunks[0].Lines
	require.Len(t, lines, 2)

	var deleted, added []string
	for _, s := range lines[0].Segments {
		if s.Kind == SegmentDeleted {
			deleted = append(deleted, s.Text)
		}
	}
	for _, s := range lines[1].Segments {
		if s.Kind == SegmentAdded {
			added = append(added, s.Text)
		}
	}
	require.Equal(t, []string{"bar"}, deleted)
	require.Equal(t, []string{"baz"}, added)
}

func TestCompute_OmittedAndCanceled(t *testing.T) {
	_, err := Compute(context.Background(), Params{ContentOmitted: true})
	require.ErrorIs(t, err, ErrContentOmitted)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Compute(ctx, Params{OldContent: "a", NewContent: "b"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestTokenize(t *testing.T) {
	require.Equal(t, []string{"foo", ".", "bar", "(", ")", " ", "x"}, tokenize("foo.bar() x"))
	require.Nil(t, tokenize(""))
}

func TestParams_KeyIsContentIdentity(t *testing.T) {
	a := Params{Path: "a.go", OldContent: "x", NewContent: "y", ContextLines: 3}
	b := Params{Path: "b.go", OldContent: "x", NewContent: "y", ContextLines: 3}
	c := Params{Path: "a.go", OldContent: "x", NewContent: "z", ContextLines: 3}
	require.Equal(t, a.Key(), b.Key())
	require.NotEqual(t, a.Key(), c.Key())
	b.ContextLines = 5
	require.NotEqual(t, a.Key(), b.Key())
}

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p := NewProvider(config.Defaults().Render, nil)
	t.Cleanup(p.Close)
	return p
}

func TestProvider_RequestLoadsInBackground(t *testing.T) {
	p := newTestProvider(t)
	ready := make(chan Ready, 4)
	p.OnReady(func(r Ready) { ready <- r })

	params := Params{Path: "a.go", OldContent: "a\n", NewContent: "b\n", ContextLines: 3}
	first := p.Request(context.Background(), params)
	require.True(t, first.IsLoading)
	require.Nil(t, first.File)

	select {
	case r := <-ready:
		require.NoError(t, r.Err)
		require.Equal(t, "a.go", r.Path)
		require.Equal(t, params.Key(), r.Key)
	case <-time.After(2 * time.Second):
		t.Fatal("render did not complete")
	}

	second := p.Request(context.Background(), params)
	require.False(t, second.IsLoading)
	require.NotNil(t, second.File)
	require.Equal(t, 1, second.Additions)
	require.Equal(t, 1, second.Deletions)
	require.True(t, p.Cached(params))
	require.EqualValues(t, 1, p.Computations())
}

func TestProvider_SameContentDifferentPathShareRender(t *testing.T) {
	p := newTestProvider(t)
	a := Params{Path: "a.go", OldContent: "x\n", NewContent: "y\n"}
	b := Params{Path: "copy/a.go", OldContent: "x\n", NewContent: "y\n"}

	ra := p.Compute(context.Background(), a)
	rb := p.Compute(context.Background(), b)
	require.NoError(t, ra.Err)
	require.Equal(t, "a.go", ra.File.Path)
	require.Equal(t, "copy/a.go", rb.File.Path)
	require.EqualValues(t, 1, p.Computations())
}

func TestProvider_OmittedContent(t *testing.T) {
	p := newTestProvider(t)
	res := p.Request(context.Background(), Params{Path: "big.bin", ContentOmitted: true})
	require.ErrorIs(t, res.Err, ErrContentOmitted)
	require.False(t, res.IsLoading)
}

func TestProvider_RequestAfterClose(t *testing.T) {
	p := NewProvider(config.Defaults().Render, nil)
	p.Close()
	p.Close()

	res := p.Request(context.Background(), Params{OldContent: "a", NewContent: "b"})
	require.ErrorIs(t, res.Err, ErrClosed)
}
