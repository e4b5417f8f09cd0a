package git

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/taskreview/internal/review/catalog"
)

type mockExecutor struct {
	mock.Mock
}

func (m *mockExecutor) IsGitRepo() bool {
	return m.Called().Bool(0)
}

func (m *mockExecutor) GetRepoRoot() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *mockExecutor) ListChanges(ctx context.Context, base string) ([]Change, error) {
	args := m.Called(ctx, base)
	changes, _ := args.Get(0).([]Change)
	return changes, args.Error(1)
}

func (m *mockExecutor) ShowFile(ctx context.Context, ref, path string) (string, error) {
	args := m.Called(ctx, ref, path)
	return args.String(0), args.Error(1)
}

func (m *mockExecutor) ReadWorktreeFile(path string) (string, error) {
	args := m.Called(path)
	return args.String(0), args.Error(1)
}

func TestLoadDiffs_ReadsContentsPerKind(t *testing.T) {
	m := &mockExecutor{}
	m.On("IsGitRepo").Return(true)
	m.On("ListChanges", mock.Anything, "main").Return([]Change{
		{Kind: catalog.ChangeModified, OldPath: "a.go", NewPath: "a.go", Additions: 1, Deletions: 1, HasCounts: true},
		{Kind: catalog.ChangeAdded, NewPath: "b.go"},
		{Kind: catalog.ChangeDeleted, OldPath: "c.go", Deletions: 2, HasCounts: true},
		{Kind: catalog.ChangeModified, OldPath: "logo.png", NewPath: "logo.png", Binary: true, HasCounts: true},
	}, nil)
	m.On("ShowFile", mock.Anything, "main", "a.go").Return("old\n", nil)
	m.On("ReadWorktreeFile", "a.go").Return("new\n", nil)
	m.On("ReadWorktreeFile", "b.go").Return("x\ny\n", nil)
	m.On("ShowFile", mock.Anything, "main", "c.go").Return("1\n2\n", nil)

	records, err := LoadDiffs(context.Background(), m, "main", LoadOptions{})
	require.NoError(t, err)
	require.Len(t, records, 4)

	require.Equal(t, "old\n", records[0].OldContent)
	require.Equal(t, "new\n", records[0].NewContent)
	require.Equal(t, 2, records[1].Additions, "untracked counts are computed")
	require.Equal(t, "1\n2\n", records[2].OldContent)
	require.Empty(t, records[2].NewContent)
	require.True(t, records[3].ContentOmitted)
	m.AssertExpectations(t)
}

func TestLoadDiffs_StatsOnlyKeepsCounts(t *testing.T) {
	m := &mockExecutor{}
	m.On("IsGitRepo").Return(true)
	m.On("ListChanges", mock.Anything, "HEAD").Return([]Change{
		{Kind: catalog.ChangeAdded, NewPath: "n.go"},
	}, nil)
	m.On("ReadWorktreeFile", "n.go").Return("a\nb\nc\n", nil)

	records, err := LoadDiffs(context.Background(), m, "HEAD", LoadOptions{StatsOnly: true})
	require.NoError(t, err)
	require.True(t, records[0].ContentOmitted)
	require.Empty(t, records[0].NewContent)
	require.Equal(t, 3, records[0].Additions)
}

func TestLoadDiffs_CumulativeCapOmitsLaterRecords(t *testing.T) {
	m := &mockExecutor{}
	m.On("IsGitRepo").Return(true)
	m.On("ListChanges", mock.Anything, "HEAD").Return([]Change{
		{Kind: catalog.ChangeAdded, NewPath: "1.txt"},
		{Kind: catalog.ChangeAdded, NewPath: "2.txt"},
		{Kind: catalog.ChangeAdded, NewPath: "3.txt"},
	}, nil)
	m.On("ReadWorktreeFile", "1.txt").Return(strings.Repeat("a\n", 30), nil)
	m.On("ReadWorktreeFile", "2.txt").Return(strings.Repeat("b\n", 30), nil)
	m.On("ReadWorktreeFile", "3.txt").Return("c\n", nil)

	records, err := LoadDiffs(context.Background(), m, "HEAD", LoadOptions{MaxCumulativeBytes: 100})
	require.NoError(t, err)

	require.False(t, records[0].ContentOmitted)
	require.True(t, records[1].ContentOmitted)
	require.Equal(t, 30, records[1].Additions)
	require.False(t, records[2].ContentOmitted, "small records still fit under the cap")
}

func TestLoadDiffs_Errors(t *testing.T) {
	notRepo := &mockExecutor{}
	notRepo.On("IsGitRepo").Return(false)
	_, err := LoadDiffs(context.Background(), notRepo, "HEAD", LoadOptions{})
	require.ErrorIs(t, err, ErrNotGitRepo)

	listFails := &mockExecutor{}
	listFails.On("IsGitRepo").Return(true)
	listFails.On("ListChanges", mock.Anything, "nope").Return(nil, ErrUnknownRevision)
	_, err = LoadDiffs(context.Background(), listFails, "nope", LoadOptions{})
	require.ErrorIs(t, err, ErrUnknownRevision)

	showFails := &mockExecutor{}
	showFails.On("IsGitRepo").Return(true)
	showFails.On("ListChanges", mock.Anything, "HEAD").Return([]Change{{Kind: catalog.ChangeDeleted, OldPath: "d.go"}}, nil)
	showFails.On("ShowFile", mock.Anything, "HEAD", "d.go").Return("", errors.New("boom"))
	_, err = LoadDiffs(context.Background(), showFails, "HEAD", LoadOptions{})
	require.ErrorContains(t, err, "old content of d.go")
}

func TestLoadDiffs_UnreadableWorktreeFileKeepsRecord(t *testing.T) {
	m := &mockExecutor{}
	m.On("IsGitRepo").Return(true)
	m.On("ListChanges", mock.Anything, "HEAD").Return([]Change{{Kind: catalog.ChangeAdded, NewPath: "vanished.go"}}, nil)
	m.On("ReadWorktreeFile", "vanished.go").Return("", errors.New("no such file"))

	records, err := LoadDiffs(context.Background(), m, "HEAD", LoadOptions{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "vanished.go", records[0].Key())
}
