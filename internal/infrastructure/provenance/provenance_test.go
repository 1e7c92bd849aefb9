package provenance

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

func initDataset(t *testing.T) (string, string) {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)

	pkg := filepath.Join(dir, "com.app", "process_1")
	require.NoError(t, os.MkdirAll(pkg, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "record.json"), []byte("{}"), 0o644))
	_, err = wt.Add("com.app/process_1/record.json")
	require.NoError(t, err)

	hash, err := wt.Commit("add process", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "flowcheck",
			Email: "flowcheck@example.com",
			When:  time.Now(),
		},
	})
	require.NoError(t, err)

	return dir, hash.String()
}

func TestLookupFindsEnclosingRepository(t *testing.T) {
	t.Parallel()

	dir, commit := initDataset(t)

	rev, err := Lookup(filepath.Join(dir, "com.app", "process_1"))
	require.NoError(t, err)
	require.Equal(t, commit, rev.Commit)
	require.Equal(t, "master", rev.Branch)
	require.Equal(t, "master@"+commit[:12], rev.String())
}

func TestLookupOutsideRepository(t *testing.T) {
	t.Parallel()

	rev, err := Lookup(t.TempDir())
	require.NoError(t, err)
	require.Zero(t, rev)
	require.Empty(t, rev.String())
}

func TestLookupEmptyRepository(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	rev, err := Lookup(dir)
	require.NoError(t, err)
	require.Zero(t, rev)
}

func TestRevisionStringWithoutBranch(t *testing.T) {
	t.Parallel()

	require.Equal(t, "0123456789ab", Revision{Commit: "0123456789abcdef"}.String())
	require.Equal(t, "abc", Revision{Commit: "abc"}.String())
}
