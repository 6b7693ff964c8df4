package gitfetch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentwars/arena-api/cmd/worker/internal/gitfetch"
)

func commitFixtureRepo(t *testing.T) (string, string) {
	t.Helper()

	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err, "failed to init fixture repo")

	worktree, err := repo.Worktree()
	require.NoError(t, err, "failed to open fixture worktree")

	err = os.WriteFile(filepath.Join(dir, "README.md"), []byte("# fixture\n"), 0o600)
	require.NoError(t, err, "failed to write fixture file")

	_, err = worktree.Add("README.md")
	require.NoError(t, err, "failed to stage fixture file")

	commit, err := worktree.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "fixture",
			Email: "fixture@example.com",
			When:  time.Now(),
		},
	})
	require.NoError(t, err, "failed to commit fixture")

	return dir, commit.String()
}

func TestResolveHead(t *testing.T) {
	t.Run("ResolvesCommit", func(t *testing.T) {
		ctx := context.Background()
		repoDir, commitSHA := commitFixtureRepo(t)

		fetcher := gitfetch.NewGitFetcher()
		head, err := fetcher.ResolveHead(ctx, repoDir)
		require.NoError(t, err, "failed to resolve HEAD")
		assert.Equal(t, commitSHA, head, "resolved commit did not match")
	})

	t.Run("UnreachableRemote", func(t *testing.T) {
		ctx := context.Background()

		fetcher := gitfetch.NewGitFetcher()
		_, err := fetcher.ResolveHead(ctx, filepath.Join(t.TempDir(), "missing"))
		require.ErrorIs(t, err, gitfetch.ErrUnresolvableRef, "expected unresolvable ref")
	})
}

func TestFetchAt(t *testing.T) {
	t.Run("MaterializesCommit", func(t *testing.T) {
		ctx := context.Background()
		repoDir, commitSHA := commitFixtureRepo(t)
		workDir := filepath.Join(t.TempDir(), "clone")

		fetcher := gitfetch.NewGitFetcher()
		err := fetcher.FetchAt(ctx, repoDir, commitSHA, workDir)
		require.NoError(t, err, "failed to fetch repo at commit")

		content, err := os.ReadFile(filepath.Join(workDir, "README.md"))
		require.NoError(t, err, "failed to read checked out file")
		assert.Equal(t, "# fixture\n", string(content), "checked out content did not match")
	})

	t.Run("CloneFailure", func(t *testing.T) {
		ctx := context.Background()
		workDir := filepath.Join(t.TempDir(), "clone")

		fetcher := gitfetch.NewGitFetcher()
		err := fetcher.FetchAt(ctx, filepath.Join(t.TempDir(), "missing"), "deadbeef", workDir)

		var cloneErr *gitfetch.CloneError
		require.ErrorAs(t, err, &cloneErr, "expected clone error")
	})
}
