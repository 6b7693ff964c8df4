package filetree_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentwars/arena-api/cmd/worker/internal/filetree"
)

func writeFile(t *testing.T, root string, rel string) {
	t.Helper()

	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o600))
}

func TestSummarize(t *testing.T) {
	t.Run("ListsFilesAndSuffixesDirectories", func(t *testing.T) {
		ctx := context.Background()
		root := t.TempDir()
		writeFile(t, root, "README.md")
		writeFile(t, root, "src/main.go")

		summary, err := filetree.Summarize(ctx, root)
		require.NoError(t, err, "failed to summarize")

		assert.Contains(t, summary.Entries, "README.md")
		assert.Contains(t, summary.Entries, "src/")
		assert.Contains(t, summary.Entries, "src/main.go")
	})

	t.Run("SkipsVersionControlAndDependencyCaches", func(t *testing.T) {
		ctx := context.Background()
		root := t.TempDir()
		writeFile(t, root, ".git/config")
		writeFile(t, root, "node_modules/leftpad/index.js")
		writeFile(t, root, "app.js")

		summary, err := filetree.Summarize(ctx, root)
		require.NoError(t, err, "failed to summarize")

		assert.Contains(t, summary.Entries, "app.js")
		for _, entry := range summary.Entries {
			assert.NotContains(t, entry, ".git")
			assert.NotContains(t, entry, "node_modules")
		}
	})

	t.Run("BoundsDepth", func(t *testing.T) {
		ctx := context.Background()
		root := t.TempDir()
		writeFile(t, root, "a/b/c/d/deep.txt")

		summary, err := filetree.Summarize(ctx, root)
		require.NoError(t, err, "failed to summarize")

		assert.Contains(t, summary.Entries, "a/b/c/")
		assert.NotContains(t, summary.Entries, "a/b/c/d/")
		assert.NotContains(t, summary.Entries, "a/b/c/d/deep.txt")
	})

	t.Run("BoundsEntryCount", func(t *testing.T) {
		ctx := context.Background()
		root := t.TempDir()
		for i := range 450 {
			writeFile(t, root, fmt.Sprintf("file-%03d.txt", i))
		}

		summary, err := filetree.Summarize(ctx, root)
		require.NoError(t, err, "failed to summarize")

		assert.Len(t, summary.Entries, filetree.MaxEntries)
	})

	t.Run("CountsLanguages", func(t *testing.T) {
		ctx := context.Background()
		root := t.TempDir()
		writeFile(t, root, "main.go")
		writeFile(t, root, "util.go")
		writeFile(t, root, "index.ts")

		summary, err := filetree.Summarize(ctx, root)
		require.NoError(t, err, "failed to summarize")

		assert.Equal(t, 2, summary.Languages["Go"])
		assert.Equal(t, 1, summary.Languages["TypeScript"])
	})
}
