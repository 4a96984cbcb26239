package providers

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapjain-rh/error-resolver/internal/common/logger"
	"github.com/kapjain-rh/error-resolver/internal/detect"
)

func newTestLogger(t *testing.T) *logger.Logger {
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      "debug",
		Format:     "console",
		OutputPath: "stdout",
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return log
}

func newTestStore(t *testing.T) *RCAStore {
	store, err := NewRCAStore(filepath.Join(t.TempDir(), "rca.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRCAStore_AddAndCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Add(ctx, RCADocument{Title: "doc", Body: "body"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRCAStore_CandidatesTypedFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Add(ctx, RCADocument{Title: "untagged", Body: "b"})
	require.NoError(t, err)
	_, err = store.Add(ctx, RCADocument{Title: "npm doc", Body: "b", ErrorType: "npm"})
	require.NoError(t, err)
	_, err = store.Add(ctx, RCADocument{Title: "python doc", Body: "b", ErrorType: "python"})
	require.NoError(t, err)

	docs, err := store.Candidates(ctx, "npm")
	require.NoError(t, err)
	require.Len(t, docs, 2, "other types excluded, untagged included")
	assert.Equal(t, "npm doc", docs[0].Title)
	assert.Equal(t, "untagged", docs[1].Title)
}

func TestRCA_ResolveScoresDocuments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	relevant := `## Solution

When npm fails with code E404, the package name or the registry URL is
usually wrong. Check the package spelling against the registry, then clear
the npm cache and retry the install. Registry outages produce the same
symptom, so verify the registry endpoint responds before assuming a bad
package name. A private registry also returns E404 for packages you lack
permission to read, so confirm the auth token covers the scope.

` + "```sh\nnpm cache clean --force\nnpm install\n```"

	_, err := store.Add(ctx, RCADocument{
		Title:     "npm E404 package not found in registry",
		Body:      relevant,
		ErrorType: "npm",
		URL:       "https://kb.internal/npm-e404",
	})
	require.NoError(t, err)
	_, err = store.Add(ctx, RCADocument{Title: "unrelated", Body: "short note about nothing"})
	require.NoError(t, err)

	provider := NewRCA(store, newTestLogger(t))
	resolutions, err := provider.Resolve(ctx, &detect.DetectedError{
		Type:    "npm",
		Message: "code E404 package not found in registry",
	})
	require.NoError(t, err)
	require.Len(t, resolutions, 1, "only the relevant document clears the threshold")

	r := resolutions[0]
	assert.Equal(t, "npm E404 package not found in registry", r.Title)
	assert.Equal(t, "https://kb.internal/npm-e404", r.URL)
	assert.Contains(t, r.CodeSnippet, "npm cache clean")
	assert.NotContains(t, r.Description, "```", "summary stops before the code fence")
	assert.Greater(t, r.Confidence, 50)
}

func TestSummarize_Bounds(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "0123456789"
	}
	got := summarize(long)
	assert.LessOrEqual(t, len(got), 403)
	assert.Contains(t, got, "...")
}

func TestExtractSnippet(t *testing.T) {
	assert.Equal(t, "", extractSnippet("no code here"))
	assert.Equal(t, "npm install", extractSnippet("try this:\n```sh\nnpm install\n```\ndone"))
}
