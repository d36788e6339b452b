package localfiles_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarcoPoloResearchLab/unipilot/internal/cache"
	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
	"github.com/MarcoPoloResearchLab/unipilot/internal/localfiles"
)

func seededCache() *cache.Cache {
	c := cache.New(cache.Config{})
	c.Documents.Set(cache.DocumentsKey(10, entities.DocumentTypeSupport), []entities.Document{
		{ID: 1, AssignmentID: 10, Type: entities.DocumentTypeSupport, FileName: "brief.pdf", FilePath: "assignment_10/support/aaa_brief.pdf"},
		{ID: 2, AssignmentID: 10, Type: entities.DocumentTypeSupport, FileName: "notes.txt", FilePath: "assignment_10/support/bbb_notes.txt", HasLocalFile: true},
	})
	c.Documents.Set(cache.KindKey(entities.KindDocument), []entities.Document{
		{ID: 1, AssignmentID: 10, Type: entities.DocumentTypeSupport, FileName: "brief.pdf", FilePath: "assignment_10/support/aaa_brief.pdf"},
		{ID: 3, AssignmentID: 20, Type: entities.DocumentTypeSubmission, FileName: "lab.zip", FilePath: "assignment_20/submission/ccc_lab.zip"},
	})
	return c
}

func flags(c *cache.Cache, key cache.Key) map[int64]bool {
	result := make(map[int64]bool)
	for _, document := range c.Documents.Get(key).Items {
		result[document.ID] = document.HasLocalFile
	}
	return result
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := localfiles.New(localfiles.Config{Cache: cache.New(cache.Config{})})
	require.Error(t, err)
	_, err = localfiles.New(localfiles.Config{Dir: t.TempDir()})
	require.Error(t, err)
}

func TestSyncMarksPresentAndMissingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assignment_10", "support"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assignment_10", "support", "aaa_brief.pdf"), []byte("pdf"), 0o644))

	c := seededCache()
	watcher, err := localfiles.New(localfiles.Config{Dir: dir, Cache: c})
	require.NoError(t, err)
	t.Cleanup(func() { _ = watcher.Close() })

	changed, err := watcher.Sync()
	require.NoError(t, err)
	assert.Equal(t, 3, changed)

	assert.Equal(t, map[int64]bool{1: true, 2: false}, flags(c, cache.DocumentsKey(10, entities.DocumentTypeSupport)))
	assert.Equal(t, map[int64]bool{1: true, 3: false}, flags(c, cache.KindKey(entities.KindDocument)))

	changed, err = watcher.Sync()
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestRunFollowsFilesystemEvents(t *testing.T) {
	dir := t.TempDir()
	c := seededCache()
	watcher, err := localfiles.New(localfiles.Config{Dir: dir, Cache: c})
	require.NoError(t, err)
	t.Cleanup(func() { _ = watcher.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()

	allKey := cache.KindKey(entities.KindDocument)
	target := filepath.Join(dir, "ccc_lab.zip")
	require.NoError(t, os.WriteFile(target, []byte("zip"), 0o644))
	require.Eventually(t, func() bool {
		return flags(c, allKey)[3]
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(target))
	require.Eventually(t, func() bool {
		return !flags(c, allKey)[3]
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
