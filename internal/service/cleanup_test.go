package service

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactSweeper_RunNow(t *testing.T) {
	root := t.TempDir()
	dealerDir := filepath.Join(root, "5")
	require.NoError(t, os.MkdirAll(dealerDir, 0o755))

	oldArtifact := filepath.Join(dealerDir, "OLD00000000000001.png")
	freshArtifact := filepath.Join(dealerDir, "NEW00000000000001.png")
	exportFile := filepath.Join(dealerDir, "order_20260101_abc.csv")

	require.NoError(t, os.WriteFile(oldArtifact, []byte("png"), 0o644))
	require.NoError(t, os.WriteFile(freshArtifact, []byte("png"), 0o644))
	require.NoError(t, os.WriteFile(exportFile, []byte("csv"), 0o644))

	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldArtifact, stale, stale))
	require.NoError(t, os.Chtimes(exportFile, stale, stale))

	sweeper := NewArtifactSweeper(SweeperConfig{
		Roots:     []string{root},
		Retention: 24 * time.Hour,
	})

	deleted, err := sweeper.RunNow()
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = os.Stat(oldArtifact)
	assert.True(t, os.IsNotExist(err))

	// Fresh artifacts and non-image files are untouched.
	_, err = os.Stat(freshArtifact)
	assert.NoError(t, err)
	_, err = os.Stat(exportFile)
	assert.NoError(t, err)
}

func TestArtifactSweeper_MissingRootIsNotAnError(t *testing.T) {
	sweeper := NewArtifactSweeper(SweeperConfig{
		Roots:     []string{filepath.Join(t.TempDir(), "does-not-exist")},
		Retention: time.Hour,
	})
	deleted, err := sweeper.RunNow()
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
