package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFileEmpty(t *testing.T) {
	tempDir := t.TempDir()

	emptyFile := filepath.Join(tempDir, "empty.mp4")
	os.WriteFile(emptyFile, []byte{}, 0644)
	nonEmptyFile := filepath.Join(tempDir, "non-empty.mp4")
	os.WriteFile(nonEmptyFile, []byte("not empty"), 0644)
	nonExistingFile := filepath.Join(tempDir, "non-existing.mp4")

	assert.True(t, IsFileEmpty(emptyFile))
	assert.False(t, IsFileEmpty(nonEmptyFile))
	assert.True(t, IsFileEmpty(nonExistingFile))
}

func TestRemoveIfExists(t *testing.T) {
	tempDir := t.TempDir()

	file := filepath.Join(tempDir, "segment.mp4")
	os.WriteFile(file, []byte("data"), 0644)

	assert.NoError(t, RemoveIfExists(file))
	_, err := os.Stat(file)
	assert.True(t, os.IsNotExist(err))

	// Second removal of the same path is not an error
	assert.NoError(t, RemoveIfExists(file))
}
