package util

import (
	"errors"
	"io/fs"
	"log"
	"os"
)

// IsFileEmpty treats a missing or unreadable file as empty.
func IsFileEmpty(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return true
	}
	if err != nil {
		log.Printf("Error stating file %s: %v", path, err)
		return true
	}
	return info.Size() == 0
}

// RemoveIfExists deletes path and treats an already-missing file as success.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
