// Package docfile reads and writes the shared JSON document files that form
// the contract with external collaborators (cash checker, notifier). A
// missing or corrupt document is always treated as an empty collection.
package docfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load decodes the JSON array at path. Missing files, unreadable files, and
// malformed JSON all yield an empty slice; no failure is surfaced.
func Load[T any](path string) []T {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var entries []T
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}
	return entries
}

// Save replaces the document at path with the given entries, atomically via
// a temp file rename. A nil slice is written as an empty array.
func Save[T any](path string, entries []T) error {
	if entries == nil {
		entries = []T{}
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create document directory: %w", err)
		}
	}

	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp document: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close document: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}
