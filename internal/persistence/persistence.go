// Package persistence saves and loads the knowledge base to/from a single
// JSON file on disk, mirroring the original implementation's save-after-
// every-turn convention (persistence.rs) on top of pkg/kb's own
// self-describing snapshot format.
package persistence

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/offis-rit/epistemic-core/pkg/kb"
)

// Save snapshots store and writes it to path, creating any missing parent
// directories. The write is not atomic — a crash mid-write can corrupt the
// file, the same tradeoff the original implementation accepted.
func Save(store *kb.Store, path string) error {
	data, err := store.Snapshot()
	if err != nil {
		return fmt.Errorf("persistence: snapshotting store: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("persistence: creating %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("persistence: writing %s: %w", path, err)
	}
	return nil
}

// Load restores path's contents into store. A missing file is not an
// error — it means this is the first run, and store is left as-is (empty).
func Load(store *kb.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("persistence: reading %s: %w", path, err)
	}
	if err := store.Restore(data); err != nil {
		return fmt.Errorf("persistence: restoring %s: %w", path, err)
	}
	return nil
}
