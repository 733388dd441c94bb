// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report builds a CFEngine module-protocol report file. Entries
// accumulate in a staging file that is promoted to the final path only on
// Commit, so readers of the final path never observe a partial report.
package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/pdiddy/hostkey-reaper/internal/scan"
)

// metaLine declares the inventory attribute for the variable assignment
// that follows it, per the module protocol.
const metaLine = "^meta=inventory,attribute_name=Purged host keys"

// Writer accumulates module-protocol lines for purged host keys.
type Writer struct {
	final       string
	staging     *os.File
	committed   bool
	relocFailed bool
}

// NewWriter creates the staging file for a report that will end up at
// final. The staging file lives in final's directory so the commit is a
// same-filesystem rename; if that directory is unwritable it falls back
// to the shared temp directory. Staging names are randomized, so
// concurrent runs against different report paths cannot collide.
func NewWriter(final string) (*Writer, error) {
	f, err := os.CreateTemp(filepath.Dir(final), "."+filepath.Base(final)+".*")
	if err != nil {
		f, err = os.CreateTemp("", filepath.Base(final)+".*")
	}
	if err != nil {
		return nil, fmt.Errorf("creating staging file for %s: %w", final, err)
	}
	return &Writer{final: final, staging: f}, nil
}

// Path returns the staging file's current location.
func (w *Writer) Path() string {
	return w.staging.Name()
}

// Add appends the two protocol lines for one purged key: the inventory
// attribute declaration and the variable assignment keyed by the bare
// digest.
func (w *Writer) Add(key scan.Hostkey) error {
	hex := key.Hex()
	if _, err := fmt.Fprintf(w.staging, "%s\n=purged_hostkeys[%s]=%s\n", metaLine, hex, hex); err != nil {
		return fmt.Errorf("writing report entry for %s: %w", key, err)
	}
	return nil
}

// Commit flushes the staging file and moves it to the final path. A plain
// rename covers the common same-directory case; when staging fell back to
// the temp directory on another filesystem, the content is rewritten
// atomically at the destination instead. After a successful Commit,
// Discard is a no-op.
func (w *Writer) Commit() error {
	if err := w.staging.Sync(); err != nil {
		return fmt.Errorf("flushing staging file %s: %w", w.staging.Name(), err)
	}
	if err := w.staging.Close(); err != nil {
		return fmt.Errorf("closing staging file %s: %w", w.staging.Name(), err)
	}

	if err := os.Rename(w.staging.Name(), w.final); err != nil {
		if err := w.copyCommit(); err != nil {
			// The staging file survives a failed relocation so the
			// operator can recover its contents from the reported path.
			w.relocFailed = true
			return err
		}
	}
	w.committed = true
	return nil
}

func (w *Writer) copyCommit() error {
	f, err := os.Open(w.staging.Name())
	if err != nil {
		return fmt.Errorf("reopening staging file %s: %w", w.staging.Name(), err)
	}
	defer f.Close()

	if err := atomic.WriteFile(w.final, f); err != nil {
		return fmt.Errorf("relocating report to %s (staging left at %s): %w", w.final, w.staging.Name(), err)
	}
	return os.Remove(w.staging.Name())
}

// Discard removes the staging file. Callers defer it unconditionally; it
// does nothing after a successful Commit, so the final report survives
// while an unfinished staging file never does. After a failed relocation
// it also does nothing, leaving the staging file at the path the Commit
// error reported.
func (w *Writer) Discard() {
	if w.committed || w.relocFailed {
		return
	}
	w.staging.Close()
	os.Remove(w.staging.Name())
}
