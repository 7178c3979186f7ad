package unwrapr

/* Output placement: staging directories, collisions, and dispositions. */

import (
	"fmt"
	"os"
	"path/filepath"
)

// maxCollisionTries bounds the numbered-suffix search for a free destination.
const maxCollisionTries = 999

// uniquePath returns the first nonexistent path among path, path-1, path-2
// and so on. Existing files are never touched; exhausting the search yields
// ErrDestinationCollision.
func uniquePath(path string) (string, error) {
	if _, err := os.Lstat(path); err != nil {
		return path, nil //nolint:nilerr // not existing is the good case.
	}

	for i := 1; i <= maxCollisionTries; i++ {
		candidate := fmt.Sprintf("%s-%d", path, i)
		if _, err := os.Lstat(candidate); err != nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrDestinationCollision, path)
}

// mkStaging creates the hidden scratch directory a pipeline extracts into.
// It lives inside destDir, a sibling of the final destination, so promoting
// the finished output is a plain rename on the same filesystem.
func mkStaging(destDir, base string) (string, error) {
	staging, err := os.MkdirTemp(destDir, "."+base+"-")
	if err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}

	return staging, nil
}

// disposition classifies what a finished pipeline left in staging.
type disposition uint8

const (
	// dispositionEmpty: the archive produced nothing.
	dispositionEmpty disposition = iota
	// dispositionOneEntry: exactly one top-level entry came out, so the
	// wrapper directory may be noise.
	dispositionOneEntry
	// dispositionBomb: multiple top-level entries; they stay wrapped.
	dispositionBomb
)

// classifyStaging inspects the staging directory's immediate children and
// returns the disposition plus the lone entry's name when there is one.
// Package formats (deb, rpm, gem) are always treated as bombs: their file
// trees never resemble the package name.
func classifyStaging(staging string, layers Layers) (disposition, string, error) {
	entries, err := os.ReadDir(staging)
	if err != nil {
		return dispositionEmpty, "", fmt.Errorf("reading staging directory: %w", err)
	}

	switch {
	case len(entries) == 0:
		return dispositionEmpty, "", nil
	case len(entries) == 1 && !layers.alwaysBomb():
		return dispositionOneEntry, entries[0].Name(), nil
	default:
		return dispositionBomb, "", nil
	}
}

// promote renames source to target. Target must not exist unless overwrite
// is set, in which case whatever sits there is removed first.
func promote(source, target string, overwrite bool) error {
	if overwrite {
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("removing existing %s: %w", target, err)
		}
	}

	if err := os.Rename(source, target); err != nil {
		return fmt.Errorf("moving output into place: %w", err)
	}

	return nil
}

// moveContents moves every immediate child of src into dst, used for flat
// extraction and the "here" single-entry choice. A child colliding with an
// existing path is only moved when confirm approves replacing it; refused
// children are left behind in src and reported in skipped.
func moveContents(src, dst string, confirm func(path string) bool) (moved, skipped []string, err error) {
	entries, err := os.ReadDir(src)
	if err != nil {
		return nil, nil, fmt.Errorf("reading staging directory: %w", err)
	}

	for _, entry := range entries {
		target := filepath.Join(dst, entry.Name())

		if _, err := os.Lstat(target); err == nil {
			if !confirm(target) {
				skipped = append(skipped, entry.Name())
				continue
			}

			if err := os.RemoveAll(target); err != nil {
				return moved, skipped, fmt.Errorf("removing existing %s: %w", target, err)
			}
		}

		if err := os.Rename(filepath.Join(src, entry.Name()), target); err != nil {
			return moved, skipped, fmt.Errorf("moving %s: %w", entry.Name(), err)
		}

		moved = append(moved, entry.Name())
	}

	return moved, skipped, nil
}
