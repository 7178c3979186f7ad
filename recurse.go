package unwrapr

/* Nested archive discovery for recursive extraction. */

import (
	"io/fs"
	"os"
	"path/filepath"
)

// defaultMaxDepth bounds how deep recursive extraction follows archives
// found inside archives. Anything past this is either a quine or an attack.
const defaultMaxDepth = 10

// findNested walks an extracted tree and returns every regular file that
// classifies as an archive, in walk order.
func findNested(root string) []string {
	found := []string{}

	_ = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || !entry.Type().IsRegular() {
			return nil //nolint:nilerr // unreadable entries are not archives.
		}

		if IsArchive(path) {
			found = append(found, path)
		}

		return nil
	})

	return found
}

// canonical resolves symlinks and relative segments so the visited set keys
// on real files, not on the many names a file can carry.
func canonical(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}

	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}

	return path
}

// selfCopy reports whether a nested archive looks like a copy of the archive
// it came out of: same file name and same size. Extracting those loops
// forever while filling the disk, so the caller warns and skips instead.
func selfCopy(parent, nested string) bool {
	if filepath.Base(parent) != filepath.Base(nested) {
		return false
	}

	parentInfo, err := os.Stat(parent)
	if err != nil {
		return false
	}

	nestedInfo, err := os.Stat(nested)
	if err != nil {
		return false
	}

	return parentInfo.Size() == nestedInfo.Size()
}
