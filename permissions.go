package unwrapr

/* Permission repair on extracted trees. */

import (
	"io/fs"
	"os"
	"path/filepath"
)

// ownerRW is the minimum the owner gets on every extracted entry.
const ownerRW = 0o600

// normalizePermissions makes an extracted tree usable by its owner: read and
// write on everything, execute on directories and on files that were already
// executable by anyone (chmod u+rwX). Archives built by other people love to
// ship directories you cannot enter and files you cannot delete.
//
// Failures are warnings, never errors: the content is already extracted and
// a read-only member should not sink the whole run. Symlinks are skipped;
// their permissions are noise on every platform that matters.
func (u *Unwrapr) normalizePermissions(root string) {
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			u.config.Logger.Printf("Warning: cannot fix permissions on %s: %v", path, err)
			return nil //nolint:nilerr // keep walking.
		}

		if entry.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			u.config.Logger.Printf("Warning: cannot fix permissions on %s: %v", path, err)
			return nil //nolint:nilerr
		}

		perm := info.Mode().Perm() | ownerRW
		if entry.IsDir() || info.Mode().Perm()&0o111 != 0 {
			perm |= 0o100
		}

		if perm == info.Mode().Perm() {
			return nil
		}

		if err := os.Chmod(path, perm); err != nil {
			u.config.Logger.Printf("Warning: cannot fix permissions on %s: %v", path, err)
		}

		return nil
	})
	if err != nil {
		u.config.Logger.Printf("Warning: permission pass over %s failed: %v", root, err)
	}
}
