package unwrapr

/* Format classification: file name suffixes first, magic bytes as fallback. */

import (
	"fmt"
	"path/filepath"
	"strings"
)

// suffixEntry binds one recognized file name suffix to its layer list.
// The table is ordered longest-suffix-first so compound suffixes like
// ".tar.gz" strip as one unit, never ".gz" then ".tar".
type suffixEntry struct {
	Suffix string
	Layers Layers
}

//nolint:gochecknoglobals
var suffixTable = []suffixEntry{
	// Compound tarball suffixes.
	{".tar.lzma", Layers{LayerLZMA, LayerTar}},
	{".tar.zstd", Layers{LayerZstd, LayerTar}},
	{".tar.bz2", Layers{LayerBzip2, LayerTar}},
	{".tar.lrz", Layers{LayerLrzip, LayerTar}},
	{".tar.zst", Layers{LayerZstd, LayerTar}},
	{".tar.lz4", Layers{LayerLZ4, LayerTar}},
	{".tar.gz", Layers{LayerGzip, LayerTar}},
	{".tar.xz", Layers{LayerXZ, LayerTar}},
	{".tar.lz", Layers{LayerLzip, LayerTar}},
	{".tar.br", Layers{LayerBrotli, LayerTar}},
	{".tar.z", Layers{LayerCompress, LayerTar}},
	// Short tarball forms.
	{".tbz2", Layers{LayerBzip2, LayerTar}},
	{".tbz", Layers{LayerBzip2, LayerTar}},
	{".tb2", Layers{LayerBzip2, LayerTar}},
	{".tgz", Layers{LayerGzip, LayerTar}},
	{".tlz", Layers{LayerLZMA, LayerTar}},
	{".txz", Layers{LayerXZ, LayerTar}},
	{".taz", Layers{LayerCompress, LayerTar}},
	{".tar", Layers{LayerTar}},
	// Containers.
	{".epub", Layers{LayerZip}},
	{".zip", Layers{LayerZip}},
	{".jar", Layers{LayerZip}},
	{".xpi", Layers{LayerZip}},
	{".crx", Layers{LayerZip}},
	{".rar", Layers{LayerRAR}},
	{".msi", Layers{LayerSevenZip}},
	{".7z", Layers{LayerSevenZip}},
	{".lzh", Layers{LayerLZH}},
	{".lha", Layers{LayerLZH}},
	{".rpm", Layers{LayerRPM}},
	{".deb", Layers{LayerDeb}},
	{".gem", Layers{LayerGem}},
	{".cpio", Layers{LayerCpio}},
	{".cab", Layers{LayerCab}},
	{".hdr", Layers{LayerShield}},
	{".arj", Layers{LayerARJ}},
	// Plain compressed files, no container.
	{".lzma", Layers{LayerLZMA}},
	{".zstd", Layers{LayerZstd}},
	{".zst", Layers{LayerZstd}},
	{".lrz", Layers{LayerLrzip}},
	{".lz4", Layers{LayerLZ4}},
	{".bz2", Layers{LayerBzip2}},
	{".gz", Layers{LayerGzip}},
	{".xz", Layers{LayerXZ}},
	{".lz", Layers{LayerLzip}},
	{".br", Layers{LayerBrotli}},
	{".z", Layers{LayerCompress}},
}

// Classify inspects a file and returns the ordered layer list describing how
// to peel it apart. The file name extension is authoritative when it maps to
// a known (compound) suffix; otherwise the leading bytes are sniffed.
// Suffix chains peel as deep as they go, so "backup.zip.gz" classifies as
// gzip over zip, and the whole thing extracts in one pass.
// Self-extracting .exe files are probed for an embedded zip signature.
// A file that matches neither yields ErrUnknownArchiveType, never an empty
// layer list.
func Classify(path string) (Layers, error) {
	name := strings.ToLower(filepath.Base(path))

	if layers := classifyName(name); len(layers) > 0 {
		return layers, nil
	}

	if strings.HasSuffix(name, ".exe") {
		if hasEmbeddedZip(path) {
			return Layers{LayerZip}, nil
		}

		return nil, fmt.Errorf("%w: %s", ErrUnknownArchiveType, path)
	}

	if layers := sniffSignature(path); len(layers) > 0 {
		return layers, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownArchiveType, path)
}

// classifyName peels recognized suffixes off a lowercased file name until a
// container appears or nothing matches. Filters accumulate outermost first:
// the order they must be decoded in.
func classifyName(name string) Layers {
	layers := Layers{}

	for {
		matched := false

		for _, entry := range suffixTable {
			if strings.HasSuffix(name, entry.Suffix) && len(name) > len(entry.Suffix) {
				layers = append(layers, entry.Layers...)
				name = name[:len(name)-len(entry.Suffix)]
				matched = true

				break
			}
		}

		if !matched || layers.Container() != LayerNone {
			return layers
		}
	}
}

// IsArchive returns true when Classify would succeed for the path. Used by
// the recursion scan to spot nested archives.
func IsArchive(path string) bool {
	layers, err := Classify(path)
	return err == nil && len(layers) > 0
}

// StripSuffix removes every recognized archive suffix from a file name,
// longest match first, and reports whether anything was stripped.
// "report.tar.gz" becomes "report"; so does "report.zip.gz".
func StripSuffix(name string) (string, bool) {
	stripped := false

	for {
		lower := strings.ToLower(name)
		matched := false

		for _, entry := range suffixTable {
			if strings.HasSuffix(lower, entry.Suffix) && len(lower) > len(entry.Suffix) {
				name = name[:len(name)-len(entry.Suffix)]
				matched, stripped = true, true

				break
			}
		}

		if !matched {
			break
		}
	}

	if lower := strings.ToLower(name); strings.HasSuffix(lower, ".exe") && len(lower) > len(".exe") {
		return name[:len(name)-len(".exe")], true
	}

	return name, stripped
}

// baseName computes the output directory name for an archive: the file name
// with its recognized suffix stripped, plus the special casing package
// formats traditionally get.
func baseName(path string, layers Layers) string {
	name := filepath.Base(path)

	switch layers.Container() {
	case LayerDeb:
		// Debian archives are name_version_arch.deb; everything from the
		// first underscore on is version noise.
		if idx := strings.Index(name, "_"); idx > 0 && strings.HasSuffix(strings.ToLower(name), ".deb") {
			return name[:idx]
		}
	case LayerRPM:
		// foo-1.0-1.x86_64.rpm: drop ".rpm", then the short arch piece.
		name = strings.TrimSuffix(name, filepath.Ext(name))
		if ext := filepath.Ext(name); ext != "" && len(ext) <= 8 {
			name = strings.TrimSuffix(name, ext)
		}

		return name
	}

	stripped, ok := StripSuffix(name)
	if !ok && len(filepath.Ext(name)) > 1 && len(filepath.Ext(name)) < 6 {
		// Off-the-wall extension, but short enough that it's almost
		// certainly an extension. Remove it so "data.foo" lands in "data".
		return strings.TrimSuffix(name, filepath.Ext(name))
	}

	return stripped
}
