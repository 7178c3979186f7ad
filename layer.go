package unwrapr

/* The Layer enumeration: every way an archive can be wrapped, one row each. */

// Layer identifies one stage of an archive's encoding: either a compression
// filter that must be streamed through a decoder, or a terminal container
// format that holds the file tree. Adding a format means adding a constant
// here plus one row in the tool registry.
type Layer uint8

// Compression filters. These stream: stdin in, stdout out.
const (
	LayerNone Layer = iota
	LayerGzip
	LayerBzip2
	LayerXZ
	LayerLZMA
	LayerCompress
	LayerLzip
	LayerLrzip
	LayerBrotli
	LayerZstd
	LayerLZ4
	// Containers. These terminate a pipeline.
	LayerTar
	LayerZip
	LayerCpio
	LayerRPM
	LayerDeb
	LayerGem
	LayerSevenZip
	LayerCab
	LayerRAR
	LayerLZH
	LayerARJ
	LayerShield
)

//nolint:gochecknoglobals
var layerNames = map[Layer]string{
	LayerNone:     "none",
	LayerGzip:     "gzip",
	LayerBzip2:    "bzip2",
	LayerXZ:       "xz",
	LayerLZMA:     "lzma",
	LayerCompress: "compress",
	LayerLzip:     "lzip",
	LayerLrzip:    "lrzip",
	LayerBrotli:   "brotli",
	LayerZstd:     "zstd",
	LayerLZ4:      "lz4",
	LayerTar:      "tar",
	LayerZip:      "zip",
	LayerCpio:     "cpio",
	LayerRPM:      "rpm",
	LayerDeb:      "deb",
	LayerGem:      "gem",
	LayerSevenZip: "7z",
	LayerCab:      "cab",
	LayerRAR:      "rar",
	LayerLZH:      "lzh",
	LayerARJ:      "arj",
	LayerShield:   "installshield",
}

func (l Layer) String() string {
	if name, ok := layerNames[l]; ok {
		return name
	}

	return "unknown"
}

// IsFilter returns true for compression filters, false for containers.
func (l Layer) IsFilter() bool {
	return l > LayerNone && l < LayerTar
}

// Layers is an ordered list describing how to peel an archive apart:
// outermost compression filters first, terminal container (if any) last.
// A classified file never has an empty layer list.
type Layers []Layer

// Container returns the terminal container layer, or LayerNone when the
// archive is a plain compressed file with no container.
func (ll Layers) Container() Layer {
	if len(ll) == 0 {
		return LayerNone
	}

	if last := ll[len(ll)-1]; !last.IsFilter() {
		return last
	}

	return LayerNone
}

// Filters returns the leading compression filters, outermost first.
func (ll Layers) Filters() Layers {
	filters := Layers{}

	for _, l := range ll {
		if l.IsFilter() {
			filters = append(filters, l)
		}
	}

	return filters
}

func (ll Layers) String() string {
	out := ""

	for i, l := range ll {
		if i > 0 {
			out += "+"
		}

		out += l.String()
	}

	return out
}

// alwaysBomb reports whether this container's contents are always wrapped in
// a fresh directory, skipping the single-entry heuristic. Package formats
// (deb, rpm, gem) explode into a file tree that never matches the archive
// name, so wrapping is the only sane disposition.
func (ll Layers) alwaysBomb() bool {
	switch ll.Container() {
	case LayerDeb, LayerRPM, LayerGem:
		return true
	default:
		return false
	}
}
