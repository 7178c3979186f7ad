package unwrapr

/* The tool registry: which external program peels which layer, and how. */

import (
	"fmt"
	"os/exec"
)

// decoder argv templates for compression filters. Every one of these reads
// the compressed stream on stdin and writes the plain stream to stdout.
//
//nolint:gochecknoglobals
var filterDecoders = map[Layer][]string{
	LayerGzip:     {"zcat"},
	LayerCompress: {"zcat"},
	LayerBzip2:    {"bzcat"},
	LayerLZMA:     {"lzcat"},
	LayerXZ:       {"xzcat"},
	LayerLzip:     {"lzip", "-cd"},
	LayerLrzip:    {"lrzcat", "-q"},
	LayerZstd:     {"zstd", "-dcq"},
	LayerBrotli:   {"brotli", "--decompress", "--stdout"},
	LayerLZ4:      {"lz4", "-dc"},
}

// containerSpec describes the external program driving one container format:
// argv templates per mode and how the tool takes its input. Tools with
// Streams set read the archive (or the last filter's output) on stdin and
// need no path argument; the rest require a real file path appended to the
// argv and cannot sit at the end of a pipe without materialization.
type containerSpec struct {
	Tool    string   // program resolved via the executable search path
	Streams bool     // true: archive arrives on stdin
	Extract []string // argv for extraction; files land in the working directory
	List    []string // argv for listing to stdout; nil means unsupported
	// ListTool overrides Tool for the listing argv (zipinfo vs unzip).
	ListTool string
	// Password returns the extra argv element carrying an archive password.
	Password func(pw string) []string
	// NonFatalExit reports exit codes that should not fail the stage, such
	// as unzip's status 1 for warnings.
	NonFatalExit func(code int) bool
	// Fallback is an alternate spec tried when Tool is absent from the host.
	Fallback *containerSpec
}

//nolint:gochecknoglobals
var containerTools = map[Layer]*containerSpec{
	LayerTar: {
		Tool:    "tar",
		Streams: true,
		Extract: []string{"tar", "-x"},
		List:    []string{"tar", "-t"},
	},
	LayerCpio: {
		Tool:    "cpio",
		Streams: true,
		Extract: []string{"cpio", "-i", "--make-directories", "--quiet", "--no-absolute-filenames"},
		List:    []string{"cpio", "-t", "--quiet"},
	},
	LayerZip: {
		Tool:     "unzip",
		Extract:  []string{"unzip", "-q"},
		List:     []string{"zipinfo", "-1"},
		ListTool: "zipinfo",
		Password: func(pw string) []string { return []string{"-P", pw} },
		// unzip exits 1 for warnings (bad CRC on one member, etc).
		NonFatalExit: func(code int) bool { return code == 1 },
	},
	LayerSevenZip: {
		Tool:     "7z",
		Extract:  []string{"7z", "x", "-y"},
		List:     []string{"7z", "l", "-ba"},
		Password: func(pw string) []string { return []string{"-p" + pw} },
	},
	LayerRAR: {
		Tool:     "unrar",
		Extract:  []string{"unrar", "x"},
		List:     []string{"unrar", "vb"},
		Password: func(pw string) []string { return []string{"-p" + pw} },
		Fallback: &containerSpec{
			Tool:     "unar",
			Extract:  []string{"unar", "-D"},
			List:     []string{"lsar"},
			ListTool: "lsar",
			Password: func(pw string) []string { return []string{"-p", pw} },
		},
	},
	LayerLZH: {
		Tool:    "lha",
		Extract: []string{"lha", "xq"},
		List:    []string{"lha", "l"},
	},
	LayerCab: {
		Tool:    "cabextract",
		Extract: []string{"cabextract", "-q"},
		List:    []string{"cabextract", "-l"},
	},
	LayerShield: {
		Tool:    "unshield",
		Extract: []string{"unshield", "x"},
		List:    []string{"unshield", "l"},
	},
	LayerARJ: {
		Tool:     "arj",
		Extract:  []string{"arj", "x", "-y"},
		List:     []string{"arj", "v"},
		Password: func(pw string) []string { return []string{"-g" + pw} },
	},
	// rpm, deb and gem are compiled as multi-stage pipelines; see pipeline.go.
}

// toolCache is the process-wide tool availability map: program name to
// absolute path, or "" for absent. Populated lazily, written at most once per
// tool, and only ever read by the single-threaded driver after that.
type toolCache struct {
	paths map[string]string
}

func newToolCache() *toolCache {
	return &toolCache{paths: map[string]string{}}
}

// resolve returns the absolute path of a tool, caching hits and misses for
// the process lifetime. A miss yields ErrMissingTool naming the program.
func (t *toolCache) resolve(tool string) (string, error) {
	if path, ok := t.paths[tool]; ok {
		if path == "" {
			return "", fmt.Errorf("%w: %s", ErrMissingTool, tool)
		}

		return path, nil
	}

	path, err := exec.LookPath(tool)
	if err != nil {
		t.paths[tool] = ""
		return "", fmt.Errorf("%w: %s", ErrMissingTool, tool)
	}

	t.paths[tool] = path

	return path, nil
}

// available reports whether a tool exists on the host, caching the answer.
func (t *toolCache) available(tool string) bool {
	_, err := t.resolve(tool)
	return err == nil
}
