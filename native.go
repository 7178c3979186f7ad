package unwrapr

/* Built-in decoders and listers used when an external tool is absent. */

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/bodgit/sevenzip"
	"github.com/cavaliergopher/cpio"
	"github.com/cavaliergopher/rpm"
	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/nwaples/rardecode/v2"
	"github.com/pierrec/lz4/v4"
	lzw "github.com/sshaman1101/dcompress"
	"github.com/therootcompany/xz"
	"github.com/ulikunitz/xz/lzma"
)

// nativeFilters maps compression layers to in-process decoders. A layer
// absent from this map (lzip, lrzip) has no native decoder and always needs
// its external tool.
//
//nolint:gochecknoglobals
var nativeFilters = map[Layer]nativeFilter{
	LayerGzip: func(r io.Reader) (io.Reader, error) {
		reader, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip.NewReader: %w", err)
		}

		return reader, nil
	},
	LayerBzip2: func(r io.Reader) (io.Reader, error) {
		reader, err := bzip2.NewReader(r, nil)
		if err != nil {
			return nil, fmt.Errorf("bzip2.NewReader: %w", err)
		}

		return reader, nil
	},
	LayerXZ: func(r io.Reader) (io.Reader, error) {
		reader, err := xz.NewReader(r, 0)
		if err != nil {
			return nil, fmt.Errorf("xz.NewReader: %w", err)
		}

		return reader, nil
	},
	LayerLZMA: func(r io.Reader) (io.Reader, error) {
		reader, err := lzma.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("lzma.NewReader: %w", err)
		}

		return reader, nil
	},
	LayerZstd: func(r io.Reader) (io.Reader, error) {
		reader, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd.NewReader: %w", err)
		}

		return reader.IOReadCloser(), nil
	},
	LayerLZ4: func(r io.Reader) (io.Reader, error) {
		return lz4.NewReader(r), nil
	},
	LayerBrotli: func(r io.Reader) (io.Reader, error) {
		return brotli.NewReader(r), nil
	},
	LayerCompress: func(r io.Reader) (io.Reader, error) {
		reader, err := lzw.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("lzw.NewReader: %w", err)
		}

		return reader, nil
	},
}

// nativeList returns member names of a container read by a bundled library,
// for formats where that beats spawning a tool that may not exist. The
// second return is false when no native lister covers the container.
func nativeList(path string, container Layer) ([]string, bool, error) {
	switch container {
	case LayerRAR:
		names, err := nativeListRAR(path)
		return names, true, err
	case LayerSevenZip:
		names, err := nativeListSevenZip(path)
		return names, true, err
	case LayerRPM:
		names, err := nativeListRPM(path)
		return names, true, err
	default:
		return nil, false, nil
	}
}

func nativeListRAR(path string) ([]string, error) {
	reader, err := rardecode.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("rardecode.OpenReader: %w", err)
	}
	defer reader.Close()

	names := []string{}

	for {
		header, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return names, nil
			}

			return nil, fmt.Errorf("%s: reading rar header: %w", path, err)
		}

		names = append(names, header.Name)
	}
}

func nativeListSevenZip(path string) ([]string, error) {
	reader, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("sevenzip.OpenReader: %w", err)
	}
	defer reader.Close()

	names := make([]string, 0, len(reader.File))
	for _, file := range reader.File {
		names = append(names, file.Name)
	}

	return names, nil
}

// nativeListRPM reads the package headers to learn the payload compression,
// decodes the payload in-process and walks its cpio index.
func nativeListRPM(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("os.Open: %w", err)
	}
	defer file.Close()

	pkg, err := rpm.Read(file)
	if err != nil {
		return nil, fmt.Errorf("rpm.Read: %w", err)
	}

	layer, err := rpmPayloadLayer(pkg)
	if err != nil {
		return nil, err
	}

	var payload io.Reader = file

	if layer != LayerNone {
		if payload, err = nativeFilters[layer](file); err != nil {
			return nil, err
		}
	}

	if format := pkg.PayloadFormat(); format != "cpio" {
		return nil, fmt.Errorf("%w: rpm payload format %q", ErrUnsupportedCompression, format)
	}

	reader := cpio.NewReader(payload)
	names := []string{}

	for {
		header, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return names, nil
			}

			return nil, fmt.Errorf("%s: reading cpio header: %w", path, err)
		}

		names = append(names, header.Name)
	}
}

// rpmPayloadLayer maps the header's compression name onto a filter layer.
func rpmPayloadLayer(pkg *rpm.Package) (Layer, error) {
	switch compression := pkg.PayloadCompression(); compression {
	case "xz":
		return LayerXZ, nil
	case "gz", "gzip":
		return LayerGzip, nil
	case "bz2", "bzip2":
		return LayerBzip2, nil
	case "zstd", "zst", "zstandard", "Zstandard":
		return LayerZstd, nil
	case "lzma":
		return LayerLZMA, nil
	case "", "none":
		return LayerNone, nil
	default:
		return LayerNone, fmt.Errorf("%w: rpm payload compression %q", ErrUnsupportedCompression, compression)
	}
}

// rpmMetadata formats the package header fields the way `rpm -qi` roughly
// would. No external rpm binary is involved.
func rpmMetadata(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("os.Open: %w", err)
	}
	defer file.Close()

	pkg, err := rpm.Read(file)
	if err != nil {
		return "", fmt.Errorf("rpm.Read: %w", err)
	}

	out := strings.Builder{}
	write := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&out, "%-12s: %s\n", label, value)
		}
	}

	write("Name", pkg.Name())
	write("Version", pkg.Version())
	write("Release", pkg.Release())
	write("Architecture", pkg.Architecture())
	write("Group", strings.Join(pkg.Groups(), ", "))
	write("License", pkg.License())
	write("Source RPM", pkg.SourceRPM())
	write("URL", pkg.URL())
	write("Summary", pkg.Summary())

	if desc := pkg.Description(); desc != "" {
		fmt.Fprintf(&out, "Description :\n%s\n", desc)
	}

	return out.String(), nil
}
