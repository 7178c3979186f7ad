package unwrapr

/* The pipeline compiler: layer list + mode in, process invocation specs out. */

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterebden/ar"
)

// Mode selects what a compiled pipeline does with the archive.
type Mode uint8

const (
	// ModeExtract writes the archive's contents into the destination.
	ModeExtract Mode = iota
	// ModeList prints the archive's member names to standard output.
	ModeList
	// ModeMetadata extracts package metadata (deb control, gem metadata).
	ModeMetadata
)

func (m Mode) String() string {
	switch m {
	case ModeList:
		return "list"
	case ModeMetadata:
		return "metadata"
	default:
		return "extract"
	}
}

// stageSource says where a stage's standard input comes from.
type stageSource uint8

const (
	// sourceNone: the tool opens the archive itself via a path argument.
	sourceNone stageSource = iota
	// sourceArchive: the archive file is connected to stdin.
	sourceArchive
	// sourcePrev: the previous stage's stdout is connected to stdin.
	sourcePrev
)

// nativeFilter opens an in-process decompression reader. Used instead of
// spawning a process when the external filter tool is absent and the native
// fallback is enabled.
type nativeFilter func(io.Reader) (io.Reader, error)

// Stage is one external-process invocation inside a pipeline.
type Stage struct {
	// Desc names the stage's purpose in error messages: "decoding",
	// "extraction", "listing", "metadata".
	Desc string
	// Tool is the registry program name, for missing-tool messages.
	Tool string
	// Path is the resolved absolute program path. Empty for native stages.
	Path string
	// Argv is the full argument vector, argv[0] included.
	Argv []string
	// Source says where stdin comes from.
	Source stageSource
	// Native replaces the process with an in-process filter when set.
	Native nativeFilter
}

// Pipeline is a fully compiled, inspectable plan for one archive and mode.
// Nothing has been spawned yet when Compile returns.
type Pipeline struct {
	// Archive is the absolute path of the input file.
	Archive string
	// Mode the pipeline was compiled for.
	Mode Mode
	// Layers the pipeline peels, outermost first.
	Layers Layers
	// Stages in execution order. The last stage's stdout is the pipeline
	// output: discarded in extract mode (tools write files to the working
	// directory), captured in list mode, or written to WriteTo.
	Stages []Stage
	// WriteTo is the output file name (relative to the working directory)
	// when the pipeline produces a single plain stream: plain compressed
	// files and gem metadata.
	WriteTo string
	// Materialize means the terminal stage's tool cannot read a pipe: the
	// filter stages are drained into a temporary file first, and the final
	// stage's argv gets that path appended.
	Materialize bool
	// NonFatalExit reports tolerated exit codes of the terminal stage.
	NonFatalExit func(code int) bool
}

// compile turns a layer list plus a mode into an ordered stage list. All
// required tools are resolved here, so a missing program fails before any
// filesystem write happens.
func (u *Unwrapr) compile(archive string, layers Layers, mode Mode) (*Pipeline, error) {
	absArchive, err := filepath.Abs(archive)
	if err != nil {
		return nil, fmt.Errorf("filepath.Abs: %w", err)
	}

	pipe := &Pipeline{Archive: absArchive, Mode: mode, Layers: layers}

	if err := u.compileFilters(pipe, layers.Filters()); err != nil {
		return nil, err
	}

	switch container := layers.Container(); container {
	case LayerNone:
		return u.compilePlain(pipe, mode)
	case LayerRPM:
		return u.compileRPM(pipe, mode)
	case LayerDeb:
		return u.compileDeb(pipe, mode)
	case LayerGem:
		return u.compileGem(pipe, mode)
	default:
		if containerTools[container].Streams {
			if mode == ModeMetadata {
				return nil, fmt.Errorf("%w: %s of %s", ErrUnsupportedMode, mode, container)
			}

			return u.appendStreamingContainer(pipe, container, mode)
		}

		return u.compileContainer(pipe, container, mode)
	}
}

// compileFilters appends one decoding stage per compression filter, chained
// stdin to stdout. The first stage reads the archive file itself.
func (u *Unwrapr) compileFilters(pipe *Pipeline, filters Layers) error {
	for _, layer := range filters {
		argv := filterDecoders[layer]

		stage := Stage{
			Desc:   "decoding",
			Tool:   argv[0],
			Argv:   argv,
			Source: sourcePrev,
		}
		if len(pipe.Stages) == 0 {
			stage.Source = sourceArchive
		}

		path, err := u.tools.resolve(argv[0])

		switch {
		case err == nil:
			stage.Path = path
		case u.config.NativeFallback && nativeFilters[layer] != nil:
			u.config.Logger.Debugf("Tool %s missing, using built-in %s decoder", argv[0], layer)
			stage.Native = nativeFilters[layer]
		default:
			return err
		}

		pipe.Stages = append(pipe.Stages, stage)
	}

	return nil
}

// compilePlain finishes a pipeline for a compressed file with no container:
// the filter output is the file.
func (u *Unwrapr) compilePlain(pipe *Pipeline, mode Mode) (*Pipeline, error) {
	if mode != ModeExtract {
		return nil, fmt.Errorf("%w: %s of %s", ErrUnsupportedMode, mode, pipe.Layers)
	}

	if len(pipe.Stages) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownArchiveType, pipe.Archive)
	}

	pipe.WriteTo = baseName(pipe.Archive, pipe.Layers)

	return pipe, nil
}

// compileRPM chains rpm2cpio into the cpio tool. Both ends stream.
func (u *Unwrapr) compileRPM(pipe *Pipeline, mode Mode) (*Pipeline, error) {
	if mode == ModeMetadata {
		// RPM metadata is read natively from the package headers; no
		// pipeline is involved. See rpmMetadata in native.go.
		return nil, fmt.Errorf("%w: %s of rpm handled natively", ErrUnsupportedMode, mode)
	}

	path, err := u.tools.resolve("rpm2cpio")
	if err != nil {
		return nil, err
	}

	stage := Stage{Desc: "rpm2cpio", Tool: "rpm2cpio", Path: path, Argv: []string{"rpm2cpio", "-"}, Source: sourcePrev}
	if len(pipe.Stages) == 0 {
		stage.Source = sourceArchive
	}

	pipe.Stages = append(pipe.Stages, stage)

	return u.appendStreamingContainer(pipe, LayerCpio, mode)
}

// compileDeb reads the ar index in-process to find the data.tar (or
// control.tar) member and its compression, then compiles
// `ar p <deb> <member>` into the right decoder into tar.
func (u *Unwrapr) compileDeb(pipe *Pipeline, mode Mode) (*Pipeline, error) {
	prefix := "data.tar"
	if mode == ModeMetadata {
		prefix = "control.tar"
	}

	member, encoding, err := debMember(pipe.Archive, prefix)
	if err != nil {
		return nil, err
	}

	arPath, err := u.tools.resolve("ar")
	if err != nil {
		return nil, err
	}

	pipe.Stages = append(pipe.Stages, Stage{
		Desc:   "extracting " + member + " from deb",
		Tool:   "ar",
		Path:   arPath,
		Argv:   []string{"ar", "p", pipe.Archive, member},
		Source: sourceNone,
	})

	if encoding != LayerNone {
		if err := u.compileFilters(pipe, Layers{encoding}); err != nil {
			return nil, err
		}
	}

	return u.appendStreamingContainer(pipe, LayerTar, modeForPayload(mode))
}

// compileGem extracts the embedded data.tar.gz (or metadata.gz) from the gem
// wrapper tar and chains it through zcat.
func (u *Unwrapr) compileGem(pipe *Pipeline, mode Mode) (*Pipeline, error) {
	tarPath, err := u.tools.resolve("tar")
	if err != nil {
		return nil, err
	}

	member := "data.tar.gz"
	if mode == ModeMetadata {
		member = "metadata.gz"
	}

	stage := Stage{
		Desc:   "extracting " + member + " from gem",
		Tool:   "tar",
		Path:   tarPath,
		Argv:   []string{"tar", "-xO", member},
		Source: sourcePrev,
	}
	if len(pipe.Stages) == 0 {
		stage.Source = sourceArchive
	}

	pipe.Stages = append(pipe.Stages, stage)

	if err := u.compileFilters(pipe, Layers{LayerGzip}); err != nil {
		return nil, err
	}

	if mode == ModeMetadata {
		// The decompressed metadata is a single YAML document.
		pipe.WriteTo = filepath.Base(pipe.Archive) + "-metadata.txt"
		return pipe, nil
	}

	return u.appendStreamingContainer(pipe, LayerTar, modeForPayload(mode))
}

// modeForPayload maps metadata mode onto extraction of the payload pipeline:
// the deb control member is itself a tar that gets extracted normally.
func modeForPayload(mode Mode) Mode {
	if mode == ModeMetadata {
		return ModeExtract
	}

	return mode
}

// appendStreamingContainer finishes a pipeline with a stdin-reading
// container tool such as tar or cpio.
func (u *Unwrapr) appendStreamingContainer(pipe *Pipeline, container Layer, mode Mode) (*Pipeline, error) {
	spec := containerTools[container]

	argv := spec.Extract
	desc := "extraction"

	if mode == ModeList {
		argv = spec.List
		desc = "listing"
	}

	path, err := u.tools.resolve(argv[0])
	if err != nil {
		return nil, err
	}

	stage := Stage{Desc: desc, Tool: argv[0], Path: path, Argv: argv, Source: sourcePrev}
	if len(pipe.Stages) == 0 {
		stage.Source = sourceArchive
	}

	pipe.Stages = append(pipe.Stages, stage)
	pipe.NonFatalExit = spec.NonFatalExit

	return pipe, nil
}

// compileContainer finishes a pipeline for a path-argument container tool
// (unzip, 7z, unrar, lha, cabextract, unshield, arj). When filter layers
// precede it, the decompressed stream is materialized to a temporary file
// first, because these tools refuse stdin.
func (u *Unwrapr) compileContainer(pipe *Pipeline, container Layer, mode Mode) (*Pipeline, error) {
	spec := containerTools[container]

	// Prefer the primary tool; fall back to the alternate when absent.
	if !u.tools.available(spec.Tool) && spec.Fallback != nil && u.tools.available(spec.Fallback.Tool) {
		spec = spec.Fallback
	}

	argv := spec.Extract
	tool := spec.Tool
	desc := "extraction"

	if mode == ModeMetadata {
		return nil, fmt.Errorf("%w: %s of %s", ErrUnsupportedMode, mode, container)
	}

	if mode == ModeList {
		if spec.List == nil {
			return nil, fmt.Errorf("%w: %s of %s", ErrUnsupportedMode, mode, container)
		}

		argv = spec.List
		desc = "listing"

		if spec.ListTool != "" {
			tool = spec.ListTool
		}
	}

	path, err := u.tools.resolve(tool)
	if err != nil {
		return nil, err
	}

	stage := Stage{Desc: desc, Tool: tool, Path: path, Source: sourceNone}
	stage.Argv = append(stage.Argv, argv...)

	if u.config.Password != "" && spec.Password != nil && mode == ModeExtract {
		stage.Argv = append(stage.Argv, spec.Password(u.config.Password)...)
	}

	if len(pipe.Stages) > 0 {
		// Filters ahead of a non-streaming tool: decompress to a real file
		// first. The runner appends the temp path to this argv.
		pipe.Materialize = true
	} else {
		stage.Argv = append(stage.Argv, pipe.Archive)
	}

	pipe.Stages = append(pipe.Stages, stage)
	pipe.NonFatalExit = spec.NonFatalExit

	return pipe, nil
}

// debMember scans a Debian package's ar index for the first member with the
// given prefix and returns its name plus the compression layer its suffix
// implies. LayerNone means the member is a plain tar.
func debMember(archive, prefix string) (string, Layer, error) {
	file, err := os.Open(archive)
	if err != nil {
		return "", LayerNone, fmt.Errorf("os.Open: %w", err)
	}
	defer file.Close()

	reader := ar.NewReader(file)

	for {
		header, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			return "", LayerNone, fmt.Errorf("%s: reading deb index: %w", archive, err)
		}

		// GNU ar pads names with spaces and may add a trailing slash.
		name := strings.TrimRight(strings.TrimSpace(header.Name), "/")
		if !strings.HasPrefix(name, prefix) {
			continue
		}

		switch {
		case name == prefix:
			return name, LayerNone, nil
		case strings.HasSuffix(name, ".gz"):
			return name, LayerGzip, nil
		case strings.HasSuffix(name, ".xz"):
			return name, LayerXZ, nil
		case strings.HasSuffix(name, ".bz2"):
			return name, LayerBzip2, nil
		case strings.HasSuffix(name, ".zst"):
			return name, LayerZstd, nil
		case strings.HasSuffix(name, ".lzma"):
			return name, LayerLZMA, nil
		}
	}

	return "", LayerNone, fmt.Errorf("%w: no %s.* in %s", ErrNoDebData, prefix, archive)
}
