package unwrapr

/* The driver: classify, compile, run, place, recurse. */

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the input to New().
type Config struct {
	// Logger receives warnings and debug output. nil means silence.
	Logger Logger
	// OutputDir is where extracted trees land. Empty means the current
	// directory. Nested archives always extract next to themselves.
	OutputDir string
	// TmpDir holds scratch files for tools that refuse to read pipes.
	// Empty means the system default.
	TmpDir string
	// Password is handed to tools that support encrypted archives.
	Password string
	// Prompter answers interactive questions. nil selects BatchPrompter.
	Prompter Prompter
	// Flat moves archive members directly into OutputDir instead of a
	// directory named after the archive.
	Flat bool
	// Overwrite replaces existing destinations. The default finds a free
	// numbered name instead.
	Overwrite bool
	// Recursive extracts archives found inside archives, then deletes the
	// inner archive file.
	Recursive bool
	// MaxDepth bounds recursive extraction. 0 means a sane default.
	MaxDepth int
	// NativeFallback decodes compression layers in-process when the
	// external tool is missing. Off by default: the default behavior is to
	// tell you exactly which tool to install.
	NativeFallback bool
}

// Unwrapr drives archive extraction with external tools. Create one with
// New() and reuse it; the tool availability cache and the visited-archive
// set live for its lifetime. Not safe for concurrent use.
type Unwrapr struct {
	config  *Config
	tools   *toolCache
	ask     *interaction
	visited map[string]bool
}

// New returns an Unwrapr ready to process archives.
func New(config *Config) *Unwrapr {
	if config == nil {
		config = &Config{}
	}

	if config.Logger == nil {
		config.Logger = NoLogger()
	}

	if config.MaxDepth < 1 {
		config.MaxDepth = defaultMaxDepth
	}

	return &Unwrapr{
		config:  config,
		tools:   newToolCache(),
		ask:     newInteraction(config.Prompter),
		visited: map[string]bool{},
	}
}

// Result describes what one archive produced.
type Result struct {
	// Archive is the input file.
	Archive string
	// Layers is what the classifier found.
	Layers Layers
	// Target is the path created in the output directory. Empty when the
	// archive was empty or was extracted flat.
	Target string
	// Moved lists top-level names placed directly into the output directory
	// by flat extraction or the "here" single-entry choice.
	Moved []string
	// Skipped lists names refused during overwrite confirmation.
	Skipped []string
	// Nested lists inner archives extracted recursively.
	Nested []string
}

// Extract classifies the archive and unpacks it into the output directory.
func (u *Unwrapr) Extract(ctx context.Context, path string) (*Result, error) {
	layers, err := checkInput(path)
	if err != nil {
		return nil, err
	}

	return u.extractOne(ctx, path, layers, u.outDir(), ModeExtract, 0)
}

// List prints nothing; it returns the archive's member names. Plain
// compressed files report the single file they would decompress to. With
// NativeFallback set, a missing listing tool falls back to a bundled library
// when one reads the format.
func (u *Unwrapr) List(ctx context.Context, path string) ([]string, error) {
	layers, err := checkInput(path)
	if err != nil {
		return nil, err
	}

	if layers.Container() == LayerNone {
		return []string{baseName(path, layers)}, nil
	}

	pipe, err := u.compile(path, layers, ModeList)
	if err != nil {
		if errors.Is(err, ErrMissingTool) && u.config.NativeFallback {
			if names, covered, nativeErr := nativeList(path, layers.Container()); covered {
				return repairNames(names), nativeErr
			}
		}

		return nil, err
	}

	output, err := u.run(ctx, pipe, u.workDir())
	if err != nil {
		return nil, err
	}

	return repairNames(filterListing(layers.Container(), listLines(output))), nil
}

// Metadata extracts package metadata instead of package data: the control
// tree of a deb, the gemspec of a gem, or the header fields of an rpm.
func (u *Unwrapr) Metadata(ctx context.Context, path string) (*Result, error) {
	layers, err := checkInput(path)
	if err != nil {
		return nil, err
	}

	switch layers.Container() {
	case LayerRPM:
		return u.writeRPMMetadata(path, layers)
	case LayerDeb, LayerGem:
		return u.extractOne(ctx, path, layers, u.outDir(), ModeMetadata, 0)
	default:
		return nil, fmt.Errorf("%w: metadata of %s", ErrUnsupportedMode, layers)
	}
}

// checkInput rejects directories and unreadable paths up front, then
// classifies the file.
func checkInput(path string) (Layers, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("os.Stat: %w", err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotArchive, path)
	}

	return Classify(path)
}

func (u *Unwrapr) outDir() string {
	if u.config.OutputDir != "" {
		return u.config.OutputDir
	}

	return "."
}

func (u *Unwrapr) workDir() string {
	if u.config.TmpDir != "" {
		return u.config.TmpDir
	}

	return os.TempDir()
}

// confirm answers overwrite questions: always yes with -o, otherwise ask.
func (u *Unwrapr) confirm(path string) bool {
	return u.config.Overwrite || u.ask.confirmOverwrite(path)
}

// targetFor picks the final destination path for an archive's output.
func (u *Unwrapr) targetFor(outDir, base string) (string, error) {
	target := filepath.Join(outDir, base)
	if u.config.Overwrite {
		return target, nil
	}

	return uniquePath(target)
}

// extractOne runs the full extract sequence for one archive: compile, run
// into staging, fix permissions, place the output, then recurse.
func (u *Unwrapr) extractOne(
	ctx context.Context,
	path string,
	layers Layers,
	outDir string,
	mode Mode,
	depth int,
) (*Result, error) {
	key := canonical(path)
	if u.visited[key] {
		u.config.Logger.Printf("Skipping %s: already extracted in this run", path)
		return &Result{Archive: path, Layers: layers}, nil
	}

	u.visited[key] = true

	pipe, err := u.compile(path, layers, mode)
	if err != nil {
		return nil, err
	}

	base := baseName(path, layers)

	staging, err := mkStaging(outDir, base)
	if err != nil {
		return nil, err
	}

	placed := false
	defer func() {
		if !placed {
			os.RemoveAll(staging)
		}
	}()

	u.config.Logger.Debugf("Extracting %s (%s) via %d stage(s)", path, layers, len(pipe.Stages))

	if _, err := u.run(ctx, pipe, staging); err != nil {
		return nil, err
	}

	u.normalizePermissions(staging)

	result := &Result{Archive: path, Layers: layers}

	if mode == ModeMetadata && pipe.WriteTo != "" {
		// Gem metadata is one YAML file; it keeps its own name.
		if err := u.placeSingleFile(result, staging, pipe.WriteTo); err != nil {
			return nil, err
		}

		placed = true

		return result, nil
	}

	if err := u.place(result, staging, outDir, base, layers); err != nil {
		return nil, err
	}

	placed = true

	if mode == ModeExtract && u.config.Recursive && result.Target != "" {
		u.recurse(ctx, result, depth)
	}

	return result, nil
}

// place moves the staging directory's contents to their final home per the
// flat flag and the staging disposition.
func (u *Unwrapr) place(result *Result, staging, outDir, base string, layers Layers) error {
	if u.config.Flat {
		moved, skipped, err := moveContents(staging, outDir, u.confirm)
		result.Moved, result.Skipped = moved, skipped

		for _, name := range skipped {
			u.config.Logger.Printf("Skipping %s: already exists", filepath.Join(outDir, name))
		}

		os.RemoveAll(staging)

		return err
	}

	disp, entry, err := classifyStaging(staging, layers)
	if err != nil {
		return err
	}

	switch disp {
	case dispositionEmpty:
		u.config.Logger.Printf("Warning: %s is empty", result.Archive)
		os.RemoveAll(staging)

		return nil
	case dispositionOneEntry:
		return u.placeOneEntry(result, staging, outDir, base, entry)
	default:
		target, err := u.targetFor(outDir, base)
		if err != nil {
			return err
		}

		if err := promote(staging, target, u.config.Overwrite); err != nil {
			return err
		}

		result.Target = target

		return nil
	}
}

// placeOneEntry handles the archive-holds-one-thing case: the wrapper
// directory may be redundant, so ask (or apply the batch default).
func (u *Unwrapr) placeOneEntry(result *Result, staging, outDir, base, entry string) error {
	choice := ChoiceRename
	if entry != base {
		choice = u.ask.singleEntry(result.Archive, entry)
	}

	switch choice {
	case ChoiceRename:
		target, err := u.targetFor(outDir, base)
		if err != nil {
			return err
		}

		if err := promote(filepath.Join(staging, entry), target, u.config.Overwrite); err != nil {
			return err
		}

		os.RemoveAll(staging)
		result.Target = target

		return nil
	case ChoiceHere:
		moved, skipped, err := moveContents(staging, outDir, u.confirm)
		result.Moved, result.Skipped = moved, skipped

		os.RemoveAll(staging)

		if len(moved) == 1 {
			result.Target = filepath.Join(outDir, moved[0])
		}

		return err
	default: // ChoiceInside
		target, err := u.targetFor(outDir, base)
		if err != nil {
			return err
		}

		if err := promote(staging, target, u.config.Overwrite); err != nil {
			return err
		}

		result.Target = target

		return nil
	}
}

// placeSingleFile promotes one named file out of staging under its own name.
func (u *Unwrapr) placeSingleFile(result *Result, staging, name string) error {
	target, err := u.targetFor(u.outDir(), name)
	if err != nil {
		return err
	}

	if err := promote(filepath.Join(staging, name), target, u.config.Overwrite); err != nil {
		return err
	}

	os.RemoveAll(staging)
	result.Target = target

	return nil
}

// writeRPMMetadata reads the rpm header natively and writes the formatted
// fields to <name>.rpm-metadata.txt in the output directory.
func (u *Unwrapr) writeRPMMetadata(path string, layers Layers) (*Result, error) {
	text, err := rpmMetadata(path)
	if err != nil {
		return nil, err
	}

	target, err := u.targetFor(u.outDir(), filepath.Base(path)+"-metadata.txt")
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(target, []byte(text), 0o644); err != nil { //nolint:gosec,mnd
		return nil, fmt.Errorf("writing metadata: %w", err)
	}

	return &Result{Archive: path, Layers: layers, Target: target}, nil
}

// recurse extracts archives found inside a freshly extracted tree, bounded
// by MaxDepth and the visited set. Each inner archive extracts next to
// itself and is deleted once its contents are out.
func (u *Unwrapr) recurse(ctx context.Context, result *Result, depth int) {
	if depth+1 >= u.config.MaxDepth {
		u.config.Logger.Printf("Warning: not descending into %s: %d levels of archives is enough",
			result.Target, u.config.MaxDepth)

		return
	}

	for _, nested := range findNested(result.Target) {
		if selfCopy(result.Archive, nested) {
			u.config.Logger.Printf("Warning: %s contains a copy of itself; skipping it", result.Archive)
			continue
		}

		if u.visited[canonical(nested)] {
			continue
		}

		layers, err := Classify(nested)
		if err != nil {
			continue
		}

		inner, err := u.extractOne(ctx, nested, layers, filepath.Dir(nested), ModeExtract, depth+1)
		if err != nil {
			u.config.Logger.Printf("Warning: could not extract nested archive %s: %v", nested, err)
			continue
		}

		result.Nested = append(result.Nested, nested)
		result.Nested = append(result.Nested, inner.Nested...)

		if err := os.Remove(nested); err != nil {
			u.config.Logger.Printf("Warning: could not remove extracted nested archive %s: %v", nested, err)
		}
	}
}
