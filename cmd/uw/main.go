// Package main is uw, the do-what-I-mean archive extractor. Point it at any
// archive (or a URL to one) and it picks the right tools, keeps the output
// out of your lap, and asks before doing anything surprising.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"os/signal"
	"path"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/pterm/pterm"
	flag "github.com/spf13/pflag"

	"golift.io/unwrapr"
)

// Filled in with -ldflags at build time.
var version = "dev" //nolint:gochecknoglobals

type cliFlags struct {
	recursive      bool
	overwrite      bool
	flat           bool
	noninteractive bool
	list           bool
	table          bool
	metadata       bool
	native         bool
	printVersion   bool
	password       string
	output         string
	one            string
	verbose        int
	quiet          int
}

// listing reports whether the run is read-only: -t implies -l.
func (c *cliFlags) listing() bool {
	return c.list || c.table
}

func parseFlags(args []string) (*cliFlags, []string) {
	cli := &cliFlags{}
	flags := flag.NewFlagSet("uw", flag.ExitOnError)

	flags.BoolVarP(&cli.recursive, "recursive", "r", false, "extract archives found inside archives")
	flags.BoolVarP(&cli.overwrite, "overwrite", "o", false, "replace existing output instead of picking a new name")
	flags.BoolVarP(&cli.flat, "flat", "f", false, "extract members into the current directory, no wrapper")
	flags.BoolVarP(&cli.noninteractive, "noninteractive", "n", false, "never prompt; take the safe default")
	flags.BoolVarP(&cli.list, "list", "l", false, "list archive members instead of extracting")
	flags.BoolVarP(&cli.table, "table", "t", false, "list archive members as a table (implies --list)")
	flags.BoolVarP(&cli.metadata, "metadata", "m", false, "extract package metadata instead of data (deb, gem, rpm)")
	flags.BoolVar(&cli.native, "native", false, "use built-in decoders when a decompression tool is missing")
	flags.BoolVarP(&cli.printVersion, "version", "V", false, "print the version and exit")
	flags.StringVarP(&cli.password, "password", "p", "", "password for encrypted archives")
	flags.StringVarP(&cli.output, "output", "O", "", "output directory (default: current directory)")
	flags.StringVar(&cli.one, "one", "", "single-entry policy: inside, rename or here")
	flags.StringVar(&cli.one, "one-entry", "", "alias for --one")
	flags.CountVarP(&cli.verbose, "verbose", "v", "more output (repeatable)")
	flags.CountVarP(&cli.quiet, "quiet", "q", "less output (repeatable)")
	_ = flags.Parse(args)

	return cli, flags.Args()
}

func main() {
	cli, args := parseFlags(os.Args[1:])

	if cli.printVersion {
		fmt.Println("uw " + version)
		return
	}

	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: uw [options] <archive|url> [more...]")
		fmt.Fprintln(os.Stderr, "Try: uw --help")
		os.Exit(2) //nolint:mnd
	}

	logger := newTermLogger(cli.verbose - cli.quiet)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	unwrap := unwrapr.New(&unwrapr.Config{
		Logger:         logger,
		OutputDir:      cli.output,
		Password:       cli.password,
		Prompter:       pickPrompter(cli),
		Flat:           cli.flat,
		Overwrite:      cli.overwrite,
		Recursive:      cli.recursive,
		NativeFallback: cli.native,
	})

	failed := 0

	for _, arg := range args {
		archive, err := fetchIfURL(ctx, arg)
		if err != nil {
			logger.errorf("%s: %v", arg, err)
			failed++

			continue
		}

		if err := processOne(ctx, unwrap, cli, archive); err != nil {
			logger.errorf("%s: %v", archive, err)
			failed++
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}

func processOne(ctx context.Context, unwrap *unwrapr.Unwrapr, cli *cliFlags, archive string) error {
	switch {
	case cli.listing():
		names, err := unwrap.List(ctx, archive)
		if err != nil {
			return err
		}

		printListing(archive, names, cli.table)

		return nil
	case cli.metadata:
		result, err := unwrap.Metadata(ctx, archive)
		if err != nil {
			return err
		}

		pterm.Success.Printfln("%s metadata -> %s", archive, result.Target)

		return nil
	default:
		result, err := unwrap.Extract(ctx, archive)
		if err != nil {
			return err
		}

		printResult(result)

		return nil
	}
}

func printListing(archive string, names []string, table bool) {
	if !table {
		for _, name := range names {
			fmt.Println(name)
		}

		return
	}

	rows := pterm.TableData{{"#", "Member"}}
	for i, name := range names {
		rows = append(rows, []string{strconv.Itoa(i + 1), name})
	}

	pterm.DefaultSection.Println(archive)
	_ = pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func printResult(result *unwrapr.Result) {
	switch {
	case result.Target != "":
		pterm.Success.Printfln("%s -> %s", result.Archive, result.Target)
	case len(result.Moved) > 0:
		pterm.Success.Printfln("%s -> %d item(s) extracted here", result.Archive, len(result.Moved))
	default:
		pterm.Info.Printfln("%s produced no output", result.Archive)
	}

	for _, nested := range result.Nested {
		pterm.Info.Printfln("  also extracted nested archive %s", nested)
	}
}

// fetchIfURL downloads http/https/ftp arguments with wget -c and returns the
// local file name. A pre-existing file with the same name is an error, not a
// resume: the user may not have meant to clobber it.
func fetchIfURL(ctx context.Context, arg string) (string, error) {
	parsed, err := url.Parse(arg)
	if err != nil || parsed.Scheme != "http" && parsed.Scheme != "https" && parsed.Scheme != "ftp" {
		return arg, nil //nolint:nilerr // not a URL, treat as a local path.
	}

	name := path.Base(parsed.Path)
	if name == "" || name == "/" || name == "." {
		return "", errors.New("cannot tell the file name from the URL")
	}

	if _, err := os.Lstat(name); err == nil {
		return "", fmt.Errorf("refusing to download over existing file %s", name)
	}

	wget, err := exec.LookPath("wget")
	if err != nil {
		return "", fmt.Errorf("downloading requires wget: %w", err)
	}

	cmd := exec.CommandContext(ctx, wget, "-c", arg)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("wget: %w", err)
	}

	return name, nil
}

// pickPrompter wires the interactive prompts, honoring -n and --one.
func pickPrompter(cli *cliFlags) unwrapr.Prompter {
	var base unwrapr.Prompter = termPrompter{}
	if cli.noninteractive {
		base = unwrapr.BatchPrompter{}
	}

	switch cli.one {
	case "":
		return base
	case "inside":
		return fixedPrompter{base: base, choice: unwrapr.ChoiceInside}
	case "rename":
		return fixedPrompter{base: base, choice: unwrapr.ChoiceRename}
	case "here":
		return fixedPrompter{base: base, choice: unwrapr.ChoiceHere}
	default:
		fmt.Fprintf(os.Stderr, "invalid --one value %q (want inside, rename or here)\n", cli.one)
		os.Exit(2) //nolint:mnd

		return nil
	}
}

// termPrompter asks real questions on the terminal.
type termPrompter struct{}

func (termPrompter) SingleEntry(archive, entry string) unwrapr.SingleEntryChoice {
	labels := map[string]unwrapr.SingleEntryChoice{
		"Inside a new directory":        unwrapr.ChoiceInside,
		"Renamed after the archive":     unwrapr.ChoiceRename,
		"Here, under its original name": unwrapr.ChoiceHere,
	}

	selected, err := pterm.DefaultInteractiveSelect.
		WithOptions([]string{
			"Inside a new directory",
			"Renamed after the archive",
			"Here, under its original name",
		}).
		Show(fmt.Sprintf("%s contains one item (%s). Where should it go?", filepath.Base(archive), entry))
	if err != nil {
		return unwrapr.ChoiceInside
	}

	return labels[selected]
}

func (termPrompter) ConfirmOverwrite(path string) bool {
	answer, err := pterm.DefaultInteractiveConfirm.
		Show(path + " already exists. Replace it?")

	return err == nil && answer
}

// fixedPrompter forces the single-entry answer while delegating overwrite
// questions to the wrapped prompter.
type fixedPrompter struct {
	base   unwrapr.Prompter
	choice unwrapr.SingleEntryChoice
}

func (f fixedPrompter) SingleEntry(string, string) unwrapr.SingleEntryChoice { return f.choice }
func (f fixedPrompter) ConfirmOverwrite(path string) bool                    { return f.base.ConfirmOverwrite(path) }

// termLogger maps library messages onto pterm printers. Level below zero
// silences warnings; above zero enables debug chatter.
type termLogger struct {
	level int
}

func newTermLogger(level int) *termLogger {
	if level > 0 {
		pterm.EnableDebugMessages()
	}

	return &termLogger{level: level}
}

func (l *termLogger) Printf(msg string, v ...any) {
	if l.level >= 0 {
		pterm.Info.Printfln(msg, v...)
	}
}

func (l *termLogger) Debugf(msg string, v ...any) {
	if l.level > 0 {
		pterm.Debug.Printfln(msg, v...)
	}
}

func (l *termLogger) errorf(msg string, v ...any) {
	pterm.Error.Printfln(msg, v...)
}
