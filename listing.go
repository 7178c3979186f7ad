package unwrapr

/* Listing helpers: splitting tool output and repairing mangled file names. */

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/ianaindex"
)

// listLines splits raw listing output into lines, trimming the trailing
// newline so callers never see a phantom empty member.
func listLines(output []byte) []string {
	text := strings.TrimRight(string(output), "\n")
	if text == "" {
		return []string{}
	}

	return strings.Split(text, "\n")
}

// listFilters turn tabular tool listings into bare member names. Formats
// absent from this map already list one name per line (tar -t, zipinfo -1,
// cpio -t, unrar vb).
//
//nolint:gochecknoglobals
var listFilters = map[Layer]func([]string) []string{
	LayerSevenZip: filter7z,
	LayerCab:      filterCab,
	LayerLZH:      filterLha,
	LayerShield:   filterShield,
	LayerARJ:      filterArj,
	LayerRAR:      filterRar,
}

// filterListing applies the container's table parser, if it has one.
func filterListing(container Layer, lines []string) []string {
	if filter := listFilters[container]; filter != nil {
		return filter(lines)
	}

	return lines
}

// filter7z parses `7z l -ba` output. The name column starts at a fixed
// offset: date, time, attributes, size and packed size occupy the first 53
// characters.
func filter7z(lines []string) []string {
	const nameColumn = 53

	names := []string{}

	for _, line := range lines {
		if len(line) > nameColumn {
			names = append(names, strings.TrimSpace(line[nameColumn:]))
		}
	}

	return names
}

// filterCab parses `cabextract -l` output: "size | date time | name" rows
// between a header and a summary line.
func filterCab(lines []string) []string {
	names := []string{}

	for _, line := range lines {
		parts := strings.SplitN(line, " | ", 3) //nolint:mnd
		if len(parts) != 3 || strings.Contains(parts[0], "File size") {
			continue
		}

		if name := strings.TrimSpace(parts[2]); name != "" {
			names = append(names, name)
		}
	}

	return names
}

// filterLha parses `lha l` output: table rows between two dashed rulers,
// name in the trailing columns after permissions, owner, size, ratio and a
// three-part timestamp.
func filterLha(lines []string) []string {
	const nameField = 7

	names := []string{}
	inTable := false

	for _, line := range lines {
		if strings.HasPrefix(line, "----") {
			inTable = !inTable
			continue
		}

		if !inTable {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) > nameField {
			names = append(names, strings.Join(fields[nameField:], " "))
		}
	}

	return names
}

// filterShield parses `unshield l` output: indexed rows of "count name"
// inside file group sections.
func filterShield(lines []string) []string {
	names := []string{}

	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		if _, err := strconv.Atoi(fields[0]); err != nil {
			continue
		}

		names = append(names, strings.Join(fields[1:], " "))
	}

	return names
}

// filterRar handles both rar listers: `unrar vb` is already bare, but the
// lsar fallback prefixes the listing with an "archive.rar:" banner line.
func filterRar(lines []string) []string {
	if len(lines) > 0 && strings.HasSuffix(lines[0], ":") {
		return lines[1:]
	}

	return lines
}

// filterArj parses `arj v` output: each member starts a block with an
// "NNN) name" line.
func filterArj(lines []string) []string {
	names := []string{}

	for _, line := range lines {
		idx := strings.Index(line, ") ")
		if idx < 1 {
			continue
		}

		if _, err := strconv.Atoi(strings.TrimSpace(line[:idx])); err != nil {
			continue
		}

		names = append(names, strings.TrimSpace(line[idx+2:]))
	}

	return names
}

// repairNames fixes member names that arrive in a legacy encoding. Zip has
// no mandated file name encoding, so archives built on Windows routinely
// carry CP437, Shift-JIS or GBK names. Names already valid UTF-8 pass
// through untouched; for the rest the charset is detected and the name
// transcoded. A name that defeats detection is returned as-is rather than
// dropped.
func repairNames(names []string) []string {
	out := make([]string, len(names))

	for i, name := range names {
		out[i] = repairName(name)
	}

	return out
}

func repairName(name string) string {
	if utf8.ValidString(name) {
		return name
	}

	result, err := chardet.NewTextDetector().DetectBest([]byte(name))
	if err != nil {
		return name
	}

	encoding, err := ianaindex.IANA.Encoding(result.Charset)
	if err != nil || encoding == nil {
		return name
	}

	decoded, err := encoding.NewDecoder().String(name)
	if err != nil {
		return name
	}

	return decoded
}
