package unwrapr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireTools skips the test when any named program is absent from the host.
func requireTools(t *testing.T, tools ...string) {
	t.Helper()

	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("test requires %s on the PATH", tool)
		}
	}
}

// writeAr builds a minimal GNU ar archive holding the named members.
func writeAr(t *testing.T, path string, members map[string][]byte) {
	t.Helper()

	out := []byte("!<arch>\n")

	for name, data := range members {
		header := fmt.Sprintf("%-16s%-12d%-6d%-6d%-8o%-10d`\n", name, 0, 0, 0, 0o644, len(data))
		out = append(out, header...)
		out = append(out, data...)

		if len(data)%2 == 1 {
			out = append(out, '\n')
		}
	}

	require.NoError(t, os.WriteFile(path, out, 0o600))
}

func TestCompileTarGz(t *testing.T) {
	t.Parallel()
	requireTools(t, "zcat", "tar")

	unwrap := New(nil)

	pipe, err := unwrap.compile("/nowhere/report.tar.gz", Layers{LayerGzip, LayerTar}, ModeExtract)
	require.NoError(t, err)

	require.Len(t, pipe.Stages, 2)
	assert.Equal(t, []string{"zcat"}, pipe.Stages[0].Argv)
	assert.Equal(t, sourceArchive, pipe.Stages[0].Source)
	assert.Equal(t, []string{"tar", "-x"}, pipe.Stages[1].Argv)
	assert.Equal(t, sourcePrev, pipe.Stages[1].Source)
	assert.False(t, pipe.Materialize)
	assert.Empty(t, pipe.WriteTo)
}

func TestCompilePlainFile(t *testing.T) {
	t.Parallel()
	requireTools(t, "bzcat")

	unwrap := New(nil)

	pipe, err := unwrap.compile("/nowhere/page.html.bz2", Layers{LayerBzip2}, ModeExtract)
	require.NoError(t, err)
	require.Len(t, pipe.Stages, 1)
	assert.Equal(t, "page.html", pipe.WriteTo)

	// Plain compressed files have no member index to print.
	_, err = unwrap.compile("/nowhere/page.html.bz2", Layers{LayerBzip2}, ModeList)
	require.ErrorIs(t, err, ErrUnsupportedMode)
}

func TestCompileMaterialize(t *testing.T) {
	t.Parallel()
	requireTools(t, "zcat", "unzip")

	unwrap := New(nil)

	pipe, err := unwrap.compile("/nowhere/backup.zip.gz", Layers{LayerGzip, LayerZip}, ModeExtract)
	require.NoError(t, err)

	require.Len(t, pipe.Stages, 2)
	assert.True(t, pipe.Materialize)
	// The terminal argv has no path yet; the runner appends the temp file.
	assert.Equal(t, []string{"unzip", "-q"}, pipe.Stages[1].Argv)
	assert.Equal(t, sourceNone, pipe.Stages[1].Source)
}

func TestCompileZipDirect(t *testing.T) {
	t.Parallel()
	requireTools(t, "unzip", "zipinfo")

	unwrap := New(nil)

	pipe, err := unwrap.compile("/nowhere/bundle.zip", Layers{LayerZip}, ModeExtract)
	require.NoError(t, err)
	require.Len(t, pipe.Stages, 1)
	assert.Equal(t, []string{"unzip", "-q", pipe.Archive}, pipe.Stages[0].Argv)
	require.NotNil(t, pipe.NonFatalExit)
	assert.True(t, pipe.NonFatalExit(1))
	assert.False(t, pipe.NonFatalExit(2))

	pipe, err = unwrap.compile("/nowhere/bundle.zip", Layers{LayerZip}, ModeList)
	require.NoError(t, err)
	assert.Equal(t, "zipinfo", pipe.Stages[0].Tool)
}

func TestCompilePassword(t *testing.T) {
	t.Parallel()
	requireTools(t, "unzip")

	unwrap := New(&Config{Password: "hunter2"})

	pipe, err := unwrap.compile("/nowhere/secret.zip", Layers{LayerZip}, ModeExtract)
	require.NoError(t, err)
	assert.Equal(t, []string{"unzip", "-q", "-P", "hunter2", pipe.Archive}, pipe.Stages[0].Argv)
}

func TestCompileMissingTool(t *testing.T) {
	t.Parallel()

	unwrap := New(nil)
	unwrap.tools.paths["lrzcat"] = ""

	_, err := unwrap.compile("/nowhere/big.tar.lrz", Layers{LayerLrzip, LayerTar}, ModeExtract)
	require.ErrorIs(t, err, ErrMissingTool)
	assert.Contains(t, err.Error(), "lrzcat")
}

func TestCompileNativeFallback(t *testing.T) {
	t.Parallel()
	requireTools(t, "tar")

	unwrap := New(&Config{NativeFallback: true})
	unwrap.tools.paths["brotli"] = ""

	pipe, err := unwrap.compile("/nowhere/site.tar.br", Layers{LayerBrotli, LayerTar}, ModeExtract)
	require.NoError(t, err)
	require.Len(t, pipe.Stages, 2)
	assert.NotNil(t, pipe.Stages[0].Native)
	assert.Empty(t, pipe.Stages[0].Path)

	// Without the fallback the same compile fails.
	strict := New(nil)
	strict.tools.paths["brotli"] = ""

	_, err = strict.compile("/nowhere/site.tar.br", Layers{LayerBrotli, LayerTar}, ModeExtract)
	require.ErrorIs(t, err, ErrMissingTool)
}

func TestCompileDeb(t *testing.T) {
	t.Parallel()
	requireTools(t, "ar", "xzcat", "tar")

	dir := t.TempDir()
	deb := filepath.Join(dir, "pkg_1.0_amd64.deb")
	writeAr(t, deb, map[string][]byte{
		"debian-binary": []byte("2.0\n"),
		"data.tar.xz":   []byte("fake payload"),
	})

	unwrap := New(nil)

	pipe, err := unwrap.compile(deb, Layers{LayerDeb}, ModeExtract)
	require.NoError(t, err)

	require.Len(t, pipe.Stages, 3)
	assert.Equal(t, []string{"ar", "p", pipe.Archive, "data.tar.xz"}, pipe.Stages[0].Argv)
	assert.Equal(t, sourceNone, pipe.Stages[0].Source)
	assert.Equal(t, []string{"xzcat"}, pipe.Stages[1].Argv)
	assert.Equal(t, []string{"tar", "-x"}, pipe.Stages[2].Argv)
}

func TestCompileDebNoData(t *testing.T) {
	t.Parallel()
	requireTools(t, "ar")

	dir := t.TempDir()
	deb := filepath.Join(dir, "broken_1.0_amd64.deb")
	writeAr(t, deb, map[string][]byte{"debian-binary": []byte("2.0\n")})

	unwrap := New(nil)

	_, err := unwrap.compile(deb, Layers{LayerDeb}, ModeExtract)
	require.ErrorIs(t, err, ErrNoDebData)
}

func TestCompileGem(t *testing.T) {
	t.Parallel()
	requireTools(t, "tar", "zcat")

	unwrap := New(nil)

	pipe, err := unwrap.compile("/nowhere/lib-1.0.gem", Layers{LayerGem}, ModeExtract)
	require.NoError(t, err)

	require.Len(t, pipe.Stages, 3)
	assert.Equal(t, []string{"tar", "-xO", "data.tar.gz"}, pipe.Stages[0].Argv)
	assert.Equal(t, sourceArchive, pipe.Stages[0].Source)
	assert.Equal(t, []string{"zcat"}, pipe.Stages[1].Argv)
	assert.Equal(t, []string{"tar", "-x"}, pipe.Stages[2].Argv)

	meta, err := unwrap.compile("/nowhere/lib-1.0.gem", Layers{LayerGem}, ModeMetadata)
	require.NoError(t, err)
	require.Len(t, meta.Stages, 2)
	assert.Equal(t, []string{"tar", "-xO", "metadata.gz"}, meta.Stages[0].Argv)
	assert.Equal(t, "lib-1.0.gem-metadata.txt", meta.WriteTo)
}

func TestCompileRPM(t *testing.T) {
	t.Parallel()
	requireTools(t, "rpm2cpio", "cpio")

	unwrap := New(nil)

	pipe, err := unwrap.compile("/nowhere/pkg-1.0-1.x86_64.rpm", Layers{LayerRPM}, ModeExtract)
	require.NoError(t, err)

	require.Len(t, pipe.Stages, 2)
	assert.Equal(t, []string{"rpm2cpio", "-"}, pipe.Stages[0].Argv)
	assert.Equal(t, sourceArchive, pipe.Stages[0].Source)
	assert.Equal(t,
		[]string{"cpio", "-i", "--make-directories", "--quiet", "--no-absolute-filenames"},
		pipe.Stages[1].Argv)
}

func TestCompileMetadataUnsupported(t *testing.T) {
	t.Parallel()
	requireTools(t, "unzip")

	unwrap := New(nil)

	_, err := unwrap.compile("/nowhere/bundle.zip", Layers{LayerZip}, ModeMetadata)
	require.ErrorIs(t, err, ErrUnsupportedMode)
}

func TestDebMemberEncodings(t *testing.T) {
	t.Parallel()

	cases := []struct {
		member string
		layer  Layer
	}{
		{"data.tar.gz", LayerGzip},
		{"data.tar.xz", LayerXZ},
		{"data.tar.bz2", LayerBzip2},
		{"data.tar.zst", LayerZstd},
		{"data.tar.lzma", LayerLZMA},
		{"data.tar", LayerNone},
	}

	for _, testCase := range cases {
		t.Run(testCase.member, func(t *testing.T) {
			t.Parallel()

			deb := filepath.Join(t.TempDir(), "pkg_1.0_amd64.deb")
			writeAr(t, deb, map[string][]byte{
				"debian-binary": []byte("2.0\n"),
				testCase.member: []byte("fake payload"),
			})

			member, layer, err := debMember(deb, "data.tar")
			require.NoError(t, err)
			assert.Equal(t, testCase.member, member)
			assert.Equal(t, testCase.layer, layer)
		})
	}
}

// The native listers answer only when the fallback is enabled; without it a
// missing listing tool stays a missing-tool error.
func TestListNativeFallbackGate(t *testing.T) {
	t.Parallel()

	archive := filepath.Join(t.TempDir(), "busted.rar")
	require.NoError(t, os.WriteFile(archive, []byte("Rar!\x1a\x07\x00garbage"), 0o600))

	strict := New(nil)
	strict.tools.paths["unrar"] = ""
	strict.tools.paths["unar"] = ""
	strict.tools.paths["lsar"] = ""

	_, err := strict.List(context.Background(), archive)
	require.ErrorIs(t, err, ErrMissingTool)

	native := New(&Config{NativeFallback: true})
	native.tools.paths["unrar"] = ""
	native.tools.paths["unar"] = ""
	native.tools.paths["lsar"] = ""

	_, err = native.List(context.Background(), archive)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrMissingTool)
}
