package unwrapr_test

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golift.io/unwrapr"
)

func TestClassifyBySuffix(t *testing.T) {
	t.Parallel()

	// Suffix classification never opens the file, so the paths can be fake.
	cases := []struct {
		name   string
		layers string
	}{
		{"report.tar.gz", "gzip+tar"},
		{"report.tgz", "gzip+tar"},
		{"report.tar.bz2", "bzip2+tar"},
		{"report.tbz2", "bzip2+tar"},
		{"report.tar.xz", "xz+tar"},
		{"report.txz", "xz+tar"},
		{"report.tar.zst", "zstd+tar"},
		{"report.tar.lz4", "lz4+tar"},
		{"report.tar.lrz", "lrzip+tar"},
		{"report.tar.lz", "lzip+tar"},
		{"report.tar.br", "brotli+tar"},
		{"report.tar.z", "compress+tar"},
		{"report.tar.lzma", "lzma+tar"},
		{"report.tar", "tar"},
		{"bundle.zip", "zip"},
		{"plugin.xpi", "zip"},
		{"book.epub", "zip"},
		{"app.jar", "zip"},
		{"movie.rar", "rar"},
		{"stuff.7z", "7z"},
		{"installer.msi", "7z"},
		{"pkg_1.0_amd64.deb", "deb"},
		{"pkg-1.0-1.x86_64.rpm", "rpm"},
		{"lib-1.0.gem", "gem"},
		{"initrd.cpio", "cpio"},
		{"old.lzh", "lzh"},
		{"drivers.cab", "cab"},
		{"setup.hdr", "installshield"},
		{"dos.arj", "arj"},
		{"page.html.gz", "gzip"},
		{"page.html.br", "brotli"},
		{"data.bin.zst", "zstd"},
		{"kernel.img.lz4", "lz4"},
		// Chained suffixes peel all the way down.
		{"backup.zip.gz", "gzip+zip"},
		{"backup.7z.bz2", "bzip2+7z"},
		{"double.gz.bz2", "bzip2+gzip"},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			layers, err := unwrapr.Classify(filepath.Join("/nowhere", testCase.name))
			require.NoError(t, err)
			assert.Equal(t, testCase.layers, layers.String())
		})
	}
}

func TestClassifyBySignature(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		magic  []byte
		offset int
		layers string
	}{
		{"ZIP", []byte{0x50, 0x4B, 0x03, 0x04}, 0, "zip"},
		{"RAR_v4", []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x00}, 0, "rar"},
		{"RAR_v5", []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x01, 0x00}, 0, "rar"},
		{"7z", []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}, 0, "7z"},
		{"Gzip", []byte{0x1F, 0x8B}, 0, "gzip"},
		{"Compress", []byte{0x1F, 0x9D}, 0, "compress"},
		{"Bzip2", []byte{0x42, 0x5A, 0x68}, 0, "bzip2"},
		{"XZ", []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}, 0, "xz"},
		{"Zstandard", []byte{0x28, 0xB5, 0x2F, 0xFD}, 0, "zstd"},
		{"LZ4", []byte{0x04, 0x22, 0x4D, 0x18}, 0, "lz4"},
		{"LZMA", []byte{0x5D, 0x00, 0x00}, 0, "lzma"},
		{"Lzip", []byte("LZIP"), 0, "lzip"},
		{"Lrzip", []byte("LRZI"), 0, "lrzip"},
		{"AR_DEB", []byte("!<arch>\n"), 0, "deb"},
		{"RPM", []byte{0xED, 0xAB, 0xEE, 0xDB}, 0, "rpm"},
		{"Cpio", []byte("070701"), 0, "cpio"},
		{"Cabinet", []byte("MSCF"), 0, "cab"},
		{"InstallShield", []byte("ISc("), 0, "installshield"},
		{"ARJ", []byte{0x60, 0xEA}, 0, "arj"},
		{"LZH", []byte{0x2D, 0x6C, 0x68}, 2, "lzh"},
		{"Tar", []byte("ustar"), 257, "tar"},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			filePath := filepath.Join(t.TempDir(), "testfile.bin")

			data := make([]byte, testCase.offset+len(testCase.magic)+64)
			copy(data[testCase.offset:], testCase.magic)
			require.NoError(t, os.WriteFile(filePath, data, 0o600))

			layers, err := unwrapr.Classify(filePath)
			require.NoError(t, err)
			assert.Equal(t, testCase.layers, layers.String())
		})
	}
}

func TestClassifySelfExtractingExe(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	// A real zip stream buried behind a fake stub.
	buf := &bytes.Buffer{}
	buf.Write([]byte("MZ fake stub "))
	writer := zip.NewWriter(buf)
	entry, err := writer.Create("setup.dat")
	require.NoError(t, err)
	_, err = entry.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	sfx := filepath.Join(dir, "installer.exe")
	require.NoError(t, os.WriteFile(sfx, buf.Bytes(), 0o600))

	layers, err := unwrapr.Classify(sfx)
	require.NoError(t, err)
	assert.Equal(t, "zip", layers.String())

	// An exe with no embedded zip is not extractable.
	plain := filepath.Join(dir, "boring.exe")
	require.NoError(t, os.WriteFile(plain, []byte("MZ nothing here"), 0o600))

	_, err = unwrapr.Classify(plain)
	require.ErrorIs(t, err, unwrapr.ErrUnknownArchiveType)
}

func TestClassifyUnknown(t *testing.T) {
	t.Parallel()

	filePath := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("just some text\n"), 0o600))

	_, err := unwrapr.Classify(filePath)
	require.ErrorIs(t, err, unwrapr.ErrUnknownArchiveType)
	assert.False(t, unwrapr.IsArchive(filePath))
}

func TestStripSuffix(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in       string
		out      string
		stripped bool
	}{
		{"report.tar.gz", "report", true},
		{"report.tgz", "report", true},
		{"glibc-2.2.tar.bz2", "glibc-2.2", true},
		{"backup.zip.gz", "backup", true},
		{"installer.exe", "installer", true},
		{"bundle.zip", "bundle", true},
		{"README", "README", false},
		{".gz", ".gz", false},
	}

	for _, testCase := range cases {
		t.Run(testCase.in, func(t *testing.T) {
			t.Parallel()

			out, stripped := unwrapr.StripSuffix(testCase.in)
			assert.Equal(t, testCase.out, out)
			assert.Equal(t, testCase.stripped, stripped)
		})
	}
}
