package unwrapr

/* Code to detect archive types by file signatures (magic numbers). */

import (
	"bytes"
	"os"
)

// signature maps a byte pattern at a specific offset to a layer list.
type signature struct {
	// Offset is the byte offset where the magic bytes are expected.
	Offset int
	// Magic is the byte sequence to match at Offset.
	Magic []byte
	// Layers describes the format this signature identifies.
	Layers Layers
}

// maxSignatureRead is the maximum number of bytes to read for signature
// detection. Enough for the tar "ustar" marker at offset 257 and the
// embedded-zip probe in self-extracting executables.
const maxSignatureRead = 0x10000

// signatureTable maps file signatures (magic numbers) to layer lists.
//
//nolint:gochecknoglobals
var signatureTable = []signature{
	// RAR v5 (longer match first).
	{Offset: 0, Magic: []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x01, 0x00}, Layers: Layers{LayerRAR}},
	// RAR v4.
	{Offset: 0, Magic: []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x00}, Layers: Layers{LayerRAR}},
	// AR ("!<arch>\n"); the only ar archives handled here are Debian packages.
	{Offset: 0, Magic: []byte{0x21, 0x3C, 0x61, 0x72, 0x63, 0x68, 0x3E, 0x0A}, Layers: Layers{LayerDeb}},
	// 7-Zip.
	{Offset: 0, Magic: []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}, Layers: Layers{LayerSevenZip}},
	// XZ.
	{Offset: 0, Magic: []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}, Layers: Layers{LayerXZ}},
	// cpio (new ASCII and CRC formats).
	{Offset: 0, Magic: []byte("070701"), Layers: Layers{LayerCpio}},
	{Offset: 0, Magic: []byte("070702"), Layers: Layers{LayerCpio}},
	// ZIP (PK\x03\x04).
	{Offset: 0, Magic: []byte{0x50, 0x4B, 0x03, 0x04}, Layers: Layers{LayerZip}},
	// RPM.
	{Offset: 0, Magic: []byte{0xED, 0xAB, 0xEE, 0xDB}, Layers: Layers{LayerRPM}},
	// Zstandard.
	{Offset: 0, Magic: []byte{0x28, 0xB5, 0x2F, 0xFD}, Layers: Layers{LayerZstd}},
	// LZ4 frame.
	{Offset: 0, Magic: []byte{0x04, 0x22, 0x4D, 0x18}, Layers: Layers{LayerLZ4}},
	// lzip ("LZIP").
	{Offset: 0, Magic: []byte{0x4C, 0x5A, 0x49, 0x50}, Layers: Layers{LayerLzip}},
	// lrzip ("LRZI").
	{Offset: 0, Magic: []byte{0x4C, 0x52, 0x5A, 0x49}, Layers: Layers{LayerLrzip}},
	// Microsoft Cabinet ("MSCF").
	{Offset: 0, Magic: []byte{0x4D, 0x53, 0x43, 0x46}, Layers: Layers{LayerCab}},
	// InstallShield CAB ("ISc(").
	{Offset: 0, Magic: []byte{0x49, 0x53, 0x63, 0x28}, Layers: Layers{LayerShield}},
	// Bzip2 (BZh).
	{Offset: 0, Magic: []byte{0x42, 0x5A, 0x68}, Layers: Layers{LayerBzip2}},
	// LZMA.
	{Offset: 0, Magic: []byte{0x5D, 0x00, 0x00}, Layers: Layers{LayerLZMA}},
	// Gzip.
	{Offset: 0, Magic: []byte{0x1F, 0x8B}, Layers: Layers{LayerGzip}},
	// compress(1) LZW.
	{Offset: 0, Magic: []byte{0x1F, 0x9D}, Layers: Layers{LayerCompress}},
	// ARJ.
	{Offset: 0, Magic: []byte{0x60, 0xEA}, Layers: Layers{LayerARJ}},
	// LZH/LHA ("-lh" at offset 2).
	{Offset: 2, Magic: []byte{0x2D, 0x6C, 0x68}, Layers: Layers{LayerLZH}},
	// POSIX tar ("ustar" at offset 257).
	{Offset: 257, Magic: []byte{0x75, 0x73, 0x74, 0x61, 0x72}, Layers: Layers{LayerTar}},
}

// readHead returns up to maxSignatureRead leading bytes of a file.
// Classification is a read-only probe; any error just means no match.
func readHead(filePath string) []byte {
	file, err := os.Open(filePath)
	if err != nil {
		return nil
	}
	defer file.Close()

	buf := make([]byte, maxSignatureRead)

	n, err := file.Read(buf)
	if n <= 0 && err != nil {
		return nil
	}

	return buf[:n]
}

// sniffSignature reads the first bytes of a file and attempts to match a
// known file signature to determine the layer list. Returns nil when nothing
// matches.
func sniffSignature(filePath string) Layers {
	buf := readHead(filePath)

	for _, sig := range signatureTable {
		end := sig.Offset + len(sig.Magic)
		if end > len(buf) {
			continue
		}

		if bytes.Equal(buf[sig.Offset:end], sig.Magic) {
			return append(Layers{}, sig.Layers...)
		}
	}

	return nil
}

// hasEmbeddedZip probes a self-extracting executable for a zip local-file
// signature anywhere in its head. Good enough to hand the file to unzip.
func hasEmbeddedZip(filePath string) bool {
	buf := readHead(filePath)
	return bytes.Contains(buf, []byte{0x50, 0x4B, 0x03, 0x04})
}
