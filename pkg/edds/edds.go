// Package edds unwraps Enfusion EDDS containers into plain DDS files.
//
// EDDS is the Arma Reforger / DayZ texture container: a standard DDS
// header followed by a per-mip block table and block bodies ordered
// smallest mip first. Blocks are either stored (COPY) or LZ4
// chunk-stream compressed with a rolling 64 KiB dictionary. Unwrapping
// decompresses every block and rewrites the mip chain in the
// largest-first order plain DDS consumers expect.
package edds

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"
	"github.com/woozymasta/bcn"
)

const (
	// BlockMagicCOPY marks an uncompressed block.
	BlockMagicCOPY = "COPY"
	// BlockMagicLZ4 marks an LZ4 chunk-stream block.
	BlockMagicLZ4 = "LZ4 "

	// ChunkSize is the Enfusion LZ4 chunk size.
	ChunkSize = 64 * 1024
)

var (
	// ErrUnknownFormat indicates the DDS pixel format is not supported.
	ErrUnknownFormat = errors.New("unknown texture format")
	// ErrBlockTable indicates a malformed block table.
	ErrBlockTable = errors.New("invalid block table")
	// ErrBlockBody indicates a malformed or truncated block body.
	ErrBlockBody = errors.New("invalid block body")
	// ErrChunkStream indicates a malformed LZ4 chunk stream.
	ErrChunkStream = errors.New("invalid LZ4 chunk stream")
	// ErrSizeMismatch indicates decompressed data has the wrong length.
	ErrSizeMismatch = errors.New("decompressed size mismatch")
)

type blockHeader struct {
	magic string
	size  int32
}

// UnwrapFile reads the EDDS container at src and writes a plain DDS to dst.
func UnwrapFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open edds: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create dds: %w", err)
	}

	if err := Unwrap(in, out); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("unwrap %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close dds: %w", err)
	}
	return nil
}

// Unwrap reads an EDDS container from r and writes the plain DDS to w.
func Unwrap(r io.Reader, w io.Writer) error {
	header, err := bcn.ReadDDSHeader(r)
	if err != nil {
		return fmt.Errorf("read dds header: %w", err)
	}
	dx10, err := bcn.ReadDDSHeaderDX10(r, header)
	if err != nil {
		return fmt.Errorf("read dx10 header: %w", err)
	}

	format := detectFormat(header, dx10)
	if format == bcn.FormatUnknown {
		return ErrUnknownFormat
	}

	mipCount := uint32(1)
	if (header.Caps&bcn.DDSCapsMipmap) != 0 && header.MipMapCount > 0 {
		mipCount = header.MipMapCount
	}

	table, err := readBlockTable(r, mipCount)
	if err != nil {
		return err
	}

	// Bodies are stored smallest mip first; table index i holds mip
	// level mipCount-1-i. Decompress everything, then emit reversed.
	mips := make([][]byte, mipCount)
	for i := uint32(0); i < mipCount; i++ {
		level := int(mipCount - 1 - i)
		expected := expectedDataLength(format, mipDimension(int(header.Width), level), mipDimension(int(header.Height), level))
		if expected <= 0 {
			return fmt.Errorf("%w: mip %d", ErrUnknownFormat, level)
		}

		body := make([]byte, table[i].size)
		if _, err := io.ReadFull(r, body); err != nil {
			return fmt.Errorf("%w: mip %d: %v", ErrBlockBody, level, err)
		}

		data, err := decompressBlock(table[i].magic, body, expected)
		if err != nil {
			return fmt.Errorf("mip %d: %w", level, err)
		}
		mips[level] = data
	}

	header.Reserved1 = [11]uint32{} // drop the ENF1 marker
	if err := writeDDS(w, header, dx10, mips); err != nil {
		return err
	}
	return nil
}

func readBlockTable(r io.Reader, mipCount uint32) ([]blockHeader, error) {
	table := make([]blockHeader, 0, mipCount)
	var magic [4]byte

	for i := uint32(0); i < mipCount; i++ {
		if _, err := io.ReadFull(r, magic[:]); err != nil {
			return nil, fmt.Errorf("%w: entry %d magic: %v", ErrBlockTable, i, err)
		}
		m := string(magic[:])
		if m != BlockMagicCOPY && m != BlockMagicLZ4 {
			return nil, fmt.Errorf("%w: entry %d magic %q", ErrBlockTable, i, m)
		}

		var size int32
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, fmt.Errorf("%w: entry %d size: %v", ErrBlockTable, i, err)
		}
		if size < 0 {
			return nil, fmt.Errorf("%w: entry %d size %d", ErrBlockTable, i, size)
		}

		table = append(table, blockHeader{magic: m, size: size})
	}
	return table, nil
}

// decompressBlock inflates one block body into exactly expected bytes.
func decompressBlock(magic string, body []byte, expected int) ([]byte, error) {
	if magic == BlockMagicCOPY {
		if len(body) != expected {
			return nil, fmt.Errorf("%w: COPY block has %d bytes, want %d", ErrSizeMismatch, len(body), expected)
		}
		return body, nil
	}

	// LZ4 bodies carry a little-endian uncompressed size before the
	// chunk stream.
	if len(body) < 8 {
		return nil, fmt.Errorf("%w: body too short (%d bytes)", ErrChunkStream, len(body))
	}
	target := int(binary.LittleEndian.Uint32(body[:4]))
	if target != expected {
		return nil, fmt.Errorf("%w: stream claims %d bytes, want %d", ErrSizeMismatch, target, expected)
	}

	return decompressChunkStream(body[4:], expected)
}

// decompressChunkStream decodes an Enfusion LZ4 chunk stream: a sequence
// of [3-byte compressed size][1 flag byte][compressed chunk], flag 0x80
// on the final chunk. Each chunk decodes against a dictionary of the
// previous 64 KiB of output.
func decompressChunkStream(stream []byte, targetSize int) ([]byte, error) {
	target := make([]byte, targetSize)
	outIdx := 0
	pos := 0

	for {
		if pos+4 > len(stream) {
			return nil, fmt.Errorf("%w: truncated chunk header", ErrChunkStream)
		}
		cSize := int(stream[pos]) | int(stream[pos+1])<<8 | int(stream[pos+2])<<16
		flags := stream[pos+3]
		pos += 4

		if (flags &^ 0x80) != 0 {
			return nil, fmt.Errorf("%w: unknown flags 0x%02x", ErrChunkStream, flags)
		}
		if cSize <= 0 || pos+cSize > len(stream) {
			return nil, fmt.Errorf("%w: chunk size %d exceeds stream", ErrChunkStream, cSize)
		}

		remaining := targetSize - outIdx
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: output overrun", ErrChunkStream)
		}
		want := ChunkSize
		if want > remaining {
			want = remaining
		}

		var dict []byte
		if outIdx > 0 {
			dictStart := outIdx - ChunkSize
			if dictStart < 0 {
				dictStart = 0
			}
			dict = target[dictStart:outIdx]
		}

		n, err := lz4.UncompressBlockWithDict(stream[pos:pos+cSize], target[outIdx:outIdx+want], dict)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrChunkStream, err)
		}
		outIdx += n
		pos += cSize

		if (flags & 0x80) != 0 {
			break
		}
	}

	if outIdx != targetSize {
		return nil, fmt.Errorf("%w: decoded %d bytes, want %d", ErrSizeMismatch, outIdx, targetSize)
	}
	if pos != len(stream) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrChunkStream, len(stream)-pos)
	}
	return target, nil
}

func writeDDS(w io.Writer, header *bcn.DDSHeader, dx10 *bcn.DDSHeaderDX10, mips [][]byte) error {
	if err := bcn.WriteDDSMagic(w); err != nil {
		return fmt.Errorf("write dds magic: %w", err)
	}
	if err := bcn.WriteDDSHeader(w, header); err != nil {
		return fmt.Errorf("write dds header: %w", err)
	}
	if dx10 != nil {
		if err := binary.Write(w, binary.LittleEndian, dx10); err != nil {
			return fmt.Errorf("write dx10 header: %w", err)
		}
	}
	for level, mip := range mips {
		if _, err := w.Write(mip); err != nil {
			return fmt.Errorf("write mip %d: %w", level, err)
		}
	}
	return nil
}

func detectFormat(header *bcn.DDSHeader, dx10 *bcn.DDSHeaderDX10) bcn.Format {
	if dx10 != nil {
		switch dx10.DXGIFormat {
		case 71, 72:
			return bcn.FormatDXT1
		case 74, 75:
			return bcn.FormatDXT3
		case 77, 78:
			return bcn.FormatDXT5
		case 80, 81:
			return bcn.FormatBC4
		case 83, 84:
			return bcn.FormatBC5
		case 28, 29:
			return bcn.FormatRGBA8
		case 87, 91:
			return bcn.FormatBGRA8
		default:
			return bcn.FormatUnknown
		}
	}

	pf := header.PixelFormat
	if (pf.Flags & bcn.DDSPFFourCC) != 0 {
		switch fourCCString(pf.FourCC) {
		case "DXT1":
			return bcn.FormatDXT1
		case "DXT2", "DXT3":
			return bcn.FormatDXT3
		case "DXT4", "DXT5":
			return bcn.FormatDXT5
		case "ATI1", "BC4U", "BC4S":
			return bcn.FormatBC4
		case "ATI2", "BC5U", "BC5S":
			return bcn.FormatBC5
		default:
			return bcn.FormatUnknown
		}
	}

	if (pf.Flags&bcn.DDSPFRGB) != 0 && pf.RGBBitCount == 32 {
		if pf.RBitMask == 0x000000ff {
			return bcn.FormatRGBA8
		}
		if pf.RBitMask == 0x00ff0000 {
			return bcn.FormatBGRA8
		}
	}

	return bcn.FormatUnknown
}

func expectedDataLength(format bcn.Format, width, height int) int {
	blocksW := (width + 3) / 4
	blocksH := (height + 3) / 4
	switch format {
	case bcn.FormatDXT1, bcn.FormatBC4:
		return blocksW * blocksH * 8
	case bcn.FormatDXT3, bcn.FormatDXT5, bcn.FormatBC5:
		return blocksW * blocksH * 16
	case bcn.FormatRGBA8, bcn.FormatBGRA8:
		return width * height * 4
	default:
		return -1
	}
}

func mipDimension(base, level int) int {
	dim := base >> level
	if dim < 1 {
		return 1
	}
	return dim
}

func fourCCString(value uint32) string {
	return string([]byte{
		byte(value),
		byte(value >> 8),
		byte(value >> 16),
		byte(value >> 24),
	})
}
