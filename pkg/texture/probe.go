// Package texture inspects DDS files and materializes wrapped texture
// sources as plain DDS for the external converters.
//
// The probe only reads headers; block data is never decompressed here.
// Pixel-level decoding stays with texconv, bcdecode, or the bcn library.
package texture

import (
	"fmt"
	"io"
	"os"

	"github.com/woozymasta/bcn"
)

// DXGI_FORMAT values the importer cares about.
const (
	DXGI_FORMAT_BC1_UNORM           = 71
	DXGI_FORMAT_BC1_UNORM_SRGB      = 72
	DXGI_FORMAT_BC2_UNORM           = 74
	DXGI_FORMAT_BC2_UNORM_SRGB      = 75
	DXGI_FORMAT_BC3_UNORM           = 77
	DXGI_FORMAT_BC3_UNORM_SRGB      = 78
	DXGI_FORMAT_BC4_UNORM           = 80
	DXGI_FORMAT_BC4_SNORM           = 81
	DXGI_FORMAT_BC5_UNORM           = 83
	DXGI_FORMAT_BC5_SNORM           = 84
	DXGI_FORMAT_BC6H_UF16           = 95
	DXGI_FORMAT_BC6H_SF16           = 96
	DXGI_FORMAT_BC7_UNORM           = 98
	DXGI_FORMAT_BC7_UNORM_SRGB      = 99
	DXGI_FORMAT_R8G8B8A8_UNORM      = 28
	DXGI_FORMAT_R8G8B8A8_UNORM_SRGB = 29
	DXGI_FORMAT_B8G8R8A8_UNORM      = 87
	DXGI_FORMAT_B8G8R8A8_UNORM_SRGB = 91
)

// Info describes a probed DDS file.
type Info struct {
	Width      uint32
	Height     uint32
	MipLevels  uint32
	DXGIFormat uint32 // 0 for legacy files without a DX10 header
	FourCC     string // empty when the pixel format is not FourCC-coded
	Format     bcn.Format
	FormatName string
	HasAlpha   bool // pixel format can carry an alpha channel
	BC5SNorm   bool // BC5_SNORM: needs the bcdecode route
}

// Probe reads the DDS header of the file at path.
func Probe(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dds: %w", err)
	}
	defer f.Close()

	info, err := ProbeReader(f)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}
	return info, nil
}

// ProbeReader reads a DDS header (and DX10 extension when present) from r.
func ProbeReader(r io.Reader) (*Info, error) {
	header, err := bcn.ReadDDSHeader(r)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	dx10, err := bcn.ReadDDSHeaderDX10(r, header)
	if err != nil {
		return nil, fmt.Errorf("read dx10 header: %w", err)
	}

	info := &Info{
		Width:     header.Width,
		Height:    header.Height,
		MipLevels: header.MipMapCount,
	}
	if info.MipLevels == 0 {
		info.MipLevels = 1
	}

	if (header.PixelFormat.Flags & bcn.DDSPFFourCC) != 0 {
		info.FourCC = fourCCString(header.PixelFormat.FourCC)
	}

	if dx10 != nil {
		info.DXGIFormat = dx10.DXGIFormat
		info.Format = formatFromDXGI(dx10.DXGIFormat)
		info.FormatName = FormatName(dx10.DXGIFormat)
		info.HasAlpha = dxgiHasAlpha(dx10.DXGIFormat)
		info.BC5SNorm = dx10.DXGIFormat == DXGI_FORMAT_BC5_SNORM
		return info, nil
	}

	info.Format, info.FormatName = legacyFormat(header)
	info.HasAlpha = legacyHasAlpha(header)
	info.BC5SNorm = info.FourCC == "BC5S"
	return info, nil
}

// FormatName returns a human-readable name for a DXGI_FORMAT value.
func FormatName(format uint32) string {
	switch format {
	case DXGI_FORMAT_BC1_UNORM:
		return "BC1_UNORM"
	case DXGI_FORMAT_BC1_UNORM_SRGB:
		return "BC1_UNORM_SRGB"
	case DXGI_FORMAT_BC2_UNORM:
		return "BC2_UNORM"
	case DXGI_FORMAT_BC2_UNORM_SRGB:
		return "BC2_UNORM_SRGB"
	case DXGI_FORMAT_BC3_UNORM:
		return "BC3_UNORM"
	case DXGI_FORMAT_BC3_UNORM_SRGB:
		return "BC3_UNORM_SRGB"
	case DXGI_FORMAT_BC4_UNORM:
		return "BC4_UNORM"
	case DXGI_FORMAT_BC4_SNORM:
		return "BC4_SNORM"
	case DXGI_FORMAT_BC5_UNORM:
		return "BC5_UNORM"
	case DXGI_FORMAT_BC5_SNORM:
		return "BC5_SNORM"
	case DXGI_FORMAT_BC6H_UF16:
		return "BC6H_UF16"
	case DXGI_FORMAT_BC6H_SF16:
		return "BC6H_SF16"
	case DXGI_FORMAT_BC7_UNORM:
		return "BC7_UNORM"
	case DXGI_FORMAT_BC7_UNORM_SRGB:
		return "BC7_UNORM_SRGB"
	case DXGI_FORMAT_R8G8B8A8_UNORM:
		return "R8G8B8A8_UNORM"
	case DXGI_FORMAT_R8G8B8A8_UNORM_SRGB:
		return "R8G8B8A8_UNORM_SRGB"
	case DXGI_FORMAT_B8G8R8A8_UNORM:
		return "B8G8R8A8_UNORM"
	case DXGI_FORMAT_B8G8R8A8_UNORM_SRGB:
		return "B8G8R8A8_UNORM_SRGB"
	default:
		return fmt.Sprintf("UNKNOWN(0x%x)", format)
	}
}

// MipDataLength returns the byte length of one mip level's block data,
// or -1 for formats whose layout is unknown here.
func MipDataLength(format bcn.Format, width, height int) int {
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

func formatFromDXGI(format uint32) bcn.Format {
	switch format {
	case DXGI_FORMAT_BC1_UNORM, DXGI_FORMAT_BC1_UNORM_SRGB:
		return bcn.FormatDXT1
	case DXGI_FORMAT_BC2_UNORM, DXGI_FORMAT_BC2_UNORM_SRGB:
		return bcn.FormatDXT3
	case DXGI_FORMAT_BC3_UNORM, DXGI_FORMAT_BC3_UNORM_SRGB:
		return bcn.FormatDXT5
	case DXGI_FORMAT_BC4_UNORM, DXGI_FORMAT_BC4_SNORM:
		return bcn.FormatBC4
	case DXGI_FORMAT_BC5_UNORM, DXGI_FORMAT_BC5_SNORM:
		return bcn.FormatBC5
	case DXGI_FORMAT_R8G8B8A8_UNORM, DXGI_FORMAT_R8G8B8A8_UNORM_SRGB:
		return bcn.FormatRGBA8
	case DXGI_FORMAT_B8G8R8A8_UNORM, DXGI_FORMAT_B8G8R8A8_UNORM_SRGB:
		return bcn.FormatBGRA8
	default:
		return bcn.FormatUnknown
	}
}

func dxgiHasAlpha(format uint32) bool {
	switch format {
	case DXGI_FORMAT_BC1_UNORM, DXGI_FORMAT_BC1_UNORM_SRGB,
		DXGI_FORMAT_BC2_UNORM, DXGI_FORMAT_BC2_UNORM_SRGB,
		DXGI_FORMAT_BC3_UNORM, DXGI_FORMAT_BC3_UNORM_SRGB,
		DXGI_FORMAT_BC7_UNORM, DXGI_FORMAT_BC7_UNORM_SRGB,
		DXGI_FORMAT_R8G8B8A8_UNORM, DXGI_FORMAT_R8G8B8A8_UNORM_SRGB,
		DXGI_FORMAT_B8G8R8A8_UNORM, DXGI_FORMAT_B8G8R8A8_UNORM_SRGB:
		return true
	default:
		return false
	}
}

func legacyFormat(header *bcn.DDSHeader) (bcn.Format, string) {
	pf := header.PixelFormat

	if (pf.Flags & bcn.DDSPFFourCC) != 0 {
		fourCC := fourCCString(pf.FourCC)
		switch fourCC {
		case "DXT1":
			return bcn.FormatDXT1, "BC1 (DXT1)"
		case "DXT2", "DXT3":
			return bcn.FormatDXT3, "BC2 (" + fourCC + ")"
		case "DXT4", "DXT5":
			return bcn.FormatDXT5, "BC3 (" + fourCC + ")"
		case "ATI1", "BC4U", "BC4S":
			return bcn.FormatBC4, "BC4 (" + fourCC + ")"
		case "ATI2", "BC5U", "BC5S":
			return bcn.FormatBC5, "BC5 (" + fourCC + ")"
		default:
			return bcn.FormatUnknown, fmt.Sprintf("FOURCC %q", fourCC)
		}
	}

	if (pf.Flags&bcn.DDSPFRGB) != 0 && pf.RGBBitCount == 32 {
		if pf.RBitMask == 0x000000ff && pf.BBitMask == 0x00ff0000 {
			return bcn.FormatRGBA8, "RGBA8"
		}
		if pf.RBitMask == 0x00ff0000 && pf.BBitMask == 0x000000ff {
			return bcn.FormatBGRA8, "BGRA8"
		}
	}

	if (pf.Flags&bcn.DDSPFLuminance) != 0 && pf.RGBBitCount == 8 {
		return bcn.FormatUnknown, "LUMINANCE8"
	}

	return bcn.FormatUnknown, "UNKNOWN"
}

func legacyHasAlpha(header *bcn.DDSHeader) bool {
	pf := header.PixelFormat
	if (pf.Flags & bcn.DDSPFFourCC) != 0 {
		switch fourCCString(pf.FourCC) {
		case "DXT1", "DXT2", "DXT3", "DXT4", "DXT5":
			return true
		}
		return false
	}
	return (pf.Flags & bcn.DDSPFAlphaPixels) != 0
}

func fourCCString(value uint32) string {
	return string([]byte{
		byte(value),
		byte(value >> 8),
		byte(value >> 16),
		byte(value >> 24),
	})
}
