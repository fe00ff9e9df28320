package imaging

import (
	"fmt"
	"image"
	"io"
	"os"

	"github.com/woozymasta/bcn"

	"github.com/painterkit/ddsimport/pkg/texture"
)

// DecodeDDSNative decodes the largest mip of a DDS file with the bcn
// library. It covers BC1-BC5 and uncompressed RGBA/BGRA; BC6H and BC7
// still require the external converter.
func DecodeDDSNative(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dds: %w", err)
	}
	defer f.Close()

	info, err := texture.ProbeReader(f)
	if err != nil {
		return nil, err
	}
	if info.Format == bcn.FormatUnknown {
		return nil, fmt.Errorf("no native decoder for %s", info.FormatName)
	}

	size := texture.MipDataLength(info.Format, int(info.Width), int(info.Height))
	if size <= 0 {
		return nil, fmt.Errorf("no native decoder for %s", info.FormatName)
	}

	// The largest mip follows the header directly in a plain DDS.
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, fmt.Errorf("read mip data: %w", err)
	}

	img, err := bcn.DecodeImageWithOptions(data, int(info.Width), int(info.Height), info.Format, nil)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", info.FormatName, err)
	}
	return img, nil
}
