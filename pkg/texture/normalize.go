package texture

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/DataDog/zstd"

	"github.com/painterkit/ddsimport/pkg/edds"
	"github.com/painterkit/ddsimport/pkg/scan"
)

// Materialize makes the source available as a plain .dds file and
// returns its path. Plain DDS sources are returned as-is; wrapped
// sources are written into workDir.
func Materialize(src scan.Source, workDir string) (string, error) {
	switch src.Kind {
	case scan.SourceDDS:
		return src.Path, nil

	case scan.SourceZstdDDS:
		out := filepath.Join(workDir, src.Base()+".dds")
		if err := decompressZstd(src.Path, out); err != nil {
			return "", err
		}
		return out, nil

	case scan.SourceEDDS:
		out := filepath.Join(workDir, src.Base()+".dds")
		if err := edds.UnwrapFile(src.Path, out); err != nil {
			return "", err
		}
		return out, nil

	default:
		return "", fmt.Errorf("unsupported source kind: %s", src.Kind)
	}
}

func decompressZstd(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	zr := zstd.NewReader(in)
	defer zr.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, zr); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("decompress %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}
