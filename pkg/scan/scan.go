// Package scan discovers texture sources for the import pipeline.
//
// Inputs may be individual files or directories; directories are walked
// recursively. Files are classified by extension:
//
//	.dds      plain DirectDraw Surface
//	.edds     Enfusion EDDS container (block table, optional LZ4)
//	.dds.zst  zstd-wrapped DDS
//
// Anything else is skipped.
package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Kind identifies how a discovered source must be materialized before
// it can be handed to a converter.
type Kind int

const (
	// SourceDDS is a plain .dds file, usable as-is.
	SourceDDS Kind = iota
	// SourceEDDS is an Enfusion .edds container.
	SourceEDDS
	// SourceZstdDDS is a zstd-compressed .dds.zst file.
	SourceZstdDDS
)

// String returns a short name for the source kind.
func (k Kind) String() string {
	switch k {
	case SourceDDS:
		return "dds"
	case SourceEDDS:
		return "edds"
	case SourceZstdDDS:
		return "dds.zst"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Source is one discovered texture file.
type Source struct {
	Path string
	Kind Kind
}

// Base returns the file name without its texture extension, used to
// derive output names (<base>.png, <base>_alpha.png).
func (s Source) Base() string {
	name := filepath.Base(s.Path)
	switch s.Kind {
	case SourceZstdDDS:
		name = strings.TrimSuffix(name, ".zst")
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Classify reports the source kind for a path, or ok=false when the
// extension is not a recognized texture source.
func Classify(path string) (Kind, bool) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".dds.zst"):
		return SourceZstdDDS, true
	case strings.HasSuffix(lower, ".edds"):
		return SourceEDDS, true
	case strings.HasSuffix(lower, ".dds"):
		return SourceDDS, true
	default:
		return 0, false
	}
}

// Discover expands the given file and directory arguments into a sorted
// list of texture sources. Explicit file arguments with unrecognized
// extensions are an error; unrecognized files inside walked directories
// are silently skipped.
func Discover(inputs []string) ([]Source, error) {
	var sources []Source

	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil {
			return nil, fmt.Errorf("stat input: %w", err)
		}

		if !info.IsDir() {
			kind, ok := Classify(input)
			if !ok {
				return nil, fmt.Errorf("unsupported file type: %s", input)
			}
			sources = append(sources, Source{Path: input, Kind: kind})
			continue
		}

		err = filepath.Walk(input, func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi.IsDir() {
				return nil
			}
			if kind, ok := Classify(path); ok {
				sources = append(sources, Source{Path: path, Kind: kind})
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", input, err)
		}
	}

	sort.Slice(sources, func(i, j int) bool { return sources[i].Path < sources[j].Path })
	return sources, nil
}
