// Package pipeline orchestrates the DDS import flow: materialize each
// source as plain DDS, probe its format, convert to PNG through texconv
// (or the native fallback), split off alpha channels, route BC5_SNORM
// normal maps through bcdecode, and import the results into the host's
// shelf. Each source is processed independently; one failure never
// aborts the batch.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/kpango/glg"

	"github.com/painterkit/ddsimport/pkg/imaging"
	"github.com/painterkit/ddsimport/pkg/scan"
	"github.com/painterkit/ddsimport/pkg/shelf"
	"github.com/painterkit/ddsimport/pkg/texture"
)

// Converter turns a DDS file into a PNG inside outDir, returning the
// PNG path. Implemented by extrun.Texconv.
type Converter interface {
	Convert(ctx context.Context, input, outDir string) (string, error)
}

// Decoder decodes a BC5_SNORM DDS into an uncompressed DDS with the
// normal-map Z channel reconstructed. Implemented by extrun.BCDecode.
type Decoder interface {
	Decode(ctx context.Context, input, output string) error
}

// Pipeline carries the collaborators of one import run.
type Pipeline struct {
	// Texconv converts DDS to PNG; nil means unconfigured and the
	// native fallback is used directly.
	Texconv Converter
	// BCDecode handles BC5_SNORM inputs; nil means unconfigured and
	// BC5_SNORM sources fail with a clear error.
	BCDecode Decoder
	// Shelf receives the produced PNGs.
	Shelf shelf.Importer
	// Usage is the shelf resource usage for imported images.
	Usage string
	// OutDir receives converted files; empty means next to each source.
	OutDir string
	// ForceBC5 routes every source through bcdecode, regardless of
	// what the probe reports.
	ForceBC5 bool
	// Thumbnails enables webp preview generation for produced PNGs.
	Thumbnails bool
}

// Result is the outcome for one source.
type Result struct {
	Source   scan.Source
	Info     *texture.Info
	Outputs  []string // PNGs produced on disk
	Imported []string // resources handed to the shelf
	Err      error
}

// Summary aggregates a batch.
type Summary struct {
	OK     int
	Failed int
}

// Run processes every source and returns one Result per source.
func (p *Pipeline) Run(ctx context.Context, sources []scan.Source) []Result {
	results := make([]Result, 0, len(sources))
	for _, src := range sources {
		res := p.processOne(ctx, src)
		if res.Err != nil {
			glg.Errorf("failed to process %s: %v", src.Path, res.Err)
		} else {
			glg.Infof("processed %s (%d imported)", src.Path, len(res.Imported))
		}
		results = append(results, res)
	}
	return results
}

// Summarize counts succeeded and failed results.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		if r.Err != nil {
			s.Failed++
		} else {
			s.OK++
		}
	}
	return s
}

func (p *Pipeline) processOne(ctx context.Context, src scan.Source) Result {
	res := Result{Source: src}

	outDir := p.OutDir
	if outDir == "" {
		outDir = filepath.Dir(src.Path)
	}

	ddsPath, err := texture.Materialize(src, outDir)
	if err != nil {
		res.Err = fmt.Errorf("materialize: %w", err)
		return res
	}

	info, err := texture.Probe(ddsPath)
	if err != nil {
		res.Err = err
		return res
	}
	res.Info = info
	glg.Debugf("%s: %dx%d %s", src.Path, info.Width, info.Height, info.FormatName)

	if info.BC5SNorm || p.ForceBC5 {
		p.runBC5(ctx, &res, ddsPath, outDir)
	} else {
		p.runConvert(ctx, &res, ddsPath, outDir)
	}
	if res.Err != nil {
		return res
	}

	if p.Thumbnails {
		for _, out := range res.Outputs {
			thumb := thumbnailPath(out)
			img, err := imaging.DecodeFile(out)
			if err != nil {
				glg.Warnf("thumbnail skipped for %s: %v", out, err)
				continue
			}
			if err := imaging.WriteThumbnail(thumb, img, imaging.DefaultThumbnailSize); err != nil {
				glg.Warnf("thumbnail failed for %s: %v", out, err)
			}
		}
	}

	return res
}

// runConvert is the plain DDS route: texconv (or native decode), then
// alpha splitting, then import.
func (p *Pipeline) runConvert(ctx context.Context, res *Result, ddsPath, outDir string) {
	src := res.Source
	pngPath := filepath.Join(outDir, src.Base()+".png")

	if p.Texconv != nil {
		converted, err := p.Texconv.Convert(ctx, ddsPath, outDir)
		if err != nil {
			glg.Warnf("texconv failed for %s, trying native decode: %v", ddsPath, err)
			if nerr := p.nativeConvert(ddsPath, pngPath); nerr != nil {
				res.Err = fmt.Errorf("convert: %w", err)
				return
			}
		} else {
			pngPath = converted
		}
	} else {
		if err := p.nativeConvert(ddsPath, pngPath); err != nil {
			res.Err = fmt.Errorf("convert: %w", err)
			return
		}
	}
	res.Outputs = append(res.Outputs, pngPath)

	alphaPath := ""
	if res.Info.HasAlpha {
		candidate := filepath.Join(outDir, src.Base()+"_alpha.png")
		extracted, err := imaging.SplitAlphaFile(pngPath, candidate)
		if err != nil {
			res.Err = fmt.Errorf("split alpha: %w", err)
			return
		}
		if extracted {
			alphaPath = candidate
			res.Outputs = append(res.Outputs, candidate)
			glg.Infof("alpha channel extracted to %s", candidate)
		}
	}

	if err := p.importResource(ctx, res, pngPath); err != nil {
		res.Err = err
		return
	}
	// The alpha plane is only imported once its color plane made it in.
	if alphaPath != "" {
		if err := p.importResource(ctx, res, alphaPath); err != nil {
			res.Err = err
			return
		}
	}
}

// runBC5 is the BC5_SNORM route: bcdecode with Z reconstruction, then
// PNG re-encode and import. Normal maps carry no alpha to split.
func (p *Pipeline) runBC5(ctx context.Context, res *Result, ddsPath, outDir string) {
	if p.BCDecode == nil {
		res.Err = fmt.Errorf("%s is BC5_SNORM but bcdecode is not configured", ddsPath)
		return
	}

	src := res.Source
	decodedDDS := filepath.Join(outDir, src.Base()+"_decoded.dds")
	if err := p.BCDecode.Decode(ctx, ddsPath, decodedDDS); err != nil {
		res.Err = err
		return
	}

	img, err := imaging.DecodeFile(decodedDDS)
	if err != nil {
		res.Err = fmt.Errorf("decode bcdecode output: %w", err)
		return
	}

	pngPath := filepath.Join(outDir, src.Base()+".png")
	if err := imaging.WritePNG(pngPath, img); err != nil {
		res.Err = err
		return
	}
	res.Outputs = append(res.Outputs, pngPath)

	if err := p.importResource(ctx, res, pngPath); err != nil {
		res.Err = err
	}
}

func (p *Pipeline) nativeConvert(ddsPath, pngPath string) error {
	img, err := imaging.DecodeDDSNative(ddsPath)
	if err != nil {
		return err
	}
	return imaging.WritePNG(pngPath, img)
}

func (p *Pipeline) importResource(ctx context.Context, res *Result, path string) error {
	if p.Shelf == nil {
		return nil
	}
	if err := p.Shelf.ImportResource(ctx, path, p.Usage, filepath.Base(path)); err != nil {
		return fmt.Errorf("shelf import: %w", err)
	}
	res.Imported = append(res.Imported, path)
	glg.Infof("imported to shelf: %s", path)
	return nil
}

func thumbnailPath(pngPath string) string {
	base := pngPath[:len(pngPath)-len(filepath.Ext(pngPath))]
	return base + "_thumb.webp"
}
