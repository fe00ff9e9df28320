// Package main provides the ddsimport command-line tool: it converts
// DDS textures to PNG with the external texconv tool, reconstructs
// BC5_SNORM normal maps with bcdecode, and imports the results into a
// running Substance Painter session's shelf.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/kpango/glg"

	"github.com/painterkit/ddsimport/pkg/config"
	"github.com/painterkit/ddsimport/pkg/extrun"
	"github.com/painterkit/ddsimport/pkg/pipeline"
	"github.com/painterkit/ddsimport/pkg/scan"
	"github.com/painterkit/ddsimport/pkg/shelf"
	"github.com/painterkit/ddsimport/pkg/texture"
)

var (
	mode         string
	outputDir    string
	configPath   string
	texconvPath  string
	bcdecodePath string
	endpoint     string
	usage        string
	dryRun       bool
	thumbnails   bool
)

func init() {
	flag.StringVar(&mode, "mode", "import", "Operation mode: import, bc5, probe, configure")
	flag.StringVar(&outputDir, "out", "", "Output directory for converted files (default: next to each input)")
	flag.StringVar(&configPath, "config", "", "Config file path (default: per-user config dir)")
	flag.StringVar(&texconvPath, "texconv", "", "Path to the texconv executable")
	flag.StringVar(&bcdecodePath, "bcdecode", "", "Path to the bcdecode executable")
	flag.StringVar(&endpoint, "endpoint", "", "Host remote scripting endpoint URL")
	flag.StringVar(&usage, "usage", "", "Shelf resource usage for imported textures")
	flag.BoolVar(&dryRun, "dry-run", false, "Convert only; skip shelf imports")
	flag.BoolVar(&thumbnails, "thumbnails", false, "Write webp preview thumbnails next to converted PNGs")
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		glg.Errorf("%v", err)
		os.Exit(1)
	}
}

func run() error {
	if configPath == "" {
		path, err := config.DefaultPath()
		if err != nil {
			return err
		}
		configPath = path
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlagOverrides(cfg)

	switch mode {
	case "configure":
		return runConfigure(cfg)
	case "probe":
		return runProbe(flag.Args())
	case "import":
		return runImport(cfg, flag.Args(), false)
	case "bc5":
		return runImport(cfg, flag.Args(), true)
	default:
		return fmt.Errorf("unknown mode: %s", mode)
	}
}

func applyFlagOverrides(cfg *config.Config) {
	if texconvPath != "" {
		cfg.TexconvPath = texconvPath
	}
	if bcdecodePath != "" {
		cfg.BCDecodePath = bcdecodePath
	}
	if endpoint != "" {
		cfg.Endpoint = endpoint
	}
	if usage != "" {
		cfg.Usage = usage
	}
}

func runConfigure(cfg *config.Config) error {
	if err := config.Save(configPath, cfg); err != nil {
		return err
	}
	glg.Infof("config written to %s", configPath)
	glg.Infof("texconv: %s", orUnset(cfg.TexconvPath))
	glg.Infof("bcdecode: %s", orUnset(cfg.BCDecodePath))
	glg.Infof("endpoint: %s", cfg.Endpoint)
	return nil
}

func runProbe(inputs []string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("probe mode requires at least one input")
	}

	sources, err := scan.Discover(inputs)
	if err != nil {
		return err
	}

	for _, src := range sources {
		if src.Kind != scan.SourceDDS {
			glg.Infof("%s: %s container (probe after import)", src.Path, src.Kind)
			continue
		}
		info, err := texture.Probe(src.Path)
		if err != nil {
			glg.Errorf("%s: %v", src.Path, err)
			continue
		}
		fmt.Printf("%s: %dx%d, %d mips, %s", src.Path, info.Width, info.Height, info.MipLevels, info.FormatName)
		if info.HasAlpha {
			fmt.Printf(", alpha")
		}
		if info.BC5SNorm {
			fmt.Printf(", needs bcdecode")
		}
		fmt.Println()
	}
	return nil
}

func runImport(cfg *config.Config, inputs []string, forceBC5 bool) error {
	if len(inputs) == 0 {
		return fmt.Errorf("no input files or directories given")
	}

	sources, err := scan.Discover(inputs)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		glg.Info("no texture sources found")
		return nil
	}
	glg.Infof("found %d texture source(s)", len(sources))

	p := &pipeline.Pipeline{
		Usage:      cfg.Usage,
		OutDir:     outputDir,
		ForceBC5:   forceBC5,
		Thumbnails: thumbnails,
	}

	if err := config.ValidateTool("texconv", cfg.TexconvPath); err == nil {
		p.Texconv = &extrun.Texconv{Path: cfg.TexconvPath}
	} else {
		glg.Warnf("%v; using native decode (BC6H/BC7 unsupported)", err)
	}

	if err := config.ValidateTool("bcdecode", cfg.BCDecodePath); err == nil {
		p.BCDecode = &extrun.BCDecode{Path: cfg.BCDecodePath}
	} else if forceBC5 {
		return err
	}

	ctx := context.Background()

	if dryRun {
		p.Shelf = &shelf.Dry{}
		glg.Info("dry run: shelf imports disabled")
	} else {
		client := shelf.NewClient(cfg.Endpoint)
		if err := client.Ping(ctx); err != nil {
			return fmt.Errorf("%w (is the host running with remote scripting enabled? use -dry-run to convert without importing)", err)
		}
		p.Shelf = client
	}

	results := p.Run(ctx, sources)
	s := pipeline.Summarize(results)
	glg.Infof("done: %d converted, %d failed", s.OK, s.Failed)

	if s.OK == 0 && s.Failed > 0 {
		return fmt.Errorf("all %d source(s) failed", s.Failed)
	}
	return nil
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
