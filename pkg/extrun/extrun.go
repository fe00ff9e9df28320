// Package extrun invokes the external native converters the importer
// wraps: texconv (DirectXTex) for DDS to PNG conversion and bcdecode
// (fo76utils) for BC5_SNORM decoding with normal-map Z reconstruction.
// Both are opaque collaborators; this package only builds argument
// vectors, runs the processes, and surfaces their output on failure.
package extrun

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Texconv wraps the DirectXTex texconv executable.
type Texconv struct {
	Path string
}

// Args returns the texconv argument vector for converting input to a
// PNG inside outDir.
func (t *Texconv) Args(input, outDir string) []string {
	return []string{"-ft", "png", "-o", outDir, "-y", input}
}

// Convert runs texconv on input, producing <base>.png in outDir, and
// returns the produced PNG path.
func (t *Texconv) Convert(ctx context.Context, input, outDir string) (string, error) {
	if err := run(ctx, t.Path, t.Args(input, outDir)); err != nil {
		return "", fmt.Errorf("texconv %s: %w", input, err)
	}

	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(outDir, base+".png"), nil
}

// BCDecode wraps the fo76utils bcdecode executable.
type BCDecode struct {
	Path string
}

// Args returns the bcdecode argument vector: input, output, face 0,
// mode 2 (reconstruct normal-map Z).
func (b *BCDecode) Args(input, output string) []string {
	return []string{input, output, "0", "2"}
}

// Decode runs bcdecode, writing an uncompressed DDS to output.
func (b *BCDecode) Decode(ctx context.Context, input, output string) error {
	if err := run(ctx, b.Path, b.Args(input, output)); err != nil {
		return fmt.Errorf("bcdecode %s: %w", input, err)
	}
	return nil
}

func run(ctx context.Context, path string, args []string) error {
	cmd := exec.CommandContext(ctx, path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w%s", err, toolOutput(&stdout, &stderr))
	}
	return nil
}

// toolOutput formats captured output for inclusion in an error message.
func toolOutput(stdout, stderr *bytes.Buffer) string {
	var b strings.Builder
	if s := strings.TrimSpace(stderr.String()); s != "" {
		b.WriteString(": ")
		b.WriteString(s)
	}
	if s := strings.TrimSpace(stdout.String()); s != "" {
		b.WriteString(": ")
		b.WriteString(s)
	}
	return b.String()
}
