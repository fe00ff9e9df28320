package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/woozymasta/bcn"

	"github.com/painterkit/ddsimport/pkg/imaging"
	"github.com/painterkit/ddsimport/pkg/scan"
	"github.com/painterkit/ddsimport/pkg/shelf"
)

func fourCC(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}

func writeDDSFile(t *testing.T, path string, hdr *bcn.DDSHeader, dx10 *bcn.DDSHeaderDX10, payload []byte) {
	t.Helper()
	var buf bytes.Buffer
	if err := bcn.WriteDDSMagic(&buf); err != nil {
		t.Fatalf("write magic: %v", err)
	}
	if err := bcn.WriteDDSHeader(&buf, hdr); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if dx10 != nil {
		if err := binary.Write(&buf, binary.LittleEndian, dx10); err != nil {
			t.Fatalf("write dx10: %v", err)
		}
	}
	buf.Write(payload)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("write dds: %v", err)
	}
}

func baseHeader(width, height uint32) *bcn.DDSHeader {
	hdr := &bcn.DDSHeader{
		Size:        bcn.DDSHeaderSize,
		Flags:       bcn.DDSFlagCaps | bcn.DDSFlagHeight | bcn.DDSFlagWidth | bcn.DDSFlagPixelFormat,
		Height:      height,
		Width:       width,
		MipMapCount: 1,
		Caps:        bcn.DDSCapsTexture,
	}
	hdr.PixelFormat.Size = bcn.DDSPixelFormatSize
	return hdr
}

// writeDXT5 writes a DXT5 DDS whose payload is ignored by the stubs.
func writeDXT5(t *testing.T, path string, size uint32) {
	hdr := baseHeader(size, size)
	hdr.PixelFormat.Flags = bcn.DDSPFFourCC
	hdr.PixelFormat.FourCC = fourCC('D', 'X', 'T', '5')
	blocks := ((size + 3) / 4) * ((size + 3) / 4)
	writeDDSFile(t, path, hdr, nil, make([]byte, blocks*16))
}

// writeBC5SNorm writes a DX10 BC5_SNORM DDS.
func writeBC5SNorm(t *testing.T, path string, size uint32) {
	hdr := baseHeader(size, size)
	hdr.PixelFormat.Flags = bcn.DDSPFFourCC
	hdr.PixelFormat.FourCC = fourCC('D', 'X', '1', '0')
	dx10 := &bcn.DDSHeaderDX10{DXGIFormat: 84, ResourceDimension: 3, ArraySize: 1}
	blocks := ((size + 3) / 4) * ((size + 3) / 4)
	writeDDSFile(t, path, hdr, dx10, make([]byte, blocks*16))
}

// writeRGBA8 writes a legacy uncompressed RGBA DDS with payload pixels.
func writeRGBA8(t *testing.T, path string, size uint32, payload []byte) {
	hdr := baseHeader(size, size)
	hdr.Flags |= bcn.DDSFlagPitch
	hdr.PitchOrLinearSize = size * 4
	hdr.PixelFormat.Flags = bcn.DDSPFRGB | bcn.DDSPFAlphaPixels
	hdr.PixelFormat.RGBBitCount = 32
	hdr.PixelFormat.RBitMask = 0x000000ff
	hdr.PixelFormat.GBitMask = 0x0000ff00
	hdr.PixelFormat.BBitMask = 0x00ff0000
	hdr.PixelFormat.ABitMask = 0xff000000
	writeDDSFile(t, path, hdr, nil, payload)
}

type stubConverter struct {
	img    image.Image
	err    error
	called int
}

func (s *stubConverter) Convert(_ context.Context, input, outDir string) (string, error) {
	s.called++
	if s.err != nil {
		return "", s.err
	}
	base := filepath.Base(input)
	out := filepath.Join(outDir, base[:len(base)-len(filepath.Ext(base))]+".png")
	if err := imaging.WritePNG(out, s.img); err != nil {
		return "", err
	}
	return out, nil
}

type stubDecoder struct {
	err    error
	called int
}

func (s *stubDecoder) Decode(_ context.Context, _, output string) error {
	s.called++
	if s.err != nil {
		return s.err
	}
	// Emit a 2x2 uncompressed RGBA DDS like bcdecode would.
	var buf bytes.Buffer
	hdr := baseHeader(2, 2)
	hdr.Flags |= bcn.DDSFlagPitch
	hdr.PitchOrLinearSize = 8
	hdr.PixelFormat.Flags = bcn.DDSPFRGB | bcn.DDSPFAlphaPixels
	hdr.PixelFormat.RGBBitCount = 32
	hdr.PixelFormat.RBitMask = 0x000000ff
	hdr.PixelFormat.GBitMask = 0x0000ff00
	hdr.PixelFormat.BBitMask = 0x00ff0000
	hdr.PixelFormat.ABitMask = 0xff000000
	if err := bcn.WriteDDSMagic(&buf); err != nil {
		return err
	}
	if err := bcn.WriteDDSHeader(&buf, hdr); err != nil {
		return err
	}
	pixels := make([]byte, 2*2*4)
	for i := 3; i < len(pixels); i += 4 {
		pixels[i] = 0xFF
	}
	buf.Write(pixels)
	return os.WriteFile(output, buf.Bytes(), 0644)
}

func opaqueImage() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xFF
	}
	return img
}

func transparentImage() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 0x80, A: uint8(x * 60)})
		}
	}
	return img
}

func TestRunPlainDDS(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "rock_d.dds")
	writeDXT5(t, src, 4)

	conv := &stubConverter{img: opaqueImage()}
	importer := &shelf.Dry{}
	p := &Pipeline{Texconv: conv, Shelf: importer, Usage: "texture"}

	results := p.Run(context.Background(), []scan.Source{{Path: src, Kind: scan.SourceDDS}})
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	res := results[0]
	if res.Err != nil {
		t.Fatalf("Unexpected error: %v", res.Err)
	}
	if conv.called != 1 {
		t.Errorf("Expected 1 converter call, got %d", conv.called)
	}
	if len(res.Outputs) != 1 || filepath.Base(res.Outputs[0]) != "rock_d.png" {
		t.Errorf("Unexpected outputs: %v", res.Outputs)
	}
	if len(importer.Imported) != 1 {
		t.Errorf("Expected 1 shelf import, got %v", importer.Imported)
	}
}

func TestRunSplitsAlpha(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "decal.dds")
	writeDXT5(t, src, 4)

	conv := &stubConverter{img: transparentImage()}
	importer := &shelf.Dry{}
	p := &Pipeline{Texconv: conv, Shelf: importer, Usage: "texture"}

	res := p.Run(context.Background(), []scan.Source{{Path: src, Kind: scan.SourceDDS}})[0]
	if res.Err != nil {
		t.Fatalf("Unexpected error: %v", res.Err)
	}
	if len(res.Outputs) != 2 {
		t.Fatalf("Expected color+alpha outputs, got %v", res.Outputs)
	}
	if filepath.Base(res.Outputs[1]) != "decal_alpha.png" {
		t.Errorf("Unexpected alpha path: %s", res.Outputs[1])
	}
	if len(importer.Imported) != 2 {
		t.Fatalf("Expected 2 imports, got %v", importer.Imported)
	}
	// Color before alpha.
	if filepath.Base(importer.Imported[0]) != "decal.png" {
		t.Errorf("Expected color imported first, got %v", importer.Imported)
	}
}

func TestRunBC5Route(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "normal.dds")
	writeBC5SNorm(t, src, 4)

	conv := &stubConverter{img: opaqueImage()}
	dec := &stubDecoder{}
	importer := &shelf.Dry{}
	p := &Pipeline{Texconv: conv, BCDecode: dec, Shelf: importer, Usage: "texture"}

	res := p.Run(context.Background(), []scan.Source{{Path: src, Kind: scan.SourceDDS}})[0]
	if res.Err != nil {
		t.Fatalf("Unexpected error: %v", res.Err)
	}
	if dec.called != 1 {
		t.Errorf("Expected bcdecode call, got %d", dec.called)
	}
	if conv.called != 0 {
		t.Errorf("BC5_SNORM must not reach texconv, got %d calls", conv.called)
	}
	if len(res.Outputs) != 1 || filepath.Base(res.Outputs[0]) != "normal.png" {
		t.Errorf("Unexpected outputs: %v", res.Outputs)
	}
}

func TestRunBC5WithoutDecoder(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "a_normal.dds")
	writeBC5SNorm(t, bad, 4)
	good := filepath.Join(dir, "b_rock.dds")
	writeDXT5(t, good, 4)

	conv := &stubConverter{img: opaqueImage()}
	p := &Pipeline{Texconv: conv, Shelf: &shelf.Dry{}, Usage: "texture"}

	results := p.Run(context.Background(), []scan.Source{
		{Path: bad, Kind: scan.SourceDDS},
		{Path: good, Kind: scan.SourceDDS},
	})

	if results[0].Err == nil {
		t.Error("Expected error for BC5_SNORM without bcdecode")
	}
	if results[1].Err != nil {
		t.Errorf("Batch should continue after failure, got %v", results[1].Err)
	}

	s := Summarize(results)
	if s.OK != 1 || s.Failed != 1 {
		t.Errorf("Expected 1 ok / 1 failed, got %+v", s)
	}
}

func TestRunNativeFallback(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "flat.dds")

	pixels := make([]byte, 4*4*4)
	for i := 0; i < len(pixels); i += 4 {
		pixels[i] = 0x20
		pixels[i+3] = 0xFF
	}
	writeRGBA8(t, src, 4, pixels)

	conv := &stubConverter{err: errors.New("exit status 1")}
	importer := &shelf.Dry{}
	p := &Pipeline{Texconv: conv, Shelf: importer, Usage: "texture"}

	res := p.Run(context.Background(), []scan.Source{{Path: src, Kind: scan.SourceDDS}})[0]
	if res.Err != nil {
		t.Fatalf("Expected native fallback to succeed, got %v", res.Err)
	}
	if len(res.Outputs) != 1 {
		t.Fatalf("Expected one output, got %v", res.Outputs)
	}
	if _, err := os.Stat(res.Outputs[0]); err != nil {
		t.Errorf("Fallback PNG missing: %v", err)
	}
}

func TestRunOutDir(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	src := filepath.Join(srcDir, "rock_d.dds")
	writeDXT5(t, src, 4)

	conv := &stubConverter{img: opaqueImage()}
	p := &Pipeline{Texconv: conv, Shelf: &shelf.Dry{}, Usage: "texture", OutDir: outDir}

	res := p.Run(context.Background(), []scan.Source{{Path: src, Kind: scan.SourceDDS}})[0]
	if res.Err != nil {
		t.Fatalf("Unexpected error: %v", res.Err)
	}
	if filepath.Dir(res.Outputs[0]) != outDir {
		t.Errorf("Expected output in %s, got %s", outDir, res.Outputs[0])
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	if s.OK != 0 || s.Failed != 0 {
		t.Errorf("Expected zero summary, got %+v", s)
	}
}
