package cli

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSourcePNG(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 96, 96))
	for y := 0; y < 96; y++ {
		for x := 0; x < 96; x++ {
			c := color.RGBA{R: 250, G: 250, B: 250, A: 255}
			if x >= 24 && x < 72 && y >= 24 && y < 72 {
				c = color.RGBA{R: 20, G: 40, B: 90, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	path := filepath.Join(dir, "logo.png")
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode source: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestRenderToFile(t *testing.T) {
	dir := t.TempDir()
	src := writeSourcePNG(t, dir)
	dest := filepath.Join(dir, "out.png")

	if _, err := execute(t, "render", "--size", "20", "--spread", "5", "-o", dest, src); err != nil {
		t.Fatalf("render: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if w, h := decodeSize(t, data); w != 20 || h != 20 {
		t.Fatalf("expected 20x20, got %dx%d", w, h)
	}
}

func TestRenderDefaultOutputPath(t *testing.T) {
	dir := t.TempDir()
	src := writeSourcePNG(t, dir)

	if _, err := execute(t, "render", "--color-mode", "palette", "--palette", "ocean", src); err != nil {
		t.Fatalf("render: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "logo.icon.png")); err != nil {
		t.Fatalf("expected default output next to source: %v", err)
	}
}

func TestRenderToStdout(t *testing.T) {
	src := writeSourcePNG(t, t.TempDir())

	out, err := execute(t, "render", "--cutoff", "0", "--revert", "-o", "-", src)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if w, h := decodeSize(t, []byte(out)); w != 32 || h != 32 {
		t.Fatalf("expected default 32x32, got %dx%d", w, h)
	}
}

func TestRenderDebugDir(t *testing.T) {
	dir := t.TempDir()
	src := writeSourcePNG(t, dir)
	debug := filepath.Join(dir, "stages")

	if _, err := execute(t, "render", "--debug-dir", debug, "-o", filepath.Join(dir, "icon.png"), src); err != nil {
		t.Fatalf("render: %v", err)
	}
	entries, err := os.ReadDir(debug)
	if err != nil {
		t.Fatalf("read debug dir: %v", err)
	}
	if len(entries) != 7 {
		t.Fatalf("expected 7 stage images, got %d", len(entries))
	}
	data, err := os.ReadFile(filepath.Join(debug, "4-mask.png"))
	if err != nil {
		t.Fatalf("read mask: %v", err)
	}
	if w, h := decodeSize(t, data); w != 96 || h != 96 {
		t.Fatalf("stage images should keep source size, got %dx%d", w, h)
	}

	plain := filepath.Join(dir, "plain.png")
	if _, err := execute(t, "render", "-o", plain, src); err != nil {
		t.Fatalf("render without debug dir: %v", err)
	}
	withDebug, err := os.ReadFile(filepath.Join(dir, "icon.png"))
	if err != nil {
		t.Fatalf("read icon: %v", err)
	}
	without, err := os.ReadFile(plain)
	if err != nil {
		t.Fatalf("read plain icon: %v", err)
	}
	if !bytes.Equal(withDebug, without) {
		t.Fatal("debug dump changed the rendered icon")
	}
}

func TestRenderRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	src := writeSourcePNG(t, dir)

	cases := map[string][]string{
		"even spread":    {"render", "--spread", "4", src},
		"bad percentile": {"render", "--binarize", "140", src},
		"bad format":     {"render", "--format", "gif", src},
		"bad palette":    {"render", "--color-mode", "palette", "--palette", "nope", src},
		"missing file":   {"render", filepath.Join(dir, "missing.png")},
		"no args":        {"render"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := execute(t, args...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestPalettesListsBuiltins(t *testing.T) {
	out, err := execute(t, "palettes")
	if err != nil {
		t.Fatalf("palettes: %v", err)
	}
	for _, name := range []string{"ember", "forest", "ink", "mono", "ocean"} {
		if !strings.Contains(out, name) {
			t.Fatalf("expected %s in output:\n%s", name, out)
		}
	}
	if !strings.Contains(out, "#ffffff #000000") {
		t.Fatalf("expected mono ramp hex values in output:\n%s", out)
	}
}
