package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/fogleman/gg"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/ironsheep/hough-circles-mcp/internal/detection"
)

func writeDisc(t *testing.T, dir, name string, cx, cy, r float64) string {
	t.Helper()
	dc := gg.NewContext(128, 128)
	dc.SetColor(color.Black)
	dc.Clear()
	dc.SetColor(color.White)
	dc.DrawCircle(cx+0.5, cy+0.5, r)
	dc.Fill()

	path := filepath.Join(dir, name)
	require.NoError(t, imgio.Save(path, dc.Image(), imgio.PNGEncoder()))
	return path
}

func discOptions(dir string) detectOptions {
	return detectOptions{
		params: detection.DefaultParams().
			WithRadiusLimits(15, 40).
			WithCenterThresh(20).
			WithCircleProbaThresh(0.3),
		nbCircles:  -1,
		overlayDir: filepath.Join(dir, "overlays"),
		edgesDir:   filepath.Join(dir, "edges"),
		jobs:       2,
	}
}

func TestRunDetect(t *testing.T) {
	dir := t.TempDir()
	first := writeDisc(t, dir, "first.png", 60, 64, 25)
	second := writeDisc(t, dir, "second.png", 70, 50, 30)
	opts := discOptions(dir)
	require.NoError(t, os.MkdirAll(opts.overlayDir, 0o755))
	require.NoError(t, os.MkdirAll(opts.edgesDir, 0o755))

	var out bytes.Buffer
	require.NoError(t, runDetect(context.Background(), []string{first, second}, opts, &out, zerolog.Nop()))

	var results []imageResult
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var r imageResult
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		results = append(results, r)
	}
	require.Len(t, results, 2)

	assert.Equal(t, first, results[0].Path, "results keep the input order")
	require.Len(t, results[0].Circles, 1)
	assert.InDelta(t, 25, results[0].Circles[0].Radius, 2)

	assert.Equal(t, second, results[1].Path)
	require.Len(t, results[1].Circles, 1)
	assert.InDelta(t, 30, results[1].Circles[0].Radius, 2)

	for _, name := range []string{"overlays/first.circles.png", "edges/second.edges.png"} {
		img, err := imgio.Open(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Equal(t, image.Rect(0, 0, 128, 128), img.Bounds())
	}
}

func TestRunDetect_ReportsFailures(t *testing.T) {
	dir := t.TempDir()
	good := writeDisc(t, dir, "good.png", 60, 64, 25)
	missing := filepath.Join(dir, "missing.png")
	opts := discOptions(dir)
	opts.overlayDir, opts.edgesDir = "", ""

	var out bytes.Buffer
	err := runDetect(context.Background(), []string{missing, good}, opts, &out, zerolog.Nop())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 1)
	assert.Contains(t, err.Error(), "missing.png")

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var failed, ok imageResult
	require.NoError(t, json.Unmarshal(lines[0], &failed))
	require.NoError(t, json.Unmarshal(lines[1], &ok))
	assert.NotEmpty(t, failed.Error)
	assert.Empty(t, failed.Circles)
	assert.Empty(t, ok.Error)
	assert.Len(t, ok.Circles, 1)
}

func TestConfigCommand(t *testing.T) {
	dir := t.TempDir()
	from := filepath.Join(dir, "from.json")
	require.NoError(t, os.WriteFile(from, []byte(`{"centerThresh": 35, "radiusLimits": [5, 50]}`), 0o644))
	out := filepath.Join(dir, "out.json")

	app := newApp()
	app.Writer = &bytes.Buffer{}
	require.NoError(t, app.Run([]string{"hough-circles-mcp", "config", "--from", from, "--out", out}))

	saved, err := detection.LoadParams(out)
	require.NoError(t, err)
	assert.Equal(t, 35.0, saved.CenterThresh)
	assert.Equal(t, 50.0, saved.MaxRadius)

	var stdout bytes.Buffer
	app = newApp()
	app.Writer = &stdout
	require.NoError(t, app.Run([]string{"hough-circles-mcp", "config"}))
	printed, err := detection.ParseParams(stdout.Bytes())
	require.NoError(t, err)
	assert.Equal(t, detection.DefaultParams(), printed)
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "coins.circles.png"), outputPath("out", "/data/coins.jpg", "circles"))
	assert.Equal(t, filepath.Join("out", "archive.tar.edges.png"), outputPath("out", "archive.tar.gz", "edges"))
}
