package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/hough-circles-mcp/internal/detection"
	"github.com/ironsheep/hough-circles-mcp/internal/imaging"
	"github.com/ironsheep/hough-circles-mcp/internal/logging"
	"github.com/ironsheep/hough-circles-mcp/internal/server"
)

// detectOptions holds the detect command settings.
type detectOptions struct {
	params     detection.Params
	nbCircles  int
	overlayDir string
	edgesDir   string
	jobs       int
}

// imageResult is printed as one JSON line per image.
type imageResult struct {
	Path    string             `json:"path"`
	Circles []detection.Circle `json:"circles"`
	Error   string             `json:"error,omitempty"`
}

func detectAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("detect requires at least one image", 2)
	}
	logger, err := newLogger(c)
	if err != nil {
		return err
	}

	opts := detectOptions{
		params:     detection.DefaultParams(),
		nbCircles:  c.Int(flagNbCircles),
		overlayDir: c.String(flagOverlayDir),
		edgesDir:   c.String(flagEdgesDir),
		jobs:       c.Int(flagJobs),
	}
	if path := c.String(flagConfig); path != "" {
		if opts.params, err = detection.LoadParams(path); err != nil {
			return err
		}
	}
	for _, dir := range []string{opts.overlayDir, opts.edgesDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	return runDetect(c.Context, c.Args().Slice(), opts, c.App.Writer, logging.Component(logger, "detect"))
}

// runDetect processes paths concurrently and writes their results to w in
// input order. Failed images are reported in their result line and in the
// returned error.
func runDetect(ctx context.Context, paths []string, opts detectOptions, w io.Writer, logger zerolog.Logger) error {
	results := make([]imageResult, len(paths))
	cache := imaging.NewImageCache()

	g, ctx := errgroup.WithContext(ctx)
	if opts.jobs > 0 {
		g.SetLimit(opts.jobs)
	}
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			circles, err := detectImage(cache, path, opts, logger.With().Str("path", path).Logger())
			results[i] = imageResult{Path: path, Circles: circles}
			if err != nil {
				results[i].Error = err.Error()
				results[i].Circles = []detection.Circle{}
			}
			// Keep going; failures are collected below.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var errs error
	encoder := json.NewEncoder(w)
	for _, r := range results {
		if r.Error != "" {
			errs = multierr.Append(errs, fmt.Errorf("%s: %s", r.Path, r.Error))
		}
		if err := encoder.Encode(r); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}
	return errs
}

func detectImage(cache *imaging.ImageCache, path string, opts detectOptions, logger zerolog.Logger) ([]detection.Circle, error) {
	gray, err := cache.LoadGray(path)
	if err != nil {
		return nil, err
	}
	// Every image is only seen once.
	defer cache.Evict(path)

	d, err := detection.New(opts.params, detection.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	circles, err := d.DetectN(gray, opts.nbCircles)
	if err != nil {
		return nil, err
	}
	logger.Info().Int("circles", len(circles)).Msg("image processed")

	if opts.edgesDir != "" && d.EdgeMap() != nil {
		if err := imgio.Save(outputPath(opts.edgesDir, path, "edges"), d.EdgeMap(), imgio.PNGEncoder()); err != nil {
			return nil, fmt.Errorf("failed to save edge map: %w", err)
		}
	}
	if opts.overlayDir != "" {
		img, err := cache.Load(path)
		if err != nil {
			return nil, err
		}
		drawn, err := imaging.DrawCircles(img, server.OverlayCircles(circles), imaging.OverlayOptions{Labels: true})
		if err != nil {
			return nil, err
		}
		if err := imgio.Save(outputPath(opts.overlayDir, path, "circles"), drawn, imgio.PNGEncoder()); err != nil {
			return nil, fmt.Errorf("failed to save overlay: %w", err)
		}
	}
	return circles, nil
}

// outputPath names the PNG written for src in dir, e.g. dir/coins.circles.png.
func outputPath(dir, src, suffix string) string {
	base := filepath.Base(src)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, base+"."+suffix+".png")
}

func configAction(c *cli.Context) error {
	params := detection.DefaultParams()
	if from := c.String(flagFrom); from != "" {
		var err error
		if params, err = detection.LoadParams(from); err != nil {
			return err
		}
	}

	if out := c.String(flagOut); out != "" {
		return params.Save(out)
	}
	data, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, string(data))
	return err
}
