package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/ironsheep/hough-circles-mcp/internal/logging"
	"github.com/ironsheep/hough-circles-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const (
	flagLogLevel   = "log-level"
	flagConfig     = "config"
	flagNbCircles  = "nb-circles"
	flagOverlayDir = "overlay-dir"
	flagEdgesDir   = "edges-dir"
	flagJobs       = "jobs"
	flagOut        = "out"
	flagFrom       = "from"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger builds the stderr logger; stdout carries results and the MCP
// protocol.
func newLogger(c *cli.Context) (zerolog.Logger, error) {
	level, err := logging.ParseLevel(c.String(flagLogLevel))
	if err != nil {
		return zerolog.Nop(), err
	}
	return logging.NewConsole(os.Stderr, level), nil
}

func newApp() *cli.App {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintf(c.App.Writer, "%s %s\n", server.ServerName, Version)
		fmt.Fprintf(c.App.Writer, "  Build time: %s\n", BuildTime)
		fmt.Fprintf(c.App.Writer, "  Git commit: %s\n", GitCommit)
	}

	return &cli.App{
		Name:    server.ServerName,
		Usage:   "detect circles with a gradient-based circle Hough transform",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagLogLevel,
				Usage:   "log level (trace, debug, info, warn, error)",
				EnvVars: []string{logging.EnvLevel},
				Value:   "info",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the MCP server over stdin/stdout",
				Action: serveAction,
			},
			{
				Name:      "detect",
				Usage:     "detect circles in image files and print one JSON line per image",
				ArgsUsage: "<image> [image...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    flagConfig,
						Aliases: []string{"c"},
						Usage:   "load the detector configuration from `FILE`",
					},
					&cli.IntFlag{
						Name:    flagNbCircles,
						Aliases: []string{"n"},
						Usage:   "maximum number of circles per image, negative for all",
						Value:   -1,
					},
					&cli.StringFlag{
						Name:  flagOverlayDir,
						Usage: "write the detected circles drawn over each image to `DIR`",
					},
					&cli.StringFlag{
						Name:  flagEdgesDir,
						Usage: "write the edge map of each image to `DIR`",
					},
					&cli.IntFlag{
						Name:    flagJobs,
						Aliases: []string{"j"},
						Usage:   "number of images processed concurrently",
						Value:   4,
					},
				},
				Action: detectAction,
			},
			{
				Name:  "config",
				Usage: "print or save the detector configuration",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagFrom,
						Usage: "start from the configuration in `FILE` instead of the defaults",
					},
					&cli.StringFlag{
						Name:    flagOut,
						Aliases: []string{"o"},
						Usage:   "write the configuration to `FILE` instead of stdout",
					},
				},
				Action: configAction,
			},
		},
	}
}

func serveAction(c *cli.Context) error {
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	logger.Info().Str("version", Version).Str("buildTime", BuildTime).Str("commit", GitCommit).
		Msg("starting MCP server")

	srv := server.New(
		server.WithLogger(logging.Component(logger, "server")),
		server.WithVersion(Version),
	)
	if err := srv.Serve(os.Stdin, c.App.Writer); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
