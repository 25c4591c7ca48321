package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/hpungsan/beautify/internal/adjust"
	"github.com/hpungsan/beautify/internal/config"
	"github.com/hpungsan/beautify/internal/errors"
	"github.com/hpungsan/beautify/internal/ops"
	"github.com/hpungsan/beautify/internal/web"
)

// stdout is where command output goes. Tests swap it for a buffer.
var stdout io.Writer = os.Stdout

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "beautify",
		Usage:   "Photo effects with live preview",
		Version: Version,
		Commands: []*cli.Command{
			effectsCmd(),
			applyCmd(db, cfg),
			thumbsCmd(cfg),
			historyCmd(db),
			lastCmd(db),
			purgeCmd(db),
			serveCmd(db, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// effectsCmd creates the effects command.
func effectsCmd() *cli.Command {
	return &cli.Command{
		Name:  "effects",
		Usage: "List effect categories and effects",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Usage: "Only this category"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Effects(ops.EffectsInput{Category: c.String("category")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// adjustmentFlags returns one float flag per slider, named with dashes.
func adjustmentFlags() []cli.Flag {
	flags := make([]cli.Flag, 0, len(adjust.Fields))
	for _, f := range adjust.Fields {
		rng, _ := adjust.RangeOf(f)
		flags = append(flags, &cli.Float64Flag{
			Name:  flagName(f),
			Usage: fmt.Sprintf("%s (%g..%g)", strings.ReplaceAll(string(f), "_", " "), rng.Min, rng.Max),
		})
	}
	return flags
}

func flagName(f adjust.Field) string {
	return strings.ReplaceAll(string(f), "_", "-")
}

// parseAdjustmentFlags collects the slider flags that were given.
func parseAdjustmentFlags(c *cli.Context) ops.Adjustments {
	var a ops.Adjustments
	for _, f := range adjust.Fields {
		if name := flagName(f); c.IsSet(name) {
			a.Set(f, c.Float64(name))
		}
	}
	return a
}

// applyCmd creates the apply command.
func applyCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output path (default: ~/.beautify/outputs/<source>-<effect>-<timestamp>.<ext>)"},
		&cli.StringFlag{Name: "effect", Aliases: []string{"e"}, Usage: "Effect slug or name (see 'beautify effects')"},
		&cli.Float64Flag{Name: "opacity", Usage: "Effect opacity 0..100 (default: config default_opacity)"},
		&cli.BoolFlag{Name: "last", Usage: "Start from the last accepted values; other flags override"},
	}

	return &cli.Command{
		Name:      "apply",
		Usage:     "Apply adjustments and an effect to an image",
		ArgsUsage: "<source>",
		Flags:     append(flags, adjustmentFlags()...),
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("exactly one source image is required"))
			}

			input := ops.ApplyInput{
				Source:      c.Args().First(),
				Output:      c.String("output"),
				Effect:      c.String("effect"),
				Adjustments: parseAdjustmentFlags(c),
				UseLast:     c.Bool("last"),
			}
			if c.IsSet("opacity") {
				opacity := c.Float64("opacity")
				input.Opacity = &opacity
			}

			output, err := ops.Apply(c.Context, db, cfg, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// thumbsCmd creates the thumbs command.
func thumbsCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "thumbs",
		Usage:     "Render effect thumbnails of one category as PNG files",
		ArgsUsage: "<source>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Usage: "Category (default: first category)"},
			&cli.StringFlag{Name: "out-dir", Aliases: []string{"d"}, Usage: "Directory for thumbnails (default: ~/.beautify/outputs)"},
			&cli.IntFlag{Name: "size", Usage: "Thumbnail edge in pixels (default: config thumbnail_size)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("exactly one source image is required"))
			}

			output, err := ops.Thumbnails(c.Context, cfg, ops.ThumbnailsInput{
				Source:   c.Args().First(),
				Category: c.String("category"),
				OutDir:   c.String("out-dir"),
				Size:     c.Int("size"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// historyCmd creates the history command.
func historyCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List accepted edits, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "effect", Aliases: []string{"e"}, Usage: "Filter by effect"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Usage: "Filter by mode: apply|session"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
			&cli.BoolFlag{Name: "human", Usage: "Print a table instead of JSON"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.History(db, ops.HistoryInput{
				Effect: c.String("effect"),
				Mode:   c.String("mode"),
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}

			if c.Bool("human") {
				return outputHistoryTable(output, time.Now())
			}
			return outputJSON(output)
		},
	}
}

// lastCmd creates the last command.
func lastCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "last",
		Usage: "Show the values recorded by the most recent accept",
		Action: func(c *cli.Context) error {
			output, err := ops.LastValues(db)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// purgeCmd creates the purge command.
func purgeCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Permanently delete history records (output files are kept)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "older-than", Usage: "Only purge records created more than N days ago (e.g., 7d)"},
		},
		Action: func(c *cli.Context) error {
			input := ops.PurgeInput{}

			if olderThan := c.String("older-than"); olderThan != "" {
				days, err := parseDuration(olderThan)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				input.OlderThanDays = &days
			}

			output, err := ops.Purge(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the local web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8420, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			port := c.Int("port")
			if port < 1 || port > 65535 {
				return outputError(errors.NewInvalidParameter("port", port))
			}
			return web.Run(web.NewServer(db, cfg, Version, c.String("bind"), port))
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHistoryTable prints history items with relative times and sizes.
func outputHistoryTable(out *ops.HistoryOutput, now time.Time) error {
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tMODE\tEFFECT\tOPACITY\tSIZE\tOUTPUT")
	for _, it := range out.Items {
		output, size := "-", "-"
		if it.Output != nil {
			output = *it.Output
			size = humanize.Bytes(uint64(max(it.OutputBytes, 0)))
		}
		opacity := "-"
		if it.Effect != "none" {
			opacity = strconv.FormatFloat(it.Opacity, 'f', -1, 64) + "%"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			humanize.RelTime(time.Unix(it.CreatedAt, 0), now, "ago", "from now"),
			it.Mode, it.Effect, opacity, size, output)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	p := out.Pagination
	if p.HasMore {
		_, err := fmt.Fprintf(stdout, "\n%s of %s records shown; use --offset %d for more\n",
			humanize.Comma(int64(p.Offset+len(out.Items))), humanize.Comma(int64(p.Total)), p.Offset+p.Limit)
		return err
	}
	return nil
}

// outputError formats error for CLI.
func outputError(err error) error {
	if bErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", bErr.Code, bErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 7d")
}
