// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/verbatim"
	"github.com/poiesic/verbatim/core"
	"github.com/poiesic/verbatim/extract"
	"github.com/poiesic/verbatim/index"
	"github.com/poiesic/verbatim/metrics"
	"github.com/poiesic/verbatim/report"
	"github.com/poiesic/verbatim/score"
)

// Exit statuses.
const (
	exitGeneric     = 1
	exitConfig      = 2
	exitSource      = 3
	exitArtifact    = 4
	exitQuerySyntax = 5
)

// errUsage marks errors caused by bad command-line arguments.
var errUsage = errors.New("usage error")

func usageErrorf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), errUsage)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(os.Stdout, os.Stderr)
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	switch {
	case errors.Is(err, verbatim.ErrConfig):
		return exitConfig
	case errors.Is(err, verbatim.ErrSourceUnavailable):
		return exitSource
	case errors.Is(err, verbatim.ErrStoreNotFound),
		errors.Is(err, verbatim.ErrIndexNotFound),
		errors.Is(err, verbatim.ErrStaleIndex):
		return exitArtifact
	case errors.Is(err, verbatim.ErrQuerySyntax):
		return exitQuerySyntax
	}
	return exitGeneric
}

type app struct {
	stdout  io.Writer
	stderr  io.Writer
	metrics *metrics.Metrics
}

func newApp(stdout, stderr io.Writer) *cli.App {
	a := &app{stdout: stdout, stderr: stderr, metrics: metrics.New()}

	formatUsage := "Report format (" + formatNames() + ")"
	return &cli.App{
		Name:      "verbatim",
		Usage:     "Locate and rank CRM verbatims relevant to a query",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "metrics-file",
				Usage: "Write Prometheus metrics to this file when the command finishes",
			},
		},
		Before: a.setupLogger,
		After:  a.writeMetrics,
		Action: func(c *cli.Context) error {
			cli.ShowAppHelp(c)
			if c.NArg() > 0 {
				return usageErrorf("unknown command %q", c.Args().First())
			}
			return usageErrorf("no command given")
		},
		Commands: []*cli.Command{
			{
				Name:      "extract",
				Usage:     "Replace the verbatim store with eligible CRM records",
				ArgsUsage: "<source-config> <store-path>",
				Action:    a.extractCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of rows inserted per store transaction",
						Value: extract.DefaultBatchSize,
					},
				},
			},
			{
				Name:      "index",
				Usage:     "Rebuild the full-text index from the verbatim store",
				ArgsUsage: "<store-path> <index-path>",
				Action:    a.indexCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of store rows read per batch",
						Value: index.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Number of analysis workers (0 = half the CPUs)",
					},
				},
			},
			{
				Name:      "score",
				Usage:     "Score every verbatim against a query",
				ArgsUsage: "<store-path> <index-path> <query>",
				Action:    a.scoreCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "page-size",
						Usage: "Number of hits retrieved per index page",
						Value: score.DefaultPageSize,
					},
				},
			},
			{
				Name:      "read",
				Usage:     "Print the ranked report of the scored store as JSON",
				ArgsUsage: "<store-path>",
				Action:    a.readCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   formatUsage,
						Value:   string(core.FormatMinimal),
					},
					&cli.IntFlag{
						Name:    "number",
						Aliases: []string{"n"},
						Usage:   "Maximum number of groups to print",
						Value:   10,
					},
				},
			},
			{
				Name:      "query",
				Usage:     "Extract, index, score and print the report in one go",
				ArgsUsage: "<query>",
				Action:    a.queryCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "data-dir",
						Usage: "Directory holding the default store and index",
						Value: filepath.Join("data", "query"),
					},
					&cli.StringFlag{
						Name:    "database",
						Aliases: []string{"d"},
						Usage:   "Verbatim store path (default <data-dir>/verbatim.sqlite)",
					},
					&cli.StringFlag{
						Name:    "index",
						Aliases: []string{"i"},
						Usage:   "Index directory (default <data-dir>/verbatim_index)",
					},
					&cli.StringFlag{
						Name:    "source-config",
						Aliases: []string{"m"},
						Usage:   "CRM source configuration file",
						Value:   "mysql_config.ini",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   formatUsage,
						Value:   string(core.FormatMinimal),
					},
					&cli.IntFlag{
						Name:    "number",
						Aliases: []string{"n"},
						Usage:   "Maximum number of groups to print",
						Value:   10,
					},
				},
			},
		},
	}
}

func formatNames() string {
	names := make([]string, len(core.ReportFormats))
	for i, f := range core.ReportFormats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// args returns the positional arguments of c, which must match names, or a
// usage error. Command flags given after a positional argument are applied
// to c; anything following "--" is positional.
func args(c *cli.Context, names ...string) ([]string, error) {
	var positional []string
	rest := c.Args().Slice()
	for i := 0; i < len(rest); i++ {
		arg := rest[i]
		if arg == "--" {
			positional = append(positional, rest[i+1:]...)
			break
		}
		if len(arg) < 2 || arg[0] != '-' {
			positional = append(positional, arg)
			continue
		}

		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		fl := lookupFlag(c.Command.Flags, name)
		if fl == nil {
			return nil, usageErrorf("%s: flag provided but not defined: %s", c.Command.Name, arg)
		}
		if !hasValue {
			if _, ok := fl.(*cli.BoolFlag); ok {
				value = "true"
			} else {
				if i+1 >= len(rest) {
					return nil, usageErrorf("%s: flag needs an argument: %s", c.Command.Name, arg)
				}
				i++
				value = rest[i]
			}
		}
		if err := c.Set(fl.Names()[0], value); err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "invalid value %q for flag %s", value, arg), errUsage)
		}
	}

	if len(positional) != len(names) {
		return nil, usageErrorf("%s expects %d arguments: %s, got %d",
			c.Command.Name, len(names), strings.Join(names, " "), len(positional))
	}
	return positional, nil
}

func lookupFlag(flags []cli.Flag, name string) cli.Flag {
	for _, fl := range flags {
		for _, n := range fl.Names() {
			if n == name {
				return fl
			}
		}
	}
	return nil
}

func (a *app) pipeline(opts ...verbatim.Option) *verbatim.Pipeline {
	opts = append([]verbatim.Option{
		verbatim.WithLogger(slog.Default()),
		verbatim.WithProgress(a.stderr),
		verbatim.WithMetrics(a.metrics),
	}, opts...)
	return verbatim.New(opts...)
}

func (a *app) extractCommand(c *cli.Context) error {
	positional, err := args(c, "<source-config>", "<store-path>")
	if err != nil {
		return err
	}
	if c.Int("batch-size") <= 0 {
		return usageErrorf("batch-size must be greater than 0")
	}

	cfg, err := extract.LoadConfig(positional[0])
	if err != nil {
		return err
	}

	p := a.pipeline(
		verbatim.WithStorePath(positional[1]),
		verbatim.WithBatchSize(c.Int("batch-size")),
	)
	summary, err := p.Extract(c.Context, cfg)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stderr, "Store: %s\n", p.StorePath())
	fmt.Fprintf(a.stderr, "Snapshot: %s\n", summary.SnapshotID)
	for _, prov := range core.Provenances {
		fmt.Fprintf(a.stderr, "  %s: %d\n", prov, summary.Counts[prov])
	}
	fmt.Fprintf(a.stderr, "Skipped: %d\n", summary.Skipped)
	return nil
}

func (a *app) indexCommand(c *cli.Context) error {
	positional, err := args(c, "<store-path>", "<index-path>")
	if err != nil {
		return err
	}
	if c.Int("batch-size") <= 0 {
		return usageErrorf("batch-size must be greater than 0")
	}
	if c.Int("pool-size") < 0 {
		return usageErrorf("pool-size cannot be negative")
	}

	p := a.pipeline(
		verbatim.WithStorePath(positional[0]),
		verbatim.WithIndexPath(positional[1]),
		verbatim.WithBatchSize(c.Int("batch-size")),
		verbatim.WithPoolSize(c.Int("pool-size")),
	)
	stats, err := p.Index(c.Context)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stderr, "Index: %s\n", p.IndexPath())
	fmt.Fprintf(a.stderr, "Documents: %d\n", stats.Documents)
	fmt.Fprintf(a.stderr, "Terms: %d\n", stats.Terms)
	return nil
}

func (a *app) scoreCommand(c *cli.Context) error {
	positional, err := args(c, "<store-path>", "<index-path>", "<query>")
	if err != nil {
		return err
	}
	if c.Int("page-size") <= 0 {
		return usageErrorf("page-size must be greater than 0")
	}

	p := a.pipeline(
		verbatim.WithStorePath(positional[0]),
		verbatim.WithIndexPath(positional[1]),
		verbatim.WithPageSize(c.Int("page-size")),
	)
	summary, err := p.Score(c.Context, positional[2])
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stderr, "Query: %s\n", summary.Query)
	fmt.Fprintf(a.stderr, "Matched: %d\n", summary.Matched)
	return nil
}

func (a *app) readCommand(c *cli.Context) error {
	positional, err := args(c, "<store-path>")
	if err != nil {
		return err
	}
	format, limit, err := reportFlags(c)
	if err != nil {
		return err
	}

	p := a.pipeline(verbatim.WithStorePath(positional[0]))
	groups, err := p.Read(c.Context, format, limit)
	if err != nil {
		return err
	}
	return report.Render(a.stdout, groups, format)
}

func (a *app) queryCommand(c *cli.Context) error {
	positional, err := args(c, "<query>")
	if err != nil {
		return err
	}
	format, limit, err := reportFlags(c)
	if err != nil {
		return err
	}

	dataDir := c.String("data-dir")
	storePath := c.String("database")
	if storePath == "" {
		storePath = filepath.Join(dataDir, "verbatim.sqlite")
	}
	indexPath := c.String("index")
	if indexPath == "" {
		indexPath = filepath.Join(dataDir, "verbatim_index")
	}

	cfg, err := extract.LoadConfig(c.String("source-config"))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(storePath), 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", filepath.Dir(storePath))
	}
	if err := os.MkdirAll(filepath.Dir(indexPath), 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", filepath.Dir(indexPath))
	}

	p := a.pipeline(
		verbatim.WithStorePath(storePath),
		verbatim.WithIndexPath(indexPath),
	)
	groups, err := p.Query(c.Context, cfg, positional[0], format, limit)
	if err != nil {
		return err
	}
	return report.Render(a.stdout, groups, format)
}

func reportFlags(c *cli.Context) (core.ReportFormat, int, error) {
	format, err := core.ParseReportFormat(c.String("format"))
	if err != nil {
		return "", 0, errors.Mark(err, errUsage)
	}
	limit := c.Int("number")
	if err := core.ValidateLimit(limit); err != nil {
		return "", 0, errors.Mark(err, errUsage)
	}
	return format, limit, nil
}

func (a *app) setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return usageErrorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return nil
}

func (a *app) writeMetrics(c *cli.Context) error {
	path := c.String("metrics-file")
	if path == "" {
		return nil
	}
	if err := a.metrics.WriteTextfile(path); err != nil {
		return errors.Wrapf(err, "writing metrics to %s", path)
	}
	return nil
}
