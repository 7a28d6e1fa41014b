package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/akademi4eg/aka-assistant/internal/cache"
	"github.com/akademi4eg/aka-assistant/internal/errors"
	"github.com/akademi4eg/aka-assistant/internal/extract"
	"github.com/akademi4eg/aka-assistant/internal/logger"
	"github.com/akademi4eg/aka-assistant/internal/ops"
	"github.com/akademi4eg/aka-assistant/internal/web"
)

// MaxStdinBytes bounds document text read from stdin.
const MaxStdinBytes = 64 << 20

// progressOut receives progress lines; stdout is reserved for JSON results.
var progressOut io.Writer = os.Stderr

// newCLIApp creates the CLI application with all commands.
// deps is nil when only help or version output is needed.
func newCLIApp(deps *ops.Deps) *cli.App {
	app := &cli.App{
		Name:    "aka",
		Usage:   "Cached text embeddings and resumable document summaries",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "Log level: debug|info|warn|error", EnvVars: []string{"AKA_LOG_LEVEL"}},
			&cli.BoolFlag{Name: "log-json", Usage: "Write logs as JSON", EnvVars: []string{"AKA_LOG_JSON"}},
		},
		Before: func(c *cli.Context) error {
			log := logger.New(loggerConfig(c.String("log-level"), c.Bool("log-json")))
			c.Context = logger.WithContext(c.Context, log)
			return nil
		},
		Commands: []*cli.Command{
			embedCmd(deps),
			summarizeCmd(deps),
			summaryCmd(deps),
			cacheCmd(deps),
			webCmd(deps),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// loggerConfig builds the stderr logger config from the global flags.
func loggerConfig(level string, asJSON bool) *logger.Config {
	cfg := logger.DefaultConfig()
	if level = strings.ToLower(strings.TrimSpace(level)); level != "" {
		cfg.Level = logger.Level(level)
	}
	cfg.JSON = asJSON
	return cfg
}

// embedCmd creates the embed command.
func embedCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "embed",
		Usage: "Embed one text (--text) or a file of texts, one per line (--file, or piped stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "Single text to embed"},
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "File with one text per line ('-' for stdin)"},
			&cli.StringFlag{Name: "model", Aliases: []string{"m"}, Usage: "Embedding model (default: config embedding_model)"},
			&cli.StringFlag{Name: "storage", Aliases: []string{"s"}, Usage: "Cache root (default: config storage)"},
			&cli.IntFlag{Name: "nthreads", Aliases: []string{"j"}, Usage: "Concurrent embedding calls (default: config nthreads)"},
			&cli.BoolFlag{Name: "vector", Usage: "Include the vector in --text output"},
		},
		Action: func(c *cli.Context) error {
			d, err := withStorage(deps, c.String("storage"))
			if err != nil {
				return outputError(err)
			}

			if c.IsSet("text") {
				output, err := ops.Embed(c.Context, d, ops.EmbedInput{
					Text:          c.String("text"),
					Model:         c.String("model"),
					IncludeVector: c.Bool("vector"),
				})
				if err != nil {
					return outputError(err)
				}
				return outputJSON(output)
			}

			lines, err := readLinesInput(c.String("file"))
			if err != nil {
				return outputError(err)
			}
			output, err := ops.EmbedBatch(c.Context, d, ops.EmbedBatchInput{
				Texts:   lines,
				Model:   c.String("model"),
				Workers: c.Int("nthreads"),
			}, batchProgress)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// summarizeCmd creates the summarize command.
func summarizeCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "summarize",
		Usage:     "Summarize a .txt, .md or .pdf file, a PDF URL (--url) or piped text",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Usage: "PDF URL to download and summarize"},
			&cli.StringFlag{Name: "model", Aliases: []string{"m"}, Usage: "Chat model (default: config chat_model)"},
			&cli.IntFlag{Name: "max-context", Aliases: []string{"c"}, Usage: "Words per chunk (default: config max_context)"},
		},
		Action: func(c *cli.Context) error {
			input := ops.SummarizeInput{
				URL:        c.String("url"),
				Model:      c.String("model"),
				MaxContext: c.Int("max-context"),
				Progress: func(done, total int) {
					fmt.Fprintf(progressOut, "chunk %d/%d\n", done, total)
				},
			}
			if c.NArg() > 0 {
				input.Path = c.Args().First()
			} else if input.URL == "" && stdinHasData() {
				text, err := readStdin(MaxStdinBytes)
				if err != nil {
					return outputError(err)
				}
				input.Text = text
			}

			output, err := ops.Summarize(c.Context, deps, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// summaryCmd creates the summary command group.
func summaryCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "summary",
		Usage: "Inspect stored summaries",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List summaries, most recently updated first",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Max items"},
					&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "Items to skip"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.ListSummaries(deps, ops.ListSummariesInput{
						Limit:  c.Int("limit"),
						Offset: c.Int("offset"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "fetch",
				Usage:     "Fetch a summary by ID",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "no-text", Usage: "Exclude the summary text from output"},
				},
				Action: func(c *cli.Context) error {
					input := ops.FetchSummaryInput{ID: c.Args().First()}
					if c.Bool("no-text") {
						includeText := false
						input.IncludeText = &includeText
					}
					output, err := ops.FetchSummary(deps, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "delete",
				Usage:     "Permanently delete a summary",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					output, err := ops.DeleteSummary(deps, ops.DeleteSummaryInput{ID: c.Args().First()})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// cacheCmd creates the cache command group.
func cacheCmd(deps *ops.Deps) *cli.Command {
	storageFlag := func() cli.Flag {
		return &cli.StringFlag{Name: "storage", Aliases: []string{"s"}, Usage: "Cache root (default: config storage)"}
	}
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect the embedding cache",
		Subcommands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Count cache entries and bytes",
				Flags: []cli.Flag{storageFlag()},
				Action: func(c *cli.Context) error {
					d, err := withStorage(deps, c.String("storage"))
					if err != nil {
						return outputError(err)
					}
					output, err := ops.CacheStats(d.Store)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "path",
				Usage:     "Print where the entry for a text is stored",
				ArgsUsage: "<text>",
				Flags:     []cli.Flag{storageFlag()},
				Action: func(c *cli.Context) error {
					d, err := withStorage(deps, c.String("storage"))
					if err != nil {
						return outputError(err)
					}
					output, err := ops.CachePath(d.Store, ops.CachePathInput{Text: strings.Join(c.Args().Slice(), " ")})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

func webCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Browse stored summaries in a local web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: web.DefaultBind, Usage: "Address to listen on"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: web.DefaultPort, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			log := logger.FromContext(c.Context)
			srv, err := web.NewServer(deps, Version, c.String("bind"), c.Int("port"), log)
			if err != nil {
				return outputError(err)
			}
			if err := web.Run(c.Context, srv, log); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// Helper functions

// withStorage returns deps pointing at a different cache root when one is given.
func withStorage(deps *ops.Deps, root string) (*ops.Deps, error) {
	if root == "" || (deps.Store != nil && deps.Store.Root() == root) {
		return deps, nil
	}
	memSize := 0
	if deps.Config != nil {
		memSize = deps.Config.MemCacheSize
	}
	store, err := cache.New(root, memSize)
	if err != nil {
		return nil, err
	}
	d := *deps
	d.Store = store
	return &d, nil
}

// batchProgress reports batch progress on a single stderr line.
func batchProgress(done, total int, _ extract.ItemResult) {
	fmt.Fprintf(progressOut, "\rembedded %d/%d", done, total)
	if done == total {
		fmt.Fprintln(progressOut)
	}
}

// readLinesInput reads texts from path, or from stdin for "-" or when piped.
func readLinesInput(path string) ([]string, error) {
	var r io.Reader
	switch {
	case path == "-" || (path == "" && stdinHasData()):
		r = os.Stdin
	case path == "":
		return nil, errors.NewInvalidRequest("one of --text or --file is required")
	default:
		f, err := os.Open(path)
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound(path)
		}
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot read %s: %v", path, err))
		}
		defer f.Close()
		r = f
	}
	lines, err := extract.ReadLines(r)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return lines, nil
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if aErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", aErr.Code, aErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin, failing if it exceeds limit bytes.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if int64(len(data)) > limit {
		return "", errors.NewInvalidRequest(fmt.Sprintf("stdin exceeds %d bytes", limit))
	}
	return strings.TrimSpace(string(data)), nil
}
