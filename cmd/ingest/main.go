package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"zeus-insurance/internal/app"
	"zeus-insurance/internal/bootstrap"
	"zeus-insurance/internal/config"
	"zeus-insurance/internal/pkg/pdfextract"
	"zeus-insurance/internal/repository"
)

const metaConfig = "config"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ingest",
		Usage: "Embed policy documents and import policy wording",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the TOML configuration file",
				EnvVars: []string{"CONFIG_FILE"},
				Value:   "configs/config.toml",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Override the log level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Re-embed documents that already have an embedding",
			},
			&cli.StringFlag{
				Name:  "plan-type",
				Usage: "Only embed documents of this plan type",
			},
			&cli.StringFlag{
				Name:  "section",
				Usage: "Only embed documents of this section (Coverage, Exclusion, Condition, Definition)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Report what would be embedded without calling the embedding API",
			},
		},
		Before: setup,
		Action: embedCommand,
		Commands: []*cli.Command{
			{
				Name:   "import",
				Usage:  "Split a policy wording file into unembedded documents",
				Action: importCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "PDF or plain text file to import",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "plan-type",
						Usage:    "Plan type the wording belongs to, e.g. \"Type 1\"",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "section",
						Usage:    "Section of the wording (Coverage, Exclusion, Condition, Definition)",
						Required: true,
					},
				},
			},
		},
	}
}

func setup(c *cli.Context) error {
	if err := os.Setenv("CONFIG_FILE", c.String("config")); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config failed: %w", err)
	}
	if level := c.String("log-level"); level != "" {
		cfg.Log.Level = level
	}
	slog.SetDefault(bootstrap.NewLogger(cfg.Log, os.Stderr).With("service", "ingest"))

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]interface{}{}
	}
	c.App.Metadata[metaConfig] = cfg
	return nil
}

func openApp(c *cli.Context) (*bootstrap.App, error) {
	cfg, ok := c.App.Metadata[metaConfig].(*config.Config)
	if !ok {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return bootstrap.NewIngestion(c.Context, cfg, slog.Default())
}

func embedCommand(c *cli.Context) error {
	a, err := openApp(c)
	if err != nil {
		return err
	}
	defer a.Close()

	return runEmbed(c.Context, a.Ingestion, app.EmbedOptions{
		Filter: repository.PolicyFilter{
			Force:    c.Bool("force"),
			PlanType: c.String("plan-type"),
			Section:  c.String("section"),
		},
		DryRun: c.Bool("dry-run"),
	}, c.App.Writer)
}

type embedRunner interface {
	EmbedDocuments(ctx context.Context, opts app.EmbedOptions) (*app.IngestReport, error)
}

// runEmbed prints the sweep summary and exits 1 when any document failed.
func runEmbed(ctx context.Context, runner embedRunner, opts app.EmbedOptions, out io.Writer) error {
	report, err := runner.EmbedDocuments(ctx, opts)
	if err != nil {
		return cli.Exit(fmt.Sprintf("embedding failed: %v", err), 1)
	}

	if opts.DryRun {
		fmt.Fprintf(out, "dry run: %d document(s) would be embedded: %v\n", report.Processed, report.SelectedIDs)
		return nil
	}
	fmt.Fprintf(out, "processed %d, succeeded %d, failed %d in %d batch(es)\n",
		report.Processed, report.Succeeded, report.Failed(), report.Batches)
	if report.Failed() > 0 {
		return cli.Exit(fmt.Sprintf("failed document ids: %v", report.FailedIDs), 1)
	}
	return nil
}

func importCommand(c *cli.Context) error {
	path := c.String("file")
	text, err := readPolicyText(path)
	if err != nil {
		return err
	}

	a, err := openApp(c)
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := a.Ingestion.ImportDocuments(c.Context, app.ImportInput{
		Text:     text,
		PlanType: c.String("plan-type"),
		Section:  c.String("section"),
		Source:   filepath.Base(path),
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("import failed: %v", err), 1)
	}
	fmt.Fprintf(c.App.Writer, "imported %d document(s) from %s; run ingest to embed them\n", len(docs), path)
	return nil
}

// readPolicyText extracts text from a PDF, or reads any other file as text.
func readPolicyText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s failed: %w", path, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, err := pdfextract.ExtractText(f)
		if err != nil {
			return "", fmt.Errorf("extract pdf text failed: %w", err)
		}
		return text, nil
	}
	raw, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("read %s failed: %w", path, err)
	}
	return string(raw), nil
}
