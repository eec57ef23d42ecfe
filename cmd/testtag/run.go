package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/c360studio/testtag/config"
	"github.com/c360studio/testtag/events"
	"github.com/c360studio/testtag/output"
	"github.com/c360studio/testtag/processor/rewriter"
)

func runCmd(g *globalFlags) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run [paths...]",
		Short: "Tag test classes below the given paths",
		Long: `Tag test classes below the given paths (default: the configured paths,
or the current directory). Files are rewritten in place unless --dry-run
is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, g, args)
			if err != nil {
				return err
			}
			if dryRun {
				cfg.Mode = string(rewriter.ModeDryRun)
			}

			report, err := runOnce(cmd.Context(), cfg, logger, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if failed := len(report.Failed()); failed > 0 {
				return &codeError{code: exitError, err: fmt.Errorf("%d of %d files failed", failed, len(report.Files))}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Report changes without writing files")
	return cmd
}

func checkCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check [paths...]",
		Short: "Report untagged test classes without changing files",
		Long: `Report untagged test classes without changing files.

Exits with status 3 when at least one file needs tags, which makes it usable
as a CI gate.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, g, args)
			if err != nil {
				return err
			}
			cfg.Mode = string(rewriter.ModeDryRun)

			report, err := runOnce(cmd.Context(), cfg, logger, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if failed := len(report.Failed()); failed > 0 {
				return &codeError{code: exitError, err: fmt.Errorf("%d of %d files failed", failed, len(report.Files))}
			}
			if report.Changed() > 0 {
				return &codeError{code: exitChanges}
			}
			return nil
		},
	}
}

// runOnce resolves the configured files, runs the recipe over them and
// renders the report.
func runOnce(ctx context.Context, cfg *config.Config, logger *slog.Logger, w io.Writer, opts ...rewriter.Option) (*rewriter.Report, error) {
	files, err := rewriter.ResolveFiles(cfg.FileSet())
	if err != nil {
		return nil, fmt.Errorf("resolve files: %w", err)
	}
	logger.Debug("Resolved files", "count", len(files), "paths", cfg.Paths)

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer publisher.Close()

	runner, err := newRunner(cfg, logger, append([]rewriter.Option{rewriter.WithPublisher(publisher)}, opts...)...)
	if err != nil {
		return nil, err
	}

	report, runErr := runner.Run(ctx, files)
	if report != nil {
		if err := render(w, cfg, report); err != nil {
			return report, err
		}
	}
	if runErr != nil {
		return report, fmt.Errorf("run: %w", runErr)
	}
	return report, nil
}

func newRunner(cfg *config.Config, logger *slog.Logger, opts ...rewriter.Option) (*rewriter.Runner, error) {
	return rewriter.New(rewriter.Config{
		Mode:     rewriter.Mode(cfg.Mode),
		Workers:  cfg.Workers,
		FailFast: cfg.FailFast,
		Diff:     cfg.Output.Diff,
	}, append([]rewriter.Option{rewriter.WithLogger(logger)}, opts...)...)
}

// newPublisher connects to NATS when an events URL is configured.
func newPublisher(cfg *config.Config, logger *slog.Logger) (events.Publisher, error) {
	if cfg.Events.NATSURL == "" {
		return events.NopPublisher{}, nil
	}
	p, err := events.Connect(cfg.Events.NATSURL, cfg.Events.SubjectPrefix)
	if err != nil {
		return nil, err
	}
	logger.Info("Publishing change events",
		"url", cfg.Events.NATSURL,
		"subject", events.Subject(cfg.Events.SubjectPrefix, cfg.Mode))
	return p, nil
}

func render(w io.Writer, cfg *config.Config, report *rewriter.Report) error {
	r, err := output.New(output.Format(cfg.Output.Format), output.Options{
		Color:   useColor(cfg.Output.Color),
		Diff:    cfg.Output.Diff,
		Verbose: cfg.Output.Verbose,
	})
	if err != nil {
		return err
	}
	return r.Render(w, report)
}
