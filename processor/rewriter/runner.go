// Package rewriter runs the test tag recipe over source files.
package rewriter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/c360studio/testtag/events"
	"github.com/c360studio/testtag/processor/ast"
	"github.com/c360studio/testtag/recipe"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Config controls a Runner.
type Config struct {
	Mode Mode
	// Workers bounds the number of files processed concurrently.
	// Zero means GOMAXPROCS.
	Workers int
	// FailFast stops the run at the first failed file.
	FailFast bool
	// Diff records a unified diff for each changed file.
	Diff bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithMetrics sets the collectors updated per file.
func WithMetrics(m *Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithPublisher sets the change event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(r *Runner) { r.publisher = p }
}

// WithRegistry sets the host registry. Defaults to ast.DefaultRegistry.
func WithRegistry(reg *ast.HostRegistry) Option {
	return func(r *Runner) { r.registry = reg }
}

// WithWriteHook sets a function called after a file is written.
func WithWriteHook(fn func(path string, content []byte)) Option {
	return func(r *Runner) { r.onWrite = fn }
}

// Runner applies the recipe to files, one host per file.
type Runner struct {
	config    Config
	recipe    *recipe.Recipe
	registry  *ast.HostRegistry
	logger    *slog.Logger
	metrics   *Metrics
	publisher events.Publisher
	onWrite   func(path string, content []byte)
}

// New creates a Runner.
func New(cfg Config, opts ...Option) (*Runner, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModeDryRun
	}
	if !cfg.Mode.IsValid() {
		return nil, fmt.Errorf("invalid mode %q", cfg.Mode)
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers must be >= 0, got %d", cfg.Workers)
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}

	r := &Runner{
		config:    cfg,
		recipe:    recipe.New(),
		registry:  ast.DefaultRegistry,
		logger:    slog.Default(),
		publisher: events.NopPublisher{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Mode returns the configured mode.
func (r *Runner) Mode() Mode {
	return r.config.Mode
}

// Run processes sources and returns a report with results in input order.
// Per-file failures are recorded in the report; Run returns an error only
// when ctx is cancelled or, with FailFast, when a file fails.
func (r *Runner) Run(ctx context.Context, files []Source) (*Report, error) {
	report := &Report{
		RunID:     uuid.New().String(),
		Mode:      r.config.Mode,
		StartedAt: time.Now(),
		Files:     make([]FileResult, len(files)),
	}
	logger := r.logger.With("run_id", report.RunID, "mode", r.config.Mode)
	logger.Debug("Run started", "files", len(files), "workers", r.config.Workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Workers)

	processed := make([]bool, len(files))
	for i, file := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := r.ProcessFile(gctx, report.RunID, file)
			report.Files[i] = res
			processed[i] = true
			if res.Err != nil && r.config.FailFast {
				return fmt.Errorf("%s: %w", file.Path, res.Err)
			}
			return nil
		})
	}
	err := g.Wait()

	// Drop slots for files never reached after cancellation.
	kept := report.Files[:0]
	for i, res := range report.Files {
		if processed[i] {
			kept = append(kept, res)
		}
	}
	report.Files = kept
	report.Duration = time.Since(report.StartedAt)

	logger.Info("Run finished",
		"files", len(report.Files),
		"changed", report.Changed(),
		"failed", len(report.Failed()),
		"duration", report.Duration)

	if err == nil {
		err = ctx.Err()
	}
	return report, err
}

// ProcessFile reads, rewrites and, in apply mode, writes a single file.
// The recipe sees file.Rel; everything else uses file.Path.
func (r *Runner) ProcessFile(ctx context.Context, runID string, file Source) (res FileResult) {
	path := file.Path
	start := time.Now()
	res.Path = path
	defer func() {
		res.Duration = time.Since(start)
		if res.Err != nil {
			res.Error = res.Err.Error()
			r.logger.Warn("File failed", "path", path, "error", res.Err)
		}
		r.metrics.observe(res)
	}()

	src, err := os.ReadFile(path)
	if err != nil {
		res.Err = fmt.Errorf("read: %w", err)
		return res
	}

	out, err := r.rewrite(ctx, &res, file.Rel, src)
	if err != nil {
		res.Err = err
		return res
	}
	if bytes.Equal(src, out) {
		r.logger.Debug("File unchanged", "path", path)
		return res
	}

	res.Changed = true
	if r.config.Diff {
		res.Diff = UnifiedDiff(file.Rel, string(src), string(out))
	}

	if r.config.Mode == ModeApply {
		if err := writeFile(path, out); err != nil {
			res.Err = fmt.Errorf("write: %w", err)
			return res
		}
		if r.onWrite != nil {
			r.onWrite(path, out)
		}
	}
	r.logger.Debug("File rewritten", "path", path, "tags", len(res.Tags), "import_added", res.ImportAdded)

	r.publish(ctx, runID, res)
	return res
}

// Rewrite returns src with the recipe applied, without touching the file system.
// path is the project-relative source path the recipe classifies.
func (r *Runner) Rewrite(ctx context.Context, path string, src []byte) ([]byte, FileResult, error) {
	res := FileResult{Path: path}
	out, err := r.rewrite(ctx, &res, path, src)
	if err != nil {
		return nil, res, err
	}
	res.Changed = !bytes.Equal(src, out)
	return out, res, nil
}

func (r *Runner) rewrite(ctx context.Context, res *FileResult, sourcePath string, src []byte) ([]byte, error) {
	host, err := r.registry.CreateHostForExtension(filepath.Ext(sourcePath))
	if err != nil {
		return nil, err
	}
	if c, ok := host.(io.Closer); ok {
		defer c.Close()
	}

	cu, err := host.Parse(ctx, sourcePath, src)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	plan := r.recipe.Visit(cu)
	if plan.Empty() {
		return src, nil
	}

	out, err := host.Apply(cu, plan)
	if err != nil {
		return nil, fmt.Errorf("apply: %w", err)
	}

	for _, ins := range plan.Annotations {
		tr := TagResult{Class: ins.Class.SimpleName(), Tag: ins.Tag}
		if p, ok := ins.Class.(ast.Positioned); ok {
			tr.Line = p.StartLine()
		}
		res.Tags = append(res.Tags, tr)
	}
	res.ImportAdded = plan.AddImport
	if ic, ok := host.(ast.ImportCoverer); ok && ic.ImportCovered(cu, recipe.ImportTag) {
		res.ImportAdded = false
	}
	return out, nil
}

func (r *Runner) publish(ctx context.Context, runID string, res FileResult) {
	tags := make(map[string]int)
	for _, t := range res.Tags {
		tags[string(t.Tag)]++
	}
	ev := events.ChangeEvent{
		RunID:       runID,
		Mode:        string(r.config.Mode),
		Path:        res.Path,
		Tags:        tags,
		ImportAdded: res.ImportAdded,
		Timestamp:   time.Now().UTC(),
	}
	if err := r.publisher.Publish(ctx, ev); err != nil {
		r.logger.Warn("Failed to publish change event", "path", res.Path, "error", err)
	}
}

// writeFile replaces path with content through a temporary file in the same
// directory, keeping the original permissions.
func writeFile(path string, content []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	_, werr := tmp.Write(content)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, info.Mode().Perm()); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
