// Package main provides the testtag binary entry point.
// testtag adds JUnit 5 @Tag("unit") or @Tag("integration") annotations to
// Java test classes so build tools can select test categories.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/c360studio/testtag/config"

	// Register language hosts via init()
	_ "github.com/c360studio/testtag/processor/ast/java"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "testtag"
)

// Exit codes.
const (
	exitOK      = 0
	exitError   = 1
	exitPanic   = 2
	exitChanges = 3
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(exitPanic)
		}
	}()

	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the command line and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var ce *codeError
	if errors.As(err, &ce) {
		if ce.err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", ce.err)
		}
		return ce.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitError
}

// codeError carries a specific exit code.
type codeError struct {
	code int
	err  error
}

func (e *codeError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *codeError) Unwrap() error { return e.err }

// globalFlags are the persistent flags shared by all commands.
type globalFlags struct {
	configPath string
	logLevel   string
	format     string
	color      string
	workers    int
	include    []string
	exclude    []string
	failFast   bool
	diff       bool
	verbose    bool
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Tag JUnit test classes as unit or integration tests",
		Long: `testtag adds @Tag("unit") or @Tag("integration") to JUnit 5 test classes
and imports org.junit.jupiter.api.Tag where needed.

A test class is tagged "integration" when it carries one of the Spring test
slice annotations (SpringBootTest, DataJpaTest, WebMvcTest, ...), and "unit"
otherwise. Classes that already have a @Tag are left alone.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML)")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVarP(&g.format, "format", "o", "", "Output format (text, json, markdown)")
	pf.StringVar(&g.color, "color", "", "Color output (auto, always, never)")
	pf.IntVarP(&g.workers, "workers", "j", 0, "Number of files processed concurrently")
	pf.StringSliceVar(&g.include, "include", nil, "Include glob, relative to each path (repeatable)")
	pf.StringSliceVar(&g.exclude, "exclude", nil, "Exclude glob, relative to each path (repeatable)")
	pf.BoolVar(&g.failFast, "fail-fast", false, "Stop at the first file that fails")
	pf.BoolVar(&g.diff, "diff", false, "Show a unified diff for each changed file")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "List unchanged files too")

	cmd.AddCommand(
		runCmd(g),
		checkCmd(g),
		watchCmd(g),
		describeCmd(),
		configCmd(g),
		versionCmd(),
	)

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}

// loadConfig layers the config files and then the command line flags, and
// installs the configured logger as the default.
func loadConfig(cmd *cobra.Command, g *globalFlags, paths []string) (*config.Config, *slog.Logger, error) {
	bootstrap := newLogger(cmd.ErrOrStderr(), g.logLevel)
	cfg, err := config.NewLoader(bootstrap).Load(g.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = strings.ToLower(g.logLevel)
	}
	if flags.Changed("format") {
		cfg.Output.Format = g.format
	}
	if flags.Changed("color") {
		cfg.Output.Color = g.color
	}
	if flags.Changed("workers") {
		cfg.Workers = g.workers
	}
	if flags.Changed("include") {
		cfg.Include = g.include
	}
	if flags.Changed("exclude") {
		cfg.Exclude = g.exclude
	}
	if flags.Changed("fail-fast") {
		cfg.FailFast = g.failFast
	}
	if flags.Changed("diff") {
		cfg.Output.Diff = g.diff
	}
	if flags.Changed("verbose") {
		cfg.Output.Verbose = g.verbose
	}
	if len(paths) > 0 {
		cfg.Paths = paths
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Log.Level)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// newLogger creates a text logger; unknown levels fall back to info.
func newLogger(w io.Writer, logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// useColor resolves the color mode against the terminal.
func useColor(mode string) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	default:
		return !color.NoColor
	}
}
