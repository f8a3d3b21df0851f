package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jcdickinson/anthocheck/internal/config"
	"github.com/jcdickinson/anthocheck/internal/report"
	"github.com/spf13/cobra"
)

// version is overridden at build time with
// -ldflags "-X github.com/jcdickinson/anthocheck/cmd.version=..."
var version = "dev"

// exitError makes a command exit with code without printing anything more.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	var ee *exitError
	switch {
	case err == nil:
		return report.ExitOK
	case errors.As(err, &ee):
		return ee.code
	default:
		fmt.Fprintf(stderr, "anthocheck: %v\n", err)
		return report.ExitMalformed
	}
}

// globals holds the persistent flags and what they set up.
type globals struct {
	configFile string
	debug      bool
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{logger: slog.Default()}
	opts := &checkOptions{globals: g}

	rootCmd := &cobra.Command{
		Use:   "anthocheck",
		Short: "Consistency checker for Markdown anthologies",
		Long: `anthocheck checks a collection of Markdown chapters against its table of
contents: missing chapters, orphaned documents, duplicate slugs, unknown or
misspelled authors and broken anchors. Without a subcommand it runs "check".`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			g.setupLogging(cmd.ErrOrStderr())
		},
		RunE: opts.run,
	}
	rootCmd.PersistentFlags().StringVarP(&g.configFile, "config", "c", "", "config file (default ./anthocheck.toml, then $XDG_CONFIG_HOME/anthocheck/anthocheck.toml)")
	rootCmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "log debug output to stderr")
	opts.registerFlags(rootCmd)

	rootCmd.AddCommand(newCheckCmd(g))
	rootCmd.AddCommand(newTocCmd(g))
	rootCmd.AddCommand(newAuthorsCmd(g))
	rootCmd.AddCommand(newMCPCmd(g))
	return rootCmd
}

func (g *globals) setupLogging(w io.Writer) {
	level := slog.LevelInfo
	if g.debug {
		level = slog.LevelDebug
	}
	g.logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(g.logger)
}

// loadConfig resolves and validates the configuration for cmd, whose flags
// must include config.RegisterFlags.
func (g *globals) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(g.configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	config.Log(cfg, g.logger)
	return cfg, nil
}
