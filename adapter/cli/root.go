// Package cli is the tweetsweep command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tweetsweep/internal/app"
	"github.com/felixgeelhaar/tweetsweep/internal/purge/application"
	"github.com/felixgeelhaar/tweetsweep/pkg/config"
	"github.com/felixgeelhaar/tweetsweep/pkg/observability"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitSetup   = 1
	ExitAborted = 2
)

var (
	cfgFile   string
	verbose   bool
	logger    *slog.Logger
	container *app.Container
)

type commandContext struct {
	runID     string
	startedAt time.Time
}

type commandContextKey struct{}

// rootCmd deletes tweets when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "tweetsweep",
	Short: "Bulk delete your tweets within the X API rate limits",
	Long: `tweetsweep deletes tweets from the authenticated X account.

Tweets come either from the API timeline (cached locally while fetching) or
from a downloaded archive. Every deletion is written to a ledger so an
interrupted run resumes where it stopped.

Examples:
  tweetsweep --dry-run --before 2020-01-01
  tweetsweep --archive data/tweets.js --contains "crypto"
  tweetsweep --before 2019-06-01 --exclude "#keep" --yes`,
	Args:              cobra.NoArgs,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		info, ok := cmd.Context().Value(commandContextKey{}).(commandContext)
		if !ok || logger == nil {
			return
		}
		logger.Debug("command end",
			"command", cmd.CommandPath(),
			"run_id", info.runID,
			"duration_ms", time.Since(info.startedAt).Milliseconds(),
		)
	},
	RunE: runPurge,
}

// setup loads the configuration and builds the container before any command.
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger = app.NewLogger(cfg, verbose, Version)
	slog.SetDefault(logger)
	container = app.NewContainer(cfg, logger)

	info := commandContext{
		runID:     uuid.NewString(),
		startedAt: time.Now(),
	}
	ctx := observability.WithRunID(cmd.Context(), info.runID)
	cmd.SetContext(context.WithValue(ctx, commandContextKey{}, info))
	logger.DebugContext(ctx, "command start", "command", cmd.CommandPath())
	return nil
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	if container != nil {
		if cerr := container.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return ExitCode(err)
}

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, application.ErrRunAborted), errors.Is(err, application.ErrInterrupted):
		return ExitAborted
	default:
		return ExitSetup
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	registerPurgeFlags(rootCmd)
}

// AddCommand adds a command to the root command.
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

// GetContainer returns the container built for the running command.
func GetContainer() *app.Container {
	return container
}

// Logger returns the command logger, or slog.Default before setup.
func Logger() *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// SetOutput redirects command output and input. Tests use it.
func SetOutput(out io.Writer, in io.Reader) {
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetIn(in)
}

// SetArgs replaces os.Args for the next Execute. Tests use it.
func SetArgs(args []string) {
	rootCmd.SetArgs(args)
}
