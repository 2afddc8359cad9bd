package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	url        string
	username   string
	password   string
	language   string
	timeout    time.Duration
	batch      bool
	verbose    bool
	jsonOutput bool
	ledgerPath string

	logger zerolog.Logger
}

// NewRootCmd builds the labbcat command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "labbcat",
		Short: "LaBB-CAT corpus client",
		Long: `A command line client for LaBB-CAT linguistic corpus servers.

The server is taken from --url, LABBCAT_URL, the nearest labbcat.toml, or
~/.labbcat/config.toml, in that order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.InfoLevel
			if opts.verbose {
				level = zerolog.DebugLevel
			}
			opts.logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}).
				Level(level).
				With().Timestamp().Logger()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.url, "url", "", "LaBB-CAT server URL")
	flags.StringVarP(&opts.username, "username", "u", "", "Username for the server")
	flags.StringVar(&opts.password, "password", "", "Password for the server")
	flags.StringVar(&opts.language, "language", "", "Language for server messages, e.g. es-AR")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Request timeout (default 3m)")
	flags.BoolVar(&opts.batch, "batch", false, "Never prompt for credentials")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log requests and task progress")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")
	flags.StringVar(&opts.ledgerPath, "ledger", "", "Task ledger database (default ~/.labbcat/tasks.db)")
	flags.MarkHidden("ledger")

	rootCmd.AddCommand(
		newIDCmd(opts),
		newInfoCmd(opts),
		newLayersCmd(opts),
		newLayerCmd(opts),
		newCorporaCmd(opts),
		newParticipantsCmd(opts),
		newTranscriptsCmd(opts),
		newAnnotationsCmd(opts),
		newSearchCmd(opts),
		newTaskCmd(opts),
		newFragmentsCmd(opts),
		newUploadCmd(opts),
		newDeleteCmd(opts),
		newAdminCmd(opts),
		newCallCmd(opts),
	)

	return rootCmd
}

// run executes the CLI with os.Args and returns its exit code. Cancelling
// ctx abandons the running command.
func run(ctx context.Context) int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		printError(os.Stderr, err, false)
		return ExitGeneralError
	}

	rootCmd := NewRootCmd()
	rootCmd.SetContext(ctx)
	cmd, err := rootCmd.ExecuteC()
	if err != nil {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		printError(cmd.ErrOrStderr(), err, jsonOutput)
		return mapErrorToExitCode(err)
	}
	return ExitSuccess
}
