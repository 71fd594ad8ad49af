package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ilia01/issue-resource/internal/config"
	"github.com/Ilia01/issue-resource/internal/logging"
)

// Version is set at build time with -ldflags.
var Version = "dev"

var (
	rootCmd = &cobra.Command{
		Use:           "issue-resource",
		Short:         "Pipeline resource that tracks and opens issues",
		Long:          "issue-resource gates a pipeline on the state of a GitHub or GitLab issue and opens issues from job results.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
	}

	verbose     bool
	payloadFile string
	settings    *config.Settings

	checkHandler = handleCheck
	inHandler    = handleIn
	outHandler   = handleOut
)

// Execute runs the CLI. Invoked as check, in or out (the names the
// orchestrator calls under /opt/resource), the binary name selects the step.
func Execute() error {
	defer logging.Flush(2 * time.Second)

	rootCmd.SetArgs(resolveArgs(os.Args))
	if err := rootCmd.Execute(); err != nil {
		logging.CaptureError(err, "args", os.Args)
		return err
	}
	return nil
}

func resolveArgs(argv []string) []string {
	if len(argv) == 0 {
		return nil
	}
	switch name := filepath.Base(argv[0]); name {
	case "check", "in", "out":
		return append([]string{name}, argv[1:]...)
	}
	return argv[1:]
}

func setup(cmd *cobra.Command) error {
	loaded, err := config.Load(config.ConfigPath())
	if err != nil {
		return err
	}
	level, err := loaded.Level()
	if err != nil {
		return err
	}
	if verbose {
		level = slog.LevelDebug
	}

	if err := logging.Init(logging.Config{
		Level:     level,
		SentryDSN: loaded.SentryDSN,
		Env:       loaded.Env,
		Version:   Version,
		LogFile:   loaded.LogFile,
		Output:    cmd.ErrOrStderr(),
	}); err != nil {
		return err
	}
	settings = loaded
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&payloadFile, "payload", "", "Read the request from a YAML or JSON file instead of stdin")

	rootCmd.AddCommand(checkCmd, inCmd, outCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report the issue state as versions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return checkHandler(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

var inCmd = &cobra.Command{
	Use:   "in <destination>",
	Short: "Fetch step (no-op)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return inHandler(cmd.Context(), args[0], cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

var outCmd = &cobra.Command{
	Use:   "out <source>",
	Short: "Open an issue from params",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return outHandler(cmd.Context(), args[0], cmd.InOrStdin(), cmd.OutOrStdout())
	},
}
