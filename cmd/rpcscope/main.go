package main

import (
	"fmt"
	"os"

	"github.com/danmuck/rpcscope/internal/config"
	"github.com/danmuck/rpcscope/internal/observability"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type globalFlags struct {
	configPath string
	logLevel   string
	noColor    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "rpcscope",
		Short: "JSON-RPC 2.0 websocket client and inspector",
		Long: `rpcscope connects to a JSON-RPC 2.0 server over a websocket, logs every
frame it sends and receives, correlates responses with their requests and
checks each message against the protocol.

It can also run offline against a simulated peer, inspect exported logs,
and serve a small reference server for testing.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if flags.noColor {
				color.NoColor = true
			}
		},
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "config file (TOML)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level override (trace|debug|info|warn|error|disabled)")
	root.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		connectCmd(flags),
		validateCmd(),
		inspectCmd(),
		serveCmd(flags),
		configCmd(),
		versionCmd(),
	)
	return root
}

// loadConfig resolves the config file and sets up logging from it.
func loadConfig(flags *globalFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return config.Config{}, err
	}
	level := cfg.Log.Level
	if flags.logLevel != "" {
		level = flags.logLevel
	}
	observability.InitLogger("rpcscope", level)
	return cfg, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rpcscope %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
