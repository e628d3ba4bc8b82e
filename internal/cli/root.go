// Package cli implements the memolite CLI commands.
//
// Memory lives only as long as the process, so every command first replays a
// scenario file of writes into a fresh client and then reports on the result.
package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Jerrylingj/MemoLite/pkg/core"
)

type globalFlags struct {
	configPath string
	envPath    string
	scenario   string
	logLevel   string
}

// NewRootCmd builds the top-level command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "memolite",
		Short:         "In-memory agent memory with scoring, tiers, versions and semantic search",
		Long:          "Replays a scenario of memory writes into a fresh MemoLite client and reports tiers, search results, version history, decay and rollback as JSON.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file (YAML or JSON)")
	root.PersistentFlags().StringVar(&flags.envPath, "env", "", "Load configuration from this .env file")
	root.PersistentFlags().StringVarP(&flags.scenario, "file", "f", "", "Scenario file of writes to replay (YAML or JSON)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override the configured log level")

	root.AddCommand(
		newStatsCmd(flags),
		newSearchCmd(flags),
		newHistoryCmd(flags),
		newDecayCmd(flags),
		newRollbackCmd(flags),
		newIngestCmd(flags),
	)
	return root
}

func loadConfig(flags *globalFlags) (*core.Config, error) {
	var (
		cfg *core.Config
		err error
	)
	switch {
	case flags.configPath != "":
		cfg, err = core.LoadConfigFromFile(flags.configPath)
	case flags.envPath != "":
		cfg, err = core.LoadConfigFromEnvFile(flags.envPath)
	default:
		cfg, err = core.LoadConfigFromEnv()
	}
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	return cfg, nil
}

// openClient builds a client from the global flags and replays the scenario
// file into it, if one was given.
func openClient(cmd *cobra.Command, flags *globalFlags) (*core.Client, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level, err := core.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	client, err := core.NewClient(cfg, core.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	if flags.scenario != "" {
		sc, err := LoadScenario(flags.scenario)
		if err != nil {
			client.Close()
			return nil, err
		}
		if err := sc.Replay(cmd.Context(), client); err != nil {
			client.Close()
			return nil, err
		}
		logger.Debug("scenario replayed", "file", flags.scenario, "writes", len(sc.Writes))
	}
	return client, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}
