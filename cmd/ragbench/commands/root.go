// Package commands defines all Cobra CLI commands for the ragbench binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/ragbench-go/internal/audit"
	"github.com/54b3r/ragbench-go/internal/config"
	"github.com/54b3r/ragbench-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragbench",
		Short: "ragbench: offline benchmark for document retrieval and reranking",
		Long: `ragbench measures how well lexical retrievers (BM25, TF-IDF), optionally
followed by rerankers, surface the relevant documents for a labelled query set.

Every retriever R forms a base strategy "R"; every reranker G applied to R's
output forms a strategy "R+G". Each strategy is scored with Precision@K,
Recall@K and NDCG@K and written as a CSV and a JSON report.

Settings come from flags, environment variables, or a YAML config file
(~/.ragbench/config.yaml). See 'ragbench run --help'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Load YAML config first so LOG_LEVEL/LOG_FORMAT from the file apply.
			path, err := config.Load(configPath, logging.New())
			if err != nil {
				return err
			}
			loadedConfigPath = path

			log := logging.New()
			cmd.SetContext(logging.WithLogger(cmd.Context(), log))

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.ragbench/config.yaml)")

	root.AddCommand(
		NewRunCmd(),
		NewInspectCmd(),
		NewVersionCmd(),
	)

	return root
}
