package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/Jerrylingj/MemoLite/pkg/semantic"
)

func newSearchCmd(flags *globalFlags) *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memories by meaning",
		Long:  "Rank every remembered record by cosine similarity to the query and print the best matches.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := openClient(cmd, flags)
			if err != nil {
				return err
			}
			defer client.Close()

			query := strings.Join(args, " ")
			var results []semantic.Result
			if topK == 0 {
				results, err = client.RecallDefault(cmd.Context(), query)
			} else {
				results, err = client.Recall(cmd.Context(), query, topK)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, results)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Max results (0 uses the configured default)")
	return cmd
}
