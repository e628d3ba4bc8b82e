package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newIngestCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [text]",
		Short: "Extract memories from text with the configured LLM",
		Long:  "Send the text to the configured LLM, remember every extracted record and print how each one was filed. Requires LLM_PROVIDER.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := openClient(cmd, flags)
			if err != nil {
				return err
			}
			defer client.Close()

			results, err := client.Ingest(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printJSON(cmd, results)
		},
	}
}
