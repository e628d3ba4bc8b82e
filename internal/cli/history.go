package cli

import (
	"github.com/spf13/cobra"

	"github.com/Jerrylingj/MemoLite/pkg/memory"
)

type historyOutput struct {
	Key      string                 `json:"key"`
	Versions []memory.VersionRecord `json:"versions"`
	Current  *memory.Record         `json:"current"`
}

func newHistoryCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "history [key]",
		Short: "Show the version log and current value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := openClient(cmd, flags)
			if err != nil {
				return err
			}
			defer client.Close()

			current, _ := client.Current(args[0])
			return printJSON(cmd, historyOutput{
				Key:      args[0],
				Versions: client.History(args[0]),
				Current:  current,
			})
		},
	}
}
