package cli

import (
	"github.com/spf13/cobra"

	"github.com/Jerrylingj/MemoLite/pkg/intelligence"
	"github.com/Jerrylingj/MemoLite/pkg/writer"
)

type statsOutput struct {
	Tiers  intelligence.Statistics `json:"tiers"`
	Writes map[writer.Strategy]int `json:"writes"`
	Keys   []string                `json:"keys"`
}

func newStatsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show tier and write statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := openClient(cmd, flags)
			if err != nil {
				return err
			}
			defer client.Close()

			return printJSON(cmd, statsOutput{
				Tiers:  client.Statistics(),
				Writes: client.WriteStatistics(),
				Keys:   client.Keys(),
			})
		},
	}
}
