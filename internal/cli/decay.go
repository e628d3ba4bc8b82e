package cli

import (
	"github.com/spf13/cobra"

	"github.com/Jerrylingj/MemoLite/pkg/memory"
)

type decayOutput struct {
	Days    float64                   `json:"days"`
	Decayed int                       `json:"decayed"`
	Current map[string]*memory.Record `json:"current"`
}

func newDecayCmd(flags *globalFlags) *cobra.Command {
	var days float64

	cmd := &cobra.Command{
		Use:   "decay",
		Short: "Apply time decay and show the current values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := openClient(cmd, flags)
			if err != nil {
				return err
			}
			defer client.Close()

			out := decayOutput{
				Days:    days,
				Decayed: client.ApplyTimeDecay(days),
				Current: make(map[string]*memory.Record),
			}
			for _, key := range client.Keys() {
				if rec, ok := client.Current(key); ok {
					out.Current[key] = rec
				}
			}
			return printJSON(cmd, out)
		},
	}

	cmd.Flags().Float64VarP(&days, "days", "d", 1, "Days passed")
	return cmd
}
