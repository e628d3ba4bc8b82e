package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Jerrylingj/MemoLite/pkg/memory"
)

type rollbackOutput struct {
	Key     string         `json:"key"`
	Version int            `json:"version"`
	OK      bool           `json:"ok"`
	Current *memory.Record `json:"current"`
}

func newRollbackCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback [key] [version]",
		Short: "Restore a key to a past version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[1], err)
			}

			client, err := openClient(cmd, flags)
			if err != nil {
				return err
			}
			defer client.Close()

			ok := client.Rollback(args[0], version)
			current, _ := client.Current(args[0])
			if err := printJSON(cmd, rollbackOutput{
				Key:     args[0],
				Version: version,
				OK:      ok,
				Current: current,
			}); err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("rollback of %q to version %d rejected", args[0], version)
			}
			return nil
		},
	}
}
