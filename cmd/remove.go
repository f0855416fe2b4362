package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove NAME",
	Short: "Remove an element from the queue",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	name := args[0]

	q, shutdown, err := openQueue(cmd.Context())
	if err != nil {
		return err
	}
	defer shutdown()

	ok, err := q.Lock(cmd.Context(), name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("element %s is locked by another consumer or gone", name)
	}
	return q.Remove(cmd.Context(), name)
}
