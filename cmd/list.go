package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List element names in the queue",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	q, shutdown, err := openQueue(cmd.Context())
	if err != nil {
		return err
	}
	defer shutdown()

	name, err := q.First(cmd.Context())
	if err != nil {
		return err
	}
	for name != "" {
		fmt.Fprintln(cmd.OutOrStdout(), name)
		name, err = q.Next(cmd.Context())
		if err != nil {
			return err
		}
	}
	return nil
}
