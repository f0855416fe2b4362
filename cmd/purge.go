package cmd

import (
	"github.com/spf13/cobra"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Reclaim stale locks and leftover temporary elements",
	Long: `Break locks older than queue.max_lock, delete temporary elements older
than queue.max_temp and remove empty past time buckets. Run this
periodically on queues shared by many processes; a crashed consumer
leaves its elements locked until purge frees them.`,
	RunE: runPurge,
}

func init() {
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(cmd *cobra.Command, _ []string) error {
	q, shutdown, err := openQueue(cmd.Context())
	if err != nil {
		return err
	}
	defer shutdown()

	return q.Purge(cmd.Context())
}
