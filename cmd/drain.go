package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/courier-mq/courier/internal/log"
)

var drainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Consume and remove every element in the queue",
	Long: `Iterate over the queue, lock each element, print its message and
remove it. Elements locked by other consumers are skipped. With
--quiet the messages are discarded without printing, which empties a
queue quickly.`,
	RunE: runDrain,
}

var drainQuiet bool

func init() {
	rootCmd.AddCommand(drainCmd)

	drainCmd.Flags().BoolVar(&drainQuiet, "quiet", false, "discard messages instead of printing them")
}

func runDrain(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	q, shutdown, err := openQueue(ctx)
	if err != nil {
		return err
	}
	defer shutdown()

	drained, skipped := 0, 0
	name, err := q.First(ctx)
	if err != nil {
		return err
	}
	for name != "" {
		ok, err := q.Lock(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			skipped++
			name, err = q.Next(ctx)
			if err != nil {
				return err
			}
			continue
		}

		msg, err := q.Get(ctx, name)
		if err != nil {
			return err
		}
		if !drainQuiet {
			fmt.Fprintf(cmd.OutOrStdout(), "--- %s\n", name)
			printMessage(cmd, msg)
		}
		if err := q.Remove(ctx, name); err != nil {
			return err
		}
		drained++

		name, err = q.Next(ctx)
		if err != nil {
			return err
		}
	}

	log.Info(log.CatCLI, "queue drained", "drained", drained, "skipped", skipped)
	fmt.Fprintf(cmd.OutOrStdout(), "drained %d element(s), skipped %d locked\n", drained, skipped)
	return nil
}
