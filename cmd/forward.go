package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/courier-mq/courier/internal/cachemanager"
	"github.com/courier-mq/courier/internal/log"
	"github.com/courier-mq/courier/queue"
)

var forwardCmd = &cobra.Command{
	Use:   "forward",
	Short: "Shovel messages from the queue into another queue",
	Long: `Move every available element from the configured queue into the
destination queue. Messages whose checksum was already forwarded
within the dedup window are dropped instead of duplicated, so
re-running forward after a partial failure is safe.

Example:
  courier forward --queue /var/spool/in --to /var/spool/out
  courier forward --to out.db --to-type sqlite --dedup-window 5m`,
	RunE: runForward,
}

var (
	forwardTo     string
	forwardToType string
	forwardWindow time.Duration
)

func init() {
	rootCmd.AddCommand(forwardCmd)

	forwardCmd.Flags().StringVar(&forwardTo, "to", "", "destination queue location (required)")
	forwardCmd.Flags().StringVar(&forwardToType, "to-type", "", "destination backend (defaults to the source type)")
	forwardCmd.Flags().DurationVar(&forwardWindow, "dedup-window", 10*time.Minute, "how long forwarded checksums are remembered")
	_ = forwardCmd.MarkFlagRequired("to")
}

func runForward(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	src, shutdown, err := openQueue(ctx)
	if err != nil {
		return err
	}
	defer shutdown()

	dstType := forwardToType
	if dstType == "" {
		dstType = cfg.Queue.Type
	}
	dst, err := queue.New(queue.Config{
		Type:        dstType,
		Path:        forwardTo,
		Granularity: cfg.Queue.Granularity,
		MaxLock:     cfg.Queue.MaxLock,
		MaxTemp:     cfg.Queue.MaxTemp,
	})
	if err != nil {
		return fmt.Errorf("opening destination queue: %w", err)
	}
	defer dst.Close()

	dedup := cachemanager.NewDeduper(forwardWindow)

	forwarded, duplicates, skipped := 0, 0, 0
	name, err := src.First(ctx)
	if err != nil {
		return err
	}
	for name != "" {
		ok, err := src.Lock(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			skipped++
			name, err = src.Next(ctx)
			if err != nil {
				return err
			}
			continue
		}

		msg, err := src.Get(ctx, name)
		if err != nil {
			return err
		}

		if dedup.Seen(ctx, cachemanager.Checksum(msg.Checksum())) {
			duplicates++
			log.Debug(log.CatCLI, "dropping duplicate message", "element", name, "checksum", msg.Checksum())
		} else {
			if _, err := dst.Add(ctx, msg); err != nil {
				// Leave the element locked in the source rather than
				// risk losing it; purge will free it later.
				return fmt.Errorf("forwarding %s: %w", name, err)
			}
			forwarded++
		}

		if err := src.Remove(ctx, name); err != nil {
			return err
		}

		name, err = src.Next(ctx)
		if err != nil {
			return err
		}
	}

	log.Info(log.CatCLI, "forward complete",
		"forwarded", forwarded, "duplicates", duplicates, "skipped", skipped)
	fmt.Fprintf(cmd.OutOrStdout(), "forwarded %d element(s), dropped %d duplicate(s), skipped %d locked\n",
		forwarded, duplicates, skipped)
	return nil
}
