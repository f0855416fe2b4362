package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/courier-mq/courier/internal/pubsub"
	"github.com/courier-mq/courier/internal/watcher"
	"github.com/courier-mq/courier/queue"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print queue activity as it happens",
	Long: `Watch the queue directory with fsnotify and print a line for each
element added or removed. Only the file system backends (dirq,
simple) can be watched; the sqlite backend has no directory to
observe. Stop with Ctrl+C.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Queue.Path == "" {
		return fmt.Errorf("no queue configured: use --queue, COURIER_QUEUE_PATH, or the config file")
	}
	if cfg.Queue.Type == queue.TypeSQLite {
		return fmt.Errorf("watch needs a file system backend (dirq or simple)")
	}

	w, err := watcher.New(watcher.DefaultConfig(cfg.Queue.Path))
	if err != nil {
		return err
	}
	if _, err := w.Start(); err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	events := w.Events().Subscribe(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Fprintf(cmd.OutOrStdout(), "watching %s (Ctrl+C to stop)\n", cfg.Queue.Path)
	for {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(cmd.OutOrStdout(), "\nreceived %s, stopping\n", sig)
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			printActivity(cmd, event)
		}
	}
}

func printActivity(cmd *cobra.Command, event pubsub.Event[string]) {
	verb := "?"
	switch event.Type {
	case pubsub.ElementAddedEvent:
		verb = "added"
	case pubsub.ElementRemovedEvent:
		verb = "removed"
	case pubsub.ElementLockedEvent:
		verb = "locked"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %-8s %s\n",
		event.Timestamp.Format("15:04:05"), verb, event.Payload)
}
