package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/courier-mq/courier/internal/ui/monitor"
	"github.com/courier-mq/courier/internal/watcher"
	"github.com/courier-mq/courier/queue"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live TUI showing queue counts and activity",
	Long: `Open a terminal UI with the element count, add/remove rates and a
rolling log of queue activity. Like watch, this needs a file system
backend (dirq or simple).`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	if cfg.Queue.Type == queue.TypeSQLite {
		return fmt.Errorf("monitor needs a file system backend (dirq or simple)")
	}

	q, shutdown, err := openQueue(cmd.Context())
	if err != nil {
		return err
	}
	defer shutdown()

	w, err := watcher.New(watcher.DefaultConfig(cfg.Queue.Path))
	if err != nil {
		return err
	}
	if _, err := w.Start(); err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	model := monitor.New(q, cfg.Queue.Path, w.Events())
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running monitor: %w", err)
	}
	return nil
}
