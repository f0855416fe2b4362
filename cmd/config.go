package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/courier-mq/courier/internal/config"
	"github.com/courier-mq/courier/queue"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the courier configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented default config file",
	RunE:  runConfigInit,
}

var configUseCmd = &cobra.Command{
	Use:   "use PATH",
	Short: "Set the default queue in the config file",
	Long: `Save the given queue location (and optionally --type) as the default
queue in the config file. Comments in other sections are preserved.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigUse,
}

var configUseType string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configUseCmd)

	configUseCmd.Flags().StringVar(&configUseType, "type", "", "queue backend: dirq, simple, or sqlite")
}

// configPath returns the config file in use, or the default user path
// when none was loaded.
func configPath() string {
	if path := viper.ConfigFileUsed(); path != "" {
		return path
	}
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path := configPath()
	if path == "" {
		return fmt.Errorf("cannot determine config path")
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := config.WriteDefaultConfig(path); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func runConfigUse(cmd *cobra.Command, args []string) error {
	qc := queue.Config{
		Type: configUseType,
		Path: args[0],
	}
	if err := config.ValidateQueue(qc); err != nil {
		return err
	}

	path := configPath()
	if path == "" {
		return fmt.Errorf("cannot determine config path")
	}
	if err := config.SaveQueue(path, qc); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "default queue set to %s in %s\n", args[0], path)
	return nil
}
