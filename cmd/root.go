// Package cmd implements the courier command line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/courier-mq/courier/internal/config"
	"github.com/courier-mq/courier/internal/log"
	"github.com/courier-mq/courier/internal/tracing"
	"github.com/courier-mq/courier/queue"

	// Register queue backends
	_ "github.com/courier-mq/courier/queue/dirq"
	_ "github.com/courier-mq/courier/queue/simple"
	_ "github.com/courier-mq/courier/queue/sqlite"
)

var (
	version    = "dev"
	cfgFile    string
	debugFlag  bool
	cfg        config.Config
	logCleanup func()
)

var rootCmd = &cobra.Command{
	Use:   "courier",
	Short: "A message queue on a directory or SQLite file",
	Long: `Courier stores messages as named elements in a queue backed by the
file system (dirq, simple) or a SQLite database. Producers add
messages; consumers iterate, lock an element, read it and remove it.
The on-disk layout is safe for many concurrent processes, NFS
included.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/courier/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false,
		"enable debug logging (also COURIER_DEBUG)")
	rootCmd.PersistentFlags().StringP("queue", "q", "",
		"queue location: a directory (dirq, simple) or database file (sqlite)")
	rootCmd.PersistentFlags().StringP("type", "t", "",
		"queue backend: dirq, simple, or sqlite")

	_ = viper.BindPFlag("queue.path", rootCmd.PersistentFlags().Lookup("queue"))
	_ = viper.BindPFlag("queue.type", rootCmd.PersistentFlags().Lookup("type"))

	rootCmd.PersistentPreRunE = setupLogging
	rootCmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if logCleanup != nil {
			logCleanup()
		}
	}
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("queue.type", defaults.Queue.Type)
	viper.SetDefault("queue.granularity", defaults.Queue.Granularity)
	viper.SetDefault("queue.max_lock", defaults.Queue.MaxLock)
	viper.SetDefault("queue.max_temp", defaults.Queue.MaxTemp)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)
	viper.SetDefault("generator.body_size", defaults.Generator.BodySize)
	viper.SetDefault("generator.header_count", defaults.Generator.HeaderCount)
	viper.SetDefault("generator.key_size", defaults.Generator.KeySize)
	viper.SetDefault("generator.value_size", defaults.Generator.ValueSize)

	// COURIER_QUEUE_PATH, COURIER_TRACING_ENABLED and friends.
	viper.SetEnvPrefix("COURIER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .courier/config.yaml (current directory)
		// 2. ~/.config/courier/config.yaml (user config)
		if _, err := os.Stat(".courier/config.yaml"); err == nil {
			viper.SetConfigFile(".courier/config.yaml")
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "courier"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	// A missing config file is fine; defaults, env and flags apply.
	_ = viper.ReadInConfig()
	_ = viper.Unmarshal(&cfg)
}

func setupLogging(_ *cobra.Command, _ []string) error {
	if !debugFlag && os.Getenv("COURIER_DEBUG") == "" {
		return nil
	}
	logPath := os.Getenv("COURIER_LOG")
	if logPath == "" {
		logPath = "debug.log"
	}
	cleanup, err := log.InitWithTeaLog(logPath, "courier")
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	logCleanup = cleanup
	log.Info(log.CatCLI, "courier starting", "version", version, "logPath", logPath)
	return nil
}

// openQueue creates the configured queue, wrapped with tracing when
// enabled. The returned shutdown function closes the queue and flushes
// spans.
func openQueue(ctx context.Context) (queue.Queue, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if cfg.Queue.Path == "" {
		return nil, nil, fmt.Errorf("no queue configured: use --queue, COURIER_QUEUE_PATH, or the config file")
	}

	q, err := queue.New(cfg.Queue)
	if err != nil {
		return nil, nil, err
	}

	tc := cfg.Tracing
	if tc.Enabled && tc.Exporter == "file" && tc.FilePath == "" {
		tc.FilePath = config.DefaultTracesFilePath()
	}
	provider, err := tracing.NewProvider(tc)
	if err != nil {
		_ = q.Close()
		return nil, nil, fmt.Errorf("initializing tracing: %w", err)
	}

	shutdown := func() {
		_ = q.Close()
		_ = provider.Shutdown(context.Background())
	}
	if provider.Enabled() {
		qType := cfg.Queue.Type
		if qType == "" {
			qType = queue.TypeDirq
		}
		return tracing.WrapQueue(q, provider.Tracer(), qType, cfg.Queue.Path), shutdown, nil
	}
	return q, shutdown, nil
}

// Execute runs the root command
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
