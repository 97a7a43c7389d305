// mementod serves Memento TimeGates and TimeMaps over archived captures
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nainya/mementod/internal/config"
	"github.com/nainya/mementod/internal/logger"
	"github.com/nainya/mementod/pkg/snapshot"
)

var (
	cfgFile string
	manager *config.Manager
	log     *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mementod",
	Short: "Memento TimeGate and TimeMap server for archived web captures",
	Long: `mementod stores captures of web resources and answers Memento protocol
requests about them: TimeGates redirect to the capture current as of a
requested date, TimeMaps list every capture, and ServeContent returns one
capture together with links to its neighbors.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		m, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		for key, flag := range map[string]string{
			"database_path": "db",
			"log_level":     "log-level",
		} {
			if err := m.Viper().BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
				return fmt.Errorf("bind --%s: %w", flag, err)
			}
		}
		if err := m.Refresh(); err != nil {
			return err
		}
		manager = m

		cfg := m.Get()
		log = logger.InitGlobalLogger(logger.Config{
			Level:  cfg.LogLevel,
			Pretty: cfg.LogPretty,
			File:   cfg.LogFile,
			Output: os.Stderr,
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: mementod.yaml in ., $HOME/.mementod, /etc/mementod)")
	rootCmd.PersistentFlags().String("db", "", "catalog database path")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(serveCmd, ingestCmd, timemapCmd, timegateCmd)
}

// openCatalog opens the configured catalog behind its listing cache
func openCatalog(ctx context.Context) (*snapshot.Store, *snapshot.Cached, error) {
	cfg := manager.Get()
	store, err := snapshot.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	cached, err := snapshot.NewCached(store, cfg.CacheSize)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, cached, nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
