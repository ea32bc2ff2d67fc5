package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"adpulse/internal/config"
	"adpulse/internal/logger"
	"adpulse/internal/store"
)

// NewCacheCmd creates the cache management command
func NewCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the persisted analysis cache",
		Long:  `Inspect, clean, and manage the SQLite cache holding generated analyses.`,
	}

	// Add subcommands
	cacheCmd.AddCommand(newCacheStatsCmd())
	cacheCmd.AddCommand(newCachePurgeCmd())

	return cacheCmd
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		Long:  `Display the number of live entries in the analysis cache.`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runCacheStats(cmd); err != nil {
				logger.Error("Failed to get cache stats", err)
				os.Exit(1)
			}
		},
	}
}

func newCachePurgeCmd() *cobra.Command {
	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove expired entries from the cache",
		Long:  `Delete every cache row whose retention window has elapsed.`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runCachePurge(cmd); err != nil {
				logger.Error("Failed to purge cache", err)
				os.Exit(1)
			}
		},
	}

	return purgeCmd
}

func runCacheStats(cmd *cobra.Command) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cacheStore, err := store.NewStore(cfg.Cache.Directory, cfg.Cache.TTLDuration())
	if err != nil {
		return fmt.Errorf("failed to initialize cache store: %w", err)
	}
	defer func() {
		if err := cacheStore.Close(); err != nil {
			logger.Error("Failed to close cache store", err)
		}
	}()

	rows, err := cacheStore.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get cache statistics: %w", err)
	}

	fmt.Println("📊 Cache Statistics")
	fmt.Println("==================")
	fmt.Printf("📄 Live rows: %d\n", rows)
	fmt.Printf("📁 Directory: %s\n", cfg.Cache.Directory)
	fmt.Printf("⏳ Retention: %s\n", cfg.Cache.TTLDuration())

	return nil
}

func runCachePurge(cmd *cobra.Command) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cacheStore, err := store.NewStore(cfg.Cache.Directory, cfg.Cache.TTLDuration())
	if err != nil {
		return fmt.Errorf("failed to initialize cache store: %w", err)
	}
	defer func() {
		if err := cacheStore.Close(); err != nil {
			logger.Error("Failed to close cache store", err)
		}
	}()

	fmt.Println("🗑️  Purging expired entries...")
	removed, err := cacheStore.Purge(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to purge cache: %w", err)
	}

	fmt.Printf("✅ Removed %d expired rows\n", removed)
	return nil
}
