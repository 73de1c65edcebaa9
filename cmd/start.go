package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"datakit/core/cluster"
	"datakit/core/config"
	"datakit/core/database"
	"datakit/core/logger"
	"datakit/feature/profile"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the datakit daemon",
	Long:  `Connects the database, ensures schemas and joins the cluster channel.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		// 2. Initialize Logger
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 3. Connect to Database
		conn, err := database.Open(cfg.Database, logg)
		if err != nil {
			logg.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer conn.Close()
		logg.Info("Connected to database", zap.String("driver", cfg.Database.Driver))

		// 4. Initialize Cluster Sync (Optional)
		// Sync is best-effort; the daemon runs single-process when Redis
		// is missing or disabled.
		var bus *cluster.Manager
		if cfg.Redis.Enabled {
			m := cluster.NewManager(cfg.Redis, logg)
			if m.Initialize() {
				bus = m
				defer m.Shutdown()
			} else {
				logg.Warn("Running without cross-server sync")
			}
		}

		// 5. Wire Features and Bootstrap Schemas
		svc := profile.NewService(conn, bus, "", logg)
		if changes, err := svc.Repository().EnsureTable(context.Background()); err != nil {
			logg.Fatal("Schema bootstrap failed", zap.Error(err))
		} else if len(changes) > 0 {
			logg.Info("Schema updated", zap.Strings("changes", changes))
		}

		logg.Info("DataKit started")

		// 6. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down...")
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
