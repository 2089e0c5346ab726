// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/carterperez-dev/sessionguard/internal/config"
	"github.com/carterperez-dev/sessionguard/internal/core"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	down := flag.Int("down", 0, "roll back this many migrations instead of applying")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := run(*configPath, *down, logger); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, down int, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.New(configPath)
	if err != nil {
		return err
	}

	if down > 0 {
		if err := core.MigrateDown(cfg.Database, down); err != nil {
			return err
		}
		logger.Info("migrations rolled back",
			"driver", cfg.Database.Driver,
			"steps", down,
		)
		return nil
	}

	if err := core.Migrate(ctx, cfg.Database); err != nil {
		return err
	}
	logger.Info("migrations applied", "driver", cfg.Database.Driver)
	return nil
}
