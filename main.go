package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/example/lingobot/internal/access"
	"github.com/example/lingobot/internal/bot"
	"github.com/example/lingobot/internal/config"
	"github.com/example/lingobot/internal/database"
	"github.com/example/lingobot/internal/excel"
	"github.com/example/lingobot/internal/logger"
	"github.com/example/lingobot/internal/review"
	"github.com/example/lingobot/internal/rounds"
	"github.com/example/lingobot/internal/scheduler"
	"github.com/example/lingobot/internal/session"
)

func main() {
	importPath := flag.String("import", "", "import curriculum from an xlsx/csv file and exit")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zlog.Sync()

	if err := database.Connect(cfg); err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	if *importPath != "" {
		importCfg := excel.DefaultImportConfig()
		importCfg.FilePath = *importPath

		result, err := excel.ImportEntities(context.Background(), importCfg)
		if err != nil {
			zlog.Fatal("import failed", zap.Error(err))
		}
		zlog.Info("import finished",
			zap.Int("processed", result.TotalProcessed),
			zap.Int("created", result.Created),
			zap.Int("updated", result.Updated),
			zap.Int("skipped", result.Skipped),
			zap.Int("errors", len(result.Errors)))
		for _, e := range result.Errors {
			zlog.Warn("import row error", zap.String("detail", e))
		}
		return
	}

	store := review.NewStore(cfg, database.NewMemoryRecordRepository(), database.NewSkipRepository())
	gate := access.New(cfg, database.NewModuleProgressRepository())
	evaluator := rounds.New(cfg, database.NewRoundRepository(), gate)
	manager := session.NewManager(cfg, store, database.NewEntityRepository(), gate, database.NewUserRepository(), zlog)

	b, err := bot.New(cfg, manager, gate, evaluator, zlog)
	if err != nil {
		zlog.Fatal("failed to create bot", zap.Error(err))
	}

	sched := scheduler.New(cfg, b, zlog)
	sched.Start()
	defer sched.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})

	go func() {
		sig := <-sigChan
		zlog.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := b.Stop(shutdownCtx); err != nil {
			zlog.Error("error during shutdown", zap.Error(err))
		}

		close(done)
	}()

	go func() {
		if err := b.Start(ctx); err != nil && err != context.Canceled {
			zlog.Error("bot error", zap.Error(err))
		}
	}()

	zlog.Info("lingobot started, press Ctrl+C to stop")
	<-done
	zlog.Info("stopped")
}
