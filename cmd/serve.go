package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gamedata-sync/core/loader"
	"gamedata-sync/core/logger"
	"gamedata-sync/core/middleware/auth"
	"gamedata-sync/core/middleware/rayid"
	"gamedata-sync/core/synchronizer"

	"gamedata-sync/feature/gamedata"
	"gamedata-sync/feature/history"
	"gamedata-sync/feature/integrity"
	"gamedata-sync/feature/refresh"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "gamedata-sync/docs/swagger"
)

// backgroundSyncTimeout bounds syncs started over HTTP and by the scheduler.
const backgroundSyncTimeout = 30 * time.Minute

// @title Game Data Sync API
// @version 1.0
// @description API for the synchronized and decoded game-data snapshot.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and the sync scheduler",
	Long: `Starts the HTTP server, runs a startup sync and, when sync.interval_minutes is set,
refreshes the snapshot periodically.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}
		logg := a.logger
		defer logg.Sync()

		app := fiber.New(fiber.Config{
			DisableStartupMessage: true,
		})

		refreshSvc := refresh.NewService(a.syncer, logg, backgroundSyncTimeout)
		defer refreshSvc.Close()

		mgr := loader.NewManager(logg)
		mgr.Register(gamedata.NewFeature(a.snapshots, a.syncer, a.defaultLanguage(), logg))
		mgr.Register(refresh.NewFeature(refreshSvc))
		mgr.Register(integrity.NewFeature(a.integrityService()))
		mgr.Register(history.NewFeature(a.db, logg))

		// RayID first so every later log line carries it
		app.Use(rayid.New())

		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// docs stay public
		app.Get("/swagger/*", swagger.HandlerDefault)

		if a.cfg.Server.AuthEnabled() {
			app.Use(auth.New(auth.Config{ApiKey: a.cfg.Server.ApiKey}))
		} else {
			logg.Warn("No API key configured; the API is unauthenticated")
		}

		if err := mgr.LoadAll(app); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		go scheduleRefresh(ctx, a.syncer, logg, time.Duration(a.cfg.Sync.IntervalMinutes)*time.Minute)

		go func() {
			logg.Info("Starting server",
				zap.String("address", a.cfg.Server.Address()),
				zap.Strings("features", mgr.Enabled()),
			)
			if err := app.Listen(a.cfg.Server.Address()); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		cancel()
		_ = app.Shutdown()
	},
}

// scheduleRefresh runs a startup refresh and then one per interval until ctx ends.
// A zero interval only runs the startup refresh.
func scheduleRefresh(ctx context.Context, syncer *synchronizer.Synchronizer, logg *zap.Logger, interval time.Duration) {
	run := func(trigger string) {
		runCtx, cancel := context.WithTimeout(ctx, backgroundSyncTimeout)
		defer cancel()
		if err := syncer.Refresh(runCtx, trigger); err != nil && ctx.Err() == nil {
			logg.Error("Sync failed", zap.String("trigger", trigger), zap.Error(err))
		}
	}

	run(synchronizer.TriggerStartup)
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run(synchronizer.TriggerScheduled)
		}
	}
}

func init() {
	RootCmd.AddCommand(serveCmd)
}
