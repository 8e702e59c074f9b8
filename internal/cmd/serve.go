package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/aniquiz/aniquiz/internal/config"
	errwrap "github.com/aniquiz/aniquiz/internal/errors"
	"github.com/aniquiz/aniquiz/internal/observability"
	"github.com/aniquiz/aniquiz/internal/server"
	"github.com/aniquiz/aniquiz/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// cacheHealthChecker verifies the cache backend answers a lookup.
type cacheHealthChecker struct {
	stack *quizStack
}

func (c cacheHealthChecker) CheckHealth(ctx context.Context) error {
	if c.stack.Cache == nil {
		return errwrap.NewInternalError("cache backend not initialized")
	}
	if _, _, err := c.stack.Cache.Get(ctx, "health", "probe"); err != nil {
		return errwrap.NewInternalError("cache backend unavailable")
	}
	return nil
}

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// throttleHealthChecker reports degraded readiness during an active pause.
type throttleHealthChecker struct {
	stack *quizStack
}

func (t throttleHealthChecker) CheckHealth(ctx context.Context) error {
	if t.stack.Governor == nil {
		return errwrap.NewInternalError("rate governor not initialized")
	}
	if t.stack.Governor.Snapshot().PauseActive(time.Now().UTC()) {
		return errwrap.NewRateLimitedError("upstream throttling pause active")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the quiz HTTP server with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config reload (placeholder - restart recommended)

The server will cleanly shut down the HTTP server and flush logs on shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Get()
		if err != nil {
			return errwrap.FromDomainError(cmd.Context(), err)
		}

		logLevel := cfg.Logging.Level
		observability.InitServerLogger(binaryName, logLevel)

		metricsPort := cfg.Metrics.Port
		if metricsPort == 0 {
			metricsPort = 9090
		}

		if err := observability.InitMetrics(binaryName, metricsPort); err != nil {
			observability.ServerLogger.Error("Failed to initialize metrics",
				zap.Error(err))
			return errwrap.FromDomainError(cmd.Context(), err)
		}

		host := serverHost
		if host == "" {
			host = cfg.Server.Host
		}
		port := serverPort
		if port == 0 {
			port = cfg.Server.Port
		}

		observability.ServerLogger.Info("Initializing server",
			zap.String("service", binaryName),
			zap.String("version", versionInfo.Version),
			zap.String("host", host),
			zap.Int("port", port),
			zap.Int("metrics_port", metricsPort))

		stack, err := buildQuizStack(cmd.Context(), cfg, observability.ServerLogger, true)
		if err != nil {
			return errwrap.FromDomainError(cmd.Context(), err)
		}

		// Health manager with component checkers
		hm := handlers.NewHealthManager(versionInfo.Version)
		hm.RegisterChecker("cache", cacheHealthChecker{stack: stack})
		hm.RegisterChecker("telemetry", telemetryHealthChecker{})
		hm.RegisterChecker("anilist_budget", throttleHealthChecker{stack: stack})

		quiz := &handlers.QuizHandler{
			Assembler:       stack.Assembler,
			Fetch:           stack.Fetch,
			Governor:        stack.Governor,
			DefaultYearFrom: cfg.Quiz.YearFrom,
			DefaultYearTo:   cfg.Quiz.YearTo,
		}
		handlers.SetVersionInfo(versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)

		srv := server.New(host, port, quiz, hm)

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Graceful shutdown handlers (LIFO order - last registered, first executed)
		// Handler 1: Flush logger (executed last)
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Flushing logger...")
			if err := observability.ServerLogger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				observability.ServerLogger.Warn("Logger sync returned error (may be benign)",
					zap.Error(err))
			}
			return nil
		})

		// Handler 2: Release the cache backend and stop the governor timer
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Closing quiz engine...")
			stack.Close()
			return nil
		})

		// Handler 3: Shutdown HTTP server (executed first)
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.FromDomainError(ctx, err)
			}

			observability.ServerLogger.Info("HTTP server stopped gracefully")
			return nil
		})

		// Config reload handler (SIGHUP)
		signals.OnReload(func(ctx context.Context) error {
			observability.ServerLogger.Info("Received SIGHUP: attempting config reload")

			if _, err := config.Load(cfgFile); err != nil {
				observability.ServerLogger.Error("Failed to reload config",
					zap.Error(err))
				return errwrap.FromDomainError(ctx, err)
			}

			observability.ServerLogger.Info("Configuration reloaded successfully",
				zap.String("file", config.FileUsed()))

			// Engine components keep their startup settings until restart.
			return nil
		})

		// Enable double-tap force quit (Ctrl+C within 2 seconds)
		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			observability.ServerLogger.Warn("Failed to enable double-tap force quit",
				zap.Error(err))
		}

		// Start server in background goroutine
		errChan := make(chan error, 1)
		go func() {
			observability.ServerLogger.Info("Starting HTTP server...",
				zap.String("host", host),
				zap.Int("port", port))
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		// Start signal listener in background
		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				observability.ServerLogger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		// Wait for error or shutdown completion
		if err := <-errChan; err != nil {
			return errwrap.FromDomainError(cmd.Context(), err)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host (overrides config)")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "server port (overrides config)")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
