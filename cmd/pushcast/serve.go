package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jpalmerr/pushcast"
	"github.com/jpalmerr/pushcast/config"
)

const (
	shutdownTimeout = 10 * time.Second
	defaultEnvFile  = ".env"
)

// newLogger creates a JSON logger for CLI use.
func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// parseLogLevel accepts debug, info, warn or error.
func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q (must be debug, info, warn or error)", s)
	}
	return level, nil
}

// serveCmd starts the Pushcast server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the push server",
	Long: `Start the Pushcast server.

The server will:
  - Load environment variables from .env (or --env-file) if present
  - Load configuration from the YAML file, or the built-in defaults
  - Serve the API and admin page on the configured port

Without a config file every setting comes from the environment: PORT,
VAPID_PUBLIC_KEY, VAPID_PRIVATE_KEY, VAPID_SUBJECT, PUSHCAST_TITLE,
PUSHCAST_HOST and PUSHCAST_PUBLIC_URL.

Under systemd with Type=notify, readiness is reported once the port is bound.
The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  pushcast serve
  pushcast serve -c /etc/pushcast/pushcast.yaml --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (optional)")
	serveCmd.Flags().String("env-file", defaultEnvFile, "dotenv file loaded before the config")
	serveCmd.Flags().String("log-level", "info", "log level: debug, info, warn or error")
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set. A missing default file is not an error.
func loadEnvFile(path string, explicit bool) error {
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// loadConfig reads the config file, or the built-in defaults when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default()
	}
	return config.Load(path)
}

func runServe(cmd *cobra.Command, args []string) error {
	levelName, _ := cmd.Flags().GetString("log-level")
	level, err := parseLogLevel(levelName)
	if err != nil {
		return err
	}
	logger := newLogger(level)

	envFile, _ := cmd.Flags().GetString("env-file")
	if err := loadEnvFile(envFile, cmd.Flags().Changed("env-file")); err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"source", configSource(configFile),
		"port", cfg.Port,
		"max_concurrency", cfg.Delivery.MaxConcurrency,
		"delivery_timeout", cfg.Delivery.Timeout.Duration().String(),
		"vapid_keys", keySource(cfg),
	)

	opts := append(config.BuildOptions(cfg),
		pushcast.WithLogger(logger),
		pushcast.WithReadyHook(func(addr net.Addr) {
			notifySystemd(logger, daemon.SdNotifyReady)
		}),
	)

	svc, err := pushcast.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create Pushcast: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start server - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- svc.Start(ctx)
	}()

	// wait for server to finish
	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		notifySystemd(logger, daemon.SdNotifyStopping)

		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}

// notifySystemd sends state to the service manager. Outside systemd this is a no-op.
func notifySystemd(logger *slog.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		logger.Warn("systemd notify failed", "state", state, "error", err)
		return
	}
	if sent {
		logger.Debug("systemd notified", "state", state)
	}
}

func configSource(path string) string {
	if path == "" {
		return "defaults"
	}
	return path
}

func keySource(cfg *config.Config) string {
	if cfg.HasKeys() {
		return "configured"
	}
	return "generated"
}
