// Command gluetubed is the scheduler daemon: it loads configuration, opens
// the pipelines database and the encrypted store, binds the local socket,
// and serves RPC until signaled to stop.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ctomkow/gluetube/internal/config"
	"github.com/ctomkow/gluetube/internal/daemon"
	"github.com/ctomkow/gluetube/internal/db"
	"github.com/ctomkow/gluetube/internal/metrics"
	"github.com/ctomkow/gluetube/internal/store"
)

var (
	foreground bool
	background bool
	stop       bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "gluetubed",
	Short: "gluetube scheduler daemon",
	RunE:  runDaemon,
}

func init() {
	rootCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "run attached, logging to stderr")
	rootCmd.Flags().BoolVarP(&background, "background", "b", false, "log to GLUETUBE_LOG_FILE (the default); the process does not detach from the terminal")
	rootCmd.Flags().BoolVarP(&stop, "stop", "s", false, "stop a running daemon")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "explicit config file path, overriding the search list")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	if stop {
		return stopDaemon()
	}

	locations := config.DefaultLocations()
	if configPath != "" {
		locations = append(locations, configPath)
	}
	cfg, err := config.Load(locations)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg.LogFile, foreground)
	slog.SetDefault(logger)

	lock, err := daemon.AcquireLock(cfg.PIDFile)
	if err != nil {
		if err == daemon.ErrAlreadyRunning {
			return fmt.Errorf("gluetubed already running (pid file %s locked)", cfg.PIDFile)
		}
		return err
	}
	defer lock.Close()

	database, err := db.Open(cfg.SQLiteDir, cfg.SQLiteAppName)
	if err != nil {
		return fmt.Errorf("opening pipelines db: %w", err)
	}
	defer database.Close()

	readDB, err := db.OpenReadOnly(cfg.SQLiteDir, cfg.SQLiteAppName)
	if err != nil {
		return fmt.Errorf("opening read-only pipelines db: %w", err)
	}
	defer readDB.Close()

	kv, err := store.Open(cfg.SQLiteDir, cfg.SQLiteKVName, cfg.SQLiteToken)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer kv.Close()

	shutdownMetrics, err := metrics.InstallStdoutExporter(logger)
	if err != nil {
		logger.Warn("metrics exporter unavailable", "error", err)
	}

	d := daemon.New(cfg, database, readDB, kv, logger)
	if err := d.Bind(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := d.Boot(ctx); err != nil {
		return fmt.Errorf("booting daemon: %w", err)
	}

	logger.Info("gluetubed started", "socket", cfg.SocketFile, "pid", os.Getpid())
	serveErr := d.Serve(ctx)
	if shutdownMetrics != nil {
		_ = shutdownMetrics(context.Background())
	}
	return serveErr
}

func stopDaemon() error {
	locations := config.DefaultLocations()
	if configPath != "" {
		locations = append(locations, configPath)
	}
	cfg, err := config.Load(locations)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(cfg.PIDFile)
	if err != nil {
		return fmt.Errorf("reading pid file: %w", err)
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return fmt.Errorf("parsing pid file: %w", err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(syscall.SIGTERM)
}

func newLogger(logFile string, foreground bool) *slog.Logger {
	if foreground || logFile == "" {
		return slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return slog.New(slog.NewJSONHandler(f, nil))
}
