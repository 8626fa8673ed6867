package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/erickim73/lineclient/internal/config"
	"github.com/erickim73/lineclient/internal/console"
	"github.com/erickim73/lineclient/internal/history"
	"github.com/erickim73/lineclient/internal/logger"
	"github.com/erickim73/lineclient/internal/metrics"
	"github.com/erickim73/lineclient/pkg/client"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	report(os.Stdout, err)
}

// single error boundary: every failure is printed and the process ends normally
func report(out io.Writer, err error) {
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
	}
}

// shuts the metrics endpoint down. failures are logged, the session result stands
func stopMetrics(srv interface{ Shutdown(context.Context) error }, sessionID string, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := srv.Shutdown(ctx)
	if err != nil {
		slog.Warn("Failed to stop metrics server",
			"session_id", sessionID,
			"error", err,
		)
	}
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer, errOut io.Writer) error {
	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.SetOutput(errOut)

	// defaults, then config file, then explicitly set flags
	cfg := config.DefaultConfig()
	configFile, showHistory, err := config.ParseFlags(fs, cfg, args)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		config.ApplyFlags(fs, cfg)
	}

	err = cfg.Validate()
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// stdout belongs to the operator console, logs go to stderr
	logger.Init(cfg.LogLevel, cfg.LogFormat, errOut)

	if showHistory {
		return printHistory(out, cfg.HistoryDir)
	}

	sessionID := uuid.NewString()
	slog.Info("Starting session",
		"session_id", sessionID,
		"address", cfg.Address(),
		"network", cfg.Network,
		"terminator", cfg.GetTerminator().String(),
	)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	if cfg.MetricsPort > 0 {
		srv, err := metrics.NewServer(cfg.MetricsPort, reg)
		if err != nil {
			return err
		}
		srv.Start()
		defer stopMetrics(srv, sessionID, 5*time.Second)
	}

	var recorder history.Recorder = history.Nop{}
	if cfg.HistoryDir != "" {
		store, err := history.Open(cfg.HistoryDir)
		if err != nil {
			// transcript is optional, keep going without it
			slog.Warn("History store unavailable", "dir", cfg.HistoryDir, "error", err)
		} else {
			recorder = store
		}
	}
	defer recorder.Close()

	conn, err := client.NewClient(ctx, client.Options{
		Network:         cfg.Network,
		Address:         cfg.Address(),
		Terminator:      cfg.GetTerminator(),
		FlushAfterWrite: cfg.FlushAfterWrite,
		BufferSize:      cfg.BufferSize,
		DialTimeout:     cfg.DialTimeout,
	})
	if err != nil {
		collector.ObserveError("connect")
		slog.Info("Connect failed", "session_id", sessionID, "error", err)
		return err
	}
	defer conn.Close()

	session := &console.Session{
		In:          in,
		Out:         out,
		Conn:        conn,
		Address:     cfg.Address(),
		Prompt:      cfg.Prompt,
		ExitKeyword: cfg.ExitKeyword,
		ID:          sessionID,
		Recorder:    recorder,
		Metrics:     collector,
	}

	err = session.Run(ctx)
	if err != nil {
		var stageErr *console.StageError
		if errors.As(err, &stageErr) {
			collector.ObserveError(stageErr.Stage)
		}
		slog.Info("Session failed", "session_id", sessionID, "error", err)
		return err
	}

	slog.Info("Session ended", "session_id", sessionID)
	return nil
}
