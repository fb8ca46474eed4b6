// Package main implements the docuplan CLI: a three-stage LLM document
// generation pipeline (plan, retrieve, write, assemble).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/c360studio/docuplan/config"
	"github.com/c360studio/docuplan/pipeline"
	"github.com/c360studio/docuplan/progress"
)

// Build information (set via ldflags).
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		artifactDir string
		outputPath  string
		metricsAddr string
	)

	rootCmd := &cobra.Command{
		Use:     "docuplan",
		Short:   "Plan, retrieve, and write documents with an LLM pipeline",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (defaults are used if omitted)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "If set, serve Prometheus metrics on this address (e.g. :9090)")

	generateCmd := &cobra.Command{
		Use:   "generate <request>",
		Short: "Generate a document for a free-text request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), configPath, artifactDir, outputPath, metricsAddr, args[0])
		},
	}
	generateCmd.Flags().StringVar(&artifactDir, "artifacts-dir", "./artifacts", "Directory for per-stage plan snapshots")
	generateCmd.Flags().StringVar(&outputPath, "output", "", "File to write the assembled document to (stdout if omitted)")

	rootCmd.AddCommand(generateCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func runGenerate(ctx context.Context, configPath, artifactDir, outputPath, metricsAddr, request string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	reg := prometheus.NewRegistry()
	tracker := progress.New(logger, reg)

	if metricsAddr != "" {
		stopMetrics := serveMetrics(metricsAddr, reg, logger)
		defer stopMetrics()
	}

	p := pipeline.New(cfg, artifactDir, tracker, logger)

	document, err := p.Run(ctx, request)
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}

	if err := writeOutput(outputPath, document); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	snap := tracker.Snapshot()
	logger.Info("generation complete",
		"llm_calls", snap.LLMCalls,
		"retrieval_calls", snap.RetrievalCalls,
		"leaves_retrieved", snap.LeavesRetrieved,
		"leaves_written", snap.LeavesWritten,
	)

	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.LoadFromFile(path)
}

func writeOutput(path, document string) error {
	if path == "" {
		fmt.Println(document)
		return nil
	}
	return os.WriteFile(path, []byte(document+"\n"), 0o644)
}

// serveMetrics starts a /metrics endpoint on addr and returns a function
// that shuts it down.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
