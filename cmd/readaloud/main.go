// Readaloud turns documents into narrated audio with word-level timings.
//
// Usage:
//
//	readaloud [flags]
//	readaloud --config /path/to/readaloud.yaml
//	readaloud --speak notes.md --out ./out
//
// @title       readaloud API
// @version     1.0
// @description Reads documents aloud: LLM normalization, chunked TTS and word timings.
// @BasePath    /
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/nadzzz/readaloud/internal/config"
	"github.com/nadzzz/readaloud/internal/health"
	"github.com/nadzzz/readaloud/internal/metrics"
	"github.com/nadzzz/readaloud/internal/transport"
	grpctransport "github.com/nadzzz/readaloud/internal/transport/grpc"
	httptransport "github.com/nadzzz/readaloud/internal/transport/http"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configFile := flag.String("config", "", "path to config file (e.g. configs/readaloud.yaml)")
	speakPath := flag.String("speak", "", "read this document aloud once and exit")
	outDir := flag.String("out", ".", "output directory for --speak")
	flag.Parse()

	if *showVersion {
		fmt.Printf("readaloud %s\n", version)
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging.
	config.SetupLogging(cfg.Logging)
	slog.Info("readaloud starting", "version", version)

	// Create root context with signal handling for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	p, b, err := newPipeline(cfg, m)
	if err != nil {
		slog.Error("failed to initialize pipeline", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	if *speakPath != "" {
		if _, _, err := speakFile(ctx, p.Speak, *speakPath, *outDir); err != nil {
			slog.Error("speak failed", "path", *speakPath, "error", err)
			b.Close()
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, cfg, p.Speak, reg); err != nil {
		slog.Error("readaloud stopped with error", "error", err)
		b.Close()
		os.Exit(1)
	}
	slog.Info("readaloud stopped")
}

// serve runs the health server and every enabled transport until ctx is
// cancelled or one of them fails.
func serve(ctx context.Context, cfg *config.Config, handler transport.Handler, reg *prometheus.Registry) error {
	var transports []transport.Transport
	if cfg.Transports.GRPC.Enabled {
		transports = append(transports, grpctransport.New(cfg.Transports.GRPC))
	}
	if cfg.Transports.HTTP.Enabled {
		transports = append(transports, httptransport.New(cfg.Transports.HTTP))
	}
	if len(transports) == 0 {
		return errors.New("no transports enabled: enable at least one in config")
	}

	g, ctx := errgroup.WithContext(ctx)

	healthServer := health.New(cfg.Server.HealthPort, reg)
	g.Go(func() error {
		return healthServer.ListenAndServe(ctx)
	})

	for _, t := range transports {
		g.Go(func() error {
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(ctx, handler); err != nil {
				return fmt.Errorf("transport %s: %w", t.Name(), err)
			}
			return nil
		})
	}

	// Mark as ready once all transports are started.
	healthServer.SetReady(true)
	slog.Info("readaloud ready",
		"transports", len(transports),
		"health_port", cfg.Server.HealthPort)

	<-ctx.Done()
	slog.Info("shutdown signal received, draining...")
	healthServer.SetReady(false)

	err := g.Wait()
	for _, t := range transports {
		if cerr := t.Close(); cerr != nil {
			slog.Error("transport close error", "name", t.Name(), "error", cerr)
		}
	}
	return err
}
