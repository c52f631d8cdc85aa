package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"BetBank/internal/bank"
	"BetBank/internal/config"
	"BetBank/internal/ingestion"
	"BetBank/internal/observability"
	"BetBank/internal/server"
)

func main() {
	log := observability.NewLogger("main")
	log.Info().Msg("betbank starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	// --- Context with graceful shutdown ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- Observability ---
	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker()

	// --- Engine ---
	publishChan := make(chan bank.Update, cfg.PublishChanSize)
	engine := bank.New(bank.Options{
		StartValue: cfg.StartValue,
		Mode:       cfg.Mode,
	}, publishChan, observability.NewLogger("bank"), metrics)

	// The game host watches for this and closes the round via the admin API
	// once everyone has bet.
	engine.OnQuorum(func(roundID int64) {
		log.Info().Int64("round_id", roundID).Msg("all participants have bet")
	})

	// --- NATS ---
	nc, js, err := ingestion.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatal().Err(err).Msg("nats connect")
	}
	defer nc.Close()
	log.Info().Str("url", cfg.NATSURL).Msg("nats connected")

	if err := ingestion.EnsureStreams(ctx, js); err != nil {
		log.Fatal().Err(err).Msg("ensure nats streams")
	}
	if err := ingestion.EnsureOutboundStream(ctx, js); err != nil {
		log.Fatal().Err(err).Msg("ensure outbound stream")
	}

	// --- Request channel from NATS to engine ---
	rawRequestChan := make(chan ingestion.RawRequest, cfg.RequestChanSize)
	natsSubscriber := ingestion.NewNATSSubscriber(js, rawRequestChan)
	if err := natsSubscriber.Subscribe(ctx, ingestion.DefaultSubjects()); err != nil {
		log.Fatal().Err(err).Msg("nats subscribe")
	}

	// --- Outbound snapshot publisher ---
	snapshotPublisher := ingestion.NewSnapshotPublisher(js, publishChan)

	// --- Admin/query HTTP server ---
	httpServer := server.New(cfg.HTTPAddr, engine, healthChecker, observability.NewLogger("http"))

	// --- Start goroutines ---
	errChan := make(chan error, 4)

	// 1. NATS → engine loop
	go func() {
		runIngestionLoop(ctx, rawRequestChan, engine, log)
	}()

	// 2. Snapshot publisher
	go func() {
		errChan <- snapshotPublisher.Run(ctx)
	}()

	// 3. HTTP server
	go func() {
		errChan <- httpServer.Start(ctx)
	}()

	// 4. Prometheus metrics server
	go func() {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsServer := &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: metricsMux,
		}
		go func() {
			<-ctx.Done()
			shutCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
			defer c()
			metricsServer.Shutdown(shutCtx)
		}()
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	// Mark service as ready after all goroutines started
	healthChecker.SetReady(true)

	log.Info().
		Int64("start_value", cfg.StartValue).
		Str("mode", string(cfg.Mode)).
		Str("http", cfg.HTTPAddr).
		Str("metrics", cfg.MetricsAddr).
		Msg("betbank ready")

	// --- Wait for shutdown signal ---
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errChan:
		log.Error().Err(err).Msg("goroutine failed, shutting down")
	}

	// --- Graceful shutdown ---
	cancel()
	natsSubscriber.Stop()
	close(publishChan)

	log.Info().Msg("betbank shutdown complete")
}

// runIngestionLoop drains raw NATS messages, parses them at the edge and
// applies them to the engine. Messages are acked after parsing: unparseable
// messages are acked too, so a poison message never loops through redelivery.
// Engine rejections (insufficient funds, locked round) are terminal outcomes,
// not transport failures, so they never NAK.
func runIngestionLoop(ctx context.Context, rawChan <-chan ingestion.RawRequest, engine *bank.Bank, log zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-rawChan:
			if !ok {
				return
			}

			req, err := ingestion.ParseRawRequest(raw)
			if err != nil {
				log.Warn().Err(err).Str("subject", raw.Subject).Msg("drop unparseable request")
				raw.AckFunc()
				continue
			}
			raw.AckFunc()

			// Errors are already logged and counted inside Handle.
			_ = engine.Handle(req)
		}
	}
}
