package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"subscribers-go/internal/app"
	"subscribers-go/internal/config"
	"subscribers-go/internal/events"
	"subscribers-go/internal/metrics"
	"subscribers-go/internal/telemetry"
)

const shutdownTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	tp, err := telemetry.InitTracing(ctx, telemetry.Options{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Exporter:       cfg.TracesExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer logClose("tracer provider", func() error {
		return telemetry.ShutdownTracing(context.Background(), tp)
	})

	repo, db, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeDB(db)

	publisher, err := newPublisher(cfg)
	if err != nil {
		return err
	}

	application, err := app.Build(&app.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Port:           cfg.Port,
		Logger:         logger,
		TracerProvider: otel.GetTracerProvider(),
		GinMode:        cfg.GinMode,
		Repository:     repo,
		Publisher:      publisher,
		Metrics:        metrics.New(cfg.ServiceName),
		DefaultPerPage: cfg.DefaultPerPage,
		MaxPerPage:     cfg.MaxPerPage,
	})
	if err != nil {
		_ = publisher.Close()
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-quit:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited")
	return nil
}

func newPublisher(c config.Config) (events.Publisher, error) {
	var (
		publisher events.Publisher
		err       error
	)
	switch c.EventsBackend {
	case config.EventsDapr:
		publisher, err = events.NewDaprPublisher(c.DaprPubSubName, c.EventsTopic)
	case config.EventsAMQP:
		publisher, err = events.NewAMQPPublisher(c.AMQPURL, c.EventsTopic)
	default:
		return events.NopPublisher{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s event publisher: %w", c.EventsBackend, err)
	}

	logger.WithFields(logrus.Fields{
		"backend": c.EventsBackend,
		"topic":   c.EventsTopic,
	}).Info("Publishing subscriber events")
	return publisher, nil
}
