package app

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"subscribers-go/internal/events"
	"subscribers-go/internal/handlers"
	"subscribers-go/internal/logging"
	"subscribers-go/internal/metrics"
	"subscribers-go/internal/pagination"
	"subscribers-go/internal/repository"
	"subscribers-go/internal/service"
)

type Config struct {
	ServiceName    string
	ServiceVersion string
	Port           string
	Logger         *logging.ContextLogger
	TracerProvider trace.TracerProvider
	GinMode        string
	Repository     repository.SubscriberRepository
	Publisher      events.Publisher
	Metrics        *metrics.Metrics
	DefaultPerPage int
	MaxPerPage     int
}

type Application struct {
	server    *http.Server
	config    *Config
	router    *gin.Engine
	repo      repository.SubscriberRepository
	publisher events.Publisher
	metrics   *metrics.Metrics
	service   *service.SubscriberService
	handler   *handlers.SubscriberHandler
}

// Build wires the HTTP stack. config.Repository is required; a nil Publisher
// disables events and a nil Metrics gets a fresh registry.
func Build(config *Config) (*Application, error) {
	if config.Repository == nil {
		return nil, errors.New("app: repository is required")
	}
	if config.Logger == nil {
		config.Logger = logging.NewLogger()
	}
	if config.GinMode != "" {
		gin.SetMode(config.GinMode)
	}

	publisher := config.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	m := config.Metrics
	if m == nil {
		m = metrics.New(config.ServiceName)
	}

	subscriberService := service.NewSubscriberService(config.Repository, publisher, m, config.Logger)
	subscriberHandler := handlers.NewSubscriberHandler(
		subscriberService,
		pagination.New(config.DefaultPerPage, config.MaxPerPage),
		config.Logger,
	)

	router := gin.New()
	router.Use(gin.Recovery())

	var otelOpts []otelgin.Option
	if config.TracerProvider != nil {
		otelOpts = append(otelOpts, otelgin.WithTracerProvider(config.TracerProvider))
	}
	router.Use(otelgin.Middleware(config.ServiceName, otelOpts...))

	router.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(method, route, strconv.Itoa(status), latency.Seconds())

		config.Logger.WithTracing(c.Request.Context()).WithFields(map[string]interface{}{
			"method":     method,
			"path":       path,
			"route":      route,
			"status":     status,
			"latency_ms": latency.Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		}).Info("HTTP request completed")
	})

	for _, prefix := range []string{"/subscribers", "/api/subscribers"} {
		subscribers := router.Group(prefix)
		{
			subscribers.GET("", subscriberHandler.ListSubscribers)
			subscribers.POST("", subscriberHandler.CreateSubscriber)
			subscribers.PATCH("/:id", subscriberHandler.UpdateSubscriber)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
			"service":   config.ServiceName,
			"version":   config.ServiceVersion,
		})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	server := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Application{
		server:    server,
		config:    config,
		router:    router,
		repo:      config.Repository,
		publisher: publisher,
		metrics:   m,
		service:   subscriberService,
		handler:   subscriberHandler,
	}, nil
}

func (app *Application) Run() error {
	app.config.Logger.Info("Starting server on :" + app.config.Port)
	if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, drains in-flight ones and closes the
// event publisher.
func (app *Application) Shutdown(ctx context.Context) error {
	app.config.Logger.Info("Shutting down server...")
	err := app.server.Shutdown(ctx)
	if perr := app.publisher.Close(); perr != nil {
		app.config.Logger.WithError(perr).Warn("Failed to close event publisher")
	}
	return err
}

func (app *Application) GetRepo() repository.SubscriberRepository {
	return app.repo
}

func (app *Application) GetMetrics() *metrics.Metrics {
	return app.metrics
}

func (app *Application) GetService() *service.SubscriberService {
	return app.service
}

func (app *Application) GetHandler() *handlers.SubscriberHandler {
	return app.handler
}

func (app *Application) GetRouter() *gin.Engine {
	return app.router
}
