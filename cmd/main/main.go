package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/api"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/cache"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/config"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/contactindex"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/healthcheck"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/ingestion"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/jetstream"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/loader"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/observer"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/usecase"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/webhook"
	"gitlab.com/timkado/api/daisi-crm-inbox/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-inbox/pkg/utils"
)

const (
	serviceName     = "daisi-crm-inbox"
	shutdownTimeout = 30 * time.Second
	loadMaxElapsed  = 2 * time.Minute
)

func main() {
	// Set timezone to UTC
	time.Local = time.UTC

	// Load configuration
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	metricsEnabled := cfg.Metrics.Enabled
	observer.InitMetrics(metricsEnabled)

	logger.Log.Info("Starting Daisi CRM Inbox",
		zap.String("environment", cfg.Environment),
		zap.String("company_id", cfg.Company.ID),
		zap.String("loader_source", cfg.Loader.Source),
		zap.Bool("nats_enabled", cfg.NATS.Enabled),
		zap.String("instance_id", cfg.NATS.InstanceID),
	)

	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	// Contact source and index
	source, closeSource, err := loader.NewSource(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize contact source", zap.Error(err))
	}

	index := contactindex.New()
	webhookClient := webhook.NewClient(cfg.Webhook, logger.Log)

	// Optional event ingestion and publishing
	var (
		jsClient  *jetstream.Client
		processor *usecase.Processor
		publisher api.EventPublisher
	)
	if cfg.NATS.Enabled {
		jsClient, err = jetstream.NewClient(cfg.NATS.URL, serviceName)
		if err != nil {
			logger.Log.Fatal("Failed to initialize JetStream client", zap.Error(err))
		}
		publisher = ingestion.NewEventPublisher(jsClient, cfg.Company.ID)
	}

	// Enrichment needs the phone lookup endpoint, which needs a token
	var enrichmentWorker *usecase.EnrichmentWorker
	var enricher usecase.IEnrichmentWorker
	if cfg.Webhook.APIToken != "" {
		enrichmentCache := cache.NewEnrichmentCache(cfg.Cache.Enrichment.Expected, cfg.Cache.Enrichment.FPRate)
		enrichmentWorker, err = usecase.NewEnrichmentWorker(cfg.WorkerPools.Enrichment, index, webhookClient, publisher, enrichmentCache, logger.Log)
		if err != nil {
			logger.Log.Fatal("Failed to initialize enrichment worker pool", zap.Error(err))
		}
		enricher = enrichmentWorker
	} else {
		logger.Log.Warn("Webhook API token not set, contact enrichment disabled")
	}

	service := usecase.NewContactService(index, enricher)
	if err := loadContacts(mainCtx, service, source); err != nil {
		logger.Log.Fatal("Failed to load contacts", zap.Error(err))
	}

	actions := usecase.NewActionService(index, webhookClient)

	if jsClient != nil {
		processor = usecase.NewProcessor(service, jsClient, cfg)
		if err := processor.Setup(); err != nil {
			logger.Log.Fatal("Failed to set up processor", zap.Error(err))
		}
	}

	// HTTP: health, metrics and the API share one server
	httpServer := healthcheck.NewServer(strconv.Itoa(cfg.Server.Port), logger.Log)
	httpServer.AddProbe(healthcheck.Probe{
		Name: "indexed_contacts",
		Check: func() (string, error) {
			return strconv.Itoa(service.Count()), nil
		},
	})
	if jsClient != nil {
		httpServer.AddProbe(healthcheck.Probe{
			Name: "nats",
			Check: func() (string, error) {
				if !jsClient.Connected() {
					return "", errors.New("disconnected")
				}
				return "connected", nil
			},
		})
	}

	if metricsEnabled {
		httpServer.RegisterMetricsHandler(promhttp.Handler())
		logger.Log.Info("Metrics endpoint enabled", zap.String("path", "/metrics"), zap.Int("port", cfg.Server.Port))
	} else {
		logger.Log.Info("Metrics endpoint disabled for environment", zap.String("environment", cfg.Environment))
	}

	apiHandler := api.NewHandler(service, actions, publisher, cfg.Company.ID, logger.Log)
	httpServer.RegisterHandler("/v1/", apiHandler.Routes())
	httpServer.Start()

	logger.Log.Info("HTTP endpoints available",
		zap.String("health", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)),
		zap.String("readiness", fmt.Sprintf("http://localhost:%d/ready", cfg.Server.Port)),
		zap.String("contacts", fmt.Sprintf("http://localhost:%d/v1/contacts", cfg.Server.Port)),
	)

	if processor != nil {
		if err := processor.Start(); err != nil {
			logger.Log.Fatal("Failed to start processor", zap.Error(err))
		}
	}

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Log.Info("Received termination signal", zap.String("signal", sig.String()))
	mainCancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	logger.Log.Info("Starting graceful shutdown", zap.Duration("timeout", shutdownTimeout))

	var wg sync.WaitGroup
	shutdown := func(name string, stop func() error) {
		wg.Add(1)
		utils.SafeGo(func() {
			defer wg.Done()
			logger.Log.Info("[shutdown] Stopping " + name)
			start := time.Now()
			if err := stop(); err != nil {
				logger.Log.Error("[shutdown] Error stopping "+name, zap.Error(err))
				return
			}
			logger.Log.Info("[shutdown] Stopped "+name, zap.Duration("duration", time.Since(start)))
		}, func(r interface{}, stack []byte) {
			logger.Log.Error("[shutdown] Panic while stopping "+name,
				zap.Any("panic", r),
				zap.ByteString("stack", stack),
			)
		})
	}

	shutdown("HTTP server", func() error { return httpServer.Stop(shutdownCtx) })
	if processor != nil {
		shutdown("event processor", func() error {
			processor.Stop()
			jsClient.Close()
			return nil
		})
	}
	if enrichmentWorker != nil {
		shutdown("enrichment worker pool", func() error {
			enrichmentWorker.Stop()
			return nil
		})
	}
	shutdown("contact source", func() error { return closeSource(shutdownCtx) })

	waitCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Log.Info("[shutdown] All components stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Log.Warn("[shutdown] Graceful shutdown timed out, forcing exit")
	}

	logger.Log.Info("Daisi CRM Inbox shutdown complete")
}

// loadContacts fills the index from source, retrying transient failures.
func loadContacts(ctx context.Context, service *usecase.ContactService, source loader.ContactSource) error {
	ctx = usecase.WithSource(logger.WithLogger(ctx, logger.Named("loader")), usecase.SourceLoad)

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = loadMaxElapsed

	load := utils.WrapWithContextRecovery(func(ctx context.Context) error {
		_, err := service.Load(ctx, source)
		return err
	})

	return backoff.RetryNotify(func() error {
		err := load(ctx)
		if err != nil && apperrors.IsFatal(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx), func(err error, d time.Duration) {
		logger.Log.Warn("Retrying contact load", zap.Error(err), zap.Duration("after", d))
	})
}
