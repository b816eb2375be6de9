package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/config"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/ingestion"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/jetstream"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/model"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/observer"
	"gitlab.com/timkado/api/daisi-crm-inbox/pkg/logger"
)

// IndividualTaskDetail holds info for a single event within a batch.
type IndividualTaskDetail struct {
	EventType model.EventType
	CompanyID string
}

// BatchTask represents a batch of events to be published by a worker.
type BatchTask struct {
	Tasks      []IndividualTaskDetail
	Publishers map[string]*ingestion.EventPublisher
}

const (
	defaultBatchSize = 50
	recentIDsLimit   = 10000
)

// recentIDs remembers upserted contact ids so removal events target contacts
// the service has seen.
type recentIDs struct {
	mu  sync.Mutex
	ids map[string][]string // company id -> contact ids
}

func (r *recentIDs) add(companyID, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := append(r.ids[companyID], id)
	if len(ids) > recentIDsLimit {
		ids = ids[len(ids)-recentIDsLimit:]
	}
	r.ids[companyID] = ids
}

// take removes and returns a random remembered id for companyID.
func (r *recentIDs) take(companyID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.ids[companyID]
	if len(ids) == 0 {
		return "", false
	}
	i := rand.Intn(len(ids))
	id := ids[i]
	ids[i] = ids[len(ids)-1]
	r.ids[companyID] = ids[:len(ids)-1]
	return id, true
}

var seen = &recentIDs{ids: make(map[string][]string)}

func main() {
	// --- Configuration & Flag Parsing ---
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	natsURL := flag.String("url", cfg.NATS.URL, "NATS server URL")
	eventsStr := flag.String("events", "v1.contacts.upserted,v1.contacts.upserted,v1.contacts.removed", "Comma-separated list of event types, repeated to weight them")
	rate := flag.Int("rate", 100, "Target events per second (total)")
	duration := flag.Duration("duration", 1*time.Minute, "Load test duration")
	concurrency := flag.Int("concurrency", 10, "Number of concurrent workers")
	companyIDsStr := flag.String("company_ids", cfg.Company.ID, "Comma-separated list of company IDs")
	batchSize := flag.Int("batch-size", defaultBatchSize, "Number of events to generate/publish per worker batch")
	metricsPort := flag.Int("metrics-port", 9091, "Port for Prometheus metrics endpoint")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Contact Event Load Generator (Batch Mode)\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generates load for daisi-crm-inbox by publishing contact events to NATS.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *batchSize <= 0 {
		*batchSize = defaultBatchSize
		fmt.Printf("Invalid batch size, using default: %d\n", defaultBatchSize)
	}
	if *rate <= 0 {
		fmt.Println("Rate must be positive")
		os.Exit(1)
	}

	// --- Initialization ---
	if err := logger.Initialize(*logLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	observer.InitMetrics(true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsServer := startMetricsServer(*metricsPort)
	var metricsWg sync.WaitGroup
	metricsWg.Add(1)
	go func() {
		defer metricsWg.Done()
		<-ctx.Done()
		logger.Log.Info("Shutting down metrics server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Metrics server shutdown error", zap.Error(err))
		}
	}()

	eventTypes, err := parseEventTypes(*eventsStr)
	if err != nil {
		logger.Log.Fatal("Invalid event list", zap.Error(err))
	}
	companyIDs := strings.Split(*companyIDsStr, ",")
	if len(companyIDs) == 0 || companyIDs[0] == "" {
		logger.Log.Fatal("No company IDs provided")
	}

	logger.Log.Info("Starting Contact Event Load Generator",
		zap.String("nats_url", *natsURL),
		zap.String("events", *eventsStr),
		zap.Int("rate_per_sec", *rate),
		zap.Duration("duration", *duration),
		zap.Int("concurrency", *concurrency),
		zap.Int("batch_size", *batchSize),
		zap.Strings("company_ids", companyIDs),
		zap.Int("metrics_port", *metricsPort),
	)

	natsClient, err := jetstream.NewClient(*natsURL, "daisi-crm-inbox-loadgen")
	if err != nil {
		logger.Log.Fatal("Failed to connect to NATS", zap.String("url", *natsURL), zap.Error(err))
	}
	defer natsClient.Close()

	publishers := make(map[string]*ingestion.EventPublisher, len(companyIDs))
	for _, id := range companyIDs {
		publishers[id] = ingestion.NewEventPublisher(natsClient, id)
	}

	// --- Worker Pool Setup ---
	var wg sync.WaitGroup
	pool, err := ants.NewPoolWithFunc(*concurrency, func(data interface{}) {
		batchWorkerFunc(ctx, data, &wg)
	})
	if err != nil {
		logger.Log.Fatal("Failed to create worker pool", zap.Error(err))
	}
	defer pool.Release()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		runBatchLoadLoop(ctx, *rate, *duration, *batchSize, eventTypes, companyIDs, publishers, pool, &wg)
	}()

	select {
	case sig := <-sigChan:
		logger.Log.Info("Received termination signal, shutting down...", zap.String("signal", sig.String()))
		cancel()
		<-loopDone
	case <-loopDone:
		logger.Log.Info("Load generation duration finished.")
	}

	logger.Log.Info("Waiting for active publishing worker tasks to complete...")
	wg.Wait()

	cancel()
	metricsWg.Wait()
	logger.Log.Info("Load generator shutdown complete.")
}

func parseEventTypes(list string) ([]model.EventType, error) {
	var out []model.EventType
	for _, raw := range strings.Split(list, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		et, ok := model.MapToBaseEventType(raw)
		if !ok {
			return nil, fmt.Errorf("unsupported event type %q", raw)
		}
		out = append(out, et)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no event types provided")
	}
	return out, nil
}

func startMetricsServer(port int) *http.Server {
	logger.Log.Info("Starting Prometheus metrics server", zap.Int("port", port))
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Error("Failed to start Prometheus metrics server", zap.Error(err))
		}
	}()

	return server
}

// runBatchLoadLoop manages the rate-limited submission of batches to the worker pool.
func runBatchLoadLoop(ctx context.Context, rate int, duration time.Duration, batchSize int, events []model.EventType, companies []string, publishers map[string]*ingestion.EventPublisher, pool *ants.PoolWithFunc, wg *sync.WaitGroup) {
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	durationTimer := time.NewTimer(duration)
	defer durationTimer.Stop()

	counter := 0
	currentBatch := make([]IndividualTaskDetail, 0, batchSize)

	submitBatch := func(batch []IndividualTaskDetail) {
		if len(batch) == 0 {
			return
		}
		wg.Add(len(batch))
		if err := pool.Invoke(BatchTask{Tasks: batch, Publishers: publishers}); err != nil {
			logger.Log.Warn("Failed to invoke worker pool for batch", zap.Int("batch_task_count", len(batch)), zap.Error(err))
			wg.Add(-len(batch))
			for _, td := range batch {
				observer.IncLoadgenPublishErrors(string(td.EventType), td.CompanyID)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			submitBatch(currentBatch)
			return
		case <-durationTimer.C:
			submitBatch(currentBatch)
			return
		case <-ticker.C:
			td := IndividualTaskDetail{
				EventType: events[counter%len(events)],
				CompanyID: companies[counter%len(companies)],
			}
			counter++
			observer.IncLoadgenMessagesAttempted(string(td.EventType), td.CompanyID)

			currentBatch = append(currentBatch, td)
			if len(currentBatch) >= batchSize {
				submitBatch(currentBatch)
				currentBatch = make([]IndividualTaskDetail, 0, batchSize)
			}
		}
	}
}

// batchWorkerFunc publishes a batch of events.
func batchWorkerFunc(ctx context.Context, data interface{}, wg *sync.WaitGroup) {
	batchTask := data.(BatchTask)

	for _, td := range batchTask.Tasks {
		func() {
			defer wg.Done()
			publisher := batchTask.Publishers[td.CompanyID]

			var err error
			switch td.EventType {
			case model.V1ContactsUpserted:
				contact := model.NewContact()
				if err = publisher.PublishUpserted(ctx, *contact); err == nil {
					seen.add(td.CompanyID, contact.ID)
				}
			case model.V1ContactsRemoved:
				id, ok := seen.take(td.CompanyID)
				if !ok {
					logger.Log.Debug("No contact to remove yet, skipping", zap.String("company_id", td.CompanyID))
					return
				}
				err = publisher.PublishRemoved(ctx, id)
			}

			if err != nil {
				logger.Log.Error("Failed to publish event in batch", zap.String("event_type", string(td.EventType)), zap.Error(err))
				observer.IncLoadgenPublishErrors(string(td.EventType), td.CompanyID)
				return
			}
			observer.IncLoadgenMessagesPublished(string(td.EventType), td.CompanyID)
		}()
	}
}
