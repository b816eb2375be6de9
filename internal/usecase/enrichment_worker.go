package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/cache"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/config"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/model"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/observer"
	"gitlab.com/timkado/api/daisi-crm-inbox/pkg/logger"
)

// EnrichmentTask asks for the location of one contact's phone number.
type EnrichmentTask struct {
	Ctx         context.Context // detached from the request that submitted it
	ContactID   string
	PhoneNumber string
}

// IEnrichmentWorker defines the interface for the enrichment worker pool.
type IEnrichmentWorker interface {
	SubmitTask(task EnrichmentTask) error
	Stop()
}

// PhoneLookup resolves carrier and location data of a number.
type PhoneLookup interface {
	Lookup(ctx context.Context, phoneNumber string) (model.LookupResult, error)
}

// EnrichmentWorker runs phone lookups on a bounded pool and writes the
// resulting city/state back into the contact store. Enriched snapshots are
// published when a publisher is set.
type EnrichmentWorker struct {
	pool       *ants.PoolWithFunc
	store      ContactStore
	lookup     PhoneLookup
	publisher  ContactPublisher
	cache      *cache.EnrichmentCache
	cfg        config.EnrichmentWorkerPoolConfig
	baseLogger *zap.Logger
}

// Ensure EnrichmentWorker implements IEnrichmentWorker
var _ IEnrichmentWorker = (*EnrichmentWorker)(nil)

// NewEnrichmentWorker creates and starts the enrichment pool.
func NewEnrichmentWorker(
	cfg config.EnrichmentWorkerPoolConfig,
	store ContactStore,
	lookup PhoneLookup,
	publisher ContactPublisher,
	enrichmentCache *cache.EnrichmentCache,
	baseLogger *zap.Logger,
) (*EnrichmentWorker, error) {
	worker := &EnrichmentWorker{
		store:      store,
		lookup:     lookup,
		publisher:  publisher,
		cache:      enrichmentCache,
		cfg:        cfg,
		baseLogger: baseLogger.Named("enrichment_worker"),
	}

	pool, err := ants.NewPoolWithFunc(cfg.PoolSize, func(i interface{}) {
		task, ok := i.(EnrichmentTask)
		if !ok {
			worker.baseLogger.Error("Invalid task data type received", zap.Any("data", i))
			return
		}
		worker.processEnrichmentTask(task)
	},
		ants.WithExpiryDuration(cfg.ExpiryTime),
		ants.WithNonblocking(false),
		ants.WithMaxBlockingTasks(cfg.QueueSize),
		ants.WithPanicHandler(func(err interface{}) {
			worker.baseLogger.Error("Panic recovered in enrichment worker", zap.Any("panic_error", err), zap.Stack("stack"))
			observer.IncEnrichmentTasksProcessed("panic")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create enrichment worker pool: %w", err)
	}
	worker.pool = pool
	worker.baseLogger.Info("Enrichment worker pool initialized",
		zap.Int("pool_size", cfg.PoolSize),
		zap.Int("queue_size", cfg.QueueSize),
		zap.Duration("expiry_time", cfg.ExpiryTime),
		zap.Duration("max_block_time", cfg.MaxBlock),
	)
	return worker, nil
}

// SubmitTask queues a lookup. It blocks while the pool and its queue are
// full, and fails once the queue limit is exceeded.
func (w *EnrichmentWorker) SubmitTask(task EnrichmentTask) error {
	start := time.Now()
	observer.IncEnrichmentTasksSubmitted()
	observer.SetEnrichmentQueueLength(w.pool.Waiting())

	err := w.pool.Invoke(task)
	duration := time.Since(start)

	if err != nil {
		w.baseLogger.Warn("Failed to submit enrichment task to pool",
			zap.String("contact_id", task.ContactID),
			zap.Duration("submit_duration", duration),
			zap.Error(err),
		)
		observer.IncEnrichmentTasksProcessed("submit_error")
		if errors.Is(err, ants.ErrPoolOverload) {
			return fmt.Errorf("enrichment pool overload: %w: %w", apperrors.ErrRateLimited, err)
		}
		return fmt.Errorf("failed to invoke enrichment task: %w", err)
	}

	w.baseLogger.Debug("Submitted enrichment task",
		zap.String("contact_id", task.ContactID),
		zap.Duration("submit_duration", duration),
	)
	return nil
}

// processEnrichmentTask is executed by a pool goroutine.
func (w *EnrichmentWorker) processEnrichmentTask(task EnrichmentTask) {
	ctx := task.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.FromContextOr(ctx, w.baseLogger).With(
		zap.String("contact_id", task.ContactID),
		zap.String("phone_number", task.PhoneNumber),
	)

	start := time.Now()
	status := w.enrich(WithSource(ctx, SourceEnrichment), log, task)

	duration := time.Since(start)
	observer.ObserveEnrichmentProcessingDuration(duration)
	observer.IncEnrichmentTasksProcessed(status)
	log.Debug("Finished enrichment task", zap.Duration("duration", duration), zap.String("final_status", status))
}

// enrich runs one task and returns its status label.
func (w *EnrichmentWorker) enrich(ctx context.Context, log *zap.Logger, task EnrichmentTask) string {
	if task.PhoneNumber == "" {
		log.Debug("Skipping enrichment: contact has no phone number")
		return "skipped_no_phone"
	}

	if w.cache != nil {
		if st := w.cache.Check(task.PhoneNumber); st != cache.StatusUnknown {
			log.Debug("Skipping enrichment: number already looked up", zap.Stringer("cache_status", st))
			return "skipped_cached"
		}
	}

	result, err := w.lookup.Lookup(ctx, task.PhoneNumber)
	if err != nil {
		log.Warn("Phone lookup failed, contact left unchanged", zap.Error(err))
		return "lookup_error"
	}

	city, state, ok := result.Location()
	if !ok {
		if w.cache != nil {
			w.cache.MarkNoData(task.PhoneNumber)
		}
		log.Debug("Lookup returned no location")
		return "no_data"
	}

	// The location goes onto whatever snapshot is current when the write
	// lock is held.
	changed := false
	enriched, err := w.store.Update(task.ContactID, func(c *model.Contact) bool {
		if city != "" && c.City != city {
			c.City, changed = city, true
		}
		if state != "" && c.State != state {
			c.State, changed = state, true
		}
		return changed
	})
	if errors.Is(err, apperrors.ErrNotFound) {
		log.Debug("Contact removed before enrichment finished")
		return "skipped_removed"
	}
	if err != nil {
		log.Error("Failed to store enriched contact", zap.Error(err))
		return "failure_upsert"
	}
	if w.cache != nil {
		w.cache.MarkEnriched(task.PhoneNumber)
	}
	if !changed {
		log.Debug("Contact already carries the looked up location")
		return "unchanged"
	}
	observer.AddContactUpserts(sourceFrom(ctx), 1)

	if w.publisher != nil {
		if err := w.publisher.PublishUpserted(ctx, enriched); err != nil {
			log.Warn("Failed to publish enriched contact", zap.Error(err))
		}
	}

	log.Info("Enriched contact location", zap.String("city", enriched.City), zap.String("state", enriched.State))
	return "success"
}

// Stop releases the pool, waiting for running tasks.
func (w *EnrichmentWorker) Stop() {
	if w.pool == nil {
		return
	}
	w.baseLogger.Info("Releasing enrichment worker pool")
	start := time.Now()
	if err := w.pool.ReleaseTimeout(w.cfg.MaxBlock + 5*time.Second); err != nil {
		w.baseLogger.Warn("Enrichment pool release timed out", zap.Error(err))
	}
	w.baseLogger.Info("Enrichment worker pool released", zap.Duration("duration", time.Since(start)))
}
