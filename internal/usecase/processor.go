package usecase

import (
	"context"
	"fmt"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/config"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/ingestion"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/jetstream"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/model"
	"gitlab.com/timkado/api/daisi-crm-inbox/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-inbox/pkg/utils"
)

// eventContacts applies event mutations tagged with SourceEvent.
type eventContacts struct {
	service *ContactService
}

func (e eventContacts) Upsert(ctx context.Context, payload model.UpsertContactPayload) (model.Contact, error) {
	return e.service.Upsert(WithSource(ctx, SourceEvent), payload)
}

func (e eventContacts) Remove(ctx context.Context, id string) error {
	return e.service.Remove(WithSource(ctx, SourceEvent), id)
}

// Processor orchestrates contact event processing
type Processor struct {
	service      *ContactService
	jsClient     jetstream.ClientInterface
	consumer     ingestion.ConsumerInterface
	eventRouter  ingestion.RouterInterface
	eventHandler *ingestion.ContactEventHandler
}

// NewProcessor creates a new processor with all components wired up
func NewProcessor(service *ContactService, jsClient jetstream.ClientInterface, cfg *config.Config) *Processor {
	router := ingestion.NewRouter()

	return &Processor{
		service:      service,
		jsClient:     jsClient,
		consumer:     ingestion.NewContactConsumer(jsClient, router, cfg.NATS, cfg.Company.ID),
		eventRouter:  router,
		eventHandler: ingestion.NewContactEventHandler(eventContacts{service: service}),
	}
}

// GetRouter returns the processor's event router.
func (p *Processor) GetRouter() ingestion.RouterInterface {
	return p.eventRouter
}

// Setup registers the contact handlers and sets up the consumer
func (p *Processor) Setup() error {
	p.eventHandler.Register(p.eventRouter)

	if err := p.consumer.Setup(); err != nil {
		return fmt.Errorf("failed to setup contact consumer: %w", err)
	}

	logger.Log.Info("Processor setup complete")
	return nil
}

// Start starts the consumer
func (p *Processor) Start() error {
	logger.Log.Info("Starting contact event processor...")

	defer utils.RecoverWithLog(context.Background(), "processor start")

	if err := p.consumer.Start(); err != nil {
		return fmt.Errorf("failed to start contact consumer: %w", err)
	}

	logger.Log.Info("Contact consumer started successfully")
	return nil
}

// Stop stops the consumer
func (p *Processor) Stop() {
	logger.Log.Info("Stopping contact event processor...")
	p.consumer.Stop()
	logger.Log.Info("Contact consumer stopped")
}
