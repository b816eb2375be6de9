package ingestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-inbox/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/config"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/jetstream"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/model"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/observer"
	"gitlab.com/timkado/api/daisi-crm-inbox/internal/tenant"
	"gitlab.com/timkado/api/daisi-crm-inbox/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-inbox/pkg/utils"
)

// AckAction represents the decision made after processing a message
type AckAction int

const (
	ActionAck      AckAction = iota // Processed, ACK it
	ActionNak                       // Could not be evaluated, NAK for immediate redelivery
	ActionNakDelay                  // Retryable error, NAK with backoff delay
	ActionTerm                      // Fatal error or deliveries exhausted, TERM it
)

func (a AckAction) String() string {
	switch a {
	case ActionAck:
		return "ack"
	case ActionNak:
		return "nak"
	case ActionNakDelay:
		return "nak_delay"
	case ActionTerm:
		return "term"
	default:
		return "unknown"
	}
}

const (
	consumerAckWait       = 30 * time.Second
	consumerMaxAckPending = 1000
)

// modifySubjects derives the stream subjects (any company) and the consumer
// filter subjects (this company) from the configured base subjects.
func modifySubjects(subjects []string, companyID string) (streamSubjects, consumerSubjects []string) {
	for _, subject := range subjects {
		streamSubjects = append(streamSubjects, fmt.Sprintf("%s.*", subject))
		consumerSubjects = append(consumerSubjects, fmt.Sprintf("%s.%s", subject, companyID))
	}
	return streamSubjects, consumerSubjects
}

// consumerName builds the durable name of one instance's consumer for
// companyID. Characters NATS rejects in consumer names become underscores.
func consumerName(prefix, companyID, instanceID string) string {
	name := fmt.Sprintf("%s_%s", prefix, companyID)
	if instanceID != "" {
		name = fmt.Sprintf("%s_%s", name, instanceID)
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', '/', '\\', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, name)
}

// determineAckAction decides the fate of a message from the processing
// result and the delivery count.
func determineAckAction(
	processingErr error,
	numDelivered uint64,
	maxDeliver int,
	nakBaseDelay time.Duration,
	nakMaxDelay time.Duration,
) (action AckAction, delay time.Duration) {
	if processingErr == nil {
		return ActionAck, 0
	}

	if !apperrors.IsRetryable(processingErr) || numDelivered >= uint64(maxDeliver) {
		return ActionTerm, 0
	}

	delay = nakBaseDelay
	if numDelivered > 1 {
		delay = nakBaseDelay * (1 << (numDelivered - 1))
	}
	if delay > nakMaxDelay || delay <= 0 {
		delay = nakMaxDelay
	}
	return ActionNakDelay, delay
}

// ContactConsumer applies contact events of one company from a durable push
// consumer owned by this instance. Instances never share a consumer, so every
// replica's index sees every event.
type ContactConsumer struct {
	client    jetstream.ClientInterface
	router    RouterInterface
	cfg       config.ConsumerNatsConfig
	companyID string
	durable   string
	ctx       context.Context
	cancel    context.CancelFunc
	sub       *nats.Subscription
}

// NewContactConsumer creates a consumer. The durable name is suffixed with
// companyID and the instance id.
func NewContactConsumer(client jetstream.ClientInterface, router RouterInterface, cfg config.ConsumerNatsConfig, companyID string) *ContactConsumer {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = logger.WithLogger(ctx, logger.Named("contact_consumer"))
	ctx = tenant.WithCompanyID(ctx, companyID)

	return &ContactConsumer{
		client:    client,
		router:    router,
		cfg:       cfg,
		companyID: companyID,
		durable:   consumerName(cfg.Consumer, companyID, cfg.InstanceID),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Setup configures the NATS stream and the durable consumer.
func (c *ContactConsumer) Setup() error {
	log := logger.FromContext(c.ctx).With(zap.String("stream", c.cfg.Stream), zap.String("consumer", c.durable))
	log.Info("Setting up contact consumer")

	streamSubjects, consumerSubjects := modifySubjects(c.cfg.SubjectList, c.companyID)

	streamCfg := &nats.StreamConfig{
		Name:      c.cfg.Stream,
		Subjects:  streamSubjects,
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    time.Duration(c.cfg.MaxAge*24) * time.Hour,
	}
	if err := c.client.SetupStream(c.ctx, streamCfg); err != nil {
		log.Error("Failed to setup contact stream", zap.Error(err))
		return fmt.Errorf("failed to setup contact stream '%s': %w", c.cfg.Stream, err)
	}

	// Events published before the durable first existed are already part of
	// the bulk load, so a new consumer starts at the tail.
	consumerCfg := &nats.ConsumerConfig{
		Durable:           c.durable,
		FilterSubjects:    consumerSubjects,
		AckPolicy:         nats.AckExplicitPolicy,
		DeliverSubject:    nats.NewInbox(),
		MaxDeliver:        c.cfg.MaxDeliver,
		AckWait:           consumerAckWait,
		MaxAckPending:     consumerMaxAckPending,
		ReplayPolicy:      nats.ReplayInstantPolicy,
		DeliverPolicy:     nats.DeliverNewPolicy,
		InactiveThreshold: c.cfg.InactiveThreshold,
	}
	if err := c.client.SetupConsumer(c.ctx, c.cfg.Stream, consumerCfg); err != nil {
		log.Error("Failed to setup contact consumer", zap.Error(err))
		return fmt.Errorf("failed to setup contact consumer '%s' for stream '%s': %w", c.durable, c.cfg.Stream, err)
	}

	log.Info("Contact consumer setup complete", zap.Strings("filter_subjects", consumerSubjects))
	return nil
}

// Start binds the subscription to the durable consumer.
func (c *ContactConsumer) Start() error {
	log := logger.FromContext(c.ctx)

	sub, err := c.client.SubscribePush("", c.durable, c.cfg.Stream, c.handleMessage)
	if err != nil {
		log.Error("Failed to subscribe contact consumer", zap.Error(err), zap.String("consumer", c.durable))
		return fmt.Errorf("failed to subscribe contact consumer '%s': %w", c.durable, err)
	}
	c.sub = sub
	log.Info("Contact consumer subscribed", zap.String("consumer", c.durable))
	return nil
}

// Stop drains the subscription and cancels in-flight handlers.
func (c *ContactConsumer) Stop() {
	log := logger.FromContext(c.ctx)
	if c.sub != nil {
		if err := c.sub.Drain(); err != nil {
			log.Error("Error draining contact subscription", zap.Error(err))
		}
	}
	if c.cancel != nil {
		c.cancel()
	}
	log.Info("Contact consumer stopped")
}

// handleMessage routes one delivery and settles it.
func (c *ContactConsumer) handleMessage(msg *nats.Msg) {
	startTime := utils.Now()
	eventType, _ := model.MapToBaseEventType(msg.Subject)

	defer func() {
		observer.ObserveEventProcessingDuration(string(eventType), c.companyID, time.Since(startTime))

		if r := recover(); r != nil {
			logger.FromContext(c.ctx).Error("[panic] Recovered from panic in message handler",
				zap.Any("panic", r),
				zap.String("subject", msg.Subject),
				zap.Duration("duration", time.Since(startTime)),
				zap.Stack("stack"),
			)
			observer.IncEventsFailed(string(eventType), c.companyID)
			observer.IncEventProcessingAction(string(eventType), c.companyID, "panic_nak", "panic")
			if nakErr := msg.Nak(); nakErr != nil {
				logger.FromContext(c.ctx).Error("Failed to NAK message after panic", zap.Error(nakErr))
			}
		}
	}()

	log := logger.FromContext(c.ctx).With(zap.String("subject", msg.Subject))

	metadata, err := msg.Metadata()
	if err != nil {
		log.Error("Failed to read message metadata", zap.Error(err))
		observer.IncEventProcessingAction(string(eventType), c.companyID, ActionNak.String(), "metadata")
		if nakErr := msg.Nak(); nakErr != nil {
			log.Error("Failed to NAK message", zap.Error(nakErr))
		}
		return
	}

	msgID := ""
	if msg.Header != nil {
		msgID = msg.Header.Get(nats.MsgIdHdr)
	}
	if msgID == "" {
		msgID = fmt.Sprintf("msg-%d", metadata.Sequence.Stream)
	}

	internal := &model.MessageMetadata{
		StreamSequence:   metadata.Sequence.Stream,
		ConsumerSequence: metadata.Sequence.Consumer,
		NumDelivered:     metadata.NumDelivered,
		NumPending:       metadata.NumPending,
		Timestamp:        metadata.Timestamp,
		Stream:           metadata.Stream,
		Consumer:         metadata.Consumer,
		MessageID:        msgID,
		MessageSubject:   msg.Subject,
		CompanyID:        c.companyID,
	}

	observer.IncEventsReceived(string(eventType), c.companyID)

	msgCtx := logger.WithLogger(c.ctx, log.With(
		zap.String("nats_message_id", msgID),
		zap.Uint64("stream_sequence", internal.StreamSequence),
		zap.Uint64("num_delivered", internal.NumDelivered),
	))

	processingErr := c.router.Route(msgCtx, internal, msg.Data)
	c.settle(msgCtx, msg, string(eventType), processingErr, metadata.NumDelivered, startTime)
}

// settle acknowledges msg according to determineAckAction.
func (c *ContactConsumer) settle(ctx context.Context, msg *nats.Msg, eventType string, processingErr error, numDelivered uint64, startTime time.Time) {
	log := logger.FromContext(ctx)
	action, delay := determineAckAction(processingErr, numDelivered, c.cfg.MaxDeliver, c.cfg.NakBaseDelay, c.cfg.NakMaxDelay)

	errorType := "none"
	if processingErr != nil {
		errorType = observer.SanitizeErrorType(processingErr.Error())
	}
	observer.IncEventProcessingAction(eventType, c.companyID, action.String(), errorType)

	var settleErr error
	switch action {
	case ActionAck:
		log.Info("Processed message", zap.Duration("duration", time.Since(startTime)))
		observer.IncEventsProcessed(eventType, c.companyID)
		settleErr = msg.Ack()

	case ActionNakDelay:
		log.Warn("NAKing message for redelivery",
			zap.Error(processingErr),
			zap.Int("max_deliver", c.cfg.MaxDeliver),
			zap.Duration("nak_delay", delay),
		)
		observer.IncEventsFailed(eventType, c.companyID)
		settleErr = msg.NakWithDelay(delay)

	case ActionTerm:
		reason := "fatal error"
		if apperrors.IsRetryable(processingErr) {
			reason = "max delivery attempts reached"
		}
		log.Error("Terminating message",
			zap.String("reason", reason),
			zap.Error(processingErr),
			zap.Int("max_deliver", c.cfg.MaxDeliver),
		)
		observer.IncEventsFailed(eventType, c.companyID)
		settleErr = msg.Term()
	}

	if settleErr != nil {
		log.Error("Failed to settle message", zap.String("action", action.String()), zap.Error(settleErr))
	}
}
