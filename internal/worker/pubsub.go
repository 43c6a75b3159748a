package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/tripmap/tripmap/internal/provider/resilience"
)

// Job types understood by the worker.
const (
	JobRouteWarm   = "route_warm"
	JobCachePurge  = "cache_purge"
	JobHealthCheck = "health_check"
)

// JobMessage is the payload of a worker Pub/Sub message.
type JobMessage struct {
	JobType string `json:"job_type"`
	Trips   []Trip `json:"trips,omitempty"`
}

// Processor executes job messages independently of the transport.
type Processor struct {
	warmJob  *WarmJob
	registry *resilience.Registry
	logger   zerolog.Logger
}

// ProcessorConfig holds configuration for a Processor.
type ProcessorConfig struct {
	WarmJob *WarmJob
	// Registry is reported on health_check jobs (default: resilience.GlobalRegistry).
	Registry *resilience.Registry
	Logger   zerolog.Logger
}

// NewProcessor creates a new job processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	registry := cfg.Registry
	if registry == nil {
		registry = resilience.GlobalRegistry
	}
	return &Processor{
		warmJob:  cfg.WarmJob,
		registry: registry,
		logger:   cfg.Logger,
	}
}

// Process runs the job encoded in data and reports whether the message should
// be acknowledged. Malformed payloads and unknown job types are acknowledged
// because redelivery cannot fix them.
func (p *Processor) Process(ctx context.Context, data []byte) bool {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		p.logger.Error().Err(err).Msg("failed to parse message")
		return true
	}

	startTime := time.Now()

	var err error
	switch msg.JobType {
	case JobRouteWarm:
		err = p.handleRouteWarm(ctx, msg.Trips)
	case JobCachePurge:
		err = p.handleCachePurge(ctx)
	case JobHealthCheck:
		err = p.handleHealthCheck()
	default:
		p.logger.Warn().Str("job_type", msg.JobType).Msg("unknown job type")
		return true
	}

	if err != nil {
		p.logger.Error().Err(err).Str("job_type", msg.JobType).Msg("job failed")
		return false
	}

	p.logger.Info().
		Str("job_type", msg.JobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")
	return true
}

func (p *Processor) handleRouteWarm(ctx context.Context, trips []Trip) error {
	result := p.warmJob.Run(ctx, trips)

	// Retry the whole batch only when most trips failed.
	if result.Failed > result.Warmed+result.Empty {
		return fmt.Errorf("too many warm failures: %d/%d", result.Failed, result.TotalTrips)
	}
	return nil
}

func (p *Processor) handleCachePurge(ctx context.Context) error {
	if _, err := p.warmJob.Purge(ctx); err != nil {
		return fmt.Errorf("purging route cache: %w", err)
	}
	return nil
}

func (p *Processor) handleHealthCheck() error {
	for _, h := range p.registry.GetAllHealth() {
		event := p.logger.Info()
		if h.IsUnhealthy() {
			event = p.logger.Warn()
		}
		event.
			Str("provider", h.Name).
			Str("status", h.Status()).
			Str("circuit_state", h.CircuitState.String()).
			Uint32("consecutive_failures", h.Counts.ConsecutiveFailures).
			Msg("provider health")
	}

	p.logger.Info().
		Int("providers", p.registry.ProviderCount()).
		Str("overall", p.registry.Overall()).
		Msg("health check completed")
	return nil
}

// PubSubHandler feeds Pub/Sub messages to a Processor.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	processor        *Processor
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Processor        *Processor
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// A warm job can run for minutes; keep few in flight.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 4
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		processor:        cfg.Processor,
		logger:           cfg.Logger,
	}, nil
}

// Start receives messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()
	ctx = logger.WithContext(ctx)

	logger.Debug().Msg("received pubsub message")

	if h.processor.Process(ctx, msg.Data) {
		msg.Ack()
		return
	}
	msg.Nack()
}
