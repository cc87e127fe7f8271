// Package main is the entrypoint for the Event Worker Lambda function.
//
// The Event Worker consumes domain events the API published to the events
// SQS queue and runs the matching trigger. Each invocation receives a batch
// of messages and reports partial failures so SQS redelivers only the
// messages that hit a transient error.
//
// Per message:
//  1. Decode the DomainEvent envelope. Malformed bodies are ACKed and logged.
//  2. Run the trigger for the event type.
//  3. Validation failures are ACKed. Other trigger errors (for example a
//     preference lookup failure) are returned as batch item failures.
//
// Delivery failures are recorded in the delivery log by the dispatcher and
// never cause a redelivery.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"leanpulse/internal/app"
	"leanpulse/internal/config"
	"leanpulse/internal/db"
	"leanpulse/internal/notifications/recipients"
	"leanpulse/internal/queue"
	"leanpulse/internal/reports"
	"leanpulse/internal/triggers"
	"leanpulse/internal/types"
)

// IncidentTrigger runs the incident alert trigger.
type IncidentTrigger interface {
	IncidentCreated(ctx context.Context, ev types.IncidentEvent) (*types.TriggerSummary, error)
}

// Handler holds the dependencies for the event worker Lambda handler.
type Handler struct {
	trigger IncidentTrigger
	logger  types.Logger
}

// Handle processes an SQS event containing one or more domain events.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processMessage(ctx, record); err != nil {
			h.logger.Error("failed to process SQS message",
				"message_id", record.MessageId,
				"error", err.Error(),
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

// processMessage returns an error only when the message should be retried.
func (h *Handler) processMessage(ctx context.Context, record events.SQSMessage) error {
	ev, err := queue.Decode(record.Body)
	if err != nil {
		// Permanent: redelivery cannot fix the body.
		h.logger.Error("dropping undecodable event",
			"message_id", record.MessageId,
			"error", err.Error(),
		)
		return nil
	}

	if ev.TraceID != "" {
		ctx = types.WithRequestID(ctx, ev.TraceID)
	}
	logger := h.logger.With(
		"event_id", ev.ID,
		"event_type", string(ev.Type),
		"trace_id", ev.TraceID,
	)

	switch ev.Type {
	case types.EventIncidentCreated:
		summary, err := h.trigger.IncidentCreated(ctx, *ev.Incident)
		if err != nil {
			if isPermanent(err) {
				logger.Warn("dropping invalid incident event", "error", err.Error())
				return nil
			}
			return fmt.Errorf("incident trigger: %w", err)
		}
		logger.Info("incident event processed",
			"incident_id", ev.Incident.IncidentID,
			"dispatches", summary.Dispatches,
			"delivered", summary.Delivered,
			"failed", summary.Failed,
			"errors", summary.Errors,
		)
		return nil
	}

	// Decode rejects unknown types; this is unreachable in practice.
	logger.Warn("no trigger for event type")
	return nil
}

// isPermanent reports whether err is a validation failure that a retry
// would repeat.
func isPermanent(err error) bool {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return strings.HasPrefix(string(appErr.Code), "validation_")
	}
	return false
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(nil)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(cfg.LogLevel)
	logger.Info("event worker initializing (cold start)", "version", cfg.Build.Version)

	ctx := context.Background()

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return fmt.Errorf("loading facility time zone: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	awsCfg, err := app.LoadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		return err
	}

	libLogger := types.NewSlogAdapter(logger)

	senders, err := app.Senders(cfg, libLogger)
	if err != nil {
		return err
	}
	metrics := app.Metrics(cfg, awsCfg, libLogger)
	dispatcher := app.NewDispatcher(cfg, db.NewNotificationLogRepository(pool), senders, metrics, libLogger)

	trigger := triggers.NewService(triggers.Config{
		Resolver:   recipients.NewResolver(db.NewPreferenceRepository(pool)),
		Tasks:      db.NewTaskRepository(pool),
		Compiler:   reports.NewCompiler(db.NewMetricsRepository(pool), loc),
		Dispatcher: dispatcher,
		Location:   loc,
		Logger:     libLogger.With("component", "triggers"),
	})

	handler := &Handler{trigger: trigger, logger: libLogger}

	logger.Info("event worker initialized")
	lambda.Start(handler.Handle)
	return nil
}
