// Package queue publishes domain events to the SQS event queue consumed by
// the event worker, and decodes them on the receiving side.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"leanpulse/internal/types"
)

// eventTypeAttribute carries the event type so consumers can filter without
// parsing the body.
const eventTypeAttribute = "event_type"

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Publisher serializes DomainEvents and sends them to a single queue.
type Publisher struct {
	client   SQSSender
	queueURL string
	clock    types.Clock
	logger   types.Logger
}

// NewPublisher creates a Publisher for queueURL.
func NewPublisher(client SQSSender, queueURL string, clock types.Clock, logger types.Logger) *Publisher {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Publisher{client: client, queueURL: queueURL, clock: clock, logger: logger}
}

// PublishIncidentCreated enqueues an incident.created event and returns the
// event ID. The trace ID is taken from the request context when present.
func (p *Publisher) PublishIncidentCreated(ctx context.Context, ev types.IncidentEvent) (string, error) {
	traceID := types.GetRequestID(ctx)
	if traceID == "" {
		traceID = uuid.New().String()
	}
	incident := ev
	return p.Publish(ctx, types.DomainEvent{
		ID:         uuid.New().String(),
		Type:       types.EventIncidentCreated,
		Incident:   &incident,
		OccurredAt: p.clock.Now(),
		TraceID:    traceID,
	})
}

// Publish sends an already built event.
func (p *Publisher) Publish(ctx context.Context, event types.DomainEvent) (string, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalQueue, "failed to marshal domain event", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			eventTypeAttribute: {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(event.Type)),
			},
		},
	}

	out, err := p.client.SendMessage(ctx, input)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalQueue,
			fmt.Sprintf("failed to send %s event", event.Type), err)
	}

	p.logger.Info("domain event published",
		"event_id", event.ID,
		"event_type", string(event.Type),
		"trace_id", event.TraceID,
		"message_id", aws.ToString(out.MessageId),
	)
	return event.ID, nil
}

// Decode parses a queue message body into a DomainEvent. Unknown event types
// and events missing their payload are rejected.
func Decode(body string) (types.DomainEvent, error) {
	var ev types.DomainEvent
	if err := json.Unmarshal([]byte(body), &ev); err != nil {
		return ev, fmt.Errorf("queue: malformed event body: %w", err)
	}
	switch ev.Type {
	case types.EventIncidentCreated:
		if ev.Incident == nil {
			return ev, fmt.Errorf("queue: event %s has no incident payload", ev.ID)
		}
	default:
		return ev, fmt.Errorf("queue: unknown event type %q", ev.Type)
	}
	return ev, nil
}
