package core

import (
	"context"
	"fmt"
	"maps"

	"golang.org/x/sync/errgroup"

	"leanpulse/internal/types"
)

const defaultConcurrency = 8

var _ types.Dispatcher = (*Dispatcher)(nil)

// Dispatcher implements types.Dispatcher. Each recipient gets its own log row
// and a single send attempt; there is no automatic retry.
type Dispatcher struct {
	store       LogStore
	senders     map[types.ChannelType]types.ChannelSender
	metrics     NotificationMetrics
	clock       types.Clock
	logger      types.Logger
	concurrency int
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMetrics sets the metrics sink. Defaults to NoopMetrics.
func WithMetrics(m NotificationMetrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithClock overrides the clock used for sent_at and latency.
func WithClock(c types.Clock) DispatcherOption {
	return func(d *Dispatcher) { d.clock = c }
}

// WithConcurrency bounds the number of recipients delivered in parallel.
func WithConcurrency(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// NewDispatcher registers one sender per channel. A later sender for the same
// channel replaces an earlier one.
func NewDispatcher(store LogStore, senders []types.ChannelSender, logger types.Logger, opts ...DispatcherOption) *Dispatcher {
	if logger == nil {
		logger = types.NopLogger{}
	}
	d := &Dispatcher{
		store:       store,
		senders:     make(map[types.ChannelType]types.ChannelSender, len(senders)),
		metrics:     NoopMetrics{},
		clock:       types.RealClock{},
		logger:      logger,
		concurrency: defaultConcurrency,
	}
	for _, s := range senders {
		d.senders[s.Channel()] = s
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch delivers n to every recipient and returns per-recipient outcomes in
// input order.
//
// Delivery failures are reported in the BatchResult, not as an error. The
// returned error is non-nil only for an invalid request, or when no log row
// could be written for any recipient (internal_persistence_failure); in the
// latter case the full result is returned as well.
//
// Attempts run detached from ctx cancellation so a started attempt is always
// finalized in the log.
func (d *Dispatcher) Dispatch(ctx context.Context, n types.Notification) (*types.BatchResult, error) {
	if n.Channel == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "channel is required", nil)
	}
	if !n.Channel.Valid() {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidChannel,
			fmt.Sprintf("unknown channel %q", n.Channel), nil, map[string]any{"channel": string(n.Channel)})
	}
	if len(n.Recipients) == 0 {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "at least one recipient is required", nil)
	}

	logger := d.logger.With("notification_type", n.Type, "channel", string(n.Channel))
	attemptCtx := context.WithoutCancel(ctx)

	results := make([]types.RecipientResult, len(n.Recipients))
	logged := make([]bool, len(n.Recipients))

	g := new(errgroup.Group)
	g.SetLimit(d.concurrency)
	for i, r := range n.Recipients {
		g.Go(func() error {
			results[i], logged[i] = d.deliver(attemptCtx, logger, n, r)
			return nil
		})
	}
	_ = g.Wait()

	batch := &types.BatchResult{Success: true, PerRecipient: results}
	anyLogged := false
	for i, r := range results {
		if !r.Success {
			batch.Success = false
		}
		if logged[i] {
			anyLogged = true
		}
	}

	if !anyLogged {
		logger.Error("no delivery log rows could be written", "recipients", len(results))
		return batch, types.NewAppError(types.ErrCodeInternalPersistence,
			"failed to record any delivery log entry", nil)
	}
	return batch, nil
}

// deliver runs the insert, send, update sequence for one recipient. The bool
// reports whether the pending row was written.
func (d *Dispatcher) deliver(ctx context.Context, logger types.Logger, n types.Notification, r types.Recipient) (types.RecipientResult, bool) {
	entry := &types.NotificationLogEntry{
		UserID:           r.UserID,
		NotificationType: n.Type,
		Channel:          n.Channel,
		Recipient:        r.Address,
		Subject:          n.Subject,
		Content:          n.Content,
	}
	logID, err := d.store.Insert(ctx, entry)
	if err != nil {
		logger.Error("delivery log insert failed", "recipient", r.Address, "error", err.Error())
		return types.RecipientResult{
			Recipient: r.Address,
			Success:   false,
			Message:   "log-write-error: " + err.Error(),
		}, false
	}

	start := d.clock.Now()
	res := d.send(ctx, logger, n, r, logID)
	d.metrics.RecordLatency(ctx, n.Channel, d.clock.Now().Sub(start))

	var update types.LogUpdate
	if res.Success {
		sentAt := d.clock.Now()
		update = types.LogUpdate{Status: types.LogStatusSent, SentAt: &sentAt}
		d.metrics.RecordDelivery(ctx, n.Channel, MetricSuccess)
	} else {
		if res.Message == "" {
			res.Message = "delivery failed"
		}
		msg := res.Message
		update = types.LogUpdate{Status: types.LogStatusFailed, ErrorMessage: &msg}
		d.metrics.RecordDelivery(ctx, n.Channel, MetricFailed)
		logger.Warn("delivery failed", "recipient", r.Address, "log_id", logID, "reason", msg)
	}

	if err := d.store.Update(ctx, logID, update); err != nil {
		logger.Error("delivery log update failed", "log_id", logID, "error", err.Error())
		res.Message = fmt.Sprintf("%s (log-update-error: %v)", res.Message, err)
	}

	return types.RecipientResult{
		Recipient: r.Address,
		Success:   res.Success,
		Message:   res.Message,
		LogID:     logID,
	}, true
}

// send invokes the channel sender. The log row id is passed to the sender as
// metadata["log_id"] so providers can tag the message with it.
func (d *Dispatcher) send(ctx context.Context, logger types.Logger, n types.Notification, r types.Recipient, logID string) (res types.SendResult) {
	sender, ok := d.senders[n.Channel]
	if !ok {
		return types.SendResult{Success: false, Message: fmt.Sprintf("no sender registered for channel %s", n.Channel)}
	}

	defer func() {
		if p := recover(); p != nil {
			logger.Error("sender panicked", "recipient", r.Address, "panic", fmt.Sprint(p))
			res = types.SendResult{Success: false, Message: fmt.Sprintf("sender panic: %v", p)}
		}
	}()

	meta := make(map[string]any, len(n.Metadata)+1)
	maps.Copy(meta, n.Metadata)
	meta["log_id"] = logID

	return sender.Send(ctx, types.OutboundMessage{
		Recipient: r.Address,
		Subject:   n.Subject,
		Content:   n.Content,
		Metadata:  meta,
	})
}
