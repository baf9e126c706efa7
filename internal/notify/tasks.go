package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-cpq/internal/events"
)

// TaskQuoteEvent is the asynq task type carrying a quote lifecycle event.
const TaskQuoteEvent = "notify:quote_event"

// Scheduler enqueues quote events for background delivery. It implements the
// events.DeliveryScheduler interface.
type Scheduler struct {
	Client *asynq.Client
}

// Schedule serialises the event into an asynq task.
func (s Scheduler) Schedule(ctx context.Context, event events.Event) error {
	if s.Client == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("notify: encode task payload: %w", err)
	}
	_, err = s.Client.EnqueueContext(ctx, asynq.NewTask(TaskQuoteEvent, payload,
		asynq.MaxRetry(5),
		asynq.Queue("notifications"),
	))
	if err != nil {
		return fmt.Errorf("notify: enqueue quote event: %w", err)
	}
	return nil
}

// Worker consumes quote event tasks and fans them out to notifiers.
type Worker struct {
	Notifiers []events.Notifier
	Logger    zerolog.Logger
}

// HandleQuoteEvent processes one queued quote event. Returning an error lets
// asynq retry with backoff.
func (w Worker) HandleQuoteEvent(ctx context.Context, task *asynq.Task) error {
	var event events.Event
	if err := json.Unmarshal(task.Payload(), &event); err != nil {
		return fmt.Errorf("notify: decode task payload: %w: %w", err, asynq.SkipRetry)
	}
	for _, n := range w.Notifiers {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, event); err != nil {
			w.Logger.Error().Err(err).Str("topic", event.Topic).Msg("notifier failed")
			return err
		}
	}
	return nil
}

// Register attaches the worker's handlers to an asynq mux.
func (w Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskQuoteEvent, w.HandleQuoteEvent)
}
