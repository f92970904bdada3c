package planner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/models"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/persistence"
)

// NotificationPoller consumes the executor's form_created and
// form_creation_failed reply tasks. The outcome is already durable on the
// conversation, so consuming means logging the notification and marking it
// completed.
type NotificationPoller struct {
	persistence persistence.Persistence
	logger      *slog.Logger
	interval    time.Duration

	ticker  *time.Ticker
	done    chan bool
	started bool
	mu      sync.Mutex
}

// NewNotificationPoller creates a poller with the given interval.
func NewNotificationPoller(logger *slog.Logger, store persistence.Persistence, interval time.Duration) *NotificationPoller {
	return &NotificationPoller{
		persistence: store,
		logger:      logger.With("module", "planner-notifications"),
		interval:    interval,
	}
}

// Start begins polling in a background goroutine.
func (p *NotificationPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}

	p.logger.InfoContext(ctx, "Starting planner notification poller", "interval", p.interval)

	p.ticker = time.NewTicker(p.interval)
	p.done = make(chan bool)
	p.started = true

	go p.poll(ctx)

	return nil
}

// Stop halts polling. A cycle in flight finishes on its own.
func (p *NotificationPoller) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return nil
	}

	if p.ticker != nil {
		p.ticker.Stop()
	}

	select {
	case p.done <- true:
	default:
	}

	p.started = false
	p.logger.InfoContext(ctx, "Planner notification poller stopped")

	return nil
}

func (p *NotificationPoller) poll(ctx context.Context) {
	for {
		select {
		case <-p.done:
			return
		case <-ctx.Done():
			return
		case <-p.ticker.C:
			p.ProcessPending(ctx)
		}
	}
}

// ProcessPending consumes one bounded batch of pending notifications. A
// single notification's failure never aborts the batch.
func (p *NotificationPoller) ProcessPending(ctx context.Context) {
	tasks, err := p.persistence.PendingTasks(ctx, models.StagePlanner)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to fetch pending notifications", "error", err)

		return
	}

	for _, task := range tasks {
		claimed, err := p.persistence.ClaimTask(ctx, task.ID)
		if err != nil {
			p.logger.ErrorContext(ctx, "Failed to claim notification", "task_id", task.ID, "error", err)

			continue
		}

		if !claimed {
			continue
		}

		p.consume(ctx, task)
	}
}

func (p *NotificationPoller) consume(ctx context.Context, task *models.Task) {
	switch task.Type {
	case models.TaskTypeFormCreated:
		p.logger.InfoContext(ctx, "Form published",
			"conversation_id", task.ConversationID,
			"form_id", task.Payload["form_id"],
			"form_url", task.Payload["form_url"])
	case models.TaskTypeFormCreationFailed:
		p.logger.ErrorContext(ctx, "Form creation failed",
			"conversation_id", task.ConversationID,
			"error", task.Payload["error"],
			"details", task.Payload["details"])
	default:
		p.logger.WarnContext(ctx, "Unexpected notification type",
			"task_id", task.ID, "task_type", task.Type)
	}

	err := p.persistence.FinalizeTask(ctx, &persistence.TaskOutcome{
		TaskID: task.ID,
		Status: models.TaskStatusCompleted,
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to finalize notification", "task_id", task.ID, "error", err)
	}
}
