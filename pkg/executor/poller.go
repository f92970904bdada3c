package executor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/models"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/persistence"
)

// Poller drives the executor on a fixed interval: each cycle takes a snapshot
// of pending executor tasks in FIFO order, claims them one by one and runs
// each to completion.
type Poller struct {
	persistence persistence.Persistence
	service     *Service
	logger      *slog.Logger
	interval    time.Duration

	ticker  *time.Ticker
	done    chan bool
	started bool
	mu      sync.Mutex
}

func NewPoller(logger *slog.Logger, store persistence.Persistence, service *Service, interval time.Duration) *Poller {
	return &Poller{
		persistence: store,
		service:     service,
		logger:      logger.With("module", "executor-poller"),
		interval:    interval,
	}
}

// Start begins polling in a background goroutine.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}

	p.logger.InfoContext(ctx, "Starting executor poller", "interval", p.interval)

	p.ticker = time.NewTicker(p.interval)
	p.done = make(chan bool)
	p.started = true

	go p.poll(ctx)

	return nil
}

// Stop halts polling. A task in flight runs to completion; the queue has no
// preemption.
func (p *Poller) Stop(ctx context.Context) error {
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
	p.logger.InfoContext(ctx, "Executor poller stopped")

	return nil
}

func (p *Poller) poll(ctx context.Context) {
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

// ProcessPending runs one bounded poll cycle. A task enqueued mid-cycle waits
// for the next tick; a failed task never aborts the rest of the batch.
func (p *Poller) ProcessPending(ctx context.Context) {
	tasks, err := p.persistence.PendingTasks(ctx, models.StageExecutor)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to fetch pending tasks", "error", err)

		return
	}

	if len(tasks) == 0 {
		return
	}

	p.logger.InfoContext(ctx, "Processing pending tasks", "count", len(tasks))

	for _, task := range tasks {
		claimed, err := p.persistence.ClaimTask(ctx, task.ID)
		if err != nil {
			p.logger.ErrorContext(ctx, "Failed to claim task", "task_id", task.ID, "error", err)

			continue
		}

		if !claimed {
			p.logger.DebugContext(ctx, "Task claimed elsewhere", "task_id", task.ID)

			continue
		}

		result := p.service.RunTask(ctx, task.ID)
		if result.Success {
			p.logger.InfoContext(ctx, "Task completed",
				"task_id", task.ID, "form_id", result.FormID, "form_url", result.FormURL)
		} else {
			p.logger.ErrorContext(ctx, "Task failed",
				"task_id", task.ID, "error", result.Error, "details", result.Details)
		}
	}
}
