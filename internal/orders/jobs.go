package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/signalworks/storefront/internal/shared"
	"github.com/signalworks/storefront/jobs"
)

// InvoiceRegenerator is the slice of Service used by background jobs.
type InvoiceRegenerator interface {
	RegenerateInvoice(ctx context.Context, id string) (*Order, error)
	BackfillInvoices(ctx context.Context, limit int) (int, error)
}

// InvoiceJobs handles the invoice task types.
type InvoiceJobs struct {
	invoices InvoiceRegenerator
	logger   *slog.Logger
}

// NewInvoiceJobs wires the job handlers.
func NewInvoiceJobs(invoices InvoiceRegenerator, logger *slog.Logger) *InvoiceJobs {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvoiceJobs{invoices: invoices, logger: logger}
}

// Handlers lists the task registrations for the worker.
func (j *InvoiceJobs) Handlers() []jobs.TaskHandler {
	return []jobs.TaskHandler{
		{Type: jobs.TaskInvoiceGenerate, Handler: j.HandleGenerate},
		{Type: jobs.TaskInvoiceBackfill, Handler: j.HandleBackfill},
	}
}

// HandleGenerate processes jobs.TaskInvoiceGenerate.
func (j *InvoiceJobs) HandleGenerate(ctx context.Context, t *asynq.Task) error {
	var payload jobs.InvoiceGeneratePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode invoice payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.OrderID == "" {
		return fmt.Errorf("invoice payload without order id: %w", asynq.SkipRetry)
	}
	if _, err := j.invoices.RegenerateInvoice(ctx, payload.OrderID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	return nil
}

// HandleBackfill processes jobs.TaskInvoiceBackfill.
func (j *InvoiceJobs) HandleBackfill(ctx context.Context, t *asynq.Task) error {
	var payload jobs.InvoiceBackfillPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode backfill payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	done, err := j.invoices.BackfillInvoices(ctx, payload.Limit)
	if err != nil {
		return err
	}
	j.logger.Info("invoice backfill finished", slog.Int("generated", done))
	return nil
}
