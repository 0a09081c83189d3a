package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueCritical carries invoice work that blocks a buyer-visible artifact.
	QueueCritical = "critical"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskInvoiceGenerate renders and stores the invoice of one order.
	TaskInvoiceGenerate = "invoice:generate"
	// TaskInvoiceBackfill sweeps orders still missing an invoice.
	TaskInvoiceBackfill = "invoice:backfill"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Event     string `json:"event,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// InvoiceGeneratePayload names the order whose invoice must be (re)built.
type InvoiceGeneratePayload struct {
	OrderID string `json:"order_id"`
}

// NewInvoiceGenerateTask constructs an invoice task. The task id is derived
// from the order so repeated enqueues collapse into one pending task.
func NewInvoiceGenerateTask(orderID string) (*asynq.Task, error) {
	body, err := json.Marshal(InvoiceGeneratePayload{OrderID: orderID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceGenerate, body,
		asynq.Queue(QueueCritical),
		asynq.TaskID(TaskInvoiceGenerate+":"+orderID),
		asynq.MaxRetry(10),
	), nil
}

// InvoiceBackfillPayload bounds one sweep.
type InvoiceBackfillPayload struct {
	Limit int `json:"limit"`
}

// NewInvoiceBackfillTask constructs a backfill sweep task.
func NewInvoiceBackfillTask(limit int) (*asynq.Task, error) {
	if limit <= 0 {
		limit = 100
	}
	body, err := json.Marshal(InvoiceBackfillPayload{Limit: limit})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceBackfill, body, asynq.Queue(QueueDefault)), nil
}
