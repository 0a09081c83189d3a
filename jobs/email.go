package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
)

// EmailDelivery forwards mail:send tasks to the mail microservice.
type EmailDelivery struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewEmailDelivery builds the delivery handler. An empty endpoint logs
// messages instead of sending them, which is the local development mode.
func NewEmailDelivery(endpoint string, logger *slog.Logger) *EmailDelivery {
	return &EmailDelivery{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

// HandleSendEmailTask processes TaskTypeSendEmail tasks.
func (d *EmailDelivery) HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode email payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.To == "" {
		return fmt.Errorf("email payload without recipient: %w", asynq.SkipRetry)
	}
	if d.endpoint == "" {
		d.logger.Info("email delivery disabled, dropping message",
			slog.String("to", payload.To),
			slog.String("event", payload.Event),
			slog.String("reference", payload.Reference))
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %v: %w", err, asynq.SkipRetry)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("email service returned %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("email service rejected message with %d: %w", resp.StatusCode, asynq.SkipRetry)
	}
	return nil
}
