package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Transport hands a message to a delivery channel.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// FailureCounter records undeliverable notifications.
type FailureCounter interface {
	NotificationFailed(event string)
}

// Dispatcher resolves recipients and delivers in the background.
type Dispatcher struct {
	transport  Transport
	adminEmail string
	logger     *slog.Logger
	failures   FailureCounter
	timeout    time.Duration
}

// NewDispatcher constructs a Dispatcher. failures may be nil.
func NewDispatcher(transport Transport, adminEmail string, logger *slog.Logger, failures FailureCounter) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		transport:  transport,
		adminEmail: adminEmail,
		logger:     logger,
		failures:   failures,
		timeout:    10 * time.Second,
	}
}

// Notify delivers the notification without blocking the caller. The
// caller's context only contributes values, not cancellation, so a
// finished request does not abort delivery.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) {
	if d == nil || d.transport == nil {
		return
	}
	msgs := d.messages(n)
	if len(msgs) == 0 {
		return
	}
	go func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		if err := d.deliver(sendCtx, msgs); err != nil {
			d.logger.Warn("notification delivery failed",
				slog.String("event", string(n.Event)),
				slog.String("reference", n.Reference),
				slog.Any("error", err))
			if d.failures != nil {
				d.failures.NotificationFailed(string(n.Event))
			}
		}
	}()
}

func (d *Dispatcher) deliver(ctx context.Context, msgs []Message) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, msg := range msgs {
		msg := msg
		g.Go(func() error {
			if err := d.transport.Send(gctx, msg); err != nil {
				return fmt.Errorf("send to %s: %w", msg.To, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (d *Dispatcher) messages(n Notification) []Message {
	route, ok := routing[n.Event]
	if !ok {
		d.logger.Warn("unknown notification event", slog.String("event", string(n.Event)))
		return nil
	}
	var msgs []Message
	buyer := strings.TrimSpace(n.BuyerEmail)
	if route&toBuyer != 0 && buyer != "" {
		msgs = append(msgs, d.compose(n, buyer, false))
	}
	if route&toAdmin != 0 && d.adminEmail != "" {
		msgs = append(msgs, d.compose(n, d.adminEmail, true))
	}
	return msgs
}

func (d *Dispatcher) compose(n Notification, to string, admin bool) Message {
	var b strings.Builder
	if admin {
		fmt.Fprintf(&b, "Buyer: %s <%s>\n", n.BuyerName, n.BuyerEmail)
	} else if n.BuyerName != "" {
		fmt.Fprintf(&b, "Hello %s,\n\n", n.BuyerName)
	}
	fmt.Fprintf(&b, "Reference: %s\n", n.Reference)
	if n.Summary != "" {
		b.WriteString(n.Summary)
		b.WriteString("\n")
	}
	return Message{
		Event:     n.Event,
		To:        to,
		Subject:   fmt.Sprintf("%s [%s]", subjects[n.Event], shortRef(n.Reference)),
		Body:      b.String(),
		Reference: n.Reference,
	}
}

func shortRef(ref string) string {
	if len(ref) > 8 {
		return strings.ToUpper(ref[:8])
	}
	return strings.ToUpper(ref)
}
