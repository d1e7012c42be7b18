package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"prompt-agent/internal/domain"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@(.+)$`)

// ErrInvalidRecipient is reported when the address fails validation; no
// delivery is attempted in that case.
var ErrInvalidRecipient = errors.New("notify: invalid recipient address")

// Sender delivers a built message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// DeliveryRecorder stores an audit entry for a delivery attempt.
type DeliveryRecorder interface {
	RecordDelivery(ctx context.Context, recipient string, resp domain.PromptResponse, out domain.DeliveryOutcome) error
}

type Dispatcher struct {
	sender   Sender
	recorder DeliveryRecorder
	now      func() time.Time
}

type Option func(*Dispatcher)

// WithRecorder enables the delivery audit log.
func WithRecorder(r DeliveryRecorder) Option {
	return func(d *Dispatcher) {
		d.recorder = r
	}
}

func NewDispatcher(sender Sender, opts ...Option) (*Dispatcher, error) {
	if sender == nil {
		return nil, errors.New("notify: sender must not be nil")
	}
	d := &Dispatcher{sender: sender, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// ValidEmail reports whether addr looks like local-part@domain.
func ValidEmail(addr string) bool {
	if strings.TrimSpace(addr) == "" {
		return false
	}
	return emailPattern.MatchString(addr)
}

// Dispatch emails the exchange to recipient. It never panics or returns an
// error; failures are logged and reported through the outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, recipient, prompt string, resp domain.PromptResponse) (out domain.DeliveryOutcome) {
	if !ValidEmail(recipient) {
		slog.WarnContext(ctx, "invalid email provided", "recipient", recipient)
		return domain.DeliveryOutcome{Err: ErrInvalidRecipient}
	}

	defer func() {
		if r := recover(); r != nil {
			out = domain.DeliveryOutcome{Err: fmt.Errorf("notify: unexpected panic: %v", r)}
			slog.ErrorContext(ctx, "unexpected error sending email", "recipient", recipient, "err", out.Err)
		}
		d.record(ctx, recipient, resp, out)
	}()

	html, err := RenderEmail(prompt, resp, d.now())
	if err != nil {
		slog.ErrorContext(ctx, "error building email", "recipient", recipient, "err", err)
		return domain.DeliveryOutcome{Err: err}
	}
	msg := Message{
		To:      recipient,
		From:    FromAddress,
		Subject: Subject,
		HTML:    html,
	}
	if err := d.sender.Send(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "error sending email", "recipient", recipient, "err", err)
		return domain.DeliveryOutcome{Err: fmt.Errorf("notify: send: %w", err)}
	}
	slog.InfoContext(ctx, "email sent successfully", "recipient", recipient)
	return domain.DeliveryOutcome{Sent: true}
}

func (d *Dispatcher) record(ctx context.Context, recipient string, resp domain.PromptResponse, out domain.DeliveryOutcome) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.RecordDelivery(ctx, recipient, resp, out); err != nil {
		slog.WarnContext(ctx, "failed to record delivery", "recipient", recipient, "err", err)
	}
}
