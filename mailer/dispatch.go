package mailer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	maxAttempts    = 3
	initialBackoff = time.Second
	maxBackoff     = 5 * time.Second
)

// Submission carries a validated contact form entry.
type Submission struct {
	Name    string
	Email   string
	Phone   string
	Subject string
	Message string
}

// Result reports what a dispatch achieved.
type Result struct {
	MessageID        string
	ConfirmationSent bool
	Attempts         int
}

// Dispatcher relays submissions to the site operator and confirms receipt
// back to the submitter.
type Dispatcher struct {
	transport Transport
	to        string
	siteName  string
	log       *zap.Logger
}

// NewDispatcher creates a Dispatcher delivering operator mail to the given
// address.
func NewDispatcher(transport Transport, to, siteName string, log *zap.Logger) *Dispatcher {
	return &Dispatcher{transport: transport, to: to, siteName: siteName, log: log}
}

// Verify checks the underlying transport.
func (d *Dispatcher) Verify(ctx context.Context) error {
	return d.transport.Verify(ctx)
}

// Dispatch sends the operator notification, retrying on failure, then sends
// the submitter a confirmation. A failed confirmation does not fail the
// dispatch; it is reported through Result.ConfirmationSent.
func (d *Dispatcher) Dispatch(ctx context.Context, sub Submission) (Result, error) {
	res := Result{}

	primary := operatorMessage(sub, d.to)
	confirmation := confirmationMessage(sub, d.siteName)

	var lastErr error
	backoff := initialBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res.Attempts = attempt
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		if err := d.transport.Verify(ctx); err != nil {
			lastErr = err
			d.log.Warn("transport verify failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}

		id, err := d.transport.Send(ctx, primary)
		if err != nil {
			lastErr = err
			d.log.Warn("contact relay attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}
		res.MessageID = id

		if _, err := d.transport.Send(ctx, confirmation); err != nil {
			d.log.Warn("confirmation email failed",
				zap.String("to", sub.Email),
				zap.Error(err))
		} else {
			res.ConfirmationSent = true
		}
		return res, nil
	}

	return res, fmt.Errorf("contact relay failed after %d attempts: %w", maxAttempts, lastErr)
}
