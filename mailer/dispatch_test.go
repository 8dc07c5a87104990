package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeTransport struct {
	failVerify int
	failFirst  int
	failAll    bool
	failTo     string
	verifies   int
	sent       []Message
	sendTimes  []time.Time
}

func (f *fakeTransport) Verify(ctx context.Context) error {
	f.verifies++
	if f.failVerify > 0 {
		f.failVerify--
		return errors.New("handshake failed")
	}
	return nil
}

func (f *fakeTransport) Send(ctx context.Context, msg Message) (string, error) {
	f.sendTimes = append(f.sendTimes, time.Now())
	if f.failAll {
		return "", errors.New("connection refused")
	}
	if f.failTo != "" && msg.To == f.failTo {
		return "", errors.New("mailbox unavailable")
	}
	if f.failFirst > 0 {
		f.failFirst--
		return "", errors.New("temporary failure")
	}
	f.sent = append(f.sent, msg)
	return "<test@example.com>", nil
}

func testSubmission() Submission {
	return Submission{
		Name:    "Jane Doe",
		Email:   "jane@example.com",
		Subject: "Quote request",
		Message: "I would like a quote for a project.",
	}
}

func TestDispatchSendsOperatorThenConfirmation(t *testing.T) {
	ft := &fakeTransport{}
	d := NewDispatcher(ft, "owner@example.com", "Example Co", zap.NewNop())

	res, err := d.Dispatch(context.Background(), testSubmission())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(ft.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(ft.sent))
	}
	if ft.sent[0].To != "owner@example.com" {
		t.Errorf("first message to %q, want operator", ft.sent[0].To)
	}
	if ft.sent[0].ReplyTo != "jane@example.com" {
		t.Errorf("Reply-To = %q, want submitter address", ft.sent[0].ReplyTo)
	}
	if ft.sent[1].To != "jane@example.com" {
		t.Errorf("second message to %q, want submitter", ft.sent[1].To)
	}
	if !res.ConfirmationSent {
		t.Error("ConfirmationSent = false, want true")
	}
	if res.MessageID == "" {
		t.Error("MessageID is empty")
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
}

func TestDispatchRetriesThenSucceeds(t *testing.T) {
	ft := &fakeTransport{failFirst: 1}
	d := NewDispatcher(ft, "owner@example.com", "Example Co", zap.NewNop())

	res, err := d.Dispatch(context.Background(), testSubmission())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", res.Attempts)
	}
	if len(ft.sent) != 2 {
		t.Errorf("sent %d messages, want 2", len(ft.sent))
	}
}

func TestDispatchGivesUpAfterThreeAttempts(t *testing.T) {
	ft := &fakeTransport{failAll: true}
	d := NewDispatcher(ft, "owner@example.com", "Example Co", zap.NewNop())

	res, err := d.Dispatch(context.Background(), testSubmission())
	if err == nil {
		t.Fatal("Dispatch succeeded, want error")
	}
	if res.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", res.Attempts)
	}
	if len(ft.sendTimes) != 3 {
		t.Fatalf("transport called %d times, want 3", len(ft.sendTimes))
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("error %q does not mention attempt count", err)
	}
	// Gap between attempts two and three should be at least the doubled
	// backoff.
	if gap := ft.sendTimes[2].Sub(ft.sendTimes[1]); gap < 2*time.Second {
		t.Errorf("second backoff gap = %v, want >= 2s", gap)
	}
}

func TestDispatchRetriesAfterVerifyFailure(t *testing.T) {
	ft := &fakeTransport{failVerify: 1}
	d := NewDispatcher(ft, "owner@example.com", "Example Co", zap.NewNop())

	res, err := d.Dispatch(context.Background(), testSubmission())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", res.Attempts)
	}
	if ft.verifies != 2 {
		t.Errorf("Verify called %d times, want 2", ft.verifies)
	}
	// The failed round never reached Send.
	if len(ft.sent) != 2 {
		t.Errorf("sent %d messages, want 2", len(ft.sent))
	}
}

func TestDispatchSwallowsConfirmationFailure(t *testing.T) {
	ft := &fakeTransport{failTo: "jane@example.com"}
	d := NewDispatcher(ft, "owner@example.com", "Example Co", zap.NewNop())

	res, err := d.Dispatch(context.Background(), testSubmission())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.ConfirmationSent {
		t.Error("ConfirmationSent = true, want false")
	}
	if res.MessageID == "" {
		t.Error("MessageID is empty")
	}
}

func TestDispatchHonorsContextDuringBackoff(t *testing.T) {
	ft := &fakeTransport{failAll: true}
	d := NewDispatcher(ft, "owner@example.com", "Example Co", zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := d.Dispatch(ctx, testSubmission())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context deadline", err)
	}
	if len(ft.sendTimes) != 1 {
		t.Errorf("transport called %d times before cancel, want 1", len(ft.sendTimes))
	}
}
