package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"trivia-quiz-service/internal/domain"

	"github.com/rabbitmq/amqp091-go"
)

type capturedPublish struct {
	exchange string
	key      string
	msg      amqp091.Publishing
}

type fakeChannel struct {
	published []capturedPublish
	err       error
	closed    bool
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	if c.err != nil {
		return c.err
	}
	c.published = append(c.published, capturedPublish{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestDisabledPublisherIsNoop(t *testing.T) {
	p, err := NewPublisher("", "")
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	if p.Enabled() {
		t.Fatalf("expected disabled publisher")
	}
	if err := p.PublishAttemptRecorded(context.Background(), domain.Owner{}, domain.Attempt{}); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestPublishAttemptRecorded(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ch := &fakeChannel{}
	p := &Publisher{channel: ch, exchange: DefaultExchange, enabled: true, now: func() time.Time { return now }}

	owner := domain.Owner{ID: "user-1", Email: "alice@example.com", DisplayName: "Alice"}
	attempt := domain.Attempt{ID: 7, OwnerID: "user-1", Score: 80, CorrectCount: 12, WrongCount: 8, TimeSpentSeconds: 420, CompletedAt: now}
	if err := p.PublishAttemptRecorded(context.Background(), owner, attempt); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(ch.published) != 1 {
		t.Fatalf("expected 1 message, got %d", len(ch.published))
	}
	got := ch.published[0]
	if got.exchange != "quiz.events" || got.key != "attempt.recorded" {
		t.Fatalf("unexpected routing %s/%s", got.exchange, got.key)
	}
	if got.msg.ContentType != "application/json" || got.msg.DeliveryMode != amqp091.Persistent {
		t.Fatalf("unexpected message properties %+v", got.msg)
	}

	var event AttemptRecordedEvent
	if err := json.Unmarshal(got.msg.Body, &event); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if event.AttemptID != 7 || event.Email != "alice@example.com" || event.Score != 80 || event.TimeSpentSeconds != 420 {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestPublishFailureIsWrapped(t *testing.T) {
	boom := errors.New("channel closed")
	p := &Publisher{channel: &fakeChannel{err: boom}, exchange: DefaultExchange, enabled: true, now: time.Now}
	err := p.PublishAttemptRecorded(context.Background(), domain.Owner{}, domain.Attempt{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped channel error, got %v", err)
	}
}
