package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Caseflow/internal/domain"
)

type fakeStore struct {
	events    []domain.WorkflowEvent
	insertErr error
}

func (s *fakeStore) Insert(_ context.Context, ev *domain.WorkflowEvent) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.events = append(s.events, *ev)
	return nil
}

func (s *fakeStore) List(_ context.Context, _ Filter) ([]domain.WorkflowEvent, error) {
	return s.events, nil
}

func (s *fakeStore) Timeline(_ context.Context, _, _ time.Time) ([]TimelineBucket, error) {
	return nil, nil
}

func (s *fakeStore) Stats(_ context.Context, _ Filter) (*Stats, error) {
	return &Stats{Total: int64(len(s.events))}, nil
}

type fakePublisher struct {
	published []domain.WorkflowEvent
	err       error
}

func (p *fakePublisher) PublishEvent(_ context.Context, ev *domain.WorkflowEvent) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, *ev)
	return nil
}

func TestRecord_FillsIDAndTimestamp(t *testing.T) {
	store := &fakeStore{}
	log := NewLog(Config{Store: store})

	log.Workflow(context.Background(), uuid.New(), domain.EventWorkflowStarted, "user-1", nil)

	if len(store.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(store.events))
	}
	ev := store.events[0]
	if ev.ID == uuid.Nil {
		t.Error("event ID should be assigned")
	}
	if ev.CreatedAt.IsZero() {
		t.Error("event timestamp should be assigned")
	}
	if ev.Actor != "user-1" {
		t.Errorf("unexpected actor: %s", ev.Actor)
	}
}

func TestRecord_StoreFailureIsSwallowed(t *testing.T) {
	store := &fakeStore{insertErr: errors.New("db down")}
	pub := &fakePublisher{}
	log := NewLog(Config{Store: store, Publisher: pub})

	// Не должно ни паниковать, ни возвращать ошибку — сигнатура void
	log.Workflow(context.Background(), uuid.New(), domain.EventWorkflowStarted, "engine", nil)

	// Публикация продолжается даже при отказе хранилища
	if len(pub.published) != 1 {
		t.Errorf("publisher should still receive event, got %d", len(pub.published))
	}
}

func TestRecord_PublisherFailureIsSwallowed(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{err: errors.New("broker down")}
	log := NewLog(Config{Store: store, Publisher: pub})

	log.Workflow(context.Background(), uuid.New(), domain.EventWorkflowCompleted, "engine", nil)

	if len(store.events) != 1 {
		t.Errorf("store should still receive event, got %d", len(store.events))
	}
}

func TestStep_LinksStepInstance(t *testing.T) {
	store := &fakeStore{}
	log := NewLog(Config{Store: store})

	stepID := uuid.New()
	log.Step(context.Background(), uuid.New(), stepID, domain.EventStepActivated, "engine", map[string]any{"step": "triage"})

	ev := store.events[0]
	if ev.StepInstanceID == nil || *ev.StepInstanceID != stepID {
		t.Error("step instance ID should be linked")
	}
	if ev.Payload["step"] != "triage" {
		t.Errorf("payload should round-trip, got %v", ev.Payload)
	}
}

func TestList_DefaultLimit(t *testing.T) {
	store := &fakeStore{}
	log := NewLog(Config{Store: store})

	// fakeStore игнорирует фильтр, важна только устойчивость к Limit=0
	if _, err := log.List(context.Background(), Filter{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
