package storage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/getstubd/stubd/pkg/execution"
	"github.com/getstubd/stubd/pkg/logging"
	"github.com/getstubd/stubd/pkg/message"
	"github.com/getstubd/stubd/pkg/scenario"
)

// MemoryStore is a thread-safe in-memory execution.Store. It is the
// default backend and the reference for the store contract semantics.
type MemoryStore struct {
	mu      sync.RWMutex
	seq     int64
	records map[int64]*execution.Record
	order   []int64
	log     *slog.Logger
}

var _ execution.Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[int64]*execution.Record),
		log:     logging.Nop(),
	}
}

// SetLogger sets the operational logger.
func (s *MemoryStore) SetLogger(log *slog.Logger) {
	if log != nil {
		s.log = log
	}
}

// Create implements execution.Store.
func (s *MemoryStore) Create(_ context.Context, scenarioName string, params []scenario.Param) (*execution.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	snapshot := make([]scenario.Param, len(params))
	copy(snapshot, params)

	rec := &execution.Record{
		ID:           s.seq,
		ScenarioName: scenarioName,
		StartedAt:    time.Now(),
		Status:       execution.StatusActive,
		Params:       snapshot,
	}
	s.records[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	return copyRecord(rec), nil
}

// Get implements execution.Store.
func (s *MemoryStore) Get(_ context.Context, id int64) (*execution.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, execution.ErrRecordNotFound
	}
	return copyRecord(rec), nil
}

// List implements execution.Store. Results are newest first.
func (s *MemoryStore) List(_ context.Context, filter execution.ListFilter) ([]*execution.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*execution.Record
	for i := len(s.order) - 1; i >= 0; i-- {
		rec := s.records[s.order[i]]
		if filter.ScenarioName != "" && rec.ScenarioName != filter.ScenarioName {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		out = append(out, copyRecord(rec))
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Complete implements execution.Store. A second completion attempt is a
// logged no-op: the first terminal status and end timestamp stand.
func (s *MemoryStore) Complete(_ context.Context, id int64, status execution.Status, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return execution.ErrRecordNotFound
	}
	if rec.Terminal() || rec.EndedAt != nil {
		s.log.Warn("execution already completed, ignoring second completion",
			"executionId", id, "status", rec.Status, "attempted", status)
		return nil
	}

	now := time.Now()
	rec.EndedAt = &now
	rec.Status = status
	rec.ErrorMessage = errorMessage
	return nil
}

// AttachAction implements execution.Store. Starting an action closes the
// previously open one.
func (s *MemoryStore) AttachAction(_ context.Context, id int64, name string) (*execution.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, execution.ErrRecordNotFound
	}

	now := time.Now()
	closeLastAction(rec, now)

	action := &execution.Action{Name: name, StartedAt: now}
	rec.Actions = append(rec.Actions, action)
	return action, nil
}

// CloseLastAction implements execution.Store.
func (s *MemoryStore) CloseLastAction(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return execution.ErrRecordNotFound
	}
	closeLastAction(rec, time.Now())
	return nil
}

// AttachMessage implements execution.Store. Attachment is idempotent per
// (direction, transport id): re-attaching returns the original message
// rather than creating a duplicate.
func (s *MemoryStore) AttachMessage(_ context.Context, id int64, m *message.Message) (*message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, execution.ErrRecordNotFound
	}
	for _, existing := range rec.Messages {
		if existing.ID == m.ID && existing.Direction == m.Direction {
			return existing, nil
		}
	}
	rec.Messages = append(rec.Messages, m)
	return m, nil
}

// DeleteAll implements execution.Store.
func (s *MemoryStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[int64]*execution.Record)
	s.order = nil
	return nil
}

func closeLastAction(rec *execution.Record, now time.Time) {
	if n := len(rec.Actions); n > 0 && rec.Actions[n-1].EndedAt == nil {
		rec.Actions[n-1].EndedAt = &now
	}
}

// copyRecord returns a read snapshot: the record struct and its slices
// are copied, messages and actions stay shared (append-only).
func copyRecord(rec *execution.Record) *execution.Record {
	c := *rec
	c.Params = append([]scenario.Param(nil), rec.Params...)
	c.Actions = append([]*execution.Action(nil), rec.Actions...)
	c.Messages = append([]*message.Message(nil), rec.Messages...)
	return &c
}
