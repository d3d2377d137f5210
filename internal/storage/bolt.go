package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/getstubd/stubd/pkg/execution"
	"github.com/getstubd/stubd/pkg/logging"
	"github.com/getstubd/stubd/pkg/message"
	"github.com/getstubd/stubd/pkg/scenario"
)

var executionsBucket = []byte("executions")

// BoltStore is a bbolt-backed execution.Store. Each record is stored as a
// JSON document keyed by its big-endian execution id, so iteration order
// is id order. Every store operation is one bbolt transaction; per-record
// write serialization comes from bbolt's single-writer model.
//
// Unlike MemoryStore, idempotent message attachment is by value here: the
// returned message is the decoded stored copy, not the caller's pointer.
type BoltStore struct {
	db  *bolt.DB
	log *slog.Logger
}

var _ execution.Store = (*BoltStore)(nil)

// OpenBoltStore opens (or creates) the database file at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open execution store %q: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(executionsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize execution store: %w", err)
	}
	return &BoltStore{db: db, log: logging.Nop()}, nil
}

// SetLogger sets the operational logger.
func (s *BoltStore) SetLogger(log *slog.Logger) {
	if log != nil {
		s.log = log
	}
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Create implements execution.Store.
func (s *BoltStore) Create(_ context.Context, scenarioName string, params []scenario.Param) (*execution.Record, error) {
	var rec *execution.Record
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(executionsBucket)
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		rec = &execution.Record{
			ID:           int64(id),
			ScenarioName: scenarioName,
			StartedAt:    time.Now(),
			Status:       execution.StatusActive,
			Params:       append([]scenario.Param(nil), params...),
		}
		return putRecord(b, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create execution record: %w", err)
	}
	return rec, nil
}

// Get implements execution.Store.
func (s *BoltStore) Get(_ context.Context, id int64) (*execution.Record, error) {
	var rec *execution.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		rec, err = getRecord(tx.Bucket(executionsBucket), id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List implements execution.Store. Results are newest first.
func (s *BoltStore) List(_ context.Context, filter execution.ListFilter) ([]*execution.Record, error) {
	var out []*execution.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(executionsBucket).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var rec execution.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("corrupt execution record %x: %w", k, err)
			}
			if filter.ScenarioName != "" && rec.ScenarioName != filter.ScenarioName {
				continue
			}
			if filter.Status != "" && rec.Status != filter.Status {
				continue
			}
			out = append(out, &rec)
			if filter.Limit > 0 && len(out) >= filter.Limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Complete implements execution.Store.
func (s *BoltStore) Complete(_ context.Context, id int64, status execution.Status, errorMessage string) error {
	return s.update(id, func(rec *execution.Record) {
		if rec.Terminal() || rec.EndedAt != nil {
			s.log.Warn("execution already completed, ignoring second completion",
				"executionId", id, "status", rec.Status, "attempted", status)
			return
		}
		now := time.Now()
		rec.EndedAt = &now
		rec.Status = status
		rec.ErrorMessage = errorMessage
	})
}

// AttachAction implements execution.Store.
func (s *BoltStore) AttachAction(_ context.Context, id int64, name string) (*execution.Action, error) {
	var action *execution.Action
	err := s.update(id, func(rec *execution.Record) {
		now := time.Now()
		closeLastAction(rec, now)
		action = &execution.Action{Name: name, StartedAt: now}
		rec.Actions = append(rec.Actions, action)
	})
	if err != nil {
		return nil, err
	}
	return action, nil
}

// CloseLastAction implements execution.Store.
func (s *BoltStore) CloseLastAction(_ context.Context, id int64) error {
	return s.update(id, func(rec *execution.Record) {
		closeLastAction(rec, time.Now())
	})
}

// AttachMessage implements execution.Store.
func (s *BoltStore) AttachMessage(_ context.Context, id int64, m *message.Message) (*message.Message, error) {
	var attached *message.Message
	err := s.update(id, func(rec *execution.Record) {
		for _, existing := range rec.Messages {
			if existing.ID == m.ID && existing.Direction == m.Direction {
				attached = existing
				return
			}
		}
		rec.Messages = append(rec.Messages, m)
		attached = m
	})
	if err != nil {
		return nil, err
	}
	return attached, nil
}

// DeleteAll implements execution.Store.
func (s *BoltStore) DeleteAll(_ context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(executionsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(executionsBucket)
		return err
	})
}

// update runs a read-modify-write cycle on one record in a single bbolt
// transaction.
func (s *BoltStore) update(id int64, mutate func(*execution.Record)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(executionsBucket)
		rec, err := getRecord(b, id)
		if err != nil {
			return err
		}
		mutate(rec)
		return putRecord(b, rec)
	})
}

func putRecord(b *bolt.Bucket, rec *execution.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode execution record: %w", err)
	}
	return b.Put(recordKey(rec.ID), data)
}

func getRecord(b *bolt.Bucket, id int64) (*execution.Record, error) {
	data := b.Get(recordKey(id))
	if data == nil {
		return nil, execution.ErrRecordNotFound
	}
	var rec execution.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt execution record %d: %w", id, err)
	}
	return &rec, nil
}

func recordKey(id int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}
