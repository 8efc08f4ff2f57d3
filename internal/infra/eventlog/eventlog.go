// Package eventlog archives every raw webhook delivery in an embedded
// BoltDB file, keyed by provider and event id. The archive is for
// operator triage and duplicate-delivery forensics; it is never part of
// the ledger's idempotency decision, which lives in the SQL store's
// uniqueness constraint.
package eventlog

import (
	"encoding/json"
	"errors"
	"time"

	bolt "github.com/boltdb/bolt"
)

const bucketName = "webhook_events"

// ErrNotFound is returned when a requested entry does not exist.
var ErrNotFound = errors.New("webhook event not found")

// Entry is one archived webhook delivery.
type Entry struct {
	Provider        string          `json:"provider"`
	EventID         string          `json:"event_id"`
	EventType       string          `json:"event_type"`
	SignatureValid  bool            `json:"signature_valid"`
	Payload         json.RawMessage `json:"payload"`
	ReceivedAt      time.Time       `json:"received_at"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
	ProcessingError string          `json:"processing_error,omitempty"`
	Deliveries      int             `json:"deliveries"` // redelivery count for the same event id
}

// Log wraps a BoltDB file holding archived webhook deliveries.
type Log struct {
	db *bolt.DB
}

// Open opens (or creates) the archive at the given path.
func Open(path string) (*Log, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Log{db: db}, nil
}

// Close releases the database file lock.
func (l *Log) Close() error {
	return l.db.Close()
}

// key builds the bucket key for a delivery.
func key(provider, eventID string) []byte {
	return []byte(provider + "/" + eventID)
}

// Record archives a delivery. If the event id was seen before, the
// stored entry is kept and only its delivery counter is bumped —
// retries must not overwrite the original record.
// Returns false when the event id already existed.
func (l *Log) Record(e Entry) (bool, error) {
	created := false
	err := l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		k := key(e.Provider, e.EventID)

		if existing := b.Get(k); existing != nil {
			var stored Entry
			if err := json.Unmarshal(existing, &stored); err != nil {
				return err
			}
			stored.Deliveries++
			data, err := json.Marshal(stored)
			if err != nil {
				return err
			}
			return b.Put(k, data)
		}

		e.ReceivedAt = time.Now().UTC()
		e.Deliveries = 1
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		created = true
		return b.Put(k, data)
	})
	return created, err
}

// MarkProcessed stamps the processing outcome on an archived delivery.
func (l *Log) MarkProcessed(provider, eventID, processingError string) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		k := key(provider, eventID)

		existing := b.Get(k)
		if existing == nil {
			return ErrNotFound
		}
		var stored Entry
		if err := json.Unmarshal(existing, &stored); err != nil {
			return err
		}
		now := time.Now().UTC()
		stored.ProcessedAt = &now
		stored.ProcessingError = processingError

		data, err := json.Marshal(stored)
		if err != nil {
			return err
		}
		return b.Put(k, data)
	})
}

// Get retrieves an archived delivery.
func (l *Log) Get(provider, eventID string) (*Entry, error) {
	var e Entry
	err := l.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		v := b.Get(key(provider, eventID))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &e)
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}
