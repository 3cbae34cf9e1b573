package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/fastygo/botgateway/domain"
	"github.com/fastygo/botgateway/repository"
)

const defaultListLimit = 50

// Store keeps tick reports in a BoltDB bucket keyed by start time, so a
// cursor walk yields them in chronological order.
type Store struct {
	db     *bolt.DB
	bucket []byte
}

// Open initializes the BoltDB file and ensures the bucket exists.
func Open(path string, bucket string) (*Store, error) {
	if bucket == "" {
		bucket = "ticks"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:     db,
		bucket: []byte(bucket),
	}, nil
}

// Append stores a tick report, assigning an ID and start time when missing.
func (s *Store) Append(_ context.Context, report domain.TickReport) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.StartedAt.IsZero() {
		report.StartedAt = time.Now()
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put(buildKey(report.StartedAt, report.ID), payload)
	})
}

// List returns reports newest first.
func (s *Store) List(_ context.Context, filter repository.TickFilter) ([]domain.TickReport, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var floor []byte
	if !filter.Since.IsZero() {
		floor = timePrefix(filter.Since)
	}

	reports := make([]domain.TickReport, 0, limit)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.Last(); k != nil && len(reports) < limit; k, v = c.Prev() {
			if floor != nil && bytes.Compare(k, floor) < 0 {
				break
			}
			var report domain.TickReport
			if err := json.Unmarshal(v, &report); err != nil {
				continue
			}
			reports = append(reports, report)
		}
		return nil
	})
	return reports, err
}

// Prune removes reports that started before olderThan.
func (s *Store) Prune(_ context.Context, olderThan time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	cutoff := timePrefix(olderThan)

	var removed int
	err := s.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, _ := c.First(); k != nil && bytes.Compare(k, cutoff) < 0; k, _ = c.First() {
			if err := c.Delete(); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// Size returns the number of stored reports.
func (s *Store) Size() (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(s.bucket).Stats().KeyN
		return nil
	})
	return count, err
}

// Close closes the Bolt database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func timePrefix(t time.Time) []byte {
	return []byte(fmt.Sprintf("%020d", t.UnixNano()))
}

func buildKey(t time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%020d_%s", t.UnixNano(), id))
}

var _ repository.TickRepository = (*Store)(nil)
