// Package storage persists capture records in a BoltDB file, one
// bucket per pattern.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"log"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/mila-iqia/ptera-sub000/interpret"
	"github.com/mila-iqia/ptera-sub000/overlay"
	"github.com/mila-iqia/ptera-sub000/selector"
)

// RecordedCapture is the persisted form of one capture.
type RecordedCapture struct {
	Names  []string      `json:"names,omitempty"`
	Values []interface{} `json:"values"`
}

// Record is one match of a pattern: a timestamp and the captures as
// they stood when the event fired.
type Record struct {
	At       time.Time                  `json:"at"`
	Captures map[string]RecordedCapture `json:"captures"`
}

type Storage struct {
	Debug bool

	filename string
	db       *bolt.DB
}

func NewStorage(filename string) (*Storage, error) {
	return &Storage{
		filename: filename,
	}, nil
}

func (s *Storage) Open() error {
	opts := &bolt.Options{
		Timeout: time.Second,
	}

	db, err := bolt.Open(s.filename, 0644, opts)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) logf(format string, args ...interface{}) {
	if s.Debug {
		log.Printf("BoltDB Storage."+format, args...)
	}
}

// Log appends one record for the pattern.  The bucket is named by the
// pattern's canonical encoding, so structurally equal patterns share a
// bucket.
func (s *Storage) Log(pattern *selector.Call, caps interpret.Captures) error {
	rec := Record{
		At:       time.Now().UTC(),
		Captures: make(map[string]RecordedCapture, len(caps)),
	}
	for name, cap := range caps {
		rec.Captures[name] = RecordedCapture{
			Names:  cap.Names,
			Values: cap.Values,
		}
	}
	js, err := json.Marshal(&rec)
	if err != nil {
		return err
	}

	name := pattern.Encode()
	s.logf("Log %s %s", name, js)

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(name))
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, js)
	})
}

// Read returns the records logged for the pattern, in log order.
func (s *Storage) Read(pattern *selector.Call) ([]Record, error) {
	name := pattern.Encode()
	s.logf("Read %s", name)

	recs := make([]Record, 0, 32)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(name))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, bs := c.First(); k != nil; k, bs = c.Next() {
			var rec Record
			if err := json.Unmarshal(bs, &rec); err != nil {
				return err
			}
			recs = append(recs, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(recs) == 0 {
		return nil, nil
	}

	return recs, nil
}

// Patterns returns the canonical encodings of the patterns that have
// records.
func (s *Storage) Patterns() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bolt.Bucket) error {
			names = append(names, string(name))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// Tap adds a handler to the overlay that persists a record each time
// the pattern's outer call exits with complete captures.
func (s *Storage) Tap(ol *overlay.Overlay, pattern *selector.Call) *overlay.Overlay {
	return ol.OnTotal(pattern, func(caps interpret.Captures) error {
		return s.Log(pattern, caps)
	})
}

// TapEach is like Tap but persists a record on every occurrence of the
// focal variable instead of at call exit.
func (s *Storage) TapEach(ol *overlay.Overlay, pattern *selector.Call) *overlay.Overlay {
	return ol.OnEach(pattern, func(caps interpret.Captures) error {
		return s.Log(pattern, caps)
	})
}
