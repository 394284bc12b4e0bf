package session

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

var sessionBucket = []byte("sessions")

// BoltStore is a bbolt-backed Store. Sessions survive server restarts.
type BoltStore struct {
	db *bbolt.DB
}

var _ Store = (*BoltStore)(nil)

// NewBoltStore returns a Store backed by the given bbolt database.
func NewBoltStore(db *bbolt.DB) (*BoltStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating session bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// NewBoltStoreFromFile opens a bbolt database at the given path and returns
// a session store on it.
func NewBoltStoreFromFile(path string, options *bbolt.Options) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewBoltStore(db)
}

// Close closes the underlying database.
func (b *BoltStore) Close() error {
	return b.db.Close()
}

func (b *BoltStore) Get(id string) (*Session, bool) {
	var s Session
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(sessionBucket).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("session %s not found", id)
		}
		return json.Unmarshal(data, &s)
	})
	if err != nil {
		return nil, false
	}
	return &s, true
}

func (b *BoltStore) Put(s *Session) {
	_ = b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(s)
		if err != nil {
			return err
		}
		return tx.Bucket(sessionBucket).Put([]byte(s.ID), data)
	})
}

func (b *BoltStore) Delete(id string) {
	_ = b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionBucket).Delete([]byte(id))
	})
}

func (b *BoltStore) ByUser(userID string) []*Session {
	var out []*Session
	_ = b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionBucket).ForEach(func(_, data []byte) error {
			var s Session
			if err := json.Unmarshal(data, &s); err != nil {
				return nil
			}
			if s.UserID == userID {
				out = append(out, &s)
			}
			return nil
		})
	})
	return out
}

func (b *BoltStore) All() []*Session {
	var out []*Session
	_ = b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionBucket).ForEach(func(_, data []byte) error {
			var s Session
			if err := json.Unmarshal(data, &s); err != nil {
				return nil
			}
			out = append(out, &s)
			return nil
		})
	})
	return out
}

func (b *BoltStore) Len() int {
	n := 0
	_ = b.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(sessionBucket).Stats().KeyN
		return nil
	})
	return n
}
