// Package badger provides a Badger-based implementation of the cursor
// store interface, for consumers that keep their replay position across
// restarts.
package badger

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/sigwire/sigwire/pkg/cursor"
)

// Config holds configuration for the Badger cursor store.
type Config struct {
	Path       string
	SyncWrites bool

	// ConsumerID namespaces the cursors so several consumer contexts can
	// share one database file.
	ConsumerID string
}

// Store implements cursor.Store on a Badger database.
type Store struct {
	db     *badger.DB
	config *Config
}

// NewStore opens (or creates) the Badger database at config.Path.
func NewStore(config *Config) (*Store, error) {
	if config.ConsumerID == "" {
		return nil, fmt.Errorf("cursor store consumer id cannot be empty")
	}

	opts := badger.DefaultOptions(config.Path)
	opts.SyncWrites = config.SyncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, &UnavailableError{Cause: err}
	}

	return &Store{
		db:     db,
		config: config,
	}, nil
}

func (s *Store) key(stream string) []byte {
	return []byte(fmt.Sprintf("cursor:%s:%s", s.config.ConsumerID, stream))
}

func (s *Store) prefix() []byte {
	return []byte(fmt.Sprintf("cursor:%s:", s.config.ConsumerID))
}

// Get returns the cursor for the stream, defaulting to the sentinel.
func (s *Store) Get(stream string) (string, error) {
	offset := cursor.Sentinel

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(stream))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			offset = string(val)
			return nil
		})
	})
	if err != nil {
		return "", &UnavailableError{Cause: err}
	}
	return offset, nil
}

// Advance moves the stream's cursor forward to offset. The
// read-modify-write runs in one transaction so the clamp holds under
// concurrent callers sharing the database.
func (s *Store) Advance(stream string, offset string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(stream))
		if err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		if err == nil {
			var regressed bool
			if verr := item.Value(func(val []byte) error {
				regressed = cursor.Compare(offset, string(val)) <= 0
				return nil
			}); verr != nil {
				return verr
			}
			if regressed {
				return nil
			}
		}
		return txn.Set(s.key(stream), []byte(offset))
	})
	if err != nil {
		return &UnavailableError{Cause: err}
	}
	return nil
}

// Clear removes every cursor belonging to this consumer.
func (s *Store) Clear() error {
	err := s.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			Prefix: s.prefix(),
		})
		defer it.Close()

		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &UnavailableError{Cause: err}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// UnavailableError indicates the cursor database is unavailable.
type UnavailableError struct {
	Cause error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("cursor store unavailable: %v", e.Cause)
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}
