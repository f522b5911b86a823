// Package store provides the Badger-backed persistence layer for books,
// trashed books, user settings, and the schema version metadata.
package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/leafreadapp/leafread-server/internal/domain"
	apperrors "github.com/leafreadapp/leafread-server/internal/errors"
)

// Key layout. Collections are key prefixes; the key space replaces the
// object stores of the previous browser-local storage engine.
const (
	bookPrefix  = "book:"
	trashPrefix = "trash:"

	userSettingsKey = "settings:user"

	schemaVersionKey     = "meta:schema_version"
	collectionMetaPrefix = "meta:collection:"

	// Title index entries are keyed by book ID and hold the title, one
	// entry per active book.
	titleIndexPrefix = "idx:books:title:"
)

// SearchIndexer keeps the full-text index in sync with store changes.
// Set via SetSearchIndexer after store creation to avoid circular
// dependencies (the store must exist before the search service can).
type SearchIndexer interface {
	IndexBook(ctx context.Context, book *domain.Book) error
	DeleteBook(ctx context.Context, bookID string) error
}

// NoopSearchIndexer is a no-op implementation for testing.
type NoopSearchIndexer struct{}

// IndexBook is a no-op.
func (NoopSearchIndexer) IndexBook(context.Context, *domain.Book) error { return nil }

// DeleteBook is a no-op.
func (NoopSearchIndexer) DeleteBook(context.Context, string) error { return nil }

// NewNoopSearchIndexer creates a new no-op search indexer for testing.
func NewNoopSearchIndexer() SearchIndexer {
	return NoopSearchIndexer{}
}

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	searchIndexer SearchIndexer
}

// Open opens (or creates) the database at path and brings its schema up to
// the current version.
//
// A directory-lock conflict means another process has the store open; that
// session blocks the upgrade and the caller should retry after it closes.
// Any other open failure makes storage unavailable.
func Open(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		if isLockConflict(err) {
			return nil, apperrors.UpgradeBlocked("another session holds the store open", err)
		}
		return nil, apperrors.StorageUnavailable("failed to open store", err)
	}

	store := &Store{
		db:     db,
		logger: logger,
	}

	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}

	return store, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

// SetSearchIndexer sets the search indexer for keeping search in sync.
func (s *Store) SetSearchIndexer(indexer SearchIndexer) {
	s.searchIndexer = indexer
}

// isLockConflict reports whether a Badger open failure is the directory
// lock held by another process.
func isLockConflict(err error) bool {
	return err != nil && strings.Contains(err.Error(), "Cannot acquire directory lock")
}

// Helper methods for database operations.

// get retrieves a value by key.
func (s *Store) get(key []byte, dest any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dest)
		})
	})
}

// set stores a value by key.
func (s *Store) set(key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return apperrors.Persistence("marshal value", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// exists checks if a key exists.
func (s *Store) exists(key []byte) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// scanPrefix calls fn with the raw value of every key under prefix.
func (s *Store) scanPrefix(prefix string, fn func(key string, val []byte) error) error {
	p := []byte(prefix)
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = p

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(val []byte) error {
				return fn(key, val)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}
