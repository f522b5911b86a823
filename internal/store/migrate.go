package store

import (
	"encoding/json/jsontext"
	"encoding/json/v2"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/leafreadapp/leafread-server/internal/domain"
	apperrors "github.com/leafreadapp/leafread-server/internal/errors"
)

// currentSchemaVersion is the version this build writes. Data from any
// earlier version is upgraded in order on open; data is never downgraded.
const currentSchemaVersion = 3

// A migration brings the key space from version-1 to version. Every step
// must be idempotent: a crash between a step and the version stamp means
// the step runs again on the next open.
type migration struct {
	version int
	name    string
	run     func(s *Store) error
}

var migrations = []migration{
	{
		version: 1,
		name:    "create books and settings collections",
		run: func(s *Store) error {
			if err := s.ensureCollection("books"); err != nil {
				return err
			}
			return s.ensureCollection("settings")
		},
	},
	{
		version: 2,
		name:    "create trash collection",
		run: func(s *Store) error {
			return s.ensureCollection("trash")
		},
	},
	{
		version: 3,
		name:    "backfill bookmarks on existing books",
		run: func(s *Store) error {
			if err := s.backfillBookmarks(bookPrefix); err != nil {
				return err
			}
			return s.backfillBookmarks(trashPrefix)
		},
	},
}

// migrate runs all pending migrations and stamps the schema version.
func (s *Store) migrate() error {
	version, err := s.schemaVersion()
	if err != nil {
		return apperrors.StorageUnavailable("read schema version", err)
	}

	if version > currentSchemaVersion {
		return apperrors.StorageUnavailable(
			fmt.Sprintf("store schema version %d is newer than supported version %d", version, currentSchemaVersion), nil)
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}

		if err := m.run(s); err != nil {
			return apperrors.StorageUnavailable(fmt.Sprintf("migration %d (%s) failed", m.version, m.name), err)
		}

		if err := s.setSchemaVersion(m.version); err != nil {
			return apperrors.StorageUnavailable(fmt.Sprintf("stamp schema version %d", m.version), err)
		}

		if s.logger != nil {
			s.logger.Info("schema migrated", "version", m.version, "name", m.name)
		}
	}

	return nil
}

// schemaVersion reads the stored schema version. A store that predates the
// version stamp reports zero, which makes every migration pending.
func (s *Store) schemaVersion() (int, error) {
	var version int
	err := s.get([]byte(schemaVersionKey), &version)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

func (s *Store) setSchemaVersion(version int) error {
	return s.set([]byte(schemaVersionKey), version)
}

// ensureCollection writes the collection marker if it does not exist yet.
// Markers are the key-value analogue of creating an object store: they make
// "which collections exist" answerable without scanning data keys.
func (s *Store) ensureCollection(name string) error {
	key := []byte(collectionMetaPrefix + name)

	exists, err := s.exists(key)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.set(key, domain.NowMillis())
}

// backfillBookmarks rewrites every record under prefix whose serialized form
// lacks a bookmarks field. Older clients stored books without bookmarks; the
// field became mandatory with schema version 3.
func (s *Store) backfillBookmarks(prefix string) error {
	type rawRecord struct {
		key  string
		data []byte
	}

	var pending []rawRecord
	err := s.scanPrefix(prefix, func(key string, val []byte) error {
		var probe map[string]jsontext.Value
		if err := json.Unmarshal(val, &probe); err != nil {
			return fmt.Errorf("decode record %s: %w", key, err)
		}
		if _, ok := probe["bookmarks"]; ok {
			return nil
		}

		data := make([]byte, len(val))
		copy(data, val)
		pending = append(pending, rawRecord{key: key, data: data})
		return nil
	})
	if err != nil {
		return err
	}

	for _, rec := range pending {
		var book domain.Book
		if err := json.Unmarshal(rec.data, &book); err != nil {
			return fmt.Errorf("decode book %s: %w", rec.key, err)
		}
		book.Bookmarks = []domain.Bookmark{}

		if err := s.set([]byte(rec.key), &book); err != nil {
			return fmt.Errorf("rewrite book %s: %w", rec.key, err)
		}
	}

	return nil
}
