package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/leafreadapp/leafread-server/internal/domain"
	apperrors "github.com/leafreadapp/leafread-server/internal/errors"
)

// ErrBookNotFound is returned when a book ID resolves to no active record.
var ErrBookNotFound = apperrors.NotFound("book not found")

// Book operations.
//
// The book record is the aggregate: pages and bookmarks are stored inside
// it and every mutation goes through SaveBook. Loaded records pass through
// domain.Normalize so data written by older releases (soft-deleted pages,
// missing bookmark lists) comes out upgraded.

// GetBook retrieves an active book by ID.
func (s *Store) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	return s.getBook(bookPrefix, id)
}

// GetDeletedBook retrieves a trashed book by ID.
func (s *Store) GetDeletedBook(ctx context.Context, id string) (*domain.Book, error) {
	return s.getBook(trashPrefix, id)
}

func (s *Store) getBook(prefix, id string) (*domain.Book, error) {
	var book domain.Book
	err := s.get([]byte(prefix+id), &book)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, apperrors.Persistencef(err, "get book %s", id)
	}

	book.Normalize()
	return &book, nil
}

// ListBooks returns all active books, most recently created first.
func (s *Store) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	return s.listBooks(bookPrefix)
}

// ListDeletedBooks returns all trashed books, most recently created first.
func (s *Store) ListDeletedBooks(ctx context.Context) ([]*domain.Book, error) {
	return s.listBooks(trashPrefix)
}

func (s *Store) listBooks(prefix string) ([]*domain.Book, error) {
	books := []*domain.Book{}

	err := s.scanPrefix(prefix, func(key string, val []byte) error {
		var book domain.Book
		if err := json.Unmarshal(val, &book); err != nil {
			return fmt.Errorf("decode record %s: %w", key, err)
		}
		book.Normalize()
		books = append(books, &book)
		return nil
	})
	if err != nil {
		return nil, apperrors.Persistence("list books", err)
	}

	sort.Slice(books, func(i, j int) bool {
		return books[i].CreatedAt > books[j].CreatedAt
	})
	return books, nil
}

// SaveBook persists the whole aggregate. It is the single write chokepoint:
// the record is normalized, stamped with a fresh lastModified, and the title
// index is kept consistent in the same transaction.
func (s *Store) SaveBook(ctx context.Context, book *domain.Book) error {
	book.Normalize()
	book.Touch()

	data, err := json.Marshal(book)
	if err != nil {
		return apperrors.Persistencef(err, "marshal book %s", book.ID)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(bookPrefix+book.ID), data); err != nil {
			return err
		}
		// The title index is keyed per book, so two active books sharing
		// a title each keep their own entry; renames overwrite in place.
		return txn.Set([]byte(titleIndexPrefix+book.ID), []byte(book.Title))
	})
	if err != nil {
		return apperrors.Persistencef(err, "save book %s", book.ID)
	}

	s.indexBook(ctx, book)

	if s.logger != nil {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "book saved",
			slog.String("id", book.ID),
			slog.String("title", book.Title),
			slog.Int("pages", len(book.Pages)),
			slog.Int("bookmarks", len(book.Bookmarks)),
		)
	}
	return nil
}

// DeleteBook moves a book to the trash. The record move and the index
// removal happen in one transaction; deleting an absent book is a no-op.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	book, err := s.getBook(bookPrefix, id)
	if errors.Is(err, ErrBookNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	book.DeletedAt = domain.NowMillis()

	data, err := json.Marshal(book)
	if err != nil {
		return apperrors.Persistencef(err, "marshal book %s", id)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(bookPrefix + id)); err != nil {
			return err
		}
		if err := txn.Delete([]byte(titleIndexPrefix + id)); err != nil {
			return err
		}
		return txn.Set([]byte(trashPrefix+id), data)
	})
	if err != nil {
		return apperrors.Persistencef(err, "delete book %s", id)
	}

	s.deindexBook(ctx, id)

	if s.logger != nil {
		s.logger.Info("book moved to trash", "id", id, "title", book.Title)
	}
	return nil
}

// RestoreBook moves a trashed book back into the active collection.
// Restoring an absent book is a no-op.
func (s *Store) RestoreBook(ctx context.Context, id string) error {
	book, err := s.getBook(trashPrefix, id)
	if errors.Is(err, ErrBookNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	book.DeletedAt = 0
	book.Touch()

	data, err := json.Marshal(book)
	if err != nil {
		return apperrors.Persistencef(err, "marshal book %s", id)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(trashPrefix + id)); err != nil {
			return err
		}
		if err := txn.Set([]byte(bookPrefix+id), data); err != nil {
			return err
		}
		return txn.Set([]byte(titleIndexPrefix+id), []byte(book.Title))
	})
	if err != nil {
		return apperrors.Persistencef(err, "restore book %s", id)
	}

	s.indexBook(ctx, book)

	if s.logger != nil {
		s.logger.Info("book restored from trash", "id", id, "title", book.Title)
	}
	return nil
}

// TitleExists reports whether an active book already uses the title.
func (s *Store) TitleExists(ctx context.Context, title string) (bool, error) {
	found := false
	err := s.scanPrefix(titleIndexPrefix, func(_ string, val []byte) error {
		if string(val) == title {
			found = true
		}
		return nil
	})
	if err != nil {
		return false, apperrors.Persistencef(err, "check title %q", title)
	}
	return found, nil
}

// indexBook updates the search index; indexing failures are logged, never
// surfaced, so a broken index cannot block persistence.
func (s *Store) indexBook(ctx context.Context, book *domain.Book) {
	if s.searchIndexer == nil {
		return
	}
	if err := s.searchIndexer.IndexBook(ctx, book); err != nil && s.logger != nil {
		s.logger.Warn("search indexing failed", "book_id", book.ID, "error", err)
	}
}

func (s *Store) deindexBook(ctx context.Context, bookID string) {
	if s.searchIndexer == nil {
		return
	}
	if err := s.searchIndexer.DeleteBook(ctx, bookID); err != nil && s.logger != nil {
		s.logger.Warn("search deindexing failed", "book_id", bookID, "error", err)
	}
}
