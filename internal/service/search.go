package service

import (
	"context"
	"log/slog"

	"github.com/leafreadapp/leafread-server/internal/search"
	"github.com/leafreadapp/leafread-server/internal/store"
)

// SearchService answers full-text queries over one book's pages.
type SearchService struct {
	store  *store.Store
	index  *search.SearchIndex
	logger *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(store *store.Store, index *search.SearchIndex, logger *slog.Logger) *SearchService {
	return &SearchService{
		store:  store,
		index:  index,
		logger: logger,
	}
}

// SearchPages runs a query scoped to one book. The book must exist; the
// index is an acceleration structure, not the source of truth.
func (s *SearchService) SearchPages(ctx context.Context, bookID, query string, limit int) ([]search.PageHit, error) {
	if _, err := s.store.GetBook(ctx, bookID); err != nil {
		return nil, err
	}
	return s.index.SearchPages(ctx, bookID, query, limit)
}

// ReindexAll rebuilds the index entries for every active book. Used at
// startup so the index catches up with any records written while search
// was unavailable.
func (s *SearchService) ReindexAll(ctx context.Context) error {
	books, err := s.store.ListBooks(ctx)
	if err != nil {
		return err
	}

	for _, book := range books {
		if err := s.index.IndexBook(ctx, book); err != nil {
			s.logger.Warn("reindex failed for book", "book_id", book.ID, "error", err)
		}
	}

	count, err := s.index.DocumentCount()
	if err == nil {
		s.logger.Info("search reindex complete", "books", len(books), "pages", count)
	}
	return nil
}
