// Package search maintains a Bleve full-text index over extracted page
// content, kept in sync with the store on every book save and delete.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/leafreadapp/leafread-server/internal/domain"
)

// SearchIndex wraps a Bleve index with page-level operations.
//
// Thread safety: All public methods are safe for concurrent use.
// The mutex protects against index corruption during rebuild operations.
type SearchIndex struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex // Protects index operations during rebuild
}

// Options configures the search index.
type Options struct {
	DataPath string       // Directory for index storage
	Logger   *slog.Logger // Logger for operations (uses discard if nil)
}

// mappingVersion is incremented whenever the index mapping changes.
// This triggers an automatic rebuild on startup when the version doesn't match.
const mappingVersion = "1"

// NewSearchIndex creates or opens a search index.
// If an existing index is found, it opens it. Otherwise, creates a new one.
// If the existing index is corrupted or has an outdated mapping, it's removed and recreated.
func NewSearchIndex(opts Options) (*SearchIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	indexPath := filepath.Join(opts.DataPath, "search.bleve")
	versionPath := filepath.Join(opts.DataPath, "search.version")

	var index bleve.Index
	var err error
	needsRebuild := false

	// Check mapping version - rebuild if version file missing or mismatched
	indexExists := false
	if _, statErr := os.Stat(indexPath); statErr == nil {
		indexExists = true
	}

	if indexExists {
		existingVersion, readErr := os.ReadFile(versionPath)
		if readErr != nil {
			// Version file missing but index exists - this is an old index
			logger.Info("search index has no version file, will rebuild with current mapping",
				"new_version", mappingVersion,
			)
			needsRebuild = true
		} else if string(existingVersion) != mappingVersion {
			logger.Info("search index mapping version changed, will rebuild",
				"old_version", string(existingVersion),
				"new_version", mappingVersion,
			)
			needsRebuild = true
		}
	}

	// Try to open existing index (if not forcing rebuild)
	if !needsRebuild && indexExists {
		index, err = bleve.Open(indexPath)
		if err != nil {
			logger.Warn("failed to open existing index, will recreate",
				"path", indexPath,
				"error", err,
			)
			needsRebuild = true
		}
	}

	// Remove old index if rebuild needed
	if needsRebuild {
		if removeErr := os.RemoveAll(indexPath); removeErr != nil {
			return nil, fmt.Errorf("remove old index: %w", removeErr)
		}
		index = nil
	}

	// Create new index if needed
	if index == nil {
		indexMapping := buildIndexMapping()
		index, err = bleve.New(indexPath, indexMapping)
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		// Write version file
		if writeErr := os.WriteFile(versionPath, []byte(mappingVersion), 0644); writeErr != nil {
			logger.Warn("failed to write search version file", "error", writeErr)
		}
		logger.Info("created new search index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		logger.Info("opened existing search index", "path", indexPath)
	}

	return &SearchIndex{
		index:  index,
		path:   indexPath,
		logger: logger,
	}, nil
}

// Close closes the index and releases resources.
func (s *SearchIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexBook replaces all indexed pages of a book with its current pages.
// It implements the store's SearchIndexer seam.
func (s *SearchIndex) IndexBook(ctx context.Context, book *domain.Book) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stale, err := s.bookDocIDs(book.ID)
	if err != nil {
		return fmt.Errorf("find stale pages: %w", err)
	}

	current := make(map[string]bool, len(book.Pages))
	batch := s.index.NewBatch()
	for i := range book.Pages {
		doc := newPageDocument(book, &book.Pages[i])
		current[doc.ID] = true
		if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
			return fmt.Errorf("batch index %s: %w", doc.ID, err)
		}
	}
	for _, id := range stale {
		if !current[id] {
			batch.Delete(id)
		}
	}

	return s.index.Batch(batch)
}

// DeleteBook removes every indexed page of a book.
// It implements the store's SearchIndexer seam.
func (s *SearchIndex) DeleteBook(ctx context.Context, bookID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, err := s.bookDocIDs(bookID)
	if err != nil {
		return fmt.Errorf("find pages of book %s: %w", bookID, err)
	}

	batch := s.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	return s.index.Batch(batch)
}

// SearchPages runs a full-text query over the pages of one book and returns
// hits in relevance order with highlighted content fragments.
func (s *SearchIndex) SearchPages(ctx context.Context, bookID, queryString string, limit int) ([]PageHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 25
	}

	matchQuery := bleve.NewMatchQuery(queryString)
	matchQuery.SetField("content")

	scope := bleve.NewTermQuery(bookID)
	scope.SetField("book_id")

	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(matchQuery, scope), limit, 0, false)
	req.Fields = []string{"book_id", "page_id", "page_number", "short_name"}
	req.Highlight = bleve.NewHighlight()
	req.Highlight.AddField("content")

	result, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search pages: %w", err)
	}

	hits := make([]PageHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		pageHit := PageHit{
			BookID: stringField(hit.Fields, "book_id"),
			PageID: stringField(hit.Fields, "page_id"),
			Score:  hit.Score,
		}
		if n, ok := hit.Fields["page_number"].(float64); ok {
			pageHit.PageNumber = int(n)
		}
		pageHit.ShortName = stringField(hit.Fields, "short_name")
		pageHit.Fragments = hit.Fragments["content"]
		hits = append(hits, pageHit)
	}
	return hits, nil
}

// DocumentCount returns the total number of indexed pages.
func (s *SearchIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// bookDocIDs returns the index document IDs of every page of a book.
// Callers must hold at least a read lock.
func (s *SearchIndex) bookDocIDs(bookID string) ([]string, error) {
	scope := bleve.NewTermQuery(bookID)
	scope.SetField("book_id")

	req := bleve.NewSearchRequestOptions(scope, 10000, 0, false)

	result, err := s.index.Search(req)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

func stringField(fields map[string]any, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}
