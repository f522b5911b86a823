// Package service provides the business logic layer between the HTTP API and
// the store: load the book aggregate, apply a transform, persist the result.
package service

import (
	"context"
	"encoding/json/v2"
	"log/slog"

	"github.com/leafreadapp/leafread-server/internal/domain"
	"github.com/leafreadapp/leafread-server/internal/dto"
	apperrors "github.com/leafreadapp/leafread-server/internal/errors"
	"github.com/leafreadapp/leafread-server/internal/extract"
	"github.com/leafreadapp/leafread-server/internal/store"
	"github.com/leafreadapp/leafread-server/internal/validation"
)

// PageExtractor turns a page image into structured page content.
// Satisfied by *extract.Client.
type PageExtractor interface {
	ExtractPage(ctx context.Context, req extract.Request) (*extract.Extraction, error)
}

// BookService orchestrates book lifecycle operations.
type BookService struct {
	store     *store.Store
	extractor PageExtractor
	validator *validation.Validator
	logger    *slog.Logger
}

// NewBookService creates a new book service.
func NewBookService(store *store.Store, extractor PageExtractor, validator *validation.Validator, logger *slog.Logger) *BookService {
	return &BookService{
		store:     store,
		extractor: extractor,
		validator: validator,
		logger:    logger,
	}
}

// CreateBookRequest is the payload for creating an empty book.
type CreateBookRequest struct {
	Title    string `json:"title" validate:"required,max=512"`
	Language string `json:"language"`
}

// ListBooks returns all active books, newest first.
func (s *BookService) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	return s.store.ListBooks(ctx)
}

// ListDeletedBooks returns all trashed books, newest first.
func (s *BookService) ListDeletedBooks(ctx context.Context) ([]*domain.Book, error) {
	return s.store.ListDeletedBooks(ctx)
}

// GetBook retrieves a single book by ID.
func (s *BookService) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	return s.store.GetBook(ctx, id)
}

// CreateBook creates an empty book ready for its first page.
func (s *BookService) CreateBook(ctx context.Context, req CreateBookRequest) (*domain.Book, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	book := domain.NewBook(req.Title, req.Language)
	if err := s.store.SaveBook(ctx, book); err != nil {
		return nil, err
	}

	s.logger.Info("book created", "book_id", book.ID, "title", book.Title)
	return book, nil
}

// DeleteBook moves a book to the trash. Deleting an absent book is a no-op.
func (s *BookService) DeleteBook(ctx context.Context, id string) error {
	return s.store.DeleteBook(ctx, id)
}

// RestoreBook moves a book out of the trash. Restoring an absent book is a no-op.
func (s *BookService) RestoreBook(ctx context.Context, id string) error {
	return s.store.RestoreBook(ctx, id)
}

// ExportBook serializes a book aggregate as the portable JSON document.
func (s *BookService) ExportBook(ctx context.Context, id string) ([]byte, error) {
	book, err := s.store.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(book)
	if err != nil {
		return nil, apperrors.Persistence("encode export document", err)
	}
	return data, nil
}

// ImportBook validates an exported document and stores it as a new book.
// The imported book gets a fresh ID, a de-duplicated title, and fresh
// timestamps; page and bookmark content is preserved as-is.
func (s *BookService) ImportBook(ctx context.Context, data []byte) (*domain.Book, error) {
	book, err := domain.ParseImport(data, s.validator)
	if err != nil {
		return nil, err
	}

	var titleErr error
	book.PrepareImported(func(title string) bool {
		taken, err := s.store.TitleExists(ctx, title)
		if err != nil {
			titleErr = err
		}
		return taken
	})
	if titleErr != nil {
		return nil, titleErr
	}

	if err := s.store.SaveBook(ctx, book); err != nil {
		return nil, err
	}

	s.logger.Info("book imported",
		"book_id", book.ID,
		"title", book.Title,
		"pages", len(book.Pages),
		"bookmarks", len(book.Bookmarks),
	)
	return book, nil
}

// AddPageRequest carries one photographed page for extraction.
type AddPageRequest struct {
	ImageData []byte
	MimeType  string
}

// AddPage sends the page image to the extraction service and appends the
// result to the book. When the extraction revises the preceding page for
// cross-page sentence continuity, that revision is applied in the same save.
//
// A result that arrives after ctx is canceled is discarded, never applied:
// the book a retried upload starts from must not have changed underneath it.
func (s *BookService) AddPage(ctx context.Context, bookID string, req AddPageRequest) (*domain.Book, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	settings, err := s.store.GetUserSettings(ctx)
	if err != nil {
		return nil, err
	}

	extractReq := extract.Request{
		APIKey:         settings.GeminiAPIKey,
		ImageData:      req.ImageData,
		MimeType:       req.MimeType,
		TargetLanguage: book.Language,
	}
	if n := len(book.Pages); n > 0 {
		last := &book.Pages[n-1]
		extractReq.PreviousPage = &extract.PageContext{
			ID:      last.ID,
			Content: last.Content,
		}
	}

	result, err := s.extractor.ExtractPage(ctx, extractReq)
	if err != nil {
		return nil, err
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		s.logger.Debug("discarding extraction result, caller gone", "book_id", bookID)
		return nil, apperrors.ExtractionFailed("extraction canceled", ctxErr)
	}

	if result.PreviousPageUpdate != nil {
		if !book.ApplyPageEdit(result.PreviousPageUpdate.ID, result.PreviousPageUpdate.Content) {
			s.logger.Warn("extraction revised an unknown page, ignoring",
				"book_id", bookID,
				"page_id", result.PreviousPageUpdate.ID,
			)
		}
	}
	page := book.AppendPage(result.Content, result.ShortName)

	if err := s.store.SaveBook(ctx, book); err != nil {
		return nil, err
	}

	s.logger.Info("page added", "book_id", bookID, "page_id", page.ID, "page_number", page.PageNumber)
	return book, nil
}

// DeletePage removes a page permanently and persists the renumbered book.
func (s *BookService) DeletePage(ctx context.Context, bookID, pageID string) (*domain.Book, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	if !book.DeletePage(pageID) {
		return nil, apperrors.NotFoundf("page %s not found", pageID)
	}

	if err := s.store.SaveBook(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

// SetCurrentPage moves the reader to the given zero-based page index,
// clamped to the book's page range.
func (s *BookService) SetCurrentPage(ctx context.Context, bookID string, index int) (*domain.Book, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	book.SetCurrentPage(index)

	if err := s.store.SaveBook(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

// AddBookmarkRequest is the payload for bookmarking a page.
type AddBookmarkRequest struct {
	PageID string `json:"pageId" validate:"required"`
	Title  string `json:"title"`
	Note   string `json:"note"`
}

// AddBookmark bookmarks a page. An empty title defaults to "Page N".
func (s *BookService) AddBookmark(ctx context.Context, bookID string, req AddBookmarkRequest) (*domain.Bookmark, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	bookmark := book.AddBookmark(req.PageID, req.Title, req.Note)
	if bookmark == nil {
		return nil, apperrors.NotFoundf("page %s not found", req.PageID)
	}

	if err := s.store.SaveBook(ctx, book); err != nil {
		return nil, err
	}

	// SaveBook normalizes the aggregate in place; re-read the stored value.
	for i := range book.Bookmarks {
		if book.Bookmarks[i].ID == bookmark.ID {
			return &book.Bookmarks[i], nil
		}
	}
	return bookmark, nil
}

// RemoveBookmark deletes a bookmark.
func (s *BookService) RemoveBookmark(ctx context.Context, bookID, bookmarkID string) error {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return err
	}

	if !book.RemoveBookmark(bookmarkID) {
		return apperrors.NotFoundf("bookmark %s not found", bookmarkID)
	}

	return s.store.SaveBook(ctx, book)
}

// UpdateBookmark applies a partial bookmark update.
func (s *BookService) UpdateBookmark(ctx context.Context, bookID, bookmarkID string, update domain.BookmarkUpdate) (*domain.Book, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	if !book.UpdateBookmark(bookmarkID, update) {
		return nil, apperrors.NotFoundf("bookmark %s not found", bookmarkID)
	}

	if err := s.store.SaveBook(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

// UpdateBookSettings replaces the per-book reader preferences.
func (s *BookService) UpdateBookSettings(ctx context.Context, bookID string, settings domain.BookSettings) (*domain.Book, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	book.Settings = &settings

	if err := s.store.SaveBook(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

// NavItems derives the page navigation sidebar entries for a book.
func (s *BookService) NavItems(ctx context.Context, bookID string) ([]dto.PageNavItem, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return dto.BuildNavItems(book), nil
}
