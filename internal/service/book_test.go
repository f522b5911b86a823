package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafreadapp/leafread-server/internal/domain"
	apperrors "github.com/leafreadapp/leafread-server/internal/errors"
	"github.com/leafreadapp/leafread-server/internal/extract"
	"github.com/leafreadapp/leafread-server/internal/store"
	"github.com/leafreadapp/leafread-server/internal/validation"
)

// fakeExtractor returns a canned extraction, optionally misbehaving first.
type fakeExtractor struct {
	result *extract.Extraction
	err    error
	gotReq extract.Request
	calls  int
	before func()
}

func (f *fakeExtractor) ExtractPage(_ context.Context, req extract.Request) (*extract.Extraction, error) {
	f.calls++
	f.gotReq = req
	if f.before != nil {
		f.before()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupBookService(t *testing.T, extractor PageExtractor) (*BookService, *store.Store) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = st.Close() //nolint:errcheck // Test cleanup
	})

	return NewBookService(st, extractor, validation.New(), discardLogger()), st
}

func TestCreateBook(t *testing.T) {
	svc, _ := setupBookService(t, &fakeExtractor{})
	ctx := context.Background()

	book, err := svc.CreateBook(ctx, CreateBookRequest{Title: "Dune", Language: "en"})
	require.NoError(t, err)

	assert.NotEmpty(t, book.ID)
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, 0, book.CurrentPage)
	assert.Empty(t, book.Pages)

	stored, err := svc.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", stored.Title)
}

func TestCreateBook_MissingTitle(t *testing.T) {
	svc, _ := setupBookService(t, &fakeExtractor{})

	_, err := svc.CreateBook(context.Background(), CreateBookRequest{})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestAddPage(t *testing.T) {
	extractor := &fakeExtractor{
		result: &extract.Extraction{
			Content:   "It was a dark and stormy night.",
			ShortName: "Stormy night",
		},
	}
	svc, st := setupBookService(t, extractor)
	ctx := context.Background()

	book, err := svc.CreateBook(ctx, CreateBookRequest{Title: "Test"})
	require.NoError(t, err)

	// The store holds the user's extraction key.
	require.NoError(t, st.SaveUserSettings(ctx, &domain.UserSettings{FontSize: 16, GeminiAPIKey: "key-1"}))

	updated, err := svc.AddPage(ctx, book.ID, AddPageRequest{
		ImageData: []byte{0xFF, 0xD8},
		MimeType:  "image/jpeg",
	})
	require.NoError(t, err)

	require.Len(t, updated.Pages, 1)
	assert.Equal(t, "It was a dark and stormy night.", updated.Pages[0].Content)
	assert.Equal(t, "Stormy night", updated.Pages[0].ShortName)
	assert.Equal(t, 0, updated.CurrentPage)

	assert.Equal(t, "key-1", extractor.gotReq.APIKey)
	assert.Nil(t, extractor.gotReq.PreviousPage, "first page has no predecessor")

	// Second page: the previous page travels as context.
	updated, err = svc.AddPage(ctx, book.ID, AddPageRequest{ImageData: []byte("img"), MimeType: "image/jpeg"})
	require.NoError(t, err)
	assert.Len(t, updated.Pages, 2)
	assert.Equal(t, 1, updated.CurrentPage)
	require.NotNil(t, extractor.gotReq.PreviousPage)
	assert.Equal(t, updated.Pages[0].ID, extractor.gotReq.PreviousPage.ID)
}

func TestAddPage_AppliesPreviousPageUpdate(t *testing.T) {
	extractor := &fakeExtractor{
		result: &extract.Extraction{Content: "First page."},
	}
	svc, _ := setupBookService(t, extractor)
	ctx := context.Background()

	book, err := svc.CreateBook(ctx, CreateBookRequest{Title: "Test"})
	require.NoError(t, err)

	updated, err := svc.AddPage(ctx, book.ID, AddPageRequest{ImageData: []byte("a"), MimeType: "image/jpeg"})
	require.NoError(t, err)
	firstPageID := updated.Pages[0].ID

	extractor.result = &extract.Extraction{
		Content: "Second page.",
		PreviousPageUpdate: &extract.PageUpdate{
			ID:      firstPageID,
			Content: "First page, sentence completed.",
		},
	}

	updated, err = svc.AddPage(ctx, book.ID, AddPageRequest{ImageData: []byte("b"), MimeType: "image/jpeg"})
	require.NoError(t, err)

	require.Len(t, updated.Pages, 2)
	assert.Equal(t, "First page, sentence completed.", updated.Pages[0].Content)
	assert.Equal(t, "Second page.", updated.Pages[1].Content)
}

func TestAddPage_DiscardsResultAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	// The extraction "succeeds" but the caller is gone by the time it lands.
	extractor := &fakeExtractor{
		result: &extract.Extraction{Content: "Late result."},
		before: cancel,
	}
	svc, _ := setupBookService(t, extractor)

	book, err := svc.CreateBook(context.Background(), CreateBookRequest{Title: "Test"})
	require.NoError(t, err)

	_, err = svc.AddPage(ctx, book.ID, AddPageRequest{ImageData: []byte("img"), MimeType: "image/jpeg"})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrExtractionFailed))

	// The late result was never applied.
	stored, err := svc.GetBook(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Pages)
}

func TestAddPage_ExtractionFailure(t *testing.T) {
	extractor := &fakeExtractor{err: apperrors.ExtractionFailed("service returned status 500", nil)}
	svc, _ := setupBookService(t, extractor)
	ctx := context.Background()

	book, err := svc.CreateBook(ctx, CreateBookRequest{Title: "Test"})
	require.NoError(t, err)

	_, err = svc.AddPage(ctx, book.ID, AddPageRequest{ImageData: []byte("img"), MimeType: "image/jpeg"})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrExtractionFailed))

	stored, err := svc.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Pages)
}

func TestDeletePage(t *testing.T) {
	extractor := &fakeExtractor{result: &extract.Extraction{Content: "Page."}}
	svc, _ := setupBookService(t, extractor)
	ctx := context.Background()

	book, err := svc.CreateBook(ctx, CreateBookRequest{Title: "Test"})
	require.NoError(t, err)

	for range 3 {
		_, err = svc.AddPage(ctx, book.ID, AddPageRequest{ImageData: []byte("img"), MimeType: "image/jpeg"})
		require.NoError(t, err)
	}

	stored, err := svc.GetBook(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, stored.Pages, 3)

	updated, err := svc.DeletePage(ctx, book.ID, stored.Pages[1].ID)
	require.NoError(t, err)

	require.Len(t, updated.Pages, 2)
	assert.Equal(t, 1, updated.Pages[0].PageNumber)
	assert.Equal(t, 2, updated.Pages[1].PageNumber)
}

func TestDeletePage_NotFound(t *testing.T) {
	svc, _ := setupBookService(t, &fakeExtractor{})
	ctx := context.Background()

	book, err := svc.CreateBook(ctx, CreateBookRequest{Title: "Test"})
	require.NoError(t, err)

	_, err = svc.DeletePage(ctx, book.ID, "page-missing")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestSetCurrentPage_Clamps(t *testing.T) {
	extractor := &fakeExtractor{result: &extract.Extraction{Content: "Page."}}
	svc, _ := setupBookService(t, extractor)
	ctx := context.Background()

	book, err := svc.CreateBook(ctx, CreateBookRequest{Title: "Test"})
	require.NoError(t, err)
	for range 2 {
		_, err = svc.AddPage(ctx, book.ID, AddPageRequest{ImageData: []byte("img"), MimeType: "image/jpeg"})
		require.NoError(t, err)
	}

	updated, err := svc.SetCurrentPage(ctx, book.ID, 99)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.CurrentPage)

	updated, err = svc.SetCurrentPage(ctx, book.ID, -3)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.CurrentPage)
}

func TestBookmarkLifecycle(t *testing.T) {
	extractor := &fakeExtractor{result: &extract.Extraction{Content: "Page."}}
	svc, _ := setupBookService(t, extractor)
	ctx := context.Background()

	book, err := svc.CreateBook(ctx, CreateBookRequest{Title: "Test"})
	require.NoError(t, err)
	updated, err := svc.AddPage(ctx, book.ID, AddPageRequest{ImageData: []byte("img"), MimeType: "image/jpeg"})
	require.NoError(t, err)
	pageID := updated.Pages[0].ID

	bookmark, err := svc.AddBookmark(ctx, book.ID, AddBookmarkRequest{PageID: pageID, Note: "left off here"})
	require.NoError(t, err)
	assert.Equal(t, "Page 1", bookmark.Title)
	assert.Equal(t, "left off here", bookmark.Note)
	assert.Equal(t, 0, bookmark.Position)
	assert.Equal(t, pageID, bookmark.PageID)

	newTitle := "Where I stopped"
	withUpdate, err := svc.UpdateBookmark(ctx, book.ID, bookmark.ID, domain.BookmarkUpdate{Title: &newTitle})
	require.NoError(t, err)
	require.Len(t, withUpdate.Bookmarks, 1)
	assert.Equal(t, "Where I stopped", withUpdate.Bookmarks[0].Title)

	require.NoError(t, svc.RemoveBookmark(ctx, book.ID, bookmark.ID))

	stored, err := svc.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Bookmarks)
}

func TestAddBookmark_PageNotFound(t *testing.T) {
	svc, _ := setupBookService(t, &fakeExtractor{})
	ctx := context.Background()

	book, err := svc.CreateBook(ctx, CreateBookRequest{Title: "Test"})
	require.NoError(t, err)

	_, err = svc.AddBookmark(ctx, book.ID, AddBookmarkRequest{PageID: "page-missing"})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestRemoveBookmark_NotFound(t *testing.T) {
	svc, _ := setupBookService(t, &fakeExtractor{})
	ctx := context.Background()

	book, err := svc.CreateBook(ctx, CreateBookRequest{Title: "Test"})
	require.NoError(t, err)

	err = svc.RemoveBookmark(ctx, book.ID, "bmk-missing")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestUpdateBookSettings(t *testing.T) {
	svc, _ := setupBookService(t, &fakeExtractor{})
	ctx := context.Background()

	book, err := svc.CreateBook(ctx, CreateBookRequest{Title: "Test"})
	require.NoError(t, err)

	updated, err := svc.UpdateBookSettings(ctx, book.ID, domain.BookSettings{TranslationLanguage: "pt-BR"})
	require.NoError(t, err)
	require.NotNil(t, updated.Settings)
	assert.Equal(t, "pt-BR", updated.Settings.TranslationLanguage)
}

func TestExportImport_RoundTrip(t *testing.T) {
	extractor := &fakeExtractor{result: &extract.Extraction{Content: "Page one."}}
	svc, _ := setupBookService(t, extractor)
	ctx := context.Background()

	book, err := svc.CreateBook(ctx, CreateBookRequest{Title: "Original", Language: "en"})
	require.NoError(t, err)
	updated, err := svc.AddPage(ctx, book.ID, AddPageRequest{ImageData: []byte("img"), MimeType: "image/jpeg"})
	require.NoError(t, err)
	_, err = svc.AddBookmark(ctx, book.ID, AddBookmarkRequest{PageID: updated.Pages[0].ID})
	require.NoError(t, err)

	doc, err := svc.ExportBook(ctx, book.ID)
	require.NoError(t, err)

	imported, err := svc.ImportBook(ctx, doc)
	require.NoError(t, err)

	assert.NotEqual(t, book.ID, imported.ID)
	assert.Equal(t, "Original (1)", imported.Title, "title collides with the source book")
	require.Len(t, imported.Pages, 1)
	assert.Equal(t, "Page one.", imported.Pages[0].Content)
	assert.Len(t, imported.Bookmarks, 1)

	// Importing again bumps the suffix.
	again, err := svc.ImportBook(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, "Original (2)", again.Title)
}

func TestImportBook_Invalid(t *testing.T) {
	svc, _ := setupBookService(t, &fakeExtractor{})

	_, err := svc.ImportBook(context.Background(), []byte(`{"title":"No pages"}`))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestDeleteRestoreBook(t *testing.T) {
	svc, _ := setupBookService(t, &fakeExtractor{})
	ctx := context.Background()

	book, err := svc.CreateBook(ctx, CreateBookRequest{Title: "Test"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteBook(ctx, book.ID))

	_, err = svc.GetBook(ctx, book.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	trashed, err := svc.ListDeletedBooks(ctx)
	require.NoError(t, err)
	require.Len(t, trashed, 1)
	assert.NotZero(t, trashed[0].DeletedAt)

	require.NoError(t, svc.RestoreBook(ctx, book.ID))

	restored, err := svc.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Zero(t, restored.DeletedAt)
}

func TestNavItems(t *testing.T) {
	extractor := &fakeExtractor{result: &extract.Extraction{Content: "Some page content here.", ShortName: "Label"}}
	svc, _ := setupBookService(t, extractor)
	ctx := context.Background()

	book, err := svc.CreateBook(ctx, CreateBookRequest{Title: "Test"})
	require.NoError(t, err)
	_, err = svc.AddPage(ctx, book.ID, AddPageRequest{ImageData: []byte("img"), MimeType: "image/jpeg"})
	require.NoError(t, err)

	items, err := svc.NavItems(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].PageNumber)
	assert.Equal(t, "Label", items[0].ShortName)
	assert.Equal(t, "Some page content here.", items[0].Excerpt)
}
