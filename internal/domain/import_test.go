package domain

import (
	"encoding/json/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/leafreadapp/leafread-server/internal/errors"
	"github.com/leafreadapp/leafread-server/internal/validation"
)

func exportDocument(t *testing.T) map[string]any {
	t.Helper()
	return map[string]any{
		"id":           "3f1b9d0a-0000-0000-0000-000000000000",
		"title":        "Field Notes",
		"currentPage":  1,
		"createdAt":    int64(1700000000000),
		"lastModified": int64(1700000100000),
		"language":     "en",
		"pages": []map[string]any{
			{"id": "page-a", "pageNumber": 1, "content": "first"},
			{"id": "page-b", "pageNumber": 2, "content": "second", "shortName": "The Plot"},
		},
		"bookmarks": []map[string]any{
			{"id": "bmk-1", "pageId": "page-b", "position": 1, "title": "Page 2", "note": "important", "createdAt": int64(1700000050000)},
		},
	}
}

func marshalDoc(t *testing.T, doc map[string]any) []byte {
	t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return data
}

func TestParseImport_Valid(t *testing.T) {
	v := validation.New()

	book, err := ParseImport(marshalDoc(t, exportDocument(t)), v)
	require.NoError(t, err)

	assert.Equal(t, "Field Notes", book.Title)
	require.Len(t, book.Pages, 2)
	assert.Equal(t, "first", book.Pages[0].Content)
	assert.Equal(t, "The Plot", book.Pages[1].ShortName)
	assert.Equal(t, 1, book.CurrentPage)
	assert.Equal(t, "page-b", book.Pages[book.CurrentPage].ID, "reader position survives the import")
	require.Len(t, book.Bookmarks, 1)
	assert.Equal(t, "page-b", book.Bookmarks[0].PageID)
	assert.Equal(t, 1, book.Bookmarks[0].Position)
	assert.Equal(t, "important", book.Bookmarks[0].Note)
	assert.Equal(t, "en", book.Language)
}

func TestParseImport_ReaderPositionPointsAtSamePage(t *testing.T) {
	v := validation.New()

	doc := exportDocument(t)
	doc["pages"] = []map[string]any{
		{"id": "page-a", "pageNumber": 1, "content": "first"},
		{"id": "page-b", "pageNumber": 2, "content": "second"},
		{"id": "page-c", "pageNumber": 3, "content": "third"},
	}
	doc["currentPage"] = 2

	book, err := ParseImport(marshalDoc(t, doc), v)
	require.NoError(t, err)

	assert.Equal(t, 2, book.CurrentPage)
	assert.Equal(t, "page-c", book.Pages[book.CurrentPage].ID)
}

func TestParseImport_MissingFields(t *testing.T) {
	v := validation.New()

	required := []string{"id", "title", "pages", "currentPage", "createdAt", "language", "bookmarks"}
	for _, field := range required {
		t.Run("missing "+field, func(t *testing.T) {
			doc := exportDocument(t)
			delete(doc, field)

			_, err := ParseImport(marshalDoc(t, doc), v)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
		})
	}
}

func TestParseImport_WrongTypes(t *testing.T) {
	v := validation.New()

	tests := []struct {
		field string
		value any
	}{
		{"title", 42},
		{"pages", "not an array"},
		{"currentPage", "two"},
		{"createdAt", "yesterday"},
		{"language", 5},
		{"bookmarks", map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			doc := exportDocument(t)
			doc[tt.field] = tt.value

			_, err := ParseImport(marshalDoc(t, doc), v)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
		})
	}
}

func TestParseImport_NotJSON(t *testing.T) {
	v := validation.New()

	_, err := ParseImport([]byte("not json at all"), v)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestParseImport_NormalizesLegacyRecord(t *testing.T) {
	v := validation.New()

	doc := exportDocument(t)
	doc["pages"] = []map[string]any{
		{"id": "page-a", "pageNumber": 1, "content": "keep"},
		{"id": "page-b", "pageNumber": 2, "content": "flagged", "isDeleted": true},
	}
	doc["deletedPages"] = []any{"page-b"}
	doc["bookmarks"] = []map[string]any{
		{"id": "bmk-1", "pageId": "page-b", "position": 1, "createdAt": int64(1)},
	}

	book, err := ParseImport(marshalDoc(t, doc), v)
	require.NoError(t, err)

	require.Len(t, book.Pages, 1)
	assert.Equal(t, "page-a", book.Pages[0].ID)
	assert.Nil(t, book.DeletedPages)
	assert.Empty(t, book.Bookmarks)
	assert.Equal(t, 0, book.CurrentPage)
}

func TestParseImport_EmptyBookmarksAccepted(t *testing.T) {
	v := validation.New()

	doc := exportDocument(t)
	doc["bookmarks"] = []map[string]any{}

	book, err := ParseImport(marshalDoc(t, doc), v)
	require.NoError(t, err)
	assert.Empty(t, book.Bookmarks)
}

func TestPrepareImported(t *testing.T) {
	v := validation.New()

	book, err := ParseImport(marshalDoc(t, exportDocument(t)), v)
	require.NoError(t, err)

	originalID := book.ID
	originalCreated := book.CreatedAt

	book.PrepareImported(func(title string) bool {
		return title == "Field Notes"
	})

	assert.NotEqual(t, originalID, book.ID)
	assert.Equal(t, "Field Notes (1)", book.Title)
	assert.Greater(t, book.CreatedAt, originalCreated)
	// Content survives the identity swap.
	require.Len(t, book.Pages, 2)
	assert.Equal(t, "first", book.Pages[0].Content)
}
