package domain

import (
	"encoding/json/v2"
	"fmt"

	"github.com/google/uuid"

	apperrors "github.com/leafreadapp/leafread-server/internal/errors"
	"github.com/leafreadapp/leafread-server/internal/validation"
)

// importDocument mirrors the export JSON with pointer fields so a missing
// field is distinguishable from a zero value. A field of the wrong JSON type
// fails decoding outright; a missing required field fails validation.
type importDocument struct {
	ID           *string       `json:"id" validate:"required"`
	Title        *string       `json:"title" validate:"required"`
	Pages        *[]Page       `json:"pages" validate:"required"`
	CurrentPage  *int          `json:"currentPage" validate:"required"`
	CreatedAt    *int64        `json:"createdAt" validate:"required"`
	LastModified *int64        `json:"lastModified"`
	Language     *string       `json:"language" validate:"required"`
	Bookmarks    *[]Bookmark   `json:"bookmarks" validate:"required"`
	Settings     *BookSettings `json:"settings"`

	// Accepted for backward compatibility with exports that predate the
	// hard-delete policy: a list of soft-deleted page IDs. Normalize
	// purges it.
	DeletedPages *[]string `json:"deletedPages"`
}

// ParseImport validates an exported book document and rebuilds the aggregate.
//
// The returned book keeps the document's identity and timestamps untouched;
// assigning a fresh ID, creation time, and de-duplicated title is the
// caller's job, since only the repository knows the existing titles.
// Any structural defect, including a missing bookmarks array, is reported
// as a validation error.
func ParseImport(data []byte, v *validation.Validator) (*Book, error) {
	var doc importDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.Validation("imported document is not a book").WithCause(err)
	}

	if err := v.Validate(doc); err != nil {
		return nil, err
	}

	book := &Book{
		ID:          *doc.ID,
		Title:       *doc.Title,
		Pages:       *doc.Pages,
		CurrentPage: *doc.CurrentPage,
		CreatedAt:   *doc.CreatedAt,
		Language:    *doc.Language,
		Bookmarks:   *doc.Bookmarks,
		Settings:    doc.Settings,
	}
	if doc.LastModified != nil {
		book.LastModified = *doc.LastModified
	} else {
		book.LastModified = book.CreatedAt
	}
	if doc.DeletedPages != nil {
		book.DeletedPages = *doc.DeletedPages
	}

	book.Normalize()
	return book, nil
}

// PrepareImported gives an imported book a fresh identity: a new ID, a new
// creation time, and a title de-duplicated against the existing library.
func (b *Book) PrepareImported(titleTaken func(string) bool) {
	b.ID = uuid.NewString()
	b.Title = NextUniqueTitle(b.Title, titleTaken)
	now := NowMillis()
	b.CreatedAt = now
	b.LastModified = now
	b.DeletedAt = 0
}

// NextUniqueTitle returns title unchanged when free, otherwise the first
// "title (1)", "title (2)", ... variant that is not taken.
func NextUniqueTitle(title string, taken func(string) bool) string {
	if !taken(title) {
		return title
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", title, n)
		if !taken(candidate) {
			return candidate
		}
	}
}
