// Package domain contains the core entities and lifecycle rules for the Leafread book reader.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/leafreadapp/leafread-server/internal/id"
	"github.com/leafreadapp/leafread-server/internal/normalize"
)

// Book is the aggregate root. Pages and bookmarks live inside the book and
// are persisted together as one record; there is no partial persistence.
type Book struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Pages []Page `json:"pages"`
	// CurrentPage is the zero-based index into Pages of the page the
	// reader is on; an empty book sits at index 0.
	CurrentPage  int           `json:"currentPage"`
	CreatedAt    int64         `json:"createdAt"`
	LastModified int64         `json:"lastModified"`
	Language     string        `json:"language,omitempty"`
	Bookmarks    []Bookmark    `json:"bookmarks"`
	Settings     *BookSettings `json:"settings,omitempty"`
	// DeletedAt is set when the book sits in the trash collection.
	DeletedAt int64 `json:"deletedAt,omitempty"`

	// DeletedPages holds the IDs of soft-deleted pages on records written
	// before the hard-delete policy. Normalize purges it.
	DeletedPages []string `json:"deletedPages,omitempty"`
}

// Page is a single photographed-and-extracted page of a book.
type Page struct {
	ID           string `json:"id"`
	PageNumber   int    `json:"pageNumber"`
	Content      string `json:"content"`
	ChapterTitle string `json:"chapterTitle,omitempty"`
	ShortName    string `json:"shortName,omitempty"`

	// IsDeleted is only set on records written before the hard-delete
	// policy. Normalize removes flagged pages entirely.
	IsDeleted bool `json:"isDeleted,omitempty"`
}

// Bookmark marks a page. Position is a zero-based page index snapshot taken
// at creation time and can go stale when later deletions shift pages; PageID
// stays authoritative.
type Bookmark struct {
	ID        string `json:"id"`
	PageID    string `json:"pageId"`
	Position  int    `json:"position"`
	Title     string `json:"title,omitempty"`
	Note      string `json:"note,omitempty"`
	CreatedAt int64  `json:"createdAt"`
}

// BookSettings holds per-book reader preferences.
type BookSettings struct {
	TranslationLanguage string `json:"translationLanguage,omitempty"`
}

// BookmarkUpdate is a partial bookmark update. Nil fields are left unchanged.
type BookmarkUpdate struct {
	Title    *string `json:"title,omitempty"`
	Note     *string `json:"note,omitempty"`
	PageID   *string `json:"pageId,omitempty"`
	Position *int    `json:"position,omitempty"`
}

// NowMillis returns the current time as epoch milliseconds, the timestamp
// format used throughout the stored records and the export document.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// NewBook creates an empty book with a fresh ID and normalized language.
func NewBook(title, language string) *Book {
	now := NowMillis()
	return &Book{
		ID:           uuid.NewString(),
		Title:        title,
		Pages:        []Page{},
		CurrentPage:  0,
		CreatedAt:    now,
		LastModified: now,
		Language:     normalize.Language(language),
		Bookmarks:    []Bookmark{},
	}
}

// PageByID returns the page with the given ID, or nil.
func (b *Book) PageByID(pageID string) *Page {
	for i := range b.Pages {
		if b.Pages[i].ID == pageID {
			return &b.Pages[i]
		}
	}
	return nil
}

// AppendPage adds a page at the end of the book and moves the reader to it.
// The new page gets a fresh ID and the next sequential page number.
func (b *Book) AppendPage(content, shortName string) *Page {
	page := Page{
		ID:         id.MustGenerate(id.PrefixPage),
		PageNumber: len(b.Pages) + 1,
		Content:    content,
		ShortName:  shortName,
	}
	b.Pages = append(b.Pages, page)
	b.CurrentPage = len(b.Pages) - 1
	return &b.Pages[len(b.Pages)-1]
}

// DeletePage removes a page permanently. Remaining pages are renumbered to
// stay contiguous, bookmarks referencing the page are pruned in the same
// step, and the current page is clamped. Returns false if the page does not
// exist, leaving the book untouched.
func (b *Book) DeletePage(pageID string) bool {
	idx := -1
	for i := range b.Pages {
		if b.Pages[i].ID == pageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	b.Pages = append(b.Pages[:idx], b.Pages[idx+1:]...)
	b.renumberPages()
	b.pruneBookmarks()
	b.clampCurrentPage()
	return true
}

// ApplyPageEdit replaces the content of an existing page. Used when an
// extraction response revises the previous page for cross-page continuity.
// Returns false if the page does not exist.
func (b *Book) ApplyPageEdit(pageID, content string) bool {
	page := b.PageByID(pageID)
	if page == nil {
		return false
	}
	page.Content = content
	return true
}

// SetCurrentPage moves the reader to the given zero-based page index,
// clamped to the valid range.
func (b *Book) SetCurrentPage(index int) {
	b.CurrentPage = index
	b.clampCurrentPage()
}

// AddBookmark bookmarks the page with the given ID. The title defaults to
// "Page N" for the page's number at creation time; the position snapshot is
// the page's index at creation time. Returns nil if the page does not exist.
func (b *Book) AddBookmark(pageID, title, note string) *Bookmark {
	page := b.PageByID(pageID)
	if page == nil {
		return nil
	}

	if title == "" {
		title = fmt.Sprintf("Page %d", page.PageNumber)
	}

	bookmark := Bookmark{
		ID:        id.MustGenerate(id.PrefixBookmark),
		PageID:    pageID,
		Position:  page.PageNumber - 1,
		Title:     title,
		Note:      note,
		CreatedAt: NowMillis(),
	}
	b.Bookmarks = append(b.Bookmarks, bookmark)
	return &b.Bookmarks[len(b.Bookmarks)-1]
}

// RemoveBookmark deletes a bookmark by ID. Returns false if absent.
func (b *Book) RemoveBookmark(bookmarkID string) bool {
	for i := range b.Bookmarks {
		if b.Bookmarks[i].ID == bookmarkID {
			b.Bookmarks = append(b.Bookmarks[:i], b.Bookmarks[i+1:]...)
			return true
		}
	}
	return false
}

// UpdateBookmark applies a partial update to a bookmark. Returns false if
// the bookmark does not exist.
func (b *Book) UpdateBookmark(bookmarkID string, update BookmarkUpdate) bool {
	for i := range b.Bookmarks {
		if b.Bookmarks[i].ID != bookmarkID {
			continue
		}
		if update.Title != nil {
			b.Bookmarks[i].Title = *update.Title
		}
		if update.Note != nil {
			b.Bookmarks[i].Note = *update.Note
		}
		if update.PageID != nil {
			b.Bookmarks[i].PageID = *update.PageID
		}
		if update.Position != nil {
			b.Bookmarks[i].Position = *update.Position
		}
		return true
	}
	return false
}

// Normalize enforces the structural invariants of a book record. It is the
// read-and-write chokepoint: records loaded from storage or imported from a
// document pass through here before anything else sees them.
//
// Records written before the hard-delete policy may still carry soft-deleted
// pages (IsDeleted flags or a DeletedPages list). Those pages are physically
// removed here, pages are renumbered, orphaned bookmarks pruned, and the
// current page clamped.
func (b *Book) Normalize() {
	if b.Pages == nil {
		b.Pages = []Page{}
	}
	if b.Bookmarks == nil {
		b.Bookmarks = []Bookmark{}
	}

	// Purge legacy soft-deleted pages.
	kept := b.Pages[:0]
	for _, p := range b.Pages {
		if !p.IsDeleted {
			kept = append(kept, p)
		}
	}
	b.Pages = kept
	b.DeletedPages = nil

	b.Language = normalize.Language(b.Language)
	b.renumberPages()
	b.pruneBookmarks()
	b.clampCurrentPage()
}

// Touch stamps the last-modified timestamp.
func (b *Book) Touch() {
	b.LastModified = NowMillis()
}

// renumberPages restores the contiguous 1..n numbering in slice order.
func (b *Book) renumberPages() {
	for i := range b.Pages {
		b.Pages[i].PageNumber = i + 1
	}
}

// pruneBookmarks drops bookmarks whose page no longer exists.
func (b *Book) pruneBookmarks() {
	existing := make(map[string]bool, len(b.Pages))
	for i := range b.Pages {
		existing[b.Pages[i].ID] = true
	}

	kept := b.Bookmarks[:0]
	for _, bm := range b.Bookmarks {
		if existing[bm.PageID] {
			kept = append(kept, bm)
		}
	}
	b.Bookmarks = kept
}

// clampCurrentPage keeps the reader index inside [0, len(pages)-1].
// An empty book reports index 0, matching the viewer's empty state.
func (b *Book) clampCurrentPage() {
	if n := len(b.Pages); b.CurrentPage >= n {
		b.CurrentPage = n - 1
	}
	if b.CurrentPage < 0 {
		b.CurrentPage = 0
	}
}
