package search

import "github.com/leafreadapp/leafread-server/internal/domain"

// PageDocument is the indexed representation of one book page.
type PageDocument struct {
	ID           string // index document ID: "<bookID>/<pageID>"
	BookID       string
	PageID       string
	PageNumber   int
	Content      string
	ShortName    string
	ChapterTitle string
}

// docID builds the index document ID for a page.
func docID(bookID, pageID string) string {
	return bookID + "/" + pageID
}

// newPageDocument builds the index document for one page of a book.
func newPageDocument(book *domain.Book, page *domain.Page) *PageDocument {
	return &PageDocument{
		ID:           docID(book.ID, page.ID),
		BookID:       book.ID,
		PageID:       page.ID,
		PageNumber:   page.PageNumber,
		Content:      page.Content,
		ShortName:    page.ShortName,
		ChapterTitle: page.ChapterTitle,
	}
}

// ToMap converts the document to the lowercase field names the index
// mapping is built around.
func (d *PageDocument) ToMap() map[string]any {
	return map[string]any{
		"book_id":       d.BookID,
		"page_id":       d.PageID,
		"page_number":   d.PageNumber,
		"content":       d.Content,
		"short_name":    d.ShortName,
		"chapter_title": d.ChapterTitle,
	}
}

// PageHit is one search result.
type PageHit struct {
	BookID     string   `json:"bookId"`
	PageID     string   `json:"pageId"`
	PageNumber int      `json:"pageNumber"`
	ShortName  string   `json:"shortName,omitempty"`
	Score      float64  `json:"score"`
	Fragments  []string `json:"fragments,omitempty"`
}
