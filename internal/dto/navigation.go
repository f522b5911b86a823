// Package dto provides client-facing projections of domain aggregates.
//
// The viewer renders from these directly, so every field is denormalized to
// what the sidebar and reader components actually display.
package dto

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/leafreadapp/leafread-server/internal/domain"
)

// excerptLength is the number of characters of plain page text shown in the
// navigation sidebar when a page has no short name.
const excerptLength = 50

// PageNavItem is one entry in the page navigation sidebar.
type PageNavItem struct {
	ID           string `json:"id"`
	PageNumber   int    `json:"pageNumber"`
	ChapterTitle string `json:"chapterTitle,omitempty"`
	ShortName    string `json:"shortName,omitempty"`
	Excerpt      string `json:"excerpt"`
}

// BuildNavItems derives the navigation sidebar entries for a book,
// in reading order.
func BuildNavItems(book *domain.Book) []PageNavItem {
	items := make([]PageNavItem, 0, len(book.Pages))
	for i := range book.Pages {
		page := &book.Pages[i]
		items = append(items, PageNavItem{
			ID:           page.ID,
			PageNumber:   page.PageNumber,
			ChapterTitle: page.ChapterTitle,
			ShortName:    page.ShortName,
			Excerpt:      Excerpt(page.Content, excerptLength),
		})
	}
	return items
}

// htmlTagPattern matches common HTML tags to detect if a string contains HTML.
var htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|strong|em|a|ul|ol|li|h[1-6]|blockquote)[\s>/]`)

// markdownMarkPattern strips the markdown syntax characters left after
// HTML conversion, so excerpts read as plain prose.
var markdownMarkPattern = regexp.MustCompile(`[*_#>` + "`" + `]+`)

// whitespacePattern collapses runs of whitespace, including the newlines
// markdown conversion introduces between blocks.
var whitespacePattern = regexp.MustCompile(`\s+`)

// Excerpt reduces page content to at most n characters of plain text.
// HTML markup is converted away first; truncation is on a rune boundary
// with a trailing ellipsis.
func Excerpt(content string, n int) string {
	text := content
	if htmlTagPattern.MatchString(strings.ToLower(text)) {
		if markdown, err := htmltomarkdown.ConvertString(text); err == nil {
			text = markdown
		}
	}
	text = markdownMarkPattern.ReplaceAllString(text, "")
	text = strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))

	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return strings.TrimSpace(string(runes[:n])) + "…"
}
