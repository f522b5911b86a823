package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for page documents.
//
// The mapping is designed with these priorities:
//  1. Fast full-text search on extracted page content with English stemming
//  2. Exact keyword matching on book_id so queries can be scoped to one book
//  3. Numeric page_number for ordering hits the way the book reads
//  4. Term vectors on content for highlighting matched passages
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()

	// Use English analyzer as default for text fields
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	// --- Text fields (full-text searchable) ---

	// Content - primary search target
	contentFieldMapping := bleve.NewTextFieldMapping()
	contentFieldMapping.Analyzer = en.AnalyzerName
	contentFieldMapping.Store = true
	contentFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("content", contentFieldMapping)

	// Short name - the sidebar label
	shortNameFieldMapping := bleve.NewTextFieldMapping()
	shortNameFieldMapping.Analyzer = en.AnalyzerName
	shortNameFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("short_name", shortNameFieldMapping)

	// Chapter title - searchable
	chapterFieldMapping := bleve.NewTextFieldMapping()
	chapterFieldMapping.Analyzer = en.AnalyzerName
	chapterFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("chapter_title", chapterFieldMapping)

	// --- Keyword fields (exact match) ---

	// Book ID - scopes every query to one book
	bookIDFieldMapping := bleve.NewTextFieldMapping()
	bookIDFieldMapping.Analyzer = keyword.Name
	bookIDFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("book_id", bookIDFieldMapping)

	// Page ID - stored for retrieval
	pageIDFieldMapping := bleve.NewTextFieldMapping()
	pageIDFieldMapping.Analyzer = keyword.Name
	pageIDFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("page_id", pageIDFieldMapping)

	// --- Numeric fields ---

	// Page number - for sorting hits in reading order
	pageNumberFieldMapping := bleve.NewNumericFieldMapping()
	pageNumberFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("page_number", pageNumberFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
