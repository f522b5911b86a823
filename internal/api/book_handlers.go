package api

import (
	"encoding/json/v2"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/leafreadapp/leafread-server/internal/domain"
	"github.com/leafreadapp/leafread-server/internal/http/response"
	"github.com/leafreadapp/leafread-server/internal/service"
)

// maxImportSize bounds import documents; a book of photographed pages can
// get large, but not arbitrarily so.
const maxImportSize = 64 << 20

// handleListBooks returns all active books, newest first.
func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.bookService.ListBooks(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, books, s.logger)
}

// handleCreateBook creates an empty book.
func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var req service.CreateBookRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}

	book, err := s.bookService.CreateBook(r.Context(), req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Created(w, book, s.logger)
}

// handleGetBook returns a single book by ID.
func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.bookService.GetBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, book, s.logger)
}

// handleDeleteBook moves a book to the trash.
func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	if err := s.bookService.DeleteBook(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

// handleListTrash returns all trashed books.
func (s *Server) handleListTrash(w http.ResponseWriter, r *http.Request) {
	books, err := s.bookService.ListDeletedBooks(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, books, s.logger)
}

// handleRestoreBook moves a book out of the trash.
func (s *Server) handleRestoreBook(w http.ResponseWriter, r *http.Request) {
	if err := s.bookService.RestoreBook(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

// handleExportBook returns the book as a portable JSON document.
func (s *Server) handleExportBook(w http.ResponseWriter, r *http.Request) {
	doc, err := s.bookService.ExportBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	// The export is the raw document, not an envelope: it must round-trip
	// through import unchanged.
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="book.json"`)
	if _, err := w.Write(doc); err != nil {
		s.logger.Error("Failed to write export document", "error", err)
	}
}

// handleImportBook stores an exported document as a new book.
func (s *Server) handleImportBook(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize))
	if err != nil {
		response.BadRequest(w, "Failed to read request body", s.logger)
		return
	}

	book, err := s.bookService.ImportBook(r.Context(), data)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Created(w, book, s.logger)
}

// AddPageRequest carries a photographed page image, base64-encoded.
type AddPageRequest struct {
	ImageData []byte `json:"imageData"`
	MimeType  string `json:"mimeType"`
}

// handleAddPage extracts the page image and appends the result to the book.
func (s *Server) handleAddPage(w http.ResponseWriter, r *http.Request) {
	var req AddPageRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}
	if len(req.ImageData) == 0 {
		response.BadRequest(w, "imageData is required", s.logger)
		return
	}
	if req.MimeType == "" {
		req.MimeType = "image/jpeg"
	}

	book, err := s.bookService.AddPage(r.Context(), chi.URLParam(r, "id"), service.AddPageRequest{
		ImageData: req.ImageData,
		MimeType:  req.MimeType,
	})
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Created(w, book, s.logger)
}

// handleDeletePage removes a page permanently.
func (s *Server) handleDeletePage(w http.ResponseWriter, r *http.Request) {
	book, err := s.bookService.DeletePage(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "pageID"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, book, s.logger)
}

// handleSetCurrentPage moves the reader to a zero-based page index.
func (s *Server) handleSetCurrentPage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPage int `json:"currentPage"`
	}
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}

	book, err := s.bookService.SetCurrentPage(r.Context(), chi.URLParam(r, "id"), req.CurrentPage)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, book, s.logger)
}

// handleUpdateBookSettings replaces the per-book reader preferences.
func (s *Server) handleUpdateBookSettings(w http.ResponseWriter, r *http.Request) {
	var req domain.BookSettings
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}

	book, err := s.bookService.UpdateBookSettings(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, book, s.logger)
}

// handleNavItems returns the page navigation sidebar entries.
func (s *Server) handleNavItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.bookService.NavItems(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, items, s.logger)
}

// handleSearchPages runs a full-text query over one book's pages.
func (s *Server) handleSearchPages(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		response.BadRequest(w, "Query parameter 'q' is required", s.logger)
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil {
			limit = n
		}
	}

	hits, err := s.searchService.SearchPages(r.Context(), chi.URLParam(r, "id"), query, limit)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, hits, s.logger)
}

// handleAddBookmark bookmarks a page.
func (s *Server) handleAddBookmark(w http.ResponseWriter, r *http.Request) {
	var req service.AddBookmarkRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}

	bookmark, err := s.bookService.AddBookmark(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Created(w, bookmark, s.logger)
}

// handleUpdateBookmark applies a partial bookmark update.
func (s *Server) handleUpdateBookmark(w http.ResponseWriter, r *http.Request) {
	var update domain.BookmarkUpdate
	if err := json.UnmarshalRead(r.Body, &update); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}

	book, err := s.bookService.UpdateBookmark(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "bookmarkID"), update)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, book, s.logger)
}

// handleDeleteBookmark deletes a bookmark.
func (s *Server) handleDeleteBookmark(w http.ResponseWriter, r *http.Request) {
	if err := s.bookService.RemoveBookmark(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "bookmarkID")); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}
