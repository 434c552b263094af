package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/htol/techlib/filter"
	"github.com/htol/techlib/logger"
	"github.com/htol/techlib/service"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// parseFilters reads the listing criteria. Multi-value parameters accept
// repeats as well as comma separated values.
func parseFilters(r *http.Request) (filter.Filters, int, int, map[string]string) {
	q := r.URL.Query()
	f := filter.Filters{
		Search:     q.Get("search"),
		Categories: filter.ParseList(q["category"]...),
		Authors:    filter.ParseList(q["author"]...),
		Tags:       filter.ParseList(q["tag"]...),
		Year:       q.Get("year"),
		YearFrom:   q.Get("yearFrom"),
		YearTo:     q.Get("yearTo"),
	}

	fields := map[string]string{}
	page, ok := queryInt(r, "page", 1)
	if !ok || page < 1 {
		fields["page"] = "must be a positive number"
	}
	perPage, ok := queryInt(r, "perPage", filter.DefaultPerPage)
	if !ok || perPage < 1 || perPage > filter.MaxPerPage {
		fields["perPage"] = fmt.Sprintf("must be between 1 and %d", filter.MaxPerPage)
	}
	return f, page, perPage, fields
}

func (h *handler) listBooks(w http.ResponseWriter, r *http.Request) {
	h.respondListing(w, r, false)
}

func (h *handler) respondListing(w http.ResponseWriter, r *http.Request, searchTags bool) {
	f, page, perPage, fields := parseFilters(r)
	if len(fields) > 0 {
		respondWithValidationError(w, "invalid query parameters", fields)
		return
	}
	f.SearchTags = searchTags

	res, err := h.svc.ListBooks(r.Context(), f, page, perPage)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *handler) getBook(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.GetBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (h *handler) searchBooks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		respondWithValidationError(w, "missing 'q' query parameter", map[string]string{"q": "is required"})
		return
	}

	fields := map[string]string{}
	limit, ok := queryInt(r, "limit", defaultSearchLimit)
	if !ok || limit < 1 || limit > maxSearchLimit {
		fields["limit"] = fmt.Sprintf("must be between 1 and %d", maxSearchLimit)
	}
	offset, ok := queryInt(r, "offset", 0)
	if !ok || offset < 0 {
		fields["offset"] = "must be >= 0"
	}
	if len(fields) > 0 {
		respondWithValidationError(w, "invalid query parameters", fields)
		return
	}

	results, err := h.svc.SearchBooks(r.Context(), query, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, results)
}

func (h *handler) facets(w http.ResponseWriter, r *http.Request) {
	f, err := h.svc.Facets(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, f)
}

// downloadPDF streams a stored PDF or redirects to an external one.
func (h *handler) downloadPDF(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	d, err := h.svc.DownloadPDF(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer d.Close()

	if d.RedirectURL != "" {
		http.Redirect(w, r, d.RedirectURL, http.StatusFound)
		return
	}
	servePDF(w, r, d, "attachment")
	logger.Debug("PDF served", "book_id", id, "size", d.Info.Size())
}

// serveStoredFile serves the public "pdf-books" bucket.
func (h *handler) serveStoredFile(w http.ResponseWriter, r *http.Request) {
	name, ok := pathParam(r, "name")
	if !ok {
		respondJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
		return
	}

	d, err := h.svc.OpenStored(name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer d.Close()

	w.Header().Set("Cache-Control", "public, max-age=86400")
	servePDF(w, r, d, "inline")
}

func servePDF(w http.ResponseWriter, r *http.Request, d *service.Download, disposition string) {
	w.Header().Set("Content-Type", "application/pdf")
	// RFC 5987 filename for non-ASCII titles
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename*=UTF-8''%s", disposition, url.PathEscape(d.Filename)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, d.Filename, d.Info.ModTime(), d.File)
}
