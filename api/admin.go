package api

import (
	"encoding/json"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/htol/techlib/book"
	"github.com/htol/techlib/filter"
	"github.com/htol/techlib/logger"
	"github.com/htol/techlib/service"
	"github.com/htol/techlib/storage"
)

// multipartMemory is kept in memory before parts spill to temp files.
const multipartMemory = 8 << 20

func (h *handler) adminListBooks(w http.ResponseWriter, r *http.Request) {
	h.respondListing(w, r, true)
}

func (h *handler) adminCreateBook(w http.ResponseWriter, r *http.Request) {
	in, up, done, ok := h.readBookRequest(w, r)
	if !ok {
		return
	}
	defer done()

	b, err := h.svc.CreateBook(r.Context(), in, up)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logger.Info("Book created", "book_id", b.ID, "title", b.Title, "by", principalFrom(r.Context()).Email)
	respondJSON(w, http.StatusCreated, b)
}

func (h *handler) adminUpdateBook(w http.ResponseWriter, r *http.Request) {
	in, up, done, ok := h.readBookRequest(w, r)
	if !ok {
		return
	}
	defer done()

	b, err := h.svc.UpdateBook(r.Context(), chi.URLParam(r, "id"), in, up)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logger.Info("Book updated", "book_id", b.ID, "by", principalFrom(r.Context()).Email)
	respondJSON(w, http.StatusOK, b)
}

func (h *handler) adminDeleteBook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteBook(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	logger.Info("Book deleted", "book_id", id, "by", principalFrom(r.Context()).Email)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) adminStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

func (h *handler) adminStorage(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.StorageStatus()
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// readBookRequest accepts a JSON BookInput or a multipart form with the
// book fields (or a "book" JSON part) and an optional "pdf" file. done
// releases the multipart temp files.
func (h *handler) readBookRequest(w http.ResponseWriter, r *http.Request) (book.BookInput, *service.Upload, func(), bool) {
	var in book.BookInput
	noop := func() {}
	h.extendDeadlines(w)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		ok := decodeJSON(w, r, &in)
		return in, nil, noop, ok
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, storage.ErrTooLarge)
		} else {
			respondWithValidationError(w, "invalid multipart form: "+err.Error(), nil)
		}
		return in, nil, noop, false
	}
	form := r.MultipartForm
	done := func() {
		if err := form.RemoveAll(); err != nil {
			logger.Warn("Failed to remove multipart temp files", "error", err)
		}
	}

	if fields := formBookInput(form, &in); len(fields) > 0 {
		done()
		respondWithValidationError(w, "validation failed", fields)
		return in, nil, noop, false
	}

	files := form.File["pdf"]
	if len(files) == 0 {
		return in, nil, done, true
	}
	fh := files[0]
	f, err := fh.Open()
	if err != nil {
		done()
		respondWithError(w, r, "failed to read upload", err, http.StatusInternalServerError)
		return in, nil, noop, false
	}
	up := &service.Upload{Name: fh.Filename, Size: fh.Size, Reader: f}
	return in, up, func() {
		f.Close()
		done()
	}, true
}

// extendDeadlines lets a large upload outlive the server's read and write
// timeouts.
func (h *handler) extendDeadlines(w http.ResponseWriter) {
	if h.uploadTimeout <= 0 {
		return
	}
	deadline := time.Now().Add(h.uploadTimeout)
	rc := http.NewResponseController(w)
	if err := rc.SetReadDeadline(deadline); err != nil {
		logger.Debug("Cannot extend read deadline", "error", err)
	}
	if err := rc.SetWriteDeadline(deadline); err != nil {
		logger.Debug("Cannot extend write deadline", "error", err)
	}
}

// formBookInput fills in from form values and returns per-field parse errors.
func formBookInput(form *multipart.Form, in *book.BookInput) map[string]string {
	get := func(name string) string {
		if v := form.Value[name]; len(v) > 0 {
			return v[0]
		}
		return ""
	}

	if raw := get("book"); raw != "" {
		if err := json.Unmarshal([]byte(raw), in); err != nil {
			return map[string]string{"book": "must be a JSON object"}
		}
		return nil
	}

	fields := map[string]string{}
	in.Title = get("title")
	in.Author = get("author")
	in.Description = get("description")
	in.Category = get("category")
	in.PDFURL = get("pdf_url")
	in.CoverURL = get("cover_url")
	in.Tags = filter.ParseList(form.Value["tags"]...)

	for name, dst := range map[string]**int{"year": &in.Year, "pages": &in.Pages} {
		s := strings.TrimSpace(get(name))
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			fields[name] = "must be a whole number"
			continue
		}
		*dst = &n
	}
	return fields
}
