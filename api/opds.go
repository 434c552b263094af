package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/htol/techlib/filter"
	"github.com/htol/techlib/logger"
	"github.com/htol/techlib/opds"
)

const (
	opdsPerPage        = 50
	opdsRootURL        = "/opds"
	opdsSearchURL      = "/opds/opensearch.xml"
	catalogTitle       = "Tech Library"
	catalogDescription = "OPDS catalog of technical books"
)

// respondWithOPDS writes an OPDS feed response with proper content type
func respondWithOPDS(w http.ResponseWriter, feed *opds.Feed, contentType string) {
	output, err := feed.Marshal()
	if err != nil {
		logger.Error("Failed to marshal OPDS feed", "feed", feed.ID, "error", err)
		http.Error(w, "Failed to generate feed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType+"; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(output); err != nil {
		logger.Debug("Failed to write OPDS feed", "error", err)
	}
}

// opdsPage reads page and perPage leniently: invalid values fall back to defaults.
func opdsPage(r *http.Request) (int, int) {
	page, ok := queryInt(r, "page", 1)
	if !ok || page < 1 {
		page = 1
	}
	perPage, ok := queryInt(r, "perPage", opdsPerPage)
	if !ok || perPage < 1 || perPage > filter.MaxPerPage {
		perPage = opdsPerPage
	}
	return page, perPage
}

// opdsRoot returns the OPDS catalog root (navigation feed)
func (h *handler) opdsRoot(w http.ResponseWriter, r *http.Request) {
	baseURL := h.baseURL(r)

	feed := opds.NewNavigationFeed("urn:techlib:root", catalogTitle, baseURL+opdsRootURL, baseURL+opdsRootURL, h.now())
	feed.Subtitle = catalogDescription
	feed.AddSearchLink(baseURL + opdsSearchURL)

	feed.AddAcquisitionNavigationEntry(
		"urn:techlib:new",
		"New Books",
		baseURL+"/opds/new",
		opds.RelSortNew,
		"Recently added books",
	)
	feed.AddNavigationEntry(
		"urn:techlib:categories",
		"Categories",
		baseURL+"/opds/categories",
		opds.RelSubsection,
		"Browse by category",
	)

	respondWithOPDS(w, feed, opds.TypeNavigation)
}

// opdsOpenSearch returns the OpenSearch description XML
func (h *handler) opdsOpenSearch(w http.ResponseWriter, r *http.Request) {
	output, err := opds.NewOpenSearchDescription(h.baseURL(r), catalogTitle, catalogDescription).Marshal()
	if err != nil {
		http.Error(w, "Failed to generate OpenSearch description", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", opds.TypeOpenSearch+"; charset=utf-8")
	_, _ = w.Write(output)
}

// opdsNew lists the catalog newest first, with category facets.
func (h *handler) opdsNew(w http.ResponseWriter, r *http.Request) {
	baseURL := h.baseURL(r)
	page, perPage := opdsPage(r)

	res, err := h.svc.ListBooks(r.Context(), filter.Filters{}, page, perPage)
	if err != nil {
		logger.Error("OPDS new books failed", "error", err)
		http.Error(w, "Failed to list books", http.StatusInternalServerError)
		return
	}
	facets, err := h.svc.Facets(r.Context())
	if err != nil {
		logger.Error("OPDS facets failed", "error", err)
		http.Error(w, "Failed to list books", http.StatusInternalServerError)
		return
	}

	selfURL := baseURL + "/opds/new"
	feed := opds.NewAcquisitionFeed("urn:techlib:new", "New Books", selfURL, baseURL+opdsRootURL, h.now())
	feed.AddUpLink(baseURL+opdsRootURL, true)
	feed.AddSearchLink(baseURL + opdsSearchURL)
	for _, c := range facets.Categories {
		feed.AddFacetLink("Category", c, baseURL+"/opds/categories/"+url.PathEscape(c), false)
	}
	for i := range res.Items {
		feed.AddBookEntry(&res.Items[i], baseURL)
	}
	feed.AddPaginationLinks(selfURL, res.Page, res.PerPage, res.Total)

	respondWithOPDS(w, feed, opds.TypeAcquisition)
}

// opdsSearch returns full-text search results as an acquisition feed
func (h *handler) opdsSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		http.Error(w, "Missing search query parameter 'q'", http.StatusBadRequest)
		return
	}
	baseURL := h.baseURL(r)
	page, perPage := opdsPage(r)

	results, hasMore, err := h.svc.SearchPage(r.Context(), query, page, perPage)
	if err != nil {
		logger.Error("OPDS search failed", "query", query, "error", err)
		http.Error(w, "Search failed", http.StatusInternalServerError)
		return
	}

	selfURL := baseURL + "/opds/search?q=" + url.QueryEscape(query)
	feed := opds.NewAcquisitionFeed(
		"urn:techlib:search:"+url.QueryEscape(query),
		fmt.Sprintf("Search: %s", query),
		selfURL,
		baseURL+opdsRootURL,
		h.now(),
	)
	feed.AddUpLink(baseURL+opdsRootURL, true)
	for i := range results {
		feed.AddBookEntry(&results[i].Book, baseURL)
	}
	feed.AddOpenPaginationLinks(selfURL, page, perPage, hasMore)

	respondWithOPDS(w, feed, opds.TypeAcquisition)
}

// opdsCategories lists categories as navigation entries.
func (h *handler) opdsCategories(w http.ResponseWriter, r *http.Request) {
	baseURL := h.baseURL(r)

	facets, err := h.svc.Facets(r.Context())
	if err != nil {
		logger.Error("OPDS categories failed", "error", err)
		http.Error(w, "Failed to list categories", http.StatusInternalServerError)
		return
	}

	feed := opds.NewNavigationFeed("urn:techlib:categories", "Categories", baseURL+"/opds/categories", baseURL+opdsRootURL, h.now())
	feed.AddUpLink(baseURL+opdsRootURL, true)
	for _, c := range facets.Categories {
		feed.AddAcquisitionNavigationEntry(
			"urn:techlib:category:"+url.PathEscape(c),
			c,
			baseURL+"/opds/categories/"+url.PathEscape(c),
			opds.RelSubsection,
			"",
		)
	}

	respondWithOPDS(w, feed, opds.TypeNavigation)
}

// opdsCategoryBooks lists the books of one category.
func (h *handler) opdsCategoryBooks(w http.ResponseWriter, r *http.Request) {
	name, ok := pathParam(r, "name")
	if !ok || strings.TrimSpace(name) == "" {
		http.Error(w, "Invalid category", http.StatusBadRequest)
		return
	}
	baseURL := h.baseURL(r)
	page, perPage := opdsPage(r)

	res, err := h.svc.ListBooks(r.Context(), filter.Filters{Categories: []string{name}}, page, perPage)
	if err != nil {
		logger.Error("OPDS category books failed", "category", name, "error", err)
		http.Error(w, "Failed to list books", http.StatusInternalServerError)
		return
	}

	selfURL := baseURL + "/opds/categories/" + url.PathEscape(name)
	feed := opds.NewAcquisitionFeed("urn:techlib:category:"+url.PathEscape(name), name, selfURL, baseURL+opdsRootURL, h.now())
	feed.AddUpLink(baseURL+"/opds/categories", true)
	for i := range res.Items {
		feed.AddBookEntry(&res.Items[i], baseURL)
	}
	feed.AddPaginationLinks(selfURL, res.Page, res.PerPage, res.Total)

	respondWithOPDS(w, feed, opds.TypeAcquisition)
}
