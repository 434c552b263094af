package opds

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/htol/techlib/book"
)

const (
	catalogAuthor    = "techlib"
	catalogAuthorURI = "https://github.com/htol/techlib"
)

func newFeed(id, title, selfURL, startURL, selfType string, updated time.Time) *Feed {
	return &Feed{
		Xmlns:     NamespaceAtom,
		XmlnsDc:   NamespaceDC,
		XmlnsOpds: NamespaceOpds,
		ID:        id,
		Title:     title,
		Updated:   updated.UTC(),
		Author:    &Author{Name: catalogAuthor, URI: catalogAuthorURI},
		Links: []Link{
			{Rel: RelSelf, Href: selfURL, Type: selfType},
			{Rel: RelStart, Href: startURL, Type: TypeNavigation},
		},
		Entries: []Entry{},
	}
}

// NewNavigationFeed creates a new navigation feed
func NewNavigationFeed(id, title, selfURL, startURL string, updated time.Time) *Feed {
	return newFeed(id, title, selfURL, startURL, TypeNavigation, updated)
}

// NewAcquisitionFeed creates a new acquisition feed
func NewAcquisitionFeed(id, title, selfURL, startURL string, updated time.Time) *Feed {
	return newFeed(id, title, selfURL, startURL, TypeAcquisition, updated)
}

// AddSearchLink adds an OpenSearch link to the feed
func (f *Feed) AddSearchLink(searchURL string) {
	f.Links = append(f.Links, Link{Rel: RelSearch, Href: searchURL, Type: TypeOpenSearch})
}

// AddUpLink adds a parent navigation link
func (f *Feed) AddUpLink(upURL string, isNavigation bool) {
	linkType := TypeAcquisition
	if isNavigation {
		linkType = TypeNavigation
	}
	f.Links = append(f.Links, Link{Rel: RelUp, Href: upURL, Type: linkType})
}

// AddFacetLink adds an OPDS facet, e.g. a category filter on an acquisition feed.
func (f *Feed) AddFacetLink(group, title, href string, active bool) {
	l := Link{
		Rel:        "http://opds-spec.org/facet",
		Href:       href,
		Type:       TypeAcquisition,
		Title:      title,
		FacetGroup: group,
	}
	if active {
		l.ActiveFacet = "true"
	}
	f.Links = append(f.Links, l)
}

// AddNavigationEntry adds an entry linking to another navigation feed.
func (f *Feed) AddNavigationEntry(id, title, href, rel, content string) {
	f.addNavigation(id, title, href, rel, content, TypeNavigation)
}

// AddAcquisitionNavigationEntry adds a navigation entry that links to an acquisition feed
func (f *Feed) AddAcquisitionNavigationEntry(id, title, href, rel, content string) {
	f.addNavigation(id, title, href, rel, content, TypeAcquisition)
}

func (f *Feed) addNavigation(id, title, href, rel, content, linkType string) {
	entry := Entry{
		ID:      id,
		Title:   title,
		Updated: f.Updated,
		Links:   []Link{{Rel: rel, Href: href, Type: linkType}},
	}
	if content != "" {
		entry.Content = &Content{Type: "text", Value: content}
	}
	f.Entries = append(f.Entries, entry)
}

// BookEntryID is the stable Atom id of a book.
func BookEntryID(bookID string) string {
	return "urn:techlib:book:" + bookID
}

// AddBookEntry adds a book with its PDF acquisition link. Books without a
// PDF are listed without one.
func (f *Feed) AddBookEntry(b *book.Book, baseURL string) {
	entry := Entry{
		ID:      BookEntryID(b.ID),
		Title:   b.Title,
		Updated: b.UpdatedAt.UTC(),
		Summary: b.Description,
		Links: []Link{
			{Rel: RelAlternate, Href: baseURL + "/api/books/" + url.PathEscape(b.ID), Type: TypeJSON},
		},
	}
	if entry.Updated.IsZero() {
		entry.Updated = f.Updated
	}
	if b.Author != "" {
		entry.Authors = []Author{{Name: b.Author}}
	}
	if b.Year > 0 {
		entry.Issued = strconv.Itoa(b.Year)
	}
	if b.Pages > 0 {
		entry.Extent = fmt.Sprintf("%d pages", b.Pages)
	}
	if b.Category != "" {
		entry.Categories = append(entry.Categories, Category{Scheme: "category", Term: b.Category, Label: b.Category})
	}
	for _, tag := range b.Tags {
		entry.Categories = append(entry.Categories, Category{Scheme: "tag", Term: tag, Label: tag})
	}
	if b.HasPDF() {
		entry.Links = append(entry.Links, Link{
			Rel:  RelAcquisitionOpen,
			Href: baseURL + "/api/books/" + url.PathEscape(b.ID) + "/pdf",
			Type: TypePDF,
		})
	}
	if b.CoverURL != "" {
		entry.Links = append(entry.Links, Link{Rel: RelImage, Href: b.CoverURL})
	}

	f.Entries = append(f.Entries, entry)
}

// AddPaginationLinks adds first/previous/next/last links (RFC 5005) and the
// OpenSearch counters. pageURL may already carry a query string; its page
// and perPage parameters are replaced.
func (f *Feed) AddPaginationLinks(pageURL string, page, perPage, total int) {
	if perPage < 1 {
		perPage = 1
	}
	totalPages := (total + perPage - 1) / perPage
	if totalPages == 0 {
		totalPages = 1
	}

	start := (page-1)*perPage + 1
	f.XmlnsOpenSearch = NamespaceSearch
	f.TotalResults = &total
	f.ItemsPerPage = &perPage
	f.StartIndex = &start

	if page > 1 {
		f.Links = append(f.Links,
			Link{Rel: RelFirst, Href: pageHref(pageURL, 1, perPage), Type: TypeAcquisition},
			Link{Rel: RelPrevious, Href: pageHref(pageURL, page-1, perPage), Type: TypeAcquisition},
		)
	}
	if page < totalPages {
		f.Links = append(f.Links,
			Link{Rel: RelNext, Href: pageHref(pageURL, page+1, perPage), Type: TypeAcquisition},
			Link{Rel: RelLast, Href: pageHref(pageURL, totalPages, perPage), Type: TypeAcquisition},
		)
	}
}

// AddOpenPaginationLinks is AddPaginationLinks for result sets of unknown
// size, such as full-text search.
func (f *Feed) AddOpenPaginationLinks(pageURL string, page, perPage int, hasMore bool) {
	if page > 1 {
		f.Links = append(f.Links,
			Link{Rel: RelFirst, Href: pageHref(pageURL, 1, perPage), Type: TypeAcquisition},
			Link{Rel: RelPrevious, Href: pageHref(pageURL, page-1, perPage), Type: TypeAcquisition},
		)
	}
	if hasMore {
		f.Links = append(f.Links, Link{Rel: RelNext, Href: pageHref(pageURL, page+1, perPage), Type: TypeAcquisition})
	}
}

func pageHref(pageURL string, page, perPage int) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return fmt.Sprintf("%s?page=%d&perPage=%d", pageURL, page, perPage)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("perPage", strconv.Itoa(perPage))
	u.RawQuery = q.Encode()
	return u.String()
}

// Marshal returns the feed as an XML document.
func (f *Feed) Marshal() ([]byte, error) {
	output, err := xml.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), output...), nil
}
