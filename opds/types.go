// Package opds builds OPDS 1.2 catalog feeds of the library.
// OPDS is an Atom (RFC 4287) profile that e-book readers use to browse and
// download publications.
package opds

import (
	"encoding/xml"
	"time"
)

// Namespaces
const (
	NamespaceAtom   = "http://www.w3.org/2005/Atom"
	NamespaceDC     = "http://purl.org/dc/terms/"
	NamespaceOpds   = "http://opds-spec.org/2010/catalog"
	NamespaceSearch = "http://a9.com/-/spec/opensearch/1.1/"
)

// Media Types
const (
	TypeNavigation  = "application/atom+xml;profile=opds-catalog;kind=navigation"
	TypeAcquisition = "application/atom+xml;profile=opds-catalog;kind=acquisition"
	TypeOpenSearch  = "application/opensearchdescription+xml"
	TypePDF         = "application/pdf"
	TypeJSON        = "application/json"
)

const (
	RelAcquisitionOpen = "http://opds-spec.org/acquisition/open-access"
	RelImage           = "http://opds-spec.org/image"
	RelSortNew         = "http://opds-spec.org/sort/new"
)

// Standard link relations (RFC 5988)
const (
	RelSelf       = "self"
	RelStart      = "start"
	RelUp         = "up"
	RelNext       = "next"
	RelPrevious   = "previous"
	RelFirst      = "first"
	RelLast       = "last"
	RelSubsection = "subsection"
	RelSearch     = "search"
	RelAlternate  = "alternate"
)

// Feed is a navigation or acquisition feed. Paged feeds also carry the
// OpenSearch result counters.
type Feed struct {
	XMLName         xml.Name  `xml:"feed"`
	Xmlns           string    `xml:"xmlns,attr"`
	XmlnsDc         string    `xml:"xmlns:dc,attr,omitempty"`
	XmlnsOpds       string    `xml:"xmlns:opds,attr,omitempty"`
	XmlnsOpenSearch string    `xml:"xmlns:opensearch,attr,omitempty"`
	ID              string    `xml:"id"`
	Title           string    `xml:"title"`
	Subtitle        string    `xml:"subtitle,omitempty"`
	Updated         time.Time `xml:"updated"`
	Author          *Author   `xml:"author,omitempty"`
	TotalResults    *int      `xml:"opensearch:totalResults,omitempty"`
	ItemsPerPage    *int      `xml:"opensearch:itemsPerPage,omitempty"`
	StartIndex      *int      `xml:"opensearch:startIndex,omitempty"`
	Links           []Link    `xml:"link"`
	Entries         []Entry   `xml:"entry"`
}

// Entry is a navigation item or a book.
type Entry struct {
	ID         string     `xml:"id"`
	Title      string     `xml:"title"`
	Updated    time.Time  `xml:"updated"`
	Content    *Content   `xml:"content,omitempty"`
	Summary    string     `xml:"summary,omitempty"`
	Authors    []Author   `xml:"author,omitempty"`
	Links      []Link     `xml:"link"`
	Categories []Category `xml:"category,omitempty"`
	Issued     string     `xml:"dc:issued,omitempty"`
	Extent     string     `xml:"dc:extent,omitempty"`
}

type Author struct {
	Name string `xml:"name"`
	URI  string `xml:"uri,omitempty"`
}

type Link struct {
	Rel   string `xml:"rel,attr"`
	Href  string `xml:"href,attr"`
	Type  string `xml:"type,attr,omitempty"`
	Title string `xml:"title,attr,omitempty"`
	// Facet links only
	FacetGroup  string `xml:"opds:facetGroup,attr,omitempty"`
	ActiveFacet string `xml:"opds:activeFacet,attr,omitempty"`
}

type Content struct {
	Type  string `xml:"type,attr,omitempty"`
	Value string `xml:",chardata"`
}

// Category is a book category or tag.
type Category struct {
	Scheme string `xml:"scheme,attr,omitempty"`
	Term   string `xml:"term,attr"`
	Label  string `xml:"label,attr,omitempty"`
}
