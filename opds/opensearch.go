package opds

import "encoding/xml"

// OpenSearchDescription tells readers how to query the catalog.
type OpenSearchDescription struct {
	XMLName     xml.Name        `xml:"OpenSearchDescription"`
	Xmlns       string          `xml:"xmlns,attr"`
	ShortName   string          `xml:"ShortName"`
	Description string          `xml:"Description"`
	InputEnc    string          `xml:"InputEncoding"`
	OutputEnc   string          `xml:"OutputEncoding"`
	URLs        []OpenSearchURL `xml:"Url"`
}

// OpenSearchURL is one URL template of the description.
type OpenSearchURL struct {
	Type     string `xml:"type,attr"`
	Template string `xml:"template,attr"`
}

// NewOpenSearchDescription describes the OPDS search feed and the JSON search API.
func NewOpenSearchDescription(baseURL, shortName, description string) *OpenSearchDescription {
	return &OpenSearchDescription{
		Xmlns:       NamespaceSearch,
		ShortName:   shortName,
		Description: description,
		InputEnc:    "UTF-8",
		OutputEnc:   "UTF-8",
		URLs: []OpenSearchURL{
			{Type: TypeAcquisition, Template: baseURL + "/opds/search?q={searchTerms}&page={startPage?}"},
			{Type: TypeJSON, Template: baseURL + "/api/search?q={searchTerms}"},
		},
	}
}

// Marshal returns the XML representation of the OpenSearch document
func (o *OpenSearchDescription) Marshal() ([]byte, error) {
	output, err := xml.MarshalIndent(o, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), output...), nil
}
