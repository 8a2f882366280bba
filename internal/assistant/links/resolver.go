// Package links maps municipal document titles to their official published
// URLs. The table is static and consulted only to decorate answers, never
// to drive retrieval.
package links

import "strings"

type entry struct {
	title string
	url   string
}

var officialURLs = []entry{
	{"business licence bylaw", "https://www.mapleridge.ca/bylaws/business-licence"},
	{"animal control bylaw", "https://www.mapleridge.ca/bylaws/animal-control"},
	{"noise control bylaw", "https://www.mapleridge.ca/bylaws/noise-control"},
	{"parking bylaw", "https://www.mapleridge.ca/bylaws/parking"},
	{"zoning bylaw", "https://www.mapleridge.ca/bylaws/zoning"},
	{"solid waste bylaw", "https://www.mapleridge.ca/bylaws/solid-waste"},
	{"water service bylaw", "https://www.mapleridge.ca/bylaws/water-service"},
	{"property tax rates bylaw", "https://www.mapleridge.ca/bylaws/property-tax-rates"},
	{"fees and charges bylaw", "https://www.mapleridge.ca/bylaws/fees-and-charges"},
	{"building bylaw", "https://www.mapleridge.ca/bylaws/building"},
	{"recreation facility fees", "https://www.mapleridge.ca/recreation/fees"},
	{"dog licence application guide", "https://www.mapleridge.ca/services/dog-licences"},
}

// Resolve returns the official URL for a document title, matching on the
// normalized title or on a known title contained within it. The bool is
// false when no entry matches.
func Resolve(title string) (string, bool) {
	key := strings.Join(strings.Fields(strings.ToLower(title)), " ")
	for _, e := range officialURLs {
		if key == e.title || strings.Contains(key, e.title) {
			return e.url, true
		}
	}
	return "", false
}
