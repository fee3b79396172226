// Package page classifies recruiting-site URLs into the page shapes the
// pipeline knows how to handle.
package page

import "strings"

// Kind is the classified shape of a page.
type Kind string

const (
	// KindList is the page showing multiple candidate summary cards.
	KindList Kind = "list"
	// KindDetail is the expanded view of a single candidate profile.
	KindDetail Kind = "detail"
	// KindUnknown is everything else.
	KindUnknown Kind = "unknown"
)

// Classifier matches URLs against known path fragments. The zero value is not
// usable; construct with NewClassifier.
type Classifier struct {
	listFragments   []string
	detailFragments []string
}

// Default path fragments for the supported recruiting site. Overridable via
// configuration since the site reshapes its routes without notice.
var (
	DefaultListFragments   = []string{"/web/chat/recommend", "/web/frame/recommend", "/recommend"}
	DefaultDetailFragments = []string{"/web/chat/detail", "/web/frame/geek", "/geek/detail"}
)

// NewClassifier builds a classifier from the given fragments, falling back to
// the defaults when a list is empty.
func NewClassifier(listFragments, detailFragments []string) *Classifier {
	if len(listFragments) == 0 {
		listFragments = DefaultListFragments
	}
	if len(detailFragments) == 0 {
		detailFragments = DefaultDetailFragments
	}
	return &Classifier{
		listFragments:   listFragments,
		detailFragments: detailFragments,
	}
}

// Classify reports the kind of page the URL addresses. It never fails:
// unmatched input is KindUnknown. Detail fragments are checked first because
// detail routes on the site nest under the list route prefix.
func (c *Classifier) Classify(url string) Kind {
	url = strings.TrimSpace(url)
	if url == "" {
		return KindUnknown
	}

	for _, fragment := range c.detailFragments {
		if strings.Contains(url, fragment) {
			return KindDetail
		}
	}

	for _, fragment := range c.listFragments {
		if strings.Contains(url, fragment) {
			return KindList
		}
	}

	return KindUnknown
}
