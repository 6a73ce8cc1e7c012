package classify

import (
	"nxenhance/pkg/dom"
	"nxenhance/pkg/domain"
)

// DomainSelectors are tried in order; the first one whose text holds a hostname wins.
var DomainSelectors = []string{
	`[data-testid="log-domain"]`,
	`[data-testid="domain-name"]`,
	`[data-test="domain-name"]`,
	`.domainName`,
	`.domain-name`,
	`.domain`,
	`.text-truncate`,
	`.col a`,
	`a[href*="/logs/"]`,
	`a[href^="/"]`,
}

// Extractor pulls a domain out of a row. It returns "" when it has nothing to offer.
type Extractor interface {
	Extract(row dom.Node) string
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(row dom.Node) string

func (f ExtractorFunc) Extract(row dom.Node) string { return f(row) }

// SelectorExtractor reads the first descendant matching selector.
func SelectorExtractor(selector string) Extractor {
	return ExtractorFunc(func(row dom.Node) string {
		node := row.Find(selector)
		if !node.Valid() {
			return ""
		}
		return domain.ExtractFromText(node.Text())
	})
}

// AttrExtractor reads an attribute of the row itself.
func AttrExtractor(name string) Extractor {
	return ExtractorFunc(func(row dom.Node) string {
		value, ok := row.Attr(name)
		if !ok {
			return ""
		}
		return domain.ExtractFromText(value)
	})
}

// LinesExtractor scans the row's visible text lines.
var LinesExtractor Extractor = ExtractorFunc(func(row dom.Node) string {
	return domain.ExtractFromLines(row.Lines())
})

// DefaultExtractors is the selector list, then data-domain, then free text.
func DefaultExtractors() []Extractor {
	chain := make([]Extractor, 0, len(DomainSelectors)+2)
	for _, selector := range DomainSelectors {
		chain = append(chain, SelectorExtractor(selector))
	}
	return append(chain, AttrExtractor("data-domain"), LinesExtractor)
}

// ExtractDomain runs chain against row. Search rows never yield a domain.
func ExtractDomain(row dom.Node, chain []Extractor) string {
	if !row.Valid() || isSearchRow(row) {
		return ""
	}
	for _, extractor := range chain {
		if found := extractor.Extract(row); found != "" {
			return found
		}
	}
	return ""
}

func isSearchRow(row dom.Node) bool {
	return row.Has(`input[type="search"]`) || row.Has(`svg[data-icon="magnifying-glass"]`)
}
