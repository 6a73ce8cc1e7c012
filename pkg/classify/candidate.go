package classify

import (
	"strings"

	"nxenhance/pkg/dom"
)

// RowSelectors match elements that may be log rows.
var RowSelectors = []string{".row", ".list-group-item", ".log"}

// RowSelector is RowSelectors as one selector group.
var RowSelector = strings.Join(RowSelectors, ", ")

// IsCandidate reports whether row looks like a real log entry rather than UI chrome.
// Rows that were already marked stay candidates.
func IsCandidate(row dom.Node) bool {
	if !row.Valid() {
		return false
	}
	if isSearchRow(row) {
		return false
	}
	if row.Has(".spinner-border, .spinner-grow") {
		return false
	}
	if row.Has(".alert") || row.HasClass("bg-2") {
		return false
	}
	if row.HasClass(MarkerClass) {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(row.Text()), "no logs yet.") {
		return false
	}
	if row.Has(`img[src*="favicons"]`) || row.Has(`svg[data-icon="clock"]`) {
		return true
	}
	for _, selector := range DomainSelectors {
		if row.Has(selector) {
			return true
		}
	}
	return false
}

// RowsUnder returns the row-like elements at or below target, in document order,
// without duplicates.
func RowsUnder(target dom.Node) []dom.Node {
	if !target.Valid() {
		return nil
	}
	var rows []dom.Node
	if target.Matches(RowSelector) {
		rows = append(rows, target)
	}
	return append(rows, target.FindAll(RowSelector)...)
}
