package classify

import (
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"

	"nxenhance/pkg/dom"
	"nxenhance/pkg/domain"
	"nxenhance/pkg/settings"
)

// LargeListThreshold is the item count above which list pages are left undecorated.
const LargeListThreshold = 1000

var subdomainsHint = regexp.MustCompile(`(?i)subdomains`)

const inputRowSelector = `input[type="text"]:not(.description), input:not([type]), textarea`

// SkipListItem reports whether item is help text or the add-domain row.
func SkipListItem(item dom.Node) bool {
	if !item.Valid() || item.HasClass("text-muted") {
		return true
	}
	if subdomainsHint.MatchString(item.Text()) {
		return true
	}
	return item.Has(`input[placeholder*="Add a domain"]`) || item.Has("textarea")
}

// ItemDomain returns the normalized domain shown by a list item: the trailing text of its
// first span, or the whole item text.
func ItemDomain(item dom.Node) string {
	if !item.Valid() {
		return ""
	}
	if span := item.Find("span"); span.Valid() {
		if text := strings.Join(strings.Fields(span.Text()), " "); text != "" {
			fields := strings.Fields(text)
			return domain.Normalize(fields[len(fields)-1])
		}
	}
	return domain.Normalize(strings.Join(strings.Fields(item.Text()), " "))
}

// EnhanceListItem adds the selection checkbox and the description input to item. It returns
// false for skipped items.
func EnhanceListItem(item dom.Node, scope settings.Scope, store *settings.Store) (bool, error) {
	if SkipListItem(item) {
		return false, nil
	}
	if !item.Has(".nxe-select-checkbox") {
		if _, err := item.Append(`<input type="checkbox" class="nxe-select-checkbox" data-nxe-action="select">`); err != nil {
			return false, fmt.Errorf("add checkbox: %w", err)
		}
	}
	if item.Has(".description") {
		return true, nil
	}
	name := ItemDomain(item)
	note := ""
	if store != nil {
		note = store.Description(scope, name)
	}
	_, err := item.Append(fmt.Sprintf(
		`<input type="text" class="description form-control form-control-sm" placeholder="Description" `+
			`style="display: none; position: absolute; right: 40px; width: 200px;" value="%s" data-nxe-domain="%s" data-nxe-list="%s" data-nxe-action="describe">`,
		html.EscapeString(note), html.EscapeString(name), html.EscapeString(string(scope))))
	if err != nil {
		return false, fmt.Errorf("add description input: %w", err)
	}
	return true, nil
}

// SelectedDomains returns the domains of the items whose selection checkbox is ticked.
func SelectedDomains(group dom.Node) []string {
	var names []string
	for _, box := range group.FindAll(".nxe-select-checkbox") {
		if !box.Checked() {
			continue
		}
		if name := ItemDomain(box.Closest(".list-group-item")); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// VisibleDomains returns the normalized text of every item span in group.
func VisibleDomains(group dom.Node) *domain.Set {
	set := domain.NewSet()
	for _, span := range group.FindAll(".list-group-item span") {
		set.Add(strings.TrimSpace(span.Text()))
	}
	return set
}

// SortItems orders the domain items of group by root domain, then full name, keeping them
// after the add-domain row. It returns the number of items placed.
func SortItems(group dom.Node) int {
	if !group.Valid() {
		return 0
	}
	var items []sortItem
	var inputRow dom.Node
	for _, item := range group.Children() {
		if !item.HasClass("list-group-item") {
			continue
		}
		if item.Has(inputRowSelector) {
			if !inputRow.Valid() {
				inputRow = item
			}
			continue
		}
		if item.ID() == "nxe-toolbar" || item.HasClass("text-muted") || strings.Contains(item.Text(), "Subdomains") {
			continue
		}
		items = append(items, sortItem{node: item, key: sortKey(item)})
	}
	if len(items) == 0 {
		return 0
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].key < items[j].key })

	var before dom.Node
	if inputRow.Valid() {
		before = inputRow.Next()
		for before.Valid() && isSortable(before, items) {
			before = before.Next()
		}
	}
	for _, item := range items {
		item.node.MoveTo(group, before)
	}
	return len(items)
}

type sortItem struct {
	node dom.Node
	key  string
}

func isSortable(n dom.Node, items []sortItem) bool {
	for _, item := range items {
		if item.node.Is(n) {
			return true
		}
	}
	return false
}

func sortKey(item dom.Node) string {
	raw := item.Text()
	if span := item.Find("span"); span.Valid() {
		raw = span.Text()
	}
	return domain.SortKey(raw)
}
