package observe

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	"nxenhance/pkg/bulk"
	"nxenhance/pkg/classify"
	"nxenhance/pkg/dom"
	"nxenhance/pkg/nextdns"
	"nxenhance/pkg/settings"
)

var allowlistPath = regexp.MustCompile(`allowlist`)

// listFromLocation picks the list a list page shows.
func listFromLocation(location string) nextdns.Resource {
	if allowlistPath.MatchString(location) {
		return nextdns.Allowlist
	}
	return nextdns.Denylist
}

// FindListGroup returns the list holding the entries of an allow or deny list page: the
// last list without the add-domain input, or else the second list.
func FindListGroup(doc *dom.Document) dom.Node {
	groups := doc.FindAll(".list-group")
	var found dom.Node
	for _, g := range groups {
		if !g.Has(`input[placeholder*="Add a domain"]`) && !g.Has(`input[placeholder*="Domain hinzufügen"]`) {
			found = g
		}
	}
	if !found.Valid() && len(groups) > 1 {
		found = groups[1]
	}
	return found
}

type listsPage struct {
	e     *Engine
	list  nextdns.Resource
	scope settings.Scope

	group   dom.Node
	large   bool
	dirty   bool
	unwatch func()
}

func newListsPage(e *Engine, location string) *listsPage {
	list := listFromLocation(location)
	return &listsPage{e: e, list: list, scope: settings.Scope(list)}
}

func (p *listsPage) step(context.Context) {
	if !p.group.Connected() {
		if !p.attach() {
			return
		}
	}
	if p.dirty && !p.large {
		p.dirty = false
		p.enhance()
		if p.e.store != nil && p.e.store.Snapshot().SortListsAZ {
			classify.SortItems(p.group)
		}
	}
}

func (p *listsPage) close() {
	if p.unwatch != nil {
		p.unwatch()
		p.unwatch = nil
	}
}

func (p *listsPage) attach() bool {
	doc := p.e.doc
	group := FindListGroup(doc)
	if !group.Valid() {
		return false
	}
	p.close()
	p.group = group

	items := group.FindAll(".list-group-item")
	p.large = len(items) > classify.LargeListThreshold
	p.e.log.Info("list found", "list", p.list, "size", len(items), "large_list_mode", p.large)

	if !doc.ByID("nxe-toolbar").Valid() {
		p.addToolbar(len(items))
	}
	if !p.large {
		p.unwatch = doc.Observe(group, func([]dom.Node) { p.dirty = true })
		p.dirty = true
	}
	return true
}

func (p *listsPage) addToolbar(size int) {
	var b strings.Builder
	b.WriteString(`<div class="nxe-toolbar" id="nxe-toolbar">`)
	if p.large {
		fmt.Fprintf(&b, `<div class="nxe-warning">Large list detected (%d items). DOM enhancements disabled. Use 'Clear Entire List' below.</div>`, size)
	}
	b.WriteString(`<button class="btn btn-sm btn-secondary" data-nxe-action="bulk-add">Bulk Add</button>`)
	if !p.large {
		checked := ""
		if p.e.store != nil && p.e.store.Snapshot().SortListsAZ {
			checked = " checked"
		}
		fmt.Fprintf(&b, `<div class="form-check form-switch d-inline-block ms-3" style="margin-left: 10px; margin-right: 10px;">`+
			`<input class="form-check-input nxe-sort-toggle" type="checkbox" id="sortListAZ" data-nxe-action="sort-lists"%s>`+
			`<label class="form-check-label" for="sortListAZ" style="margin-left: 5px;">Sort A-Z</label></div>`, checked)
		b.WriteString(`<div style="margin-left: 10px;">Select All <input type="checkbox" class="nxe-select-checkbox" id="nxe-select-all-checkbox" title="Select All" data-nxe-action="select-all"></div>`)
		b.WriteString(`<button class="btn btn-sm btn-danger" style="margin-left: 10px;" data-nxe-action="delete-selected">Delete Selected</button>`)
	}
	b.WriteString(`<button class="btn btn-sm btn-danger" style="margin-left: auto;" data-nxe-action="clear-list">Clear Entire List</button>`)
	b.WriteString(`</div>`)

	var err error
	if parent := p.group.Parent(); parent.Valid() {
		_, err = parent.InsertBefore(b.String(), p.group)
	} else {
		_, err = p.group.Append(b.String())
	}
	if err != nil {
		p.e.log.Warn("failed to add list toolbar", "error", err)
	}
}

func (p *listsPage) enhance() {
	n := 0
	for _, item := range p.group.FindAll(".list-group-item") {
		ok, err := classify.EnhanceListItem(item, p.scope, p.e.store)
		if err != nil {
			p.e.log.Warn("failed to enhance list item", "error", err)
			continue
		}
		if ok {
			n++
		}
	}
	p.e.log.Debug("enhanced list items", "list", p.list, "count", n)
}

func (p *listsPage) handle(ctx context.Context, node dom.Node, ev dom.Event) {
	e := p.e
	switch ev.Action {
	case actionSelectAll:
		node.SetProp("checked", boolString(ev.Checked))
		for _, box := range p.group.FindAll(".nxe-select-checkbox") {
			box.SetProp("checked", boolString(ev.Checked))
		}
	case actionSortLists:
		if e.store != nil {
			if err := e.store.SetSortLists(ctx, ev.Checked); err != nil {
				e.log.Error("failed to save sort setting", "error", err)
			}
		}
		if ev.Checked {
			classify.SortItems(p.group)
			return
		}
		if err := e.host.Reload(ctx); err != nil {
			e.log.Warn("reload failed", "error", err)
		}
	case actionBulkAdd:
		p.openBulkAdd()
	case actionBulkSubmit:
		domains := bulk.SplitLines(ev.Value)
		if len(domains) == 0 {
			return
		}
		existing := classify.VisibleDomains(e.doc.Root())
		orch, list := e.bulk, p.list
		e.startJob(ctx, "bulk-add", func(ctx context.Context) error {
			job, err := orch.BulkAdd(ctx, list, domains, existing)
			if err != nil {
				return err
			}
			return job.Err()
		})
	case actionDeleteSelected:
		selected := classify.SelectedDomains(p.group)
		orch, list := e.bulk, p.list
		e.startJob(ctx, "bulk-delete", func(ctx context.Context) error {
			job, err := orch.BulkDelete(ctx, list, selected)
			if err != nil {
				return err
			}
			return job.Err()
		})
	case actionClearList:
		orch, list := e.bulk, p.list
		e.startJob(ctx, "clear-list", func(ctx context.Context) error {
			_, err := orch.ClearList(ctx, list)
			return err
		})
	}
}

// openBulkAdd swaps the add-domain input for a textarea with a submit button.
func (p *listsPage) openBulkAdd() {
	doc := p.e.doc
	if doc.ByID("nxe-bulk-textarea").Valid() {
		return
	}
	input := doc.Find("form input")
	if !input.Valid() {
		return
	}
	parent := input.Parent()
	area, err := parent.InsertBefore(fmt.Sprintf(
		`<textarea class="%s" placeholder="Enter domains, one per line..." id="nxe-bulk-textarea" style="height: 100px; width: 100%%;"></textarea>`,
		html.EscapeString(input.AttrOr("class", ""))), input)
	if err != nil {
		p.e.log.Warn("failed to open bulk add", "error", err)
		return
	}
	input.Remove()
	if _, err := parent.Append(fmt.Sprintf(
		`<button class="btn btn-primary mt-2" data-nxe-action="bulk-submit" %s="%s">Submit Bulk</button>`,
		InputAttr, html.EscapeString(area.Ref()))); err != nil {
		p.e.log.Warn("failed to add bulk submit button", "error", err)
	}
}
