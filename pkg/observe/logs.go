package observe

import (
	"context"
	"fmt"
	"time"

	"nxenhance/pkg/classify"
	"nxenhance/pkg/dom"
)

// Counters are the derived totals of the logs page.
type Counters struct {
	Blocked int
	Allowed int
	Hidden  int
}

const statusBarMarkup = `<div id="nxe-log-status" class="d-flex align-items-center" style="gap: 10px; margin-bottom: 10px;">` +
	`<button id="resetHiddenBtn" class="btn btn-sm btn-outline-secondary" data-nxe-action="reset-hidden" disabled>Reset Hidden Domains (0)</button>` +
	`<span id="nxe-log-counters" class="text-muted small">Blocked: 0 | Allowed: 0 | Hidden: 0</span></div>`

// FindContainer locates the list holding the log rows: the logs section under #root, any
// section whose class mentions Logs, a document-wide match, and finally the list around
// the first favicon.
func FindContainer(doc *dom.Document) dom.Node {
	if root := doc.ByID("root"); root.Valid() {
		if c := root.Find(".Logs .list-group"); c.Valid() {
			return c
		}
		for _, section := range root.FindAll(`[class*="Logs"]`) {
			if c := section.Find(".list-group"); c.Valid() {
				return c
			}
		}
	}
	if c := doc.Find(".Logs .list-group"); c.Valid() {
		return c
	}
	img := doc.Find(`img[src*="favicons"]`)
	if !img.Valid() {
		return dom.Node{}
	}
	row := img.Closest(".list-group-item")
	if !row.Valid() {
		row = img.Closest(".row")
	}
	if !row.Valid() {
		row = img.Parent().Parent().Parent()
	}
	if !row.Valid() {
		return dom.Node{}
	}
	if list := row.Closest(".list-group"); list.Valid() {
		return list
	}
	return row.Parent()
}

type logsPage struct {
	e         *Engine
	container dom.Node
	unwatch   []func()
	queue     []dom.Node

	lastScan     time.Time
	lastMenuScan time.Time
	counters     Counters
	written      bool
}

func newLogsPage(e *Engine) *logsPage {
	return &logsPage{e: e}
}

func (p *logsPage) step(context.Context) {
	if !p.container.Connected() {
		if !p.attach() {
			return
		}
	}

	now := p.e.now()
	if now.Sub(p.lastScan) >= p.e.scanInterval {
		p.queue = append(p.queue, p.container)
		p.lastScan = now
	}
	p.drain()
	if now.Sub(p.lastMenuScan) >= p.e.menuInterval {
		p.scanMenus()
		p.lastMenuScan = now
	}
	p.updateCounters()
}

func (p *logsPage) close() {
	for _, stop := range p.unwatch {
		stop()
	}
	p.unwatch = nil
	p.queue = nil
}

// attach discovers the container and installs the row and menu watchers.
func (p *logsPage) attach() bool {
	doc := p.e.doc
	c := FindContainer(doc)
	if !c.Valid() {
		return false
	}
	p.close()
	p.container = c
	p.written = false
	p.lastScan = p.e.now()

	p.unwatch = append(p.unwatch, doc.Observe(c, func(added []dom.Node) {
		p.queue = append(p.queue, added...)
	}))
	if body := doc.Body(); body.Valid() {
		p.unwatch = append(p.unwatch, doc.Observe(body, p.menusAdded))
	}
	p.queue = append(p.queue, c)

	if !doc.ByID("resetHiddenBtn").Valid() {
		if parent := c.Parent(); parent.Valid() {
			if _, err := parent.InsertBefore(statusBarMarkup, c); err != nil {
				p.e.log.Warn("failed to add status bar", "error", err)
			}
		}
	}
	p.e.log.Info("logs container found", "ref", c.Ref())
	return true
}

// drain classifies the queued nodes and the rows below them.
func (p *logsPage) drain() {
	queue := p.queue
	p.queue = nil
	classified := 0
	for _, node := range queue {
		if !p.container.Contains(node) {
			continue
		}
		for _, row := range classify.RowsUnder(node) {
			if !p.container.Contains(row) {
				continue
			}
			if _, outcome := p.e.classifier.Classify(row); outcome == classify.Classified {
				classified++
			}
		}
	}
	if classified > 0 {
		p.e.log.Debug("classified rows", "count", classified)
	}
}

// menusAdded attaches the hide option to dropdown menus inserted anywhere in the page,
// including menus rendered outside their row and linked by aria-labelledby.
func (p *logsPage) menusAdded(added []dom.Node) {
	for _, node := range added {
		var menus []dom.Node
		if node.Matches(".dropdown-menu") {
			menus = append(menus, node)
		}
		menus = append(menus, node.FindAll(".dropdown-menu")...)
		for _, menu := range menus {
			if row := menu.Closest("." + classify.MarkerClass); row.Valid() {
				classify.AttachHideOption(menu, row)
				continue
			}
			id := menu.AttrOr("aria-labelledby", "")
			if id == "" {
				continue
			}
			if row := p.e.doc.ByID(id).Closest("." + classify.MarkerClass); row.Valid() {
				classify.AttachHideOption(menu, row)
			}
		}
	}
}

// scanMenus is the polling fallback for menus inside the container.
func (p *logsPage) scanMenus() {
	for _, menu := range p.container.FindAll(".dropdown-menu") {
		row := menu.Closest("." + classify.MarkerClass)
		if !row.Valid() {
			row = menu.Closest(".list-group-item")
		}
		if !row.Valid() {
			row = menu.Closest(".row")
		}
		if !row.Valid() {
			continue
		}
		if !row.HasClass(classify.MarkerClass) {
			p.e.classifier.Classify(row)
		}
		if row.HasClass(classify.MarkerClass) {
			classify.AttachHideOption(menu, row)
		}
	}
}

// updateCounters recounts the marked rows. Rows hidden by any means count as hidden.
func (p *logsPage) updateCounters() {
	if !p.container.Connected() {
		return
	}
	var c Counters
	for _, row := range p.container.FindAll("." + classify.MarkerClass) {
		if row.DisplayNone() {
			c.Hidden++
			continue
		}
		switch p.e.classifier.Status(row) {
		case classify.Blocked:
			c.Blocked++
		case classify.Allowed:
			c.Allowed++
		}
	}
	if p.written && c == p.counters {
		return
	}
	p.counters = c
	p.written = true

	doc := p.e.doc
	if btn := doc.ByID("resetHiddenBtn"); btn.Valid() {
		btn.SetText(fmt.Sprintf("Reset Hidden Domains (%d)", c.Hidden))
		btn.SetProp("disabled", boolString(c.Hidden == 0))
	}
	if span := doc.ByID("nxe-log-counters"); span.Valid() {
		span.SetText(fmt.Sprintf("Blocked: %d | Allowed: %d | Hidden: %d", c.Blocked, c.Allowed, c.Hidden))
	}
}
