package observe

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	"nxenhance/pkg/classify"
	"nxenhance/pkg/dom"
)

var digits = regexp.MustCompile(`\d+`)

// privacyPage shows the cached entry count next to every blocklist and offers A-Z
// sorting in the add-blocklist dialog.
type privacyPage struct {
	e    *Engine
	done bool
}

func (p *privacyPage) close() {}

func (p *privacyPage) step(context.Context) {
	doc := p.e.doc
	if !p.done && doc.Find(".card-body").Valid() {
		p.done = true
		p.addCounters()
	}
	if doc.Find(".modal-body .list-group-item").Valid() {
		p.addSortSwitch()
	}
}

func (p *privacyPage) addCounters() {
	n := 0
	for _, item := range p.e.doc.FindAll(".list-group-item") {
		toggle := item.Find(`input[type="checkbox"]`)
		if !toggle.Valid() || item.Has(".nxe-blocklist-counter") {
			continue
		}
		id := digits.FindString(toggle.ID())
		if id == "" {
			continue
		}
		value := "0"
		if p.e.store != nil {
			value = p.e.store.Counter(id)
		}
		target := item.Find(".form-check")
		if !target.Valid() {
			target = item
		}
		if _, err := target.Append(fmt.Sprintf(
			`<span class="text-muted small nxe-blocklist-counter" style="position: absolute; right: 70px;" data-nxe-blocklist="%s">%s</span>`,
			id, html.EscapeString(value))); err != nil {
			p.e.log.Warn("failed to add blocklist counter", "blocklist", id, "error", err)
			continue
		}
		toggle.SetAttr(classify.ActionAttr, actionBlocklistToggle)
		toggle.SetAttr("data-nxe-blocklist", id)
		n++
	}
	p.e.log.Debug("added blocklist counters", "count", n)
}

func (p *privacyPage) addSortSwitch() {
	doc := p.e.doc
	header := doc.Find(".modal-header")
	if !header.Valid() || header.Has("#sortAZSwitch") {
		return
	}
	on := p.e.store != nil && p.e.store.Snapshot().SortBlocklistsAZ
	checked := ""
	if on {
		checked = " checked"
	}
	_, err := header.Append(fmt.Sprintf(
		`<div class="form-check form-switch" style="position: absolute; right: 50px; bottom: 15px;">`+
			`<input class="form-check-input" type="checkbox" id="sortAZSwitch" data-nxe-action="sort-blocklists"%s>`+
			`<label class="form-check-label" for="sortAZSwitch">Sort A-Z</label></div>`, checked))
	if err != nil {
		p.e.log.Warn("failed to add blocklist sort switch", "error", err)
		return
	}
	if on {
		classify.SortItems(doc.Find(".modal-body .list-group"))
	}
}

func (p *privacyPage) handle(ctx context.Context, node dom.Node, ev dom.Event) {
	e := p.e
	switch ev.Action {
	case actionBlocklistToggle:
		id := node.AttrOr("data-nxe-blocklist", "")
		if id == "" {
			return
		}
		node.SetProp("checked", boolString(ev.Checked))
		if e.store != nil {
			if err := e.store.SetCounter(ctx, id, "..."); err != nil {
				e.log.Error("failed to save blocklist counter", "blocklist", id, "error", err)
			}
		}
		if span := e.doc.Find(`.nxe-blocklist-counter[data-nxe-blocklist="` + id + `"]`); span.Valid() {
			span.SetText("...")
		}
	case actionSortBlocklists:
		if e.store != nil {
			if err := e.store.SetSortBlocklists(ctx, ev.Checked); err != nil {
				e.log.Error("failed to save sort setting", "error", err)
			}
		}
		if ev.Checked {
			classify.SortItems(e.doc.Find(".modal-body .list-group"))
		}
	}
}

const switchTooltipStyle = "position: absolute; z-index: 1; top: 25px; background: #000; color: #fff; " +
	"padding: 5px; border-radius: 5px; opacity: 0; visibility: hidden; transition: opacity .2s;"

// securityPage labels every switch with its state and adds a "Remove all TLDs" button to
// the blocked TLD dialog.
type securityPage struct {
	e    *Engine
	done bool
}

func (p *securityPage) close() {}

func (p *securityPage) step(context.Context) {
	doc := p.e.doc
	if !p.done && doc.Find(".card-body").Valid() {
		p.done = true
		p.addTooltips()
	}
	p.addRemoveAllButton()
}

func (p *securityPage) addTooltips() {
	for _, item := range p.e.doc.FindAll(".form-check") {
		toggle := item.Find(`input[type="checkbox"]`)
		if !toggle.Valid() || strings.Contains(toggle.ID(), "web3") {
			continue
		}
		label := item.Find("label")
		if !label.Valid() || label.Has(".tooltipParent") {
			continue
		}
		_, err := label.Append(fmt.Sprintf(
			`<div class="tooltipParent" style="display: contents;"><div class="customTooltip text-muted small" style="%s">%s</div></div>`,
			switchTooltipStyle, switchState(toggle.Checked())))
		if err != nil {
			p.e.log.Warn("failed to add switch tooltip", "error", err)
			continue
		}
		toggle.SetAttr(classify.ActionAttr, actionSecurityToggle)
	}
}

func switchState(on bool) string {
	if on {
		return "Enabled"
	}
	return "Disabled"
}

// setTooltip updates the state tooltip of a security switch.
func setTooltip(toggle dom.Node, on bool) {
	toggle.SetProp("checked", boolString(on))
	item := toggle.Closest(".form-check")
	if tip := item.Find(".customTooltip"); tip.Valid() {
		tip.SetText(switchState(on))
	}
}

func (p *securityPage) addRemoveAllButton() {
	doc := p.e.doc
	header := doc.Find(".modal-header")
	if !header.Valid() || doc.ByID("removeAllTLDsBtn").Valid() {
		return
	}
	title := header.Text()
	if !strings.Contains(title, "TLD") && !strings.Contains(title, "Top-Level") {
		return
	}
	target := doc.Find(".modal-footer")
	if !target.Valid() {
		if content := doc.Find(".modal-content"); content.Valid() {
			footer, err := content.Append(`<div class="modal-footer d-flex justify-content-end" style="gap: 10px;"></div>`)
			if err == nil {
				target = footer
			}
		}
	}
	if !target.Valid() {
		target = header
	}
	if target.Style("gap") == "" {
		target.SetStyle("gap", "10px")
	}
	_, err := target.Append(`<button id="removeAllTLDsBtn" class="btn btn-sm btn-secondary" style="display: inline-block; z-index: 9999;" data-nxe-action="remove-all-tlds">Remove all TLDs</button>`)
	if err != nil {
		p.e.log.Warn("failed to add remove all TLDs button", "error", err)
		return
	}
	p.e.log.Info("TLD dialog detected")
}

// settingsPage adds export and import controls to the profile settings card.
type settingsPage struct {
	e *Engine
}

func (p *settingsPage) close() {}

func (p *settingsPage) step(context.Context) {
	doc := p.e.doc
	card := doc.Find(".card-body")
	if !card.Valid() || doc.ByID("nxe-settings-injected").Valid() {
		return
	}
	nameRef := ""
	if input := card.Find("input"); input.Valid() {
		nameRef = input.Ref()
	}
	_, err := card.Append(fmt.Sprintf(
		`<div id="nxe-settings-injected" style="display: flex; grid-gap: 20px; margin-top: 20px;">`+
			`<button class="btn btn-primary" data-nxe-action="export" %s="%s">Export this config</button>`+
			`<label class="btn btn-primary" style="margin: 0;">Import a config`+
			`<input type="file" accept=".json,application/json" style="display: none;" data-nxe-action="import"></label></div>`,
		InputAttr, html.EscapeString(nameRef)))
	if err != nil {
		p.e.log.Warn("failed to add settings controls", "error", err)
	}
}
