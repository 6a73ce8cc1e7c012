// Package classify recognises log rows and list entries in the page mirror, extracts their
// domain and status, and decorates them exactly once.
package classify

import (
	"fmt"
	"html"
	"log/slog"

	"github.com/google/uuid"

	"nxenhance/pkg/dom"
	"nxenhance/pkg/settings"
)

const (
	// MarkerClass is added to every classified row.
	MarkerClass = "nxe-log-row"
	// MarkerAttr holds the row's classification token.
	MarkerAttr = "data-nxe-marker"
	// DomainAttr records the extracted domain on decorated elements.
	DomainAttr = "data-nxe-domain"
	// ActionAttr names the handler a decorated control dispatches to.
	ActionAttr = "data-nxe-action"
	// RowAttr links a detached control (such as a portal menu item) to its row.
	RowAttr = "data-nxe-row"
)

// Actions carried in ActionAttr.
const (
	ActionAllow    = "allow"
	ActionDeny     = "deny"
	ActionHide     = "hide"
	ActionSelect   = "select"
	ActionDescribe = "describe"
)

// Outcome is the result of one Classify call.
type Outcome int

const (
	// Rejected rows stay unclassified and may be retried when their content changes.
	Rejected Outcome = iota
	// AlreadyMarked rows were classified earlier; nothing was changed.
	AlreadyMarked
	// Classified rows were marked and decorated by this call.
	Classified
)

func (o Outcome) String() string {
	switch o {
	case AlreadyMarked:
		return "already_marked"
	case Classified:
		return "classified"
	}
	return "rejected"
}

// Row is the derived record of a classified element.
type Row struct {
	Node   dom.Node
	Domain string
	Status Status
	Marker string
	Hidden bool
}

// Classifier decides which elements are log rows and decorates them.
type Classifier struct {
	Extractors []Extractor
	Rules      []StatusRule
	Settings   *settings.Store
	NewMarker  func() string
	Logger     *slog.Logger
}

// New returns a Classifier with the default extractor chain and status rules.
func New(store *settings.Store, log *slog.Logger) *Classifier {
	if log == nil {
		log = slog.Default()
	}
	return &Classifier{
		Extractors: DefaultExtractors(),
		Rules:      DefaultStatusRules(),
		Settings:   store,
		NewMarker:  uuid.NewString,
		Logger:     log,
	}
}

// Classify marks and decorates row if it is a genuine log entry. Marked rows are left
// untouched and reported as AlreadyMarked.
func (c *Classifier) Classify(row dom.Node) (Row, Outcome) {
	if !row.Connected() {
		return Row{}, Rejected
	}
	if row.HasClass(MarkerClass) {
		return c.Describe(row), AlreadyMarked
	}
	if !IsCandidate(row) || row.Parent().Closest("."+MarkerClass).Valid() {
		return Row{}, Rejected
	}
	name := ExtractDomain(row, c.Extractors)
	if name == "" {
		return Row{}, Rejected
	}

	marker := c.NewMarker()
	row.AddClass(MarkerClass)
	row.SetAttr(MarkerAttr, marker)
	row.SetAttr(DomainAttr, name)
	row.SetStyle("position", "relative")

	if menu := row.Find(".dropdown-menu"); menu.Valid() {
		AttachHideOption(menu, row)
	}
	if err := injectButtons(row); err != nil {
		c.Logger.Warn("failed to add row buttons", "domain", name, "error", err)
	}

	hidden := false
	if c.Settings != nil && c.Settings.IsHidden(name) {
		row.SetStyle("display", "none")
		hidden = true
	}
	if c.Settings != nil {
		if note := c.Settings.Description(settings.ScopeLogs, name); note != "" {
			if err := applyTooltip(row, name, note); err != nil {
				c.Logger.Warn("failed to add description tooltip", "domain", name, "error", err)
			}
		}
	}

	c.Logger.Debug("classified log row", "domain", name, "marker", marker)
	return Row{
		Node:   row,
		Domain: name,
		Status: DetectStatus(row, c.Rules),
		Marker: marker,
		Hidden: hidden,
	}, Classified
}

// Describe builds the record of an already marked row from its current state.
func (c *Classifier) Describe(row dom.Node) Row {
	return Row{
		Node:   row,
		Domain: row.AttrOr(DomainAttr, ""),
		Status: DetectStatus(row, c.Rules),
		Marker: row.AttrOr(MarkerAttr, ""),
		Hidden: row.DisplayNone(),
	}
}

// Status recomputes the status of row.
func (c *Classifier) Status(row dom.Node) Status {
	return DetectStatus(row, c.Rules)
}

const buttonGroupMarkup = `<div class="nxe-btn-group btn-group btn-group-sm" ` +
	`style="position: absolute; right: 180px; top: 50%; transform: translateY(-50%); opacity: 0; visibility: hidden; z-index: 9999; display: flex;">` +
	`<button class="btn btn-success" data-nxe-action="allow">Allow</button>` +
	`<button class="btn btn-danger" data-nxe-action="deny">Deny</button>` +
	`<button class="btn btn-dark" data-nxe-action="hide" title="Hide this domain persistently">Hide</button>` +
	`</div>`

func injectButtons(row dom.Node) error {
	if row.Has(".nxe-btn-group") {
		return nil
	}
	_, err := row.Prepend(buttonGroupMarkup)
	return err
}

const tooltipStyle = "position: absolute; z-index: 1000; top: 25px; background: #000; color: #fff; " +
	"padding: 5px; border-radius: 5px; opacity: 0; visibility: hidden; transition: opacity .2s; " +
	"pointer-events: none; white-space: nowrap;"

func applyTooltip(row dom.Node, name, note string) error {
	label := row.Find(".domainName")
	if !label.Valid() {
		label = row.Find(`a[href^="/"]`)
	}
	if !label.Valid() {
		return nil
	}
	label.Empty()
	_, err := label.Append(fmt.Sprintf(
		`<div class="tooltipParent" style="display: contents;">%s<div class="customTooltip text-muted small" style="%s">%s</div></div>`,
		html.EscapeString(name), tooltipStyle, html.EscapeString(note)))
	return err
}

// AttachHideOption appends a "Hide entry" item to menu bound to row. It reports whether
// the menu carries the option afterwards.
func AttachHideOption(menu, row dom.Node) bool {
	if !menu.Valid() || !row.Valid() {
		return false
	}
	if menu.Has(".nxe-hide-option") {
		return true
	}
	_, err := menu.Append(fmt.Sprintf(
		`<div class="dropdown-divider"></div><button type="button" class="dropdown-item nxe-hide-option" data-nxe-action="hide" data-nxe-row="%s">Hide entry</button>`,
		html.EscapeString(row.Ref())))
	return err == nil
}

// RowFor returns the log row a decorated control belongs to: the closest marked ancestor,
// or the row named by RowAttr.
func RowFor(doc *dom.Document, control dom.Node) dom.Node {
	if row := control.Closest("." + MarkerClass); row.Valid() {
		return row
	}
	if ref, ok := control.Attr(RowAttr); ok {
		if row := doc.ByRef(ref); row.Valid() && row.HasClass(MarkerClass) {
			return row
		}
	}
	return dom.Node{}
}
