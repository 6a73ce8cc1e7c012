package observe

import (
	"context"
	"net/http"
	"strings"
	"time"

	"nxenhance/pkg/classify"
	"nxenhance/pkg/dom"
	"nxenhance/pkg/nextdns"
	"nxenhance/pkg/settings"
)

// Actions of controls added by the page handlers.
const (
	actionResetHidden     = "reset-hidden"
	actionSelectAll       = "select-all"
	actionBulkAdd         = "bulk-add"
	actionBulkSubmit      = "bulk-submit"
	actionDeleteSelected  = "delete-selected"
	actionClearList       = "clear-list"
	actionSortLists       = "sort-lists"
	actionBlocklistToggle = "blocklist-toggle"
	actionSortBlocklists  = "sort-blocklists"
	actionSecurityToggle  = "security-toggle"
	actionRemoveAllTLDs   = "remove-all-tlds"
	actionExport          = "export"
	actionImport          = "import"
)

// InputAttr names the element whose current value the page sends along with a click.
const InputAttr = "data-nxe-input"

func (e *Engine) dispatch(ctx context.Context, ev dom.Event) {
	node := e.doc.ByRef(ev.Ref)
	if !node.Valid() {
		e.log.Debug("event for detached element", "ref", ev.Ref, "action", ev.Action)
		return
	}
	e.log.Debug("dispatching event", "action", ev.Action, "ref", ev.Ref)

	switch ev.Action {
	case classify.ActionAllow:
		e.allowDeny(ctx, node, nextdns.Allowlist)
	case classify.ActionDeny:
		e.allowDeny(ctx, node, nextdns.Denylist)
	case classify.ActionHide:
		e.hideRow(ctx, node)
	case actionResetHidden:
		e.resetHidden(ctx)
	case classify.ActionSelect:
		node.SetProp("checked", boolString(ev.Checked))
	case classify.ActionDescribe:
		e.describe(ctx, node, ev.Value)
	case actionSelectAll, actionBulkAdd, actionBulkSubmit, actionDeleteSelected, actionClearList, actionSortLists:
		if lists, ok := e.handler.(*listsPage); ok {
			lists.handle(ctx, node, ev)
		}
	case actionBlocklistToggle, actionSortBlocklists:
		if privacy, ok := e.handler.(*privacyPage); ok {
			privacy.handle(ctx, node, ev)
		}
	case actionSecurityToggle:
		setTooltip(node, ev.Checked)
	case actionRemoveAllTLDs:
		blocker := nextdns.NewSuffixBlocker(e.client, e.log)
		orch := e.bulk
		e.startJob(ctx, "remove-all-tlds", func(ctx context.Context) error {
			return orch.RemoveAllSuffixes(ctx, blocker)
		})
	case actionExport:
		e.export(ctx, ev.Value)
	case actionImport:
		e.importConfig(ctx, ev.Value)
	default:
		e.log.Debug("unknown action", "action", ev.Action)
	}
}

// allowDeny adds the row's domain to list. A successful request hides the row; a failed
// one shows "Err" on the button and restores it after the restore delay.
func (e *Engine) allowDeny(ctx context.Context, btn dom.Node, list nextdns.Resource) {
	row := classify.RowFor(e.doc, btn)
	name := row.AttrOr(classify.DomainAttr, "")
	if name == "" {
		return
	}
	body := map[string]any{"id": name}
	if e.store != nil {
		if note := strings.TrimSpace(e.store.Description(settings.ScopeLogs, name)); note != "" {
			body["description"] = note
		}
	}

	original := btn.Text()
	btn.SetText("...")
	btn.SetProp("disabled", "true")

	gen, client := e.gen, e.client
	e.background(func() {
		_, err := client.Request(ctx, http.MethodPost, string(list), body)
		e.post(gen, func() {
			if err != nil {
				e.log.Error("failed to add domain", "list", list, "domain", name, "error", err)
				if !btn.Connected() {
					return
				}
				btn.SetText("Err")
				btn.SetAttr("title", "Error: "+nextdns.ErrorText(err))
				e.restoreLater(gen, btn, original)
				return
			}
			e.log.Info("domain added", "list", list, "domain", name)
			if row.Connected() {
				row.SetStyle("display", "none")
			}
		})
	})
}

func (e *Engine) restoreLater(gen uint64, btn dom.Node, text string) {
	e.jobs.Add(1)
	go func() {
		defer e.jobs.Done()
		<-time.After(e.restoreDelay)
		e.post(gen, func() {
			if !btn.Connected() {
				return
			}
			btn.SetText(text)
			btn.SetProp("disabled", "false")
		})
	}()
}

func (e *Engine) hideRow(ctx context.Context, control dom.Node) {
	row := classify.RowFor(e.doc, control)
	name := row.AttrOr(classify.DomainAttr, "")
	if name == "" {
		return
	}
	if e.store != nil {
		if err := e.store.HideDomain(ctx, name); err != nil {
			e.log.Error("failed to save hidden domain", "domain", name, "error", err)
		}
	}
	row.SetStyle("display", "none")
	e.log.Debug("row hidden", "domain", name)
	if logs, ok := e.handler.(*logsPage); ok {
		logs.updateCounters()
	}
}

func (e *Engine) resetHidden(ctx context.Context) {
	if e.store != nil {
		if err := e.store.ResetHidden(ctx); err != nil {
			e.log.Error("failed to reset hidden domains", "error", err)
		}
	}
	for _, row := range e.doc.FindAll("." + classify.MarkerClass) {
		row.SetStyle("display", "")
	}
	if logs, ok := e.handler.(*logsPage); ok {
		logs.updateCounters()
	}
}

func (e *Engine) describe(ctx context.Context, input dom.Node, value string) {
	name := input.AttrOr(classify.DomainAttr, "")
	scope := settings.Scope(input.AttrOr("data-nxe-list", ""))
	if name == "" || e.store == nil {
		return
	}
	input.SetProp("value", value)
	if err := e.store.SetDescription(ctx, scope, name, value); err != nil {
		e.log.Error("failed to save description", "domain", name, "scope", scope, "error", err)
	}
}

func (e *Engine) export(ctx context.Context, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "config"
	}
	orch, profile := e.bulk, e.profile
	e.startJob(ctx, "export", func(ctx context.Context) error {
		file, err := orch.Export(ctx, name, profile)
		if err != nil {
			e.alert(ctx, "Export failed: "+nextdns.ErrorText(err))
			return err
		}
		return e.host.Download(ctx, file.Name, file.Data)
	})
}

func (e *Engine) importConfig(ctx context.Context, document string) {
	if strings.TrimSpace(document) == "" {
		return
	}
	orch := e.bulk
	e.startJob(ctx, "import", func(ctx context.Context) error {
		report, err := orch.Import(ctx, []byte(document))
		if err != nil {
			e.alert(ctx, "Import failed: "+err.Error())
			return err
		}
		if report.Failed() {
			e.log.Warn("import finished with failures", "lists", report.Lists)
		}
		return nil
	})
}

func (e *Engine) alert(ctx context.Context, message string) {
	if err := e.host.Alert(ctx, message); err != nil {
		e.log.Warn("failed to show alert", "message", message, "error", err)
	}
}
