package observe

import (
	"html"
	"strings"
)

const waitModalMarkup = `<div class="modal" id="nxe-wait" style="display: block; background: rgba(0,0,0,0.5); z-index: 10000;">` +
	`<div class="modal-dialog modal-dialog-centered"><div class="modal-content"><div class="modal-body" style="text-align: center;">` +
	`<span class="spinner-border spinner-border-sm" style="margin-right: 10px;"></span><span class="nxe-wait-text">%s...</span>` +
	`</div></div></div></div>`

// pageProgress shows bulk job progress in a "please wait" dialog. Calls come from the job
// goroutine and are applied on the engine loop.
type pageProgress struct {
	e   *Engine
	gen uint64
}

func (p *pageProgress) Start(message string) {
	p.e.post(p.gen, func() {
		doc := p.e.doc
		if modal := doc.ByID("nxe-wait"); modal.Valid() {
			modal.Remove()
		}
		body := doc.Body()
		if !body.Valid() {
			return
		}
		if _, err := body.Append(sprintfEscaped(waitModalMarkup, message)); err != nil {
			p.e.log.Warn("failed to show progress", "error", err)
		}
	})
}

func (p *pageProgress) Update(message string) {
	p.e.post(p.gen, func() {
		if text := p.e.doc.Find("#nxe-wait .nxe-wait-text"); text.Valid() {
			text.SetText(message)
		}
	})
}

func (p *pageProgress) Done() {
	p.e.post(p.gen, func() {
		if modal := p.e.doc.ByID("nxe-wait"); modal.Valid() {
			modal.Remove()
		}
	})
}

func sprintfEscaped(format, message string) string {
	return strings.Replace(format, "%s", html.EscapeString(message), 1)
}
