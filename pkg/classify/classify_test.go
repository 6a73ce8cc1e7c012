package classify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nxenhance/pkg/dom"
	"nxenhance/pkg/settings"
	"nxenhance/pkg/storage"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parse(t *testing.T, body string) *dom.Document {
	t.Helper()
	doc, err := dom.Parse("<html><body>" + body + "</body></html>")
	require.NoError(t, err)
	return doc
}

func newStore(t *testing.T) *settings.Store {
	t.Helper()
	store, err := settings.Open(context.Background(), storage.NewMemory(), "", discard())
	require.NoError(t, err)
	return store
}

func newClassifier(t *testing.T, store *settings.Store) *Classifier {
	t.Helper()
	c := New(store, discard())
	n := 0
	c.NewMarker = func() string {
		n++
		return fmt.Sprintf("marker-%d", n)
	}
	return c
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		name string
		row  string
		want string
	}{
		{"priority", `<div id="r"><span class="text-truncate">late.example.org</span><span class="domainName">Ads.Example.com</span></div>`, "ads.example.com"},
		{"empty selector falls through", `<div id="r"><span class="domainName">  </span><a href="/logs/x">cdn.example.net</a></div>`, "cdn.example.net"},
		{"data-domain", `<div id="r" data-domain="api.example.io"><span>nothing here</span></div>`, "api.example.io"},
		{"free text", `<div id="r"><div>12:00</div><div>metrics.example.com</div></div>`, "metrics.example.com"},
		{"search row", `<div id="r"><input type="search"><span class="domainName">ads.example.com</span></div>`, ""},
		{"nothing", `<div id="r"><span>Loading</span></div>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parse(t, tt.row)
			assert.Equal(t, tt.want, ExtractDomain(doc.ByID("r"), DefaultExtractors()))
		})
	}
}

func TestDetectStatus(t *testing.T) {
	tests := []struct {
		name string
		row  string
		want Status
	}{
		{"attribute wins over badge", `<div id="r" data-status="blocked"><span class="badge">Allowed</span></div>`, Blocked},
		{"log status attribute", `<div id="r" data-log-status="ALLOWED"></div>`, Allowed},
		{"badge", `<div id="r"><span class="badge">Denied</span></div>`, Blocked},
		{"status testid", `<div id="r"><span data-testid="row-status">permitted</span></div>`, Allowed},
		{"danger class", `<div id="r"><span class="text-danger">x</span></div>`, Blocked},
		{"success class", `<div id="r"><span class="badge-success"></span></div>`, Allowed},
		{"computed border", `<div id="r" data-nxe-border="rgb(255, 69, 0)"></div>`, Blocked},
		{"inline border", `<div id="r" style="border-left-color: rgb(40, 167, 69)"></div>`, Allowed},
		{"free text", `<div id="r"><div>query was blocked by rule</div></div>`, Blocked},
		{"unknown", `<div id="r"><div>ads.example.com</div></div>`, Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parse(t, tt.row)
			got := DetectStatus(doc.ByID("r"), DefaultStatusRules())
			assert.Equal(t, tt.want, got, "got %s", got)
		})
	}
}

func TestIsCandidate(t *testing.T) {
	tests := []struct {
		name string
		row  string
		want bool
	}{
		{"favicon", `<div id="r"><img src="https://favicons.example/x.png">ads</div>`, true},
		{"clock", `<div id="r"><svg data-icon="clock"></svg></div>`, true},
		{"domain hint", `<div id="r"><span class="domainName">ads.example.com</span></div>`, true},
		{"spinner", `<div id="r"><div class="spinner-border"></div><span class="domainName">a.b</span></div>`, false},
		{"alert", `<div id="r"><div class="alert">Oops</div></div>`, false},
		{"bg-2 banner", `<div id="r" class="bg-2"><img src="/favicons/x.png"></div>`, false},
		{"placeholder", `<div id="r"> No logs yet. </div>`, false},
		{"plain", `<div id="r"><span>hello</span></div>`, false},
		{"marked", `<div id="r" class="nxe-log-row"></div>`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parse(t, tt.row)
			assert.Equal(t, tt.want, IsCandidate(doc.ByID("r")))
		})
	}
}

const logRows = `<div class="list-group" id="logs">
<div class="list-group-item" id="a"><img src="https://favicons.example/a.png"><span class="domainName">ads.example.com</span><span class="badge">Blocked</span><div class="dropdown-menu"><button class="dropdown-item">Copy</button></div></div>
<div class="list-group-item" id="b"><img src="https://favicons.example/b.png"><a href="/logs/b">tracker.example.net</a><span class="badge-success"></span></div>
<div class="list-group-item" id="c"><img src="https://favicons.example/c.png"><span>resolving</span></div>
</div>`

func TestClassifyIsIdempotent(t *testing.T) {
	doc := parse(t, logRows)
	c := newClassifier(t, newStore(t))
	row := doc.ByID("a")

	first, outcome := c.Classify(row)
	require.Equal(t, Classified, outcome)
	assert.Equal(t, "ads.example.com", first.Domain)
	assert.Equal(t, Blocked, first.Status)
	assert.Equal(t, "marker-1", first.Marker)
	assert.False(t, first.Hidden)

	second, outcome := c.Classify(row)
	assert.Equal(t, AlreadyMarked, outcome)
	assert.Equal(t, "marker-1", second.Marker)
	assert.Equal(t, "ads.example.com", second.Domain)

	assert.Len(t, row.FindAll(".nxe-btn-group"), 1)
	assert.Len(t, row.FindAll(".nxe-hide-option"), 1)
	assert.Equal(t, "relative", row.Style("position"))

	buttons := row.FindAll(".nxe-btn-group button")
	require.Len(t, buttons, 3)
	assert.Equal(t, ActionAllow, buttons[0].AttrOr(ActionAttr, ""))
	assert.Equal(t, ActionDeny, buttons[1].AttrOr(ActionAttr, ""))
	assert.Equal(t, ActionHide, buttons[2].AttrOr(ActionAttr, ""))
	assert.True(t, row.Children()[0].HasClass("nxe-btn-group"))
}

func TestClassifyAppliesStoredState(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.HideDomain(ctx, "ads.example.com"))
	require.NoError(t, store.SetDescription(ctx, settings.ScopeLogs, "tracker.example.net", "Analytics <b>"))

	doc := parse(t, logRows)
	c := newClassifier(t, store)

	hidden, outcome := c.Classify(doc.ByID("a"))
	require.Equal(t, Classified, outcome)
	assert.True(t, hidden.Hidden)
	assert.True(t, doc.ByID("a").DisplayNone())

	described, outcome := c.Classify(doc.ByID("b"))
	require.Equal(t, Classified, outcome)
	assert.Equal(t, Allowed, described.Status)
	tip := doc.ByID("b").Find(".tooltipParent .customTooltip")
	require.True(t, tip.Valid())
	assert.Equal(t, "Analytics <b>", tip.Text())
}

func TestClassifyRejectsUntilContentArrives(t *testing.T) {
	doc := parse(t, logRows)
	c := newClassifier(t, newStore(t))
	row := doc.ByID("c")

	_, outcome := c.Classify(row)
	assert.Equal(t, Rejected, outcome)
	assert.False(t, row.HasClass(MarkerClass))
	assert.Zero(t, len(row.FindAll(".nxe-btn-group")))

	require.NoError(t, doc.ApplyRemote([]dom.Record{{
		Type: dom.RecordInner,
		Ref:  row.Ref(),
		HTML: `<img src="https://favicons.example/c.png"><span class="domainName">late.example.com</span>`,
	}}))
	got, outcome := c.Classify(row)
	assert.Equal(t, Classified, outcome)
	assert.Equal(t, "late.example.com", got.Domain)
}

func TestClassifyDetachedRow(t *testing.T) {
	doc := parse(t, logRows)
	c := newClassifier(t, newStore(t))
	row := doc.ByID("a")
	row.Remove()

	_, outcome := c.Classify(row)
	assert.Equal(t, Rejected, outcome)
	_, outcome = c.Classify(dom.Node{})
	assert.Equal(t, Rejected, outcome)
}

func TestHideOptionInPortalMenu(t *testing.T) {
	doc := parse(t, logRows+`<div class="dropdown-menu" id="portal"><button class="dropdown-item">Copy</button></div>`)
	c := newClassifier(t, newStore(t))
	row := doc.ByID("b")
	_, outcome := c.Classify(row)
	require.Equal(t, Classified, outcome)

	menu := doc.ByID("portal")
	assert.True(t, AttachHideOption(menu, row))
	assert.True(t, AttachHideOption(menu, row))
	options := menu.FindAll(".nxe-hide-option")
	require.Len(t, options, 1)
	assert.Len(t, menu.FindAll(".dropdown-divider"), 1)
	assert.Equal(t, "Hide entry", options[0].Text())

	assert.True(t, RowFor(doc, options[0]).Is(row))
	inline := row.Find(`.nxe-btn-group [data-nxe-action="hide"]`)
	assert.True(t, RowFor(doc, inline).Is(row))
	assert.False(t, RowFor(doc, doc.ByID("c")).Valid())
}

func TestRowsUnder(t *testing.T) {
	doc := parse(t, logRows)
	container := doc.ByID("logs")
	assert.Len(t, RowsUnder(container), 3)

	row := doc.ByID("a")
	rows := RowsUnder(row)
	require.NotEmpty(t, rows)
	assert.True(t, rows[0].Is(row))
}
