package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nxenhance/pkg/dom"
	"nxenhance/pkg/settings"
)

const listPage = `<div class="list-group" id="list">
<div class="list-group-item" id="input"><input type="text" placeholder="Add a domain"></div>
<div class="list-group-item" id="b"><span><img src="/favicons/b.png"> b.example.org</span></div>
<div class="list-group-item" id="w"><span>www.a.example.com</span></div>
<div class="list-group-item" id="a"><span>a.example.com</span></div>
<div class="list-group-item" id="uk"><span>shop.example.co.uk</span></div>
<div class="list-group-item text-muted" id="help">Subdomains are included</div>
</div>`

func childDomains(group dom.Node) []string {
	var names []string
	for _, item := range group.Children() {
		if item.Has("input[placeholder]") || item.HasClass("text-muted") {
			continue
		}
		names = append(names, ItemDomain(item))
	}
	return names
}

func TestSkipListItem(t *testing.T) {
	doc := parse(t, listPage+`<div class="list-group-item" id="ta"><textarea></textarea></div><div class="list-group-item" id="sub">Block Subdomains</div>`)
	assert.True(t, SkipListItem(doc.ByID("input")))
	assert.True(t, SkipListItem(doc.ByID("help")))
	assert.True(t, SkipListItem(doc.ByID("ta")))
	assert.True(t, SkipListItem(doc.ByID("sub")))
	assert.True(t, SkipListItem(dom.Node{}))
	assert.False(t, SkipListItem(doc.ByID("a")))
}

func TestItemDomain(t *testing.T) {
	doc := parse(t, listPage+`<div class="list-group-item" id="bare">*.Wild.Example.com.</div>`)
	assert.Equal(t, "b.example.org", ItemDomain(doc.ByID("b")))
	assert.Equal(t, "wild.example.com", ItemDomain(doc.ByID("bare")))
	assert.Equal(t, "", ItemDomain(dom.Node{}))
}

func TestEnhanceListItem(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.SetDescription(ctx, settings.ScopeDenylist, "a.example.com", `work "vpn"`))
	doc := parse(t, listPage)

	ok, err := EnhanceListItem(doc.ByID("a"), settings.ScopeDenylist, store)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = EnhanceListItem(doc.ByID("a"), settings.ScopeDenylist, store)
	require.NoError(t, err)
	assert.True(t, ok)

	item := doc.ByID("a")
	assert.Len(t, item.FindAll(".nxe-select-checkbox"), 1)
	inputs := item.FindAll("input.description")
	require.Len(t, inputs, 1)
	assert.Equal(t, `work "vpn"`, inputs[0].AttrOr("value", ""))
	assert.Equal(t, "a.example.com", inputs[0].AttrOr(DomainAttr, ""))
	assert.Equal(t, "denylist", inputs[0].AttrOr("data-nxe-list", ""))
	assert.Equal(t, ActionDescribe, inputs[0].AttrOr(ActionAttr, ""))
	assert.True(t, inputs[0].DisplayNone())

	ok, err = EnhanceListItem(doc.ByID("input"), settings.ScopeDenylist, store)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, doc.ByID("input").Has(".nxe-select-checkbox"))
}

func TestSelectedAndVisibleDomains(t *testing.T) {
	doc := parse(t, listPage)
	group := doc.ByID("list")
	for _, id := range []string{"a", "b", "w"} {
		_, err := EnhanceListItem(doc.ByID(id), settings.ScopeAllowlist, nil)
		require.NoError(t, err)
	}
	doc.ByID("a").Find(".nxe-select-checkbox").SetProp("checked", "true")
	doc.ByID("w").Find(".nxe-select-checkbox").SetProp("checked", "true")

	assert.Equal(t, []string{"www.a.example.com", "a.example.com"}, SelectedDomains(group))

	visible := VisibleDomains(group)
	assert.True(t, visible.Has("b.example.org"))
	assert.True(t, visible.Has("shop.example.co.uk"))
	assert.False(t, visible.Has("c.example.com"))
}

func TestSortItems(t *testing.T) {
	doc := parse(t, listPage)
	group := doc.ByID("list")

	assert.Equal(t, 4, SortItems(group))
	assert.Equal(t, []string{"shop.example.co.uk", "a.example.com", "www.a.example.com", "b.example.org"}, childDomains(group))
	assert.Equal(t, "input", group.Children()[0].ID())

	effects := doc.TakeEffects()
	require.NotEmpty(t, effects)
	for _, e := range effects {
		assert.Equal(t, dom.OpMove, e.Op)
	}

	assert.Equal(t, 4, SortItems(group))
	assert.Equal(t, []string{"shop.example.co.uk", "a.example.com", "www.a.example.com", "b.example.org"}, childDomains(group))
	assert.Zero(t, SortItems(dom.Node{}))
}
