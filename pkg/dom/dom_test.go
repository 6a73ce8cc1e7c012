package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<html><body>
<div id="root"><div class="Logs"><div class="list-group" data-nxe-ref="p1">
  <div class="list-group-item" data-nxe-ref="p2"><span class="domainName" data-nxe-ref="p3">ads.example.com</span><div data-nxe-ref="p4">Blocked</div></div>
</div></div></div>
</body></html>`

func mustParse(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := Parse(src)
	require.NoError(t, err)
	return doc
}

func TestParseIndexesRefs(t *testing.T) {
	doc := mustParse(t, page)

	row := doc.ByRef("p2")
	require.True(t, row.Valid())
	assert.True(t, row.HasClass("list-group-item"))
	assert.Equal(t, "ads.example.com", row.Find(".domainName").Text())

	root := doc.ByID("root")
	require.True(t, root.Valid())
	assert.NotEmpty(t, root.Ref(), "elements without a ref get one")
}

func TestQueries(t *testing.T) {
	doc := mustParse(t, page)
	span := doc.ByRef("p3")

	assert.True(t, span.Matches(".domainName"))
	assert.True(t, span.Closest(".list-group").Is(doc.ByRef("p1")))
	assert.True(t, span.Closest("span").Is(span))
	assert.False(t, span.Closest(".missing").Valid())
	assert.True(t, doc.ByRef("p1").Contains(span))
	assert.True(t, span.Parent().Is(doc.ByRef("p2")))
	assert.Len(t, doc.ByRef("p2").Children(), 2)
	assert.True(t, span.Next().Is(doc.ByRef("p4")))
	assert.Len(t, doc.FindAll(".list-group-item"), 1)
	assert.Equal(t, []string{"ads.example.com", "Blocked"}, doc.ByRef("p2").Lines())
}

func TestLocalEditsAreJournaled(t *testing.T) {
	doc := mustParse(t, page)
	row := doc.ByRef("p2")

	row.AddClass("nxe-log-row")
	row.AddClass("nxe-log-row")
	row.SetStyle("display", "none")
	group, err := row.Prepend(`<div class="nxe-btn-group"><button data-nxe-action="allow">Allow</button></div>`)
	require.NoError(t, err)

	assert.True(t, row.HasClass("nxe-log-row"))
	assert.True(t, row.DisplayNone())
	assert.True(t, group.HasClass("nxe-btn-group"))
	assert.NotEmpty(t, group.Find("button").Ref())

	effects := doc.TakeEffects()
	require.Len(t, effects, 3)
	assert.Equal(t, Effect{Op: OpAttr, Ref: "p2", Name: "class", Value: "list-group-item nxe-log-row"}, effects[0])
	assert.Equal(t, Effect{Op: OpAttr, Ref: "p2", Name: "style", Value: "display: none;"}, effects[1])
	assert.Equal(t, OpInsert, effects[2].Op)
	assert.Equal(t, "p2", effects[2].Parent)
	assert.Equal(t, "p3", effects[2].Before)
	assert.Contains(t, effects[2].HTML, `data-nxe-ref="`+group.Ref()+`"`)
	assert.Empty(t, doc.TakeEffects())
}

func TestStyleEditing(t *testing.T) {
	doc := mustParse(t, `<html><body><div id="x" style="color: red; DISPLAY: block"></div></body></html>`)
	x := doc.ByID("x")

	assert.Equal(t, "block", x.Style("display"))
	x.SetStyle("display", "none")
	assert.Equal(t, "color: red; display: none;", x.AttrOr("style", ""))
	x.SetStyle("display", "")
	x.SetStyle("color", "")
	_, ok := x.Attr("style")
	assert.False(t, ok)
}

func TestRemoveAndMove(t *testing.T) {
	doc := mustParse(t, `<html><body><ul data-nxe-ref="l"><li data-nxe-ref="a">a</li><li data-nxe-ref="b">b</li><li data-nxe-ref="c">c</li></ul></body></html>`)
	list := doc.ByRef("l")
	a, c := doc.ByRef("a"), doc.ByRef("c")

	c.MoveTo(list, a)
	assert.Equal(t, "cab", list.Text())
	a.Remove()
	assert.False(t, a.Connected())
	assert.False(t, doc.ByRef("a").Valid())

	effects := doc.TakeEffects()
	require.Len(t, effects, 2)
	assert.Equal(t, Effect{Op: OpMove, Ref: "c", Parent: "l", Before: "a"}, effects[0])
	assert.Equal(t, Effect{Op: OpRemove, Ref: "a"}, effects[1])
}

func TestSetPropAndText(t *testing.T) {
	doc := mustParse(t, `<html><body><input type="checkbox" data-nxe-ref="c"><button data-nxe-ref="b">Allow</button></body></html>`)
	box, btn := doc.ByRef("c"), doc.ByRef("b")

	box.SetProp("checked", "true")
	assert.True(t, box.Checked())
	box.SetProp("checked", "false")
	assert.False(t, box.Checked())

	btn.SetText("Err")
	assert.Equal(t, "Err", btn.Text())
	btn.Empty()
	assert.Empty(t, btn.Text())
}

func TestApplyRemoteNotifiesObservers(t *testing.T) {
	doc := mustParse(t, page)
	var seen []string
	stop := doc.Observe(doc.ByRef("p1"), func(added []Node) {
		for _, n := range added {
			seen = append(seen, n.Ref())
		}
	})

	err := doc.ApplyRemote([]Record{{
		Type:   RecordAdd,
		Parent: "p1",
		HTML:   `<div class="list-group-item" data-nxe-ref="p9"><span class="domainName" data-nxe-ref="p10">cdn.example.net</span></div>`,
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"p9"}, seen)
	assert.Empty(t, doc.TakeEffects(), "remote records are not journaled")
	assert.Equal(t, "cdn.example.net", doc.ByRef("p10").Text())

	stop()
	require.NoError(t, doc.ApplyRemote([]Record{{Type: RecordAdd, Parent: "p1", HTML: `<div data-nxe-ref="p11"></div>`}}))
	assert.Equal(t, []string{"p9"}, seen)
}

func TestApplyRemoteAttrInnerRemove(t *testing.T) {
	doc := mustParse(t, page)
	status := "blocked"
	require.NoError(t, doc.ApplyRemote([]Record{
		{Type: RecordAttr, Ref: "p2", Name: "data-status", Value: &status},
		{Type: RecordInner, Ref: "p4", HTML: `<b data-nxe-ref="p20">Allowed</b>`},
	}))
	assert.Equal(t, "blocked", doc.ByRef("p2").AttrOr("data-status", ""))
	assert.Equal(t, "Allowed", doc.ByRef("p4").Text())

	require.NoError(t, doc.ApplyRemote([]Record{
		{Type: RecordAttr, Ref: "p2", Name: "data-status"},
		{Type: RecordRemove, Ref: "p2"},
		{Type: RecordRemove, Ref: "unknown"},
	}))
	assert.False(t, doc.ByRef("p3").Valid())
	assert.Empty(t, doc.FindAll(".list-group-item"))
}

func TestApplyRemoteUnknownParent(t *testing.T) {
	doc := mustParse(t, page)
	err := doc.ApplyRemote([]Record{{Type: RecordAdd, Parent: "nope", HTML: "<div></div>"}})
	assert.ErrorIs(t, err, ErrOutOfSync)
}

func TestResetDetachesOldNodes(t *testing.T) {
	doc := mustParse(t, page)
	row := doc.ByRef("p2")
	require.NoError(t, doc.Reset(`<html><body><div data-nxe-ref="p2"></div></body></html>`))

	assert.False(t, row.Connected())
	assert.True(t, doc.ByRef("p2").Connected())
}

func TestZeroNodeIsInert(t *testing.T) {
	var n Node
	assert.False(t, n.Valid())
	assert.False(t, n.Find("div").Valid())
	assert.Empty(t, n.Text())
	n.SetAttr("a", "b")
	n.Remove()
	_, err := n.Append("<div></div>")
	assert.Error(t, err)
}
