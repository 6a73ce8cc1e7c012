// Package dom keeps an in-memory mirror of a web page. Local edits are journaled so a host
// can replay them in the real page; page changes are applied back as remote records and
// reported to observers, much like a MutationObserver.
package dom

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// RefAttr identifies an element across the mirror and the real page.
const RefAttr = "data-nxe-ref"

// ErrOutOfSync is returned when a remote record refers to an element the mirror does not
// know. The host should take a fresh snapshot.
var ErrOutOfSync = errors.New("dom mirror out of sync")

// Document is a mirrored page. It is not safe for concurrent use.
type Document struct {
	root      *html.Node
	refs      map[string]*html.Node
	nextRef   int
	observers map[int]*observer
	nextObs   int
	journal   []Effect
}

type observer struct {
	root *html.Node
	fn   func(added []Node)
}

// Parse builds a Document from a full HTML page.
func Parse(src string) (*Document, error) {
	d := &Document{observers: make(map[int]*observer)}
	if err := d.Reset(src); err != nil {
		return nil, err
	}
	return d, nil
}

// Reset replaces the whole tree. Nodes handed out before are detached afterwards and
// observers of the old tree stop firing. Pending effects are dropped.
func (d *Document) Reset(src string) error {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return fmt.Errorf("parse page: %w", err)
	}
	d.root = root
	d.refs = make(map[string]*html.Node)
	d.journal = nil
	d.index(root)
	return nil
}

// Root returns the document node.
func (d *Document) Root() Node {
	return Node{doc: d, n: d.root}
}

// Body returns the body element.
func (d *Document) Body() Node {
	return d.Root().Find("body")
}

// Find returns the first element matching selector.
func (d *Document) Find(selector string) Node {
	return d.Root().Find(selector)
}

// FindAll returns every element matching selector in document order.
func (d *Document) FindAll(selector string) []Node {
	return d.Root().FindAll(selector)
}

// ByID returns the element with the given id attribute.
func (d *Document) ByID(id string) Node {
	return d.Find(`[id="` + id + `"]`)
}

// ByRef returns the connected element carrying ref.
func (d *Document) ByRef(ref string) Node {
	n, ok := d.refs[ref]
	if !ok {
		return Node{}
	}
	node := Node{doc: d, n: n}
	if !node.Connected() {
		return Node{}
	}
	return node
}

// Observe calls fn with the elements that remote records insert below root. Local edits
// do not notify observers. The returned function disconnects the observer.
func (d *Document) Observe(root Node, fn func(added []Node)) func() {
	id := d.nextObs
	d.nextObs++
	d.observers[id] = &observer{root: root.n, fn: fn}
	return func() { delete(d.observers, id) }
}

// TakeEffects returns and clears the journal of local edits.
func (d *Document) TakeEffects() []Effect {
	out := d.journal
	d.journal = nil
	return out
}

// PendingEffects reports whether local edits are waiting to be flushed.
func (d *Document) PendingEffects() int {
	return len(d.journal)
}

func (d *Document) record(e Effect) {
	d.journal = append(d.journal, e)
}

func (d *Document) index(n *html.Node) {
	if n.Type == html.ElementNode {
		ref := attr(n, RefAttr)
		if ref == "" {
			d.nextRef++
			ref = "g" + strconv.Itoa(d.nextRef)
			setAttr(n, RefAttr, ref)
		}
		d.refs[ref] = n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.index(c)
	}
}

func (d *Document) unindex(n *html.Node) {
	if n.Type == html.ElementNode {
		if ref := attr(n, RefAttr); ref != "" && d.refs[ref] == n {
			delete(d.refs, ref)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.unindex(c)
	}
}

func (d *Document) selection(n *html.Node) *goquery.Selection {
	return goquery.NewDocumentFromNode(n).Selection
}

func (d *Document) notify(added []*html.Node) {
	if len(added) == 0 {
		return
	}
	for _, obs := range d.observers {
		var matched []Node
		for _, n := range added {
			node := Node{doc: d, n: n}
			if !node.Connected() {
				continue
			}
			if isAncestor(obs.root, n) {
				matched = append(matched, node)
			}
		}
		if len(matched) > 0 {
			obs.fn(matched)
		}
	}
}

func isAncestor(ancestor, n *html.Node) bool {
	if ancestor == nil {
		return false
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

func removeAttr(n *html.Node, name string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}
