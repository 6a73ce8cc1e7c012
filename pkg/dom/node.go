package dom

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/net/html"
)

// Node is a handle to an element of a Document. The zero Node is invalid; every query on
// it returns zero values and every edit is ignored.
type Node struct {
	doc *Document
	n   *html.Node
}

// Valid reports whether the handle points at a node.
func (n Node) Valid() bool {
	return n.doc != nil && n.n != nil
}

// Ref returns the element's mirror reference.
func (n Node) Ref() string {
	if !n.Valid() {
		return ""
	}
	return attr(n.n, RefAttr)
}

// Tag returns the lowercase element name.
func (n Node) Tag() string {
	if !n.Valid() || n.n.Type != html.ElementNode {
		return ""
	}
	return n.n.Data
}

// Attr returns an attribute value and whether it is present.
func (n Node) Attr(name string) (string, bool) {
	if !n.Valid() || !hasAttr(n.n, name) {
		return "", false
	}
	return attr(n.n, name), true
}

// AttrOr returns an attribute value or def when it is missing.
func (n Node) AttrOr(name, def string) string {
	if v, ok := n.Attr(name); ok {
		return v
	}
	return def
}

// ID returns the id attribute.
func (n Node) ID() string {
	return n.AttrOr("id", "")
}

// SetAttr sets an attribute.
func (n Node) SetAttr(name, value string) {
	if !n.Valid() {
		return
	}
	if v, ok := n.Attr(name); ok && v == value {
		return
	}
	setAttr(n.n, name, value)
	n.doc.record(Effect{Op: OpAttr, Ref: n.Ref(), Name: name, Value: value})
}

// RemoveAttr deletes an attribute.
func (n Node) RemoveAttr(name string) {
	if !n.Valid() || !hasAttr(n.n, name) {
		return
	}
	removeAttr(n.n, name)
	n.doc.record(Effect{Op: OpRemoveAttr, Ref: n.Ref(), Name: name})
}

// SetProp sets a live element property such as checked, value or disabled. The mirror
// stores it as the matching attribute.
func (n Node) SetProp(name string, value string) {
	if !n.Valid() {
		return
	}
	switch name {
	case "checked", "disabled":
		if value == "true" {
			setAttr(n.n, name, "")
		} else {
			removeAttr(n.n, name)
		}
	default:
		setAttr(n.n, name, value)
	}
	n.doc.record(Effect{Op: OpProp, Ref: n.Ref(), Name: name, Value: value})
}

// Checked reports whether a checkbox is ticked.
func (n Node) Checked() bool {
	_, ok := n.Attr("checked")
	return ok
}

// Classes returns the class list.
func (n Node) Classes() []string {
	return strings.Fields(n.AttrOr("class", ""))
}

// HasClass reports whether the element carries class c.
func (n Node) HasClass(c string) bool {
	return slices.Contains(n.Classes(), c)
}

// AddClass appends class c when missing.
func (n Node) AddClass(c string) {
	if !n.Valid() || n.HasClass(c) {
		return
	}
	n.SetAttr("class", strings.TrimSpace(strings.Join(append(n.Classes(), c), " ")))
}

// Find returns the first descendant matching selector.
func (n Node) Find(selector string) Node {
	if !n.Valid() {
		return Node{}
	}
	found := n.doc.selection(n.n).Find(selector)
	if found.Length() == 0 {
		return Node{}
	}
	return Node{doc: n.doc, n: found.Get(0)}
}

// FindAll returns every descendant matching selector in document order.
func (n Node) FindAll(selector string) []Node {
	if !n.Valid() {
		return nil
	}
	found := n.doc.selection(n.n).Find(selector)
	out := make([]Node, 0, found.Length())
	for _, hn := range found.Nodes {
		out = append(out, Node{doc: n.doc, n: hn})
	}
	return out
}

// Has reports whether a descendant matches selector.
func (n Node) Has(selector string) bool {
	return n.Find(selector).Valid()
}

// Matches reports whether the element itself matches selector.
func (n Node) Matches(selector string) bool {
	if !n.Valid() || n.n.Type != html.ElementNode {
		return false
	}
	return n.doc.selection(n.n).Is(selector)
}

// Closest returns the element or its nearest ancestor matching selector.
func (n Node) Closest(selector string) Node {
	if !n.Valid() {
		return Node{}
	}
	found := n.doc.selection(n.n).Closest(selector)
	if found.Length() == 0 {
		return Node{}
	}
	return Node{doc: n.doc, n: found.Get(0)}
}

// Parent returns the parent element.
func (n Node) Parent() Node {
	if !n.Valid() || n.n.Parent == nil || n.n.Parent.Type != html.ElementNode {
		return Node{}
	}
	return Node{doc: n.doc, n: n.n.Parent}
}

// Children returns the element children.
func (n Node) Children() []Node {
	if !n.Valid() {
		return nil
	}
	var out []Node
	for c := n.n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, Node{doc: n.doc, n: c})
		}
	}
	return out
}

// Next returns the next element sibling.
func (n Node) Next() Node {
	if !n.Valid() {
		return Node{}
	}
	for c := n.n.NextSibling; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return Node{doc: n.doc, n: c}
		}
	}
	return Node{}
}

// Contains reports whether other is n or one of its descendants.
func (n Node) Contains(other Node) bool {
	if !n.Valid() || !other.Valid() {
		return false
	}
	return n.n == other.n || isAncestor(n.n, other.n)
}

// Connected reports whether the element is still part of its document.
func (n Node) Connected() bool {
	if !n.Valid() {
		return false
	}
	for p := n.n; p != nil; p = p.Parent {
		if p == n.doc.root {
			return true
		}
	}
	return false
}

// Is reports whether both handles point at the same element.
func (n Node) Is(other Node) bool {
	return n.Valid() && other.Valid() && n.n == other.n
}

// SetText replaces the children with a single text node.
func (n Node) SetText(text string) {
	if !n.Valid() {
		return
	}
	n.clear()
	n.n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	n.doc.record(Effect{Op: OpText, Ref: n.Ref(), Value: text})
}

// Empty removes every child.
func (n Node) Empty() {
	if !n.Valid() || n.n.FirstChild == nil {
		return
	}
	n.clear()
	n.doc.record(Effect{Op: OpText, Ref: n.Ref(), Value: ""})
}

func (n Node) clear() {
	for c := n.n.FirstChild; c != nil; {
		next := c.NextSibling
		n.doc.unindex(c)
		n.n.RemoveChild(c)
		c = next
	}
}

// Append parses markup and adds it as the last children. It returns the first inserted
// element.
func (n Node) Append(markup string) (Node, error) {
	return n.InsertBefore(markup, Node{})
}

// Prepend parses markup and inserts it before the first child.
func (n Node) Prepend(markup string) (Node, error) {
	if !n.Valid() {
		return Node{}, fmt.Errorf("invalid node")
	}
	if n.n.FirstChild == nil {
		return n.Append(markup)
	}
	return n.insert(markup, n.n.FirstChild)
}

// InsertBefore parses markup and inserts it before the child element before, or at the
// end when before is invalid.
func (n Node) InsertBefore(markup string, before Node) (Node, error) {
	if !n.Valid() {
		return Node{}, fmt.Errorf("invalid node")
	}
	var ref *html.Node
	if before.Valid() {
		if before.n.Parent != n.n {
			return Node{}, fmt.Errorf("insert before: not a child")
		}
		ref = before.n
	}
	return n.insert(markup, ref)
}

func (n Node) insert(markup string, before *html.Node) (Node, error) {
	nodes, err := html.ParseFragment(strings.NewReader(markup), n.n)
	if err != nil {
		return Node{}, fmt.Errorf("parse markup: %w", err)
	}
	var buf bytes.Buffer
	var first Node
	for _, c := range nodes {
		n.n.InsertBefore(c, before)
		n.doc.index(c)
		if err := html.Render(&buf, c); err != nil {
			return Node{}, fmt.Errorf("render markup: %w", err)
		}
		if !first.Valid() && c.Type == html.ElementNode {
			first = Node{doc: n.doc, n: c}
		}
	}
	beforeRef := ""
	if before != nil {
		beforeRef = nodeRef(before)
	}
	n.doc.record(Effect{Op: OpInsert, Parent: n.Ref(), Before: beforeRef, HTML: buf.String()})
	return first, nil
}

// MoveTo reparents the element under parent, before the child element before, or at the
// end when before is invalid.
func (n Node) MoveTo(parent, before Node) {
	if !n.Valid() || !parent.Valid() || n.Is(before) {
		return
	}
	var ref *html.Node
	if before.Valid() && before.n.Parent == parent.n {
		ref = before.n
	}
	if n.n.Parent != nil {
		n.n.Parent.RemoveChild(n.n)
	}
	parent.n.InsertBefore(n.n, ref)
	beforeRef := ""
	if ref != nil {
		beforeRef = nodeRef(ref)
	}
	n.doc.record(Effect{Op: OpMove, Ref: n.Ref(), Parent: parent.Ref(), Before: beforeRef})
}

// Remove detaches the element.
func (n Node) Remove() {
	if !n.Valid() || n.n.Parent == nil {
		return
	}
	ref := n.Ref()
	n.doc.unindex(n.n)
	n.n.Parent.RemoveChild(n.n)
	n.doc.record(Effect{Op: OpRemove, Ref: ref})
}

// OuterHTML renders the element.
func (n Node) OuterHTML() string {
	if !n.Valid() {
		return ""
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, n.n); err != nil {
		return ""
	}
	return buf.String()
}

// nodeRef returns the ref of the first element at or after c, so text siblings can be
// addressed by the element that follows them.
func nodeRef(c *html.Node) string {
	for ; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return attr(c, RefAttr)
		}
	}
	return ""
}
