package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Effect operations.
const (
	OpAttr       = "attr"
	OpRemoveAttr = "removeAttr"
	OpProp       = "prop"
	OpText       = "text"
	OpInsert     = "insert"
	OpMove       = "move"
	OpRemove     = "remove"
)

// Effect is one local edit to replay in the real page.
type Effect struct {
	Op     string `json:"op"`
	Ref    string `json:"ref,omitempty"`
	Parent string `json:"parent,omitempty"`
	Before string `json:"before,omitempty"`
	Name   string `json:"name,omitempty"`
	Value  string `json:"value,omitempty"`
	HTML   string `json:"html,omitempty"`
}

// Record types sent by the page.
const (
	RecordAdd    = "add"
	RecordRemove = "remove"
	RecordAttr   = "attr"
	RecordInner  = "inner"
)

// Record is one change observed in the real page.
type Record struct {
	Type   string  `json:"type"`
	Ref    string  `json:"ref,omitempty"`
	Parent string  `json:"parent,omitempty"`
	Before string  `json:"before,omitempty"`
	Name   string  `json:"name,omitempty"`
	Value  *string `json:"value,omitempty"`
	HTML   string  `json:"html,omitempty"`
}

// Event is a user interaction with an element the mirror decorated.
type Event struct {
	Ref     string `json:"ref"`
	Action  string `json:"action"`
	Value   string `json:"value,omitempty"`
	Checked bool   `json:"checked,omitempty"`
}

// ApplyRemote applies page changes to the mirror without journaling them and notifies
// observers about inserted elements. Records that only touch unknown elements are
// skipped; an insertion under an unknown parent returns ErrOutOfSync.
func (d *Document) ApplyRemote(records []Record) error {
	var added []*html.Node
	for _, rec := range records {
		switch rec.Type {
		case RecordAdd:
			parent, ok := d.refs[rec.Parent]
			if !ok {
				return fmt.Errorf("%w: unknown parent %s", ErrOutOfSync, rec.Parent)
			}
			nodes, err := d.parseRemote(rec.HTML, parent)
			if err != nil {
				return err
			}
			before := d.refs[rec.Before]
			if before != nil && before.Parent != parent {
				before = nil
			}
			for _, c := range nodes {
				if c.Type == html.ElementNode {
					if old, ok := d.refs[attr(c, RefAttr)]; ok {
						if old == before {
							before = old.NextSibling
						}
						d.detach(old)
					}
				}
				parent.InsertBefore(c, before)
				d.index(c)
				if c.Type == html.ElementNode {
					added = append(added, c)
				}
			}
		case RecordRemove:
			if n, ok := d.refs[rec.Ref]; ok {
				d.detach(n)
			}
		case RecordAttr:
			n, ok := d.refs[rec.Ref]
			if !ok || rec.Name == RefAttr {
				continue
			}
			if rec.Value == nil {
				removeAttr(n, rec.Name)
			} else {
				setAttr(n, rec.Name, *rec.Value)
			}
		case RecordInner:
			n, ok := d.refs[rec.Ref]
			if !ok {
				continue
			}
			nodes, err := d.parseRemote(rec.HTML, n)
			if err != nil {
				return err
			}
			Node{doc: d, n: n}.clear()
			for _, c := range nodes {
				if c.Type == html.ElementNode {
					if old, ok := d.refs[attr(c, RefAttr)]; ok {
						d.detach(old)
					}
				}
				n.AppendChild(c)
				d.index(c)
				if c.Type == html.ElementNode {
					added = append(added, c)
				}
			}
		default:
			return fmt.Errorf("unknown record type %q", rec.Type)
		}
	}
	d.notify(added)
	return nil
}

func (d *Document) parseRemote(markup string, context *html.Node) ([]*html.Node, error) {
	nodes, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return nil, fmt.Errorf("parse remote markup: %w", err)
	}
	return nodes, nil
}

func (d *Document) detach(n *html.Node) {
	d.unindex(n)
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}
