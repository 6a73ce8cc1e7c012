package dom

import (
	"strings"

	"golang.org/x/net/html"
)

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "fieldset": true, "figure": true,
	"footer": true, "form": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "header": true, "hr": true, "li": true, "main": true,
	"nav": true, "ol": true, "p": true, "pre": true, "section": true, "table": true,
	"tr": true, "ul": true,
}

// Text returns the concatenated text of the element, like textContent.
func (n Node) Text() string {
	if !n.Valid() {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(n.n)
	return b.String()
}

// Lines approximates the rendered text split into lines: block elements and line breaks
// start new lines, elements hidden inline and script content are skipped, and empty lines
// are dropped.
func (n Node) Lines() []string {
	if !n.Valid() {
		return nil
	}
	var lines []string
	var cur strings.Builder
	flush := func() {
		line := strings.Join(strings.Fields(cur.String()), " ")
		if line != "" {
			lines = append(lines, line)
		}
		cur.Reset()
	}
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		switch c.Type {
		case html.TextNode:
			cur.WriteString(c.Data)
			return
		case html.ElementNode:
			if c.Data == "script" || c.Data == "style" {
				return
			}
			if c != n.n && (Node{doc: n.doc, n: c}).DisplayNone() {
				return
			}
			if blockElements[c.Data] {
				flush()
				defer flush()
			}
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(n.n)
	flush()
	return lines
}
