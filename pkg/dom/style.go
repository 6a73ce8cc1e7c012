package dom

import "strings"

type declaration struct {
	prop  string
	value string
}

func parseStyle(style string) []declaration {
	var decls []declaration
	for _, part := range strings.Split(style, ";") {
		prop, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		value = strings.TrimSpace(value)
		if prop == "" {
			continue
		}
		decls = append(decls, declaration{prop: prop, value: value})
	}
	return decls
}

func renderStyle(decls []declaration) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		parts = append(parts, d.prop+": "+d.value+";")
	}
	return strings.Join(parts, " ")
}

// Style returns an inline style property.
func (n Node) Style(prop string) string {
	prop = strings.ToLower(prop)
	for _, d := range parseStyle(n.AttrOr("style", "")) {
		if d.prop == prop {
			return d.value
		}
	}
	return ""
}

// SetStyle sets an inline style property; an empty value removes it.
func (n Node) SetStyle(prop, value string) {
	if !n.Valid() {
		return
	}
	prop = strings.ToLower(prop)
	decls := parseStyle(n.AttrOr("style", ""))
	out := decls[:0]
	replaced := false
	for _, d := range decls {
		if d.prop == prop {
			if value == "" || replaced {
				continue
			}
			d.value = value
			replaced = true
		}
		out = append(out, d)
	}
	if !replaced && value != "" {
		out = append(out, declaration{prop: prop, value: value})
	}
	if len(out) == 0 {
		n.RemoveAttr("style")
		return
	}
	n.SetAttr("style", renderStyle(out))
}

// DisplayNone reports whether the element is hidden through its inline style.
func (n Node) DisplayNone() bool {
	return strings.EqualFold(n.Style("display"), "none")
}
