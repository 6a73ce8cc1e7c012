package classify

import (
	"strings"

	"nxenhance/pkg/dom"
)

// Status is the resolution outcome shown on a log row.
type Status int

const (
	Unknown Status = iota
	Blocked
	Allowed
)

func (s Status) String() string {
	switch s {
	case Blocked:
		return "blocked"
	case Allowed:
		return "allowed"
	}
	return "unknown"
}

// BorderAttr carries the computed left border colour, written by the host.
const BorderAttr = "data-nxe-border"

// StatusRule inspects a row and returns Unknown when it cannot tell.
type StatusRule func(row dom.Node) Status

var (
	blockedBorders = map[string]bool{"rgb(255,69,0)": true, "orangered": true, "rgb(220,53,69)": true}
	allowedBorders = map[string]bool{"rgb(46,204,113)": true, "rgb(40,167,69)": true}
)

// DefaultStatusRules are applied in order; the first definite answer wins.
func DefaultStatusRules() []StatusRule {
	return []StatusRule{statusAttrRule, badgeRule, colorClassRule, borderRule, textRule}
}

// DetectStatus applies rules in order.
func DetectStatus(row dom.Node, rules []StatusRule) Status {
	if !row.Valid() {
		return Unknown
	}
	for _, rule := range rules {
		if status := rule(row); status != Unknown {
			return status
		}
	}
	return Unknown
}

func statusAttrRule(row dom.Node) Status {
	value := row.AttrOr("data-status", "")
	if value == "" {
		value = row.AttrOr("data-log-status", "")
	}
	value = strings.ToLower(value)
	switch {
	case strings.Contains(value, "block"):
		return Blocked
	case strings.Contains(value, "allow"):
		return Allowed
	}
	return Unknown
}

func badgeRule(row dom.Node) Status {
	for _, node := range row.FindAll(`[data-testid*="status"], [data-test*="status"], .badge, .text-uppercase, .text-muted`) {
		text := strings.ToLower(strings.TrimSpace(node.Text()))
		if text == "" {
			continue
		}
		if strings.Contains(text, "blocked") || strings.Contains(text, "denied") {
			return Blocked
		}
		if strings.Contains(text, "allowed") || strings.Contains(text, "permitted") {
			return Allowed
		}
	}
	return Unknown
}

func colorClassRule(row dom.Node) Status {
	if row.Has(".text-danger, .badge-danger, .bg-danger, .border-danger, .text-error") {
		return Blocked
	}
	if row.Has(".text-success, .badge-success, .bg-success, .border-success") {
		return Allowed
	}
	return Unknown
}

func borderRule(row dom.Node) Status {
	color := row.AttrOr(BorderAttr, "")
	if color == "" {
		color = row.Style("border-left-color")
	}
	color = strings.ToLower(strings.ReplaceAll(color, " ", ""))
	switch {
	case blockedBorders[color]:
		return Blocked
	case allowedBorders[color]:
		return Allowed
	}
	return Unknown
}

func textRule(row dom.Node) Status {
	text := strings.ToLower(strings.Join(row.Lines(), "\n"))
	switch {
	case strings.Contains(text, "blocked"):
		return Blocked
	case strings.Contains(text, "allowed"):
		return Allowed
	}
	return Unknown
}
