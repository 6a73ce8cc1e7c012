// Package domain normalizes, validates and parses the domain names shown in and sent
// to the NextDNS web application.
package domain

import (
	"fmt"
	"net"
	"regexp"
	"strings"
	"unicode"

	"github.com/miekg/dns"
)

// multiPartSuffixes are public suffixes made of two labels. A registrable name under one of
// them keeps three labels when grouping list entries.
var multiPartSuffixes = map[string]struct{}{
	"co.uk":  {},
	"org.uk": {},
	"gov.uk": {},
	"ac.uk":  {},
	"sch.uk": {},
	"com.au": {},
	"net.au": {},
	"org.au": {},
	"gov.au": {},
	"com.br": {},
	"net.br": {},
	"gov.br": {},
	"co.jp":  {},
}

var hostnamePattern = regexp.MustCompile(`(?i)([a-z0-9-]+\.)+[a-z0-9-]+`)

// Normalize trims, lowercases and strips leading wildcard markers and trailing dots.
// Normalize(Normalize(x)) == Normalize(x) for every input.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.TrimLeftFunc(normalized, func(r rune) bool {
		return r == '*' || r == '.' || unicode.IsSpace(r)
	})
	normalized = strings.TrimRightFunc(normalized, func(r rune) bool {
		return r == '.' || unicode.IsSpace(r)
	})
	return normalized
}

// RootDomain returns the registrable part of a domain: the last two labels, or the last
// three when the final two form a known multi-label suffix. It is a grouping key only.
func RootDomain(name string) string {
	normalized := Normalize(name)
	if !strings.Contains(normalized, ".") {
		return normalized
	}
	labels := dns.SplitDomainName(normalized)
	if len(labels) < 2 {
		return normalized
	}
	lastTwo := strings.Join(labels[len(labels)-2:], ".")
	if _, ok := multiPartSuffixes[lastTwo]; ok && len(labels) >= 3 {
		return strings.Join(labels[len(labels)-3:], ".")
	}
	return lastTwo
}

// SortKey orders list entries by registrable domain first and full name second.
func SortKey(name string) string {
	normalized := Normalize(name)
	return RootDomain(normalized) + "|" + normalized
}

// ExtractFromText returns the first hostname-looking token in text, lowercased.
func ExtractFromText(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	if collapsed == "" {
		return ""
	}
	match := hostnamePattern.FindString(collapsed)
	return strings.ToLower(match)
}

// ExtractFromLines scans visible text lines in order and returns the first hostname found.
func ExtractFromLines(lines []string) string {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if found := ExtractFromText(line); found != "" {
			return found
		}
	}
	return ""
}

// Canonical normalizes name and rejects entries that cannot be a domain.
func Canonical(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("empty domain")
	}
	if strings.Contains(trimmed, "://") || strings.Contains(trimmed, "/") || strings.Contains(trimmed, ":") {
		return "", fmt.Errorf("invalid hostname")
	}
	if ip := net.ParseIP(trimmed); ip != nil {
		return "", fmt.Errorf("ip literals are not domains")
	}
	normalized := Normalize(trimmed)
	if normalized == "" {
		return "", fmt.Errorf("empty domain")
	}
	if strings.ContainsFunc(normalized, unicode.IsSpace) {
		return "", fmt.Errorf("invalid domain")
	}
	if _, ok := dns.IsDomainName(normalized); !ok {
		return "", fmt.Errorf("invalid domain")
	}
	return normalized, nil
}

// Valid reports whether name survives Canonical.
func Valid(name string) bool {
	_, err := Canonical(name)
	return err == nil
}
