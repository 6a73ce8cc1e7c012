package domain

import (
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"  Example.COM.  ", "example.com"},
		{"*.ads.example.com", "ads.example.com"},
		{"..*.tracker.net...", "tracker.net"},
		{"* .a.", "a"},
		{"sub.domain.co.uk", "sub.domain.co.uk"},
	}

	for _, tt := range tests {
		got := Normalize(tt.input)
		if got != tt.expected {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
		}
		if again := Normalize(got); again != got {
			t.Errorf("Normalize is not idempotent for %q: %q then %q", tt.input, got, again)
		}
	}
}

func TestRootDomain(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"a.b.example.co.uk", "example.co.uk"},
		{"x.y.com", "y.com"},
		{"com", "com"},
		{"co.uk", "co.uk"},
		{"Shop.Example.COM.AU", "example.com.au"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := RootDomain(tt.input); got != tt.expected {
			t.Errorf("RootDomain(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestSortKey(t *testing.T) {
	if got := SortKey("*.Ads.Example.com"); got != "example.com|ads.example.com" {
		t.Errorf("unexpected sort key %q", got)
	}
	if SortKey("b.alpha.org") > SortKey("a.beta.org") {
		t.Error("entries should group by registrable domain first")
	}
}

func TestExtractFromText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"ads.Example.com", "ads.example.com"},
		{"  12:03  \n  Tracker.NET   blocked", "tracker.net"},
		{"no domain here", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ExtractFromText(tt.input); got != tt.expected {
			t.Errorf("ExtractFromText(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestExtractFromLines(t *testing.T) {
	lines := []string{"", "10:42 PM", "Blocked", "metrics.example.org", "other.example.org"}
	if got := ExtractFromLines(lines); got != "metrics.example.org" {
		t.Errorf("ExtractFromLines returned %q", got)
	}
	if got := ExtractFromLines([]string{"nothing", "  "}); got != "" {
		t.Errorf("expected no match, got %q", got)
	}
}

func TestCanonical(t *testing.T) {
	valid := map[string]string{
		"Example.com.":     "example.com",
		"*.wild.example":   "wild.example",
		"xn--bcher-kva.de": "xn--bcher-kva.de",
	}
	for input, want := range valid {
		got, err := Canonical(input)
		if err != nil {
			t.Errorf("Canonical(%q) returned error: %v", input, err)
			continue
		}
		if got != want {
			t.Errorf("Canonical(%q) = %q, want %q", input, got, want)
		}
	}

	invalid := []string{"", "http://example.com", "1.2.3.4", "bad..example.com", "foo/bar", "a b.com"}
	for _, input := range invalid {
		if Valid(input) {
			t.Errorf("Valid(%q) should be false", input)
		}
	}
}
