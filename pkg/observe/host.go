package observe

import (
	"context"
	"regexp"

	"nxenhance/pkg/dom"
)

// Host is the browser tab the engine decorates. Document and Sync are only called from
// the engine loop; the remaining methods may be called from background jobs and must be
// safe for concurrent use.
type Host interface {
	// Location returns the current page URL.
	Location(ctx context.Context) (string, error)
	// Document returns the mirror of the page.
	Document() *dom.Document
	// Sync replays pending local edits in the page, applies page changes to the mirror and
	// returns the user interactions collected since the last call.
	Sync(ctx context.Context) ([]dom.Event, error)
	Reload(ctx context.Context) error
	Confirm(ctx context.Context, message string) (bool, error)
	Alert(ctx context.Context, message string) error
	// Download offers data to the user as a file.
	Download(ctx context.Context, name string, data []byte) error
}

// Page is the kind of web application page being shown.
type Page int

const (
	PageOther Page = iota
	PageLogs
	PagePrivacy
	PageSecurity
	PageLists
	PageSettings
)

func (p Page) String() string {
	switch p {
	case PageLogs:
		return "logs"
	case PagePrivacy:
		return "privacy"
	case PageSecurity:
		return "security"
	case PageLists:
		return "lists"
	case PageSettings:
		return "settings"
	}
	return "other"
}

var pagePatterns = []struct {
	page Page
	re   *regexp.Regexp
}{
	{PageLogs, regexp.MustCompile(`(?i)/logs`)},
	{PagePrivacy, regexp.MustCompile(`(?i)/privacy/?([?#].*)?$`)},
	{PageSecurity, regexp.MustCompile(`(?i)/security/?([?#].*)?$`)},
	{PageLists, regexp.MustCompile(`(?i)/(allowlist|denylist)/?([?#].*)?$`)},
	{PageSettings, regexp.MustCompile(`(?i)/settings/?([?#].*)?$`)},
}

// PageOf classifies a page URL. The first matching pattern wins.
func PageOf(location string) Page {
	for _, p := range pagePatterns {
		if p.re.MatchString(location) {
			return p.page
		}
	}
	return PageOther
}
