package nextdns

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"sync"
)

var plainSuffix = regexp.MustCompile(`^[a-z0-9-]+$`)

// BlockSuffixPaths lists the request paths tried, in order, to block a top-level suffix.
// A plain ASCII suffix gets a readable path first; the hex form always follows. Punycode
// labels only get the hex form. Leading and trailing dots are dropped, so ".zip" and "zip."
// block the same suffix.
func BlockSuffixPaths(tld string) []string {
	normalized := strings.Trim(strings.ToLower(strings.TrimSpace(tld)), ".")
	if normalized == "" {
		return nil
	}
	var paths []string
	if plainSuffix.MatchString(normalized) && !strings.HasPrefix(normalized, "xn--") {
		paths = append(paths, "security/blocked_tlds/"+url.PathEscape(normalized))
	}
	paths = append(paths, "security/blocked_tlds/hex:"+HexEncode(normalized))
	return paths
}

// SuffixBlocker adds blocked top-level suffixes. When every path variant is answered with
// notFound the endpoint is treated as missing and the blocker disables itself for the rest
// of the session.
type SuffixBlocker struct {
	client *Client
	log    *slog.Logger

	mu       sync.Mutex
	disabled bool
}

// NewSuffixBlocker creates a blocker bound to client.
func NewSuffixBlocker(client *Client, log *slog.Logger) *SuffixBlocker {
	if log == nil {
		log = slog.Default()
	}
	return &SuffixBlocker{client: client, log: log}
}

// Available reports whether the endpoint has not been found missing yet.
func (b *SuffixBlocker) Available() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.disabled
}

// Add blocks tld. It returns false without error when the blocker is disabled or the
// suffix yields no path.
func (b *SuffixBlocker) Add(ctx context.Context, tld string) (bool, error) {
	if !b.Available() {
		return false, nil
	}
	paths := BlockSuffixPaths(tld)
	if len(paths) == 0 {
		return false, nil
	}

	for _, path := range paths {
		_, err := b.client.Request(ctx, "PUT", path, nil)
		if err == nil {
			return true, nil
		}
		if !IsNotFound(err) {
			return false, err
		}
	}

	b.mu.Lock()
	b.disabled = true
	b.mu.Unlock()
	b.log.Warn("blocked suffix endpoint not found, disabling suffix blocking", "tld", tld)
	return false, nil
}

// RemoveAll clears every blocked suffix of the profile.
func (b *SuffixBlocker) RemoveAll(ctx context.Context) error {
	_, err := b.client.Request(ctx, "PATCH", string(Security), map[string]any{"tlds": []any{}})
	return err
}
