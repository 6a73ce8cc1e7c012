package nextdns

import (
	"fmt"
	"net/url"
	"strings"
)

// Resource names a top-level collection of a profile.
type Resource string

const (
	Denylist        Resource = "denylist"
	Allowlist       Resource = "allowlist"
	Security        Resource = "security"
	Privacy         Resource = "privacy"
	Settings        Resource = "settings"
	ParentalControl Resource = "parentalcontrol"
	Rewrites        Resource = "rewrites"
)

// ExportResources are read, in this order, when exporting a profile.
var ExportResources = []Resource{Security, Privacy, ParentalControl, Denylist, Allowlist, Settings, Rewrites}

// ParseList maps a page or CLI list name to one of the two domain lists.
func ParseList(name string) (Resource, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "denylist", "deny":
		return Denylist, nil
	case "allowlist", "allow":
		return Allowlist, nil
	}
	return "", fmt.Errorf("unknown list %q (must be denylist or allowlist)", name)
}

// ProfileFromLocation returns the first path segment of a web application URL, which is
// the profile id on every profile page.
func ProfileFromLocation(location string) (string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parse location: %w", err)
	}
	segments := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "", fmt.Errorf("no profile in location %s", location)
	}
	return segments[0], nil
}
