// Package settings holds the user preferences that survive page reloads: hidden domains,
// per-domain descriptions, cached blocklist counters and sort toggles.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"

	"nxenhance/pkg/domain"
	"nxenhance/pkg/storage"
)

// DefaultKey is the record name the settings document is stored under.
const DefaultKey = "ReNXsettings"

// Settings is the persisted document.
type Settings struct {
	HiddenDomains             []string          `json:"hiddenDomains"`
	LogsDomainDescriptions    map[string]string `json:"logsDomainDescriptions"`
	AllowlistDescriptions     map[string]string `json:"allowlistDescriptions"`
	DenylistDescriptions      map[string]string `json:"denylistDescriptions"`
	PrivacyBlocklistsCounters map[string]string `json:"privacyBlocklistsCounters"`
	SortListsAZ               bool              `json:"sortListsAZ"`
	SortBlocklistsAZ          bool              `json:"sortBlocklistsAZ"`
	DebugMode                 bool              `json:"debugMode"`
}

func (s *Settings) fillDefaults() {
	if s.HiddenDomains == nil {
		s.HiddenDomains = []string{}
	}
	if s.LogsDomainDescriptions == nil {
		s.LogsDomainDescriptions = map[string]string{}
	}
	if s.AllowlistDescriptions == nil {
		s.AllowlistDescriptions = map[string]string{}
	}
	if s.DenylistDescriptions == nil {
		s.DenylistDescriptions = map[string]string{}
	}
	if s.PrivacyBlocklistsCounters == nil {
		s.PrivacyBlocklistsCounters = map[string]string{}
	}
}

// Store loads the settings document once and writes it back after every mutation.
// It is safe for concurrent use; the last write wins.
type Store struct {
	kv  storage.KV
	key string
	log *slog.Logger

	mu       sync.RWMutex
	settings Settings
	hidden   *domain.Set
}

// Open loads settings from kv. Missing or unreadable content falls back to defaults.
func Open(ctx context.Context, kv storage.KV, key string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if key == "" {
		key = DefaultKey
	}
	s := &Store{kv: kv, key: key, log: log}

	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if ok && strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &s.settings); err != nil {
			log.Error("settings are corrupt, resetting", "key", key, "error", err)
			s.settings = Settings{}
		}
	}
	s.settings.fillDefaults()
	s.hidden = domain.NewSet(s.settings.HiddenDomains...)
	s.settings.HiddenDomains = s.hidden.Sorted()
	return s, nil
}

// Snapshot returns a deep copy of the current settings.
func (s *Store) Snapshot() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := s.settings
	cp.HiddenDomains = append([]string(nil), s.settings.HiddenDomains...)
	cp.LogsDomainDescriptions = maps.Clone(s.settings.LogsDomainDescriptions)
	cp.AllowlistDescriptions = maps.Clone(s.settings.AllowlistDescriptions)
	cp.DenylistDescriptions = maps.Clone(s.settings.DenylistDescriptions)
	cp.PrivacyBlocklistsCounters = maps.Clone(s.settings.PrivacyBlocklistsCounters)
	return cp
}

// IsHidden reports whether the domain was hidden by the user.
func (s *Store) IsHidden(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hidden.Has(name)
}

// HiddenCount returns the number of hidden domains.
func (s *Store) HiddenCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hidden.Len()
}

// HideDomain adds name to the hidden set and saves. Hiding twice is a no-op.
func (s *Store) HideDomain(ctx context.Context, name string) error {
	s.mu.Lock()
	if !s.hidden.Add(name) {
		s.mu.Unlock()
		return nil
	}
	s.settings.HiddenDomains = s.hidden.Sorted()
	s.mu.Unlock()
	return s.Save(ctx)
}

// ResetHidden empties the hidden set and saves.
func (s *Store) ResetHidden(ctx context.Context) error {
	s.mu.Lock()
	s.hidden = domain.NewSet()
	s.settings.HiddenDomains = []string{}
	s.mu.Unlock()
	return s.Save(ctx)
}

// Description returns the note stored for name in the given scope.
func (s *Store) Description(scope Scope, name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.descriptions(scope)[domain.Normalize(name)]
}

// SetDescription stores a trimmed note for name; an empty note deletes it.
func (s *Store) SetDescription(ctx context.Context, scope Scope, name, text string) error {
	key := domain.Normalize(name)
	if key == "" {
		return fmt.Errorf("empty domain")
	}
	text = strings.TrimSpace(text)

	s.mu.Lock()
	store := s.descriptions(scope)
	if store == nil {
		s.mu.Unlock()
		return fmt.Errorf("unknown description scope %q", scope)
	}
	if text == "" {
		delete(store, key)
	} else {
		store[key] = text
	}
	s.mu.Unlock()
	return s.Save(ctx)
}

// Counter returns the cached entry count shown next to a privacy blocklist.
func (s *Store) Counter(blocklistID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.settings.PrivacyBlocklistsCounters[blocklistID]; ok {
		return v
	}
	return "0"
}

// SetCounter caches the displayed count of a privacy blocklist.
func (s *Store) SetCounter(ctx context.Context, blocklistID, value string) error {
	s.mu.Lock()
	s.settings.PrivacyBlocklistsCounters[blocklistID] = value
	s.mu.Unlock()
	return s.Save(ctx)
}

// SetSortLists toggles A-Z ordering on the allow and deny list pages.
func (s *Store) SetSortLists(ctx context.Context, on bool) error {
	s.mu.Lock()
	s.settings.SortListsAZ = on
	s.mu.Unlock()
	return s.Save(ctx)
}

// SetSortBlocklists toggles A-Z ordering in the privacy blocklist picker.
func (s *Store) SetSortBlocklists(ctx context.Context, on bool) error {
	s.mu.Lock()
	s.settings.SortBlocklistsAZ = on
	s.mu.Unlock()
	return s.Save(ctx)
}

// SetDebug toggles verbose logging for the observation engine.
func (s *Store) SetDebug(ctx context.Context, on bool) error {
	s.mu.Lock()
	s.settings.DebugMode = on
	s.mu.Unlock()
	return s.Save(ctx)
}

// Save writes the current document.
func (s *Store) Save(ctx context.Context) error {
	s.mu.RLock()
	data, err := json.Marshal(s.settings)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := s.kv.Put(ctx, s.key, string(data)); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (s *Store) descriptions(scope Scope) map[string]string {
	switch scope {
	case ScopeLogs:
		return s.settings.LogsDomainDescriptions
	case ScopeAllowlist:
		return s.settings.AllowlistDescriptions
	case ScopeDenylist:
		return s.settings.DenylistDescriptions
	}
	return nil
}

// Scope selects one of the description maps.
type Scope string

const (
	ScopeLogs      Scope = "logs"
	ScopeAllowlist Scope = "allowlist"
	ScopeDenylist  Scope = "denylist"
)
