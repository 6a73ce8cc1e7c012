package settings

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nxenhance/pkg/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenDefaults(t *testing.T) {
	store, err := Open(context.Background(), storage.NewMemory(), "", quietLogger())
	require.NoError(t, err)

	snap := store.Snapshot()
	assert.Empty(t, snap.HiddenDomains)
	assert.NotNil(t, snap.LogsDomainDescriptions)
	assert.NotNil(t, snap.PrivacyBlocklistsCounters)
	assert.False(t, snap.SortListsAZ)
	assert.Equal(t, "0", store.Counter("oisd"))
}

func TestOpenCorruptResets(t *testing.T) {
	kv := storage.NewMemory()
	require.NoError(t, kv.Put(context.Background(), DefaultKey, "{not json"))

	store, err := Open(context.Background(), kv, DefaultKey, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 0, store.HiddenCount())
}

func TestHideDomainPersists(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	store, err := Open(ctx, kv, DefaultKey, quietLogger())
	require.NoError(t, err)

	require.NoError(t, store.HideDomain(ctx, "Ads.Example.com."))
	require.NoError(t, store.HideDomain(ctx, "ads.example.com"))
	assert.True(t, store.IsHidden("ads.example.com"))
	assert.Equal(t, 1, store.HiddenCount())

	reopened, err := Open(ctx, kv, DefaultKey, quietLogger())
	require.NoError(t, err)
	assert.True(t, reopened.IsHidden("ads.example.com"))

	require.NoError(t, reopened.ResetHidden(ctx))
	assert.False(t, reopened.IsHidden("ads.example.com"))

	raw, _, err := kv.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.Contains(t, raw, `"hiddenDomains":[]`)
}

func TestDescriptions(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, storage.NewMemory(), DefaultKey, quietLogger())
	require.NoError(t, err)

	require.NoError(t, store.SetDescription(ctx, ScopeLogs, "Tracker.net", "  analytics  "))
	assert.Equal(t, "analytics", store.Description(ScopeLogs, "tracker.net"))
	assert.Empty(t, store.Description(ScopeDenylist, "tracker.net"))

	require.NoError(t, store.SetDescription(ctx, ScopeLogs, "tracker.net", ""))
	assert.Empty(t, store.Description(ScopeLogs, "tracker.net"))

	assert.Error(t, store.SetDescription(ctx, Scope("other"), "a.com", "x"))
	assert.Error(t, store.SetDescription(ctx, ScopeLogs, "", "x"))
}

func TestFlagsAndCounters(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	store, err := Open(ctx, kv, DefaultKey, quietLogger())
	require.NoError(t, err)

	require.NoError(t, store.SetSortLists(ctx, true))
	require.NoError(t, store.SetSortBlocklists(ctx, true))
	require.NoError(t, store.SetDebug(ctx, true))
	require.NoError(t, store.SetCounter(ctx, "oisd", "1,234"))

	reopened, err := Open(ctx, kv, DefaultKey, quietLogger())
	require.NoError(t, err)
	snap := reopened.Snapshot()
	assert.True(t, snap.SortListsAZ)
	assert.True(t, snap.SortBlocklistsAZ)
	assert.True(t, snap.DebugMode)
	assert.Equal(t, "1,234", reopened.Counter("oisd"))
}

func TestSnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, storage.NewMemory(), DefaultKey, quietLogger())
	require.NoError(t, err)
	require.NoError(t, store.SetDescription(ctx, ScopeAllowlist, "a.com", "note"))

	snap := store.Snapshot()
	snap.AllowlistDescriptions["a.com"] = "changed"
	assert.Equal(t, "note", store.Description(ScopeAllowlist, "a.com"))
}
