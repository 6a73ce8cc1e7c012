package nextdns

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nxenhance/internal/testutil"
)

type recordedSleep struct {
	waits []time.Duration
}

func (r *recordedSleep) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func newTestClient(stub *testutil.APIStub, sleeper *recordedSleep) *Client {
	return New(Options{
		BaseURL: stub.URL,
		Profile: stub.Profile,
		APIKey:  "key-123",
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Sleep:   sleeper.sleep,
		Jitter:  func() float64 { return 0 },
	})
}

func TestRequestSendsNoCacheHeadersAndCredentials(t *testing.T) {
	stub := testutil.StartAPIStub(t, "abc123")
	stub.SetResource("security", `{"threatIntelligenceFeeds":true}`)
	client := newTestClient(stub, &recordedSleep{})

	body, err := client.Request(context.Background(), http.MethodGet, "security", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{"threatIntelligenceFeeds":true}}`, body)

	calls := stub.Calls()
	require.Len(t, calls, 1)
	header := calls[0].Header
	assert.Equal(t, "no-cache, no-store, must-revalidate", header.Get("Cache-Control"))
	assert.Equal(t, "no-cache", header.Get("Pragma"))
	assert.Equal(t, "0", header.Get("Expires"))
	assert.Equal(t, "application/json", header.Get("Content-Type"))
	assert.Equal(t, "key-123", header.Get("X-Api-Key"))
}

func TestRequestRetriesRateLimitThenSucceeds(t *testing.T) {
	stub := testutil.StartAPIStub(t, "abc123")
	stub.Script(http.MethodPost, "denylist", testutil.Repeat(6, testutil.Reply{Status: http.StatusTooManyRequests})...)
	sleeper := &recordedSleep{}
	client := newTestClient(stub, sleeper)

	_, err := client.Request(context.Background(), http.MethodPost, "denylist", map[string]any{"id": "ads.example.com", "active": true})
	require.NoError(t, err)

	require.Len(t, sleeper.waits, 6)
	for i, wait := range sleeper.waits {
		assert.Equal(t, time.Duration(1<<i)*2500*time.Millisecond, wait, "wait %d", i)
	}
	assert.Equal(t, 7, stub.Count(http.MethodPost, "denylist"))
	for _, call := range stub.Calls() {
		assert.JSONEq(t, `{"id":"ads.example.com","active":true}`, call.Body)
	}
	assert.Equal(t, []string{"ads.example.com"}, stub.ListIDs("denylist"))
}

func TestRequestRateLimitExhausted(t *testing.T) {
	stub := testutil.StartAPIStub(t, "abc123")
	stub.Script(http.MethodGet, "denylist", testutil.Repeat(8, testutil.Reply{Status: http.StatusTooManyRequests})...)
	sleeper := &recordedSleep{}
	client := newTestClient(stub, sleeper)

	_, err := client.Request(context.Background(), http.MethodGet, "denylist", nil)
	require.ErrorIs(t, err, ErrRateLimitExhausted)
	assert.Len(t, sleeper.waits, 7)
	assert.Equal(t, 8, stub.Count(http.MethodGet, "denylist"))
}

func TestRequestUpgradeRequiredIsNotRetried(t *testing.T) {
	stub := testutil.StartAPIStub(t, "abc123")
	stub.Script(http.MethodGet, "privacy", testutil.Reply{Status: http.StatusUpgradeRequired})
	sleeper := &recordedSleep{}
	client := newTestClient(stub, sleeper)

	_, err := client.Request(context.Background(), http.MethodGet, "privacy", nil)
	require.ErrorIs(t, err, ErrUpgradeRequired)
	assert.Empty(t, sleeper.waits)
	assert.Equal(t, 1, stub.Count(http.MethodGet, "privacy"))
}

func TestRequestRemoteError(t *testing.T) {
	stub := testutil.StartAPIStub(t, "abc123")
	client := newTestClient(stub, &recordedSleep{})

	_, err := client.Request(context.Background(), http.MethodPut, "nowhere", nil)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusNotFound, remote.Status)
	assert.True(t, remote.NotFound())
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "notFound", remote.Code())
	assert.Equal(t, "notFound", ErrorText(err))
}

func TestRequestNetworkError(t *testing.T) {
	client := New(Options{
		BaseURL: "http://127.0.0.1:1",
		Profile: "abc123",
		Timeout: time.Second,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	_, err := client.Request(context.Background(), http.MethodGet, "security", nil)
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.False(t, IsNotFound(err))
}

func TestRequestStopsWhenContextEnds(t *testing.T) {
	stub := testutil.StartAPIStub(t, "abc123")
	stub.Script(http.MethodGet, "denylist", testutil.Reply{Status: http.StatusTooManyRequests})
	ctx, cancel := context.WithCancel(context.Background())
	client := New(Options{
		BaseURL: stub.URL,
		Profile: stub.Profile,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return Sleep(ctx, d)
		},
	})

	_, err := client.Request(ctx, http.MethodGet, "denylist", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRequestWithoutProfile(t *testing.T) {
	client := New(Options{})
	_, err := client.Request(context.Background(), http.MethodGet, "security", nil)
	require.Error(t, err)
	assert.Equal(t, "p2", client.WithProfile("p2").Profile())
}

type staticSession []*http.Cookie

func (s staticSession) SessionCookies(context.Context) ([]*http.Cookie, error) {
	return s, nil
}

func TestRequestForwardsSessionCookies(t *testing.T) {
	stub := testutil.StartAPIStub(t, "abc123")
	stub.SetResource("settings", `{}`)
	client := New(Options{
		BaseURL: stub.URL,
		Profile: stub.Profile,
		Origin:  "https://my.nextdns.io",
		Session: staticSession{{Name: "sid", Value: "s3cr3t"}},
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	_, err := client.Request(context.Background(), http.MethodGet, "settings", nil)
	require.NoError(t, err)
	header := stub.Calls()[0].Header
	assert.Contains(t, header.Get("Cookie"), "sid=s3cr3t")
	assert.Equal(t, "https://my.nextdns.io", header.Get("Origin"))
	assert.Empty(t, header.Get("X-Api-Key"))
}
