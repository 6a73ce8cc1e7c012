package nextdns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHexEncode(t *testing.T) {
	assert.Equal(t, "6578616d706c652e636f6d", HexEncode("example.com"))
	assert.Equal(t, "", HexEncode(""))
	// Code units below 0x10 are not padded.
	assert.Equal(t, "9", HexEncode("\t"))
	// Non-BMP characters are encoded as surrogate pairs.
	assert.Equal(t, "d83dde00", HexEncode("\U0001F600"))
}

func TestItemPath(t *testing.T) {
	assert.Equal(t, "denylist/hex:612e636f", ItemPath(Denylist, "a.co"))
}

func TestProfileFromLocation(t *testing.T) {
	profile, err := ProfileFromLocation("https://my.nextdns.io/abc123/logs?q=1")
	require.NoError(t, err)
	assert.Equal(t, "abc123", profile)

	_, err = ProfileFromLocation("https://my.nextdns.io/")
	assert.Error(t, err)
}

func TestParseList(t *testing.T) {
	list, err := ParseList("Deny")
	require.NoError(t, err)
	assert.Equal(t, Denylist, list)

	list, err = ParseList("allowlist")
	require.NoError(t, err)
	assert.Equal(t, Allowlist, list)

	_, err = ParseList("privacy")
	assert.Error(t, err)
}

func TestAccepted(t *testing.T) {
	assert.True(t, Accepted(`{"data":{"id":"a.com"}}`))
	assert.True(t, Accepted(`{"errors":[{"code":"duplicate"}]}`))
	assert.True(t, Accepted(`{"errors":[{"code":"conflict"}]}`))
	assert.False(t, Accepted(`{"errors":[{"code":"invalid"}]}`))
	assert.False(t, Accepted(`{"errors":[{"code":"duplicate"},{"code":"invalid"}]}`))
	assert.True(t, Accepted(`{"data":{"id":"error-tracker.example.com","active":true}}`))
	assert.True(t, Accepted(`{"data":{"id":"conflict-errors.example.com"}}`))
	assert.True(t, Accepted(`{"errors":[]}`))
	assert.True(t, Accepted(``))
}
