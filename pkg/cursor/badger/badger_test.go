package badger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigwire/sigwire/pkg/cursor"
)

func newTestStore(t *testing.T, consumerID string) *Store {
	t.Helper()
	s, err := NewStore(&Config{
		Path:       t.TempDir(),
		ConsumerID: consumerID,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RequiresConsumerID(t *testing.T) {
	_, err := NewStore(&Config{Path: t.TempDir()})
	require.Error(t, err)
}

func TestStore_GetAdvanceClear(t *testing.T) {
	s := newTestStore(t, "consumer-1")

	got, err := s.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, cursor.Sentinel, got)

	require.NoError(t, s.Advance("s1", "10-1"))
	got, err = s.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, "10-1", got)

	// Rewind attempts clamp.
	require.NoError(t, s.Advance("s1", "9-5"))
	got, _ = s.Get("s1")
	assert.Equal(t, "10-1", got)

	require.NoError(t, s.Clear())
	got, err = s.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, cursor.Sentinel, got)
}

func TestStore_ConsumerNamespacing(t *testing.T) {
	dir := t.TempDir()

	s1, err := NewStore(&Config{Path: dir, ConsumerID: "c1"})
	require.NoError(t, err)
	require.NoError(t, s1.Advance("shared-stream", "5-0"))
	require.NoError(t, s1.Close())

	// Reopen the same database as another consumer: its view is empty.
	s2, err := NewStore(&Config{Path: dir, ConsumerID: "c2"})
	require.NoError(t, err)

	got, err := s2.Get("shared-stream")
	require.NoError(t, err)
	assert.Equal(t, cursor.Sentinel, got)

	// c2's clear does not touch c1's cursors.
	require.NoError(t, s2.Advance("shared-stream", "9-0"))
	require.NoError(t, s2.Clear())
	require.NoError(t, s2.Close())

	s1, err = NewStore(&Config{Path: dir, ConsumerID: "c1"})
	require.NoError(t, err)
	defer s1.Close()

	got, err = s1.Get("shared-stream")
	require.NoError(t, err)
	assert.Equal(t, "5-0", got)
}
