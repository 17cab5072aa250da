package store

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	s := NewStore(db)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestStore_PutGetSessionRoundTrips(t *testing.T) {
	s := newTestStore(t)

	row := SessionRow{ID: "sess1", Status: "created", Settings: []byte(`{"currency":"USD"}`)}
	require.NoError(t, s.PutSession(context.Background(), row))

	got, err := s.GetSession(context.Background(), "sess1")
	require.NoError(t, err)
	require.Equal(t, "sess1", got.ID)
	require.Equal(t, "created", got.Status)
	require.False(t, got.UpdatedAt.IsZero())
}

func TestStore_GetSessionNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetSession(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_PutGetDataRoundTripsCompressed(t *testing.T) {
	s := newTestStore(t)

	type payload struct {
		Value string `json:"value"`
	}
	in := payload{Value: "hello"}
	require.NoError(t, s.PutData(context.Background(), "sess1", KindSegments, in))

	var out payload
	require.NoError(t, s.GetData(context.Background(), "sess1", KindSegments, &out))
	require.Equal(t, in, out)
}

func TestStore_GetDataNotFound(t *testing.T) {
	s := newTestStore(t)

	var out map[string]any
	err := s.GetData(context.Background(), "sess1", KindSegments, &out)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_PutDataOverwritesSameKind(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.PutData(context.Background(), "sess1", KindScore, map[string]int{"a": 1}))
	require.NoError(t, s.PutData(context.Background(), "sess1", KindScore, map[string]int{"a": 2}))

	var out map[string]int
	require.NoError(t, s.GetData(context.Background(), "sess1", KindScore, &out))
	require.Equal(t, 2, out["a"])
}
