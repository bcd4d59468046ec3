package calibration

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LucasStrand/no-bulls-hit/board"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "calibration.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRecord() *Record {
	rec := &Record{
		ImagePoints: [4]ImagePoint{
			{X: 612, Y: 141}, {X: 1034, Y: 402}, {X: 598, Y: 701}, {X: 217, Y: 433},
		},
		WorldPoints: board.ReferencePoints(),
		Source:      SourceDimensions{Width: 1280, Height: 720},
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
	for i := range rec.Matrix {
		rec.Matrix[i] = float64(i) + 0.5
	}
	return rec
}

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	rec := sampleRecord()
	require.NoError(t, store.Save(rec))

	got, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.ImagePoints, got.ImagePoints)
	assert.Equal(t, rec.WorldPoints, got.WorldPoints)
	assert.Equal(t, rec.Matrix, got.Matrix)
	assert.Equal(t, rec.Source, got.Source)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
}

func TestStoreLoadEmpty(t *testing.T) {
	store := newTestStore(t)
	rec, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestStoreSaveReplaces(t *testing.T) {
	store := newTestStore(t)
	first := sampleRecord()
	require.NoError(t, store.Save(first))

	second := sampleRecord()
	second.Source = SourceDimensions{Width: 1920, Height: 1080}
	require.NoError(t, store.Save(second))

	got, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.Source, got.Source)
}

func TestStoreDelete(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(sampleRecord()))
	require.NoError(t, store.Delete())

	rec, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, rec)

	// Deleting again is harmless.
	assert.NoError(t, store.Delete())
}
