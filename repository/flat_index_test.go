package repository

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatIndex_AddRejectsWrongDimension(t *testing.T) {
	index, err := NewFlatIndex(3)
	require.NoError(t, err)

	err = index.Add([][]float32{{1, 2}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 0, index.Count())
}

func TestFlatIndex_SearchSingleVector(t *testing.T) {
	index, err := NewFlatIndex(4)
	require.NoError(t, err)
	require.NoError(t, index.Add([][]float32{{0.1, 0.2, 0.3, 0.4}}))

	hits, err := index.Search([]float32{0.1, 0.2, 0.3, 0.4}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 0, hits[0].ID)
	assert.InDelta(t, 0.0, hits[0].Distance, 1e-9)
}

func TestFlatIndex_SearchOrdersBySquaredDistance(t *testing.T) {
	index, err := NewFlatIndex(2)
	require.NoError(t, err)
	require.NoError(t, index.Add([][]float32{
		{10, 10}, // far
		{1, 1},   // nearest
		{2, 2},
	}))

	hits, err := index.Search([]float32{1, 1}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 1, hits[0].ID)
	assert.Equal(t, 2, hits[1].ID)
	assert.InDelta(t, 0.0, hits[0].Distance, 1e-9)
	assert.InDelta(t, 2.0, hits[1].Distance, 1e-6)
}

func TestFlatIndex_SearchTiesBreakTowardLowerID(t *testing.T) {
	index, err := NewFlatIndex(2)
	require.NoError(t, err)
	require.NoError(t, index.Add([][]float32{
		{0, 2},
		{2, 0},
	}))

	hits, err := index.Search([]float32{0, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, hits[0].ID)
	assert.Equal(t, 1, hits[1].ID)
}

func TestFlatIndex_SearchEmptyIndex(t *testing.T) {
	index, err := NewFlatIndex(2)
	require.NoError(t, err)

	_, err = index.Search([]float32{0, 0}, 1)
	assert.ErrorIs(t, err, ErrEmptyIndex)
}

func TestFlatIndex_SearchRejectsWrongQueryDimension(t *testing.T) {
	index, err := NewFlatIndex(2)
	require.NoError(t, err)
	require.NoError(t, index.Add([][]float32{{1, 2}}))

	_, err = index.Search([]float32{1, 2, 3}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestFlatIndex_SaveLoadRoundTrip(t *testing.T) {
	index, err := NewFlatIndex(3)
	require.NoError(t, err)
	require.NoError(t, index.Add([][]float32{
		{0.25, -1.5, 3.75},
		{1, 2, 3},
	}))

	path := filepath.Join(t.TempDir(), "corpus.index")
	require.NoError(t, index.Save(path))

	loaded, err := LoadFlatIndex(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Dimension())
	assert.Equal(t, 2, loaded.Count())

	hits, err := loaded.Search([]float32{0.25, -1.5, 3.75}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 0, hits[0].ID)
	assert.InDelta(t, 0.0, hits[0].Distance, 1e-9)
}

func TestLoadFlatIndex_RejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-an-index")
	require.NoError(t, os.WriteFile(path, []byte("definitely not an index file"), 0644))

	_, err := LoadFlatIndex(path)
	assert.Error(t, err)
}
