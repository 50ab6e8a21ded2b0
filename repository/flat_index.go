package repository

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

var (
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrEmptyIndex        = errors.New("index contains no vectors")
)

// flatIndexMagic identifies the on-disk index format
var flatIndexMagic = [8]byte{'A', 'D', 'G', 'M', 'F', 'I', 'D', 'X'}

// FlatIndex is an exact nearest-neighbour index over fixed-dimension
// vectors. Search is a brute-force scan scored by squared Euclidean
// distance; vector ids are assigned by insertion order starting at 0.
type FlatIndex struct {
	dim     int
	vectors [][]float32
}

// NewFlatIndex creates an empty index for vectors of the given dimension
func NewFlatIndex(dim int) (*FlatIndex, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid index dimension %d", dim)
	}
	return &FlatIndex{dim: dim}, nil
}

// Dimension returns the vector dimension of the index
func (x *FlatIndex) Dimension() int {
	return x.dim
}

// Count returns the number of indexed vectors
func (x *FlatIndex) Count() int {
	return len(x.vectors)
}

// Add appends vectors to the index in order
func (x *FlatIndex) Add(vectors [][]float32) error {
	for _, v := range vectors {
		if len(v) != x.dim {
			return fmt.Errorf("%w: index dimension %d, vector dimension %d", ErrDimensionMismatch, x.dim, len(v))
		}
	}
	x.vectors = append(x.vectors, vectors...)
	return nil
}

// SearchHit is one nearest-neighbour result
type SearchHit struct {
	ID       int
	Distance float64
}

// Search returns the k nearest vectors to the query, nearest first. Ties
// break toward the lower id. Fewer than k hits are returned when the index
// holds fewer vectors.
func (x *FlatIndex) Search(query []float32, k int) ([]SearchHit, error) {
	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: index dimension %d, query dimension %d", ErrDimensionMismatch, x.dim, len(query))
	}
	if len(x.vectors) == 0 {
		return nil, ErrEmptyIndex
	}
	if k <= 0 {
		return nil, fmt.Errorf("invalid search k %d", k)
	}

	hits := make([]SearchHit, len(x.vectors))
	for i, v := range x.vectors {
		var dist float64
		for j := range v {
			d := float64(query[j]) - float64(v[j])
			dist += d * d
		}
		hits[i] = SearchHit{ID: i, Distance: dist}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Save writes the index to disk: magic, dimension, count, then the raw
// float32 vector data, all little-endian
func (x *FlatIndex) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.Write(flatIndexMagic[:]); err != nil {
		return fmt.Errorf("failed to write index header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(x.dim)); err != nil {
		return fmt.Errorf("failed to write index header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(x.vectors))); err != nil {
		return fmt.Errorf("failed to write index header: %w", err)
	}
	for _, v := range x.vectors {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("failed to write index vectors: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush index file: %w", err)
	}
	return nil
}

// LoadFlatIndex reads an index previously written by Save
func LoadFlatIndex(path string) (*FlatIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("failed to read index header: %w", err)
	}
	if magic != flatIndexMagic {
		return nil, fmt.Errorf("not a flat index file: %s", path)
	}

	var dim, count uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("failed to read index header: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("failed to read index header: %w", err)
	}
	if dim == 0 {
		return nil, fmt.Errorf("index file has zero dimension: %s", path)
	}

	index := &FlatIndex{dim: int(dim), vectors: make([][]float32, 0, count)}
	for i := uint32(0); i < count; i++ {
		v := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("failed to read index vector %d: %w", i, err)
		}
		index.vectors = append(index.vectors, v)
	}
	return index, nil
}
