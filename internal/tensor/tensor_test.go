package tensor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataType(t *testing.T) {
	assert.Equal(t, 4, Float32.Size())
	assert.Equal(t, 8, Float64.Size())
	assert.Equal(t, "float32", Float32.String())
	assert.Equal(t, "float64", Float64.String())
	assert.Equal(t, Float32, inferDataType(float32(0)))
	assert.Equal(t, Float64, inferDataType(float64(0)))
}

func TestShape(t *testing.T) {
	s := Shape{2, 3, 4}
	assert.Equal(t, 24, s.NumElements())
	assert.Equal(t, 1, Shape{}.NumElements())
	assert.Equal(t, []int{12, 4, 1}, s.ComputeStrides())
	assert.True(t, s.Equal(s.Clone()))
	assert.False(t, s.Equal(Shape{2, 3}))
	assert.Equal(t, 2, s.NormalizeDim(-1))
	assert.Panics(t, func() { s.NormalizeDim(3) })

	require.Error(t, Shape{2, 0}.Validate())
	require.NoError(t, Shape{}.Validate())
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		a, b      Shape
		want      Shape
		broadcast bool
		wantErr   bool
	}{
		{Shape{3, 1}, Shape{3, 5}, Shape{3, 5}, true, false},
		{Shape{3, 5}, Shape{3, 5}, Shape{3, 5}, false, false},
		{Shape{5}, Shape{3, 5}, Shape{3, 5}, true, false},
		{Shape{1, 4, 1, 1}, Shape{2, 4, 3, 3}, Shape{2, 4, 3, 3}, true, false},
		{Shape{3, 4}, Shape{3, 5}, nil, false, true},
	}

	for _, tt := range tests {
		got, broadcast, err := BroadcastShapes(tt.a, tt.b)
		if tt.wantErr {
			assert.Error(t, err, "%v vs %v", tt.a, tt.b)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.broadcast, broadcast, "%v vs %v", tt.a, tt.b)
	}
}

func TestRawTensor(t *testing.T) {
	raw, err := NewRaw(Shape{2, 3}, Float32, CPU)
	require.NoError(t, err)
	assert.Equal(t, 24, raw.ByteSize())
	assert.Len(t, raw.AsFloat32(), 6)
	assert.Panics(t, func() { raw.AsFloat64() })

	raw.AsFloat32()[4] = 2.5
	clone := raw.Clone()
	clone.AsFloat32()[4] = 7
	assert.InDelta(t, 2.5, raw.AsFloat32()[4], 0)

	view, err := raw.WithShape(Shape{3, 2})
	require.NoError(t, err)
	assert.Equal(t, Shape{3, 2}, view.Shape())
	assert.Equal(t, []int{2, 1}, view.Strides())
	assert.Equal(t, []float64{0, 0, 0, 0, 2.5, 0}, view.Float64s())

	_, err = raw.WithShape(Shape{4})
	require.Error(t, err)

	_, err = NewRaw(Shape{-1}, Float32, CPU)
	require.Error(t, err)
}

func TestBins(t *testing.T) {
	tests := []struct {
		n, bins int
		edges   []int
	}{
		{9, 6, []int{0, 1, 3, 4, 6, 7, 9}},
		{4, 2, []int{0, 2, 4}},
		{5, 2, []int{0, 2, 5}},
		{7, 7, []int{0, 1, 2, 3, 4, 5, 6, 7}},
		{6, 1, []int{0, 6}},
	}

	for _, tt := range tests {
		if diff := cmp.Diff(tt.edges, Bins(tt.n, tt.bins)); diff != "" {
			t.Errorf("Bins(%d, %d) mismatch (-want +got):\n%s", tt.n, tt.bins, diff)
		}
	}

	assert.Panics(t, func() { Bins(3, 0) })
	assert.Panics(t, func() { Bins(3, 4) })
}

func TestBins_FractionalShrinkPartition(t *testing.T) {
	// A 9-wide row shrunk by 1.5 yields 6 bins with sizes 1,2,1,2,1,2.
	bins := ShrinkBins(9, 1.5)
	require.Equal(t, 6, bins)

	edges := Bins(9, bins)
	sizes := make([]int, bins)
	for i := range sizes {
		sizes[i] = edges[i+1] - edges[i]
	}
	assert.Equal(t, []int{1, 2, 1, 2, 1, 2}, sizes)
	assert.Equal(t, []int{0, 1, 1, 2, 3, 3, 4, 5, 5}, BinIndex(9, bins))
}

func TestShrinkBins(t *testing.T) {
	assert.Equal(t, 3, ShrinkBins(6, 2))
	assert.Equal(t, 3, ShrinkBins(5, 2)) // half rounds away from zero
	assert.Equal(t, 2, ShrinkBins(5, 3))
	assert.Equal(t, 0, ShrinkBins(1, 3))
	assert.Equal(t, 1, ShrinkBins(2, 3))
}
