package spatial

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buglovic/AU-pre-event-Elements-extraction/internal/models"
)

// square builds a closed square ring polygon from its lower-left corner.
func square(x, y, size float64) models.Geometry {
	return models.NewGeometry(orb.Polygon{
		{{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y}},
	})
}

func TestIntersects(t *testing.T) {
	tests := []struct {
		name string
		a    models.Geometry
		b    models.Geometry
		want IntersectResult
	}{
		{
			name: "overlapping squares",
			a:    square(0, 0, 1),
			b:    square(0.5, 0.5, 1),
			want: Intersecting,
		},
		{
			name: "disjoint squares",
			a:    square(0, 0, 1),
			b:    square(5, 5, 1),
			want: Disjoint,
		},
		{
			name: "shared edge only",
			a:    square(0, 0, 1),
			b:    square(1, 0, 1),
			want: Intersecting,
		},
		{
			name: "shared corner only",
			a:    square(0, 0, 1),
			b:    square(1, 1, 1),
			want: Intersecting,
		},
		{
			name: "contained square",
			a:    square(0, 0, 10),
			b:    square(4, 4, 1),
			want: Intersecting,
		},
		{
			name: "containing square",
			a:    square(4, 4, 1),
			b:    square(0, 0, 10),
			want: Intersecting,
		},
		{
			name: "empty geometry",
			a:    models.Geometry{},
			b:    square(0, 0, 1),
			want: Invalid,
		},
		{
			name: "degenerate ring",
			a:    models.NewGeometry(orb.Polygon{{{0, 0}, {1, 1}}}),
			b:    square(0, 0, 1),
			want: Invalid,
		},
		{
			name: "same bbox but disjoint shapes",
			a:    models.NewGeometry(orb.Polygon{{{0, 0}, {10, 0}, {0, 10}, {0, 0}}}),
			b:    square(8, 8, 1),
			want: Disjoint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Intersects(tt.a, tt.b))
		})
	}
}

func TestIntersects_Deterministic(t *testing.T) {
	a := square(0, 0, 1)
	b := square(0.25, 0.25, 1)

	first := Intersects(a, b)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Intersects(a, b))
	}
}

func TestIntersectionArea(t *testing.T) {
	t.Run("quarter overlap", func(t *testing.T) {
		area, err := IntersectionArea(square(0, 0, 1), square(0.5, 0.5, 1))
		require.NoError(t, err)
		assert.InDelta(t, 0.25, area, 1e-9)
	})

	t.Run("disjoint", func(t *testing.T) {
		area, err := IntersectionArea(square(0, 0, 1), square(5, 5, 1))
		require.NoError(t, err)
		assert.Zero(t, area)
	})

	t.Run("full containment", func(t *testing.T) {
		area, err := IntersectionArea(square(0, 0, 10), square(2, 2, 1))
		require.NoError(t, err)
		assert.InDelta(t, 1.0, area, 1e-9)
	})

	t.Run("invalid geometry", func(t *testing.T) {
		_, err := IntersectionArea(models.Geometry{}, square(0, 0, 1))
		assert.Error(t, err)
	})
}

func TestUnionAll(t *testing.T) {
	t.Run("disjoint squares keep total area", func(t *testing.T) {
		union, err := UnionAll([]models.Geometry{square(0, 0, 1), square(5, 5, 1)})
		require.NoError(t, err)
		require.False(t, union.IsEmpty())

		area, err := IntersectionArea(union, square(-10, -10, 30))
		require.NoError(t, err)
		assert.InDelta(t, 2.0, area, 1e-9)
	})

	t.Run("overlapping squares merge", func(t *testing.T) {
		union, err := UnionAll([]models.Geometry{square(0, 0, 1), square(0.5, 0, 1)})
		require.NoError(t, err)

		area, err := IntersectionArea(union, square(-10, -10, 30))
		require.NoError(t, err)
		assert.InDelta(t, 1.5, area, 1e-9)
	})

	t.Run("skips empty members", func(t *testing.T) {
		union, err := UnionAll([]models.Geometry{{}, square(0, 0, 1)})
		require.NoError(t, err)
		assert.False(t, union.IsEmpty())
	})

	t.Run("no usable members yields empty", func(t *testing.T) {
		union, err := UnionAll([]models.Geometry{{}, {}})
		require.NoError(t, err)
		assert.True(t, union.IsEmpty())
	})

	t.Run("empty input yields empty", func(t *testing.T) {
		union, err := UnionAll(nil)
		require.NoError(t, err)
		assert.True(t, union.IsEmpty())
	})
}

func TestFilter(t *testing.T) {
	aoi := square(0, 0, 10)

	type feature struct {
		id   string
		geom models.Geometry
	}

	features := []feature{
		{id: "inside", geom: square(1, 1, 2)},
		{id: "outside", geom: square(50, 50, 1)},
		{id: "touching", geom: square(10, 0, 1)},
		{id: "invalid", geom: models.Geometry{}},
		{id: "straddling", geom: square(9, 9, 5)},
	}

	kept, stats := Filter(features, func(f feature) models.Geometry { return f.geom }, aoi)

	require.Len(t, kept, 3)
	// Input order must be preserved.
	assert.Equal(t, "inside", kept[0].id)
	assert.Equal(t, "touching", kept[1].id)
	assert.Equal(t, "straddling", kept[2].id)

	assert.Equal(t, 5, stats.Input)
	assert.Equal(t, 3, stats.Kept)
	assert.Equal(t, 2, stats.Dropped)
	assert.Equal(t, 1, stats.Invalid)
}

func TestFilter_EmptyInput(t *testing.T) {
	kept, stats := Filter(nil, func(g models.Geometry) models.Geometry { return g }, square(0, 0, 1))
	assert.Empty(t, kept)
	assert.Zero(t, stats.Input)
}
