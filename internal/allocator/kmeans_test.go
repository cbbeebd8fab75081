package allocator

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestKMeans_SeparatedClusters(t *testing.T) {
	points := []Point{
		{0, 0}, {1, 0}, {0, 1},
		{20, 20}, {21, 20},
		{0, 30}, {1, 31},
	}

	labels := KMeans(points, 3, 0)
	want := []int{0, 0, 0, 2, 2, 1, 1}
	if diff := cmp.Diff(want, labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
}

func TestKMeans_Deterministic(t *testing.T) {
	points := []Point{{3, 4}, {9, 1}, {2, 8}, {7, 7}, {5, 5}, {1, 1}}
	first := KMeans(points, 3, 0)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, KMeans(points, 3, 0))
	}
}

func TestKMeans_Degenerate(t *testing.T) {
	assert.Nil(t, KMeans(nil, 3, 0))
	assert.Nil(t, KMeans([]Point{{1, 1}}, 0, 0))

	t.Run("k larger than n", func(t *testing.T) {
		labels := KMeans([]Point{{1, 1}, {5, 5}}, 3, 0)
		assert.ElementsMatch(t, []int{0, 1}, labels)
	})

	t.Run("coincident points fill every cluster", func(t *testing.T) {
		points := []Point{{2, 2}, {2, 2}, {2, 2}, {2, 2}}
		labels := KMeans(points, 3, 10)
		sizes := make([]int, 3)
		for _, l := range labels {
			sizes[l]++
		}
		for c, n := range sizes {
			assert.Positive(t, n, "cluster %d is empty", c)
		}
	})
}

func TestKMeans_CoversEveryPoint(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 40).Draw(rt, "n")
		k := rapid.IntRange(1, 6).Draw(rt, "k")
		points := make([]Point, n)
		for i := range points {
			points[i] = Point{
				X: float64(rapid.IntRange(0, 15).Draw(rt, "x")),
				Y: float64(rapid.IntRange(0, 15).Draw(rt, "y")),
			}
		}

		labels := KMeans(points, k, 0)
		if len(labels) != n {
			rt.Fatalf("got %d labels for %d points", len(labels), n)
		}

		want := k
		if n < k {
			want = n
		}
		sizes := make([]int, want)
		for i, l := range labels {
			if l < 0 || l >= want {
				rt.Fatalf("point %d has label %d outside [0,%d)", i, l, want)
			}
			sizes[l]++
		}
		for c, size := range sizes {
			if size == 0 {
				rt.Fatalf("cluster %d is empty", c)
			}
		}
	})
}
