package allocator

// DefaultMaxIterations bounds the k-means refinement loop.
const DefaultMaxIterations = 300

// Point is a location in the plane.
type Point struct {
	X, Y float64
}

func dist2(a, b Point) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return dx*dx + dy*dy
}

// KMeans partitions points into k clusters and returns each point's
// cluster label. It is fully deterministic: seeding starts from the first
// point and repeatedly adds the point farthest from every chosen centroid,
// ties go to the lowest index, and empty clusters are refilled with the
// point farthest from its own centroid. With k <= len(points) every cluster
// is non-empty on return.
func KMeans(points []Point, k, maxIter int) []int {
	n := len(points)
	if n == 0 || k <= 0 {
		return nil
	}
	if k > n {
		k = n
	}
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	centroids := seed(points, k)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, p := range points {
			best := nearest(centroids, p)
			if best != labels[i] {
				labels[i] = best
				changed = true
			}
		}

		repaired := repair(points, centroids, labels, k)
		centroids = recompute(points, labels, k)

		if !changed && !repaired {
			break
		}
	}
	return labels
}

func seed(points []Point, k int) []Point {
	centroids := []Point{points[0]}
	minDist := make([]float64, len(points))
	for i, p := range points {
		minDist[i] = dist2(p, points[0])
	}

	for len(centroids) < k {
		far := 0
		for i := range points {
			if minDist[i] > minDist[far] {
				far = i
			}
		}
		c := points[far]
		centroids = append(centroids, c)
		for i, p := range points {
			if d := dist2(p, c); d < minDist[i] {
				minDist[i] = d
			}
		}
	}
	return centroids
}

func nearest(centroids []Point, p Point) int {
	best := 0
	bestDist := dist2(p, centroids[0])
	for c := 1; c < len(centroids); c++ {
		if d := dist2(p, centroids[c]); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// repair moves points into empty clusters. It reports whether any label
// changed.
func repair(points, centroids []Point, labels []int, k int) bool {
	sizes := make([]int, k)
	for _, l := range labels {
		sizes[l]++
	}

	repaired := false
	for c := 0; c < k; c++ {
		if sizes[c] > 0 {
			continue
		}
		donor := -1
		var donorDist float64
		for i, p := range points {
			if sizes[labels[i]] < 2 {
				continue
			}
			d := dist2(p, centroids[labels[i]])
			if donor == -1 || d > donorDist {
				donor, donorDist = i, d
			}
		}
		if donor == -1 {
			break
		}
		sizes[labels[donor]]--
		labels[donor] = c
		sizes[c]++
		repaired = true
	}
	return repaired
}

func recompute(points []Point, labels []int, k int) []Point {
	sums := make([]Point, k)
	counts := make([]int, k)
	for i, p := range points {
		l := labels[i]
		sums[l].X += p.X
		sums[l].Y += p.Y
		counts[l]++
	}

	out := make([]Point, k)
	for c := range out {
		if counts[c] > 0 {
			out[c] = Point{X: sums[c].X / float64(counts[c]), Y: sums[c].Y / float64(counts[c])}
		}
	}
	return out
}
