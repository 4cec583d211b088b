package varfont

import "math"

// iupTolerance is the maximum difference in font units between an omitted delta and its interpolated value.
const iupTolerance = 0.5

type vec2 struct {
	X, Y float64
}

// iupSegment interpolates the deltas of the points between two reference points, per coordinate. Points outside the references' range take the delta of the nearest reference. When both references share a coordinate, the points get their delta if the deltas are equal and zero otherwise.
func iupSegment(dst []vec2, coords []vec2, c1, d1, c2, d2 vec2) {
	interp := func(x, x1, x2, v1, v2 float64) float64 {
		if x1 == x2 {
			if v1 == v2 {
				return v1
			}
			return 0
		} else if x2 < x1 {
			x1, x2, v1, v2 = x2, x1, v2, v1
		}
		if x <= x1 {
			return v1
		} else if x2 <= x {
			return v2
		}
		return v1 + (x-x1)*(v2-v1)/(x2-x1)
	}
	for i, c := range coords {
		dst[i] = vec2{
			interp(c.X, c1.X, c2.X, d1.X, d2.X),
			interp(c.Y, c1.Y, c2.Y, d1.Y, d2.Y),
		}
	}
}

// iupContour returns the deltas of a closed contour where only the points with known set have explicit deltas. Without any explicit delta all deltas are zero.
func iupContour(deltas, coords []vec2, known []bool) []vec2 {
	n := len(deltas)
	out := make([]vec2, n)
	var refs []int
	for i := range deltas {
		if known[i] {
			refs = append(refs, i)
			out[i] = deltas[i]
		}
	}
	if len(refs) == 0 {
		return out
	}

	// points after the last reference wrap around to the first
	for k, ref := range refs {
		next := refs[(k+1)%len(refs)]
		if k+1 == len(refs) {
			// wrapping segment, from the last reference to the end, then from the start to the first reference
			if ref+1 < n {
				iupSegment(out[ref+1:], coords[ref+1:], coords[ref], deltas[ref], coords[next], deltas[next])
			}
			if 0 < next {
				iupSegment(out[:next], coords[:next], coords[ref], deltas[ref], coords[next], deltas[next])
			}
		} else if ref+1 < next {
			iupSegment(out[ref+1:next], coords[ref+1:next], coords[ref], deltas[ref], coords[next], deltas[next])
		}
	}
	return out
}

func withinTolerance(a, b vec2) bool {
	return math.Hypot(a.X-b.X, a.Y-b.Y) <= iupTolerance
}

// iupOptimizeContour returns which points of a contour need an explicit delta so that interpolation reproduces all deltas within the tolerance.
func iupOptimizeContour(deltas, coords []vec2) []bool {
	n := len(deltas)
	known := make([]bool, n)
	zero := true
	for _, d := range deltas {
		if !withinTolerance(d, vec2{}) {
			zero = false
			break
		}
	}
	if zero {
		return known
	} else if n == 1 {
		known[0] = true
		return known
	}

	same := true
	for _, d := range deltas[1:] {
		if d != deltas[0] {
			same = false
			break
		}
	}
	if same {
		known[0] = true
		return known
	}

	for i := range known {
		known[i] = true
	}
	for i := range known {
		known[i] = false
		interp := iupContour(deltas, coords, known)
		for j := range deltas {
			if !withinTolerance(interp[j], deltas[j]) {
				known[i] = true
				break
			}
		}
	}
	return known
}

// iupOptimize returns the point numbers that need an explicit delta, given the contour end points. It returns nil when all points are needed, and an empty slice when none are.
func iupOptimize(deltas, coords []vec2, endPoints []int) []uint16 {
	points := []uint16{}
	start := 0
	for _, end := range endPoints {
		known := iupOptimizeContour(deltas[start:end+1], coords[start:end+1])
		for i, ok := range known {
			if ok {
				points = append(points, uint16(start+i))
			}
		}
		start = end + 1
	}
	if len(points) == len(deltas) {
		return nil
	}
	return points
}

// iupInfer returns the deltas of all points of a glyph given the explicit deltas of a subset of points. Unreferenced points are interpolated within their contour, so that single-point contours such as phantom points get no delta.
func iupInfer(points []uint16, x, y []int16, coords []vec2, endPoints []int) []vec2 {
	deltas := make([]vec2, len(coords))
	known := make([]bool, len(coords))
	if points == nil {
		for i := range deltas {
			deltas[i] = vec2{float64(x[i]), float64(y[i])}
		}
		return deltas
	}
	for i, p := range points {
		if int(p) < len(deltas) {
			deltas[p] = vec2{float64(x[i]), float64(y[i])}
			known[p] = true
		}
	}
	start := 0
	for _, end := range endPoints {
		copy(deltas[start:end+1], iupContour(deltas[start:end+1], coords[start:end+1], known[start:end+1]))
		start = end + 1
	}
	return deltas
}
