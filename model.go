package varfont

import (
	"math"
	"sort"
)

// Tent is the support of a region on one axis, in normalized coordinates. The scalar rises linearly from Start to Peak and falls from Peak to End.
type Tent struct {
	Start, Peak, End float64
}

// Region is a tent per axis. Axes with a zero peak do not restrict the region.
type Region []Tent

// Scalar returns the weight of the region at the normalized coordinates.
func (r Region) Scalar(coords []float64) float64 {
	scalar := 1.0
	for i, tent := range r {
		if tent.Peak == 0 || tent.Peak < tent.Start || tent.End < tent.Peak || tent.Start < 0 && 0 < tent.End {
			continue
		}
		v := 0.0
		if i < len(coords) {
			v = coords[i]
		}
		if v == tent.Peak {
			continue
		} else if v <= tent.Start || tent.End <= v {
			return 0
		} else if v < tent.Peak {
			scalar *= (v - tent.Start) / (tent.Peak - tent.Start)
		} else {
			scalar *= (v - tent.End) / (tent.Peak - tent.End)
		}
	}
	return scalar
}

func (r Region) tuples() (peak, start, end []F2Dot14, err error) {
	peak = make([]F2Dot14, len(r))
	start = make([]F2Dot14, len(r))
	end = make([]F2Dot14, len(r))
	for i, tent := range r {
		if start[i], err = F2Dot14FromFloat(tent.Start); err != nil {
			return
		} else if peak[i], err = F2Dot14FromFloat(tent.Peak); err != nil {
			return
		} else if end[i], err = F2Dot14FromFloat(tent.End); err != nil {
			return
		}
	}
	return
}

func (r Region) coordinates() (VariationRegion, error) {
	peak, start, end, err := r.tuples()
	if err != nil {
		return VariationRegion{}, err
	}
	region := VariationRegion{
		RegionAxes: make([]RegionAxisCoordinates, len(r)),
	}
	for i := range r {
		region.RegionAxes[i] = RegionAxisCoordinates{start[i], peak[i], end[i]}
	}
	return region, nil
}

////////////////////////////////////////////////////////////////

// variationModel derives a region for every master location and the weights with which the deltas of earlier regions contribute at each master.
type variationModel struct {
	order     []int       // master indices, default master first
	locations [][]float64 // normalized master locations in model order
	regions   []Region    // region of every master in model order, the first is empty
	weights   [][]weight  // contributions of earlier regions at each master
}

type weight struct {
	region int
	scalar float64
}

func newVariationModel(locations [][]float64) (*variationModel, error) {
	numAxes := 0
	if 0 < len(locations) {
		numAxes = len(locations[0])
	}

	// the values of single-axis masters
	axisPoints := make([]map[float64]bool, numAxes)
	for _, loc := range locations {
		if axis, ok := singleAxis(loc); ok {
			if axisPoints[axis] == nil {
				axisPoints[axis] = map[float64]bool{0: true}
			}
			axisPoints[axis][loc[axis]] = true
		}
	}
	type sortKey struct {
		rank, onPoint int
		axes          []int
		signs, abs    []float64
	}
	keys := make([]sortKey, len(locations))
	for i, loc := range locations {
		key := sortKey{}
		for axis, v := range loc {
			if v == 0 {
				continue
			}
			key.rank++
			if axisPoints[axis][v] {
				key.onPoint++
			}
			key.axes = append(key.axes, axis)
			key.signs = append(key.signs, sign(v))
			key.abs = append(key.abs, math.Abs(v))
		}
		keys[i] = key
	}

	m := &variationModel{
		order: make([]int, len(locations)),
	}
	for i := range m.order {
		m.order[i] = i
	}
	sort.SliceStable(m.order, func(i, j int) bool {
		a, b := keys[m.order[i]], keys[m.order[j]]
		if a.rank != b.rank {
			return a.rank < b.rank
		} else if a.onPoint != b.onPoint {
			return a.onPoint > b.onPoint
		} else if c := compareSlices(a.axes, b.axes); c != 0 {
			return c < 0
		} else if c := compareSlices(a.signs, b.signs); c != 0 {
			return c < 0
		}
		return compareSlices(a.abs, b.abs) < 0
	})
	if len(locations) == 0 || keys[m.order[0]].rank != 0 {
		return nil, ErrNoDefaultMaster
	} else if 1 < len(locations) && keys[m.order[1]].rank == 0 {
		return nil, ErrNoDefaultMaster
	}

	m.locations = make([][]float64, len(locations))
	for i, index := range m.order {
		m.locations[i] = locations[index]
	}
	m.regions = supports(m.locations, numAxes)
	m.weights = make([][]weight, len(m.locations))
	for i, loc := range m.locations {
		for j, region := range m.regions[:i] {
			if scalar := region.Scalar(loc); scalar != 0 {
				m.weights[i] = append(m.weights[i], weight{j, scalar})
			}
		}
	}
	return m, nil
}

func singleAxis(loc []float64) (int, bool) {
	axis := -1
	for i, v := range loc {
		if v != 0 {
			if axis != -1 {
				return 0, false
			}
			axis = i
		}
	}
	return axis, axis != -1
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	} else if 0 < v {
		return 1
	}
	return 0
}

func compareSlices[T int | float64](a, b []T) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] < b[i] {
			return -1
		} else if b[i] < a[i] {
			return 1
		}
	}
	return len(a) - len(b)
}

// supports returns the region of each master. Each region spans from the master to the extremes of all masters on its axes, and is then narrowed by the earlier masters with the same axes that lie inside it.
func supports(locations [][]float64, numAxes int) []Region {
	minV := make([]float64, numAxes)
	maxV := make([]float64, numAxes)
	for _, loc := range locations {
		for axis, v := range loc {
			minV[axis] = math.Min(minV[axis], v)
			maxV[axis] = math.Max(maxV[axis], v)
		}
	}

	regions := make([]Region, len(locations))
	for i, loc := range locations {
		region := make(Region, numAxes)
		for axis, v := range loc {
			if 0 < v {
				region[axis] = Tent{0, v, maxV[axis]}
			} else if v < 0 {
				region[axis] = Tent{minV[axis], v, 0}
			}
		}

		for _, prev := range locations[:i] {
			if !sameAxes(prev, loc) {
				continue
			}
			relevant := true
			for axis, tent := range region {
				if tent.Peak != 0 && !(prev[axis] == tent.Peak || tent.Start < prev[axis] && prev[axis] < tent.End) {
					relevant = false
					break
				}
			}
			if !relevant {
				continue
			}

			// split the box in the direction with the largest ratio
			bestRatio := -1.0
			best := map[int]Tent{}
			for axis, v := range prev {
				tent := region[axis]
				if v == 0 || v == tent.Peak {
					continue
				}
				ratio := 0.0
				split := tent
				if v < tent.Peak {
					split.Start = v
					ratio = (v - tent.Peak) / (tent.Start - tent.Peak)
				} else {
					split.End = v
					ratio = (v - tent.Peak) / (tent.End - tent.Peak)
				}
				if bestRatio < ratio {
					bestRatio = ratio
					best = map[int]Tent{}
				}
				if ratio == bestRatio {
					best[axis] = split
				}
			}
			for axis, tent := range best {
				region[axis] = tent
			}
		}
		regions[i] = region
	}
	return regions
}

func sameAxes(a, b []float64) bool {
	for i := range a {
		if (a[i] != 0) != (b[i] != 0) {
			return false
		}
	}
	return true
}

// deltas returns, for every master in model order, the deltas of its region. values holds a vector per master in the original master order. Deltas are rounded as they are computed, so that rounding errors of earlier regions are corrected by later ones.
func (m *variationModel) deltas(values [][]float64) [][]float64 {
	out := make([][]float64, len(m.order))
	for i, index := range m.order {
		delta := append([]float64{}, values[index]...)
		for _, w := range m.weights[i] {
			for k := range delta {
				delta[k] -= w.scalar * out[w.region][k]
			}
		}
		for k := range delta {
			delta[k] = otRound(delta[k])
		}
		out[i] = delta
	}
	return out
}

// otRound rounds half up.
func otRound(v float64) float64 {
	return math.Floor(v + 0.5)
}
