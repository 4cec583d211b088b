package varfont

import (
	"fmt"
	"math"
	"slices"
	"sort"
)

// AxisMapping maps a user coordinate to a design coordinate.
type AxisMapping struct {
	User, Design float64
}

// Axis is a design axis in user coordinates.
type Axis struct {
	Tag               Tag
	Name              string
	Min, Default, Max float64
	Hidden            bool

	// Map optionally maps user coordinates to design coordinates, piecewise linearly. It becomes the axis' avar segment map.
	Map []AxisMapping
}

// Validate checks the axis range and its mapping.
func (axis Axis) Validate() error {
	if math.IsNaN(axis.Min) || math.IsNaN(axis.Default) || math.IsNaN(axis.Max) || axis.Default < axis.Min || axis.Max < axis.Default {
		return fmt.Errorf("axis %v: min %v, default %v, max %v: %w", axis.Tag, axis.Min, axis.Default, axis.Max, ErrOutOfRange)
	}
	for i := 1; i < len(axis.Map); i++ {
		if axis.Map[i].User <= axis.Map[i-1].User || axis.Map[i].Design < axis.Map[i-1].Design {
			return fmt.Errorf("axis %v: mapping is not monotonic: %w", axis.Tag, ErrOutOfRange)
		}
	}
	return nil
}

// normalize maps a user coordinate to [-1,1] with the default at 0. It does not check the range.
func (axis Axis) normalize(v float64) float64 {
	return normalizeValue(v, axis.Min, axis.Default, axis.Max)
}

func normalizeValue(v, lower, dflt, upper float64) float64 {
	if v < dflt && lower < dflt {
		v = (v - dflt) / (dflt - lower)
	} else if dflt < v && dflt < upper {
		v = (v - dflt) / (upper - dflt)
	} else {
		v = 0
	}
	return math.Max(-1, math.Min(1, roundF2Dot14(v)))
}

func roundF2Dot14(v float64) float64 {
	return math.Round(v*(1<<14)) / (1 << 14)
}

// mapUser maps a user coordinate to a design coordinate.
func (axis Axis) mapUser(v float64) float64 {
	return piecewiseLinear(axis.Map, v, func(m AxisMapping) (float64, float64) { return m.User, m.Design })
}

func piecewiseLinear[T any](points []T, v float64, xy func(T) (float64, float64)) float64 {
	if len(points) == 0 {
		return v
	}
	x0, y0 := xy(points[0])
	if v <= x0 {
		return v - x0 + y0
	}
	for _, p := range points[1:] {
		x1, y1 := xy(p)
		if v <= x1 {
			return y0 + (v-x0)*(y1-y0)/(x1-x0)
		}
		x0, y0 = x1, y1
	}
	return v - x0 + y0
}

// Location is a position in the design space by axis tag.
type Location map[Tag]float64

func (loc Location) String() string {
	tags := make([]Tag, 0, len(loc))
	for tag := range loc {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Uint32() < tags[j].Uint32() })
	s := "{"
	for i, tag := range tags {
		if 0 < i {
			s += " "
		}
		s += fmt.Sprintf("%v=%v", tag, loc[tag])
	}
	return s + "}"
}

// Instance is a named location in user coordinates.
type Instance struct {
	Name           string // subfamily name
	PostScriptName string
	Location       Location
}

// Designspace is the set of axes with the named instances.
type Designspace struct {
	Axes      []Axis
	Instances []Instance
}

func (ds *Designspace) axisIndex(tag Tag) int {
	for i, axis := range ds.Axes {
		if axis.Tag == tag {
			return i
		}
	}
	return -1
}

// Validate checks every axis and that axis tags are unique.
func (ds *Designspace) Validate() error {
	if len(ds.Axes) == 0 {
		return fmt.Errorf("designspace has no axes")
	}
	for i, axis := range ds.Axes {
		if err := axis.Validate(); err != nil {
			return err
		} else if ds.axisIndex(axis.Tag) != i {
			return fmt.Errorf("axis %v defined twice", axis.Tag)
		}
	}
	return nil
}

// Normalize maps a user location to normalized coordinates for every axis: linear on [min,default] and [default,max], so that min, default and max map to -1, 0 and 1. Axes missing from the location are at their default. Coordinates are rounded to F2Dot14 precision.
func (ds *Designspace) Normalize(loc Location) (Location, error) {
	return ds.normalize(loc, false)
}

// InstanceLocation returns the normalized location of an instance. Coordinates outside the axis range fail, or are clamped to the range when clamp is set.
func (ds *Designspace) InstanceLocation(inst Instance, clamp bool) (Location, error) {
	return ds.normalize(inst.Location, clamp)
}

func (ds *Designspace) normalize(loc Location, clamp bool) (Location, error) {
	coords, err := ds.userCoords(loc, clamp)
	if err != nil {
		return nil, err
	}
	norm := make(Location, len(ds.Axes))
	for i, axis := range ds.Axes {
		norm[axis.Tag] = axis.normalize(coords[i])
	}
	return norm, nil
}

// userCoords returns the user coordinates of a location in axis order.
func (ds *Designspace) userCoords(loc Location, clamp bool) ([]float64, error) {
	coords := make([]float64, len(ds.Axes))
	for i, axis := range ds.Axes {
		coords[i] = axis.Default
	}
	for tag, v := range loc {
		i := ds.axisIndex(tag)
		if i == -1 {
			return nil, fmt.Errorf("axis %v: %w", tag, ErrAxisNotFound)
		}
		axis := ds.Axes[i]
		if v < axis.Min || axis.Max < v || math.IsNaN(v) {
			if !clamp || math.IsNaN(v) {
				return nil, fmt.Errorf("axis %v: coordinate %v outside [%v,%v]: %w", tag, v, axis.Min, axis.Max, ErrOutOfRange)
			}
			v = math.Max(axis.Min, math.Min(axis.Max, v))
		}
		coords[i] = v
	}
	return coords, nil
}

////////////////////////////////////////////////////////////////

// segmentMaps returns the avar segment map of every axis. An axis Map is normalized on both sides. Without a Map, intermediate masters on the axis, at locations where all other axes are at their default, are spaced evenly. Axes without either have the identity map.
func (ds *Designspace) segmentMaps(masters [][]float64) ([]AvarSegmentMap, error) {
	maps := make([]AvarSegmentMap, len(ds.Axes))
	for i, axis := range ds.Axes {
		var points [][2]float64
		if 0 < len(axis.Map) {
			lower, dflt, upper := axis.mapUser(axis.Min), axis.mapUser(axis.Default), axis.mapUser(axis.Max)
			for _, m := range axis.Map {
				if m.User < axis.Min || axis.Max < m.User {
					continue
				}
				points = append(points, [2]float64{axis.normalize(m.User), normalizeValue(m.Design, lower, dflt, upper)})
			}
		} else {
			points = onAxisSpacing(i, masters)
		}
		points = append(points, [2]float64{-1, -1}, [2]float64{0, 0}, [2]float64{1, 1})
		sort.SliceStable(points, func(a, b int) bool { return points[a][0] < points[b][0] })

		var segmentMap AvarSegmentMap
		for j, p := range points {
			if 0 < j && points[j-1][0] == p[0] {
				continue
			}
			from, err := F2Dot14FromFloat(p[0])
			if err != nil {
				return nil, err
			}
			to, err := F2Dot14FromFloat(p[1])
			if err != nil {
				return nil, err
			}
			segmentMap.AxisValueMaps = append(segmentMap.AxisValueMaps, AxisValueMap{from, to})
		}
		for j := 1; j < len(segmentMap.AxisValueMaps); j++ {
			if segmentMap.AxisValueMaps[j].ToCoordinate < segmentMap.AxisValueMaps[j-1].ToCoordinate {
				return nil, fmt.Errorf("axis %v: avar map is not monotonic: %w", axis.Tag, ErrOutOfRange)
			}
		}
		maps[i] = segmentMap
	}
	return maps, nil
}

// onAxisSpacing maps the normalized positions of intermediate masters that vary only axis i to evenly spaced positions.
func onAxisSpacing(i int, masters [][]float64) [][2]float64 {
	var pos, neg []float64
	for _, coords := range masters {
		onAxis := true
		for j, v := range coords {
			if j != i && v != 0 {
				onAxis = false
			}
		}
		if !onAxis {
			continue
		} else if v := coords[i]; 0 < v && v < 1 {
			pos = append(pos, v)
		} else if -1 < v && v < 0 {
			neg = append(neg, -v)
		}
	}

	var points [][2]float64
	for _, sign := range []float64{1, -1} {
		values := pos
		if sign < 0 {
			values = neg
		}
		sort.Float64s(values)
		values = slices.Compact(values)
		k := float64(len(values) + 1)
		for j, v := range values {
			points = append(points, [2]float64{sign * v, sign * float64(j+1) / k})
		}
	}
	return points
}
