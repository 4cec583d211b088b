package varfont

import (
	"errors"
	"testing"

	"github.com/tdewolff/test"
)

func TestRegionScalar(t *testing.T) {
	var tests = []struct {
		region Region
		coords []float64
		scalar float64
	}{
		{Region{{0, 1, 1}}, []float64{1}, 1},
		{Region{{0, 1, 1}}, []float64{0.5}, 0.5},
		{Region{{0, 1, 1}}, []float64{0}, 0},
		{Region{{0, 1, 1}}, []float64{-0.5}, 0},
		{Region{{0, 0.5, 1}}, []float64{0.75}, 0.5},
		{Region{{-1, -1, 0}}, []float64{-0.25}, 0.25},
		{Region{{0, 1, 1}, {-1, -1, 0}}, []float64{0.5, -0.5}, 0.25},
		{Region{{0, 1, 1}, {}}, []float64{1, 0.7}, 1},   // zero peak does not restrict
		{Region{{-1, 0.5, 1}}, []float64{0.2}, 1},       // crossing zero is ignored
		{Region{{0.5, 0.2, 1}}, []float64{0.2}, 1},      // start beyond peak is ignored
		{Region{{0, 1, 1}, {0, 1, 1}}, []float64{1}, 0}, // missing coordinates are zero
		{Region{{0.5, 1, 1}}, []float64{0.5}, 0},
	}
	for i, tt := range tests {
		test.Float(t, tt.region.Scalar(tt.coords), tt.scalar, "case", i)
	}
}

func TestVariationModel(t *testing.T) {
	// default, wght=1, wdth=-1
	model, err := newVariationModel([][]float64{{0, 0}, {1, 0}, {0, -1}})
	test.Error(t, err)
	test.T(t, model.order, []int{0, 1, 2})
	test.T(t, model.regions, []Region{
		{{}, {}},
		{{0, 1, 1}, {}},
		{{}, {-1, -1, 0}},
	})

	deltas := model.deltas([][]float64{{100, 10}, {300, 10}, {50, 0}})
	test.T(t, deltas, [][]float64{{100, 10}, {200, 0}, {-50, -10}})
}

func TestVariationModelOrder(t *testing.T) {
	// masters listed out of order, with a corner and an intermediate master
	locations := [][]float64{
		{1, 1},
		{0, 1},
		{0.5, 0},
		{0, 0},
		{1, 0},
		{-1, 0},
	}
	model, err := newVariationModel(locations)
	test.Error(t, err)
	test.T(t, model.order, []int{3, 5, 2, 4, 1, 0})
	test.T(t, model.regions[1], Region{{-1, -1, 0}, {}})
	test.T(t, model.regions[2], Region{{0, 0.5, 1}, {}})
	test.T(t, model.regions[3], Region{{0.5, 1, 1}, {}})
	test.T(t, model.regions[4], Region{{}, {0, 1, 1}})
	test.T(t, model.regions[5], Region{{0, 1, 1}, {0, 1, 1}})

	// deltas reproduce the master values at every master
	values := [][]float64{{1000}, {400}, {150}, {0}, {300}, {-100}}
	deltas := model.deltas(values)
	for i, loc := range model.locations {
		v := 0.0
		for j, region := range model.regions {
			v += region.Scalar(loc) * deltas[j][0]
		}
		test.Float(t, v, values[model.order[i]][0])
	}
}

func TestVariationModelRounding(t *testing.T) {
	model, err := newVariationModel([][]float64{{0, 0}, {1, 0}, {0, 1}, {0.5, 1}})
	test.Error(t, err)

	// the corner delta is rounded after subtracting half of the weight delta
	deltas := model.deltas([][]float64{{0}, {5}, {0}, {3}})
	test.T(t, deltas, [][]float64{{0}, {5}, {0}, {1}})
	test.T(t, otRound(-0.5), 0.0)
	test.T(t, otRound(0.5), 1.0)
	test.T(t, otRound(-1.5), -1.0)
}

func TestVariationModelNoDefault(t *testing.T) {
	_, err := newVariationModel([][]float64{{1}, {-1}})
	test.That(t, errors.Is(err, ErrNoDefaultMaster), err)

	_, err = newVariationModel([][]float64{{0}, {0}, {1}})
	test.That(t, errors.Is(err, ErrNoDefaultMaster), err)

	_, err = newVariationModel(nil)
	test.That(t, errors.Is(err, ErrNoDefaultMaster), err)
}

func TestRegionTuples(t *testing.T) {
	peak, start, end, err := Region{{0, 1, 1}, {-1, -0.5, 0}}.tuples()
	test.Error(t, err)
	test.T(t, peak, []F2Dot14{1 << 14, -1 << 13})
	test.T(t, start, []F2Dot14{0, -1 << 14})
	test.T(t, end, []F2Dot14{1 << 14, 0})

	_, _, _, err = Region{{0, 3, 3}}.tuples()
	test.That(t, errors.Is(err, ErrOutOfRange), err)
}
