package sliceprb

import (
	"errors"
	"fmt"
	"sort"

	telemetry "oran-rapps/internal/telemetry/domain"
)

const (
	FieldPRB  = "RRU.PrbDl.SNSSAI"
	FieldData = "DRB.PdcpSduVolumeDL.SNSSAI"
	FieldRRC  = "RRC.ConnEstabSucc.Cause"

	DefaultSliceTypeTag = "sliceType"
	DefaultNSSITag      = "measObjLdn"
	DefaultWindow       = 900
)

// FeatureFields are the numeric inputs, in model order.
var FeatureFields = []string{FieldPRB, FieldData, FieldRRC}

// ErrNoForecast is returned when the predictor output carries no value.
var ErrNoForecast = errors.New("sliceprb: empty forecast")

// Scaler maps a value linearly from [Min, Max] to [0, 1].
type Scaler struct {
	Min float64
	Max float64
}

// Transform scales v. A degenerate range maps everything to zero.
func (s Scaler) Transform(v float64) float64 {
	span := s.Max - s.Min
	if span == 0 {
		return 0
	}
	return (v - s.Min) / span
}

// Inverse undoes Transform.
func (s Scaler) Inverse(v float64) float64 {
	return v*(s.Max-s.Min) + s.Min
}

// OneHot encodes a category over a fixed, sorted vocabulary. Unknown values
// encode to all zeros.
type OneHot struct {
	index map[string]int
	size  int
}

// NewOneHot builds an encoder over the distinct categories.
func NewOneHot(categories []string) OneHot {
	unique := make([]string, 0, len(categories))
	seen := make(map[string]bool, len(categories))
	for _, c := range categories {
		if !seen[c] {
			seen[c] = true
			unique = append(unique, c)
		}
	}
	sort.Strings(unique)
	index := make(map[string]int, len(unique))
	for i, c := range unique {
		index[c] = i
	}
	return OneHot{index: index, size: len(unique)}
}

// Len is the width of an encoded vector.
func (o OneHot) Len() int { return o.size }

// Encode returns the one-hot vector of value.
func (o OneHot) Encode(value string) []float64 {
	vec := make([]float64, o.size)
	if i, ok := o.index[value]; ok {
		vec[i] = 1
	}
	return vec
}

// Encoder turns a slice group into model input and model output back into
// a PRB forecast.
type Encoder struct {
	SliceTypes OneHot
	NSSIs      OneHot
	PRB        Scaler
	Data       Scaler
	RRC        Scaler
	Y          Scaler
}

// Channels is the width of one encoded row.
func (e Encoder) Channels() int {
	return e.SliceTypes.Len() + e.NSSIs.Len() + len(FeatureFields)
}

// BuildBatch encodes the last window rows of a group keyed by (nssi, slice
// type) into a single-instance batch. Each row is the slice-type one-hot,
// the NSSI one-hot, then the scaled PRB, data volume and RRC values.
func (e Encoder) BuildBatch(group telemetry.Group, window int) ([][][]float64, error) {
	rows, err := group.Window(window)
	if err != nil {
		return nil, fmt.Errorf("%w: have %d rows, need %d", err, len(group.Rows), window)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty group", telemetry.ErrShortWindow)
	}
	sliceVec := e.SliceTypes.Encode(group.Key.Tag)
	nssiVec := e.NSSIs.Encode(group.Key.Entity)

	instance := make([][]float64, 0, len(rows))
	for _, row := range rows {
		vec := make([]float64, 0, e.Channels())
		vec = append(vec, sliceVec...)
		vec = append(vec, nssiVec...)
		vec = append(vec,
			e.PRB.Transform(row.Values[FieldPRB]),
			e.Data.Transform(row.Values[FieldData]),
			e.RRC.Transform(row.Values[FieldRRC]),
		)
		instance = append(instance, vec)
	}
	return [][][]float64{instance}, nil
}

// Forecast reads the scaled scalar at predictions[0][0] and maps it back to
// PRB units.
func (e Encoder) Forecast(predictions [][]float64) (float64, error) {
	if len(predictions) == 0 || len(predictions[0]) == 0 {
		return 0, ErrNoForecast
	}
	return e.Y.Inverse(predictions[0][0]), nil
}
