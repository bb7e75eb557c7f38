package telemetry

import (
	"time"
)

// MeasurementKey addresses Row.Measurement through Label.
const MeasurementKey = "_measurement"

// Row is one pivoted telemetry sample.
type Row struct {
	Time        time.Time
	Measurement string
	// Labels holds tags and string-valued fields (CellID, sliceType, ...).
	Labels map[string]string
	Values map[string]float64
}

// Label returns a tag or string field. MeasurementKey resolves to the measurement.
func (r Row) Label(name string) (string, bool) {
	if name == MeasurementKey {
		return r.Measurement, r.Measurement != ""
	}
	value, ok := r.Labels[name]
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// Value returns a numeric field.
func (r Row) Value(name string) (float64, bool) {
	value, ok := r.Values[name]
	return value, ok
}

// Complete keeps rows that carry every required label and value.
func Complete(rows []Row, labels, values []string) []Row {
	if len(rows) == 0 {
		return nil
	}
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if hasAll(row, labels, values) {
			out = append(out, row)
		}
	}
	return out
}

func hasAll(row Row, labels, values []string) bool {
	for _, name := range labels {
		if _, ok := row.Label(name); !ok {
			return false
		}
	}
	for _, name := range values {
		if _, ok := row.Value(name); !ok {
			return false
		}
	}
	return true
}
