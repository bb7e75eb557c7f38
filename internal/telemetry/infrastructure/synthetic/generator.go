package synthetic

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	telemetry "oran-rapps/internal/telemetry/domain"
)

// Energy-saving field names.
const (
	FieldCellID    = "CellID"
	FieldUEThpUl   = "DRB.UEThpUl"
	FieldPrbUsedUl = "RRU.PrbUsedUl"
	FieldAvgPower  = "PEE.AvgPower"
)

// Slice-PRB field names.
const (
	FieldPrbDl     = "RRU.PrbDl.SNSSAI"
	FieldPdcpVolDl = "DRB.PdcpSduVolumeDL.SNSSAI"
	FieldRRCSucc   = "RRC.ConnEstabSucc.Cause"
)

var (
	noiseMeasurements = []string{"test-filter-measurement1", "test-filter-measurement2", "test-filter-measurement3", "test-filter-measurement4"}
	noiseFields       = []string{"TestFilterField1", "TestFilterField2", "TestFilterField3", "TestFilterField4"}
)

// Generator produces synthetic telemetry for local runs.
type Generator struct {
	rng *rand.Rand
	now func() time.Time
}

// New returns a Generator seeded with seed. now defaults to time.Now.
func New(seed uint64, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), now: now}
}

// EnergySavingOptions shapes EnergySaving output.
type EnergySavingOptions struct {
	Measurement string
	Records     int
	Noise       int
	Spread      time.Duration
}

// EnergySaving returns matching pivot records for random S/B/C cells plus
// noise records in other measurements.
func (g *Generator) EnergySaving(opts EnergySavingOptions) []telemetry.Row {
	if opts.Measurement == "" {
		opts.Measurement = "o-ran-pm"
	}
	if opts.Records <= 0 {
		opts.Records = 50
	}
	if opts.Noise < 0 {
		opts.Noise = 0
	}
	if opts.Spread <= 0 {
		opts.Spread = 9 * time.Minute
	}
	now := g.now().UTC().Truncate(time.Second)
	step := opts.Spread / time.Duration(opts.Records)
	if step < time.Second {
		step = time.Second
	}

	rows := make([]telemetry.Row, 0, opts.Records+opts.Noise)
	for i := 0; i < opts.Records; i++ {
		cell := fmt.Sprintf("S%d-B%d-C%d", g.rng.IntN(9)+1, g.rng.IntN(9)+1, g.rng.IntN(9)+1)
		rows = append(rows, telemetry.Row{
			Time:        now.Add(-time.Duration(i) * step),
			Measurement: opts.Measurement,
			Labels:      map[string]string{FieldCellID: cell},
			Values: map[string]float64{
				FieldUEThpUl:   g.uniform(1, 100),
				FieldPrbUsedUl: g.uniform(1, 100),
				FieldAvgPower:  g.uniform(1, 100),
			},
		})
	}
	for i := 0; i < opts.Noise; i++ {
		field := noiseFields[g.rng.IntN(len(noiseFields))]
		rows = append(rows, telemetry.Row{
			Time:        now.Add(-time.Duration(g.rng.IntN(3600)) * time.Second),
			Measurement: noiseMeasurements[g.rng.IntN(len(noiseMeasurements))],
			Labels:      map[string]string{field: fmt.Sprintf("%.2f", g.uniform(0, 100))},
		})
	}
	return rows
}

// SlicePRBOptions shapes SlicePRB output.
type SlicePRBOptions struct {
	Measurement  string
	SliceTypeTag string
	NSSITag      string
	SliceTypes   []string
	NSSIIDs      []string
	Points       int
	Step         time.Duration
}

// SlicePRB returns one time series per (slice type, nssi) pair.
func (g *Generator) SlicePRB(opts SlicePRBOptions) []telemetry.Row {
	if opts.Measurement == "" {
		opts.Measurement = "slice-pm"
	}
	if opts.SliceTypeTag == "" {
		opts.SliceTypeTag = "sliceType"
	}
	if opts.NSSITag == "" {
		opts.NSSITag = "measObjLdn"
	}
	if opts.Points <= 0 {
		opts.Points = 10
	}
	if opts.Step <= 0 {
		opts.Step = time.Minute
	}
	now := g.now().UTC().Truncate(time.Second)

	var rows []telemetry.Row
	for si, sliceType := range opts.SliceTypes {
		for ni, nssi := range opts.NSSIIDs {
			base := 200 + 100*float64(si+ni)
			for p := 0; p < opts.Points; p++ {
				// Offset per series keeps pivot row keys unique within the measurement.
				ts := now.Add(-time.Duration(opts.Points-p)*opts.Step + time.Duration(si*len(opts.NSSIIDs)+ni)*time.Millisecond)
				wave := math.Sin(float64(p) / 3)
				rows = append(rows, telemetry.Row{
					Time:        ts,
					Measurement: opts.Measurement,
					Labels: map[string]string{
						opts.SliceTypeTag: sliceType,
						opts.NSSITag:      nssi,
					},
					Values: map[string]float64{
						FieldPrbDl:     math.Round(base + 50*wave + g.uniform(-10, 10)),
						FieldPdcpVolDl: math.Round(1000 + 400*wave + g.uniform(-50, 50)),
						FieldRRCSucc:   math.Round(20 + 5*wave + g.uniform(0, 3)),
					},
				})
			}
		}
	}
	return rows
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return math.Round((lo+g.rng.Float64()*(hi-lo))*100) / 100
}
