package synthetic

import (
	"time"

	"oran-rapps/internal/config"
	telemetry "oran-rapps/internal/telemetry/domain"
)

// Dataset produces the local-run dataset of the configured rApp and the
// labels to store as tags. Slice NSSIs are split into contiguous blocks, one
// block per slice type.
func Dataset(cfg config.Config, now func() time.Time) ([]telemetry.Row, []string) {
	if now == nil {
		now = time.Now
	}
	gen := New(uint64(now().UnixNano()), now)
	measurement := ""
	if len(cfg.DB.Measurements) > 0 {
		measurement = cfg.DB.Measurements[0]
	}
	if cfg.Name == config.EnergySaving {
		return gen.EnergySaving(EnergySavingOptions{Measurement: measurement}), nil
	}

	var rows []telemetry.Row
	types := cfg.ML.SliceTypes
	for i, nssi := range cfg.ML.NSSIIDs {
		sliceType := "embb"
		if len(types) > 0 {
			sliceType = types[i*len(types)/len(cfg.ML.NSSIIDs)]
		}
		rows = append(rows, gen.SlicePRB(SlicePRBOptions{
			Measurement:  measurement,
			SliceTypeTag: cfg.DB.TagSliceType,
			NSSITag:      cfg.DB.TagNSSIID,
			SliceTypes:   []string{sliceType},
			NSSIIDs:      []string{nssi},
			Points:       cfg.DB.WindowSize + 10,
			Step:         time.Minute,
		})...)
	}
	return rows, []string{cfg.DB.TagSliceType, cfg.DB.TagNSSIID}
}
