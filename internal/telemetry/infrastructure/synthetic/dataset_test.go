package synthetic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"oran-rapps/internal/config"
	telemetry "oran-rapps/internal/telemetry/domain"
)

func TestDataset_SlicePRBPairsEachNSSIWithOneSliceType(t *testing.T) {
	cfg := config.Config{Name: config.SlicePRB}
	cfg.DB.TagSliceType, cfg.DB.TagNSSIID, cfg.DB.WindowSize = "sliceType", "measObjLdn", 5
	cfg.ML.SliceTypes = []string{"embb", "mmtc", "urllc"}
	cfg.ML.NSSIIDs = []string{"a", "b", "c", "d", "e", "f"}

	rows, tags := Dataset(cfg, fixedNow)
	assert.Equal(t, []string{"sliceType", "measObjLdn"}, tags)
	assert.Len(t, rows, 6*15)

	groups := telemetry.GroupBy(rows, "measObjLdn", "sliceType")
	pairs := map[string]string{}
	for _, g := range groups {
		pairs[g.Key.Entity] = g.Key.Tag
		assert.Len(t, g.Rows, 15)
	}
	assert.Equal(t, map[string]string{
		"a": "embb", "b": "embb",
		"c": "mmtc", "d": "mmtc",
		"e": "urllc", "f": "urllc",
	}, pairs)
}

func TestDataset_EnergySavingHasNoTags(t *testing.T) {
	rows, tags := Dataset(config.Config{Name: config.EnergySaving}, time.Now)
	assert.Nil(t, tags)
	assert.NotEmpty(t, rows)
}
