package energysaving

import (
	"fmt"

	telemetry "oran-rapps/internal/telemetry/domain"
)

const (
	FieldCellID     = "CellID"
	FieldThroughput = "DRB.UEThpUl"
	FieldPRBUsed    = "RRU.PrbUsedUl"
	FieldPower      = "PEE.AvgPower"
)

// FeatureFields are the model input channels, in order.
var FeatureFields = []string{FieldThroughput, FieldPRBUsed, FieldPower}

// BuildBatch shapes a group into a single-instance feature batch of the last
// window rows. window <= 0 uses every row.
func BuildBatch(group telemetry.Group, window int) ([][][]float64, error) {
	rows, err := group.Window(window)
	if err != nil {
		return nil, fmt.Errorf("%w: have %d rows, need %d", err, len(group.Rows), window)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty group", telemetry.ErrShortWindow)
	}
	return [][][]float64{telemetry.Series(rows, FeatureFields)}, nil
}
