package energysaving

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	telemetry "oran-rapps/internal/telemetry/domain"
)

func TestParseCellID(t *testing.T) {
	id, err := ParseCellID("S2/N77/C3")
	require.NoError(t, err)
	assert.Equal(t, CellID{Raw: "S2/N77/C3", Site: 2, Band: 77, Cell: 3}, id)

	id, err = ParseCellID("S10-B13-C1")
	require.NoError(t, err)
	assert.Equal(t, 13, id.Band)

	_, err = ParseCellID("cell-one")
	assert.Error(t, err)
}

func TestNumber_OrdersByBandSiteCell(t *testing.T) {
	ids := []CellID{}
	for _, raw := range []string{"S1/N77/C1", "S2/B13/C2", "S1/B13/C2", "S1/B13/C1", "S1-B13-C1"} {
		id, err := ParseCellID(raw)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	numbers := Number(ids)
	assert.Equal(t, 1, numbers[ids[3]])
	assert.Equal(t, 1, numbers[ids[4]], "same cell in another spelling shares a number")
	assert.Equal(t, 2, numbers[ids[2]])
	assert.Equal(t, 3, numbers[ids[1]])
	assert.Equal(t, 4, numbers[ids[0]])
}

func TestManagedElement(t *testing.T) {
	assert.Equal(t, "me-1", ManagedElement("SubNetwork=1,ManagedElement=me-1,GNBDUFunction=1"))
	assert.Equal(t, "o-ran-pm", ManagedElement("o-ran-pm"))
	assert.Equal(t, "ManagedElement=me-1", ManagedElement("ManagedElement=me-1"))
	assert.Equal(t, "a=1,b=2", ManagedElement("a=1,b=2"))
	assert.Equal(t, "S1/B13/C1_me-1", EntityKey("S1/B13/C1", "ManagedElement=me-1,NRCellDU=1"))
}

func TestBuildBatch(t *testing.T) {
	group := telemetry.Group{Rows: []telemetry.Row{
		{Values: map[string]float64{FieldThroughput: 1, FieldPRBUsed: 2, FieldPower: 3}},
		{Values: map[string]float64{FieldThroughput: 4, FieldPRBUsed: 5, FieldPower: 6}},
		{Values: map[string]float64{FieldThroughput: 7, FieldPRBUsed: 8, FieldPower: 9}},
	}}

	batch, err := BuildBatch(group, 0)
	require.NoError(t, err)
	want := [][][]float64{{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}}
	if diff := cmp.Diff(want, batch); diff != "" {
		t.Fatalf("batch mismatch (-want +got):\n%s", diff)
	}

	batch, err = BuildBatch(group, 2)
	require.NoError(t, err)
	if diff := cmp.Diff([][][]float64{{{4, 5, 6}, {7, 8, 9}}}, batch); diff != "" {
		t.Fatalf("windowed batch mismatch (-want +got):\n%s", diff)
	}

	_, err = BuildBatch(group, 5)
	assert.ErrorIs(t, err, telemetry.ErrShortWindow)
}
