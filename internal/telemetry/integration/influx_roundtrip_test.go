package integration_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"oran-rapps/internal/config"
	telemetry "oran-rapps/internal/telemetry/domain"
	"oran-rapps/internal/telemetry/infrastructure/influx"
	"oran-rapps/internal/telemetry/infrastructure/synthetic"
)

func TestInfluxRoundTrip_SliceSeriesGroupBack(t *testing.T) {
	address := os.Getenv("INFLUX_ADDRESS")
	bucket := os.Getenv("INFLUX_BUCKET")
	if address == "" || bucket == "" {
		t.Skip("INFLUX_ADDRESS or INFLUX_BUCKET not set")
	}
	org := os.Getenv("INFLUX_ORG")

	client := influx.NewClient(address, os.Getenv("INFLUX_TOKEN"), 30*time.Second)
	defer client.Close()

	ctx := context.Background()
	measurement := fmt.Sprintf("it-slice-%d", time.Now().UnixNano())

	cfg := config.Config{Name: config.SlicePRB}
	cfg.DB.Measurements = []string{measurement}
	cfg.DB.TagSliceType, cfg.DB.TagNSSIID, cfg.DB.WindowSize = "sliceType", "measObjLdn", 5
	cfg.ML.SliceTypes = []string{"embb", "urllc"}
	cfg.ML.NSSIIDs = []string{"nssi-a", "nssi-b"}

	rows, tags := synthetic.Dataset(cfg, time.Now)
	writer, err := influx.NewWriter(client, org, bucket, tags)
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	writeStart := time.Now()
	if err := writer.WriteRows(ctx, rows); err != nil {
		t.Fatalf("write rows: %v", err)
	}
	writeElapsed := time.Since(writeStart)

	src, err := influx.NewSource(client, influx.QueryConfig{
		Org:          org,
		Bucket:       bucket,
		Measurements: []string{measurement},
		TimeRange:    "1h",
	})
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	queryStart := time.Now()
	got, err := src.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	queryElapsed := time.Since(queryStart)

	if len(got) != len(rows) {
		t.Fatalf("expected %d rows back, got %d", len(rows), len(got))
	}
	groups := telemetry.GroupBy(got, cfg.DB.TagNSSIID, cfg.DB.TagSliceType)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	for _, group := range groups {
		if _, err := group.Window(cfg.DB.WindowSize); err != nil {
			t.Fatalf("group %s: %v", group.Key, err)
		}
	}

	t.Logf("influx write rows=%d elapsed=%s", len(rows), writeElapsed)
	t.Logf("influx snapshot rows=%d elapsed=%s", len(got), queryElapsed)
}
