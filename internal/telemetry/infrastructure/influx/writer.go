package influx

import (
	"context"
	"errors"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	telemetry "oran-rapps/internal/telemetry/domain"
)

// Writer stores rows as points. Labels named in tagKeys become tags, other
// labels are written as string fields.
type Writer struct {
	api     api.WriteAPIBlocking
	tagKeys map[string]struct{}
}

// NewWriter constructs a blocking Writer for org/bucket.
func NewWriter(client influxdb2.Client, org, bucket string, tagKeys []string) (*Writer, error) {
	if client == nil {
		return nil, errors.New("influx: nil client")
	}
	if bucket == "" {
		return nil, errors.New("influx: empty bucket")
	}
	set := make(map[string]struct{}, len(tagKeys))
	for _, key := range tagKeys {
		set[key] = struct{}{}
	}
	return &Writer{api: client.WriteAPIBlocking(org, bucket), tagKeys: set}, nil
}

// WriteRows writes rows in one batch.
func (w *Writer) WriteRows(ctx context.Context, rows []telemetry.Row) error {
	if len(rows) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(rows))
	for _, row := range rows {
		points = append(points, w.point(row))
	}
	if err := w.api.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("influx: write: %w", err)
	}
	return nil
}

func (w *Writer) point(row telemetry.Row) *write.Point {
	tags := make(map[string]string)
	fields := make(map[string]interface{}, len(row.Values)+len(row.Labels))
	for key, value := range row.Labels {
		if _, ok := w.tagKeys[key]; ok {
			tags[key] = value
			continue
		}
		fields[key] = value
	}
	for key, value := range row.Values {
		fields[key] = value
	}
	return influxdb2.NewPoint(row.Measurement, tags, fields, row.Time)
}
