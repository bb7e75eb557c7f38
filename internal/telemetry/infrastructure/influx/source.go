package influx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	telemetry "oran-rapps/internal/telemetry/domain"
)

// QueryConfig selects the series a Source reads.
type QueryConfig struct {
	Org          string
	Bucket       string
	Measurements []string
	Fields       []string
	// TimeRange is a Flux duration literal such as "10m".
	TimeRange string
}

// NewClient builds an InfluxDB v2 client.
func NewClient(address, token string, timeout time.Duration) influxdb2.Client {
	opts := influxdb2.DefaultOptions()
	if timeout > 0 {
		opts.SetHTTPRequestTimeout(uint(timeout.Seconds()))
	}
	return influxdb2.NewClientWithOptions(strings.TrimRight(address, "/"), token, opts)
}

// Source reads pivoted telemetry rows with a Flux query.
type Source struct {
	client influxdb2.Client
	query  api.QueryAPI
	flux   string
}

// NewSource constructs a Source.
func NewSource(client influxdb2.Client, cfg QueryConfig) (*Source, error) {
	if client == nil {
		return nil, errors.New("influx: nil client")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("influx: empty bucket")
	}
	return &Source{
		client: client,
		query:  client.QueryAPI(cfg.Org),
		flux:   BuildQuery(cfg),
	}, nil
}

// Query returns the Flux text the source runs.
func (s *Source) Query() string {
	return s.flux
}

// Ping checks that the server is reachable.
func (s *Source) Ping(ctx context.Context) error {
	ok, err := s.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influx: ping: %w", err)
	}
	if !ok {
		return errors.New("influx: server not ready")
	}
	return nil
}

// Snapshot runs the query. No matching rows yields an empty slice.
func (s *Source) Snapshot(ctx context.Context) ([]telemetry.Row, error) {
	result, err := s.query.Query(ctx, s.flux)
	if err != nil {
		return nil, fmt.Errorf("influx: query: %w", err)
	}
	defer result.Close()

	var rows []telemetry.Row
	for result.Next() {
		record := result.Record()
		rows = append(rows, RowFromValues(record.Time(), record.Values()))
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("influx: read result: %w", err)
	}
	return rows, nil
}

// BuildQuery renders the pivot query for cfg.
func BuildQuery(cfg QueryConfig) string {
	timeRange := strings.TrimPrefix(strings.TrimSpace(cfg.TimeRange), "-")
	if timeRange == "" {
		timeRange = "10m"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket:%q)", cfg.Bucket)
	fmt.Fprintf(&b, " |> range(start: -%s)", timeRange)
	if clause := orFilter("_measurement", cfg.Measurements); clause != "" {
		fmt.Fprintf(&b, " |> filter(fn: (r) => %s)", clause)
	}
	if clause := orFilter("_field", cfg.Fields); clause != "" {
		fmt.Fprintf(&b, " |> filter(fn: (r) => %s)", clause)
	}
	b.WriteString(` |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")`)
	return b.String()
}

func orFilter(column string, values []string) string {
	parts := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("r[%q] == %q", column, value))
	}
	return strings.Join(parts, " or ")
}

var skipColumns = map[string]struct{}{
	"result": {},
	"table":  {},
	"_start": {},
	"_stop":  {},
	"_time":  {},
	"_field": {},
	"_value": {},
}

// RowFromValues converts one pivoted record into a Row.
func RowFromValues(ts time.Time, values map[string]interface{}) telemetry.Row {
	row := telemetry.Row{
		Time:   ts.UTC(),
		Labels: make(map[string]string),
		Values: make(map[string]float64),
	}
	for key, raw := range values {
		if key == telemetry.MeasurementKey {
			if s, ok := raw.(string); ok {
				row.Measurement = s
			}
			continue
		}
		if _, skip := skipColumns[key]; skip {
			continue
		}
		switch v := raw.(type) {
		case float64:
			row.Values[key] = v
		case int64:
			row.Values[key] = float64(v)
		case uint64:
			row.Values[key] = float64(v)
		case string:
			row.Labels[key] = v
		}
	}
	return row
}
