package e2e

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// InfluxClient is a small read helper around the official InfluxDB v2 client
// used by the E2E tests.
type InfluxClient struct {
	bucket string
	client influxdb2.Client
	query  api.QueryAPI
}

// NewInfluxClient creates a client for a running, already initialised server.
func NewInfluxClient(url, org, bucket, token string) *InfluxClient {
	c := influxdb2.NewClient(url, token)
	return &InfluxClient{bucket: bucket, client: c, query: c.QueryAPI(org)}
}

// CountPoints returns how many points of measurement were written in the last
// window, optionally restricted to one tag value.
func (c *InfluxClient) CountPoints(ctx context.Context, measurement, window, tag, value string) (int, error) {
	flux := fmt.Sprintf(`from(bucket:%q) |> range(start:-%s) |> filter(fn:(r) => r._measurement == %q)`, c.bucket, window, measurement)
	if tag != "" {
		flux += fmt.Sprintf(` |> filter(fn:(r) => r[%q] == %q)`, tag, value)
	}
	res, err := c.query.Query(ctx, flux)
	if err != nil {
		return 0, err
	}
	defer res.Close()
	n := 0
	for res.Next() {
		n++
	}
	return n, res.Err()
}

// Close releases the underlying client resources.
func (c *InfluxClient) Close() { c.client.Close() }
