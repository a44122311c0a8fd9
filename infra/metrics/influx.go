package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/lampfleet/core/metrics"
	"github.com/kilianp07/lampfleet/infra/logger"
)

// InfluxSink writes fleet events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordMission writes a mission lifecycle point.
func (s *InfluxSink) RecordMission(ev coremetrics.MissionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("mission_event").
		AddTag("mission_id", ev.MissionID).
		AddTag("source", ev.Source).
		AddTag("status", ev.Status).
		AddField("drones", ev.Drones).
		AddField("lamps", ev.Lamps).
		AddField("completed", ev.Completed).
		AddField("duration_s", round3(ev.Duration.Seconds())).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordReplacement writes a cassette replacement point.
func (s *InfluxSink) RecordReplacement(ev coremetrics.ReplacementEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("lamp_replaced").
		AddTag("drone_id", ev.DroneID).
		AddTag("lamp_id", ev.LampID).
		AddTag("mission_id", ev.MissionID).
		AddField("battery", round3(ev.Battery)).
		AddField("container", ev.Container).
		AddField("energy_w", round3(ev.EnergyW)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordFleetState writes one point per drone plus a fleet summary.
func (s *InfluxSink) RecordFleetState(ev coremetrics.FleetStateEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, d := range ev.Drones {
		p := write.NewPointWithMeasurement("drone_state").
			AddTag("drone_id", d.DroneID).
			AddTag("status", d.Status).
			AddField("battery", round3(d.Battery)).
			AddField("container", d.Container).
			SetTime(ev.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	p := write.NewPointWithMeasurement("fleet_state").
		AddField("running_missions", ev.RunningMissions).
		SetTime(ev.Time)
	for status, n := range ev.LampsByStatus {
		p.AddField("lamps_"+status, n)
	}
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
