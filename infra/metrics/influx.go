package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/parkade/parkade/core/logger"
	coremetrics "github.com/parkade/parkade/core/metrics"
	infralogger "github.com/parkade/parkade/infra/logger"
)

// InfluxConfig holds the InfluxDB connection parameters.
type InfluxConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Token   string `json:"token"`
	Org     string `json:"org"`
	Bucket  string `json:"bucket"`
}

// InfluxSink writes parking events to InfluxDB.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      infralogger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink when the health check fails, so a missing collector never
// blocks admissions.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.Sink {
	sink := NewInfluxSink(cfg)
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

// RecordEntry writes an admission event.
func (s *InfluxSink) RecordEntry(ev coremetrics.EntryEvent) error {
	p := write.NewPointWithMeasurement("parking_entry").
		AddTag("class", ev.Class.String()).
		AddTag("category", ev.Category.String()).
		AddTag("spot_id", ev.SpotID).
		AddField("count", 1).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordExit writes a release event with the collected amounts.
func (s *InfluxSink) RecordExit(ev coremetrics.ExitEvent) error {
	p := write.NewPointWithMeasurement("parking_exit").
		AddTag("category", ev.Category.String()).
		AddTag("method", ev.Method.String()).
		AddTag("spot_id", ev.SpotID).
		AddField("duration_hours", ev.DurationHours).
		AddField("parking_fee", ev.ParkingFee).
		AddField("fine_amount", ev.FineAmount).
		AddField("total", ev.Total).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordFine writes a fine issuance event.
func (s *InfluxSink) RecordFine(ev coremetrics.FineEvent) error {
	p := write.NewPointWithMeasurement("parking_fine").
		AddTag("kind", string(ev.Kind)).
		AddField("amount", ev.Amount).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordReservation writes a reservation lifecycle event.
func (s *InfluxSink) RecordReservation(ev coremetrics.ReservationEvent) error {
	p := write.NewPointWithMeasurement("parking_reservation").
		AddTag("action", ev.Action).
		AddTag("spot_id", ev.SpotID).
		AddField("count", 1).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordOccupancy writes a facility occupancy snapshot.
func (s *InfluxSink) RecordOccupancy(occupied, total int) error {
	p := write.NewPointWithMeasurement("parking_occupancy").
		AddField("occupied", occupied).
		AddField("total", total).
		SetTime(time.Now())
	return s.write(p)
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}
