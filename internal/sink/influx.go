package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const influxMeasurement = "activity_event"

// InfluxConfig holds InfluxDB connection configuration.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// InfluxSink writes one point per activity for time-series dashboards.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
}

// NewInfluxSink connects to InfluxDB and checks its health before returning.
func NewInfluxSink(cfg InfluxConfig, onError ErrorHook) (*InfluxSink, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}
	if health.Status != "pass" {
		client.Close()
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return nil, fmt.Errorf("InfluxDB health check failed: %s", msg)
	}

	s := &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
	}

	// The write API is non-blocking; failures surface on its error channel.
	go func() {
		for err := range s.writeAPI.Errors() {
			if onError != nil {
				onError("influxdb", err)
			}
		}
	}()

	return s, nil
}

func (s *InfluxSink) Name() string { return "influxdb" }

func (s *InfluxSink) Publish(_ context.Context, rec Record) error {
	s.writeAPI.WritePoint(point(rec))
	return nil
}

func (s *InfluxSink) Close() error {
	s.writeAPI.Flush()
	s.client.Close()
	return nil
}

// point maps a record onto the activity_event measurement. Identity fields are
// tags; scalar top-level metadata values become meta_* fields.
func point(rec Record) *write.Point {
	tags := map[string]string{
		"user_id":    rec.UserID,
		"event_type": rec.EventType,
	}
	if rec.Page != nil {
		tags["page"] = *rec.Page
	}

	fields := map[string]interface{}{
		"count":       1,
		"activity_id": int64(rec.ID),
	}
	var meta map[string]any
	if len(rec.Metadata) > 0 && json.Unmarshal(rec.Metadata, &meta) == nil {
		for k, v := range meta {
			switch v.(type) {
			case string, float64, bool:
				fields["meta_"+k] = v
			}
		}
	}

	return influxdb2.NewPoint(influxMeasurement, tags, fields, rec.CreatedAt)
}
