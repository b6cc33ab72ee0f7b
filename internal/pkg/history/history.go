// Package history records resolved device states to InfluxDB
package history

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/pkg/errors"

	"github.com/jake-scott/alice-bridge/internal/pkg/logging"
	"github.com/jake-scott/alice-bridge/internal/pkg/yandex"
)

const measurement = "facet_state"

var ErrConnectFailed = errors.New("influxdb: connection failed")

// Recorder stores the outcome of resolved devices
type Recorder interface {
	Record(ctx context.Context, d *yandex.Device)
	Close()
}

// Nop records nothing
type Nop struct{}

func (Nop) Record(context.Context, *yandex.Device) {}
func (Nop) Close()                                 {}

// PointWriter is the non-blocking write side of the InfluxDB client
type PointWriter interface {
	WritePoint(point *write.Point)
}

// Config of the InfluxDB connection
type Config struct {
	URL           string
	Token         string
	Org           string
	Bucket        string
	BatchSize     uint
	FlushInterval time.Duration
}

// Influx writes one point per resolved facet
type Influx struct {
	client influxdb2.Client
	writer PointWriter
	now    func() time.Time
}

// Connect pings the server and starts a batching writer.  Write errors are
// logged.
func Connect(ctx context.Context, cfg Config) (*Influx, error) {
	opts := influxdb2.DefaultOptions()
	if cfg.BatchSize > 0 {
		opts.SetBatchSize(cfg.BatchSize)
	}
	if cfg.FlushInterval > 0 {
		opts.SetFlushInterval(uint(cfg.FlushInterval.Milliseconds()))
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, errors.Wrapf(ErrConnectFailed, "ping %s: %v", cfg.URL, err)
	}
	if !healthy {
		client.Close()
		return nil, errors.Wrapf(ErrConnectFailed, "%s not healthy", cfg.URL)
	}

	w := client.WriteAPI(cfg.Org, cfg.Bucket)
	go func() {
		for err := range w.Errors() {
			logging.Logger(nil).WithError(err).Warn("[HISTORY] write failed")
		}
	}()

	r := NewInflux(w)
	r.client = client

	return r, nil
}

// NewInflux records through an existing writer
func NewInflux(w PointWriter) *Influx {
	return &Influx{writer: w, now: time.Now}
}

func (r *Influx) Record(ctx context.Context, d *yandex.Device) {
	if d == nil {
		return
	}

	ts := r.now()
	for _, c := range d.Capabilities() {
		r.write(d.ID(), "capability", c.Name(), c.State(), ts)
	}
	for _, p := range d.Properties() {
		r.write(d.ID(), "property", p.Name(), p.State(), ts)
	}
}

func (r *Influx) write(deviceID, kind, name string, st *yandex.State, ts time.Time) {
	if st == nil {
		return
	}

	tags := map[string]string{
		"device_id": deviceID,
		"kind":      kind,
		"facet":     name,
		"instance":  st.Instance,
	}
	fields := map[string]interface{}{}

	if st.ActionResult != nil {
		tags["status"] = st.ActionResult.Status
		fields["status"] = st.ActionResult.Status
		if st.ActionResult.ErrorCode != "" {
			fields["error_code"] = st.ActionResult.ErrorCode
		}
	} else {
		tags["status"] = "value"
		fields["value"] = fieldValue(st.Value)
	}

	r.writer.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}

// fieldValue keeps the types InfluxDB stores natively and prints the rest
func fieldValue(v interface{}) interface{} {
	switch t := v.(type) {
	case float64, float32, int, int64, uint64, bool, string:
		return t
	case nil:
		return ""
	}

	return fmt.Sprint(v)
}

// Close flushes pending points
func (r *Influx) Close() {
	if r.client != nil {
		r.client.Close()
	}
}
