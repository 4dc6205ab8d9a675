package observe

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestRecordVerification(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordVerification(ctx, "exact", 0.002)
	m.RecordVerification(ctx, "none", 0.004)

	rm := collect(t, reader)

	hist := findMetric(rm, "feihua.verify.duration")
	if hist == nil {
		t.Fatal("verify duration histogram not found")
	}
	data, ok := hist.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("unexpected data type %T", hist.Data)
	}
	var count uint64
	for _, dp := range data.DataPoints {
		count += dp.Count
	}
	if count != 2 {
		t.Errorf("histogram count = %d, want 2", count)
	}

	counter := findMetric(rm, "feihua.verifications")
	if counter == nil {
		t.Fatal("verifications counter not found")
	}
	sum, ok := counter.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", counter.Data)
	}
	if len(sum.DataPoints) != 2 {
		t.Errorf("counter has %d attribute sets, want 2 (exact, none)", len(sum.DataPoints))
	}
}

func TestRecordCacheEventAndFallback(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCacheEvent(ctx, true)
	m.RecordCacheEvent(ctx, true)
	m.RecordCacheEvent(ctx, false)
	m.RecordFallback(ctx, "transport")

	rm := collect(t, reader)

	cache := findMetric(rm, "feihua.judge.cache.events")
	if cache == nil {
		t.Fatal("cache events counter not found")
	}
	sum, ok := cache.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", cache.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 3 {
		t.Errorf("cache events total = %d, want 3", total)
	}

	if findMetric(rm, "feihua.judge.fallbacks") == nil {
		t.Error("fallback counter not found")
	}
}

func TestActiveSessionsUpDown(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, -1)

	rm := collect(t, reader)
	g := findMetric(rm, "feihua.active_sessions")
	if g == nil {
		t.Fatal("active sessions gauge not found")
	}
	sum, ok := g.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", g.Data)
	}
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1 {
		t.Errorf("active sessions = %+v, want single point with value 1", sum.DataPoints)
	}
}
