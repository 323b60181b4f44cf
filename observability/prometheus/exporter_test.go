package prometheus

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestExporterRecordsAllEvents(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewExporter("taskrunner", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}

	exporter.TaskDispatched("sync.Engine")
	exporter.TaskCompleted("sync.Engine", "succeeded", 250*time.Millisecond)
	exporter.CacheHit("sync.Engine")
	exporter.Dedupe("sync.Engine", "use_existing")
	exporter.DeliveryQueueDepth("sync.Engine", 3)
	exporter.RunnerEvicted("sync.Engine")

	if got := testutil.ToFloat64(exporter.taskDispatchedTotal.WithLabelValues("sync.Engine")); got != 1 {
		t.Errorf("dispatched total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(exporter.taskCompletedTotal.WithLabelValues("sync.Engine", "succeeded")); got != 1 {
		t.Errorf("completed total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(exporter.cacheHitTotal.WithLabelValues("sync.Engine")); got != 1 {
		t.Errorf("cache hit total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(exporter.dedupeTotal.WithLabelValues("sync.Engine", "use_existing")); got != 1 {
		t.Errorf("dedupe total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(exporter.deliveryQueueDepth.WithLabelValues("sync.Engine")); got != 3 {
		t.Errorf("queue depth = %v, want 3", got)
	}
	if got := testutil.ToFloat64(exporter.runnerEvictedTotal.WithLabelValues("sync.Engine")); got != 1 {
		t.Errorf("evicted total = %v, want 1", got)
	}

	count, err := histogramSampleCount(exporter.taskDurationSeconds.WithLabelValues("sync.Engine", "succeeded"))
	if err != nil {
		t.Fatalf("histogramSampleCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("duration sample count = %d, want 1", count)
	}
}

func TestExporterEmptyLabelFallsBack(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewExporter("taskrunner", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}

	exporter.TaskDispatched("")
	if got := testutil.ToFloat64(exporter.taskDispatchedTotal.WithLabelValues("unknown")); got != 1 {
		t.Errorf("unknown label total = %v, want 1", got)
	}
}

func TestExporterAlreadyRegisteredReuse(t *testing.T) {
	reg := prom.NewRegistry()
	first, err := NewExporter("taskrunner", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("first NewExporter failed: %v", err)
	}
	second, err := NewExporter("taskrunner", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("second NewExporter failed: %v", err)
	}

	first.CacheHit("sync.Engine")
	second.CacheHit("sync.Engine")

	if got := testutil.ToFloat64(first.cacheHitTotal.WithLabelValues("sync.Engine")); got != 2 {
		t.Errorf("shared counter = %v, want 2", got)
	}
}

func histogramSampleCount(observer prom.Observer) (uint64, error) {
	collector, ok := observer.(prom.Collector)
	if !ok {
		return 0, nil
	}

	metricCh := make(chan prom.Metric, 1)
	collector.Collect(metricCh)
	close(metricCh)
	for metric := range metricCh {
		msg := &dto.Metric{}
		if err := metric.Write(msg); err != nil {
			return 0, err
		}
		if msg.Histogram != nil {
			return msg.Histogram.GetSampleCount(), nil
		}
	}
	return 0, nil
}
