package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	name  string
	count atomic.Int64
}

func (o *countingObserver) OnEvent(ctx context.Context, event PipelineEvent) { o.count.Add(1) }
func (o *countingObserver) GetObserverName() string { return o.name }

type panickingObserver struct{}

func (panickingObserver) OnEvent(context.Context, PipelineEvent) { panic("boom") }
func (panickingObserver) GetObserverName() string { return "panicking" }

func TestMetricsObserver(t *testing.T) {
	m := NewMetricsObserver()
	ctx := context.Background()

	m.OnEvent(ctx, PipelineEvent{EventType: RequestReceived})
	m.OnEvent(ctx, PipelineEvent{EventType: RequestReceived})
	m.OnEvent(ctx, PipelineEvent{EventType: StageCompleted, Stage: "normalized", Duration: 100 * time.Millisecond})
	m.OnEvent(ctx, PipelineEvent{EventType: StageCompleted, Stage: "normalized", Duration: 300 * time.Millisecond})
	m.OnEvent(ctx, PipelineEvent{EventType: RequestCompleted, Duration: 2 * time.Second})
	m.OnEvent(ctx, PipelineEvent{EventType: RequestFailed, ErrorKind: "analysis_failed"})
	m.OnEvent(ctx, PipelineEvent{EventType: ArchiveFailed})

	stats := m.GetMetrics()
	assert.Equal(t, int64(2), stats["total_requests"])
	assert.Equal(t, int64(1), stats["succeeded_requests"])
	assert.Equal(t, int64(1), stats["failed_requests"])
	assert.Equal(t, int64(1), stats["archive_failures"])
	assert.Equal(t, int64(2000), stats["avg_processing_ms"])
	assert.Equal(t, map[string]int64{"analysis_failed": 1}, stats["failures_by_kind"])
	assert.Equal(t, map[string]int64{"normalized": 200}, stats["avg_stage_ms"])
}

func TestMetricsObserver_Empty(t *testing.T) {
	stats := NewMetricsObserver().GetMetrics()
	assert.Equal(t, int64(0), stats["avg_processing_ms"])
	assert.Empty(t, stats["avg_stage_ms"])
}

func TestEventPublisher_NotifiesAllObservers(t *testing.T) {
	p := NewEventPublisher()
	a := &countingObserver{name: "a"}
	b := &countingObserver{name: "b"}
	p.Subscribe(a)
	p.Subscribe(b)
	p.Subscribe(panickingObserver{})

	p.NotifyObservers(context.Background(), PipelineEvent{EventType: RequestReceived})
	p.NotifyObservers(context.Background(), PipelineEvent{EventType: RequestCompleted})
	p.Wait()

	assert.Equal(t, int64(2), a.count.Load())
	assert.Equal(t, int64(2), b.count.Load())

	p.Unsubscribe(&countingObserver{name: "a"})
	p.NotifyObservers(context.Background(), PipelineEvent{EventType: RequestReceived})
	p.Wait()

	assert.Equal(t, int64(2), a.count.Load())
	assert.Equal(t, int64(3), b.count.Load())
}

func TestLoggingObserver_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})

	NewLoggingObserver(l).OnEvent(context.Background(), PipelineEvent{
		EventType:    RequestFailed,
		RequestID:    "req-1",
		Stage:        "errored",
		ErrorKind:    "stage_failure",
		ErrorMessage: "OCR engine failed",
		Metadata:     map[string]interface{}{"source": "multipart"},
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "stage_failure", entry["error_kind"])
	assert.Equal(t, "multipart", entry["source"])
	assert.Equal(t, "Label inspection failed", entry["msg"])
}
