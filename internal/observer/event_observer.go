package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// PipelineEvent describes one step of a label inspection request.
type PipelineEvent struct {
	EventType    EventType              `json:"event_type"`
	Timestamp    time.Time              `json:"timestamp"`
	RequestID    string                 `json:"request_id"`
	Stage        string                 `json:"stage,omitempty"`
	FileName     string                 `json:"file_name,omitempty"`
	Duration     time.Duration          `json:"duration"`
	Success      bool                   `json:"success"`
	ErrorKind    string                 `json:"error_kind,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of pipeline event
type EventType string

const (
	RequestReceived  EventType = "request_received"
	StageCompleted   EventType = "stage_completed"
	RequestCompleted EventType = "request_completed"
	RequestFailed    EventType = "request_failed"
	// ArchiveFailed and CleanupFailed do not fail the request.
	ArchiveFailed EventType = "archive_failed"
	CleanupFailed EventType = "cleanup_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event PipelineEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event PipelineEvent)
}

// LoggingObserver logs pipeline events
type LoggingObserver struct {
	logger *logrus.Logger
}

func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

func (o *LoggingObserver) OnEvent(ctx context.Context, event PipelineEvent) {
	fields := logrus.Fields{
		"event_type":  event.EventType,
		"request_id":  event.RequestID,
		"duration_ms": event.Duration.Milliseconds(),
		"success":     event.Success,
	}
	if event.Stage != "" {
		fields["stage"] = event.Stage
	}
	if event.FileName != "" {
		fields["file_name"] = event.FileName
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
		fields["error_kind"] = event.ErrorKind
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case RequestReceived:
		entry.Info("Label inspection started")
	case StageCompleted:
		entry.Debug("Pipeline stage completed")
	case RequestCompleted:
		entry.Info("Label inspection completed")
	case RequestFailed:
		entry.Error("Label inspection failed")
	case ArchiveFailed, CleanupFailed:
		entry.Warn("Pipeline side task failed")
	default:
		entry.Info("Pipeline event occurred")
	}
}

func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver collects request counters and stage timings for /health.
type MetricsObserver struct {
	mu                  sync.RWMutex
	totalRequests       int64
	succeededRequests   int64
	failedRequests      int64
	failuresByKind      map[string]int64
	archiveFailures     int64
	totalProcessingTime time.Duration
	stageTime           map[string]time.Duration
	stageCount          map[string]int64
}

func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{
		failuresByKind: make(map[string]int64),
		stageTime:      make(map[string]time.Duration),
		stageCount:     make(map[string]int64),
	}
}

func (o *MetricsObserver) OnEvent(ctx context.Context, event PipelineEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case RequestReceived:
		o.totalRequests++
	case StageCompleted:
		o.stageTime[event.Stage] += event.Duration
		o.stageCount[event.Stage]++
	case RequestCompleted:
		o.succeededRequests++
		o.totalProcessingTime += event.Duration
	case RequestFailed:
		o.failedRequests++
		o.failuresByKind[event.ErrorKind]++
	case ArchiveFailed:
		o.archiveFailures++
	}
}

func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns a snapshot of the counters.
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var avg time.Duration
	if o.succeededRequests > 0 {
		avg = o.totalProcessingTime / time.Duration(o.succeededRequests)
	}

	failures := make(map[string]int64, len(o.failuresByKind))
	for k, v := range o.failuresByKind {
		failures[k] = v
	}
	stages := make(map[string]int64, len(o.stageTime))
	for stage, total := range o.stageTime {
		stages[stage] = (total / time.Duration(o.stageCount[stage])).Milliseconds()
	}

	return map[string]interface{}{
		"total_requests":     o.totalRequests,
		"succeeded_requests": o.succeededRequests,
		"failed_requests":    o.failedRequests,
		"failures_by_kind":   failures,
		"archive_failures":   o.archiveFailures,
		"avg_processing_ms":  avg.Milliseconds(),
		"avg_stage_ms":       stages,
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	wg        sync.WaitGroup
}

func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer by name
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers the event to every observer on its own goroutine.
// A panicking observer is logged and does not affect the request.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event PipelineEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		p.wg.Add(1)
		go func(obs Observer) {
			defer p.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}

// Wait blocks until every delivered event has been handled. Used on shutdown.
func (p *EventPublisher) Wait() {
	p.wg.Wait()
}
