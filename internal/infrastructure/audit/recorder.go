// Package audit provides the asynchronous audit trail recorder. Governance
// actions (denials, overrides, expiry flags) are queued on a buffered channel
// and written by a background worker, so recording never slows the caller.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	appmetering "github.com/schoolsaas/backend/internal/application/metering"
	"go.uber.org/zap"
)

const defaultBufferSize = 256

// EventStore persists audit entries. Implemented by
// persistence.AuditEventRepository.
type EventStore interface {
	Store(ctx context.Context, tenantID uuid.UUID, action, detail string, at time.Time) error
}

// Recorder is a fire-and-forget audit trail writer. When the buffer is full
// new events are dropped and counted; an audit trail is advisory and must
// never apply backpressure to the governance path.
type Recorder struct {
	store  EventStore
	logger *zap.Logger

	events chan appmetering.AuditEvent
	done   chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	dropped int64
	closed  bool
}

// NewRecorder creates a recorder and starts its background writer
func NewRecorder(store EventStore, bufferSize int, logger *zap.Logger) *Recorder {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	r := &Recorder{
		store:  store,
		logger: logger,
		events: make(chan appmetering.AuditEvent, bufferSize),
		done:   make(chan struct{}),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Record queues an audit event without blocking. Events offered after Close
// or while the buffer is full are dropped. The closed check and the send
// stay under one lock, the same lock Close holds while closing the channel.
func (r *Recorder) Record(event appmetering.AuditEvent) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	select {
	case r.events <- event:
		r.mu.Unlock()
	default:
		r.dropped++
		dropped := r.dropped
		r.mu.Unlock()
		r.logger.Warn("Audit buffer full, event dropped",
			zap.String("tenant_id", event.TenantID.String()),
			zap.String("action", event.Action),
			zap.Int64("dropped_total", dropped))
	}
}

// Dropped returns how many events have been discarded since start
func (r *Recorder) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close drains the queue and stops the writer. Safe to call once.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.events)
	r.mu.Unlock()

	r.wg.Wait()
	close(r.done)
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for event := range r.events {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := r.store.Store(ctx, event.TenantID, event.Action, event.Detail, event.At)
		cancel()
		if err != nil {
			r.logger.Warn("Failed to store audit event",
				zap.String("tenant_id", event.TenantID.String()),
				zap.String("action", event.Action),
				zap.Error(err))
		}
	}
}

// Ensure Recorder implements the interface
var _ appmetering.AuditRecorder = (*Recorder)(nil)
