// Package publisher fans audit events out to a structured log line and a
// backing audit.Store, either synchronously or through a bounded buffer.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	id "campus-sso/pkg/domain"
	audit "campus-sso/pkg/platform/audit"
	"campus-sso/pkg/requestcontext"
)

var (
	ErrBufferFull  = errors.New("audit buffer full")
	ErrClosed      = errors.New("audit publisher closed")
	ErrNotListable = errors.New("audit store does not support listing")
)

type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	buffer chan bufferedEvent
	done   chan struct{}
}

type bufferedEvent struct {
	ctx   context.Context
	event audit.Event
}

type Option func(*Publisher)

// WithAsyncBuffer makes Emit non-blocking. Events are dropped with
// ErrBufferFull when size events are already waiting.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.buffer = make(chan bufferedEvent, size)
		}
	}
}

// WithLogger mirrors every event as a "log_type=audit" log line.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher builds a publisher over store. A nil store only logs.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.done = make(chan struct{})
		go p.drain()
	}
	return p
}

// Emit stamps, enriches and records an event.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	event = enrich(ctx, event)
	p.log(ctx, event)
	if p.store == nil {
		return nil
	}

	if p.buffer == nil {
		return p.store.Append(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	// detach from request cancellation; the event outlives the request
	entry := bufferedEvent{ctx: context.WithoutCancel(ctx), event: event}
	select {
	case p.buffer <- entry:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit buffer full, dropping event", "action", event.Action)
		}
		return ErrBufferFull
	}
}

// List reads events back when the store supports it.
func (p *Publisher) List(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	lister, ok := p.store.(audit.Lister)
	if !ok {
		return nil, ErrNotListable
	}
	return lister.ListByUser(ctx, userID)
}

// Close stops accepting events and waits until buffered ones are written.
func (p *Publisher) Close() {
	if p.buffer == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.buffer)
	p.mu.Unlock()
	<-p.done
}

func (p *Publisher) drain() {
	defer close(p.done)
	for entry := range p.buffer {
		if err := p.store.Append(entry.ctx, entry.event); err != nil && p.logger != nil {
			p.logger.ErrorContext(entry.ctx, "failed to persist audit event",
				"action", entry.event.Action,
				"error", err,
			)
		}
	}
}

func (p *Publisher) log(ctx context.Context, event audit.Event) {
	if p.logger == nil {
		return
	}
	attrs := []any{
		"log_type", "audit",
		"category", string(event.Category),
		"request_id", event.RequestID,
	}
	if !event.UserID.IsNil() {
		attrs = append(attrs, "user_id", event.UserID.String())
	}
	if !event.ApplicationID.IsNil() {
		attrs = append(attrs, "app_id", event.ApplicationID.String())
	}
	if event.Decision != "" {
		attrs = append(attrs, "decision", event.Decision)
	}
	if event.Reason != "" {
		attrs = append(attrs, "reason", event.Reason)
	}
	if event.ClientIP != "" {
		attrs = append(attrs, "client_ip", event.ClientIP)
	}
	p.logger.InfoContext(ctx, event.Action, attrs...)
}

func enrich(ctx context.Context, event audit.Event) audit.Event {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if event.Device == "" {
		event.Device = requestcontext.Device(ctx)
	}
	return event
}
