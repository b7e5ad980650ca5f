package voteauth

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const (
	auditEventLoginSuccess        = "login_success"
	auditEventLoginFailure        = "login_failure"
	auditEventLoginLocked         = "login_locked"
	auditEventTwoFactorRequired   = "two_factor_required"
	auditEventTwoFactorSuccess    = "two_factor_success"
	auditEventTwoFactorFailure    = "two_factor_failure"
	auditEventLogout              = "logout"
	auditEventRegisterSuccess     = "register_success"
	auditEventRegisterFailure     = "register_failure"
	auditEventEnrollmentStarted   = "two_factor_enrollment_started"
	auditEventEnrollmentConfirmed = "two_factor_enrollment_confirmed"
	auditEventResetRequested      = "password_reset_requested"
	auditEventResetConfirmed      = "password_reset_confirmed"
	auditEventResetFailure        = "password_reset_failure"
)

// auditDispatcher forwards events to the configured sink from a single
// goroutine so slow sinks never sit on the request path.
type auditDispatcher struct {
	cfg       AuditConfig
	sink      AuditSink
	ch        chan AuditEvent
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		cfg:  cfg,
		sink: sink,
		ch:   make(chan AuditEvent, cfg.BufferSize),
		done: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *auditDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.sink.Emit(context.Background(), event)
		case <-d.done:
			// Drain what is already buffered, then stop.
			for {
				select {
				case event := <-d.ch:
					d.sink.Emit(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// emitAudit builds and dispatches one event. metadata is lazily evaluated so
// disabled audit costs nothing beyond the nil check.
func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	cause error,
	metadata func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		UserID:    userID,
		Success:   success,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}
	if ip := clientIPFromContext(ctx); ip != "" {
		if event.Metadata == nil {
			event.Metadata = map[string]string{}
		}
		event.Metadata["ip"] = ip
	}

	e.audit.Emit(ctx, event)
}
