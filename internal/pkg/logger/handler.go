package logger

import (
	"context"
	"errors"
	log "log/slog"
)

// fanoutHandler 同一条记录写往多个目的地，单个目的地失败不影响其他目的地
type fanoutHandler struct {
	handlers []log.Handler
}

func newFanoutHandler(handlers ...log.Handler) *fanoutHandler {
	return &fanoutHandler{handlers: handlers}
}

func (s *fanoutHandler) Enabled(ctx context.Context, level log.Level) bool {
	for _, h := range s.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (s *fanoutHandler) Handle(ctx context.Context, r log.Record) error {
	var errs []error
	for _, h := range s.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *fanoutHandler) WithAttrs(attrs []log.Attr) log.Handler {
	return s.each(func(h log.Handler) log.Handler { return h.WithAttrs(attrs) })
}

func (s *fanoutHandler) WithGroup(name string) log.Handler {
	return s.each(func(h log.Handler) log.Handler { return h.WithGroup(name) })
}

func (s *fanoutHandler) each(fn func(log.Handler) log.Handler) log.Handler {
	next := make([]log.Handler, len(s.handlers))
	for i, h := range s.handlers {
		next[i] = fn(h)
	}
	return &fanoutHandler{handlers: next}
}

// tracedOnlyHandler 只转发带 trace_id 的记录（请求与后台任务），启动阶段的日志只留在 stdout
type tracedOnlyHandler struct {
	next log.Handler
}

func (s *tracedOnlyHandler) Enabled(ctx context.Context, level log.Level) bool {
	return s.next.Enabled(ctx, level)
}

func (s *tracedOnlyHandler) Handle(ctx context.Context, r log.Record) error {
	if id, _ := ctx.Value(TraceIDKey).(string); id == "" {
		return nil
	}
	return s.next.Handle(ctx, r)
}

func (s *tracedOnlyHandler) WithAttrs(attrs []log.Attr) log.Handler {
	return &tracedOnlyHandler{next: s.next.WithAttrs(attrs)}
}

func (s *tracedOnlyHandler) WithGroup(name string) log.Handler {
	return &tracedOnlyHandler{next: s.next.WithGroup(name)}
}
