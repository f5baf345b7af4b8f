package logger

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/kozaktomas/visagium/internal/constants"
)

// Event is one log record as delivered to stream listeners.
type Event struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

type broadcaster struct {
	mu        sync.RWMutex
	listeners []chan Event
}

// Stream is a slog.Handler that passes records to the wrapped handler and
// broadcasts them to listeners. Slow listeners drop events.
type Stream struct {
	next   slog.Handler
	b      *broadcaster
	attrs  []slog.Attr
	prefix string
}

// NewStream wraps next.
func NewStream(next slog.Handler) *Stream {
	return &Stream{next: next, b: &broadcaster{}}
}

// AddListener adds an event listener.
func (s *Stream) AddListener() chan Event {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	ch := make(chan Event, constants.EventChannelBuffer)
	s.b.listeners = append(s.b.listeners, ch)
	return ch
}

// RemoveListener removes and closes an event listener.
func (s *Stream) RemoveListener(ch chan Event) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	for i, listener := range s.b.listeners {
		if listener == ch {
			s.b.listeners = append(s.b.listeners[:i], s.b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// ListenerCount returns the number of attached listeners.
func (s *Stream) ListenerCount() int {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	return len(s.b.listeners)
}

func (s *Stream) Enabled(ctx context.Context, level slog.Level) bool {
	return s.next.Enabled(ctx, level)
}

func (s *Stream) Handle(ctx context.Context, r slog.Record) error {
	err := s.next.Handle(ctx, r)

	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	if len(s.b.listeners) == 0 {
		return err
	}

	ev := Event{Time: r.Time, Level: r.Level.String(), Message: r.Message}
	if len(s.attrs) > 0 || r.NumAttrs() > 0 {
		ev.Attrs = make(map[string]any, len(s.attrs)+r.NumAttrs())
		for _, a := range s.attrs {
			addAttr(ev.Attrs, "", a)
		}
		r.Attrs(func(a slog.Attr) bool {
			addAttr(ev.Attrs, s.prefix, a)
			return true
		})
	}
	for _, listener := range s.b.listeners {
		select {
		case listener <- ev:
		default:
			// Listener buffer full, skip.
		}
	}
	return err
}

func (s *Stream) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *s
	clone.next = s.next.WithAttrs(attrs)
	clone.attrs = append([]slog.Attr{}, s.attrs...)
	for _, a := range attrs {
		if s.prefix != "" {
			a.Key = s.prefix + a.Key
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

func (s *Stream) WithGroup(name string) slog.Handler {
	if name == "" {
		return s
	}
	clone := *s
	clone.next = s.next.WithGroup(name)
	clone.prefix = s.prefix + name + "."
	return &clone
}

func addAttr(dst map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, ga := range v.Group() {
			addAttr(dst, prefix+a.Key+".", ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	switch x := v.Any().(type) {
	case error:
		dst[prefix+a.Key] = x.Error()
	case float64:
		if math.IsInf(x, 0) || math.IsNaN(x) {
			dst[prefix+a.Key] = strconv.FormatFloat(x, 'g', -1, 64)
			return
		}
		dst[prefix+a.Key] = x
	default:
		dst[prefix+a.Key] = x
	}
}
