package logger

import (
	"context"
	"sync"

	"github.com/alexisbeaulieu97/flowcheck/internal/ports"
)

const defaultGateLimit = 1000

type level int

const (
	levelDebug level = iota
	levelInfo
	levelWarn
	levelError
)

type heldEntry struct {
	ctx    context.Context
	level  level
	msg    string
	fields []interface{}
}

// Gate forwards to a delegate logger, except while held: entries are then
// buffered and replayed in order on Release. The operator prompt holds the
// gate so log lines do not tear its display.
type Gate struct {
	delegate ports.Logger
	fields   []interface{}
	state    *gateState
}

type gateState struct {
	mu      sync.Mutex
	held    int
	limit   int
	entries []heldEntry
	dropped int
}

var _ ports.Logger = (*Gate)(nil)

// NewGate wraps delegate. limit bounds the buffer; the oldest entries are
// dropped first. A limit of zero selects the default.
func NewGate(delegate ports.Logger, limit int) *Gate {
	if limit <= 0 {
		limit = defaultGateLimit
	}
	return &Gate{delegate: delegate, state: &gateState{limit: limit}}
}

// Hold starts buffering. Holds nest.
func (g *Gate) Hold() {
	g.state.mu.Lock()
	g.state.held++
	g.state.mu.Unlock()
}

// Release ends one Hold and, once no hold remains, replays the buffer.
func (g *Gate) Release() {
	s := g.state
	s.mu.Lock()
	if s.held > 0 {
		s.held--
	}
	if s.held > 0 {
		s.mu.Unlock()
		return
	}
	entries := s.entries
	dropped := s.dropped
	s.entries = nil
	s.dropped = 0
	s.mu.Unlock()

	if g.delegate == nil {
		return
	}
	if dropped > 0 {
		g.delegate.Warn(context.Background(), "log entries dropped while prompt was open", "dropped", dropped)
	}
	for _, e := range entries {
		emit(g.delegate, e)
	}
}

// Held reports the number of buffered entries.
func (g *Gate) Held() int {
	g.state.mu.Lock()
	defer g.state.mu.Unlock()
	return len(g.state.entries)
}

// Debug implements ports.Logger.
func (g *Gate) Debug(ctx context.Context, msg string, fields ...interface{}) {
	g.log(ctx, levelDebug, msg, fields)
}

// Info implements ports.Logger.
func (g *Gate) Info(ctx context.Context, msg string, fields ...interface{}) {
	g.log(ctx, levelInfo, msg, fields)
}

// Warn implements ports.Logger.
func (g *Gate) Warn(ctx context.Context, msg string, fields ...interface{}) {
	g.log(ctx, levelWarn, msg, fields)
}

// Error implements ports.Logger.
func (g *Gate) Error(ctx context.Context, msg string, fields ...interface{}) {
	g.log(ctx, levelError, msg, fields)
}

// With returns a child sharing the same gate.
func (g *Gate) With(fields ...interface{}) ports.Logger {
	next := append(append([]interface{}{}, g.fields...), fields...)
	return &Gate{delegate: g.delegate, fields: next, state: g.state}
}

func (g *Gate) log(ctx context.Context, lvl level, msg string, fields []interface{}) {
	if g == nil || g.delegate == nil {
		return
	}
	entry := heldEntry{
		ctx:    ctx,
		level:  lvl,
		msg:    msg,
		fields: append(append([]interface{}{}, g.fields...), fields...),
	}

	s := g.state
	s.mu.Lock()
	if s.held == 0 {
		s.mu.Unlock()
		emit(g.delegate, entry)
		return
	}
	if len(s.entries) == s.limit {
		copy(s.entries, s.entries[1:])
		s.entries[len(s.entries)-1] = entry
		s.dropped++
	} else {
		s.entries = append(s.entries, entry)
	}
	s.mu.Unlock()
}

func emit(l ports.Logger, e heldEntry) {
	switch e.level {
	case levelDebug:
		l.Debug(e.ctx, e.msg, e.fields...)
	case levelWarn:
		l.Warn(e.ctx, e.msg, e.fields...)
	case levelError:
		l.Error(e.ctx, e.msg, e.fields...)
	default:
		l.Info(e.ctx, e.msg, e.fields...)
	}
}
