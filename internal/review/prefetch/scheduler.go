// Package prefetch warms the diff render cache for items near the visible
// range, collapsing bursts of range events into one pass.
package prefetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/taskreview/internal/clock"
	"github.com/zjrosen/taskreview/internal/log"
	"github.com/zjrosen/taskreview/internal/render"
	"github.com/zjrosen/taskreview/internal/review/catalog"
	"github.com/zjrosen/taskreview/internal/review/viewport"
	"github.com/zjrosen/taskreview/internal/tracing"
)

// RenderProvider is the diff render service. Request must not block on the
// computation itself.
type RenderProvider interface {
	Request(ctx context.Context, params render.Params) render.Result
}

// Skip reasons.
const (
	SkipCollapsed = "collapsed"
	SkipIdentical = "identical"
	SkipTooLarge  = "too_large"
	SkipOmitted   = "omitted"
)

// Config holds the scheduler thresholds.
type Config struct {
	// Delay between the first range event of a burst and the pass.
	Delay time.Duration
	// Buffer widens the range on both sides.
	Buffer int
	// MaxLines is the largest additions+deletions worth prefetching.
	MaxLines int
	// ContextLines is forwarded to the render provider.
	ContextLines int
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{Delay: 120 * time.Millisecond, Buffer: 5, MaxLines: 1000, ContextLines: 3}
}

// Deps are the scheduler's collaborators.
type Deps struct {
	Provider RenderProvider
	Clock    clock.Clock
	Tracer   trace.Tracer
}

// Pass summarizes one prefetch pass.
type Pass struct {
	Window    viewport.Range
	Requested []string
	Skipped   map[string]string
	Failed    []string
}

// Scheduler decides which items near the viewport to prefetch.
type Scheduler struct {
	cfg      Config
	provider RenderProvider
	clock    clock.Clock
	tracer   trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	cat      *catalog.Catalog
	latest   viewport.Range
	timer    clock.Timer
	closed   bool
	passes   int
	lastPass Pass
}

// New creates a scheduler over cat.
func New(cfg Config, cat *catalog.Catalog, deps Deps) *Scheduler {
	def := DefaultConfig()
	if cfg.Delay <= 0 {
		cfg.Delay = def.Delay
	}
	if cfg.Buffer < 0 {
		cfg.Buffer = 0
	}
	if cfg.MaxLines <= 0 {
		cfg.MaxLines = def.MaxLines
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	if cat == nil {
		cat = catalog.Empty()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cfg:      cfg,
		provider: deps.Provider,
		clock:    clk,
		tracer:   tracing.OrNoop(deps.Tracer),
		ctx:      ctx,
		cancel:   cancel,
		cat:      cat,
	}
}

// SkipReason returns why item is not worth prefetching, or "" if it is.
func SkipReason(item catalog.DiffItem, maxLines int) string {
	switch {
	case !item.InitialExpanded:
		return SkipCollapsed
	case item.ContentOmitted:
		return SkipOmitted
	case item.Identical():
		return SkipIdentical
	case item.ChangedLines() > maxLines:
		return SkipTooLarge
	default:
		return ""
	}
}

// Schedule records rng as the latest range and arms the pass timer if it is
// not already armed. It never blocks on rendering.
func (s *Scheduler) Schedule(rng viewport.Range) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.latest = rng
	if s.timer == nil {
		s.timer = s.clock.AfterFunc(s.cfg.Delay, s.run)
	}
}

// SetCatalog swaps the catalog used by later passes.
func (s *Scheduler) SetCatalog(cat *catalog.Catalog) {
	if cat == nil {
		cat = catalog.Empty()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cat = cat
}

// Close cancels a pending pass. Later calls to Schedule are ignored.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.cancel()
}

// Passes returns how many passes have run.
func (s *Scheduler) Passes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.passes
}

// LastPass returns the summary of the most recent pass.
func (s *Scheduler) LastPass() Pass {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPass
}

// Window returns rng widened by buffer and clipped to a catalog of n items.
// ok is false when n is zero.
func Window(rng viewport.Range, buffer, n int) (viewport.Range, bool) {
	if n <= 0 {
		return viewport.Range{}, false
	}
	rng = rng.Normalize()
	start := max(0, rng.StartIndex-buffer)
	end := min(n-1, rng.EndIndex+buffer)
	if start > end {
		return viewport.Range{}, false
	}
	return viewport.Range{StartIndex: start, EndIndex: end}, true
}

func (s *Scheduler) run() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	rng := s.latest
	cat := s.cat
	s.mu.Unlock()

	pass := s.pass(cat, rng)

	s.mu.Lock()
	s.passes++
	s.lastPass = pass
	s.mu.Unlock()
}

func (s *Scheduler) pass(cat *catalog.Catalog, rng viewport.Range) Pass {
	pass := Pass{Skipped: make(map[string]string)}
	window, ok := Window(rng, s.cfg.Buffer, cat.Len())
	if !ok {
		return pass
	}
	pass.Window = window

	ctx, span := s.tracer.Start(s.ctx, tracing.SpanPrefetchPass, trace.WithAttributes(
		attribute.Int(tracing.AttrPrefetchStart, window.StartIndex),
		attribute.Int(tracing.AttrPrefetchEnd, window.EndIndex),
	))
	defer span.End()

	for i := window.StartIndex; i <= window.EndIndex; i++ {
		if ctx.Err() != nil {
			break
		}
		item, _ := cat.At(i)
		if reason := SkipReason(item, s.cfg.MaxLines); reason != "" {
			pass.Skipped[item.Key] = reason
			continue
		}
		if err := s.request(ctx, item); err != nil {
			pass.Failed = append(pass.Failed, item.Key)
			span.AddEvent(tracing.EventPrefetchError, trace.WithAttributes(
				attribute.String(tracing.AttrRenderPath, item.Key),
				attribute.String(tracing.AttrErrorMessage, err.Error()),
			))
			log.Warn(log.CatPrefetch, "prefetch request failed", "path", item.Key, "error", err.Error())
			continue
		}
		pass.Requested = append(pass.Requested, item.Key)
	}

	span.SetAttributes(
		attribute.Int(tracing.AttrPrefetchRequested, len(pass.Requested)),
		attribute.Int(tracing.AttrPrefetchSkipped, len(pass.Skipped)),
		attribute.Int(tracing.AttrPrefetchFailed, len(pass.Failed)),
	)
	log.Debug(log.CatPrefetch, "prefetch pass",
		"start", window.StartIndex, "end", window.EndIndex,
		"requested", len(pass.Requested), "skipped", len(pass.Skipped), "failed", len(pass.Failed))
	return pass
}

// request issues one fire-and-forget render. A panic inside the provider is
// reported as an error for this item only.
func (s *Scheduler) request(ctx context.Context, item catalog.DiffItem) (err error) {
	if s.provider == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render provider panic: %v", r)
		}
	}()
	res := s.provider.Request(ctx, render.Params{
		Path:         item.Key,
		OldContent:   item.OldContent,
		NewContent:   item.NewContent,
		ContextLines: s.cfg.ContextLines,
	})
	return res.Err
}
