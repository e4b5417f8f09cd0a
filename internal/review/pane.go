// Package review is the review pane: it owns the item catalog, the viewport
// tracker, the scroll coordinator and the prefetch scheduler for one task's
// diff set, and fans the published "file in view" out to listeners.
package review

import (
	"context"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/taskreview/internal/clock"
	"github.com/zjrosen/taskreview/internal/config"
	"github.com/zjrosen/taskreview/internal/log"
	"github.com/zjrosen/taskreview/internal/pubsub"
	"github.com/zjrosen/taskreview/internal/review/catalog"
	"github.com/zjrosen/taskreview/internal/review/prefetch"
	"github.com/zjrosen/taskreview/internal/review/scroll"
	"github.com/zjrosen/taskreview/internal/review/viewport"
)

// FileInView is the payload of a publication. Path is empty when no file is in view.
type FileInView struct {
	Path     string
	Index    int
	Identity string
}

// Config gathers the thresholds of every pane component.
type Config struct {
	Scroll           scroll.Config
	Prefetch         prefetch.Config
	CollapsedKinds   []catalog.ChangeKind
	MaxExpandedLines int
	Estimator        catalog.HeightEstimator
	Ordering         catalog.Ordering
}

// DefaultConfig returns the stock pane configuration.
func DefaultConfig() Config {
	return ConfigFrom(config.DefaultReview(), config.Defaults().Render)
}

// ConfigFrom maps the user-facing config sections onto the pane config.
func ConfigFrom(rc config.ReviewConfig, render config.RenderConfig) Config {
	kinds := make([]catalog.ChangeKind, 0, len(rc.DefaultCollapsed))
	for _, k := range rc.DefaultCollapsed {
		kinds = append(kinds, catalog.ChangeKind(k))
	}
	est := catalog.DefaultHeightEstimator()
	if rc.LineHeight > 0 {
		// chrome is roughly two and a half lines of header and padding
		est.ChromeHeight = est.ChromeHeight / est.LineHeight * rc.LineHeight
		est.LineHeight = rc.LineHeight
	}
	if rc.MinDefaultHeight > 0 {
		est.MinHeight = rc.MinDefaultHeight
	}
	return Config{
		Scroll: scroll.Config{
			AlignEpsilon:    rc.AlignEpsilon,
			StabilityWindow: rc.StabilityWindow,
			OverrideWindow:  rc.OverrideWindow,
		},
		Prefetch: prefetch.Config{
			Delay:        rc.PrefetchDelay,
			Buffer:       rc.PrefetchBuffer,
			MaxLines:     rc.PrefetchMaxLines,
			ContextLines: render.ContextLines,
		},
		CollapsedKinds:   kinds,
		MaxExpandedLines: rc.CollapseMaxLines,
		Estimator:        est,
	}
}

// Deps are the pane's collaborators. Geometry is optional: without one the
// pane measures the elements registered through OnItemMounted.
type Deps struct {
	Scroller scroll.Scroller
	Renderer prefetch.RenderProvider
	Clock    clock.Clock
	Tracer   trace.Tracer
	Geometry viewport.GeometryProvider
}

// Pane wires one diff set's catalog to the coordinator and scheduler.
type Pane struct {
	cfg     Config
	tracker *viewport.Tracker
	policy  *catalog.ExpansionPolicy
	coord   *scroll.Coordinator
	sched   *prefetch.Scheduler
	broker  *pubsub.Broker[FileInView]

	mu            sync.RWMutex
	cat           *catalog.Catalog
	defaultHeight float64
	listeners     []func(FileInView)
	closed        bool
}

// New creates a pane with an empty catalog.
func New(cfg Config, deps Deps) *Pane {
	if cfg.Estimator.LineHeight <= 0 {
		cfg.Estimator = catalog.DefaultHeightEstimator()
	}
	p := &Pane{
		cfg:     cfg,
		tracker: viewport.NewTracker(),
		policy:  catalog.NewExpansionPolicy(cfg.CollapsedKinds, cfg.MaxExpandedLines),
		broker:  pubsub.NewBroker[FileInView](),
		cat:     catalog.Empty(),
	}
	p.defaultHeight = cfg.Estimator.DefaultHeight(nil)

	geom := deps.Geometry
	if geom == nil {
		geom = p.tracker
	}
	p.coord = scroll.New(cfg.Scroll, p.cat, scroll.Deps{
		Geometry: geom,
		Scroller: deps.Scroller,
		Clock:    deps.Clock,
		Tracer:   deps.Tracer,
		Publish:  p.emit,
	})
	p.sched = prefetch.New(cfg.Prefetch, p.cat, prefetch.Deps{
		Provider: deps.Renderer,
		Clock:    deps.Clock,
		Tracer:   deps.Tracer,
	})
	return p
}

// SetDiffs rebuilds the catalog when the record set's identity differs from
// the current one. Returns whether a rebuild happened.
func (p *Pane) SetDiffs(records []catalog.DiffRecord) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	if catalog.Identity(records) == p.cat.Identity() {
		p.mu.Unlock()
		return false
	}
	cat := catalog.Build(records, p.policy, p.cfg.Ordering)
	p.cat = cat
	p.defaultHeight = p.cfg.Estimator.DefaultHeight(records)
	p.mu.Unlock()

	log.Info(log.CatCatalog, "diff set changed", "items", cat.Len(), "identity", cat.Identity())
	p.coord.SetCatalog(cat)
	p.sched.SetCatalog(cat)
	return true
}

// ScrollToIndex navigates to the item at i, clamped to the catalog.
func (p *Pane) ScrollToIndex(i int) bool {
	cat := p.Catalog()
	item, ok := cat.At(cat.Clamp(i))
	if !ok {
		return false
	}
	return p.coord.SetTarget(item.Key, 0)
}

// ScrollToPath navigates to path. Line 0 means the top of the file.
func (p *Pane) ScrollToPath(path string, line int) bool {
	return p.coord.SetTarget(path, line)
}

// SetContainer registers the scroll container element.
func (p *Pane) SetContainer(el viewport.Element) {
	p.tracker.SetContainer(el)
}

// OnItemMounted registers (or with a nil element, unregisters) a mounted item.
func (p *Pane) OnItemMounted(path string, el viewport.Element) {
	p.tracker.OnItemMounted(path, el)
}

// OnRangeChanged feeds a visible range report to the coordinator, then the scheduler.
func (p *Pane) OnRangeChanged(rng viewport.Range) {
	p.coord.HandleRange(rng)
	p.sched.Schedule(rng)
}

// OnUserInput records user-originated scroll input.
func (p *Pane) OnUserInput(kind scroll.InputKind) {
	p.coord.NoteUserInput(kind)
}

// Subscribe returns a channel of publications for the lifetime of ctx.
func (p *Pane) Subscribe(ctx context.Context) <-chan pubsub.Event[FileInView] {
	return p.broker.Subscribe(ctx)
}

// Broker exposes the publication broker for pubsub.NewContinuousListener.
func (p *Pane) Broker() *pubsub.Broker[FileInView] {
	return p.broker
}

// OnFileInView registers a synchronous publication callback.
func (p *Pane) OnFileInView(fn func(FileInView)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Toggle flips path's expanded state and returns the new state.
func (p *Pane) Toggle(path string) (expanded, ok bool) {
	current, ok := p.Expanded(path)
	if !ok {
		return false, false
	}
	p.policy.Toggle(path, !current)
	log.Debug(log.CatUI, "toggled", "path", path, "expanded", !current)
	return !current, true
}

// Expanded returns path's current expanded state.
func (p *Pane) Expanded(path string) (expanded, ok bool) {
	cat := p.Catalog()
	i, ok := cat.IndexOf(path)
	if !ok {
		return false, false
	}
	if expanded, ok := p.policy.Expanded(path); ok {
		return expanded, true
	}
	item, _ := cat.At(i)
	return item.InitialExpanded, true
}

// Catalog returns the current catalog.
func (p *Pane) Catalog() *catalog.Catalog {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cat
}

// DefaultHeight returns the placeholder height for unmeasured items.
func (p *Pane) DefaultHeight() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.defaultHeight
}

// Published returns the path currently in view.
func (p *Pane) Published() string { return p.coord.Published() }

// State returns the navigation state.
func (p *Pane) State() scroll.State { return p.coord.State() }

// PendingTarget returns the navigation target still waiting to align.
func (p *Pane) PendingTarget() (scroll.Target, bool) { return p.coord.PendingTarget() }

// Prefetch exposes the scheduler's pass history.
func (p *Pane) Prefetch() *prefetch.Scheduler { return p.sched }

// Close stops all timers and closes subscriber channels. Safe to call twice.
func (p *Pane) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.coord.Close()
	p.sched.Close()
	p.broker.Close()
}

func (p *Pane) emit(path string) {
	p.mu.RLock()
	ev := FileInView{Path: path, Index: -1, Identity: p.cat.Identity()}
	if i, ok := p.cat.IndexOf(path); ok {
		ev.Index = i
	}
	listeners := slices.Clone(p.listeners)
	p.mu.RUnlock()

	log.Debug(log.CatNav, "notifying listeners", "path", path, "index", ev.Index)
	p.broker.Publish(pubsub.UpdatedEvent, ev)
	for _, fn := range listeners {
		fn(ev)
	}
}
