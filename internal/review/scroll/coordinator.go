// Package scroll reconciles explicit navigation requests, organic user
// scrolling and candidate stabilization into one published "file in view".
package scroll

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/taskreview/internal/clock"
	"github.com/zjrosen/taskreview/internal/log"
	"github.com/zjrosen/taskreview/internal/review/catalog"
	"github.com/zjrosen/taskreview/internal/review/viewport"
	"github.com/zjrosen/taskreview/internal/tracing"
)

// State is the coordinator's navigation state.
type State int

const (
	// StateIdle has no target; candidates flow into the publish debounce.
	StateIdle State = iota
	// StateTargetPending waits for the navigation target to align.
	StateTargetPending
	// StateFrozen holds the published path on a just-reached target until it drifts.
	StateFrozen
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTargetPending:
		return "target_pending"
	case StateFrozen:
		return "frozen"
	default:
		return "unknown"
	}
}

// InputKind classifies user-originated scroll input.
type InputKind string

const (
	InputWheel InputKind = "wheel"
	InputTouch InputKind = "touch"
	InputKey   InputKind = "key"
	InputDrag  InputKind = "drag"
)

// Scroller is the virtualization layer's imperative scroll handle.
type Scroller interface {
	ScrollToIndex(index int)
}

// ScrollerFunc adapts a function to Scroller.
type ScrollerFunc func(index int)

// ScrollToIndex calls f.
func (f ScrollerFunc) ScrollToIndex(index int) { f(index) }

// Target is an explicit navigation destination. Line 0 means no line.
type Target struct {
	Path    string
	Line    int
	SetAt   time.Time
	Session string
}

// Config holds the tuned thresholds.
type Config struct {
	// AlignEpsilon is the pixel distance from the viewport top that counts as arrived.
	AlignEpsilon float64
	// StabilityWindow is how long a candidate must hold before it is published.
	StabilityWindow time.Duration
	// OverrideWindow is the grace period after a navigation request during
	// which user input does not cancel it.
	OverrideWindow time.Duration
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		AlignEpsilon:    24,
		StabilityWindow: 80 * time.Millisecond,
		OverrideWindow:  400 * time.Millisecond,
	}
}

// Deps are the coordinator's collaborators. Only Geometry is required.
type Deps struct {
	Geometry viewport.GeometryProvider
	Scroller Scroller
	Clock    clock.Clock
	Tracer   trace.Tracer
	// Publish is called whenever the published path changes. It runs outside
	// the coordinator lock but must not call HandleRange synchronously.
	Publish func(path string)
}

type pendingTarget struct {
	Target
	span trace.Span
}

// Coordinator is the single owner of the view-in state.
type Coordinator struct {
	cfg      Config
	geom     viewport.GeometryProvider
	scroller Scroller
	clock    clock.Clock
	tracer   trace.Tracer
	publish  func(string)

	mu        sync.Mutex
	cat       *catalog.Catalog
	candidate string
	published string
	freeze    string
	target    *pendingTarget
	lastInput time.Time
	timer     clock.Timer
	timerPath string
	timerSeq  uint64
	closed    bool
	lastRange viewport.Range
	publishes int

	// emitMu serializes Publish calls so listeners observe changes in order.
	emitMu  sync.Mutex
	emitted string
}

// New creates a coordinator over cat.
func New(cfg Config, cat *catalog.Catalog, deps Deps) *Coordinator {
	def := DefaultConfig()
	if cfg.AlignEpsilon <= 0 {
		cfg.AlignEpsilon = def.AlignEpsilon
	}
	if cfg.StabilityWindow <= 0 {
		cfg.StabilityWindow = def.StabilityWindow
	}
	if cfg.OverrideWindow < 0 {
		cfg.OverrideWindow = def.OverrideWindow
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	if cat == nil {
		cat = catalog.Empty()
	}
	return &Coordinator{
		cfg:      cfg,
		geom:     deps.Geometry,
		scroller: deps.Scroller,
		clock:    clk,
		tracer:   tracing.OrNoop(deps.Tracer),
		publish:  deps.Publish,
		cat:      cat,
	}
}

// SetTarget starts a navigation session to path, replacing any pending one,
// and asks the scroller to bring the item into view. Returns false when path
// is not in the catalog or the coordinator is closed.
func (c *Coordinator) SetTarget(path string, line int) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	index, ok := c.cat.IndexOf(path)
	if !ok {
		c.mu.Unlock()
		log.Warn(log.CatNav, "scroll target not in catalog", "path", path)
		return false
	}

	c.endTargetLocked(tracing.OutcomeReplaced)
	c.freeze = ""
	c.cancelTimerLocked()

	session := uuid.NewString()
	_, span := c.tracer.Start(context.Background(), tracing.SpanNavigation, trace.WithAttributes(
		attribute.String(tracing.AttrNavSession, session),
		attribute.String(tracing.AttrNavPath, path),
		attribute.Int(tracing.AttrNavLine, line),
		attribute.Int(tracing.AttrNavIndex, index),
	))
	c.target = &pendingTarget{
		Target: Target{Path: path, Line: line, SetAt: c.clock.Now(), Session: session},
		span:   span,
	}
	scroller := c.scroller
	c.mu.Unlock()

	log.Debug(log.CatNav, "scroll target set", "path", path, "line", line, "index", index, "session", session)
	if scroller != nil {
		scroller.ScrollToIndex(index)
	}
	return true
}

// NoteUserInput records a user-originated scroll input at the current time.
func (c *Coordinator) NoteUserInput(kind InputKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.lastInput = c.clock.Now()
	if c.target != nil {
		log.Debug(log.CatNav, "user input during navigation", "kind", string(kind), "path", c.target.Path)
	}
}

// HandleRange processes one range-changed event from the virtualization layer.
func (c *Coordinator) HandleRange(rng viewport.Range) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.lastRange = rng
	c.handleRangeLocked(rng)
	c.mu.Unlock()
	c.flush()
}

func (c *Coordinator) handleRangeLocked(rng viewport.Range) {
	if c.target != nil {
		// The candidate keeps tracking the viewport but is never published
		// while a target is pending.
		if candidate := viewport.ResolveCandidate(rng, c.cat, c.geom, c.cfg.AlignEpsilon); candidate != "" {
			c.candidate = candidate
		}
		c.reconcileTargetLocked()
		return
	}

	if c.freeze != "" {
		if c.alignedLocked(c.freeze) {
			c.publishLocked(c.freeze)
			return
		}
		log.Debug(log.CatNav, "frozen path drifted", "path", c.freeze)
		c.freeze = ""
	}

	candidate := viewport.ResolveCandidate(rng, c.cat, c.geom, c.cfg.AlignEpsilon)
	if candidate == "" {
		return
	}
	previous := c.candidate
	c.candidate = candidate

	switch {
	case c.published == "" && c.publishes == 0:
		c.cancelTimerLocked()
		c.publishLocked(candidate)
	case candidate == c.published:
		c.cancelTimerLocked()
	case candidate != previous || c.timer == nil:
		c.scheduleLocked(candidate)
	}
}

func (c *Coordinator) reconcileTargetLocked() {
	t := c.target
	if c.alignedLocked(t.Path) {
		t.span.AddEvent(tracing.EventNavFrozen)
		c.endTargetLocked(tracing.OutcomeAligned)
		c.freeze = t.Path
		c.candidate = t.Path
		c.cancelTimerLocked()
		c.publishLocked(t.Path)
		log.Debug(log.CatNav, "scroll target aligned", "path", t.Path, "session", t.Session)
		return
	}
	if c.lastInput.After(t.SetAt.Add(c.cfg.OverrideWindow)) {
		c.endTargetLocked(tracing.OutcomeOverridden)
		log.Debug(log.CatNav, "scroll target overridden by user", "path", t.Path, "session", t.Session)
	}
}

func (c *Coordinator) alignedLocked(path string) bool {
	off, ok := viewport.Offset(c.geom, path)
	return ok && math.Abs(off) <= c.cfg.AlignEpsilon
}

func (c *Coordinator) scheduleLocked(path string) {
	c.cancelTimerLocked()
	c.timerSeq++
	seq := c.timerSeq
	c.timerPath = path
	c.timer = c.clock.AfterFunc(c.cfg.StabilityWindow, func() { c.fire(seq) })
}

func (c *Coordinator) fire(seq uint64) {
	c.mu.Lock()
	if c.closed || seq != c.timerSeq || c.timer == nil {
		c.mu.Unlock()
		return
	}
	path := c.timerPath
	c.timer = nil
	c.timerPath = ""
	if c.target == nil && c.freeze == "" && c.cat.Contains(path) {
		c.publishLocked(path)
	}
	c.mu.Unlock()
	c.flush()
}

func (c *Coordinator) cancelTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
		c.timerPath = ""
	}
	c.timerSeq++
}

func (c *Coordinator) publishLocked(path string) {
	if path == c.published {
		return
	}
	c.published = path
	c.publishes++
	log.Debug(log.CatNav, "file in view", "path", path)
}

func (c *Coordinator) endTargetLocked(outcome string) {
	if c.target == nil {
		return
	}
	c.target.span.SetAttributes(attribute.String(tracing.AttrNavOutcome, outcome))
	c.target.span.End()
	c.target = nil
}

// flush delivers the latest published path to Publish if it changed since
// the last delivery.
func (c *Coordinator) flush() {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	path := c.published
	changed := path != c.emitted
	c.emitted = path
	publish := c.publish
	c.mu.Unlock()

	if changed && publish != nil {
		publish(path)
	}
}

// SetCatalog swaps in a rebuilt catalog, dropping any state that refers to
// paths no longer present.
func (c *Coordinator) SetCatalog(cat *catalog.Catalog) {
	if cat == nil {
		cat = catalog.Empty()
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.cat = cat
	if c.target != nil && !cat.Contains(c.target.Path) {
		c.endTargetLocked(tracing.OutcomeDropped)
	}
	if c.freeze != "" && !cat.Contains(c.freeze) {
		c.freeze = ""
	}
	if c.candidate != "" && !cat.Contains(c.candidate) {
		c.candidate = ""
	}
	if c.timer != nil && !cat.Contains(c.timerPath) {
		c.cancelTimerLocked()
	}
	if c.published != "" && !cat.Contains(c.published) {
		log.Debug(log.CatNav, "published path left the catalog", "path", c.published)
		c.published = ""
	}
	c.mu.Unlock()
	c.flush()
}

// Close cancels the stability timer and ends any navigation session. Later
// calls are ignored.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.cancelTimerLocked()
	c.endTargetLocked(tracing.OutcomeClosed)
}

// Published returns the externally visible file in view.
func (c *Coordinator) Published() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.published
}

// Candidate returns the last resolved candidate path.
func (c *Coordinator) Candidate() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.candidate
}

// Frozen returns the path the coordinator is locked onto, if any.
func (c *Coordinator) Frozen() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.freeze
}

// PendingTarget returns the active navigation target.
func (c *Coordinator) PendingTarget() (Target, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.target == nil {
		return Target{}, false
	}
	return c.target.Target, true
}

// LastRange returns the most recent range passed to HandleRange.
func (c *Coordinator) LastRange() viewport.Range {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRange
}

// State returns the current navigation state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.target != nil:
		return StateTargetPending
	case c.freeze != "":
		return StateFrozen
	default:
		return StateIdle
	}
}
