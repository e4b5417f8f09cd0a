package render

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/taskreview/internal/cachemanager"
	"github.com/zjrosen/taskreview/internal/config"
	"github.com/zjrosen/taskreview/internal/log"
	"github.com/zjrosen/taskreview/internal/tracing"
)

// ErrClosed is returned by requests made after Close.
var ErrClosed = errors.New("render provider closed")

// Ready reports a finished background render.
type Ready struct {
	Path string
	Key  string
	Err  error
}

// Provider renders diffs in the background and memoizes them by content
// identity. Request never blocks on a computation.
type Provider struct {
	store  *cachemanager.InMemoryCacheManager[string, *DiffFile]
	cache  *cachemanager.ReadThroughCache[string, *DiffFile, Params]
	ttl    time.Duration
	tracer trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	inflight  map[string]struct{}
	listeners []func(Ready)
	closed    bool

	computes atomic.Int64
}

// NewProvider creates a provider with the cache settings of cfg.
func NewProvider(cfg config.RenderConfig, tracer trace.Tracer) *Provider {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Provider{
		store:    cachemanager.NewInMemoryCacheManager[string, *DiffFile]("render", cfg.CacheTTL, cfg.CleanupInterval),
		ttl:      cfg.CacheTTL,
		tracer:   tracing.OrNoop(tracer),
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[string]struct{}),
	}
	p.cache = cachemanager.NewReadThroughCache[string, *DiffFile, Params](p.store, p.load)
	return p
}

// OnReady registers fn to be called from the worker goroutine after each
// background render started by Request completes.
func (p *Provider) OnReady(fn func(Ready)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Request returns the cached render for params, or starts one in the
// background and reports IsLoading.
func (p *Provider) Request(ctx context.Context, params Params) Result {
	if params.ContentOmitted {
		return Result{Err: ErrContentOmitted}
	}
	key := params.Key()
	if file, ok := p.cache.Peek(ctx, key); ok {
		return resultOf(file, params.Path)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return Result{Err: ErrClosed}
	}
	if _, busy := p.inflight[key]; busy {
		p.mu.Unlock()
		return Result{IsLoading: true}
	}
	p.inflight[key] = struct{}{}
	p.wg.Add(1)
	p.mu.Unlock()

	go p.background(key, params)
	return Result{IsLoading: true}
}

func (p *Provider) background(key string, params Params) {
	defer p.wg.Done()
	res := p.Compute(p.ctx, params)

	p.mu.Lock()
	delete(p.inflight, key)
	listeners := append([]func(Ready){}, p.listeners...)
	p.mu.Unlock()

	if res.Err != nil && !errors.Is(res.Err, context.Canceled) {
		log.Warn(log.CatRender, "background render failed", "path", params.Path, "error", res.Err.Error())
	}
	for _, fn := range listeners {
		fn(Ready{Path: params.Path, Key: key, Err: res.Err})
	}
}

// Compute returns the render for params, computing it on this goroutine when
// it is not cached. Concurrent calls for the same content share one computation.
func (p *Provider) Compute(ctx context.Context, params Params) Result {
	if params.ContentOmitted {
		return Result{Err: ErrContentOmitted}
	}
	file, err := p.cache.Get(ctx, params.Key(), params, p.ttl)
	if err != nil {
		return Result{Err: err}
	}
	return resultOf(file, params.Path)
}

// Cached reports whether a render for params is memoized.
func (p *Provider) Cached(params Params) bool {
	_, ok := p.cache.Peek(context.Background(), params.Key())
	return ok
}

// Computations returns how many renders were actually computed.
func (p *Provider) Computations() int64 {
	return p.computes.Load()
}

// Close cancels background renders and waits for them to exit.
func (p *Provider) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
	p.store.Flush(context.Background())
}

func (p *Provider) load(ctx context.Context, params Params) (*DiffFile, error) {
	p.computes.Add(1)
	ctx, span := p.tracer.Start(ctx, tracing.SpanRender, trace.WithAttributes(
		attribute.String(tracing.AttrRenderPath, params.Path),
	))
	defer span.End()

	start := time.Now()
	file, err := Compute(ctx, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	log.Debug(log.CatRender, "rendered diff", "path", params.Path, "hunks", len(file.Hunks), "elapsed", time.Since(start).String())
	return file, nil
}

// resultOf labels a shared cached render with the requesting path.
func resultOf(file *DiffFile, path string) Result {
	labeled := *file
	labeled.Path = path
	return Result{File: &labeled, Additions: file.Additions, Deletions: file.Deletions}
}
