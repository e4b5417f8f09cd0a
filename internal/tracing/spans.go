package tracing

// Span attribute keys.
const (
	// Navigation attributes
	AttrNavSession = "nav.session"
	AttrNavPath    = "nav.path"
	AttrNavLine    = "nav.line"
	AttrNavIndex   = "nav.index"
	AttrNavOutcome = "nav.outcome"

	// Prefetch attributes
	AttrPrefetchStart     = "prefetch.window.start"
	AttrPrefetchEnd       = "prefetch.window.end"
	AttrPrefetchRequested = "prefetch.requested"
	AttrPrefetchSkipped   = "prefetch.skipped"
	AttrPrefetchFailed    = "prefetch.failed"

	// Render attributes
	AttrRenderPath     = "render.path"
	AttrRenderCacheHit = "render.cache_hit"

	// Error attributes
	AttrErrorMessage = "error.message"
)

// Span names.
const (
	SpanNavigation   = "nav.session"
	SpanPrefetchPass = "prefetch.pass"
	SpanRender       = "render.compute"
	SpanLoadDiffs    = "git.load_diffs"
)

// Navigation outcomes recorded on AttrNavOutcome.
const (
	OutcomeAligned    = "aligned"
	OutcomeOverridden = "overridden"
	OutcomeReplaced   = "replaced"
	OutcomeDropped    = "dropped"
	OutcomeClosed     = "closed"
)

// Event names for span events.
const (
	EventPrefetchSkip  = "prefetch.skip"
	EventPrefetchError = "prefetch.error"
	EventNavFrozen     = "nav.frozen"
)
