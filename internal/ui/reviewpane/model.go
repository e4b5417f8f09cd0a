// Package reviewpane is the terminal host of the review pane: it lays the
// catalog out in rows, virtualizes which items are mounted, reports the
// visible range and live geometry, and draws the diff list with a file
// sidebar that follows the file in view.
package reviewpane

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	zone "github.com/lrstanley/bubblezone"

	"github.com/zjrosen/taskreview/internal/config"
	"github.com/zjrosen/taskreview/internal/keys"
	"github.com/zjrosen/taskreview/internal/log"
	"github.com/zjrosen/taskreview/internal/pubsub"
	"github.com/zjrosen/taskreview/internal/render"
	"github.com/zjrosen/taskreview/internal/review"
	"github.com/zjrosen/taskreview/internal/review/catalog"
	"github.com/zjrosen/taskreview/internal/review/prefetch"
	"github.com/zjrosen/taskreview/internal/review/scroll"
	"github.com/zjrosen/taskreview/internal/review/viewport"
	"github.com/zjrosen/taskreview/internal/ui/help"
	"github.com/zjrosen/taskreview/internal/ui/styles"
)

const (
	wheelStep = 3
	// overscan is how many items beyond the visible ones stay mounted.
	overscan = 2
)

// DiffsLoadedMsg carries a freshly loaded diff record set.
type DiffsLoadedMsg struct {
	Records []catalog.DiffRecord
	Err     error
}

// RenderReadyMsg reports a finished background render.
type RenderReadyMsg struct {
	render.Ready
}

// WorktreeChangedMsg is sent when the watcher reports a burst of changes.
type WorktreeChangedMsg struct{}

// LoadFunc loads the current diff record set.
type LoadFunc func(ctx context.Context) ([]catalog.DiffRecord, error)

// Scroller records scroll requests issued by the pane so the model can apply
// them within the Update that triggered them.
type Scroller struct {
	mu      sync.Mutex
	pending int
	has     bool
}

// NewScroller creates an idle scroller.
func NewScroller() *Scroller {
	return &Scroller{}
}

// ScrollToIndex implements scroll.Scroller.
func (s *Scroller) ScrollToIndex(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = index
	s.has = true
}

func (s *Scroller) take() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	index, ok := s.pending, s.has
	s.has = false
	return index, ok
}

// Options configures a Model.
type Options struct {
	Pane     *review.Pane
	Renderer prefetch.RenderProvider
	// Scroller must be the one passed to the pane's deps.
	Scroller     *Scroller
	Load         LoadFunc
	Changes      <-chan struct{}
	UI           config.UIConfig
	LineHeight   float64
	ContextLines int
	Context      context.Context
}

// viewState is the geometry read by mounted elements.
type viewState struct {
	mu         sync.RWMutex
	layout     layout
	byPath     map[string]int
	offset     int
	height     int
	lineHeight float64
}

func (v *viewState) containerBounds() (viewport.Rect, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.height <= 0 {
		return viewport.Rect{}, false
	}
	return viewport.Rect{Top: 0, Bottom: float64(v.height) * v.lineHeight}, true
}

func (v *viewState) element(path string) viewport.Element {
	return viewport.ElementFunc(func() (viewport.Rect, bool) {
		v.mu.RLock()
		defer v.mu.RUnlock()
		i, ok := v.byPath[path]
		if !ok {
			return viewport.Rect{}, false
		}
		s := v.layout.slots[i]
		top := float64(s.top-v.offset) * v.lineHeight
		return viewport.Rect{Top: top, Bottom: top + float64(s.rows)*v.lineHeight}, true
	})
}

type lineTarget struct {
	path string
	line int
}

// Model is the Bubble Tea review pane.
type Model struct {
	pane         *review.Pane
	renderer     prefetch.RenderProvider
	scroller     *Scroller
	load         LoadFunc
	changes      <-chan struct{}
	ctx          context.Context
	listener     *pubsub.ContinuousListener[review.FileInView]
	keys         keys.ReviewKeyMap
	ui           config.UIConfig
	contextLines int
	help         help.Model
	showHelp     bool

	view     *viewState
	rendered map[string][]bodyRow
	failed   map[string]string
	mounted  map[string]bool

	published string
	highlight lineTarget
	lastRange viewport.Range
	width     int
	height    int
	loading   bool
	err       error
}

// New creates the model and registers its container with the pane.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	lineHeight := opts.LineHeight
	if lineHeight <= 0 {
		lineHeight = 1
	}
	scroller := opts.Scroller
	if scroller == nil {
		scroller = NewScroller()
	}
	m := Model{
		pane:         opts.Pane,
		renderer:     opts.Renderer,
		scroller:     scroller,
		load:         opts.Load,
		changes:      opts.Changes,
		ctx:          ctx,
		listener:     pubsub.NewContinuousListener(ctx, opts.Pane.Broker()),
		keys:         keys.Review,
		ui:           opts.UI,
		contextLines: opts.ContextLines,
		help:         help.New(),
		view:         &viewState{byPath: map[string]int{}, lineHeight: lineHeight},
		rendered:     make(map[string][]bodyRow),
		failed:       make(map[string]string),
		mounted:      make(map[string]bool),
		lastRange:    viewport.Range{StartIndex: -1, EndIndex: -1},
		loading:      opts.Load != nil,
	}
	m.pane.SetContainer(viewport.ElementFunc(m.view.containerBounds))
	return m
}

// Init starts the publication listener, the first load and the watcher.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.listener.Listen(), m.loadCmd(), m.watchCmd())
}

func (m Model) loadCmd() tea.Cmd {
	if m.load == nil {
		return nil
	}
	load, ctx := m.load, m.ctx
	return func() tea.Msg {
		records, err := load(ctx)
		return DiffsLoadedMsg{Records: records, Err: err}
	}
}

func (m Model) watchCmd() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	ch, ctx := m.changes, m.ctx
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			return WorktreeChangedMsg{}
		}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help = m.help.SetSize(msg.Width, msg.Height)
		m.sync()
		return m, nil

	case DiffsLoadedMsg:
		m.loading = false
		if msg.Err != nil {
			m.err = msg.Err
			log.ErrorErr(log.CatUI, "loading diffs failed", msg.Err)
			return m, nil
		}
		m.err = nil
		if m.pane.SetDiffs(msg.Records) {
			clear(m.rendered)
			clear(m.failed)
		}
		m.sync()
		return m, nil

	case RenderReadyMsg:
		if msg.Err != nil {
			if m.pane.Catalog().Contains(msg.Path) {
				m.failed[msg.Path] = msg.Err.Error()
			}
		} else if m.mounted[msg.Path] {
			delete(m.rendered, msg.Path)
		}
		m.sync()
		return m, nil

	case pubsub.Event[review.FileInView]:
		m.published = msg.Payload.Path
		return m, m.listener.Listen()

	case WorktreeChangedMsg:
		log.Debug(log.CatUI, "worktree changed, reloading diffs")
		m.loading = true
		return m, tea.Batch(m.loadCmd(), m.watchCmd())

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help), key.Matches(msg, m.keys.Close):
			m.showHelp = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
	case key.Matches(msg, m.keys.Down):
		m.scrollBy(1, scroll.InputKey)
	case key.Matches(msg, m.keys.Up):
		m.scrollBy(-1, scroll.InputKey)
	case key.Matches(msg, m.keys.HalfPageDown):
		m.scrollBy(max(1, m.contentHeight()/2), scroll.InputKey)
	case key.Matches(msg, m.keys.HalfPageUp):
		m.scrollBy(-max(1, m.contentHeight()/2), scroll.InputKey)
	case key.Matches(msg, m.keys.Top):
		m.scrollTo(0, scroll.InputKey)
	case key.Matches(msg, m.keys.Bottom):
		m.scrollTo(m.view.layout.bottomOffset(m.contentHeight()), scroll.InputKey)
	case key.Matches(msg, m.keys.NextFile):
		m.jump(m.currentIndex() + 1)
	case key.Matches(msg, m.keys.PrevFile):
		m.jump(m.previousIndex())
	case key.Matches(msg, m.keys.Toggle):
		if item, ok := m.pane.Catalog().At(m.currentIndex()); ok {
			m.pane.Toggle(item.Key)
			m.sync()
		}
	case key.Matches(msg, m.keys.Refresh):
		m.loading = true
		return m, m.loadCmd()
	}
	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.scrollBy(-wheelStep, scroll.InputWheel)
	case tea.MouseButtonWheelDown:
		m.scrollBy(wheelStep, scroll.InputWheel)
	case tea.MouseButtonLeft:
		if msg.Action != tea.MouseActionRelease {
			return m, nil
		}
		cat := m.pane.Catalog()
		for i := range cat.Len() {
			if z := zone.Get(sidebarZoneID(i)); z != nil && z.InBounds(msg) {
				item, _ := cat.At(i)
				m.navigate(item.Key, 0)
				break
			}
		}
	}
	return m, nil
}

// NavigateTo starts a navigation to path, optionally to a line within it.
func (m *Model) NavigateTo(path string, line int) bool {
	return m.navigate(path, line)
}

func (m *Model) navigate(path string, line int) bool {
	if !m.pane.ScrollToPath(path, line) {
		return false
	}
	m.highlight = lineTarget{path: path, line: line}
	m.applyScroll()
	return true
}

func (m *Model) jump(index int) {
	cat := m.pane.Catalog()
	if cat.Len() == 0 {
		return
	}
	if !m.pane.ScrollToIndex(index) {
		return
	}
	m.highlight = lineTarget{}
	m.applyScroll()
}

func (m *Model) applyScroll() {
	if index, ok := m.scroller.take(); ok && index >= 0 && index < len(m.view.layout.slots) {
		m.setOffset(m.view.layout.slots[index].top)
	}
	m.sync()
}

func (m *Model) scrollBy(delta int, kind scroll.InputKind) {
	m.scrollTo(m.view.offset+delta, kind)
}

func (m *Model) scrollTo(offset int, kind scroll.InputKind) {
	m.pane.OnUserInput(kind)
	m.setOffset(offset)
	m.sync()
}

func (m *Model) setOffset(offset int) {
	m.view.mu.Lock()
	defer m.view.mu.Unlock()
	m.view.offset = max(0, min(offset, m.view.layout.maxOffset(m.view.height)))
}

// currentIndex is the published file, or the item at the top of the viewport.
func (m Model) currentIndex() int {
	if i, ok := m.pane.Catalog().IndexOf(m.published); ok {
		return i
	}
	return max(0, m.view.layout.indexAt(m.view.offset))
}

// previousIndex is the start of the current file unless already there.
func (m Model) previousIndex() int {
	cur := m.currentIndex()
	if cur < len(m.view.layout.slots) && m.view.offset > m.view.layout.slots[cur].top {
		return cur
	}
	return cur - 1
}

func (m Model) contentHeight() int {
	h := m.height
	if m.ui.ShowStatusBar {
		h--
	}
	return max(0, h)
}

func (m Model) sidebarWidth() int {
	if m.ui.SidebarWidth <= 0 {
		return 0
	}
	return min(m.ui.SidebarWidth, m.width/2)
}

func (m Model) contentWidth() int {
	w := m.width
	if sw := m.sidebarWidth(); sw > 0 {
		w -= sw + 1
	}
	if m.ui.ShowScrollbar {
		w--
	}
	return max(0, w)
}

// bodyRows is the number of rows below item's header.
func (m Model) bodyRows(item catalog.DiffItem) int {
	if expanded, _ := m.pane.Expanded(item.Key); !expanded {
		return 0
	}
	if item.ContentOmitted || item.Identical() || m.failed[item.Key] != "" {
		return 1
	}
	if rows, ok := m.rendered[item.Key]; ok {
		return max(1, len(rows))
	}
	return estimateRows(item)
}

func (m *Model) relayout() {
	cat := m.pane.Catalog()
	items := cat.Items()
	l := buildLayout(cat.Keys(), func(i int) int { return 1 + m.bodyRows(items[i]) })
	byPath := make(map[string]int, len(items))
	for i, item := range items {
		byPath[item.Key] = i
	}

	m.view.mu.Lock()
	m.view.layout = l
	m.view.byPath = byPath
	m.view.height = m.contentHeight()
	m.view.offset = max(0, min(m.view.offset, l.maxOffset(m.view.height)))
	m.view.mu.Unlock()
}

// requestVisible asks the renderer for every mounted, expanded item not yet
// rendered. Returns whether any rows arrived from the cache.
func (m *Model) requestVisible(first, last int) bool {
	if m.renderer == nil {
		return false
	}
	cat := m.pane.Catalog()
	changed := false
	for i := max(0, first-overscan); i <= min(cat.Len()-1, last+overscan); i++ {
		item, _ := cat.At(i)
		if _, ok := m.rendered[item.Key]; ok || m.failed[item.Key] != "" {
			continue
		}
		if expanded, _ := m.pane.Expanded(item.Key); !expanded || item.ContentOmitted || item.Identical() {
			continue
		}
		res := m.renderer.Request(m.ctx, render.Params{
			Path:         item.Key,
			OldContent:   item.OldContent,
			NewContent:   item.NewContent,
			ContextLines: m.contextLines,
		})
		switch {
		case res.Err != nil:
			m.failed[item.Key] = res.Err.Error()
			changed = true
		case res.File != nil:
			m.rendered[item.Key] = flatten(res.File)
			changed = true
		}
	}
	return changed
}

// sync relays out, mounts the items near the viewport, and reports the
// visible range to the pane.
func (m *Model) sync() {
	m.relayout()
	height := m.contentHeight()
	first, last, ok := m.view.layout.visible(m.view.offset, height)
	if ok && m.requestVisible(first, last) {
		m.relayout()
		first, last, ok = m.view.layout.visible(m.view.offset, height)
	}

	keep := make(map[string]bool)
	if ok {
		for i := max(0, first-overscan); i <= min(len(m.view.layout.slots)-1, last+overscan); i++ {
			keep[m.view.layout.slots[i].path] = true
		}
	}
	for path := range m.mounted {
		if !keep[path] {
			m.pane.OnItemMounted(path, nil)
			delete(m.mounted, path)
		}
	}
	for path := range keep {
		if !m.mounted[path] {
			m.pane.OnItemMounted(path, m.view.element(path))
			m.mounted[path] = true
		}
	}

	if !ok {
		return
	}
	m.lastRange = viewport.Range{StartIndex: first, EndIndex: last}
	m.pane.OnRangeChanged(m.lastRange)
}

// View renders the pane.
func (m Model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}
	height := m.contentHeight()

	var content string
	switch {
	case m.err != nil:
		content = styles.ErrorStyle.Render("Error: " + m.err.Error())
	case m.pane.Catalog().Len() == 0 && m.loading:
		content = renderPlaceholder("Loading diffs…")
	case m.pane.Catalog().Len() == 0:
		content = renderPlaceholder("No changes")
	default:
		content = m.renderContent(height)
	}
	content = fitBlock(content, m.contentWidth(), height)

	columns := make([]string, 0, 3)
	if sw := m.sidebarWidth(); sw > 0 {
		columns = append(columns, styles.SidebarStyle.Render(m.renderSidebar(sw, height)))
	}
	columns = append(columns, content)
	if m.ui.ShowScrollbar {
		bar := scrollbar{totalRows: m.view.layout.total, height: height, offset: m.view.offset}
		columns = append(columns, fitBlock(bar.render(), 1, height))
	}
	out := lipgloss.JoinHorizontal(lipgloss.Top, columns...)

	if m.ui.ShowStatusBar {
		out = lipgloss.JoinVertical(lipgloss.Left, out, m.renderStatus())
	}
	if m.showHelp {
		out = m.help.Overlay(out)
	}
	return zone.Scan(out)
}

func (m Model) renderContent(height int) string {
	cat := m.pane.Catalog()
	l := m.view.layout
	lines := make([]string, 0, height)
	for row := m.view.offset; row < m.view.offset+height && row < l.total; row++ {
		i := l.indexAt(row)
		item, _ := cat.At(i)
		within := row - l.slots[i].top
		lines = append(lines, m.renderItemRow(item, within))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderItemRow(item catalog.DiffItem, within int) string {
	expanded, _ := m.pane.Expanded(item.Key)
	if within == 0 {
		return renderHeader(item, expanded)
	}
	switch {
	case item.ContentOmitted:
		return renderPlaceholder("Diff too large to display")
	case item.Identical():
		return renderPlaceholder("No content changes")
	case m.failed[item.Key] != "":
		return renderPlaceholder("Render failed: " + m.failed[item.Key])
	}
	rows, ok := m.rendered[item.Key]
	if !ok {
		if within == 1 {
			return renderPlaceholder("Loading…")
		}
		return ""
	}
	if within-1 >= len(rows) {
		return ""
	}
	row := rows[within-1]
	hl := m.highlight.path == item.Key && m.highlight.line > 0 && row.line.NewNum == m.highlight.line
	return renderRow(row, hl)
}

func sidebarZoneID(i int) string {
	return fmt.Sprintf("reviewpane-file-%d", i)
}

func (m Model) renderSidebar(width, height int) string {
	cat := m.pane.Catalog()
	n := cat.Len()
	if n == 0 || height <= 0 {
		return ""
	}

	// keep the published file visible
	start := 0
	if sel, ok := cat.IndexOf(m.published); ok && sel >= height {
		start = min(sel-height/2, n-height)
	}
	end := min(n, start+height)

	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		item, _ := cat.At(i)
		label := kindGlyph(item.ChangeKind) + " " + styles.TruncatePath(item.Key, width-3)
		var line string
		if item.Key == m.published {
			line = styles.SidebarSelectedStyle.Width(width).Render("▌" + label)
		} else {
			line = styles.SidebarItemStyle.Width(width).Render(" " + label)
		}
		lines = append(lines, zone.Mark(sidebarZoneID(i), line))
	}
	return fitBlock(strings.Join(lines, "\n"), width, height)
}

func (m Model) renderStatus() string {
	cat := m.pane.Catalog()
	parts := []string{fmt.Sprintf("%d files", cat.Len())}
	if m.published != "" {
		parts = append(parts, m.published)
	}
	if state := m.pane.State(); state != scroll.StateIdle {
		parts = append(parts, state.String())
	}
	if m.loading {
		parts = append(parts, "loading")
	}
	return styles.StatusBarStyle.Render(ansi.Truncate(strings.Join(parts, " · "), max(0, m.width-2), "…"))
}

// fitBlock truncates or pads s to exactly width columns and height lines.
func fitBlock(s string, width, height int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	for i, line := range lines {
		line = ansi.Truncate(line, width, "")
		if pad := width - ansi.StringWidth(line); pad > 0 {
			line += strings.Repeat(" ", pad)
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

// Published returns the file currently in view.
func (m Model) Published() string { return m.published }

// Offset returns the scroll offset in rows.
func (m Model) Offset() int { return m.view.offset }

// LastRange returns the most recent range reported to the pane.
func (m Model) LastRange() viewport.Range { return m.lastRange }
