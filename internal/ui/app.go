package ui

import (
	"fmt"
	"time"

	"github.com/abelbrown/thinktok/internal/api"
	"github.com/abelbrown/thinktok/internal/history"
	"github.com/abelbrown/thinktok/internal/logging"
	"github.com/abelbrown/thinktok/internal/otel"
	"github.com/abelbrown/thinktok/internal/pager"
	"github.com/abelbrown/thinktok/internal/tracker"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Exclusions supplies the IDs every feed request excludes. *history.Store
// satisfies it.
type Exclusions interface {
	Entries() []string
}

// ObsConfig carries the observability sinks. Both may be nil.
type ObsConfig struct {
	Events *otel.Logger
	Ring   *otel.RingBuffer
}

// AppConfig wires the App to its collaborators. Every func returns a tea.Cmd;
// the App itself never performs I/O.
type AppConfig struct {
	Pager   *pager.Controller
	Tracker *tracker.Tracker
	History Exclusions

	FetchFeed          func(exclude []string) tea.Cmd
	FetchSupplementary func(exclude []string) tea.Cmd
	FetchMore          func(exclude []string) tea.Cmd
	ReportView         func(r tracker.Report) tea.Cmd
	ToggleLike         func(contentID string) tea.Cmd
	LoadComments       func(contentID string) tea.Cmd
	PostComment        func(contentID, text string) tea.Cmd

	Obs ObsConfig
}

// App is the root Bubble Tea model.
// IMPORTANT: App does NOT hold the store or the API client. Results arrive as
// messages produced by the AppConfig funcs.
type App struct {
	cfg      AppConfig
	pager    *pager.Controller
	tracker  *tracker.Tracker
	history  Exclusions
	events   *otel.Logger
	ring     *otel.RingBuffer
	renderer *CardRenderer

	keys    keyMap
	help    help.Model
	spinner spinner.Model

	cursor         int // index into the rendered list; == Len() is the footer
	expanded       bool
	feedReady      bool
	initialLoading bool
	moreFailed     bool

	sheet     commentSheet
	sheetOpen bool

	err          error
	width        int
	height       int
	ready        bool
	debugVisible bool
	quitting     bool
}

// NewAppWithConfig creates an App. Missing pager, tracker or history are
// replaced by in-memory defaults.
func NewAppWithConfig(cfg AppConfig) App {
	if cfg.Pager == nil {
		cfg.Pager = pager.New(pager.DefaultThreshold)
	}
	if cfg.History == nil || cfg.Tracker == nil {
		mem, _ := history.Load(history.NewMemoryBackend())
		if cfg.History == nil {
			cfg.History = mem
		}
		if cfg.Tracker == nil {
			cfg.Tracker = tracker.New(mem, nil)
		}
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorHighlight)

	return App{
		cfg:            cfg,
		pager:          cfg.Pager,
		tracker:        cfg.Tracker,
		history:        cfg.History,
		events:         cfg.Obs.Events,
		ring:           cfg.Obs.Ring,
		renderer:       NewCardRenderer(DefaultCardCacheSize),
		keys:           defaultKeyMap(),
		help:           help.New(),
		spinner:        sp,
		initialLoading: cfg.FetchFeed != nil,
	}
}

// Init requests the initial feed and starts the spinner.
func (a App) Init() tea.Cmd {
	if a.cfg.FetchFeed == nil {
		return nil
	}
	a.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindFetchStart, Comp: "ui", Endpoint: api.PathFeed})
	return tea.Batch(a.spinner.Tick, a.cfg.FetchFeed(a.exclusions()))
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if a.events.Tracing() {
		name := fmt.Sprintf("%T", msg)
		start := time.Now()
		a.events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindMsgReceived, Comp: "ui", Msg: name})
		defer func() {
			a.events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindMsgHandled, Comp: "ui", Msg: name, Dur: time.Since(start)})
		}()
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.help.Width = msg.Width
		if a.sheetOpen {
			a.sheet.setSize(a.width, a.sheetHeight())
		}
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case FeedLoaded:
		return a.handleFeedLoaded(msg)

	case SupplementLoaded:
		a.events.Fetch(api.PathFeedMore, len(msg.Items), msg.Took, msg.Err)
		if msg.Err != nil {
			logging.Warn("supplementary batch failed", "err", msg.Err)
			return a, nil
		}
		if a.pager.Append(msg.Items) == 0 {
			return a, nil
		}
		return a, a.afterAppend()

	case MoreLoaded:
		return a.handleMoreLoaded(msg)

	case ViewReported:
		if msg.Err != nil {
			logging.Warn("view report failed", "content_id", msg.ContentID, "err", msg.Err)
			a.events.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindViewError, Comp: "ui", ContentID: msg.ContentID, Err: msg.Err.Error()})
		}
		return a, nil

	case LikeToggled:
		if msg.Err != nil {
			a.err = fmt.Errorf("like failed: %w", msg.Err)
			return a, nil
		}
		a.updateItem(msg.ContentID, func(it *api.FeedItem) { it.IsLiked = msg.Liked })
		a.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindLike, Comp: "ui", ContentID: msg.ContentID, Extra: map[string]any{"liked": msg.Liked}})
		return a, nil

	case CommentsLoaded:
		if !a.sheetOpen || a.sheet.contentID != msg.ContentID {
			return a, nil
		}
		if msg.Err != nil {
			a.sheet.loading = false
			a.sheet.err = fmt.Errorf("couldn't load comments: %w", msg.Err)
			a.sheet.refresh()
			return a, nil
		}
		a.sheet.setPage(msg.Page)
		n := len(msg.Page.Comments)
		a.updateItem(msg.ContentID, func(it *api.FeedItem) { it.CommentCount = n })
		return a, nil

	case CommentPosted:
		if msg.Err != nil {
			if a.sheetOpen && a.sheet.contentID == msg.ContentID {
				a.sheet.posting = false
				a.sheet.err = fmt.Errorf("couldn't post comment: %w", msg.Err)
			} else {
				a.err = fmt.Errorf("couldn't post comment: %w", msg.Err)
			}
			return a, nil
		}
		if a.sheetOpen && a.sheet.contentID == msg.ContentID {
			a.sheet.added(msg.Comment)
		}
		a.updateItem(msg.ContentID, func(it *api.FeedItem) { it.CommentCount++ })
		a.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindComment, Comp: "ui", ContentID: msg.ContentID})
		return a, nil
	}

	if a.sheetOpen {
		var cmd tea.Cmd
		a.sheet, cmd = a.sheet.update(msg)
		return a, cmd
	}
	return a, nil
}

func (a App) handleFeedLoaded(msg FeedLoaded) (tea.Model, tea.Cmd) {
	a.initialLoading = false
	a.events.Fetch(api.PathFeed, len(msg.Items), msg.Took, msg.Err)
	if msg.Err != nil {
		logging.Error("initial feed failed", "err", msg.Err)
		a.err = fmt.Errorf("couldn't load the feed: %w", msg.Err)
		return a, nil
	}

	a.pager.Reset(msg.Items)
	a.feedReady = true
	a.cursor = 0
	a.enterCurrent()

	var cmds []tea.Cmd
	if a.cfg.FetchSupplementary != nil {
		a.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindFetchStart, Comp: "ui", Endpoint: api.PathFeedMore})
		cmds = append(cmds, a.cfg.FetchSupplementary(a.exclusions()))
	}
	cmds = append(cmds, a.checkSentinel())
	return a, tea.Batch(cmds...)
}

func (a App) handleMoreLoaded(msg MoreLoaded) (tea.Model, tea.Cmd) {
	outcome := a.pager.Finish(msg.Items, msg.Err)
	if outcome == pager.OutcomeIgnored {
		return a, nil
	}
	a.events.Fetch(api.PathLoadMore, len(msg.Items), msg.Took, msg.Err)

	switch outcome {
	case pager.OutcomeFailed:
		// The sentinel stays put; the next scroll past it retries.
		a.moreFailed = true
		logging.Warn("load more failed", "err", msg.Err)
		return a, nil
	case pager.OutcomeExhausted:
		a.events.Info(otel.KindExhausted, "ui", fmt.Sprintf("%d cards", a.pager.Len()))
		logging.Info("feed exhausted", "cards", a.pager.Len())
		return a, nil
	}
	return a, a.afterAppend()
}

// afterAppend runs once new cards were added: a cursor parked on the footer
// now sits on a card, and the moved sentinel gets a fresh visibility check.
func (a *App) afterAppend() tea.Cmd {
	a.enterCurrent()
	return a.checkSentinel()
}

// checkSentinel starts a load-more fetch when the sentinel is in view and no
// fetch is in flight.
func (a *App) checkSentinel() tea.Cmd {
	if a.cfg.FetchMore == nil || !a.pager.ShouldFetch(a.cursor) {
		return nil
	}
	a.moreFailed = false
	a.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindFetchStart, Comp: "ui", Endpoint: api.PathLoadMore})
	return a.cfg.FetchMore(a.exclusions())
}

func (a App) exclusions() []string {
	return a.history.Entries()
}

// enterCurrent opens a view session for the card under the cursor.
func (a *App) enterCurrent() {
	item, ok := a.pager.Item(a.cursor)
	if !ok || a.tracker.Viewing(item.ContentID) {
		return
	}
	a.tracker.Enter(item.ContentID)
	a.events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindViewEnter, Comp: "ui", ContentID: item.ContentID})
}

// leaveCurrent closes the session of the card under the cursor.
func (a *App) leaveCurrent() tea.Cmd {
	item, ok := a.pager.Item(a.cursor)
	if !ok {
		return nil
	}
	return a.handleOutcome(a.tracker.Leave(item.ContentID))
}

func (a *App) handleOutcome(out tracker.Outcome) tea.Cmd {
	if out.Report.ContentID == "" {
		return nil
	}
	a.events.View(out.Report.ContentID, out.Report.Duration, string(out.Reason))
	if out.HistoryErr != nil {
		logging.Warn("viewed history not persisted", "content_id", out.Report.ContentID, "err", out.HistoryErr)
		a.events.Error(otel.KindStoreError, "history", out.HistoryErr)
	}
	if !out.Eligible || a.cfg.ReportView == nil {
		return nil
	}
	return a.cfg.ReportView(out.Report)
}

// moveTo scrolls to index j, clamped to [0, Len()]. Leaving, entering and the
// sentinel check happen in that order.
func (a App) moveTo(j int) (App, tea.Cmd) {
	if !a.feedReady {
		return a, nil
	}
	if j > a.pager.Len() {
		j = a.pager.Len()
	}
	if j < 0 {
		j = 0
	}
	if j == a.cursor {
		return a, nil
	}

	leave := a.leaveCurrent()
	a.cursor = j
	a.expanded = false
	a.enterCurrent()
	return a, tea.Batch(leave, a.checkSentinel())
}

func (a *App) updateItem(contentID string, fn func(*api.FeedItem)) {
	for _, it := range a.pager.Items() {
		if it.ContentID == contentID {
			fn(&it)
			a.pager.Update(it)
			return
		}
	}
}

func (a App) currentItem() (api.FeedItem, bool) {
	return a.pager.Item(a.cursor)
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Clear any existing error on key press
	if a.err != nil {
		a.err = nil
	}

	if a.sheetOpen {
		return a.handleSheetKey(msg)
	}
	a.events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindKeyPress, Comp: "ui", Msg: msg.String()})

	switch {
	case key.Matches(msg, a.keys.Quit):
		a.quitting = true
		return a, tea.Quit

	case key.Matches(msg, a.keys.Debug):
		a.debugVisible = !a.debugVisible
		return a, nil

	case key.Matches(msg, a.keys.Next):
		return a.moveTo(a.cursor + 1)

	case key.Matches(msg, a.keys.Prev):
		return a.moveTo(a.cursor - 1)

	case key.Matches(msg, a.keys.Top):
		return a.moveTo(0)

	case key.Matches(msg, a.keys.Bottom):
		return a.moveTo(a.pager.Len() - 1)

	case key.Matches(msg, a.keys.More):
		if item, ok := a.currentItem(); ok && item.HasLongSummary() {
			a.expanded = !a.expanded
		}
		return a, nil

	case key.Matches(msg, a.keys.Like):
		item, ok := a.currentItem()
		if !ok || a.cfg.ToggleLike == nil {
			return a, nil
		}
		return a, a.cfg.ToggleLike(item.ContentID)

	case key.Matches(msg, a.keys.Comments):
		item, ok := a.currentItem()
		if !ok {
			return a, nil
		}
		a.sheet = newCommentSheet(item.ContentID, item.Title, a.width, a.sheetHeight())
		a.sheetOpen = true
		cmds := []tea.Cmd{textinput.Blink}
		if a.cfg.LoadComments != nil {
			cmds = append(cmds, a.cfg.LoadComments(item.ContentID))
		}
		return a, tea.Batch(cmds...)

	case key.Matches(msg, a.keys.Retry):
		if a.feedReady || a.initialLoading || a.cfg.FetchFeed == nil {
			return a, nil
		}
		a.initialLoading = true
		return a, a.cfg.FetchFeed(a.exclusions())
	}

	return a, nil
}

func (a App) handleSheetKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		a.quitting = true
		return a, tea.Quit

	case key.Matches(msg, a.keys.Close):
		a.sheetOpen = false
		return a, nil

	case key.Matches(msg, a.keys.Submit):
		text := a.sheet.draft()
		if text == "" || a.sheet.posting || a.cfg.PostComment == nil {
			return a, nil
		}
		a.sheet.posting = true
		a.sheet.err = nil
		return a, a.cfg.PostComment(a.sheet.contentID, text)
	}

	var cmd tea.Cmd
	a.sheet, cmd = a.sheet.update(msg)
	return a, cmd
}

func (a App) sheetHeight() int {
	h := a.height / 2
	if h < 6 {
		h = 6
	}
	return h
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}
	if a.quitting {
		return ""
	}

	contentHeight := a.height - 1
	errorBar := ""
	if a.err != nil {
		errorBar = ErrorStyle.Width(a.width).Render("Error: "+a.err.Error()+" (press any key to dismiss)") + "\n"
		contentHeight--
	}

	if a.debugVisible {
		body := lipgloss.PlaceVertical(contentHeight, lipgloss.Top, debugOverlay(a.ring, a.width, contentHeight))
		return body + "\n" + errorBar + debugStatusBar(a.width)
	}

	var body string
	if a.sheetOpen {
		sh := a.sheetHeight()
		body = a.cardView(contentHeight-sh) + "\n" + a.sheet.View(a.width)
	} else {
		body = a.cardView(contentHeight)
	}

	var hints string
	if a.sheetOpen {
		hints = a.help.View(sheetKeys{a.keys})
	} else {
		hints = a.help.View(a.keys)
	}
	status := RenderStatusBar(positionLabel(a.cursor, a.pager.Len(), a.initialLoading || a.pager.Loading()), hints, a.width)
	return body + "\n" + errorBar + status
}

// cardView renders the card under the cursor, or the footer, into height lines.
func (a App) cardView(height int) string {
	if height < 1 {
		height = 1
	}
	var s string
	switch {
	case !a.feedReady && a.initialLoading:
		s = Footer.Render(a.spinner.View() + " Loading your feed...")
	case !a.feedReady:
		s = HelpStyle.Render("Couldn't load the feed. Press r to retry, q to quit.")
	default:
		if item, ok := a.currentItem(); ok {
			s = a.renderer.Render(item, a.width, height, a.expanded)
		} else {
			st := a.pager.State()
			s = renderFooter(a.spinner.View(), st.Loading, st.Exhausted, a.moreFailed, a.width)
		}
	}
	return lipgloss.PlaceVertical(height, lipgloss.Top, s)
}

// debugStatusBar renders the status bar for the debug overlay.
func debugStatusBar(width int) string {
	keys := StatusBarKey.Render("?") + StatusBarText.Render(":close")
	return StatusBar.Width(width).Render("  [DEBUG]  " + keys)
}

// Cursor returns the current cursor position (for testing).
func (a App) Cursor() int {
	return a.cursor
}

// Items returns the rendered cards (for testing).
func (a App) Items() []api.FeedItem {
	return a.pager.Items()
}

// Loading reports whether a load-more fetch is in flight.
func (a App) Loading() bool {
	return a.pager.Loading()
}

// Exhausted reports whether the server ran out of cards.
func (a App) Exhausted() bool {
	return a.pager.Exhausted()
}
