package ui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/luke-gs/cadsync/internal/cad"
	"github.com/luke-gs/cadsync/internal/events"
	"github.com/luke-gs/cadsync/internal/filter"
	"github.com/luke-gs/cadsync/internal/logging"
	"github.com/luke-gs/cadsync/internal/logtail"
	"github.com/luke-gs/cadsync/internal/prefs"
	"github.com/luke-gs/cadsync/internal/reminder"
	"github.com/luke-gs/cadsync/internal/state"
	"github.com/luke-gs/cadsync/internal/syncer"
)

// Backend is the session surface the console drives.
type Backend interface {
	Snapshot() state.Snapshot
	Subscribe(buffer int) *events.Subscription
	PatrolGroup() string
	CurrentCallsign() string
	LastBookOn() *cad.BookOnRequest
	SyncAll(ctx context.Context) (syncer.Result, error)
	UpdateCallsignStatus(ctx context.Context, st cad.ResourceStatus, incidentID, comments, locationComments string) error
	BookOff(ctx context.Context) error
}

// Options configures the UI.
type Options struct {
	Context   context.Context
	Backend   Backend
	ThemeName string
	Filter    *filter.Filter
	PrefsPath string
	Tick      time.Duration
	Alerts    <-chan reminder.Reminder
	LogPath   string
	Log       logrus.FieldLogger
}

// menuStatuses are offered by the status menu, in order.
var menuStatuses = append(append(append([]cad.ResourceStatus{},
	cad.GeneralStatuses...),
	cad.IncidentStatusesForResource...),
	cad.StatusDuress, cad.StatusFinalise)

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	backend   Backend
	engine    *filter.Engine
	prefsPath string
	tick      time.Duration
	log       logrus.FieldLogger
	keys      keyMap
	sub       *events.Subscription
	alerts    <-chan reminder.Reminder
	logPath   string

	// UI state
	theme  Theme
	width  int
	height int
	ready  bool

	// Data state
	snapshot state.Snapshot
	filter   filter.Filter
	sections []filter.Section
	rows     []row
	counts   map[filter.Kind]int

	// List state
	selected  int
	offset    int
	collapsed map[string]bool

	// Search
	searching bool
	search    textinput.Model

	// Overlays
	showHelp   bool
	showLogs   bool
	statusMenu bool
	statusIdx  int
	logLines   []string

	// Last action result
	notice    string
	noticeErr bool
	noticeAt  time.Time
	busy      bool
	now       time.Time
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	tick := opts.Tick
	if tick <= 0 {
		tick = DefaultUIInterval
	}

	f := filter.Default()
	if opts.Filter != nil {
		f = *opts.Filter
	}

	search := textinput.New()
	search.Prompt = "/"
	search.Placeholder = "callsign, suburb, type"
	search.CharLimit = 64
	search.SetValue(f.Search)

	m := Model{
		ctx:       ctx,
		backend:   opts.Backend,
		engine:    filter.NewEngine(opts.Backend.PatrolGroup()),
		prefsPath: opts.PrefsPath,
		tick:      tick,
		log:       logging.OrDiscard(opts.Log),
		keys:      DefaultKeyMap(),
		alerts:    opts.Alerts,
		logPath:   opts.LogPath,
		theme:     GetTheme(opts.ThemeName),
		filter:    f,
		collapsed: make(map[string]bool),
		search:    search,
		now:       time.Now(),
	}
	m.setSnapshot(opts.Backend.Snapshot())
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(m.tick),
		waitForEvent(m.sub),
		waitForAlert(m.alerts),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.clampSelection()
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		if m.notice != "" && m.now.Sub(m.noticeAt) > noticeTTL {
			m.notice = ""
		}
		if m.showLogs {
			return m, tea.Batch(tickCmd(m.tick), loadLogsCmd(m.logPath, m.listHeight()))
		}
		return m, tickCmd(m.tick)

	case logLinesMsg:
		m.logLines = msg
		return m, nil

	case eventMsg:
		m.setSnapshot(m.backend.Snapshot())
		return m, waitForEvent(m.sub)

	case alertMsg:
		m.setNotice(msg.Title+": "+msg.Body, nil)
		return m, waitForAlert(m.alerts)

	case actionMsg:
		m.busy = false
		m.setNotice(msg.label, msg.err)
		m.setSnapshot(m.backend.Snapshot())
		return m, nil
	}

	if m.searching {
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.statusMenu {
		return m.renderStatusMenu()
	}
	if m.showLogs {
		return m.renderLogs()
	}
	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.statusMenu {
		return m.handleStatusMenuKey(msg)
	}
	if m.searching {
		return m.handleSearchKey(msg)
	}
	if m.showLogs {
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Logs):
			m.showLogs = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true

	case key.Matches(msg, m.keys.Logs):
		if m.logPath == "" {
			return m, nil
		}
		m.showLogs = true
		return m, loadLogsCmd(m.logPath, m.listHeight())

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.savePrefs()

	case key.Matches(msg, m.keys.Escape):
		if m.filter.Search != "" {
			m.search.SetValue("")
			m.applyFilter(func(f *filter.Filter) { f.Search = "" })
		}

	case key.Matches(msg, m.keys.NextKind):
		m.selectKind(m.filter.Selected + 1)
	case key.Matches(msg, m.keys.PrevKind):
		m.selectKind(m.filter.Selected - 1)
	case key.Matches(msg, m.keys.KindIncidents):
		m.selectKind(filter.KindIncident)
	case key.Matches(msg, m.keys.KindPatrols):
		m.selectKind(filter.KindPatrol)
	case key.Matches(msg, m.keys.KindBcasts):
		m.selectKind(filter.KindBroadcast)
	case key.Matches(msg, m.keys.KindResources):
		m.selectKind(filter.KindResource)

	case key.Matches(msg, m.keys.CycleTasking):
		m.applyFilter(func(f *filter.Filter) { f.Tasking = f.Tasking.Next() })
		m.savePrefs()
	case key.Matches(msg, m.keys.ToggleOutside):
		m.applyFilter(func(f *filter.Filter) { f.ShowResultsOutsidePatrolArea = !f.ShowResultsOutsidePatrolArea })
		m.savePrefs()
	case key.Matches(msg, m.keys.ToggleDuress):
		m.applyFilter(func(f *filter.Filter) { f.DuressFirst = !f.DuressFirst })
		m.savePrefs()
	case key.Matches(msg, m.keys.Search):
		m.searching = true
		cmd := m.search.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.StatusMenu):
		if m.backend.CurrentCallsign() == "" {
			m.setNotice("Status", cad.ErrNotBookedOn)
			return m, nil
		}
		m.statusMenu = true
		m.statusIdx = 0
	case key.Matches(msg, m.keys.Finalise):
		return m.runStatus(cad.StatusFinalise, "")
	case key.Matches(msg, m.keys.BookOff):
		return m.runAction("Book off", func(ctx context.Context) error {
			return m.backend.BookOff(ctx)
		})
	case key.Matches(msg, m.keys.Sync):
		return m.runAction("Sync", func(ctx context.Context) error {
			_, err := m.backend.SyncAll(ctx)
			return err
		})

	case key.Matches(msg, m.keys.Confirm):
		m.toggleCollapsed()

	case key.Matches(msg, m.keys.Up):
		m.moveSelection(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveSelection(1)
	case key.Matches(msg, m.keys.Top):
		m.selected = 0
		m.clampSelection()
	case key.Matches(msg, m.keys.Bottom):
		m.selected = len(m.rows) - 1
		m.clampSelection()
	case key.Matches(msg, m.keys.PageUp):
		m.moveSelection(-m.listHeight())
	case key.Matches(msg, m.keys.PageDown):
		m.moveSelection(m.listHeight())
	}
	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searching = false
		m.search.Blur()
		return m, nil
	case "esc":
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.applyFilter(func(f *filter.Filter) { f.Search = "" })
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	value := m.search.Value()
	m.applyFilter(func(f *filter.Filter) { f.Search = value })
	return m, cmd
}

func (m Model) handleStatusMenuKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Quit):
		m.statusMenu = false
	case key.Matches(msg, m.keys.Up):
		if m.statusIdx > 0 {
			m.statusIdx--
		}
	case key.Matches(msg, m.keys.Down):
		if m.statusIdx < len(menuStatuses)-1 {
			m.statusIdx++
		}
	case key.Matches(msg, m.keys.Confirm):
		m.statusMenu = false
		st := menuStatuses[m.statusIdx]
		incidentID := ""
		if st.RequiresIncident() || st == cad.StatusDuress {
			incidentID = m.menuIncidentID()
		}
		return m.runStatus(st, incidentID)
	}
	return m, nil
}

// menuIncidentID is the incident under the cursor, if any.
func (m Model) menuIncidentID() string {
	if it, ok := m.selectedItem(); ok && it.Kind == filter.KindIncident {
		return it.ID
	}
	return ""
}

func (m Model) runStatus(st cad.ResourceStatus, incidentID string) (tea.Model, tea.Cmd) {
	label := string(st)
	return m.runAction(label, func(ctx context.Context) error {
		return m.backend.UpdateCallsignStatus(ctx, st, incidentID, "", "")
	})
}

// runAction runs fn off the UI goroutine. Only one action runs at a time.
func (m Model) runAction(label string, fn func(context.Context) error) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	m.busy = true
	m.setNotice(label+"...", nil)
	parent := m.ctx
	log := m.log
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, ActionTimeout)
		defer cancel()
		err := fn(ctx)
		if err != nil {
			log.WithError(err).WithField("action", label).Warn("console action failed")
		}
		return actionMsg{label: label, err: err}
	}
}

func (m *Model) setNotice(label string, err error) {
	m.notice = label
	m.noticeErr = err != nil
	if err != nil {
		m.notice = label + ": " + err.Error()
	}
	m.noticeAt = m.now
}

func (m *Model) selectKind(k filter.Kind) {
	n := filter.Kind(len(filter.Kinds))
	k = ((k % n) + n) % n
	m.applyFilter(func(f *filter.Filter) { f.Selected = k })
	m.selected = 0
	m.offset = 0
	m.clampSelection()
	m.savePrefs()
}

func (m *Model) applyFilter(change func(*filter.Filter)) {
	change(&m.filter)
	m.refresh()
}

func (m *Model) setSnapshot(snap state.Snapshot) {
	m.snapshot = snap
	m.refresh()
}

// refresh recomputes sections, tab counts and rows from the snapshot.
func (m *Model) refresh() {
	m.sections = m.engine.Sections(m.snapshot, m.filter)
	m.counts = make(map[filter.Kind]int, len(filter.Kinds))
	for _, k := range filter.Kinds {
		f := m.filter
		f.Selected = k
		f.Search = ""
		n := 0
		for _, s := range m.engine.Sections(m.snapshot, f) {
			n += s.Len()
		}
		m.counts[k] = n
	}
	m.rows = buildRows(m.sections, m.collapsed)
	m.clampSelection()
}

func (m *Model) toggleCollapsed() {
	if m.selected < 0 || m.selected >= len(m.rows) {
		return
	}
	r := m.rows[m.selected]
	if r.kind != rowBucket || !r.collapsible {
		return
	}
	m.collapsed[r.key] = !m.collapsed[r.key]
	m.rows = buildRows(m.sections, m.collapsed)
	m.clampSelection()
}

func (m *Model) moveSelection(delta int) {
	m.selected += delta
	m.clampSelection()
}

func (m *Model) clampSelection() {
	if m.selected >= len(m.rows) {
		m.selected = len(m.rows) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
	h := m.listHeight()
	if m.selected < m.offset {
		m.offset = m.selected
	}
	if m.selected >= m.offset+h {
		m.offset = m.selected - h + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func (m Model) listHeight() int {
	h := m.height - chromeRows
	if h < 1 {
		return 1
	}
	return h
}

func (m Model) selectedItem() (filter.Item, bool) {
	if m.selected < 0 || m.selected >= len(m.rows) {
		return filter.Item{}, false
	}
	r := m.rows[m.selected]
	if r.kind != rowItem {
		return filter.Item{}, false
	}
	return r.item, true
}

func (m Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	f := m.filter
	f.Search = ""
	if err := prefs.Save(m.prefsPath, prefs.Prefs{Theme: m.theme.Name, Filter: prefs.FromFilter(f)}); err != nil {
		m.log.WithError(err).Warn("save prefs failed")
	}
}

// Messages

type tickMsg time.Time

type eventMsg events.Event

type alertMsg reminder.Reminder

type logLinesMsg []string

type actionMsg struct {
	label string
	err   error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForEvent blocks on the next store change. A closed subscription ends
// the chain.
func waitForEvent(sub *events.Subscription) tea.Cmd {
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		evt, ok := <-sub.C()
		if !ok {
			return nil
		}
		return eventMsg(evt)
	}
}

func loadLogsCmd(path string, n int) tea.Cmd {
	return func() tea.Msg {
		lines, err := logtail.Read(path, n)
		if err != nil {
			return logLinesMsg{err.Error()}
		}
		return logLinesMsg(lines)
	}
}

func waitForAlert(alerts <-chan reminder.Reminder) tea.Cmd {
	if alerts == nil {
		return nil
	}
	return func() tea.Msg {
		r, ok := <-alerts
		if !ok {
			return nil
		}
		return alertMsg(r)
	}
}

// Run starts the Bubble Tea program and blocks until the operator quits or
// ctx is cancelled.
func Run(opts Options) error {
	m := New(opts)
	m.sub = opts.Backend.Subscribe(64)
	defer m.sub.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	return err
}
