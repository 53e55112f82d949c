package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/glance/internal/backend"
	"github.com/five82/glance/internal/logging"
	"github.com/five82/glance/internal/logtail"
	"github.com/five82/glance/internal/session"
	"github.com/five82/glance/internal/state"
	"github.com/five82/glance/internal/thumbs"
	"github.com/five82/glance/internal/visibility"
)

const (
	defaultRefresh = 200 * time.Millisecond
	logTailLines   = 500
)

// Session is the set of user operations the UI triggers. It is implemented
// by *session.Session.
type Session interface {
	OpenFolder(ctx context.Context, folder string) error
	Back(ctx context.Context) (string, error)
	Forward(ctx context.Context) (string, error)
	Reload(ctx context.Context) error
	SetSearch(ctx context.Context, search string) error
	CycleSort(ctx context.Context) (session.SortMode, error)
	CycleTag(ctx context.Context) (string, error)
	FindSimilar(reference string) error
	AdjustThreshold(delta int) (int, bool)
	ExitSimilar()
	TriggerIndexing(ctx context.Context) error
	SetTheme(name string)
}

// Thumbnails is implemented by *thumbs.Loader.
type Thumbnails interface {
	Request(path string) *thumbs.Future
	Cached(path string) (string, bool)
	Stats() thumbs.Stats
}

// Options configure the UI runtime.
type Options struct {
	Store     *state.Store
	Session   Session
	Thumbs    Thumbnails
	Visible   *visibility.Detector
	Logger    *slog.Logger
	LogPath   string
	ThemeName string
	Folder    string        // opened on start when set
	Refresh   time.Duration // store polling cadence; zero uses 200ms
}

type thumbState int

const (
	thumbPending thumbState = iota
	thumbLoading
	thumbLoaded
	thumbFailed
)

type inputMode int

const (
	inputNone inputMode = iota
	inputFolder
	inputSearch
)

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx      context.Context
	store    *state.Store
	session  Session
	thumbs   Thumbnails
	visible  *visibility.Detector
	logger   *slog.Logger
	refresh  time.Duration
	startDir string

	// UI state
	theme    Theme
	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	progress progress.Model
	input    textinput.Model
	mode     inputMode
	width    int
	height   int
	ready    bool
	showHelp bool

	// Data state
	snapshot state.Snapshot
	photos   []backend.Photo
	selected int
	offset   int
	states   map[string]thumbState
	preview  previewCache
	flash    flash
	busy     int

	// Log pane
	showLogs bool
	logTail  *logtail.Tail
	logView  viewport.Model
}

type flash struct {
	text string
	err  bool
}

// New creates a new Bubble Tea model.
func New(ctx context.Context, opts Options) Model {
	if ctx == nil {
		ctx = context.Background()
	}
	refresh := opts.Refresh
	if refresh <= 0 {
		refresh = defaultRefresh
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	themeName := opts.ThemeName
	if themeName == "" {
		themeName = "Nightfox"
	}

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot

	in := textinput.New()
	in.CharLimit = 4096

	var tail *logtail.Tail
	if strings.TrimSpace(opts.LogPath) != "" {
		tail = logtail.NewTail(opts.LogPath, logTailLines)
	}

	m := Model{
		ctx:      ctx,
		store:    opts.Store,
		session:  opts.Session,
		thumbs:   opts.Thumbs,
		visible:  opts.Visible,
		logger:   logger,
		refresh:  refresh,
		startDir: strings.TrimSpace(opts.Folder),
		theme:    GetTheme(themeName),
		keys:     defaultKeyMap(),
		help:     help.New(),
		spinner:  sp,
		progress: progress.New(progress.WithoutPercentage(), progress.WithWidth(20)),
		input:    in,
		states:   make(map[string]thumbState),
		logTail:  tail,
		logView:  viewport.New(0, 0),
	}
	m.applyTheme()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tickCmd(m.refresh),
		m.spinner.Tick,
	}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	if m.startDir != "" && m.session != nil {
		folder := m.startDir
		cmds = append(cmds, func() tea.Msg { return openFolderMsg(folder) })
	}
	return tea.Batch(cmds...)
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
		m.help.Width = msg.Width
		m.resizeLogView()
		m.clampSelection()
		m.refreshPreview()
		cmd := m.requestVisible()
		return m, cmd

	case tickMsg:
		return m.handleTick()

	case snapshotMsg:
		cmd := m.setSnapshot(state.Snapshot(msg))
		return m, cmd

	case thumbnailMsg:
		m.handleThumbnail(msg)
		return m, nil

	case openFolderMsg:
		folder := string(msg)
		return m.startOp("open", func(ctx context.Context) (string, error) {
			return "", m.session.OpenFolder(ctx, folder)
		})

	case opDoneMsg:
		m.handleOpDone(msg)
		var cmd tea.Cmd
		if m.store != nil {
			cmd = fetchSnapshotCmd(m.store)
		}
		return m, cmd

	case logTailMsg:
		m.handleLogTail(msg)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.mode != inputNone {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
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
	return m.renderMain()
}

// handleTick processes the polling tick.
func (m Model) handleTick() (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	if m.store != nil && m.store.Version() != m.snapshot.Version {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	if m.showLogs && m.logTail != nil {
		cmds = append(cmds, loadLogsCmd(m.logTail))
	}
	cmds = append(cmds, tickCmd(m.refresh))
	return m, tea.Batch(cmds...)
}

// setSnapshot applies a new store snapshot. Folder switches drop every
// per-folder UI state; list changes keep the selection on the same photo.
func (m *Model) setSnapshot(snap state.Snapshot) tea.Cmd {
	folderChanged := snap.Folder != m.snapshot.Folder
	var selectedPath string
	if p, ok := m.selectedPhoto(); ok && !folderChanged {
		selectedPath = p.Path
	}
	m.snapshot = snap

	photos := snap.Photos()
	if folderChanged {
		m.states = make(map[string]thumbState)
		m.preview = previewCache{}
		m.selected, m.offset = 0, 0
	}
	if folderChanged || !samePaths(m.photos, photos) {
		m.photos = photos
		if m.visible != nil {
			m.visible.SetItems(photoPaths(photos))
		}
		m.selected = indexOfPath(photos, selectedPath, m.selected)
	} else {
		m.photos = photos
	}
	m.clampSelection()
	m.refreshPreview()
	return m.requestVisible()
}

// requestVisible asks the loader for every photo that newly scrolled into
// the list window (including the prefetch margin).
func (m *Model) requestVisible() tea.Cmd {
	if m.thumbs == nil || m.visible == nil || len(m.photos) == 0 || !m.ready {
		return nil
	}
	rows := m.layout().listRows
	if rows <= 0 {
		return nil
	}
	first := m.offset
	last := min(m.offset+rows, len(m.photos)) - 1
	keys := m.visible.Visible(first, last)
	if len(keys) == 0 {
		return nil
	}
	cmds := make([]tea.Cmd, 0, len(keys))
	for _, path := range keys {
		fut := m.thumbs.Request(path)
		if _, err := fut.Result(); err == nil {
			m.states[path] = thumbLoaded
			continue
		}
		m.states[path] = thumbLoading
		cmds = append(cmds, waitThumbnailCmd(m.ctx, fut))
	}
	return tea.Batch(cmds...)
}

func (m *Model) handleThumbnail(msg thumbnailMsg) {
	switch {
	case msg.err == nil:
		m.states[msg.path] = thumbLoaded
		if p, ok := m.selectedPhoto(); ok && p.Path == msg.path {
			m.refreshPreview()
		}
	case errors.Is(msg.err, thumbs.ErrReset), errors.Is(msg.err, thumbs.ErrClosed), errors.Is(msg.err, context.Canceled):
		delete(m.states, msg.path)
	default:
		// Re-armed: the row requests again once it re-enters the window.
		m.states[msg.path] = thumbFailed
		if m.visible != nil {
			m.visible.Forget(msg.path)
		}
		m.logger.Debug("thumbnail failed", "path", msg.path, "error", msg.err)
	}
}

func (m *Model) handleOpDone(msg opDoneMsg) {
	if m.busy > 0 {
		m.busy--
	}
	switch {
	case msg.err == nil:
		m.flash = flash{text: msg.info}
	case errors.Is(msg.err, session.ErrHistoryEnd), errors.Is(msg.err, session.ErrNoFolder):
		m.flash = flash{text: msg.err.Error()}
	default:
		m.flash = flash{text: fmt.Sprintf("%s: %v", msg.label, msg.err), err: true}
		m.logger.Warn("operation failed", "op", msg.label, "error", msg.err)
	}
}

func (m *Model) applyTheme() {
	styles := m.theme.Styles()
	m.help.Styles.ShortKey = styles.AccentText
	m.help.Styles.ShortDesc = styles.MutedText
	m.help.Styles.ShortSeparator = styles.FaintText
	m.help.Styles.FullKey = styles.WarningText
	m.help.Styles.FullDesc = styles.Text
	m.help.Styles.FullSeparator = styles.FaintText
	m.spinner.Style = styles.AccentText
	m.input.PromptStyle = styles.AccentText
	m.input.TextStyle = styles.Text
	m.progress.FullColor = m.theme.Accent
	m.progress.EmptyColor = m.theme.SurfaceAlt
}

// startOp runs fn off the UI goroutine and reports its outcome as opDoneMsg.
func (m Model) startOp(label string, fn func(ctx context.Context) (string, error)) (tea.Model, tea.Cmd) {
	m.busy++
	ctx := m.ctx
	return m, func() tea.Msg {
		info, err := fn(ctx)
		return opDoneMsg{label: label, info: info, err: err}
	}
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type thumbnailMsg struct {
	path string
	err  error
}

type openFolderMsg string

type opDoneMsg struct {
	label string
	info  string
	err   error
}

type logTailMsg struct {
	lines   []string
	changed bool
	err     error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

func waitThumbnailCmd(ctx context.Context, fut *thumbs.Future) tea.Cmd {
	return func() tea.Msg {
		_, err := fut.Wait(ctx)
		return thumbnailMsg{path: fut.Path(), err: err}
	}
}

func loadLogsCmd(tail *logtail.Tail) tea.Cmd {
	return func() tea.Msg {
		lines, changed, err := tail.Lines()
		return logTailMsg{lines: lines, changed: changed, err: err}
	}
}

// Run starts the Bubble Tea program and blocks until the user quits or ctx
// is cancelled.
func Run(ctx context.Context, opts Options) error {
	if opts.Store == nil {
		return fmt.Errorf("ui requires a data store")
	}
	if opts.Session == nil {
		return fmt.Errorf("ui requires a session")
	}
	m := New(ctx, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
