package app

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mailterm/internal/cache"
	"github.com/nhle/mailterm/internal/credential"
	"github.com/nhle/mailterm/internal/keys"
	"github.com/nhle/mailterm/internal/loading"
	"github.com/nhle/mailterm/internal/model"
	"github.com/nhle/mailterm/internal/source"
	"github.com/nhle/mailterm/internal/store"
	appsync "github.com/nhle/mailterm/internal/sync"
	"github.com/nhle/mailterm/internal/ui"
	"github.com/nhle/mailterm/internal/ui/command"
	"github.com/nhle/mailterm/internal/ui/composer"
	helpview "github.com/nhle/mailterm/internal/ui/help"
	"github.com/nhle/mailterm/internal/ui/login"
	"github.com/nhle/mailterm/internal/ui/maillist"
	"github.com/nhle/mailterm/internal/ui/viewer"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewMessage
	ViewComposer
	ViewLogin
	ViewHelp
	ViewCommand
)

// MailboxFactory builds a mailbox for an account and its password.
type MailboxFactory func(account model.AccountConfig, password string) source.Mailbox

// Options holds the dependencies of the root model.
type Options struct {
	Config     *model.AppConfig
	ConfigPath string
	Store      store.Store
	Cache      *cache.BodyCache
	Creds      *credential.Store
	Logger     *slog.Logger

	// Mailbox is the connected account, or nil before setup.
	Mailbox    source.Mailbox
	NewMailbox MailboxFactory
	Validate   login.Validator

	// Backoff overrides the retry policy for body fetches and syncs.
	Backoff *loading.Backoff

	// SkipSetup keeps the list view open even without an account.
	SkipSetup bool
}

// Model is the root Bubble Tea model that manages view routing,
// layout, and access to the persistence layer.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	ready        bool

	cfg        *model.AppConfig
	configPath string
	store      store.Store
	cache      *cache.BodyCache
	creds      *credential.Store
	logger     *slog.Logger
	keys       *keys.KeyMap

	mailbox    source.Mailbox
	newMailbox MailboxFactory
	validate   login.Validator
	poller     *appsync.Poller
	tracker    *loading.Tracker
	backoff    loading.Backoff

	list        maillist.Model
	viewer      viewer.Model
	composer    composer.Model
	loginView   login.Model
	helpView    helpview.Model
	commandView command.Model

	unreadOnly       bool
	searchQuery      string
	unreadCount      int
	authErrorMessage string
	flash            string
	flashErr         bool
}

var errNoAccount = errors.New("no mail account configured, press L to set one up")

// New creates the root application model.
func New(opts Options) (Model, error) {
	if opts.Config == nil {
		opts.Config = model.DefaultAppConfig()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Cache == nil {
		c, err := cache.Open("")
		if err != nil {
			return Model{}, err
		}
		opts.Cache = c
	}

	km := keys.DefaultKeyMap()
	list, err := maillist.New(opts.Config.List, km)
	if err != nil {
		return Model{}, err
	}

	backoff := loading.DefaultBackoff
	if opts.Backoff != nil {
		backoff = *opts.Backoff
	}

	m := Model{
		currentView: ViewList,
		cfg:         opts.Config,
		configPath:  opts.ConfigPath,
		store:       opts.Store,
		cache:       opts.Cache,
		creds:       opts.Creds,
		logger:      opts.Logger,
		keys:        km,
		newMailbox:  opts.NewMailbox,
		validate:    opts.Validate,
		tracker:     loading.NewTracker(),
		backoff:     backoff,
		list:        list,
		viewer:      viewer.New(km, 80, 24),
		composer:    composer.New(km, 80, 24),
		loginView:   login.New(opts.Config, opts.ConfigPath, opts.Creds, opts.Validate, 80, 24),
		helpView:    helpview.New(km, 80, 24),
		commandView: command.New(80, 24),
	}
	m.setMailbox(opts.Mailbox)

	if opts.Mailbox == nil && !opts.Config.Account.IsConfigured() && !opts.SkipSetup {
		m.currentView = ViewLogin
	}
	return m, nil
}

// setMailbox replaces the active mailbox and builds a fresh poller for it.
// The previous poller, if any, is stopped.
func (m *Model) setMailbox(mb source.Mailbox) {
	if m.poller != nil {
		m.poller.Stop()
	}
	m.mailbox = mb
	m.poller = appsync.New(m.store, m.cfg.Sync, m.tracker, m.logger)
	m.poller.SetBackoff(m.backoff)
	if mb != nil {
		m.poller.RegisterMailbox(mb)
	}
}

// Init loads cached messages and starts polling.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadMessages()}
	if m.currentView == ViewLogin {
		cmds = append(cmds, m.loginView.Init())
	}
	if m.mailbox != nil {
		cmds = append(cmds, m.poller.Start())
	}
	return tea.Batch(cmds...)
}

// Shutdown stops background work without waiting for in-flight syncs.
// It is safe to call more than once.
func (m Model) Shutdown() {
	m.poller.Stop()
	m.list.Close()
}

// WaitStopped waits up to timeout for the sync goroutines to exit after
// Shutdown and reports whether they did.
func (m Model) WaitStopped(timeout time.Duration) bool {
	return m.poller.Wait(timeout)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w := m.layout.ContentWidth()
		h := m.layout.ContentHeight()
		m.list.SetSize(w, h, m.layout.ContentTop())
		m.viewer.SetSize(w, h)
		m.composer.SetSize(w, h)
		m.loginView.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		var cmd tea.Cmd
		if m.currentView == ViewLogin {
			// Forward so the huh form can calculate its layout.
			m.loginView, cmd = m.loginView.Update(msg)
		}
		return m, tea.Batch(cmd, m.list.RequestFrame())

	case maillist.FrameMsg:
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd

	case messagesLoadedMsg:
		if msg.err != nil {
			m.logger.Error("loading messages", "error", msg.err)
			m.setFlash("Could not load messages: "+msg.err.Error(), true)
			return m, nil
		}
		m.unreadCount = msg.unread
		if m.searchQuery != "" {
			return m, nil
		}
		m.list.SetMessages(msg.messages)
		return m, m.list.RequestFrame()

	case searchResultMsg:
		if msg.err != nil {
			m.setFlash("Search failed: "+msg.err.Error(), true)
			return m, nil
		}
		m.searchQuery = msg.query
		m.list.SetMessages(msg.messages)
		m.setFlash(fmt.Sprintf("%d result(s) for %q, :all to go back", len(msg.messages), msg.query), false)
		return m, m.list.RequestFrame()

	case appsync.SyncResultMsg:
		if msg.Stale(m.poller) {
			return m, nil
		}
		switch {
		case msg.AuthError != nil:
			m.authErrorMessage = msg.AuthError.Message
		case msg.Error != nil:
			m.setFlash("Sync failed: "+msg.Error.Error(), true)
		default:
			m.authErrorMessage = ""
			if msg.NewCount > 0 {
				m.setFlash(fmt.Sprintf("%d new message(s)", msg.NewCount), false)
			}
		}
		return m, tea.Batch(m.loadMessages(), m.poller.WaitForNextResult())

	case maillist.SelectedMsg:
		return m, m.openMessage(msg.Message)

	case maillist.ActionMsg:
		return m, m.runAction(msg.Action, msg.Message)

	case viewer.BodyLoadedMsg:
		var cmd tea.Cmd
		m.viewer, cmd = m.viewer.Update(msg)
		return m, cmd

	case viewer.BackMsg:
		m.currentView = ViewList
		return m, m.list.RequestFrame()

	case viewer.ActionMsg:
		if msg.Action == viewer.ActionReply {
			return m, m.prepareReply(msg.Message)
		}
		return m, m.runAction(msg.Action, msg.Message)

	case actionResultMsg:
		return m.handleActionResult(msg)

	case replyReadyMsg:
		if m.currentView != ViewComposer {
			m.previousView = m.currentView
		}
		m.currentView = ViewComposer
		return m, m.composer.Open(msg.original, msg.body, msg.draft)

	case composer.SendMsg:
		m.setFlash("Sending...", false)
		return m, m.sendReply(msg)

	case composer.CancelMsg:
		m.currentView = m.previousView
		if msg.Draft != nil {
			return m, m.saveDraft(*msg.Draft)
		}
		return m, nil

	case replySentMsg:
		if msg.err != nil {
			m.logger.Error("sending reply", "message", msg.original.ID, "error", msg.err)
			m.composer.SetError(msg.err)
			m.setFlash("Send failed", true)
			return m, nil
		}
		m.currentView = m.previousView
		m.setFlash("Reply sent", false)
		msg.original.Answered = true
		m.viewer.SetMessage(msg.original)
		return m, m.loadMessages()

	case draftSavedMsg:
		if msg.err != nil {
			m.logger.Error("saving draft", "error", msg.err)
			m.setFlash("Could not save draft: "+msg.err.Error(), true)
			return m, nil
		}
		m.setFlash("Draft saved", false)
		return m, nil

	case login.LoginDoneMsg:
		return m.handleLoginDone(msg)

	case login.LoginCancelledMsg:
		m.currentView = ViewList
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(msg)

	case command.UnknownCommandMsg:
		m.currentView = m.previousView
		m.setFlash(fmt.Sprintf("Unknown command %q", msg.Input), true)
		return m, nil

	case tea.KeyMsg:
		if next, cmd, handled := m.handleGlobalKey(msg); handled {
			return next, cmd
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// handleGlobalKey processes keys that are not owned by the active view.
func (m Model) handleGlobalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		m.Shutdown()
		return m, tea.Quit, true
	}

	// Text entry views own every other key.
	if m.currentView == ViewComposer || m.currentView == ViewLogin {
		return m, nil, false
	}
	if m.currentView == ViewList && m.list.Filtering() {
		return m, nil, false
	}

	switch m.currentView {
	case ViewCommand:
		if key.Matches(msg, m.keys.Back) {
			m.currentView = m.previousView
			return m, nil, true
		}
		return m, nil, false
	case ViewHelp:
		if key.Matches(msg, m.keys.Help, m.keys.Back) {
			m.currentView = m.previousView
		}
		return m, nil, true
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.openHelp()
		return m, nil, true

	case key.Matches(msg, m.keys.Command):
		m.previousView = m.currentView
		m.currentView = ViewCommand
		m.commandView.Reset()
		return m, m.commandView.Focus(), true
	}

	if m.currentView != ViewList {
		return m, nil, false
	}

	m.flash = ""
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Shutdown()
		return m, tea.Quit, true

	case key.Matches(msg, m.keys.Refresh):
		return m, m.refresh(), true

	case key.Matches(msg, m.keys.Login):
		return m, m.openLogin(), true

	case key.Matches(msg, m.keys.Reply):
		if sel, ok := m.list.Selected(); ok {
			return m, m.prepareReply(sel), true
		}
		return m, nil, true

	case key.Matches(msg, m.keys.Flag):
		if sel, ok := m.list.Selected(); ok {
			return m, m.runAction(viewer.ActionFlag, sel), true
		}
		return m, nil, true
	}
	return m, nil, false
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.list, cmd = m.list.Update(msg)
	case ViewMessage:
		m.viewer, cmd = m.viewer.Update(msg)
	case ViewComposer:
		m.composer, cmd = m.composer.Update(msg)
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// openMessage switches to the viewer and loads the message body.
func (m *Model) openMessage(msg model.Message) tea.Cmd {
	m.currentView = ViewMessage
	m.viewer.Open(msg)

	cmds := []tea.Cmd{m.loadBody(msg)}
	if !msg.Seen {
		cmds = append(cmds, m.runAction(viewer.ActionToggleRead, msg))
	}
	return tea.Batch(cmds...)
}

// openHelp shows the shortcut overlay with the current view's keys first.
func (m *Model) openHelp() {
	ctx := helpview.ContextList
	if m.currentView == ViewMessage {
		ctx = helpview.ContextMessage
	}
	m.helpView.SetContext(ctx)
	m.previousView = m.currentView
	m.currentView = ViewHelp
}

func (m *Model) openLogin() tea.Cmd {
	m.previousView = m.currentView
	m.currentView = ViewLogin
	m.loginView = login.New(m.cfg, m.configPath, m.creds, m.validate, m.layout.ContentWidth(), m.layout.ContentHeight())
	return m.loginView.Init()
}

func (m Model) handleLoginDone(msg login.LoginDoneMsg) (tea.Model, tea.Cmd) {
	m.cfg.Account = msg.Account
	m.currentView = ViewList
	m.authErrorMessage = ""

	if m.newMailbox == nil {
		m.setFlash("Account saved", false)
		return m, nil
	}

	m.setMailbox(m.newMailbox(msg.Account, msg.Password))
	m.setFlash("Account saved, syncing...", false)
	return m, tea.Batch(m.loadMessages(), m.poller.Start())
}

func (m *Model) refresh() tea.Cmd {
	if m.mailbox == nil {
		m.setFlash(errNoAccount.Error(), true)
		return nil
	}
	m.poller.RefreshAll()
	return m.loadMessages()
}

// executeCommand runs a resolved command palette entry.
func (m *Model) executeCommand(cmd command.CommandMsg) tea.Cmd {
	switch cmd.Name {
	case command.Refresh:
		return m.refresh()
	case command.Unread:
		m.unreadOnly = true
		return m.loadMessages()
	case command.All:
		m.unreadOnly = false
		m.searchQuery = ""
		return m.loadMessages()
	case command.Search:
		query := strings.Join(cmd.Args, " ")
		if query == "" {
			m.setFlash("usage: search <text>", true)
			return nil
		}
		return m.search(query)
	case command.Stats:
		frame := m.list.Frame()
		m.setFlash(fmt.Sprintf("%s, %s mode, range %d-%d",
			m.list.Metrics(), frame.Mode, frame.Range.Start, frame.Range.End), false)
		return nil
	case command.Top:
		if visible := m.list.Visible(); len(visible) > 0 {
			m.list.ScrollToMessage(visible[0].ID)
		}
		return m.list.RequestFrame()
	case command.Login:
		return m.openLogin()
	case command.Help:
		m.openHelp()
		return nil
	case command.Quit:
		m.Shutdown()
		return tea.Quit
	}
	return nil
}

func (m *Model) setFlash(text string, isErr bool) {
	m.flash = text
	m.flashErr = isErr
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.headerTitle(), m.syncStatus())
	statusBar := m.layout.RenderStatusBar(m.statusLeft(), m.statusRight())
	return m.layout.RenderWithFrame(header, m.renderContent(), statusBar)
}

func (m Model) headerTitle() string {
	mailbox := m.cfg.Account.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	title := "mailterm · " + mailbox
	if m.unreadOnly {
		title += " (unread)"
	}
	if m.searchQuery != "" {
		title += fmt.Sprintf(" search: %q", m.searchQuery)
	}
	if m.unreadCount > 0 {
		title += fmt.Sprintf(" [%d unread]", m.unreadCount)
	}
	return title
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewList:
		return m.list.View()
	case ViewMessage:
		return m.viewer.View()
	case ViewComposer:
		return m.composer.View()
	case ViewLogin:
		return m.loginView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

// syncStatus returns a short string describing the combined sync state.
func (m Model) syncStatus() string {
	statuses := m.poller.GetStatuses()
	if len(statuses) == 0 {
		return "offline"
	}

	var running, failed int
	for _, s := range statuses {
		switch s.State {
		case appsync.SyncRunning:
			running++
		case appsync.SyncError:
			failed++
		}
	}

	switch {
	case running > 0:
		return "syncing..."
	case failed > 0:
		return "⚠ unreachable"
	}
	if last := statuses[0].LastSync; !last.IsZero() {
		return "synced " + last.Local().Format("15:04")
	}
	return "idle"
}

// statusLeft returns the flash message, auth error or key hints.
func (m Model) statusLeft() string {
	if m.authErrorMessage != "" && m.currentView == ViewList {
		return m.authErrorMessage
	}
	if m.flash != "" {
		return m.flash
	}
	return m.keyHints()
}

// statusRight shows render metrics for the list and pending work.
func (m Model) statusRight() string {
	var parts []string
	if m.tracker.AnyLoading() {
		parts = append(parts, "working...")
	}
	if m.currentView == ViewList {
		parts = append(parts, m.list.Metrics().String())
	}
	return strings.Join(parts, " | ")
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | tab complete | esc back"
	case ViewMessage:
		return "esc back | R reply | u read | s star | a archive | j/k scroll"
	case ViewComposer:
		return "ctrl+s send | tab next field | esc save draft"
	case ViewLogin:
		return "enter next | esc cancel"
	default:
		if m.list.Filtering() {
			return "enter apply | esc clear"
		}
		return "q quit | ? help | / filter | enter open | R reply | u read | a archive | : command"
	}
}
