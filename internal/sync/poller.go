package sync

import (
	"context"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mailterm/internal/loading"
	"github.com/nhle/mailterm/internal/model"
	"github.com/nhle/mailterm/internal/source"
	"github.com/nhle/mailterm/internal/store"
)

// SyncState represents the current state of a mailbox sync.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncRunning:
		return "syncing"
	case SyncError:
		return "error"
	default:
		return "idle"
	}
}

// SyncStatus holds the sync state for a single account.
type SyncStatus struct {
	AccountID string
	State     SyncState
	LastSync  time.Time
	Error     error
}

// SyncResultMsg is a tea.Msg sent when a sync operation completes.
type SyncResultMsg struct {
	AccountID   string
	Messages    []model.Message
	Error       error
	AuthError   *AuthErrorMsg
	NewCount    int
	UnreadCount int

	poller *Poller
}

// Stale reports whether the result was delivered by a poller other than
// current. Results from a replaced poller can still arrive after the swap.
func (m SyncResultMsg) Stale(current *Poller) bool {
	return m.poller != nil && m.poller != current
}

// AuthErrorMsg is a tea.Msg sent when a mailbox rejects its credentials.
type AuthErrorMsg struct {
	AccountID string
	Message   string
}

// fetchTimeout is the maximum time allowed for a single fetch attempt.
const fetchTimeout = 30 * time.Second

// mailboxEntry holds a registered mailbox and its trigger channel.
type mailboxEntry struct {
	mb      source.Mailbox
	trigger chan struct{}
}

// Poller orchestrates background polling of registered mailboxes.
type Poller struct {
	store     store.Store
	cfg       model.SyncConfig
	tracker   *loading.Tracker
	backoff   loading.Backoff
	logger    *slog.Logger
	mailboxes []mailboxEntry
	statuses  map[string]*SyncStatus
	resultCh  chan SyncResultMsg
	stopCh    chan struct{}
	wg        gosync.WaitGroup
	mu        gosync.Mutex
	running   bool
	stopped   bool
	done      chan struct{}
	now       func() time.Time
}

// New creates a new Poller writing into s and recording progress in
// tracker.
func New(s store.Store, cfg model.SyncConfig, tracker *loading.Tracker, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if tracker == nil {
		tracker = loading.NewTracker()
	}
	return &Poller{
		store:    s,
		cfg:      cfg,
		tracker:  tracker,
		backoff:  loading.DefaultBackoff,
		logger:   logger,
		statuses: make(map[string]*SyncStatus),
		resultCh: make(chan SyncResultMsg, 16),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		now:      time.Now,
	}
}

// SetBackoff replaces the retry policy used for fetches.
func (p *Poller) SetBackoff(b loading.Backoff) {
	p.backoff = b
}

// RegisterMailbox adds a mailbox to the poller.
func (p *Poller) RegisterMailbox(mb source.Mailbox) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.mailboxes = append(p.mailboxes, mailboxEntry{
		mb:      mb,
		trigger: make(chan struct{}, 1),
	})
	p.statuses[mb.AccountID()] = &SyncStatus{
		AccountID: mb.AccountID(),
		State:     SyncIdle,
	}
}

// Start returns a tea.Cmd that starts all polling goroutines and
// subscribes to results. The returned command waits on the result
// channel and returns SyncResultMsg messages to the Bubble Tea runtime.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running || p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	entries := append([]mailboxEntry(nil), p.mailboxes...)
	p.mu.Unlock()

	for _, entry := range entries {
		p.wg.Add(1)
		go p.pollMailbox(entry)
	}

	return p.waitForResult()
}

// Stop signals all polling goroutines to exit and returns without
// waiting for them. The result channel is closed once they have exited,
// so a pending WaitForNextResult command returns nil. A stopped poller
// cannot be started again.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}
	p.stopped = true
	close(p.stopCh)

	if !p.running {
		close(p.done)
		return
	}
	p.running = false

	go func() {
		p.wg.Wait()
		close(p.resultCh)
		close(p.done)
	}()
}

// Wait blocks until the polling goroutines have exited after Stop, or
// timeout elapses. It reports whether they exited.
func (p *Poller) Wait(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return true
	case <-timer.C:
		return false
	}
}

// RefreshAll triggers an immediate poll of all registered mailboxes.
func (p *Poller) RefreshAll() {
	p.mu.Lock()
	entries := append([]mailboxEntry(nil), p.mailboxes...)
	p.mu.Unlock()

	for _, entry := range entries {
		select {
		case entry.trigger <- struct{}{}:
		default:
			// A refresh is already queued.
		}
	}
}

// GetStatuses returns the current sync status of all registered mailboxes.
func (p *Poller) GetStatuses() []SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]SyncStatus, 0, len(p.statuses))
	for _, entry := range p.mailboxes {
		statuses = append(statuses, *p.statuses[entry.mb.AccountID()])
	}
	return statuses
}

// pollMailbox runs the polling loop for a single mailbox.
func (p *Poller) pollMailbox(entry mailboxEntry) {
	defer p.wg.Done()

	interval := time.Duration(p.cfg.PollIntervalSec) * time.Second
	if interval <= 0 {
		interval = 120 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-p.stopCh
		cancel()
	}()

	p.sendResult(p.SyncOnce(ctx, entry.mb))

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.sendResult(p.SyncOnce(ctx, entry.mb))
		case <-entry.trigger:
			p.sendResult(p.SyncOnce(ctx, entry.mb))
		}
	}
}

// SyncOnce fetches recent messages from mb with retry, upserts them and
// reports how many were new.
func (p *Poller) SyncOnce(ctx context.Context, mb source.Mailbox) SyncResultMsg {
	accountID := mb.AccountID()
	key := "sync:" + accountID

	p.setStatus(accountID, SyncRunning, nil)
	p.tracker.Start(key)

	opts := source.FetchOptions{Limit: p.cfg.FetchLimit}
	if p.cfg.SinceDays > 0 {
		opts.Since = p.now().AddDate(0, 0, -p.cfg.SinceDays)
	}

	var msgs []model.Message
	err := loading.Retry(ctx, p.backoff, func(ctx context.Context) error {
		fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()

		var err error
		msgs, err = mb.FetchMessages(fetchCtx, opts)
		if source.IsAuthError(err) {
			return loading.Permanent(err)
		}
		if err != nil {
			p.logger.Warn("fetch attempt failed", "account", accountID, "error", err)
		}
		return err
	})

	if err != nil {
		p.tracker.Finish(key, err)
		p.setStatus(accountID, SyncError, err)
		p.logger.Error("sync failed", "account", accountID, "error", err)

		result := SyncResultMsg{AccountID: accountID, Error: err}
		if source.IsAuthError(err) {
			result.AuthError = &AuthErrorMsg{
				AccountID: accountID,
				Message: fmt.Sprintf(
					"%s: authentication failed. Press 'L' to log in again.",
					accountID,
				),
			}
		}
		return result
	}

	newCount, err := p.upsert(ctx, accountID, msgs)
	if err != nil {
		p.tracker.Finish(key, err)
		p.setStatus(accountID, SyncError, err)
		p.logger.Error("storing messages failed", "account", accountID, "error", err)
		return SyncResultMsg{AccountID: accountID, Error: err}
	}

	unread, err := p.store.CountUnread(ctx, accountID)
	if err != nil {
		p.logger.Warn("counting unread failed", "account", accountID, "error", err)
	}

	p.tracker.Finish(key, nil)
	p.setStatus(accountID, SyncIdle, nil)
	p.logger.Info("sync complete",
		"account", accountID, "fetched", len(msgs), "new", newCount, "unread", unread)

	return SyncResultMsg{
		AccountID:   accountID,
		Messages:    msgs,
		NewCount:    newCount,
		UnreadCount: unread,
	}
}

// upsert stores msgs and returns how many were not yet known.
func (p *Poller) upsert(ctx context.Context, accountID string, msgs []model.Message) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	existing, err := p.store.GetMessages(ctx, store.MessageFilter{AccountID: &accountID})
	if err != nil {
		return 0, fmt.Errorf("loading known messages: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, m := range existing {
		known[m.ID] = true
	}

	newCount := 0
	for _, m := range msgs {
		if !known[m.ID] {
			newCount++
		}
	}

	if err := p.store.UpsertMessages(ctx, msgs); err != nil {
		return 0, fmt.Errorf("upserting messages: %w", err)
	}
	return newCount, nil
}

// setStatus updates the sync status for an account.
func (p *Poller) setStatus(accountID string, state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[accountID]
	if !ok {
		return
	}

	status.State = state
	status.Error = err
	if state == SyncIdle && err == nil {
		status.LastSync = p.now()
	}
}

// sendResult sends a SyncResultMsg on the result channel without blocking.
func (p *Poller) sendResult(msg SyncResultMsg) {
	msg.poller = p
	select {
	case p.resultCh <- msg:
	default:
		p.logger.Warn("dropping sync result", "account", msg.AccountID)
	}
}

// waitForResult returns a tea.Cmd that waits for the next result from
// the result channel.
func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next sync result.
// Call it after handling each SyncResultMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
