package app

import (
	"context"
	"errors"
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mailterm/internal/loading"
	"github.com/nhle/mailterm/internal/model"
	"github.com/nhle/mailterm/internal/source"
	"github.com/nhle/mailterm/internal/store"
	"github.com/nhle/mailterm/internal/ui/composer"
	"github.com/nhle/mailterm/internal/ui/viewer"
)

// actionTimeout bounds a single flag, archive or send round trip.
const actionTimeout = 30 * time.Second

// messagesLoadedMsg carries the message list read from the store.
type messagesLoadedMsg struct {
	messages []model.Message
	unread   int
	err      error
}

// actionResultMsg is sent after a message action completes.
type actionResultMsg struct {
	action  string
	message model.Message
	err     error
}

// replyReadyMsg carries what the composer needs to open.
type replyReadyMsg struct {
	original model.Message
	body     *model.MessageBody
	draft    *model.Draft
}

// replySentMsg is sent after a reply was sent or failed.
type replySentMsg struct {
	original model.Message
	err      error
}

// draftSavedMsg is sent after a draft is persisted.
type draftSavedMsg struct{ err error }

// searchResultMsg carries messages matching a server-side search.
type searchResultMsg struct {
	query    string
	messages []model.Message
	err      error
}

// searchLimit caps how many matches a server search returns.
const searchLimit = 200

// loadMessages returns a command that reads the account's messages from
// the store, newest first.
func (m Model) loadMessages() tea.Cmd {
	s := m.store
	accountID := m.cfg.Account.ID
	mailbox := m.cfg.Account.Mailbox
	if m.mailbox != nil {
		accountID = m.mailbox.AccountID()
	}
	unreadOnly := m.unreadOnly

	return func() tea.Msg {
		ctx := context.Background()
		msgs, err := s.GetMessages(ctx, store.MessageFilter{
			AccountID:  &accountID,
			Mailbox:    &mailbox,
			UnreadOnly: unreadOnly,
		})
		if err != nil {
			return messagesLoadedMsg{err: err}
		}
		unread, err := s.CountUnread(ctx, accountID)
		if err != nil {
			return messagesLoadedMsg{err: err}
		}
		return messagesLoadedMsg{messages: msgs, unread: unread}
	}
}

// fetchBody returns the body of msg from the cache, or from the mailbox
// with retry, caching the result.
func (m Model) fetchBody(ctx context.Context, msg model.Message) (*model.MessageBody, error) {
	if body, ok := m.cache.Get(msg.ID); ok {
		return body, nil
	}
	if m.mailbox == nil {
		return nil, errNoAccount
	}

	key := "body:" + msg.ID
	m.tracker.Start(key)

	var body *model.MessageBody
	err := loading.Retry(ctx, m.backoff, func(ctx context.Context) error {
		b, err := m.mailbox.FetchBody(ctx, msg)
		if err != nil {
			if source.IsAuthError(err) {
				return loading.Permanent(err)
			}
			return err
		}
		body = b
		return nil
	})
	m.tracker.Finish(key, err)
	if err != nil {
		return nil, err
	}

	if err := m.cache.Put(msg.ID, body); err != nil {
		m.logger.Warn("caching message body", "message", msg.ID, "error", err)
	}
	return body, nil
}

// loadBody returns a command that delivers the body of msg to the viewer.
func (m Model) loadBody(msg model.Message) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()

		body, err := m.fetchBody(ctx, msg)
		if err != nil {
			m.logger.Error("fetching message body", "message", msg.ID, "error", err)
		}
		return viewer.BodyLoadedMsg{MessageID: msg.ID, Body: body, Err: err}
	}
}

// runAction returns a command that applies action to msg on the server,
// then in the store.
func (m Model) runAction(action string, msg model.Message) tea.Cmd {
	s := m.store
	mb := m.mailbox
	c := m.cache
	tracker := m.tracker

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()

		key := "action:" + action + ":" + msg.ID
		tracker.Start(key)

		var err error
		switch action {
		case viewer.ActionToggleRead:
			seen := !msg.Seen
			if mb != nil {
				err = mb.SetSeen(ctx, msg, seen)
			}
			if err == nil {
				err = ignoreMissing(s.SetSeen(ctx, msg.ID, seen))
				msg.Seen = seen
			}
		case viewer.ActionFlag:
			flagged := !msg.Flagged
			if mb != nil {
				err = mb.SetFlagged(ctx, msg, flagged)
			}
			if err == nil {
				err = ignoreMissing(s.SetFlagged(ctx, msg.ID, flagged))
				msg.Flagged = flagged
			}
		case viewer.ActionArchive:
			if mb == nil {
				err = errNoAccount
				break
			}
			if err = mb.Archive(ctx, msg); err == nil {
				err = ignoreMissing(s.DeleteMessage(ctx, msg.ID))
				if cerr := c.Delete(msg.ID); cerr != nil {
					m.logger.Warn("dropping cached body", "message", msg.ID, "error", cerr)
				}
			}
		default:
			err = errors.New("unknown action " + action)
		}

		tracker.Finish(key, err)
		return actionResultMsg{action: action, message: msg, err: err}
	}
}

// ignoreMissing drops store.ErrNotFound. Search results live only on the
// server, so the store may not hold the message an action targets.
func ignoreMissing(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

func (m Model) handleActionResult(msg actionResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.logger.Error("message action failed", "action", msg.action, "message", msg.message.ID, "error", msg.err)
		if source.IsAuthError(msg.err) {
			m.authErrorMessage = "Authentication failed, press L to update your password"
		}
		m.setFlash("Could not "+msg.action+": "+msg.err.Error(), true)
		return m, nil
	}

	if msg.action == viewer.ActionArchive {
		m.setFlash("Archived", false)
		if open, ok := m.viewer.Message(); ok && open.ID == msg.message.ID && m.currentView == ViewMessage {
			m.currentView = ViewList
		}
	} else {
		m.viewer.SetMessage(msg.message)
	}

	if m.searchQuery != "" {
		m.updateSearchResult(msg.action, msg.message)
		return m, tea.Batch(m.loadMessages(), m.list.RequestFrame())
	}
	return m, m.loadMessages()
}

// updateSearchResult applies a completed action to the search results
// shown in the list, which the store reload does not cover.
func (m *Model) updateSearchResult(action string, updated model.Message) {
	current := m.list.Messages()
	msgs := make([]model.Message, 0, len(current))
	for _, msg := range current {
		if msg.ID == updated.ID {
			if action == viewer.ActionArchive {
				continue
			}
			msg = updated
		}
		msgs = append(msgs, msg)
	}
	m.list.SetMessages(msgs)
}

// prepareReply returns a command that gathers the original body and any
// saved draft before opening the composer.
func (m Model) prepareReply(msg model.Message) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()

		body, err := m.fetchBody(ctx, msg)
		if err != nil {
			// The reply can still be written without the quote.
			m.logger.Warn("fetching body for reply", "message", msg.ID, "error", err)
		}

		draft, err := s.GetDraftForMessage(ctx, msg.ID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				m.logger.Warn("loading draft", "message", msg.ID, "error", err)
			}
			draft = nil
		}
		return replyReadyMsg{original: msg, body: body, draft: draft}
	}
}

// sendReply returns a command that sends the composed reply, marks the
// original answered and drops its draft.
func (m Model) sendReply(send composer.SendMsg) tea.Cmd {
	s := m.store
	mb := m.mailbox
	tracker := m.tracker

	return func() tea.Msg {
		if mb == nil {
			return replySentMsg{original: send.Original, err: errNoAccount}
		}

		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()

		key := "send:" + send.Original.ID
		tracker.Start(key)
		err := mb.SendReply(ctx, source.Reply{
			Original:     send.Original,
			OriginalBody: send.OriginalBody,
			To:           send.Draft.To,
			Subject:      send.Draft.Subject,
			Body:         send.Draft.Body,
		})
		tracker.Finish(key, err)
		if err != nil {
			return replySentMsg{original: send.Original, err: err}
		}

		if err := s.SetAnswered(ctx, send.Original.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			m.logger.Warn("marking answered", "message", send.Original.ID, "error", err)
		}
		if send.Draft.ID != "" {
			if err := s.DeleteDraft(ctx, send.Draft.ID); err != nil {
				m.logger.Warn("deleting draft", "draft", send.Draft.ID, "error", err)
			}
		}
		return replySentMsg{original: send.Original}
	}
}

// saveDraft returns a command that persists an unsent reply.
func (m Model) saveDraft(d model.Draft) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		return draftSavedMsg{err: s.SaveDraft(context.Background(), &d)}
	}
}

// search returns a command that runs query on the server. Matches are
// shown as they are and never written to the store, so results older than
// the sync window do not linger in the mailbox list.
func (m Model) search(query string) tea.Cmd {
	mb := m.mailbox
	tracker := m.tracker

	return func() tea.Msg {
		if mb == nil {
			return searchResultMsg{query: query, err: errNoAccount}
		}

		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()

		key := "search:" + query
		tracker.Start(key)
		msgs, err := mb.Search(ctx, query, searchLimit)
		tracker.Finish(key, err)
		if err != nil {
			return searchResultMsg{query: query, err: err}
		}
		// Newest first, matching the store order.
		sort.SliceStable(msgs, func(i, j int) bool {
			return msgs[i].Date.After(msgs[j].Date)
		})
		return searchResultMsg{query: query, messages: msgs}
	}
}
