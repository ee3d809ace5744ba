package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailterm/internal/loading"
	"github.com/nhle/mailterm/internal/logging"
	"github.com/nhle/mailterm/internal/model"
	"github.com/nhle/mailterm/internal/source"
	"github.com/nhle/mailterm/tests/testutil"
)

var fastBackoff = loading.Backoff{Initial: time.Millisecond, Max: time.Millisecond, MaxAttempts: 3}

func newTestPoller(t *testing.T) (*Poller, *loading.Tracker) {
	t.Helper()
	tracker := loading.NewTracker()
	p := New(testutil.NewTestStore(t), model.SyncConfig{PollIntervalSec: 3600, FetchLimit: 100}, tracker, logging.NullLogger())
	p.SetBackoff(fastBackoff)
	return p, tracker
}

func TestSyncOnceCountsNewMessages(t *testing.T) {
	p, tracker := newTestPoller(t)
	mb := testutil.NewFakeMailbox("acct", 4)
	p.RegisterMailbox(mb)

	res := p.SyncOnce(context.Background(), mb)
	require.NoError(t, res.Error)
	assert.Equal(t, 4, res.NewCount)
	assert.Equal(t, 2, res.UnreadCount)

	mb.Messages = testutil.MakeMessages("acct", 6)
	res = p.SyncOnce(context.Background(), mb)
	require.NoError(t, res.Error)
	assert.Equal(t, 2, res.NewCount)
	assert.Equal(t, 3, res.UnreadCount)

	e, ok := tracker.Get("sync:acct")
	require.True(t, ok)
	assert.Equal(t, loading.StateDone, e.State)

	statuses := p.GetStatuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, SyncIdle, statuses[0].State)
	assert.False(t, statuses[0].LastSync.IsZero())
}

func TestSyncOnceRetriesTransientErrors(t *testing.T) {
	p, _ := newTestPoller(t)
	mb := testutil.NewFakeMailbox("acct", 2)
	mb.FetchErrs = []error{errors.New("timeout"), errors.New("reset")}
	p.RegisterMailbox(mb)

	res := p.SyncOnce(context.Background(), mb)
	require.NoError(t, res.Error)
	assert.Equal(t, 3, mb.FetchCount())
	assert.Equal(t, 2, res.NewCount)
}

func TestSyncOnceAuthErrorIsNotRetried(t *testing.T) {
	p, tracker := newTestPoller(t)
	mb := testutil.NewFakeMailbox("acct", 2)
	mb.FetchErrs = []error{&source.AuthError{AccountID: "acct", Message: "bad password"}}
	p.RegisterMailbox(mb)

	res := p.SyncOnce(context.Background(), mb)
	require.Error(t, res.Error)
	require.NotNil(t, res.AuthError)
	assert.Equal(t, "acct", res.AuthError.AccountID)
	assert.Equal(t, 1, mb.FetchCount())

	e, _ := tracker.Get("sync:acct")
	assert.Equal(t, loading.StateFailed, e.State)
	assert.Equal(t, SyncError, p.GetStatuses()[0].State)
}

func TestStartDeliversResultAndRefresh(t *testing.T) {
	p, _ := newTestPoller(t)
	mb := testutil.NewFakeMailbox("acct", 3)
	p.RegisterMailbox(mb)

	cmd := p.Start()
	require.NotNil(t, cmd)
	assert.Nil(t, p.Start())

	msg, ok := cmd().(SyncResultMsg)
	require.True(t, ok)
	assert.Equal(t, 3, msg.NewCount)

	p.RefreshAll()
	msg, ok = p.WaitForNextResult()().(SyncResultMsg)
	require.True(t, ok)
	assert.Equal(t, 0, msg.NewCount)
	assert.Equal(t, 2, mb.FetchCount())

	p.Stop()
	p.Stop()
}

// stuckMailbox blocks FetchMessages until release is closed, ignoring ctx
// the way a hung server connection would.
type stuckMailbox struct {
	*testutil.FakeMailbox
	started chan struct{}
	release chan struct{}
}

func (m *stuckMailbox) FetchMessages(ctx context.Context, opts source.FetchOptions) ([]model.Message, error) {
	close(m.started)
	<-m.release
	return m.FakeMailbox.FetchMessages(ctx, opts)
}

func TestStopDoesNotWaitForStuckFetch(t *testing.T) {
	p, _ := newTestPoller(t)
	mb := &stuckMailbox{
		FakeMailbox: testutil.NewFakeMailbox("acct", 1),
		started:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	p.RegisterMailbox(mb)

	cmd := p.Start()
	require.NotNil(t, cmd)
	<-mb.started

	begin := time.Now()
	p.Stop()
	assert.Less(t, time.Since(begin), 100*time.Millisecond)
	assert.False(t, p.Wait(20*time.Millisecond))
	assert.Nil(t, p.Start())

	close(mb.release)
	require.True(t, p.Wait(2*time.Second))

	// The pending result is delivered, then the closed channel ends the
	// listener instead of leaving it blocked.
	var msgs []any
	for range 3 {
		msg := cmd()
		if msg == nil {
			break
		}
		msgs = append(msgs, msg)
	}
	assert.Len(t, msgs, 1)
	assert.Nil(t, p.WaitForNextResult()())
}

func TestStaleResults(t *testing.T) {
	p, _ := newTestPoller(t)
	other, _ := newTestPoller(t)
	mb := testutil.NewFakeMailbox("acct", 1)
	p.RegisterMailbox(mb)

	msg, ok := p.Start()().(SyncResultMsg)
	require.True(t, ok)
	p.Stop()

	assert.False(t, msg.Stale(p))
	assert.True(t, msg.Stale(other))
	assert.False(t, SyncResultMsg{AccountID: "acct"}.Stale(other))
}

func TestStopBeforeStart(t *testing.T) {
	p, _ := newTestPoller(t)
	p.RegisterMailbox(testutil.NewFakeMailbox("acct", 1))

	p.Stop()
	assert.True(t, p.Wait(time.Second))
	assert.Nil(t, p.Start())
}
