package virtuallist

import "sync"

// Viewport is the scroll state of the visible container.
type Viewport struct {
	ScrollOffset    int
	ContainerHeight int
}

// Tracker owns the viewport scroll offset and notifies subscribers when it
// changes. It is the only writer of Viewport.
type Tracker struct {
	viewport      Viewport
	contentHeight int

	nextID int
	subs   map[int]func(Viewport)
}

// NewTracker creates a tracker for a container of the given height.
func NewTracker(containerHeight int) *Tracker {
	return &Tracker{
		viewport: Viewport{ContainerHeight: containerHeight},
		subs:     make(map[int]func(Viewport)),
	}
}

// Viewport returns the current viewport state.
func (t *Tracker) Viewport() Viewport {
	return t.viewport
}

// ContentHeight returns the total scrollable height.
func (t *Tracker) ContentHeight() int {
	return t.contentHeight
}

// MaxOffset returns the largest valid scroll offset.
func (t *Tracker) MaxOffset() int {
	return max(0, t.contentHeight-t.viewport.ContainerHeight)
}

// ScrollTo moves the viewport to offset, clamped to the content. It returns
// true if the offset changed.
func (t *Tracker) ScrollTo(offset int) bool {
	offset = min(max(offset, 0), t.MaxOffset())
	if offset == t.viewport.ScrollOffset {
		return false
	}
	t.viewport.ScrollOffset = offset
	t.notify()
	return true
}

// ScrollBy moves the viewport by delta rows.
func (t *Tracker) ScrollBy(delta int) bool {
	return t.ScrollTo(t.viewport.ScrollOffset + delta)
}

// SetContentHeight updates the total scrollable height and re-clamps the
// current offset.
func (t *Tracker) SetContentHeight(height int) {
	t.contentHeight = max(height, 0)
	t.ScrollTo(t.viewport.ScrollOffset)
}

// Resize changes the container height and re-clamps the current offset.
func (t *Tracker) Resize(containerHeight int) {
	if containerHeight == t.viewport.ContainerHeight {
		return
	}
	t.viewport.ContainerHeight = containerHeight
	// The height itself changed, so observers hear about it even when the
	// offset stays put.
	if !t.ScrollTo(t.viewport.ScrollOffset) {
		t.notify()
	}
}

// Subscribe registers fn to be called after every viewport change. The
// returned subscription must be released with Unsubscribe.
func (t *Tracker) Subscribe(fn func(Viewport)) *Subscription {
	id := t.nextID
	t.nextID++
	t.subs[id] = fn
	return &Subscription{tracker: t, id: id}
}

func (t *Tracker) notify() {
	for _, fn := range t.subs {
		fn(t.viewport)
	}
}

// Subscription is a handle to a tracker observer.
type Subscription struct {
	tracker *Tracker
	id      int
	once    sync.Once
}

// Unsubscribe detaches the observer. Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		delete(s.tracker.subs, s.id)
	})
}
