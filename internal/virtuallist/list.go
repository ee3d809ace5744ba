package virtuallist

import "fmt"

// Frame is the result of one completed render pass.
type Frame[T Item] struct {
	Mode         Mode
	Total        int
	Range        Range
	Rows         []Row[T]
	SpacerHeight int
	Viewport     Viewport
}

// Option configures a List.
type Option[T Item] func(*List[T])

// WithOnSelect sets the callback fired when an item is selected.
func WithOnSelect[T Item](fn func(T)) Option[T] {
	return func(l *List[T]) { l.onSelect = fn }
}

// WithAction registers a named per-item action.
func WithAction[T Item](name string, fn func(T)) Option[T] {
	return func(l *List[T]) { l.actions[name] = fn }
}

// List renders a window of a uniformly sized item collection. It is not
// safe for concurrent use; it is driven from a single event loop.
type List[T Item] struct {
	cfg     Config
	tracker *Tracker
	sub     *Subscription

	items      []T
	index      map[string]int
	generation int

	frame    Frame[T]
	frameGen int
	dirty    bool

	onSelect func(T)
	actions  map[string]func(T)
}

// New creates a list. It fails fast on an invalid config.
func New[T Item](cfg Config, opts ...Option[T]) (*List[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := &List[T]{
		cfg:      cfg,
		tracker:  NewTracker(cfg.ContainerHeight),
		index:    make(map[string]int),
		frame:    Frame[T]{Range: EmptyRange},
		frameGen: -1,
		dirty:    true,
		actions:  make(map[string]func(T)),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.sub = l.tracker.Subscribe(func(Viewport) { l.dirty = true })

	return l, nil
}

// Close releases the list's tracker subscription.
func (l *List[T]) Close() {
	l.sub.Unsubscribe()
}

// Config returns the active render config.
func (l *List[T]) Config() Config { return l.cfg }

// Tracker returns the scroll position tracker feeding this list.
func (l *List[T]) Tracker() *Tracker { return l.tracker }

// Reconfigure replaces the render config. The next pass is recomputed from
// scratch.
func (l *List[T]) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	l.cfg = cfg
	l.tracker.Resize(cfg.ContainerHeight)
	l.tracker.SetContentHeight(SpacerHeight(len(l.items), cfg.ItemHeight))
	l.frameGen = -1
	l.dirty = true
	return nil
}

// SetItems replaces the collection for subsequent passes. The list keeps
// a reference to the slice and never modifies it.
func (l *List[T]) SetItems(items []T) {
	l.items = items
	l.generation++

	l.index = make(map[string]int, len(items))
	for i, it := range items {
		if _, dup := l.index[it.ItemID()]; !dup {
			l.index[it.ItemID()] = i
		}
	}

	l.tracker.SetContentHeight(SpacerHeight(len(items), l.cfg.ItemHeight))
	l.dirty = true
}

// Items returns the current collection.
func (l *List[T]) Items() []T { return l.items }

// Len returns the number of items in the collection.
func (l *List[T]) Len() int { return len(l.items) }

// Item returns the item at index.
func (l *List[T]) Item(index int) (T, bool) {
	var zero T
	if index < 0 || index >= len(l.items) {
		return zero, false
	}
	return l.items[index], true
}

// IndexOf returns the index of the item with the given id.
func (l *List[T]) IndexOf(id string) (int, bool) {
	i, ok := l.index[id]
	return i, ok
}

// Dirty reports whether the viewport or collection changed since the last
// render pass.
func (l *List[T]) Dirty() bool { return l.dirty }

// Render runs a render pass and returns the resulting frame. If neither the
// viewport nor the collection changed, the previous frame is returned as is.
func (l *List[T]) Render() Frame[T] {
	if !l.dirty && l.frameGen == l.generation {
		return l.frame
	}

	vp := l.tracker.Viewport()
	count := len(l.items)
	mode := SelectMode(count, l.cfg.Threshold)

	var r Range
	switch {
	case count == 0:
		r = EmptyRange
	case mode == ModeDirect:
		r = Range{Start: 0, End: count - 1}
	default:
		r = CalculateRange(vp, l.cfg.ItemHeight, count, l.cfg.Overscan)
	}

	rows := l.frame.Rows
	if r != l.frame.Range || l.frameGen != l.generation {
		rows = Position(r, l.items, l.cfg.ItemHeight)
	}

	l.frame = Frame[T]{
		Mode:         mode,
		Total:        count,
		Range:        r,
		Rows:         rows,
		SpacerHeight: SpacerHeight(count, l.cfg.ItemHeight),
		Viewport:     vp,
	}
	l.frameGen = l.generation
	l.dirty = false

	return l.frame
}

// Frame returns the last completed frame without rendering.
func (l *List[T]) Frame() Frame[T] { return l.frame }

// ScrollToItem scrolls so the item with id sits at the top of the viewport
// (or as close as the content allows). Unknown ids are ignored.
func (l *List[T]) ScrollToItem(id string) bool {
	i, ok := l.index[id]
	if !ok {
		return false
	}
	l.tracker.ScrollTo(i * l.cfg.ItemHeight)
	return true
}

// ScrollIndexIntoView scrolls the minimum distance needed for the item at
// index to be fully visible. It reports false for an out of range index.
func (l *List[T]) ScrollIndexIntoView(index int) bool {
	if index < 0 || index >= len(l.items) {
		return false
	}

	vp := l.tracker.Viewport()
	top := index * l.cfg.ItemHeight
	bottom := top + l.cfg.ItemHeight

	switch {
	case top < vp.ScrollOffset:
		l.tracker.ScrollTo(top)
	case bottom > vp.ScrollOffset+vp.ContainerHeight:
		l.tracker.ScrollTo(bottom - vp.ContainerHeight)
	}
	return true
}

// HitTest maps a row inside the viewport to the item drawn there in the
// last completed frame, and the line within that item. It resolves against
// the frame rather than the live offset, so a scroll that has not been
// rendered yet does not move the target. A frame built from an older
// collection hits nothing.
func (l *List[T]) HitTest(y int) (index, line int, ok bool) {
	if l.frameGen != l.generation {
		return 0, 0, false
	}

	vp := l.frame.Viewport
	if y < 0 || y >= vp.ContainerHeight {
		return 0, 0, false
	}

	abs := vp.ScrollOffset + y
	for _, row := range l.frame.Rows {
		if abs >= row.Top && abs < row.Bottom() {
			return row.Index, abs - row.Top, true
		}
	}
	return 0, 0, false
}

// Select fires the select callback for the item at index.
func (l *List[T]) Select(index int) bool {
	item, ok := l.Item(index)
	if !ok {
		return false
	}
	if l.onSelect != nil {
		l.onSelect(item)
	}
	return true
}

// Invoke fires the named action for the item at index. It never fires the
// select callback.
func (l *List[T]) Invoke(action string, index int) error {
	fn, ok := l.actions[action]
	if !ok {
		return fmt.Errorf("unknown list action %q", action)
	}
	item, ok := l.Item(index)
	if !ok {
		return fmt.Errorf("list action %q: index %d out of range", action, index)
	}
	fn(item)
	return nil
}
