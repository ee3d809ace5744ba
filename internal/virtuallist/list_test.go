package virtuallist

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testItem struct {
	id string
}

func (i testItem) ItemID() string { return i.id }

func makeItems(n int) []testItem {
	items := make([]testItem, n)
	for i := range items {
		items[i] = testItem{id: fmt.Sprintf("msg-%d", i)}
	}
	return items
}

func newTestList(t *testing.T, cfg Config, n int, opts ...Option[testItem]) *List[testItem] {
	t.Helper()

	l, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(l.Close)

	l.SetItems(makeItems(n))
	return l
}

func TestListScenarios(t *testing.T) {
	t.Run("first screen of 100 items", func(t *testing.T) {
		cfg := Config{ItemHeight: 50, ContainerHeight: 300, Overscan: 0, Threshold: 50}
		l := newTestList(t, cfg, 100)

		f := l.Render()
		assert.Equal(t, ModeWindowed, f.Mode)
		assert.Equal(t, Range{Start: 0, End: 5}, f.Range)
		assert.Len(t, f.Rows, 6)
		assert.Equal(t, 5000, f.SpacerHeight)
	})

	t.Run("scrolled to 250", func(t *testing.T) {
		cfg := Config{ItemHeight: 50, ContainerHeight: 300, Overscan: 0, Threshold: 50}
		l := newTestList(t, cfg, 100)

		require.True(t, l.Tracker().ScrollTo(250))
		f := l.Render()
		assert.Equal(t, 5, f.Range.Start)
		assert.Equal(t, 5000, f.SpacerHeight)
	})

	t.Run("empty collection", func(t *testing.T) {
		l := newTestList(t, DefaultConfig(50, 300), 0)

		f := l.Render()
		assert.True(t, f.Range.Empty())
		assert.Empty(t, f.Rows)
		assert.Equal(t, 0, f.SpacerHeight)

		m := l.Metrics()
		assert.Equal(t, 0, m.RenderedItems)
		assert.Equal(t, 0.0, m.RenderRatio)
	})

	t.Run("ten thousand items with default overscan", func(t *testing.T) {
		l := newTestList(t, DefaultConfig(50, 300), 10000)

		for _, offset := range []int{0, 12345, 250000, 499700} {
			l.Tracker().ScrollTo(offset)
			l.Render()

			m := l.Metrics()
			assert.Equal(t, 10000, m.TotalItems)
			assert.Less(t, m.RenderedItems, 50, "offset %d", offset)
			assert.Less(t, m.RenderRatio, 0.01, "offset %d", offset)
		}
	})
}

func TestListProperties(t *testing.T) {
	counts := []int{0, 1, 2, 7, 49, 50, 51, 100, 1000}
	heights := []int{1, 2, 3, 50}

	for _, n := range counts {
		for _, h := range heights {
			cfg := Config{ItemHeight: h, ContainerHeight: 10 * h, Overscan: 3, Threshold: 50}
			l := newTestList(t, cfg, n)

			maxOffset := l.Tracker().MaxOffset()
			for offset := 0; offset <= maxOffset; offset += max(1, maxOffset/17) {
				l.Tracker().ScrollTo(offset)
				f := l.Render()
				name := fmt.Sprintf("n=%d h=%d offset=%d", n, h, offset)

				assert.Equal(t, n*h, f.SpacerHeight, name)
				assert.LessOrEqual(t, len(f.Rows), n, name)
				if n <= cfg.Threshold {
					assert.Len(t, f.Rows, n, name)
				}

				if n == 0 {
					assert.True(t, f.Range.Empty(), name)
					continue
				}
				assert.GreaterOrEqual(t, f.Range.Start, 0, name)
				assert.LessOrEqual(t, f.Range.Start, f.Range.End, name)
				assert.Less(t, f.Range.End, n, name)

				for i, row := range f.Rows {
					assert.Equal(t, row.Index*h, row.Top, name)
					assert.Equal(t, h, row.Height, name)
					if i > 0 {
						assert.Equal(t, f.Rows[i-1].Bottom(), row.Top, name)
					}
				}
			}
		}
	}
}

func TestListRowsCarryStableKeys(t *testing.T) {
	l := newTestList(t, Config{ItemHeight: 2, ContainerHeight: 10, Threshold: 5}, 20)
	l.Tracker().ScrollTo(6)

	f := l.Render()
	require.NotEmpty(t, f.Rows)
	for _, row := range f.Rows {
		assert.Equal(t, fmt.Sprintf("msg-%d", row.Index), row.Key)
		assert.Equal(t, row.Key, row.Item.ItemID())
	}
}

func TestListDispatch(t *testing.T) {
	cfg := Config{ItemHeight: 1, ContainerHeight: 5, Overscan: 0, Threshold: 10}

	l := newTestList(t, cfg, 10)
	f := l.Render()
	assert.Equal(t, ModeDirect, f.Mode)
	assert.Len(t, f.Rows, 10)

	l.SetItems(makeItems(11))
	f = l.Render()
	assert.Equal(t, ModeWindowed, f.Mode)
	assert.Len(t, f.Rows, 5)

	// Not sticky: shrinking drops back to direct rendering.
	l.SetItems(makeItems(3))
	f = l.Render()
	assert.Equal(t, ModeDirect, f.Mode)
	assert.Len(t, f.Rows, 3)
}

func TestListRenderSkipsUnchangedPasses(t *testing.T) {
	l := newTestList(t, Config{ItemHeight: 1, ContainerHeight: 5, Threshold: 0}, 100)

	first := l.Render()
	assert.False(t, l.Dirty())

	second := l.Render()
	assert.Equal(t, first.Range, second.Range)

	l.Tracker().ScrollBy(3)
	assert.True(t, l.Dirty())

	third := l.Render()
	assert.Equal(t, 3, third.Range.Start)
	assert.Equal(t, 3, third.Viewport.ScrollOffset)
}

func TestListSetItemsClampsScroll(t *testing.T) {
	l := newTestList(t, Config{ItemHeight: 1, ContainerHeight: 5, Threshold: 0}, 100)
	l.Tracker().ScrollTo(90)

	l.SetItems(makeItems(10))
	f := l.Render()

	assert.Equal(t, 5, f.Viewport.ScrollOffset)
	assert.Equal(t, Range{Start: 5, End: 9}, f.Range)
}

func TestListScrollToItem(t *testing.T) {
	cfg := Config{ItemHeight: 2, ContainerHeight: 10, Threshold: 0}

	t.Run("known id", func(t *testing.T) {
		l := newTestList(t, cfg, 100)
		require.True(t, l.ScrollToItem("msg-40"))
		assert.Equal(t, 80, l.Tracker().Viewport().ScrollOffset)
	})

	t.Run("near the end clamps", func(t *testing.T) {
		l := newTestList(t, cfg, 100)
		require.True(t, l.ScrollToItem("msg-99"))
		assert.Equal(t, 190, l.Tracker().Viewport().ScrollOffset)
	})

	t.Run("unknown id is a no-op", func(t *testing.T) {
		l := newTestList(t, cfg, 100)
		l.Tracker().ScrollTo(30)

		assert.NotPanics(t, func() {
			assert.False(t, l.ScrollToItem("missing"))
		})
		assert.Equal(t, 30, l.Tracker().Viewport().ScrollOffset)
	})
}

func TestListScrollIndexIntoView(t *testing.T) {
	l := newTestList(t, Config{ItemHeight: 2, ContainerHeight: 10, Threshold: 0}, 100)

	// Already visible: no movement.
	assert.True(t, l.ScrollIndexIntoView(3))
	assert.Equal(t, 0, l.Tracker().Viewport().ScrollOffset)

	// Below the window: bottom edge aligns with the viewport bottom.
	assert.True(t, l.ScrollIndexIntoView(10))
	assert.Equal(t, 12, l.Tracker().Viewport().ScrollOffset)

	// Above the window: top edge aligns with the viewport top.
	assert.True(t, l.ScrollIndexIntoView(2))
	assert.Equal(t, 4, l.Tracker().Viewport().ScrollOffset)

	assert.False(t, l.ScrollIndexIntoView(100))
	assert.False(t, l.ScrollIndexIntoView(-1))
}

func TestListHitTest(t *testing.T) {
	l := newTestList(t, Config{ItemHeight: 2, ContainerHeight: 10, Threshold: 0}, 20)
	l.Tracker().ScrollTo(5)

	// Nothing is on screen before the first render.
	_, _, ok := l.HitTest(0)
	assert.False(t, ok)

	l.Render()

	idx, line, ok := l.HitTest(0)
	require.True(t, ok)
	assert.Equal(t, 2, idx)
	assert.Equal(t, 1, line)

	idx, line, ok = l.HitTest(9)
	require.True(t, ok)
	assert.Equal(t, 7, idx)
	assert.Equal(t, 0, line)

	_, _, ok = l.HitTest(10)
	assert.False(t, ok)

	short := newTestList(t, Config{ItemHeight: 2, ContainerHeight: 10, Threshold: 0}, 2)
	short.Render()
	_, _, ok = short.HitTest(6)
	assert.False(t, ok)
}

func TestListHitTestUsesDrawnFrame(t *testing.T) {
	l := newTestList(t, Config{ItemHeight: 2, ContainerHeight: 10, Threshold: 0}, 50)
	l.Render()

	// Scrolled but not yet drawn: the click lands on what is on screen.
	l.Tracker().ScrollTo(40)
	idx, _, ok := l.HitTest(0)
	require.True(t, ok)
	assert.Equal(t, 0, idx)

	l.Render()
	idx, _, ok = l.HitTest(0)
	require.True(t, ok)
	assert.Equal(t, 20, idx)

	// A replaced collection invalidates the drawn rows until the next frame.
	l.SetItems(makeItems(3))
	_, _, ok = l.HitTest(0)
	assert.False(t, ok)
}

func TestListActionsDoNotSelect(t *testing.T) {
	var selected, marked []string

	l := newTestList(t, DefaultConfig(2, 10), 5,
		WithOnSelect(func(it testItem) { selected = append(selected, it.id) }),
		WithAction("mark_read", func(it testItem) { marked = append(marked, it.id) }),
	)

	require.NoError(t, l.Invoke("mark_read", 1))
	assert.Equal(t, []string{"msg-1"}, marked)
	assert.Empty(t, selected)

	require.True(t, l.Select(2))
	assert.Equal(t, []string{"msg-2"}, selected)
	assert.Equal(t, []string{"msg-1"}, marked)

	assert.Error(t, l.Invoke("unknown", 1))
	assert.Error(t, l.Invoke("mark_read", 10))
	assert.False(t, l.Select(10))
	assert.Len(t, marked, 1)
	assert.Len(t, selected, 1)
}

func TestListReconfigure(t *testing.T) {
	l := newTestList(t, Config{ItemHeight: 1, ContainerHeight: 10, Threshold: 0}, 100)
	l.Render()

	err := l.Reconfigure(Config{ItemHeight: 0, ContainerHeight: 10})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	require.NoError(t, l.Reconfigure(Config{ItemHeight: 2, ContainerHeight: 20, Threshold: 0}))
	f := l.Render()
	assert.Equal(t, 200, f.SpacerHeight)
	assert.Equal(t, Range{Start: 0, End: 9}, f.Range)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero item height", Config{ItemHeight: 0, ContainerHeight: 10}},
		{"negative item height", Config{ItemHeight: -1, ContainerHeight: 10}},
		{"zero container", Config{ItemHeight: 1, ContainerHeight: 0}},
		{"negative overscan", Config{ItemHeight: 1, ContainerHeight: 10, Overscan: -1}},
		{"negative threshold", Config{ItemHeight: 1, ContainerHeight: 10, Threshold: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New[testItem](tt.cfg)
			assert.Nil(t, l)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestMetricsIsSideEffectFree(t *testing.T) {
	l := newTestList(t, DefaultConfig(1, 10), 200)
	l.Render()

	before := l.Metrics()
	l.Tracker().ScrollTo(100)

	// Metrics reflect the last completed pass, not the pending scroll.
	assert.Equal(t, before, l.Metrics())
	assert.True(t, l.Dirty())

	l.Render()
	assert.Equal(t, 200, l.Metrics().TotalItems)
	assert.Equal(t, "20/200 rendered (10.00%)", l.Metrics().String())
}
