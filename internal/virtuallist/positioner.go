package virtuallist

// Row is a single materialized item, positioned relative to the top of the
// full content.
type Row[T Item] struct {
	Index  int
	Key    string
	Top    int
	Height int
	Item   T
}

// Bottom returns the first row past the item.
func (r Row[T]) Bottom() int { return r.Top + r.Height }

// Position materializes one Row per index in r. Indices outside items are
// skipped, so a stale range never reads past the slice.
func Position[T Item](r Range, items []T, itemHeight int) []Row[T] {
	if r.Empty() || len(items) == 0 {
		return nil
	}

	start := max(r.Start, 0)
	end := min(r.End, len(items)-1)
	if start > end {
		return nil
	}

	rows := make([]Row[T], 0, end-start+1)
	for i := start; i <= end; i++ {
		rows = append(rows, Row[T]{
			Index:  i,
			Key:    items[i].ItemID(),
			Top:    i * itemHeight,
			Height: itemHeight,
			Item:   items[i],
		})
	}
	return rows
}

// SpacerHeight returns the total scrollable extent of itemCount items.
func SpacerHeight(itemCount, itemHeight int) int {
	if itemCount <= 0 {
		return 0
	}
	return itemCount * itemHeight
}
