package virtuallist

// Range is an inclusive interval of item indices. A range with End < Start
// is empty.
type Range struct {
	Start int
	End   int
}

// EmptyRange is the range produced for an empty collection.
var EmptyRange = Range{Start: 0, End: -1}

// Empty reports whether the range covers no items.
func (r Range) Empty() bool { return r.End < r.Start }

// Len returns the number of indices covered by the range.
func (r Range) Len() int {
	if r.Empty() {
		return 0
	}
	return r.End - r.Start + 1
}

// Contains reports whether index falls inside the range.
func (r Range) Contains(index int) bool {
	return !r.Empty() && index >= r.Start && index <= r.End
}

// CalculateRange maps a viewport onto the inclusive range of item indices
// that intersect it, padded by overscan items on both sides.
//
// The last visible row is ScrollOffset+ContainerHeight-1, so an item that
// starts exactly at the bottom edge is not counted as visible. itemHeight
// must be positive; Config.Validate guarantees this for list instances.
func CalculateRange(v Viewport, itemHeight, itemCount, overscan int) Range {
	if itemHeight <= 0 {
		panic("virtuallist: item height must be positive")
	}
	if itemCount <= 0 || v.ContainerHeight <= 0 {
		return EmptyRange
	}
	if overscan < 0 {
		overscan = 0
	}

	offset := max(v.ScrollOffset, 0)

	rawStart := offset / itemHeight
	rawEnd := (offset + v.ContainerHeight - 1) / itemHeight

	start := max(0, rawStart-overscan)
	end := min(itemCount-1, rawEnd+overscan)

	// Offsets beyond the content still yield the trailing item.
	if start > end {
		start = end
	}

	return Range{Start: start, End: end}
}
