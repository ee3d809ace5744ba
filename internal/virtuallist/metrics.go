package virtuallist

import "fmt"

// Metrics describes how much of the collection the last pass materialized.
type Metrics struct {
	TotalItems    int
	RenderedItems int
	RenderRatio   float64
}

func (m Metrics) String() string {
	return fmt.Sprintf("%d/%d rendered (%.2f%%)", m.RenderedItems, m.TotalItems, m.RenderRatio*100)
}

// Metrics reports counts from the last completed render pass. It has no
// side effects.
func (l *List[T]) Metrics() Metrics {
	total := l.frame.Total
	rendered := len(l.frame.Rows)

	m := Metrics{TotalItems: total, RenderedItems: rendered}
	if total > 0 {
		m.RenderRatio = float64(rendered) / float64(total)
	}
	return m
}
