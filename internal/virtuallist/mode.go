package virtuallist

// Mode is the rendering strategy picked for a render pass.
type Mode int

const (
	// ModeDirect renders every item.
	ModeDirect Mode = iota
	// ModeWindowed renders only the visible range plus overscan.
	ModeWindowed
)

func (m Mode) String() string {
	switch m {
	case ModeDirect:
		return "direct"
	case ModeWindowed:
		return "windowed"
	default:
		return "unknown"
	}
}

// SelectMode picks windowed rendering once the collection is larger than
// threshold. Small lists skip the windowing bookkeeping entirely.
func SelectMode(itemCount, threshold int) Mode {
	if itemCount > threshold {
		return ModeWindowed
	}
	return ModeDirect
}
