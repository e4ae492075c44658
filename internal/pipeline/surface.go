package pipeline

// Sink accepts rendered output bytes.
type Sink interface {
	Accept(chunk []byte) error
}

// Backlog is the scrollback control surface used by the Governor.
type Backlog interface {
	BacklogLen() int
	SetCapacity(lines int)
	DiscardScrollback()
}

// BacklogSource is what the MemoryMonitor samples for its estimate.
type BacklogSource interface {
	BacklogLen() int
	Cols() int
}

// Surface is the display surface a Pipeline owns exclusively.
type Surface interface {
	Sink
	Backlog
	Cols() int
}
