package events

import "time"

// CycleEvent is published after every dispatch cycle, aborted ones included.
type CycleEvent struct {
	CycleID     string
	Time        time.Time
	Duration    time.Duration
	Robots      int
	Tasks       int
	Moves       int
	Assignments int
	Relocations int
	// Err is set when the cycle was aborted.
	Err error
}
