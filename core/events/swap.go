package events

import "time"

// SwapAction tells what happened to a swap task.
type SwapAction string

const (
	SwapCreated     SwapAction = "created"
	SwapRescheduled SwapAction = "rescheduled"
	SwapStarted     SwapAction = "started"
	SwapDone        SwapAction = "done"
	SwapCanceled    SwapAction = "canceled"
)

// SwapEvent is published on every swap state change.
type SwapEvent struct {
	RobotID   string
	TaskID    string
	Charger   string
	Action    SwapAction
	StartTime time.Time
	Time      time.Time
}
