// Package events defines the fleet events emitted on the event bus.
//
// Available event types:
//   - CycleEvent: outcome of one dispatch cycle
//   - SwapEvent: battery swap lifecycle change
package events
