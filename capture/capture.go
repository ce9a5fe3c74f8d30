// Package capture runs the per-channel recording sessions: one device and
// one sink per channel, started and finalized in a fixed order.
package capture

import (
	"errors"
	"fmt"
)

type Channel string

const (
	ChannelDesktop    Channel = "desktop"
	ChannelMicrophone Channel = "microphone"
)

// Channels lists every channel in a stable order.
var Channels = []Channel{ChannelDesktop, ChannelMicrophone}

func (c Channel) Valid() bool {
	return c == ChannelDesktop || c == ChannelMicrophone
}

type State string

const (
	StateIdle       State = "idle"
	StateStarting   State = "starting"
	StateActive     State = "active"
	StateStopping   State = "stopping"
	StateFinalizing State = "finalizing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Busy reports whether a session in this state still owns its channel.
func (s State) Busy() bool {
	switch s {
	case StateStarting, StateActive, StateStopping, StateFinalizing:
		return true
	}
	return false
}

type Reason string

const (
	ReasonBegin       Reason = "begin"
	ReasonStarted     Reason = "started"
	ReasonUserStop    Reason = "user_stop"
	ReasonMaxDuration Reason = "max_duration"
	ReasonWriteFailed Reason = "write_failed"
	ReasonDeviceLost  Reason = "device_lost"
	ReasonStartFailed Reason = "start_failed"
	ReasonFinalized   Reason = "finalized"
	ReasonFlushFailed Reason = "flush_failed"
	ReasonTooShort    Reason = "too_short"
)

// ErrAlreadyActive is returned by Begin when the channel already has a
// session. Callers normally ignore it.
var ErrAlreadyActive = errors.New("capture: session already active")

// ErrTooShort marks a completed session whose artifact was below the
// minimum useful duration.
var ErrTooShort = errors.New("capture: recording too short")

// DeviceUnavailableError means the device or sink could not be opened or
// started. The channel is free again when it is returned.
type DeviceUnavailableError struct {
	Channel Channel
	Err     error
}

func (e *DeviceUnavailableError) Error() string {
	return fmt.Sprintf("capture: %s device unavailable: %v", e.Channel, e.Err)
}

func (e *DeviceUnavailableError) Unwrap() error { return e.Err }

// FlushError means the recording could not be finalized into an artifact.
type FlushError struct {
	Channel Channel
	Err     error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("capture: %s flush failed: %v", e.Channel, e.Err)
}

func (e *FlushError) Unwrap() error { return e.Err }
