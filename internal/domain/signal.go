package domain

import "time"

// SignalCheckDevicesState is the wire name of CheckSignal.
const SignalCheckDevicesState = "check_devices_state"

// CheckSignal asks the consumer to check the state of all known devices.
// It carries no payload.
type CheckSignal struct{}

// SignalEnvelope is the JSON form of a signal sent between processes.
type SignalEnvelope struct {
	Type string `json:"type"`
}

// Envelope returns the wire form of the signal.
func (CheckSignal) Envelope() SignalEnvelope {
	return SignalEnvelope{Type: SignalCheckDevicesState}
}

// PollConfig controls the cadence of the device poller.
type PollConfig struct {
	CheckDevicesInterval time.Duration
}
