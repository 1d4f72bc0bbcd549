package domain

import "time"

// DeviceStatus is the observed state of a device.
type DeviceStatus string

const (
	// StatusOnline means the device responded and looks healthy.
	StatusOnline DeviceStatus = "online"
	// StatusDegraded means the device is reachable but close to a limit.
	StatusDegraded DeviceStatus = "degraded"
	// StatusOffline means the device is down or was not found by the last check.
	StatusOffline DeviceStatus = "offline"
)

// DeviceKind groups devices by how they are probed.
type DeviceKind string

const (
	KindDisk    DeviceKind = "disk"
	KindNetwork DeviceKind = "net"
)

// DeviceState is the result of checking one device.
type DeviceState struct {
	CheckedAt time.Time    `json:"checked_at"`
	ID        string       `json:"id"`
	Kind      DeviceKind   `json:"kind"`
	Status    DeviceStatus `json:"status"`
	Detail    string       `json:"detail,omitempty"`
}
