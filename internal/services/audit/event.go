// Package audit records completed device checks for later review.
package audit

import (
	"time"

	"github.com/vshulcz/devpoll/internal/domain"
)

// Event describes one completed check: when it ran, who asked for it,
// and which devices were not online.
type Event struct {
	Timestamp int64    `json:"ts"`
	Checked   int      `json:"checked"`
	Unhealthy []string `json:"unhealthy"`
	IPAddress string   `json:"ip_address,omitempty"`
}

// NewEvent summarizes states checked at the given time.
func NewEvent(at time.Time, states []domain.DeviceState, ip string) Event {
	unhealthy := make([]string, 0)
	for _, st := range states {
		if st.Status != domain.StatusOnline {
			unhealthy = append(unhealthy, st.ID)
		}
	}
	return Event{
		Timestamp: at.Unix(),
		Checked:   len(states),
		Unhealthy: unhealthy,
		IPAddress: ip,
	}
}
