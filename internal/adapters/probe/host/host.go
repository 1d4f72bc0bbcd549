// Package host implements a device prober that inspects local disks and network interfaces.
package host

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/net"

	"github.com/vshulcz/devpoll/internal/domain"
	"github.com/vshulcz/devpoll/internal/ports"
)

// DegradedUsedPercent is the disk usage at which a partition is reported degraded.
const DegradedUsedPercent = 95.0

type (
	partitionsFunc func(ctx context.Context, all bool) ([]disk.PartitionStat, error)
	usageFunc      func(ctx context.Context, path string) (*disk.UsageStat, error)
	interfacesFunc func(ctx context.Context) (net.InterfaceStatList, error)
)

// Prober reads device state through gopsutil.
type Prober struct {
	partitions partitionsFunc
	usage      usageFunc
	interfaces interfacesFunc
}

var _ ports.DeviceProber = (*Prober)(nil)

// New returns a Prober bound to the host.
func New() *Prober {
	return &Prober{
		partitions: disk.PartitionsWithContext,
		usage:      disk.UsageWithContext,
		interfaces: net.InterfacesWithContext,
	}
}

// Probe returns the state of every disk partition and non-loopback interface.
// A failure to stat one partition marks it offline instead of failing the probe.
func (p *Prober) Probe(ctx context.Context) ([]domain.DeviceState, error) {
	disks, dErr := p.disks(ctx)
	nics, nErr := p.nics(ctx)
	if err := errors.Join(dErr, nErr); err != nil {
		return nil, err
	}
	return append(disks, nics...), nil
}

func (p *Prober) disks(ctx context.Context) ([]domain.DeviceState, error) {
	parts, err := p.partitions(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	out := make([]domain.DeviceState, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		id := "disk:" + part.Mountpoint
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		st := domain.DeviceState{ID: id, Kind: domain.KindDisk}
		u, err := p.usage(ctx, part.Mountpoint)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			st.Status = domain.StatusOffline
			st.Detail = err.Error()
		case u.UsedPercent >= DegradedUsedPercent:
			st.Status = domain.StatusDegraded
			st.Detail = fmt.Sprintf("%s %.1f%% used", part.Device, u.UsedPercent)
		default:
			st.Status = domain.StatusOnline
			st.Detail = fmt.Sprintf("%s %.1f%% used", part.Device, u.UsedPercent)
		}
		out = append(out, st)
	}
	return out, nil
}

func (p *Prober) nics(ctx context.Context) ([]domain.DeviceState, error) {
	list, err := p.interfaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	out := make([]domain.DeviceState, 0, len(list))
	for _, nic := range list {
		if slices.Contains(nic.Flags, "loopback") {
			continue
		}
		st := domain.DeviceState{
			ID:     "net:" + nic.Name,
			Kind:   domain.KindNetwork,
			Status: domain.StatusOffline,
			Detail: nic.HardwareAddr,
		}
		if slices.Contains(nic.Flags, "up") {
			st.Status = domain.StatusOnline
		}
		out = append(out, st)
	}
	return out, nil
}
