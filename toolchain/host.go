package toolchain

import (
	"context"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/teranos/flashbuild/errors"
)

// Host describes the build machine for `flashbuild doctor`
type Host struct {
	OS              string `json:"os"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platform_version,omitempty"`
	KernelVersion   string `json:"kernel_version,omitempty"`
	Arch            string `json:"arch"`
	CPUs            int    `json:"cpus"`
	MemoryTotal     uint64 `json:"memory_total"`
	MemoryAvailable uint64 `json:"memory_available"`
}

// DescribeHost gathers host facts. Partial information is returned with the
// first error met.
func DescribeHost(ctx context.Context) (*Host, error) {
	h := &Host{}

	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return h, errors.Wrap(err, "failed to get host info")
	}
	h.OS = info.OS
	h.Platform = info.Platform
	h.PlatformVersion = info.PlatformVersion
	h.KernelVersion = info.KernelVersion
	h.Arch = info.KernelArch

	if h.CPUs, err = cpu.CountsWithContext(ctx, true); err != nil {
		return h, errors.Wrap(err, "failed to count CPUs")
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return h, errors.Wrap(err, "failed to get memory stats")
	}
	h.MemoryTotal = vm.Total
	h.MemoryAvailable = vm.Available
	return h, nil
}
