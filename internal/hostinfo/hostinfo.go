// Package hostinfo describes the machine benchaudit runs on for the report
// header: OS, kernel, distribution, execution environment and privilege.
package hostinfo

import (
	"bytes"
	"fmt"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"

	"github.com/ancients-collective/benchaudit/internal/types"
)

// Environment types.
const (
	EnvBareMetal = "bare-metal"
	EnvContainer = "container"
	EnvVM        = "vm"
)

// Source abstracts the gopsutil host queries so detection can be tested.
type Source interface {
	Info() (*host.InfoStat, error)
	Virtualization() (system, role string, err error)
}

type gopsutilSource struct{}

func (gopsutilSource) Info() (*host.InfoStat, error) { return host.Info() }

func (gopsutilSource) Virtualization() (string, string, error) { return host.Virtualization() }

// Markers are the filesystem paths consulted when gopsutil cannot tell
// whether the process runs inside a container.
type Markers struct {
	DockerEnv    string
	ContainerEnv string
	Cgroup       string
}

// DefaultMarkers are the Linux container marker paths.
var DefaultMarkers = Markers{
	DockerEnv:    "/.dockerenv",
	ContainerEnv: "/run/.containerenv",
	Cgroup:       "/proc/self/cgroup",
}

// Detector collects host facts.
type Detector struct {
	src     Source
	markers Markers
	euid    func() int
}

// NewDetector returns a Detector backed by gopsutil.
func NewDetector() *Detector {
	return &Detector{src: gopsutilSource{}, markers: DefaultMarkers, euid: os.Geteuid}
}

// Detect fills a ReportSystem with local host facts. Every layer is best
// effort: failures are returned as warnings and leave their fields empty.
func (d *Detector) Detect() (types.ReportSystem, []string) {
	sys := types.ReportSystem{
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
		EnvType: EnvBareMetal,
		IsRoot:  d.euid() == 0,
	}
	var warnings []string

	if h, err := os.Hostname(); err == nil {
		sys.Hostname = h
	}

	info, err := d.src.Info()
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("host detection failed: %v", err))
	} else {
		if info.Hostname != "" {
			sys.Hostname = info.Hostname
		}
		sys.Kernel = info.KernelVersion
		sys.DistroID = info.Platform
		sys.DistroVersion = info.PlatformVersion
		sys.DistroFamily = info.PlatformFamily
	}

	sys.EnvType, sys.EnvRuntime = d.environment()
	return sys, warnings
}

// environment classifies the host as container, vm or bare-metal, in that
// priority order.
func (d *Detector) environment() (string, string) {
	virt, role, err := d.src.Virtualization()
	if err == nil && role == "guest" && virt != "" {
		if isContainerRuntime(virt) {
			return EnvContainer, virt
		}
		if rt := d.containerMarker(); rt != "" {
			return EnvContainer, rt
		}
		return EnvVM, virt
	}
	if rt := d.containerMarker(); rt != "" {
		return EnvContainer, rt
	}
	return EnvBareMetal, ""
}

func (d *Detector) containerMarker() string {
	if _, err := os.Lstat(d.markers.DockerEnv); err == nil {
		return "docker"
	}
	if _, err := os.Lstat(d.markers.ContainerEnv); err == nil {
		return "podman"
	}
	if data, err := os.ReadFile(d.markers.Cgroup); err == nil {
		switch {
		case bytes.Contains(data, []byte("docker")):
			return "docker"
		case bytes.Contains(data, []byte("kubepods")):
			return "kubernetes"
		case bytes.Contains(data, []byte("lxc")):
			return "lxc"
		}
	}
	return ""
}

func isContainerRuntime(virt string) bool {
	switch virt {
	case "docker", "lxc", "podman", "systemd-nspawn":
		return true
	}
	return false
}
