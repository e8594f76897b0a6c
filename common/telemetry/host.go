package telemetry

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// HostInfo describes the machine the registry runs on. It is logged once
// at startup so storage latency reports can be read against the host.
type HostInfo struct {
	Hostname         string
	OS               string
	OSVersion        string
	Arch             string
	CPULogical       int
	TotalMemoryMB    uint64
	GoVersion        string
	InContainer      bool
	ContainerRuntime string
}

// CaptureHostInfo gathers host details. Fields that cannot be read are
// left at their zero value.
func CaptureHostInfo() HostInfo {
	info := HostInfo{
		Hostname:   "unknown",
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		CPULogical: runtime.NumCPU(),
		GoVersion:  runtime.Version(),
	}

	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}

	if runtime.GOOS == "linux" {
		info.OSVersion = readOSRelease("/etc/os-release")
		info.TotalMemoryMB = readMemTotalMB("/proc/meminfo")
		info.InContainer, info.ContainerRuntime = detectContainer()
	}

	return info
}

// LogAttrs flattens the snapshot for structured logging
func (h HostInfo) LogAttrs() []any {
	attrs := []any{
		"hostname", h.Hostname,
		"os", h.OS,
		"arch", h.Arch,
		"cpus", h.CPULogical,
		"go_version", h.GoVersion,
	}
	if h.OSVersion != "" {
		attrs = append(attrs, "os_version", h.OSVersion)
	}
	if h.TotalMemoryMB > 0 {
		attrs = append(attrs, "memory_mb", h.TotalMemoryMB)
	}
	if h.InContainer {
		attrs = append(attrs, "container", h.ContainerRuntime)
	}
	return attrs
}

func detectContainer() (bool, string) {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true, "docker"
	}
	if _, err := os.Stat("/var/run/secrets/kubernetes.io"); err == nil {
		return true, "kubernetes"
	}

	data, err := os.ReadFile("/proc/1/cgroup")
	if err != nil {
		return false, ""
	}
	content := string(data)
	for _, rt := range []string{"docker", "kubepods", "containerd"} {
		if strings.Contains(content, rt) {
			if rt == "kubepods" {
				return true, "kubernetes"
			}
			return true, rt
		}
	}
	return false, ""
}

// readOSRelease returns PRETTY_NAME, or NAME plus VERSION
func readOSRelease(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	var name, version string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, "\"")
		switch key {
		case "PRETTY_NAME":
			return value
		case "NAME":
			name = value
		case "VERSION":
			version = value
		}
	}
	return strings.TrimSpace(name + " " + version)
}

// readMemTotalMB parses MemTotal (reported in kB) from a meminfo file
func readMemTotalMB(path string) uint64 {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[0] != "MemTotal:" {
			continue
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0
		}
		return kb / 1024
	}
	return 0
}
