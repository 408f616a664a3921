package backend

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

type Prober interface {
	GPUAvailable() bool
}

// Static is a Prober with a fixed answer.
type Static bool

func (s Static) GPUAvailable() bool {
	return bool(s)
}

// DeviceProber looks for GPU device nodes once and remembers the answer.
// Mode "on" and "off" skip detection.
type DeviceProber struct {
	Mode string

	// overridable in tests
	root string
	goos string
	arch string

	once      sync.Once
	available bool
}

func NewDeviceProber(mode string) *DeviceProber {
	return &DeviceProber{
		Mode: mode,
		root: "/dev",
		goos: runtime.GOOS,
		arch: runtime.GOARCH,
	}
}

func (p *DeviceProber) GPUAvailable() bool {
	switch strings.ToLower(p.Mode) {
	case "on", "true", "yes":
		return true
	case "off", "false", "no":
		return false
	}
	p.once.Do(func() {
		p.available = p.detect()
	})
	return p.available
}

func (p *DeviceProber) detect() bool {
	// apple silicon always has metal
	if p.goos == "darwin" && p.arch == "arm64" {
		return true
	}
	if p.goos != "linux" {
		return false
	}
	for _, name := range []string{"nvidia0", "kfd"} {
		if _, err := os.Stat(filepath.Join(p.root, name)); err == nil {
			return true
		}
	}
	matches, _ := filepath.Glob(filepath.Join(p.root, "dri", "renderD*"))
	return len(matches) > 0
}
