package backend

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		preference Preference
		available  bool
		expected   Backend
	}{
		{name: "cpu without gpu", preference: PreferCPU, available: false, expected: CPU},
		{name: "cpu with gpu", preference: PreferCPU, available: true, expected: CPU},
		{name: "wasm alias with gpu", preference: "wasm", available: true, expected: CPU},
		{name: "gpu with gpu", preference: PreferGPU, available: true, expected: GPU},
		{name: "webgpu alias with gpu", preference: "webgpu", available: true, expected: GPU},
		{name: "gpu falls back", preference: PreferGPU, available: false, expected: CPU},
		{name: "auto with gpu", preference: PreferAuto, available: true, expected: GPU},
		{name: "auto without gpu", preference: PreferAuto, available: false, expected: CPU},
		{name: "empty is auto", preference: "", available: true, expected: GPU},
		{name: "unknown is auto", preference: "tpu", available: false, expected: CPU},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.preference, tt.available); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestParsePreference(t *testing.T) {
	tests := map[string]Preference{
		"webgpu": PreferGPU,
		"GPU":    PreferGPU,
		" wasm ": PreferCPU,
		"cpu":    PreferCPU,
		"auto":   PreferAuto,
		"":       PreferAuto,
	}
	for in, expected := range tests {
		if got := ParsePreference(in); got != expected {
			t.Errorf("ParsePreference(%q): expected %s, got %s", in, expected, got)
		}
	}
}

func TestDeviceProber(t *testing.T) {
	t.Run("forced modes skip detection", func(t *testing.T) {
		if !NewDeviceProber("on").GPUAvailable() {
			t.Error("Expected mode on to report a gpu")
		}
		if NewDeviceProber("off").GPUAvailable() {
			t.Error("Expected mode off to report no gpu")
		}
	})

	t.Run("detects render node", func(t *testing.T) {
		root := t.TempDir()
		if err := os.MkdirAll(filepath.Join(root, "dri"), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(root, "dri", "renderD128"), nil, 0644); err != nil {
			t.Fatal(err)
		}
		p := &DeviceProber{Mode: "auto", root: root, goos: "linux", arch: "amd64"}
		if !p.GPUAvailable() {
			t.Error("Expected render node to be detected")
		}
	})

	t.Run("empty dev has no gpu", func(t *testing.T) {
		p := &DeviceProber{Mode: "auto", root: t.TempDir(), goos: "linux", arch: "amd64"}
		if p.GPUAvailable() {
			t.Error("Expected no gpu")
		}
	})

	t.Run("apple silicon", func(t *testing.T) {
		p := &DeviceProber{Mode: "auto", root: t.TempDir(), goos: "darwin", arch: "arm64"}
		if !p.GPUAvailable() {
			t.Error("Expected darwin/arm64 to report a gpu")
		}
	})
}
