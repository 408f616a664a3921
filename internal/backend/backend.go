package backend

import "strings"

// Backend is the compute substrate a pipeline runs on.
type Backend string

const (
	GPU Backend = "gpu"
	CPU Backend = "cpu"
)

// Preference is what the user asked for, Resolve turns it into a Backend.
type Preference string

const (
	PreferAuto Preference = "auto"
	PreferGPU  Preference = "gpu"
	PreferCPU  Preference = "cpu"
)

// ParsePreference accepts the canonical names and the browser aliases webgpu and wasm.
// Anything else is auto.
func ParsePreference(s string) Preference {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gpu", "webgpu":
		return PreferGPU
	case "cpu", "wasm":
		return PreferCPU
	default:
		return PreferAuto
	}
}

// Resolve picks the backend for a preference given whether a GPU is usable.
func Resolve(preference Preference, gpuAvailable bool) Backend {
	switch ParsePreference(string(preference)) {
	case PreferCPU:
		return CPU
	default:
		// gpu and auto only differ in intent, both fall back to cpu
		if gpuAvailable {
			return GPU
		}
		return CPU
	}
}

// Hint is the text shown next to the backend selector after a probe.
func Hint(gpuAvailable bool) string {
	if gpuAvailable {
		return "GPU available. You can switch to GPU mode."
	}
	return "GPU unavailable, the CPU backend will be used."
}
