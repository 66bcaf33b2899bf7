// Package vram holds the static resource preflight table consulted before a
// job is submitted to the rendering backend.
package vram

// Requirement describes the VRAM envelope for a stability profile.
type Requirement struct {
	MinimumMB     int
	RecommendedMB int
}

const (
	// HeadroomMB is kept free on top of a profile's minimum so the backend
	// can hold intermediate latents without swapping.
	HeadroomMB = 1024

	// MaxSaneRequirementMB flags overkill configurations: no supported model
	// stack legitimately needs more than this.
	MaxSaneRequirementMB = 49152
)

// table maps stability-profile identifiers to their VRAM envelope.
var table = map[string]Requirement{
	"fast":      {MinimumMB: 8192, RecommendedMB: 12288},
	"standard":  {MinimumMB: 12288, RecommendedMB: 16384},
	"cinematic": {MinimumMB: 16384, RecommendedMB: 24576},
}

// Lookup returns the requirement for a stability profile.
func Lookup(profile string) (Requirement, bool) {
	req, ok := table[profile]
	return req, ok
}

// Profiles returns the known stability-profile identifiers.
func Profiles() []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	return names
}

// Fits reports whether a predicted VRAM need stays within the profile's
// minimum. Unknown profiles never fit; a zero prediction means the caller
// has no estimate and is allowed through.
func Fits(profile string, predictedMB int) bool {
	req, ok := table[profile]
	if !ok {
		return false
	}
	if predictedMB <= 0 {
		return true
	}
	return predictedMB <= req.MinimumMB
}

// Overkill reports whether a predicted requirement exceeds the maximum sane
// requirement for any supported configuration.
func Overkill(predictedMB int) bool {
	return predictedMB > MaxSaneRequirementMB
}
