package overlay

// Profile is the two-valued contrast mode derived from the active basemap.
type Profile string

const (
	ProfileLight   Profile = "light"
	ProfileImagery Profile = "imagery"
)

// StylePreset holds the stroke and casing values swapped in when a contrast
// profile is applied. Fill is untouched; only legibility-critical channels
// change with the basemap.
type StylePreset struct {
	StrokeColor   string
	StrokeWeight  float64
	StrokeOpacity float64
	CasingColor   string
	CasingWeight  float64
	CasingOpacity float64
}

// contrastPresets defines the fixed light/imagery presets for the two named
// overlays. Overlays without an entry here ignore profile changes.
var contrastPresets = map[string]map[Profile]StylePreset{
	"plan-areas": {
		ProfileLight: {
			StrokeColor: "#6b7280", StrokeWeight: 1.5, StrokeOpacity: 0.9,
			CasingColor: "#ffffff", CasingWeight: 4, CasingOpacity: 0.8,
		},
		ProfileImagery: {
			StrokeColor: "#f9fafb", StrokeWeight: 2, StrokeOpacity: 1,
			CasingColor: "#111827", CasingWeight: 5, CasingOpacity: 0.9,
		},
	},
	"north-park": {
		ProfileLight: {
			StrokeColor: "#b91c1c", StrokeWeight: 3, StrokeOpacity: 1,
			CasingColor: "#ffffff", CasingWeight: 7, CasingOpacity: 0.9,
		},
		ProfileImagery: {
			StrokeColor: "#fbbf24", StrokeWeight: 3.5, StrokeOpacity: 1,
			CasingColor: "#1f2937", CasingWeight: 8, CasingOpacity: 1,
		},
	},
}

// PresetFor returns the preset for an overlay id under a profile. ok is false
// for overlays that have no contrast behavior.
func PresetFor(id string, p Profile) (StylePreset, bool) {
	profiles, ok := contrastPresets[id]
	if !ok {
		return StylePreset{}, false
	}
	preset, ok := profiles[p]
	return preset, ok
}
