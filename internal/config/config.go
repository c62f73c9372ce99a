// Package config holds the declarative map configuration: viewport, basemaps,
// the imagery reference layer, and the ordered overlay entries.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// MapConfig is the root configuration. Immutable after load.
type MapConfig struct {
	Center      LatLng       `yaml:"center"`
	Zoom        float64      `yaml:"zoom"`
	Attribution string       `yaml:"attribution"`
	Basemaps    []Basemap    `yaml:"basemaps"`
	// ImageryReference is a raster label/boundary layer shown only while the
	// imagery basemap is active.
	ImageryReference *ReferenceLayer `yaml:"imageryReference"`
	// LabelOverrides locates the two-column KEY,LABEL override resource.
	// May be an http(s) URL or a local path. Empty disables overrides.
	LabelOverrides string         `yaml:"labelOverrides"`
	Overlays       []OverlayEntry `yaml:"overlays"`
}

// LatLng is a WGS84 coordinate.
type LatLng struct {
	Lat float64 `yaml:"lat"`
	Lng float64 `yaml:"lng"`
}

// Basemap is an opaque tile layer. Imagery marks basemaps that need the
// high-contrast overlay preset.
type Basemap struct {
	ID      string  `yaml:"id"`
	Name    string  `yaml:"name"`
	URL     string  `yaml:"url"`
	MaxZoom int     `yaml:"maxZoom"`
	Opacity float64 `yaml:"opacity"`
	Imagery bool    `yaml:"imagery"`
	Default bool    `yaml:"default"`
}

// ReferenceLayer is a tile layer drawn above the imagery basemap.
type ReferenceLayer struct {
	URL     string  `yaml:"url"`
	Pane    string  `yaml:"pane"`
	Opacity float64 `yaml:"opacity"`
	MaxZoom int     `yaml:"maxZoom"`
}

// OverlayEntry declares one thematic overlay. Optional pieces (casing, label
// rule) are pointers so a missing section stays visibly absent.
type OverlayEntry struct {
	ID          string       `yaml:"id"`
	Name        string       `yaml:"name"`
	Query       FeatureQuery `yaml:"query"`
	Style       StrokeStyle  `yaml:"style"`
	Casing      *CasingStyle `yaml:"casing"`
	Label       *LabelRule   `yaml:"label"`
	Attribution string       `yaml:"attribution"`
	FitBounds   bool         `yaml:"fitBounds"`
	// UseOverrides consults the label override table before the feature
	// attribute. Set on the context overlay only.
	UseOverrides bool `yaml:"useOverrides"`
}

// FeatureQuery is a filtered attribute/geometry query against a feature
// service endpoint.
type FeatureQuery struct {
	URL            string   `yaml:"url"`
	Where          string   `yaml:"where"`
	OutFields      []string `yaml:"outFields"`
	ReturnGeometry bool     `yaml:"returnGeometry"`
}

// StrokeStyle is the main stroke + fill for an overlay.
type StrokeStyle struct {
	Color       string  `yaml:"color"`
	Weight      float64 `yaml:"weight"`
	Opacity     float64 `yaml:"opacity"`
	FillColor   string  `yaml:"fillColor"`
	FillOpacity float64 `yaml:"fillOpacity"`
}

// CasingStyle is the wider underlay stroke drawn behind the main stroke.
type CasingStyle struct {
	Color   string  `yaml:"color"`
	Weight  float64 `yaml:"weight"`
	Opacity float64 `yaml:"opacity"`
}

// LabelRule controls per-feature label text and visibility.
type LabelRule struct {
	// Property names the source attribute; Text is a fixed fallback.
	Property string   `yaml:"property"`
	Text     string   `yaml:"text"`
	MinZoom  float64  `yaml:"minZoom"`
	Suppress []string `yaml:"suppress"`
}

// Load reads and validates a config file. A missing or invalid file is fatal
// to initialization; callers abort bootstrap on error.
func Load(path string) (*MapConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return parse(data)
}

// Default returns the embedded North Park configuration.
func Default() (*MapConfig, error) {
	return parse(defaultYAML)
}

func parse(data []byte) (*MapConfig, error) {
	var cfg MapConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks structural invariants that the YAML schema cannot express.
func (c *MapConfig) Validate() error {
	if len(c.Basemaps) == 0 {
		return fmt.Errorf("config: at least one basemap is required")
	}
	seen := make(map[string]bool, len(c.Overlays))
	for _, o := range c.Overlays {
		if o.ID == "" {
			return fmt.Errorf("config: overlay %q has no id", o.Name)
		}
		if seen[o.ID] {
			return fmt.Errorf("config: duplicate overlay id %q", o.ID)
		}
		seen[o.ID] = true
		if o.Query.URL == "" {
			return fmt.Errorf("config: overlay %q has no query url", o.ID)
		}
		if o.Label != nil && o.Label.Property == "" && o.Label.Text == "" {
			return fmt.Errorf("config: overlay %q label rule needs property or text", o.ID)
		}
	}
	ids := make(map[string]bool, len(c.Basemaps))
	for _, b := range c.Basemaps {
		if b.ID == "" || b.URL == "" {
			return fmt.Errorf("config: basemap %q needs id and url", b.Name)
		}
		if ids[b.ID] {
			return fmt.Errorf("config: duplicate basemap id %q", b.ID)
		}
		ids[b.ID] = true
	}
	return nil
}

// DefaultBasemap returns the basemap marked default, or the first one.
func (c *MapConfig) DefaultBasemap() Basemap {
	for _, b := range c.Basemaps {
		if b.Default {
			return b
		}
	}
	return c.Basemaps[0]
}

// BasemapByID looks up a basemap by id.
func (c *MapConfig) BasemapByID(id string) (Basemap, bool) {
	for _, b := range c.Basemaps {
		if b.ID == id {
			return b, true
		}
	}
	return Basemap{}, false
}

// OverlayByID looks up an overlay entry by id.
func (c *MapConfig) OverlayByID(id string) (OverlayEntry, bool) {
	for _, o := range c.Overlays {
		if o.ID == id {
			return o, true
		}
	}
	return OverlayEntry{}, false
}
