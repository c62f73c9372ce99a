// Package overlay owns the thematic overlays drawn above the basemap: their
// feature shapes, label pins, and basemap-dependent contrast styling.
package overlay

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"go.uber.org/zap"

	"github.com/sdmaps/plan-map/internal/arcgis"
	"github.com/sdmaps/plan-map/internal/config"
	"github.com/sdmaps/plan-map/internal/labels"
)

// FitBoundsPadding is the fixed viewport padding, in pixels, applied when an
// overlay requests a bounds fit.
const FitBoundsPadding = 20

// FeatureShape is one rendered geometry plus its source attributes. Owned by
// the Controller that created it; replaced wholesale on reload.
type FeatureShape struct {
	Geometry   orb.Geometry
	Properties geojson.Properties
	// Anchor is the label anchor at the shape's visual centroid.
	Anchor orb.Point

	labelText    string
	labelVisible bool
}

// LabelPin is the rendered label state for one shape.
type LabelPin struct {
	Anchor  orb.Point
	Text    string
	Visible bool
}

// Controller owns one overlay: zero-or-one casing underlay, one main shape
// layer, and per-feature labels.
type Controller struct {
	entry  config.OverlayEntry
	client *arcgis.Client
	log    *zap.Logger

	mu        sync.RWMutex
	shapes    []*FeatureShape
	loaded    bool
	style     config.StrokeStyle
	casing    *config.CasingStyle
	profile   Profile
	overrides labels.Table

	loadedHandlers []func(*Controller)
}

// NewController creates a controller for one overlay entry. Styles start from
// the entry's declared values under the light profile.
func NewController(entry config.OverlayEntry, client *arcgis.Client) *Controller {
	c := &Controller{
		entry:   entry,
		client:  client,
		style:   entry.Style,
		profile: ProfileLight,
		log:     zap.L().With(zap.String("component", "overlay"), zap.String("overlay", entry.ID)),
	}
	if entry.Casing != nil {
		cs := *entry.Casing
		c.casing = &cs
	}
	return c
}

// ID returns the overlay identifier.
func (c *Controller) ID() string { return c.entry.ID }

// Name returns the overlay display name.
func (c *Controller) Name() string { return c.entry.Name }

// Entry returns the declarative entry this controller was built from.
func (c *Controller) Entry() config.OverlayEntry { return c.entry }

// OnFeaturesLoaded registers a handler invoked after every successful load.
// Handlers run synchronously on the loading goroutine.
func (c *Controller) OnFeaturesLoaded(fn func(*Controller)) {
	c.mu.Lock()
	c.loadedHandlers = append(c.loadedHandlers, fn)
	c.mu.Unlock()
}

// Load queries the feature service and replaces the owned shape set. A failed
// query is logged and leaves the overlay empty; there is no retry.
func (c *Controller) Load(ctx context.Context) {
	fc, err := c.client.Fetch(ctx, arcgis.Query{
		URL:            c.entry.Query.URL,
		Where:          c.entry.Query.Where,
		OutFields:      c.entry.Query.OutFields,
		ReturnGeometry: c.entry.Query.ReturnGeometry,
	})
	if err != nil {
		c.log.Error("feature query failed, overlay renders empty", zap.Error(err))
		return
	}

	shapes := make([]*FeatureShape, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		shapes = append(shapes, &FeatureShape{
			Geometry:   f.Geometry,
			Properties: f.Properties,
			Anchor:     visualCenter(f.Geometry),
		})
	}

	c.mu.Lock()
	c.shapes = shapes
	c.loaded = true
	handlers := append([]func(*Controller){}, c.loadedHandlers...)
	c.mu.Unlock()

	c.log.Info("features loaded", zap.Int("count", len(shapes)))
	for _, fn := range handlers {
		fn(c)
	}
}

// Loaded reports whether a feature set has been installed.
func (c *Controller) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// SetOverrides installs the label override table. Safe to call before or
// after Load; whichever completes second triggers the label refresh.
func (c *Controller) SetOverrides(t labels.Table) {
	c.mu.Lock()
	c.overrides = t
	c.mu.Unlock()
}

// RefreshLabels recomputes every shape's label for the given zoom and returns
// the resulting pins. A shape's label is visible iff the zoom is at or above
// the rule's minimum and its attribute value is not suppressed.
func (c *Controller) RefreshLabels(zoom float64) []LabelPin {
	c.mu.Lock()
	defer c.mu.Unlock()

	rule := c.entry.Label
	pins := make([]LabelPin, 0, len(c.shapes))
	for _, s := range c.shapes {
		s.labelText = ""
		s.labelVisible = false

		if rule != nil && zoomVisible(rule, zoom) && !suppressed(rule, c.attrValue(s)) {
			if text := c.resolveText(s); text != "" {
				s.labelText = text
				s.labelVisible = true
			}
		}
		pins = append(pins, LabelPin{Anchor: s.Anchor, Text: s.labelText, Visible: s.labelVisible})
	}
	return pins
}

// attrValue returns the shape's value for the label rule property.
func (c *Controller) attrValue(s *FeatureShape) string {
	rule := c.entry.Label
	if rule == nil || rule.Property == "" {
		return ""
	}
	if v, ok := s.Properties[rule.Property]; ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return ""
}

// resolveText applies the label precedence: override table (when the entry
// opts in) > attribute value > fixed rule text > overlay display name.
func (c *Controller) resolveText(s *FeatureShape) string {
	rule := c.entry.Label
	value := c.attrValue(s)

	if c.entry.UseOverrides && value != "" {
		if override, ok := c.overrides.Lookup(value); ok {
			return override
		}
	}
	if value != "" {
		return value
	}
	if rule != nil && rule.Text != "" {
		return rule.Text
	}
	return c.entry.Name
}

func zoomVisible(rule *config.LabelRule, zoom float64) bool {
	return rule.MinZoom == 0 || zoom >= rule.MinZoom
}

func suppressed(rule *config.LabelRule, value string) bool {
	v := strings.ToUpper(strings.TrimSpace(value))
	for _, s := range rule.Suppress {
		if strings.ToUpper(strings.TrimSpace(s)) == v {
			return true
		}
	}
	return false
}

// ApplyContrastProfile swaps stroke and casing between the fixed presets for
// the named overlays. Overlays without presets are no-ops. Applying the same
// profile repeatedly is idempotent, and light restores the original values.
func (c *Controller) ApplyContrastProfile(p Profile) {
	preset, ok := PresetFor(c.entry.ID, p)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.profile = p
	c.style.Color = preset.StrokeColor
	c.style.Weight = preset.StrokeWeight
	c.style.Opacity = preset.StrokeOpacity
	if c.casing != nil {
		c.casing.Color = preset.CasingColor
		c.casing.Weight = preset.CasingWeight
		c.casing.Opacity = preset.CasingOpacity
	}
}

// Profile returns the most recently applied contrast profile.
func (c *Controller) Profile() Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.profile
}

// Style returns the current main stroke style.
func (c *Controller) Style() config.StrokeStyle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.style
}

// Casing returns the current casing style, or nil when the overlay has none.
func (c *Controller) Casing() *config.CasingStyle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.casing == nil {
		return nil
	}
	cs := *c.casing
	return &cs
}

// FitBounds returns the union bound of the loaded shapes. ok is false when
// the overlay did not request a fit, is empty, or the bound is degenerate;
// the viewport then simply does not move.
func (c *Controller) FitBounds() (orb.Bound, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.entry.FitBounds || len(c.shapes) == 0 {
		return orb.Bound{}, false
	}
	bound := c.shapes[0].Geometry.Bound()
	for _, s := range c.shapes[1:] {
		bound = bound.Union(s.Geometry.Bound())
	}
	if bound.IsEmpty() || !finiteBound(bound) {
		return orb.Bound{}, false
	}
	return bound, true
}

// FeatureCollection rebuilds a GeoJSON collection from the owned shapes.
func (c *Controller) FeatureCollection() *geojson.FeatureCollection {
	c.mu.RLock()
	defer c.mu.RUnlock()

	fc := geojson.NewFeatureCollection()
	for _, s := range c.shapes {
		f := geojson.NewFeature(s.Geometry)
		f.Properties = s.Properties
		fc.Append(f)
	}
	return fc
}

// ShapeCount returns the number of loaded shapes.
func (c *Controller) ShapeCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.shapes)
}

// visualCenter picks the label anchor: the area centroid for ring geometries,
// the bound center otherwise.
func visualCenter(g orb.Geometry) orb.Point {
	center, area := planar.CentroidArea(g)
	if area == 0 || !finitePoint(center) {
		return g.Bound().Center()
	}
	return center
}

func finitePoint(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsNaN(p[1]) &&
		!math.IsInf(p[0], 0) && !math.IsInf(p[1], 0)
}

func finiteBound(b orb.Bound) bool {
	return finitePoint(b.Min) && finitePoint(b.Max)
}
