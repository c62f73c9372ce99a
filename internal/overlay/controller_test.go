package overlay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sdmaps/plan-map/internal/arcgis"
	"github.com/sdmaps/plan-map/internal/config"
	"github.com/sdmaps/plan-map/internal/labels"
)

func planArea(name string, ring orb.Ring) *geojson.Feature {
	f := geojson.NewFeature(orb.Polygon{ring})
	if name != "" {
		f.Properties["cpname"] = name
	}
	return f
}

func squareRing(minLng, minLat, size float64) orb.Ring {
	return orb.Ring{
		{minLng, minLat},
		{minLng + size, minLat},
		{minLng + size, minLat + size},
		{minLng, minLat + size},
		{minLng, minLat},
	}
}

// loadController serves the collection from a stub feature service and runs a
// full load against it.
func loadController(t *testing.T, entry config.OverlayEntry, fc *geojson.FeatureCollection) *Controller {
	t.Helper()

	payload, err := json.Marshal(fc)
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	t.Cleanup(srv.Close)

	entry.Query.URL = srv.URL
	c := NewController(entry, arcgis.New(arcgis.WithHTTPClient(srv.Client())))
	c.Load(context.Background())
	return c
}

func TestLoadReplacesShapes(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(planArea("GREATER NORTH PARK", squareRing(-117.14, 32.73, 0.02)))
	fc.Append(planArea("UPTOWN", squareRing(-117.18, 32.73, 0.02)))

	c := loadController(t, config.OverlayEntry{ID: "plan-areas", Name: "Plan areas"}, fc)

	assert.True(t, c.Loaded())
	assert.Equal(t, 2, c.ShapeCount())
	assert.Len(t, c.FeatureCollection().Features, 2)
}

func TestLoadFailureLeavesOverlayEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewController(config.OverlayEntry{
		ID:    "plan-areas",
		Query: config.FeatureQuery{URL: srv.URL},
	}, arcgis.New(arcgis.WithHTTPClient(srv.Client())))
	c.Load(context.Background())

	assert.False(t, c.Loaded())
	assert.Equal(t, 0, c.ShapeCount())
	assert.Empty(t, c.RefreshLabels(14))
	_, ok := c.FitBounds()
	assert.False(t, ok)
}

func TestOnFeaturesLoaded(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(planArea("NORTH PARK", squareRing(-117.14, 32.73, 0.02)))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := json.Marshal(fc)
		w.Write(data)
	}))
	defer srv.Close()

	c := NewController(config.OverlayEntry{
		ID:    "north-park",
		Query: config.FeatureQuery{URL: srv.URL},
	}, arcgis.New(arcgis.WithHTTPClient(srv.Client())))

	calls := 0
	c.OnFeaturesLoaded(func(got *Controller) {
		calls++
		assert.Same(t, c, got)
		assert.Equal(t, 1, got.ShapeCount())
	})
	c.OnFeaturesLoaded(func(*Controller) { calls++ })
	c.Load(context.Background())
	assert.Equal(t, 2, calls)

	// every registered handler fires again on reload
	c.Load(context.Background())
	assert.Equal(t, 4, calls)
}

func TestRefreshLabelsZoomGate(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(planArea("UPTOWN", squareRing(-117.18, 32.73, 0.02)))

	c := loadController(t, config.OverlayEntry{
		ID:    "plan-areas",
		Name:  "Plan areas",
		Label: &config.LabelRule{Property: "cpname", MinZoom: 12},
	}, fc)

	for zoom, want := range map[float64]bool{10: false, 11.9: false, 12: true, 13: true, 18: true} {
		pins := c.RefreshLabels(zoom)
		require.Len(t, pins, 1)
		assert.Equal(t, want, pins[0].Visible, "zoom %v", zoom)
	}
}

func TestRefreshLabelsNoMinZoom(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(planArea("UPTOWN", squareRing(-117.18, 32.73, 0.02)))

	c := loadController(t, config.OverlayEntry{
		ID:    "plan-areas",
		Label: &config.LabelRule{Property: "cpname"},
	}, fc)

	pins := c.RefreshLabels(3)
	require.Len(t, pins, 1)
	assert.True(t, pins[0].Visible)
	assert.Equal(t, "UPTOWN", pins[0].Text)
}

func TestRefreshLabelsSuppression(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(planArea("GREATER NORTH PARK", squareRing(-117.14, 32.73, 0.02)))
	fc.Append(planArea("uptown ", squareRing(-117.18, 32.73, 0.02)))

	c := loadController(t, config.OverlayEntry{
		ID:    "plan-areas",
		Label: &config.LabelRule{Property: "cpname", MinZoom: 12, Suppress: []string{"greater north park", "UPTOWN"}},
	}, fc)

	pins := c.RefreshLabels(14)
	require.Len(t, pins, 2)
	// suppression compares uppercased, trimmed values
	assert.False(t, pins[0].Visible)
	assert.False(t, pins[1].Visible)
}

func TestLabelPrecedence(t *testing.T) {
	overrides := labels.Parse(strings.NewReader("KEY,LABEL\nGREATER NORTH PARK,Greater|North Park\n"), zap.NewNop())

	t.Run("override wins over attribute", func(t *testing.T) {
		fc := geojson.NewFeatureCollection()
		fc.Append(planArea("GREATER NORTH PARK", squareRing(-117.14, 32.73, 0.02)))

		c := loadController(t, config.OverlayEntry{
			ID:           "plan-areas",
			UseOverrides: true,
			Label:        &config.LabelRule{Property: "cpname"},
		}, fc)
		c.SetOverrides(overrides)

		pins := c.RefreshLabels(14)
		require.Len(t, pins, 1)
		assert.True(t, pins[0].Visible)
		assert.Equal(t, "Greater\nNorth Park", pins[0].Text)
	})

	t.Run("attribute when no override entry", func(t *testing.T) {
		fc := geojson.NewFeatureCollection()
		fc.Append(planArea("UPTOWN", squareRing(-117.18, 32.73, 0.02)))

		c := loadController(t, config.OverlayEntry{
			ID:           "plan-areas",
			UseOverrides: true,
			Label:        &config.LabelRule{Property: "cpname"},
		}, fc)
		c.SetOverrides(overrides)

		pins := c.RefreshLabels(14)
		require.Len(t, pins, 1)
		assert.Equal(t, "UPTOWN", pins[0].Text)
	})

	t.Run("overrides ignored without opt-in", func(t *testing.T) {
		fc := geojson.NewFeatureCollection()
		fc.Append(planArea("GREATER NORTH PARK", squareRing(-117.14, 32.73, 0.02)))

		c := loadController(t, config.OverlayEntry{
			ID:    "north-park",
			Label: &config.LabelRule{Property: "cpname"},
		}, fc)
		c.SetOverrides(overrides)

		pins := c.RefreshLabels(14)
		require.Len(t, pins, 1)
		assert.Equal(t, "GREATER NORTH PARK", pins[0].Text)
	})

	t.Run("fixed text when attribute missing", func(t *testing.T) {
		fc := geojson.NewFeatureCollection()
		fc.Append(planArea("", squareRing(-117.14, 32.73, 0.02)))

		c := loadController(t, config.OverlayEntry{
			ID:    "north-park",
			Name:  "North Park",
			Label: &config.LabelRule{Property: "cpname", Text: "North Park Boundary"},
		}, fc)

		pins := c.RefreshLabels(14)
		require.Len(t, pins, 1)
		assert.Equal(t, "North Park Boundary", pins[0].Text)
	})

	t.Run("overlay name as last resort", func(t *testing.T) {
		fc := geojson.NewFeatureCollection()
		fc.Append(planArea("", squareRing(-117.14, 32.73, 0.02)))

		c := loadController(t, config.OverlayEntry{
			ID:    "north-park",
			Name:  "North Park",
			Label: &config.LabelRule{Property: "cpname"},
		}, fc)

		pins := c.RefreshLabels(14)
		require.Len(t, pins, 1)
		assert.Equal(t, "North Park", pins[0].Text)
	})
}

func TestSetOverridesAfterLoad(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(planArea("GREATER NORTH PARK", squareRing(-117.14, 32.73, 0.02)))

	c := loadController(t, config.OverlayEntry{
		ID:           "plan-areas",
		UseOverrides: true,
		Label:        &config.LabelRule{Property: "cpname"},
	}, fc)

	// before the table arrives the attribute value renders as-is
	pins := c.RefreshLabels(14)
	require.Len(t, pins, 1)
	assert.Equal(t, "GREATER NORTH PARK", pins[0].Text)

	c.SetOverrides(labels.Parse(strings.NewReader("KEY,LABEL\nGREATER NORTH PARK,Greater|North Park\n"), zap.NewNop()))
	pins = c.RefreshLabels(14)
	require.Len(t, pins, 1)
	assert.Equal(t, "Greater\nNorth Park", pins[0].Text)
}

func TestApplyContrastProfileRoundTrip(t *testing.T) {
	light, ok := PresetFor("north-park", ProfileLight)
	require.True(t, ok)

	entry := config.OverlayEntry{
		ID: "north-park",
		Style: config.StrokeStyle{
			Color: light.StrokeColor, Weight: light.StrokeWeight, Opacity: light.StrokeOpacity,
			FillColor: "#b91c1c", FillOpacity: 0.05,
		},
		Casing: &config.CasingStyle{Color: light.CasingColor, Weight: light.CasingWeight, Opacity: light.CasingOpacity},
	}
	c := NewController(entry, nil)
	origStyle := c.Style()
	origCasing := c.Casing()

	c.ApplyContrastProfile(ProfileImagery)
	assert.Equal(t, ProfileImagery, c.Profile())
	assert.Equal(t, "#fbbf24", c.Style().Color)
	assert.Equal(t, "#1f2937", c.Casing().Color)
	// fill channels never change with the profile
	assert.Equal(t, "#b91c1c", c.Style().FillColor)
	assert.Equal(t, 0.05, c.Style().FillOpacity)

	// reapplying is idempotent
	c.ApplyContrastProfile(ProfileImagery)
	assert.Equal(t, "#fbbf24", c.Style().Color)

	// switching back restores the original values exactly
	c.ApplyContrastProfile(ProfileLight)
	assert.Equal(t, origStyle, c.Style())
	assert.Equal(t, origCasing, c.Casing())
}

func TestApplyContrastProfileUnknownOverlay(t *testing.T) {
	entry := config.OverlayEntry{
		ID:    "bus-routes",
		Style: config.StrokeStyle{Color: "#0ea5e9", Weight: 2, Opacity: 1},
	}
	c := NewController(entry, nil)

	c.ApplyContrastProfile(ProfileImagery)
	assert.Equal(t, entry.Style, c.Style())
	// profile stays at its initial value for overlays with no presets
	assert.Equal(t, ProfileLight, c.Profile())
}

func TestFitBounds(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(planArea("A", squareRing(-117.14, 32.73, 0.02)))
	fc.Append(planArea("B", squareRing(-117.10, 32.76, 0.02)))

	c := loadController(t, config.OverlayEntry{ID: "north-park", FitBounds: true}, fc)

	bound, ok := c.FitBounds()
	require.True(t, ok)
	assert.InDelta(t, -117.14, bound.Min[0], 1e-9)
	assert.InDelta(t, 32.73, bound.Min[1], 1e-9)
	assert.InDelta(t, -117.08, bound.Max[0], 1e-9)
	assert.InDelta(t, 32.78, bound.Max[1], 1e-9)
}

func TestFitBoundsNotRequested(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(planArea("A", squareRing(-117.14, 32.73, 0.02)))

	c := loadController(t, config.OverlayEntry{ID: "plan-areas"}, fc)
	_, ok := c.FitBounds()
	assert.False(t, ok)
}

func TestVisualCenter(t *testing.T) {
	// ring geometries anchor at the area centroid
	center := visualCenter(orb.Polygon{squareRing(-117.14, 32.73, 0.02)})
	assert.InDelta(t, -117.13, center[0], 1e-9)
	assert.InDelta(t, 32.74, center[1], 1e-9)

	// zero-area geometries fall back to the bound center
	center = visualCenter(orb.Point{-117.13, 32.74})
	assert.Equal(t, orb.Point{-117.13, 32.74}, center)
}
