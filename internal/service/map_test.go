package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdmaps/plan-map/internal/arcgis"
	"github.com/sdmaps/plan-map/internal/config"
	"github.com/sdmaps/plan-map/internal/overlay"
)

func polygonFeature(name string, minLng, minLat, size float64) *geojson.Feature {
	f := geojson.NewFeature(orb.Polygon{{
		{minLng, minLat},
		{minLng + size, minLat},
		{minLng + size, minLat + size},
		{minLng, minLat + size},
		{minLng, minLat},
	}})
	f.Properties["cpname"] = name
	return f
}

// featureService answers the context query with every plan area and the
// boundary query with the single North Park polygon, matching on the where
// filter the way a real feature service would.
func featureService(t *testing.T) *httptest.Server {
	t.Helper()

	all := geojson.NewFeatureCollection()
	all.Append(polygonFeature("GREATER NORTH PARK", -117.14, 32.73, 0.03))
	all.Append(polygonFeature("UPTOWN", -117.18, 32.73, 0.03))

	boundary := geojson.NewFeatureCollection()
	boundary.Append(polygonFeature("NORTH PARK", -117.14, 32.73, 0.03))

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fc := all
		if strings.Contains(r.URL.Query().Get("where"), "NORTH PARK") {
			fc = boundary
		}
		data, err := json.Marshal(fc)
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/geo+json")
		w.Write(data)
	}))
}

func serviceFixture(t *testing.T) *MapService {
	t.Helper()

	srv := featureService(t)
	t.Cleanup(srv.Close)

	overridePath := filepath.Join(t.TempDir(), "overrides.csv")
	require.NoError(t, os.WriteFile(overridePath,
		[]byte("KEY,LABEL\nGREATER NORTH PARK,Greater|North Park\n"), 0644))

	cfg := &config.MapConfig{
		Center:      config.LatLng{Lat: 32.7450, Lng: -117.1295},
		Zoom:        13,
		Attribution: "City of San Diego",
		Basemaps: []config.Basemap{
			{ID: "positron", Name: "Light", URL: "https://tiles.example/light/{z}/{x}/{y}.png", Default: true},
			{ID: "imagery", Name: "Imagery", URL: "https://tiles.example/imagery/{z}/{x}/{y}", Imagery: true},
		},
		ImageryReference: &config.ReferenceLayer{URL: "https://tiles.example/ref/{z}/{x}/{y}"},
		LabelOverrides:   overridePath,
		Overlays: []config.OverlayEntry{
			{
				ID:           "plan-areas",
				Name:         "Community plan areas",
				Query:        config.FeatureQuery{URL: srv.URL, Where: "1=1", ReturnGeometry: true},
				Style:        config.StrokeStyle{Color: "#6b7280", Weight: 1.5, Opacity: 0.9},
				Casing:       &config.CasingStyle{Color: "#ffffff", Weight: 4, Opacity: 0.8},
				Label:        &config.LabelRule{Property: "cpname", MinZoom: 12, Suppress: []string{"GREATER NORTH PARK"}},
				UseOverrides: true,
			},
			{
				ID:        "north-park",
				Name:      "North Park",
				Query:     config.FeatureQuery{URL: srv.URL, Where: "cpname = 'NORTH PARK'", ReturnGeometry: true},
				Style:     config.StrokeStyle{Color: "#b91c1c", Weight: 3, Opacity: 1},
				Casing:    &config.CasingStyle{Color: "#ffffff", Weight: 7, Opacity: 0.9},
				Label:     &config.LabelRule{Property: "cpname", MinZoom: 12},
				FitBounds: true,
			},
		},
	}
	require.NoError(t, cfg.Validate())

	return NewMapService(cfg, arcgis.New(arcgis.WithHTTPClient(srv.Client())), nil)
}

func TestLoadEndToEnd(t *testing.T) {
	s := serviceFixture(t)
	events := s.Bus().Subscribe()
	defer s.Bus().Unsubscribe(events)

	require.NoError(t, s.Load(context.Background()))

	// one boundary shape, one visible pin carrying the attribute name
	info, ok := s.OverlayInfo("north-park")
	require.True(t, ok)
	assert.True(t, info.Loaded)
	assert.Equal(t, 1, info.FeatureCount)

	pins, ok := s.LabelPins("north-park", 13)
	require.True(t, ok)
	require.Len(t, pins, 1)
	assert.True(t, pins[0].Visible)
	assert.Equal(t, "NORTH PARK", pins[0].Text)
	assert.InDelta(t, 32.745, pins[0].Lat, 0.01)
	assert.InDelta(t, -117.125, pins[0].Lng, 0.01)

	// exactly one overlay requests a bounds fit
	fits := 0
	for _, o := range s.OverlayInfos() {
		if o.FitBounds != nil {
			fits++
			assert.Equal(t, overlay.FitBoundsPadding, o.FitBounds.Padding)
		}
	}
	assert.Equal(t, 1, fits)

	// both overlays announced their load on the bus
	loaded := map[string]bool{}
	for i := 0; i < 2; i++ {
		e := <-events
		assert.Equal(t, "overlay", e.Resource)
		assert.Equal(t, "loaded", e.Action)
		loaded[e.ID] = true
	}
	assert.True(t, loaded["plan-areas"])
	assert.True(t, loaded["north-park"])
}

func TestContextOverlayLabels(t *testing.T) {
	s := serviceFixture(t)
	require.NoError(t, s.Load(context.Background()))

	pins, ok := s.LabelPins("plan-areas", 13)
	require.True(t, ok)
	require.Len(t, pins, 2)

	byText := map[string]LabelPinInfo{}
	for _, p := range pins {
		byText[p.Text] = p
	}

	// the suppressed plan area keeps its pin but stays invisible
	require.Contains(t, byText, "")
	assert.False(t, byText[""].Visible)

	// the other area renders its attribute value (no override entry)
	require.Contains(t, byText, "UPTOWN")
	assert.True(t, byText["UPTOWN"].Visible)

	// below the minimum zoom everything hides
	pins, _ = s.LabelPins("plan-areas", 11)
	for _, p := range pins {
		assert.False(t, p.Visible)
	}
}

func TestAllLabelPins(t *testing.T) {
	s := serviceFixture(t)
	require.NoError(t, s.Load(context.Background()))

	all := s.AllLabelPins(13)
	require.Len(t, all, 2)
	assert.Len(t, all["plan-areas"], 2)
	assert.Len(t, all["north-park"], 1)
}

func TestSetBasemap(t *testing.T) {
	s := serviceFixture(t)
	require.NoError(t, s.Load(context.Background()))

	initial := s.ProfileState()
	assert.Equal(t, "positron", initial.Basemap)
	assert.Equal(t, "light", initial.Profile)
	assert.False(t, initial.ImageryReferenceVisible)

	state := s.SetBasemap("imagery")
	assert.Equal(t, "imagery", state.Basemap)
	assert.Equal(t, "imagery", state.Profile)
	assert.True(t, state.ImageryReferenceVisible)
	for _, o := range state.Overlays {
		assert.Equal(t, "imagery", o.Profile, o.ID)
	}

	// switching back restores the initial state wholesale
	state = s.SetBasemap("positron")
	assert.Equal(t, initial, state)
}

func TestSetBasemapUnknown(t *testing.T) {
	s := serviceFixture(t)
	require.NoError(t, s.Load(context.Background()))

	before := s.ProfileState()
	state := s.SetBasemap("watercolor")
	assert.Equal(t, before, state)
}

func TestUnknownOverlay(t *testing.T) {
	s := serviceFixture(t)

	_, ok := s.OverlayInfo("bikeways")
	assert.False(t, ok)
	_, ok = s.Features("bikeways")
	assert.False(t, ok)
	_, ok = s.LabelPins("bikeways", 13)
	assert.False(t, ok)
}

func TestAttributesWithoutCache(t *testing.T) {
	s := serviceFixture(t)

	_, err := s.Attributes(context.Background(), "plan-areas")
	assert.True(t, eris.Is(err, ErrCacheUnavailable))
}

func TestMapInfo(t *testing.T) {
	s := serviceFixture(t)
	require.NoError(t, s.Load(context.Background()))

	info := s.MapInfo()
	assert.Equal(t, 32.7450, info.CenterLat)
	assert.Equal(t, 13.0, info.Zoom)
	require.Len(t, info.Basemaps, 2)
	assert.True(t, info.Basemaps[0].Active)
	assert.False(t, info.Basemaps[1].Active)
	require.NotNil(t, info.ImageryReference)
	assert.False(t, info.ImageryReference.Visible)
	require.Len(t, info.Overlays, 2)
	assert.Equal(t, "plan-areas", info.Overlays[0].ID)
}
