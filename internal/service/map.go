package service

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sdmaps/plan-map/internal/arcgis"
	"github.com/sdmaps/plan-map/internal/config"
	"github.com/sdmaps/plan-map/internal/db"
	"github.com/sdmaps/plan-map/internal/labels"
	"github.com/sdmaps/plan-map/internal/overlay"
)

// ErrCacheUnavailable is returned when the attribute cache has no database.
var ErrCacheUnavailable = eris.New("attribute cache unavailable")

// MapService owns the overlay registry, the contrast coordinator, and the
// label override table for one map session.
type MapService struct {
	cfg         *config.MapConfig
	client      *arcgis.Client
	registry    *overlay.Registry
	coordinator *overlay.Coordinator
	conn        *sql.DB // optional attribute cache
	bus         *EventBus
	log         *zap.Logger
}

// NewMapService builds the registry from the configured overlays and wires
// the coordinator over it. conn may be nil; the attribute cache then stays
// cold and the query endpoints report unavailable.
func NewMapService(cfg *config.MapConfig, client *arcgis.Client, conn *sql.DB) *MapService {
	s := &MapService{
		cfg:      cfg,
		client:   client,
		conn:     conn,
		registry: overlay.NewRegistry(),
		bus:      NewEventBus(),
		log:      zap.L().With(zap.String("component", "map")),
	}

	for _, entry := range cfg.Overlays {
		c := overlay.NewController(entry, client)
		c.OnFeaturesLoaded(s.onFeaturesLoaded)
		s.registry.Add(c)
	}
	s.coordinator = overlay.NewCoordinator(s.registry, cfg)
	return s
}

// Load fetches the label override table and every overlay's features
// concurrently. Individual failures degrade locally; Load itself only fails
// on context cancellation.
func (s *MapService) Load(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		table := labels.Load(ctx, http.DefaultClient, s.cfg.LabelOverrides)
		for _, c := range s.registry.All() {
			c.SetOverrides(table)
		}
		return ctx.Err()
	})

	for _, c := range s.registry.All() {
		c := c
		g.Go(func() error {
			c.Load(ctx)
			return ctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	// Label text is final only once both overrides and features are in; the
	// per-request pin computation reads the finished state.
	for _, c := range s.registry.All() {
		c.RefreshLabels(s.cfg.Zoom)
	}
	return nil
}

// onFeaturesLoaded persists attribute rows to the cache and announces the
// load. Cache failures are logged, never surfaced.
func (s *MapService) onFeaturesLoaded(c *overlay.Controller) {
	if s.conn != nil {
		nameProp := ""
		if rule := c.Entry().Label; rule != nil {
			nameProp = rule.Property
		}
		if err := db.ReplaceFeatures(context.Background(), s.conn, c.ID(), nameProp, c.FeatureCollection()); err != nil {
			s.log.Warn("attribute cache update failed", zap.String("overlay", c.ID()), zap.Error(err))
		}
	}
	s.bus.Publish(Event{Resource: "overlay", Action: "loaded", ID: c.ID()})
}

// Bus returns the event bus for SSE subscribers.
func (s *MapService) Bus() *EventBus { return s.bus }

// Config returns the immutable map configuration.
func (s *MapService) Config() *config.MapConfig { return s.cfg }

// Registry exposes the overlay registry (read-only after setup).
func (s *MapService) Registry() *overlay.Registry { return s.registry }

// SetBasemap drives the contrast coordinator and returns the resulting
// profile state. Safe to call repeatedly with the same basemap.
func (s *MapService) SetBasemap(id string) ProfileState {
	profile := s.coordinator.SetActiveBasemap(id)
	s.bus.Publish(Event{Resource: "basemap", Action: "restyled", ID: s.coordinator.ActiveBasemap().ID})
	return ProfileState{
		Basemap:                 s.coordinator.ActiveBasemap().ID,
		Profile:                 string(profile),
		ImageryReferenceVisible: s.coordinator.ImageryReferenceVisible(),
		Overlays:                s.OverlayInfos(),
	}
}

// ProfileState returns the current basemap/profile state without changing it.
func (s *MapService) ProfileState() ProfileState {
	return ProfileState{
		Basemap:                 s.coordinator.ActiveBasemap().ID,
		Profile:                 string(s.coordinator.Profile()),
		ImageryReferenceVisible: s.coordinator.ImageryReferenceVisible(),
		Overlays:                s.OverlayInfos(),
	}
}

// MapInfo returns the viewer bootstrap payload.
func (s *MapService) MapInfo() MapInfo {
	info := MapInfo{
		CenterLat:   s.cfg.Center.Lat,
		CenterLng:   s.cfg.Center.Lng,
		Zoom:        s.cfg.Zoom,
		Attribution: s.cfg.Attribution,
		Overlays:    s.OverlayInfos(),
	}
	active := s.coordinator.ActiveBasemap()
	for _, b := range s.cfg.Basemaps {
		info.Basemaps = append(info.Basemaps, BasemapInfo{
			ID: b.ID, Name: b.Name, URL: b.URL,
			MaxZoom: b.MaxZoom, Opacity: b.Opacity, Imagery: b.Imagery,
			Active: b.ID == active.ID,
		})
	}
	if ref := s.cfg.ImageryReference; ref != nil {
		info.ImageryReference = &ReferenceInfo{
			URL: ref.URL, Pane: ref.Pane, Opacity: ref.Opacity, MaxZoom: ref.MaxZoom,
			Visible: s.coordinator.ImageryReferenceVisible(),
		}
	}
	return info
}

// OverlayInfos returns the rendered state of every overlay in config order.
func (s *MapService) OverlayInfos() []OverlayInfo {
	out := make([]OverlayInfo, 0, len(s.registry.All()))
	for _, c := range s.registry.All() {
		out = append(out, s.overlayInfo(c))
	}
	return out
}

// OverlayInfo returns one overlay's rendered state.
func (s *MapService) OverlayInfo(id string) (OverlayInfo, bool) {
	c, ok := s.registry.Get(id)
	if !ok {
		return OverlayInfo{}, false
	}
	return s.overlayInfo(c), true
}

func (s *MapService) overlayInfo(c *overlay.Controller) OverlayInfo {
	entry := c.Entry()
	style := c.Style()
	info := OverlayInfo{
		ID:           c.ID(),
		Name:         c.Name(),
		Attribution:  entry.Attribution,
		Loaded:       c.Loaded(),
		FeatureCount: c.ShapeCount(),
		Profile:      string(c.Profile()),
		Style: StyleInfo{
			Color: style.Color, Weight: style.Weight, Opacity: style.Opacity,
			FillColor: style.FillColor, FillOpacity: style.FillOpacity,
		},
	}
	if cs := c.Casing(); cs != nil {
		info.Casing = &CasingInfo{Color: cs.Color, Weight: cs.Weight, Opacity: cs.Opacity}
	}
	if bound, ok := c.FitBounds(); ok {
		info.FitBounds = &BoundsInfo{
			MinLat: bound.Min[1], MinLng: bound.Min[0],
			MaxLat: bound.Max[1], MaxLng: bound.Max[0],
			Padding: overlay.FitBoundsPadding,
		}
	}
	return info
}

// Features returns an overlay's GeoJSON feature collection.
func (s *MapService) Features(id string) (*geojson.FeatureCollection, bool) {
	c, ok := s.registry.Get(id)
	if !ok {
		return nil, false
	}
	return c.FeatureCollection(), true
}

// LabelPins recomputes one overlay's label pins for the given zoom.
func (s *MapService) LabelPins(id string, zoom float64) ([]LabelPinInfo, bool) {
	c, ok := s.registry.Get(id)
	if !ok {
		return nil, false
	}
	return pinInfos(c.RefreshLabels(zoom)), true
}

// AllLabelPins recomputes label pins for every overlay at the given zoom.
func (s *MapService) AllLabelPins(zoom float64) map[string][]LabelPinInfo {
	out := make(map[string][]LabelPinInfo, len(s.registry.All()))
	for _, c := range s.registry.All() {
		out[c.ID()] = pinInfos(c.RefreshLabels(zoom))
	}
	return out
}

func pinInfos(pins []overlay.LabelPin) []LabelPinInfo {
	out := make([]LabelPinInfo, 0, len(pins))
	for _, p := range pins {
		out = append(out, LabelPinInfo{
			Lat: p.Anchor[1], Lng: p.Anchor[0], Text: p.Text, Visible: p.Visible,
		})
	}
	return out
}

// Attributes reads cached attribute rows for one overlay.
func (s *MapService) Attributes(ctx context.Context, id string) ([]db.FeatureRow, error) {
	if s.conn == nil {
		return nil, ErrCacheUnavailable
	}
	return db.Attributes(ctx, s.conn, id)
}

// DB exposes the cache connection for the ad-hoc query endpoint. May be nil.
func (s *MapService) DB() *sql.DB { return s.conn }
