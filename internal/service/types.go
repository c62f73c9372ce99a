// Package service composes the map: configuration, overlay controllers, the
// label override table, the contrast coordinator, and the attribute cache.
package service

// BasemapInfo describes one selectable basemap.
type BasemapInfo struct {
	ID      string  `json:"id" doc:"Basemap identifier" example:"positron"`
	Name    string  `json:"name" doc:"Display name" example:"Light (Positron)"`
	URL     string  `json:"url" doc:"Tile URL template"`
	MaxZoom int     `json:"maxZoom,omitempty" doc:"Maximum tile zoom"`
	Opacity float64 `json:"opacity,omitempty" doc:"Layer opacity (0-1)"`
	Imagery bool    `json:"imagery,omitempty" doc:"Imagery-like basemap (drives the contrast profile)"`
	Active  bool    `json:"active" doc:"Whether this basemap is currently selected"`
}

// ReferenceInfo describes the imagery reference layer.
type ReferenceInfo struct {
	URL     string  `json:"url" doc:"Tile URL template"`
	Pane    string  `json:"pane,omitempty" doc:"Map pane / z-order"`
	Opacity float64 `json:"opacity,omitempty" doc:"Layer opacity (0-1)"`
	MaxZoom int     `json:"maxZoom,omitempty" doc:"Maximum tile zoom"`
	Visible bool    `json:"visible" doc:"Whether the layer is on the map right now"`
}

// StyleInfo is the current main stroke + fill of an overlay.
type StyleInfo struct {
	Color       string  `json:"color" doc:"Stroke color (CSS)" example:"#b91c1c"`
	Weight      float64 `json:"weight" doc:"Stroke width in pixels"`
	Opacity     float64 `json:"opacity" doc:"Stroke opacity (0-1)"`
	FillColor   string  `json:"fillColor,omitempty" doc:"Fill color (CSS)"`
	FillOpacity float64 `json:"fillOpacity,omitempty" doc:"Fill opacity (0-1)"`
}

// CasingInfo is the current underlay stroke of an overlay.
type CasingInfo struct {
	Color   string  `json:"color" doc:"Casing color (CSS)"`
	Weight  float64 `json:"weight" doc:"Casing width in pixels"`
	Opacity float64 `json:"opacity" doc:"Casing opacity (0-1)"`
}

// BoundsInfo is a lat/lng bounding box with the fixed fit padding.
type BoundsInfo struct {
	MinLat  float64 `json:"minLat"`
	MinLng  float64 `json:"minLng"`
	MaxLat  float64 `json:"maxLat"`
	MaxLng  float64 `json:"maxLng"`
	Padding int     `json:"padding" doc:"Fit padding in pixels"`
}

// OverlayInfo is the rendered state of one overlay.
type OverlayInfo struct {
	ID           string      `json:"id" doc:"Overlay identifier" example:"north-park"`
	Name         string      `json:"name" doc:"Display name" example:"Greater North Park"`
	Attribution  string      `json:"attribution,omitempty" doc:"Credit line"`
	Loaded       bool        `json:"loaded" doc:"Whether features have loaded"`
	FeatureCount int         `json:"featureCount" doc:"Number of loaded shapes"`
	Profile      string      `json:"profile" doc:"Active contrast profile" enum:"light,imagery"`
	Style        StyleInfo   `json:"style" doc:"Current main stroke style"`
	Casing       *CasingInfo `json:"casing,omitempty" doc:"Current casing style, if any"`
	FitBounds    *BoundsInfo `json:"fitBounds,omitempty" doc:"Viewport fit target, if requested and computable"`
}

// LabelPinInfo is one label annotation anchored at a shape's visual center.
type LabelPinInfo struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Text    string  `json:"text" doc:"Resolved display text; newline-separated lines"`
	Visible bool    `json:"visible"`
}

// MapInfo is the full viewer bootstrap payload.
type MapInfo struct {
	CenterLat        float64        `json:"centerLat"`
	CenterLng        float64        `json:"centerLng"`
	Zoom             float64        `json:"zoom"`
	Attribution      string         `json:"attribution"`
	Basemaps         []BasemapInfo  `json:"basemaps"`
	ImageryReference *ReferenceInfo `json:"imageryReference,omitempty"`
	Overlays         []OverlayInfo  `json:"overlays"`
}

// ProfileState is the result of a basemap change.
type ProfileState struct {
	Basemap                 string        `json:"basemap" doc:"Active basemap id"`
	Profile                 string        `json:"profile" doc:"Derived contrast profile" enum:"light,imagery"`
	ImageryReferenceVisible bool          `json:"imageryReferenceVisible"`
	Overlays                []OverlayInfo `json:"overlays" doc:"Restyled overlays"`
}
