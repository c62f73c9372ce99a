// Package viewer contains Datastar SSE handlers for the map viewer page:
// basemap switches, zoom-driven label refreshes, and the event stream.
package viewer

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sdmaps/plan-map/internal/humastar"
	"github.com/sdmaps/plan-map/internal/service"
	"github.com/sdmaps/plan-map/internal/templates"
)

// Handler serves the viewer SSE endpoints.
type Handler struct {
	humastar.Handler
	svc *service.MapService
}

// NewHandler creates the viewer SSE handler set.
func NewHandler(svc *service.MapService, renderer *templates.Renderer) *Handler {
	return &Handler{
		Handler: humastar.Handler{Renderer: renderer},
		svc:     svc,
	}
}

// RegisterRoutes registers the viewer SSE routes with Huma.
func (h *Handler) RegisterRoutes(api huma.API) {
	huma.Post(api, "/api/v1/viewer/basemap", h.Basemap, huma.OperationTags("viewer"))
	huma.Post(api, "/api/v1/viewer/zoom", h.Zoom, huma.OperationTags("viewer"))
	huma.Get(api, "/api/v1/viewer/events", h.Events, huma.OperationTags("viewer"))
}

// Basemap handles a basemap-change signal: the coordinator derives the
// contrast profile, every overlay restyles, and the imagery reference layer
// visibility syncs. Signals carry the full restyled state back to the page.
func (h *Handler) Basemap(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	basemap := signals.String("basemap")
	if basemap == "" {
		return nil, huma.Error400BadRequest("Basemap id is required")
	}

	return h.Stream(func(sse humastar.SSE) {
		state := h.svc.SetBasemap(basemap)

		sse.Signals(map[string]any{
			"basemap":    state.Basemap,
			"profile":    state.Profile,
			"imageryref": state.ImageryReferenceVisible,
			"styles":     styleSignals(state.Overlays),
		})
		sse.Patch(h.renderLegend(state.Overlays), "#overlay-legend")
	}), nil
}

// Zoom handles a zoom-change signal by recomputing every overlay's label
// pins at the new zoom.
func (h *Handler) Zoom(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	zoom := signals.Float("zoom")
	if zoom == 0 {
		zoom = h.svc.Config().Zoom
	}

	return h.Stream(func(sse humastar.SSE) {
		sse.Signals(map[string]any{
			"zoom":   zoom,
			"labels": labelSignals(h.svc.AllLabelPins(zoom)),
		})
	}), nil
}

// Events streams overlay load / restyle notifications so the page can refresh
// the legend and re-request labels as data arrives.
func (h *Handler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := humastar.NewSSE(humaCtx)
			ch := h.svc.Bus().Subscribe()
			defer h.svc.Bus().Unsubscribe(ch)

			for {
				select {
				case <-ctx.Done():
					return
				case ev := <-ch:
					sse.Patch(h.renderLegend(h.svc.OverlayInfos()), "#overlay-legend")
					sse.DispatchCustomEvent("map-changed", map[string]any{
						"resource": ev.Resource,
						"action":   ev.Action,
						"id":       ev.ID,
					})
				}
			}
		},
	}, nil
}

// styleSignals flattens overlay styles into the signal shape the page's
// Leaflet glue applies.
func styleSignals(overlays []service.OverlayInfo) map[string]any {
	out := make(map[string]any, len(overlays))
	for _, o := range overlays {
		entry := map[string]any{
			"color":       o.Style.Color,
			"weight":      o.Style.Weight,
			"opacity":     o.Style.Opacity,
			"fillColor":   o.Style.FillColor,
			"fillOpacity": o.Style.FillOpacity,
		}
		if o.Casing != nil {
			entry["casing"] = map[string]any{
				"color":   o.Casing.Color,
				"weight":  o.Casing.Weight,
				"opacity": o.Casing.Opacity,
			}
		}
		out[o.ID] = entry
	}
	return out
}

// labelSignals converts pin state to the signal shape, dropping hidden pins.
func labelSignals(pins map[string][]service.LabelPinInfo) map[string]any {
	out := make(map[string]any, len(pins))
	for id, list := range pins {
		visible := make([]map[string]any, 0, len(list))
		for _, p := range list {
			if !p.Visible {
				continue
			}
			visible = append(visible, map[string]any{
				"lat": p.Lat, "lng": p.Lng, "text": p.Text,
			})
		}
		out[id] = visible
	}
	return out
}

func (h *Handler) renderLegend(overlays []service.OverlayInfo) string {
	items := make([]any, 0, len(overlays))
	for _, o := range overlays {
		items = append(items, o)
	}
	return h.RenderList("legend-row", items, "No overlays", "No overlays are configured")
}
