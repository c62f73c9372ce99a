// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"encoding/json"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sdmaps/plan-map/internal/service"
)

// IDInput selects an overlay by id.
type IDInput struct {
	ID string `path:"id" doc:"Overlay ID" example:"north-park"`
}

// HealthBody is the health check response.
type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// MapOutput wraps the viewer bootstrap payload.
type MapOutput struct {
	Body service.MapInfo
}

// OverlaysOutput lists overlays in configuration order.
type OverlaysOutput struct {
	Body []service.OverlayInfo
}

// OverlayOutput wraps one overlay's state.
type OverlayOutput struct {
	Body service.OverlayInfo
}

// FeaturesOutput streams an overlay's GeoJSON feature collection.
type FeaturesOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// LabelsInput selects an overlay and the zoom to resolve labels at.
type LabelsInput struct {
	IDInput
	Zoom float64 `query:"zoom" doc:"Zoom level to resolve label visibility at" example:"13"`
}

// LabelsOutput lists resolved label pins.
type LabelsOutput struct {
	Body []service.LabelPinInfo
}

// ProfileOutput wraps the basemap/contrast state.
type ProfileOutput struct {
	Body service.ProfileState
}

// BasemapInput selects the active basemap.
type BasemapInput struct {
	Body struct {
		Basemap string `json:"basemap" required:"true" doc:"Basemap id to activate" example:"imagery"`
	}
}

// APIHandler holds the REST API handlers.
type APIHandler struct {
	svc *service.MapService
}

// NewAPIHandler creates the handler set over the map service.
func NewAPIHandler(svc *service.MapService) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterRoutes registers every REST route with Huma.
func (h *APIHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))

	huma.Get(api, "/api/v1/map", h.GetMap, huma.OperationTags("map"))
	huma.Get(api, "/api/v1/profile", h.GetProfile, huma.OperationTags("map"))
	huma.Put(api, "/api/v1/basemap", h.PutBasemap, huma.OperationTags("map"))

	huma.Get(api, "/api/v1/overlays", h.GetOverlays, huma.OperationTags("overlays"))
	huma.Get(api, "/api/v1/overlays/{id}", h.GetOverlay, huma.OperationTags("overlays"))
	huma.Get(api, "/api/v1/overlays/{id}/features", h.GetFeatures, huma.OperationTags("overlays"))
	huma.Get(api, "/api/v1/overlays/{id}/labels", h.GetLabels, huma.OperationTags("overlays"))
}

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func (h *APIHandler) GetMap(ctx context.Context, input *struct{}) (*MapOutput, error) {
	return &MapOutput{Body: h.svc.MapInfo()}, nil
}

func (h *APIHandler) GetProfile(ctx context.Context, input *struct{}) (*ProfileOutput, error) {
	return &ProfileOutput{Body: h.svc.ProfileState()}, nil
}

// PutBasemap records a basemap change and returns the restyled state. The
// transition is idempotent, so repeated PUTs are safe.
func (h *APIHandler) PutBasemap(ctx context.Context, input *BasemapInput) (*ProfileOutput, error) {
	if _, ok := h.svc.Config().BasemapByID(input.Body.Basemap); !ok {
		return nil, huma.Error404NotFound("basemap not found")
	}
	return &ProfileOutput{Body: h.svc.SetBasemap(input.Body.Basemap)}, nil
}

func (h *APIHandler) GetOverlays(ctx context.Context, input *struct{}) (*OverlaysOutput, error) {
	return &OverlaysOutput{Body: h.svc.OverlayInfos()}, nil
}

func (h *APIHandler) GetOverlay(ctx context.Context, input *IDInput) (*OverlayOutput, error) {
	info, ok := h.svc.OverlayInfo(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("overlay not found")
	}
	return &OverlayOutput{Body: info}, nil
}

func (h *APIHandler) GetFeatures(ctx context.Context, input *IDInput) (*FeaturesOutput, error) {
	fc, ok := h.svc.Features(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("overlay not found")
	}
	data, err := json.Marshal(fc)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to encode features", err)
	}
	return &FeaturesOutput{ContentType: "application/geo+json", Body: data}, nil
}

func (h *APIHandler) GetLabels(ctx context.Context, input *LabelsInput) (*LabelsOutput, error) {
	zoom := input.Zoom
	if zoom == 0 {
		zoom = h.svc.Config().Zoom
	}
	pins, ok := h.svc.LabelPins(input.ID, zoom)
	if !ok {
		return nil, huma.Error404NotFound("overlay not found")
	}
	return &LabelsOutput{Body: pins}, nil
}
