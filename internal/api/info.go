package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

// InfoHandler reports service metadata and which optional pieces are up.
type InfoHandler struct {
	dataDir string
	cacheOK bool
}

func NewInfoHandler(dataDir string, cacheOK bool) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, cacheOK: cacheOK}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	DataDir  string   `json:"data_dir" doc:"Data directory path"`
	Cache    bool     `json:"cache" doc:"Whether the attribute cache is available"`
	Features []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	features := []string{"overlays", "labels", "contrast", "mvt"}
	if h.cacheOK {
		features = append(features, "duckdb")
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "plan-map",
		Version:  "1.0.0",
		DataDir:  h.dataDir,
		Cache:    h.cacheOK,
		Features: features,
	}}, nil
}
