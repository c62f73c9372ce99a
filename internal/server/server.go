// Package server wires the HTTP surface: REST API, viewer SSE, vector tiles,
// the viewer page, and static files.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"go.uber.org/zap"

	"github.com/sdmaps/plan-map/internal/api"
	"github.com/sdmaps/plan-map/internal/api/viewer"
	"github.com/sdmaps/plan-map/internal/arcgis"
	"github.com/sdmaps/plan-map/internal/config"
	"github.com/sdmaps/plan-map/internal/db"
	"github.com/sdmaps/plan-map/internal/service"
	"github.com/sdmaps/plan-map/internal/templates"
	"github.com/sdmaps/plan-map/internal/tiles"
)

// Config holds the server configuration.
type Config struct {
	Host       string
	Port       string
	DataDir    string
	WebDir     string // Path to web/ directory for static files and templates
	ConfigPath string // Map config YAML; empty uses the embedded default
}

// Server is the plan-map HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	humaAPI  huma.API
	svc      *service.MapService
	renderer *templates.Renderer
	log      *zap.Logger
}

// New creates the server. A missing or invalid map configuration is fatal:
// nothing renders without it.
func New(cfg Config) (*Server, error) {
	log := zap.L().With(zap.String("component", "server"))

	var mapCfg *config.MapConfig
	var err error
	if cfg.ConfigPath != "" {
		mapCfg, err = config.Load(cfg.ConfigPath)
	} else {
		mapCfg, err = config.Default()
	}
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()

	humaConfig := huma.DefaultConfig("plan-map API", "1.0.0")
	humaConfig.Info.Description = "Community plan area map: overlays, labels, and basemap-driven contrast styling."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())
	humaAPI := humago.New(mux, humaConfig)

	// The attribute cache is optional; without it only the cache endpoints
	// degrade.
	var conn *sql.DB
	if c, err := db.Get(db.Config{DataDir: cfg.DataDir, DBName: "planmap"}); err == nil {
		conn = c
	} else {
		log.Warn("attribute cache unavailable", zap.Error(err))
	}

	client := arcgis.New(arcgis.WithRateLimit(4, 2))
	svc := service.NewMapService(mapCfg, client, conn)

	var renderer *templates.Renderer
	if cfg.WebDir != "" {
		fragmentsDir := filepath.Join(cfg.WebDir, "templates", "fragments")
		if r, err := templates.New(fragmentsDir); err == nil {
			renderer = r
		} else {
			log.Warn("fragment templates unavailable, SSE patches disabled", zap.Error(err))
		}
	}

	s := &Server{
		config:   cfg,
		mux:      mux,
		humaAPI:  humaAPI,
		svc:      svc,
		renderer: renderer,
		log:      log,
	}
	s.routes()
	return s, nil
}

// Load fetches overlays and the label override table. Call once after New;
// individual overlay failures degrade to empty overlays.
func (s *Server) Load(ctx context.Context) error {
	return s.svc.Load(ctx)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close closes server resources.
func (s *Server) Close() error {
	return db.Close()
}

// OpenAPI returns the generated OpenAPI description.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Service exposes the map service, mainly for tests.
func (s *Server) Service() *service.MapService {
	return s.svc
}

func (s *Server) routes() {
	// REST API (OpenAPI-documented JSON endpoints)
	api.NewAPIHandler(s.svc).RegisterRoutes(s.humaAPI)
	api.NewInfoHandler(s.config.DataDir, s.svc.DB() != nil).RegisterRoutes(s.humaAPI)
	api.NewCacheHandler(s.svc).RegisterRoutes(s.humaAPI)

	// Viewer SSE routes (Datastar)
	if s.renderer != nil {
		viewer.NewHandler(s.svc, s.renderer).RegisterRoutes(s.humaAPI)
	}

	// Vector tile slices of loaded overlays
	s.mux.HandleFunc("GET /tiles/{overlay}/{z}/{x}/{y}", s.handleTile)

	// Static files and pages
	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}
	s.mux.HandleFunc("/viewer", s.handleViewer)
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plan-map",
		"status":  "running",
	})
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	templatePath := filepath.Join(s.config.WebDir, "templates", "viewer.html")
	http.ServeFile(w, r, templatePath)
}

// handleTile serves one gzipped MVT slice of a loaded overlay. Empty tiles
// are 204 so the client skips decoding.
func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	overlayID := r.PathValue("overlay")
	fc, ok := s.svc.Features(overlayID)
	if !ok {
		http.NotFound(w, r)
		return
	}

	z, errZ := strconv.ParseUint(r.PathValue("z"), 10, 32)
	x, errX := strconv.ParseUint(r.PathValue("x"), 10, 32)
	y, errY := strconv.ParseUint(r.PathValue("y"), 10, 32)
	if errZ != nil || errX != nil || errY != nil {
		http.Error(w, "Invalid tile coordinates", http.StatusBadRequest)
		return
	}

	data, err := tiles.Generate(fc, overlayID, uint32(z), uint32(x), uint32(y))
	if err != nil {
		s.log.Error("tile generation failed",
			zap.String("overlay", overlayID),
			zap.Uint64("z", z), zap.Uint64("x", x), zap.Uint64("y", y),
			zap.Error(err))
		http.Error(w, "Tile generation failed", http.StatusInternalServerError)
		return
	}
	if data == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.mapbox-vector-tile")
	w.Header().Set("Content-Encoding", "gzip")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Write(data)
}
