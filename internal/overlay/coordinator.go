package overlay

import (
	"sync"

	"go.uber.org/zap"

	"github.com/sdmaps/plan-map/internal/config"
)

// Registry holds the overlay controllers in configuration order. It is
// populated at setup time and read-only afterwards; the coordinator receives
// it by reference rather than through a process-wide binding.
type Registry struct {
	order []string
	byID  map[string]*Controller
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Controller)}
}

// Add registers a controller. Later controllers with a duplicate id replace
// earlier ones, matching config validation which forbids duplicates anyway.
func (r *Registry) Add(c *Controller) {
	if _, exists := r.byID[c.ID()]; !exists {
		r.order = append(r.order, c.ID())
	}
	r.byID[c.ID()] = c
}

// Get looks up a controller by overlay id.
func (r *Registry) Get(id string) (*Controller, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// All returns the controllers in configuration order.
func (r *Registry) All() []*Controller {
	out := make([]*Controller, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Coordinator derives the contrast profile from the active basemap and
// broadcasts it to every registered controller. It also tracks whether the
// imagery reference layer should be on the map.
type Coordinator struct {
	registry *Registry
	cfg      *config.MapConfig
	log      *zap.Logger

	mu         sync.RWMutex
	active     config.Basemap
	profile    Profile
	imageryRef bool
}

// NewCoordinator creates a coordinator over the registry and applies the
// configured default basemap.
func NewCoordinator(registry *Registry, cfg *config.MapConfig) *Coordinator {
	co := &Coordinator{
		registry: registry,
		cfg:      cfg,
		log:      zap.L().With(zap.String("component", "contrast")),
	}
	co.SetActiveBasemap(cfg.DefaultBasemap().ID)
	return co
}

// ProfileFor is the pure transition function: imagery-like basemaps map to
// the imagery profile, everything else to light.
func ProfileFor(b config.Basemap) Profile {
	if b.Imagery {
		return ProfileImagery
	}
	return ProfileLight
}

// SetActiveBasemap records the basemap change, restyles every overlay, and
// syncs imagery-reference visibility. Unknown ids are logged and ignored.
// Repeated application of the same basemap is idempotent.
func (co *Coordinator) SetActiveBasemap(id string) Profile {
	b, ok := co.cfg.BasemapByID(id)
	if !ok {
		co.log.Warn("unknown basemap, keeping current profile", zap.String("basemap", id))
		co.mu.RLock()
		defer co.mu.RUnlock()
		return co.profile
	}

	profile := ProfileFor(b)

	co.mu.Lock()
	co.active = b
	co.profile = profile
	co.imageryRef = b.Imagery && co.cfg.ImageryReference != nil
	co.mu.Unlock()

	for _, c := range co.registry.All() {
		c.ApplyContrastProfile(profile)
	}

	co.log.Debug("basemap changed",
		zap.String("basemap", b.ID),
		zap.String("profile", string(profile)),
	)
	return profile
}

// ActiveBasemap returns the currently selected basemap.
func (co *Coordinator) ActiveBasemap() config.Basemap {
	co.mu.RLock()
	defer co.mu.RUnlock()
	return co.active
}

// Profile returns the current contrast profile.
func (co *Coordinator) Profile() Profile {
	co.mu.RLock()
	defer co.mu.RUnlock()
	return co.profile
}

// ImageryReferenceVisible reports whether the imagery reference layer belongs
// on the map right now.
func (co *Coordinator) ImageryReferenceVisible() bool {
	co.mu.RLock()
	defer co.mu.RUnlock()
	return co.imageryRef
}
