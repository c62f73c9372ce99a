// Package tiles slices loaded overlay features into Mapnik vector tiles on
// demand, so overlays can also be consumed as an MVT source.
package tiles

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/simplify"
	"github.com/rotisserie/eris"
)

// Generate builds one gzipped MVT tile from a feature collection. Returns
// (nil, nil) when no feature intersects the tile.
func Generate(fc *geojson.FeatureCollection, layerName string, z, x, y uint32) ([]byte, error) {
	tile := maptile.New(x, y, maptile.Zoom(z))
	tileBound := tile.Bound()

	clipped := geojson.NewFeatureCollection()
	for _, f := range fc.Features {
		if f.Geometry == nil || !f.Geometry.Bound().Intersects(tileBound) {
			continue
		}
		// Clip and ProjectToTile mutate geometry in place; work on a copy so
		// the controller's shapes stay intact for other tiles.
		clone := geojson.NewFeature(orb.Clone(f.Geometry))
		for k, v := range f.Properties {
			clone.Properties[k] = v
		}
		clipped.Append(clone)
	}
	if len(clipped.Features) == 0 {
		return nil, nil
	}

	layer := mvt.NewLayer(layerName, clipped)
	if eps := simplifyEpsilon(tile.Z); eps > 0 {
		layer.Simplify(simplify.DouglasPeucker(eps))
	}
	layer.Clip(tileBound)
	layer.ProjectToTile(tile)
	layer.RemoveEmpty(0.5, 0.5)
	if len(layer.Features) == 0 {
		return nil, nil
	}

	data, err := mvt.MarshalGzipped(mvt.Layers{layer})
	if err != nil {
		return nil, eris.Wrap(err, "tiles: encode mvt")
	}
	return data, nil
}

// simplifyEpsilon returns the simplification tolerance for a zoom level.
// Plan area polygons are city-scale, so tolerances stay small enough to keep
// narrow boundary segments.
func simplifyEpsilon(zoom maptile.Zoom) float64 {
	switch {
	case zoom >= 14:
		return 0
	case zoom >= 10:
		return 0.00001
	case zoom >= 6:
		return 0.0001
	default:
		return 0.0005
	}
}
