package tiles

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func northParkCollection() *geojson.FeatureCollection {
	f := geojson.NewFeature(orb.Polygon{{
		{-117.14, 32.73},
		{-117.10, 32.73},
		{-117.10, 32.76},
		{-117.14, 32.76},
		{-117.14, 32.73},
	}})
	f.Properties["cpname"] = "GREATER NORTH PARK"
	fc := geojson.NewFeatureCollection()
	fc.Append(f)
	return fc
}

func TestGenerate(t *testing.T) {
	fc := northParkCollection()
	tile := maptile.At(orb.Point{-117.12, 32.745}, 12)

	data, err := Generate(fc, "plan-areas", 12, tile.X, tile.Y)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	// output is gzip-compressed protobuf
	assert.Equal(t, byte(0x1f), data[0])
	assert.Equal(t, byte(0x8b), data[1])
}

func TestGenerateEmptyTile(t *testing.T) {
	fc := northParkCollection()

	// a tile on the other side of the world intersects nothing
	data, err := Generate(fc, "plan-areas", 12, 0, 0)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestGenerateLeavesSourceIntact(t *testing.T) {
	fc := northParkCollection()
	original := fc.Features[0].Geometry.(orb.Polygon)[0][0]

	tile := maptile.At(orb.Point{-117.12, 32.745}, 12)
	_, err := Generate(fc, "plan-areas", 12, tile.X, tile.Y)
	require.NoError(t, err)

	// projection works on a clone; the source geometry must stay in WGS84
	assert.Equal(t, original, fc.Features[0].Geometry.(orb.Polygon)[0][0])
}

func TestSimplifyEpsilon(t *testing.T) {
	assert.Zero(t, simplifyEpsilon(16))
	assert.Zero(t, simplifyEpsilon(14))
	assert.Equal(t, 0.00001, simplifyEpsilon(12))
	assert.Equal(t, 0.0001, simplifyEpsilon(8))
	assert.Equal(t, 0.0005, simplifyEpsilon(3))
}
