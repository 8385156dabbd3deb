// Package source provides feature classes read from GeoJSON, FlatGeobuf
// and GeoPackage files.
package source

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	featureavro "github.com/tingold/feature-avro"
)

// Common errors returned by this package.
var (
	ErrUnsupportedFormat = errors.New("source: unsupported input format")
	ErrNoIndex           = errors.New("source: flatgeobuf file has no spatial index")
	ErrNoLayer           = errors.New("source: no feature layer")
	ErrInvalidGeometry   = errors.New("source: invalid geometry blob")
)

// FeatureClass is a feature class backed by an open file.
type FeatureClass interface {
	featureavro.FeatureClass

	// Close releases the underlying file.
	Close() error
}

// Open opens the feature class stored at path, chosen by file extension.
// Layer selects a table of a GeoPackage; the first feature table is used
// when it is empty.
func Open(ctx context.Context, path, layer string) (FeatureClass, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return OpenGeoJSON(path)
	case ".fgb":
		return OpenFlatGeobuf(path)
	case ".gpkg":
		return OpenGeoPackage(ctx, path, layer)
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%q", path)
	}
}

// feature is an in-memory cursor record.
type feature struct {
	values []interface{}
	shape  featureavro.Shape
}

func (f *feature) Value(i int) interface{} { return f.values[i] }

func (f *feature) Shape() featureavro.Shape { return f.shape }

// sliceCursor iterates over features held in memory.
type sliceCursor struct {
	fields   featureavro.FieldList
	features []*feature
	pos      int
}

func (c *sliceCursor) Fields() featureavro.Fields { return c.fields }

func (c *sliceCursor) Next(ctx context.Context) (featureavro.Feature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.pos >= len(c.features) {
		return nil, featureavro.Done
	}
	f := c.features[c.pos]
	c.pos++
	return f, nil
}

func (c *sliceCursor) Close() error {
	c.features = nil
	return nil
}

// parseEPSG extracts an EPSG code from CRS names such as "EPSG:3857" or
// "urn:ogc:def:crs:EPSG::3857". OGC CRS84 maps to 4326.
func parseEPSG(name string) (int, bool) {
	upper := strings.ToUpper(name)
	if strings.HasSuffix(upper, "CRS84") {
		return featureavro.WGS84Code, true
	}
	if !strings.Contains(upper, "EPSG") {
		return 0, false
	}
	code, err := strconv.Atoi(upper[strings.LastIndex(upper, ":")+1:])
	if err != nil || code <= 0 {
		return 0, false
	}
	return code, true
}
