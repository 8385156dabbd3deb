// Package featureavro exports geospatial features (points, polylines and
// polygons with typed attributes) into Avro object container files.
//
// Features are pulled from a forward-only cursor, flattened into the
// AvroFeature record layout and streamed to a filesystem that may be remote.
// Every cursor and stream resource is released on all exit paths.
package featureavro

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Common errors returned by this package.
var (
	ErrNilFeatureClass = errors.New("featureavro: nil feature class")
	ErrNilFileSystem   = errors.New("featureavro: nil filesystem")
	ErrInvalidPath     = errors.New("featureavro: invalid output path")
	ErrWriterNotOpen   = errors.New("featureavro: writer is not open")
	ErrWriterClosed    = errors.New("featureavro: writer is closed")

	ErrUnsupportedValue = errors.New("featureavro: unsupported attribute value")
)

// Done is returned by Cursor.Next when no more features are available.
var Done = errors.New("featureavro: no more features")

// WGS84Code is the authority code used when a feature class has none.
const WGS84Code = 4326

// SpatialReference tags every exported geometry with its coordinate system.
type SpatialReference struct {
	WKID int32 // Well-known ID, e.g. 4326
}

// WGS84 returns the geographic WGS 1984 spatial reference (EPSG:4326).
func WGS84() SpatialReference {
	return SpatialReference{WKID: WGS84Code}
}

// FeatureClass is a collection of features sharing a field schema and a
// spatial reference.
type FeatureClass interface {
	// AuthorityCode returns the authority code of the class spatial
	// reference, if it has one.
	AuthorityCode() (int, bool)

	// Search opens a cursor over every feature of the class.
	Search(ctx context.Context) (Cursor, error)
}

// Cursor is a forward-only iterator over features.
type Cursor interface {
	// Fields returns the field schema shared by all features.
	Fields() Fields

	// Next returns the next feature, or Done once the cursor is exhausted.
	Next(ctx context.Context) (Feature, error)

	// Close releases the cursor.
	Close() error
}

// Feature is one record of a cursor.
type Feature interface {
	// Value returns the raw value of field i of the cursor schema.
	Value(i int) interface{}

	// Shape returns the feature geometry, or nil.
	Shape() Shape
}

// Releaser is implemented by cursor-owned handles (features, field
// schemas) that hold resources until released.
type Releaser interface {
	Release()
}

// release frees h if it holds resources.
func release(h interface{}) {
	if r, ok := h.(Releaser); ok {
		r.Release()
	}
}

// ResolveSpatialReference returns the spatial reference of fc, falling back
// to WGS84 when fc exposes no authority code.
func ResolveSpatialReference(fc FeatureClass) SpatialReference {
	if code, ok := fc.AuthorityCode(); ok && code > 0 {
		return SpatialReference{WKID: int32(code)}
	}
	return WGS84()
}
