package featureavro

import (
	"github.com/cockroachdb/errors"
	"github.com/linkedin/goavro/v2"
)

// Coord is one x/y position.
type Coord struct {
	X, Y float64
}

// Parts is an ordered list of coordinate sequences: the paths of a
// polyline or the rings of a polygon.
type Parts [][]Coord

// Attributes maps field names to float64, float32, int32, string or nil
// values.
type Attributes map[string]interface{}

// Record is one exported feature. It is implemented by PointRecord,
// PolylineRecord and PolygonRecord only.
type Record interface {
	Kind() GeometryKind
	Attrs() Attributes

	native() (map[string]interface{}, error)
}

// PointRecord is an exported point feature.
type PointRecord struct {
	SpatialReference SpatialReference
	Coord            Coord
	Attributes       Attributes
}

// PolylineRecord is an exported polyline feature.
type PolylineRecord struct {
	SpatialReference SpatialReference
	Paths            Parts
	Attributes       Attributes
}

// PolygonRecord is an exported polygon feature.
type PolygonRecord struct {
	SpatialReference SpatialReference
	Rings            Parts
	Attributes       Attributes
}

// BuildPoint composes a point record.
func BuildPoint(sr SpatialReference, attrs Attributes, c Coord) *PointRecord {
	return &PointRecord{SpatialReference: sr, Coord: c, Attributes: attrs}
}

// BuildPolyline composes a polyline record.
func BuildPolyline(sr SpatialReference, attrs Attributes, paths Parts) *PolylineRecord {
	return &PolylineRecord{SpatialReference: sr, Paths: paths, Attributes: attrs}
}

// BuildPolygon composes a polygon record.
func BuildPolygon(sr SpatialReference, attrs Attributes, rings Parts) *PolygonRecord {
	return &PolygonRecord{SpatialReference: sr, Rings: rings, Attributes: attrs}
}

// BuildRecord composes the record for shape, or returns false when the
// shape is nil or of an unrecognized kind.
func BuildRecord(sr SpatialReference, attrs Attributes, shape Shape) (Record, bool) {
	if shape == nil {
		return nil, false
	}
	switch shape.Kind() {
	case GeometryPoint:
		p, ok := shape.(PointShape)
		if !ok {
			return nil, false
		}
		x, y := p.XY()
		return BuildPoint(sr, attrs, Coord{X: x, Y: y}), true
	case GeometryPolyline:
		return BuildPolyline(sr, attrs, shapeParts(shape)), true
	case GeometryPolygon:
		return BuildPolygon(sr, attrs, shapeParts(shape)), true
	default:
		return nil, false
	}
}

// shapeParts flattens shape when it exposes an ordered-parts view.
func shapeParts(shape Shape) Parts {
	pc, ok := shape.(PartCollection)
	if !ok {
		return Parts{}
	}
	return FlattenParts(pc)
}

func (r *PointRecord) Kind() GeometryKind { return GeometryPoint }

func (r *PointRecord) Attrs() Attributes { return r.Attributes }

func (r *PolylineRecord) Kind() GeometryKind { return GeometryPolyline }

func (r *PolylineRecord) Attrs() Attributes { return r.Attributes }

func (r *PolygonRecord) Kind() GeometryKind { return GeometryPolygon }

func (r *PolygonRecord) Attrs() Attributes { return r.Attributes }

func (r *PointRecord) native() (map[string]interface{}, error) {
	geom := map[string]interface{}{
		"spatialReference": r.SpatialReference.native(),
		"coord":            r.Coord.native(),
	}
	return featureNative(avroPointName, geom, r.Attributes)
}

func (r *PolylineRecord) native() (map[string]interface{}, error) {
	geom := map[string]interface{}{
		"spatialReference": r.SpatialReference.native(),
		"paths":            r.Paths.native(),
	}
	return featureNative(avroPolylineName, geom, r.Attributes)
}

func (r *PolygonRecord) native() (map[string]interface{}, error) {
	geom := map[string]interface{}{
		"spatialReference": r.SpatialReference.native(),
		"rings":            r.Rings.native(),
	}
	return featureNative(avroPolygonName, geom, r.Attributes)
}

func featureNative(unionName string, geom map[string]interface{}, attrs Attributes) (map[string]interface{}, error) {
	values, err := attrs.native()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"geometry":   goavro.Union(unionName, geom),
		"attributes": values,
	}, nil
}

func (sr SpatialReference) native() map[string]interface{} {
	return map[string]interface{}{"wkid": sr.WKID}
}

func (c Coord) native() map[string]interface{} {
	return map[string]interface{}{"x": c.X, "y": c.Y}
}

func (p Parts) native() []interface{} {
	parts := make([]interface{}, 0, len(p))
	for _, part := range p {
		coords := make([]interface{}, 0, len(part))
		for _, c := range part {
			coords = append(coords, c.native())
		}
		parts = append(parts, coords)
	}
	return parts
}

// native wraps each value in the branch of the attribute union matching
// its Go type.
func (a Attributes) native() (map[string]interface{}, error) {
	values := make(map[string]interface{}, len(a))
	for name, value := range a {
		switch v := value.(type) {
		case nil:
			values[name] = goavro.Union(avroNull, nil)
		case float64:
			values[name] = goavro.Union(avroDouble, v)
		case float32:
			values[name] = goavro.Union(avroFloat, v)
		case int32:
			values[name] = goavro.Union(avroInt, v)
		case string:
			values[name] = goavro.Union(avroString, v)
		default:
			return nil, errors.Wrapf(ErrUnsupportedValue, "attribute %q has type %T", name, value)
		}
	}
	return values, nil
}
