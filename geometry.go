package featureavro

import (
	"github.com/paulmach/orb"
)

// GeometryKind classifies a shape into the geometry variants that can be
// exported.
type GeometryKind uint8

const (
	GeometryUnknown GeometryKind = iota
	GeometryPoint
	GeometryPolyline
	GeometryPolygon
)

var geometryKindNames = [...]string{
	GeometryUnknown:  "Unknown",
	GeometryPoint:    "Point",
	GeometryPolyline: "Polyline",
	GeometryPolygon:  "Polygon",
}

func (k GeometryKind) String() string {
	if int(k) < len(geometryKindNames) {
		return geometryKindNames[k]
	}
	return geometryKindNames[GeometryUnknown]
}

// Shape is a feature geometry as exposed by a feature store.
type Shape interface {
	Kind() GeometryKind
}

// PointShape is a shape of kind GeometryPoint.
type PointShape interface {
	Shape
	XY() (x, y float64)
}

// PartCollection is the ordered-parts view of a polyline or polygon.
// Part returns an arbitrary value; parts that are not a PointCollection
// are skipped when flattening.
type PartCollection interface {
	PartCount() int
	Part(i int) interface{}
}

// PointCollection is an ordered sequence of points.
type PointCollection interface {
	PointCount() int
	PointAt(i int) Coord
}

// FlattenParts converts the parts of pc into coordinate sequences, keeping
// part order and point order. Parts without a point view are dropped.
func FlattenParts(pc PartCollection) Parts {
	count := pc.PartCount()
	parts := make(Parts, 0, count)
	for i := 0; i < count; i++ {
		points, ok := pc.Part(i).(PointCollection)
		if !ok {
			continue
		}
		parts = append(parts, flattenPoints(points))
	}
	return parts
}

func flattenPoints(pc PointCollection) []Coord {
	count := pc.PointCount()
	coords := make([]Coord, 0, count)
	for i := 0; i < count; i++ {
		coords = append(coords, pc.PointAt(i))
	}
	return coords
}

// FromOrb adapts an orb.Geometry to a Shape.
// MultiPoint and Collection have no exported variant and come back with
// kind GeometryUnknown. A nil geometry returns nil.
func FromOrb(geom orb.Geometry) Shape {
	switch v := geom.(type) {
	case nil:
		return nil
	case orb.Point:
		return orbPoint(v)
	case orb.LineString:
		return orbParts{kind: GeometryPolyline, parts: []orbPath{orbPath(v)}}
	case orb.MultiLineString:
		parts := make([]orbPath, 0, len(v))
		for _, ls := range v {
			parts = append(parts, orbPath(ls))
		}
		return orbParts{kind: GeometryPolyline, parts: parts}
	case orb.Ring:
		return orbParts{kind: GeometryPolygon, parts: []orbPath{orbPath(v)}}
	case orb.Polygon:
		return polygonParts(v)
	case orb.MultiPolygon:
		var parts []orbPath
		for _, poly := range v {
			for _, ring := range poly {
				parts = append(parts, orbPath(ring))
			}
		}
		return orbParts{kind: GeometryPolygon, parts: parts}
	case orb.Bound:
		return polygonParts(boundToPolygon(v))
	default:
		return unknownShape{}
	}
}

func polygonParts(poly orb.Polygon) orbParts {
	parts := make([]orbPath, 0, len(poly))
	for _, ring := range poly {
		parts = append(parts, orbPath(ring))
	}
	return orbParts{kind: GeometryPolygon, parts: parts}
}

func boundToPolygon(b orb.Bound) orb.Polygon {
	return orb.Polygon{
		orb.Ring{
			{b.Min[0], b.Min[1]},
			{b.Max[0], b.Min[1]},
			{b.Max[0], b.Max[1]},
			{b.Min[0], b.Max[1]},
			{b.Min[0], b.Min[1]},
		},
	}
}

type orbPoint orb.Point

func (p orbPoint) Kind() GeometryKind { return GeometryPoint }

func (p orbPoint) XY() (float64, float64) { return p[0], p[1] }

type orbPath []orb.Point

func (p orbPath) PointCount() int { return len(p) }

func (p orbPath) PointAt(i int) Coord { return Coord{X: p[i][0], Y: p[i][1]} }

type orbParts struct {
	kind  GeometryKind
	parts []orbPath
}

func (p orbParts) Kind() GeometryKind { return p.kind }

func (p orbParts) PartCount() int { return len(p.parts) }

func (p orbParts) Part(i int) interface{} { return p.parts[i] }

type unknownShape struct{}

func (unknownShape) Kind() GeometryKind { return GeometryUnknown }
