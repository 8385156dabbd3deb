package source

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/paulmach/orb"
)

// fgbColumn is a typed column of a FlatGeobuf fixture.
type fgbColumn struct {
	name string
	typ  flattypes.ColumnType
}

// fgbRow is one fixture feature. Values are indexed like the columns; nil
// values are omitted from the encoded properties.
type fgbRow struct {
	geom   orb.Geometry
	values []interface{}
}

// fgbFixture encodes rows into a FlatGeobuf file.
type fgbFixture struct {
	geomType flattypes.GeometryType
	columns  []fgbColumn
	rows     []fgbRow
	epsg     int
	noIndex  bool
}

func (f fgbFixture) bytes(t *testing.T) []byte {
	t.Helper()
	builder := flatbuffers.NewBuilder(4096)

	header := writer.NewHeader(builder)
	header.SetName("fixture")
	header.SetGeometryType(f.geomType)

	columns := make([]*writer.Column, 0, len(f.columns))
	for _, c := range f.columns {
		col := writer.NewColumn(builder)
		col.SetName(c.name)
		col.SetType(c.typ)
		col.SetNullable(true)
		columns = append(columns, col)
	}
	if len(columns) > 0 {
		header.SetColumns(columns)
	}

	if f.epsg > 0 {
		crs := writer.NewCrs(builder)
		crs.SetOrg("EPSG")
		crs.SetCode(int32(f.epsg))
		header.SetCrs(crs)
	}

	gen := &fixtureGenerator{fixture: f}
	var buf bytes.Buffer
	if _, err := writer.NewWriter(header, !f.noIndex, gen, nil).Write(&buf); err != nil {
		t.Fatalf("writing flatgeobuf fixture: %v", err)
	}
	return buf.Bytes()
}

type fixtureGenerator struct {
	fixture fgbFixture
	index   int
}

func (g *fixtureGenerator) Generate() *writer.Feature {
	if g.index >= len(g.fixture.rows) {
		return nil
	}
	row := g.fixture.rows[g.index]
	g.index++

	builder := flatbuffers.NewBuilder(1024)
	feature := writer.NewFeature(builder)
	feature.SetGeometry(fixtureGeometry(row.geom, builder))
	if props := encodeFixtureProperties(g.fixture.columns, row.values); len(props) > 0 {
		feature.SetProperties(props)
	}
	return feature
}

// fixtureGeometry converts geom to its FlatGeobuf layout.
func fixtureGeometry(geom orb.Geometry, builder *flatbuffers.Builder) *writer.Geometry {
	g := writer.NewGeometry(builder)

	switch v := geom.(type) {
	case orb.Point:
		g.SetType(flattypes.GeometryTypePoint)
		g.SetXY([]float64{v[0], v[1]})

	case orb.LineString:
		g.SetType(flattypes.GeometryTypeLineString)
		xy, _ := pathsToXYEnds([]orb.LineString{v})
		g.SetXY(xy)

	case orb.MultiLineString:
		g.SetType(flattypes.GeometryTypeMultiLineString)
		xy, ends := pathsToXYEnds(v)
		g.SetXY(xy)
		g.SetEnds(ends)

	case orb.Polygon:
		g.SetType(flattypes.GeometryTypePolygon)
		xy, ends := polygonToXYEnds(v)
		g.SetXY(xy)
		g.SetEnds(ends)

	case orb.MultiPolygon:
		g.SetType(flattypes.GeometryTypeMultiPolygon)
		parts := make([]writer.Geometry, 0, len(v))
		for _, poly := range v {
			pg := writer.NewGeometry(builder)
			pg.SetType(flattypes.GeometryTypePolygon)
			xy, ends := polygonToXYEnds(poly)
			pg.SetXY(xy)
			pg.SetEnds(ends)
			parts = append(parts, *pg)
		}
		g.SetParts(parts)

	case orb.MultiPoint:
		g.SetType(flattypes.GeometryTypeMultiPoint)
		xy := make([]float64, 0, len(v)*2)
		for _, p := range v {
			xy = append(xy, p[0], p[1])
		}
		g.SetXY(xy)
	}
	return g
}

func pathsToXYEnds(paths []orb.LineString) ([]float64, []uint32) {
	var xy []float64
	ends := make([]uint32, 0, len(paths))
	for _, p := range paths {
		for _, pt := range p {
			xy = append(xy, pt[0], pt[1])
		}
		ends = append(ends, uint32(len(xy)/2))
	}
	return xy, ends
}

func polygonToXYEnds(poly orb.Polygon) ([]float64, []uint32) {
	paths := make([]orb.LineString, 0, len(poly))
	for _, r := range poly {
		paths = append(paths, orb.LineString(r))
	}
	return pathsToXYEnds(paths)
}

// encodeFixtureProperties writes [uint16 column index][value] pairs.
// Strings and binaries carry a uint32 length prefix.
func encodeFixtureProperties(columns []fgbColumn, values []interface{}) []byte {
	var buf bytes.Buffer
	for i, value := range values {
		if value == nil {
			continue
		}
		_ = binary.Write(&buf, binary.LittleEndian, uint16(i))

		switch columns[i].typ {
		case flattypes.ColumnTypeString, flattypes.ColumnTypeDateTime, flattypes.ColumnTypeJson:
			s := value.(string)
			_ = binary.Write(&buf, binary.LittleEndian, uint32(len(s)))
			buf.WriteString(s)
		case flattypes.ColumnTypeBinary:
			b := value.([]byte)
			_ = binary.Write(&buf, binary.LittleEndian, uint32(len(b)))
			buf.Write(b)
		case flattypes.ColumnTypeBool:
			if value.(bool) {
				buf.WriteByte(1)
			} else {
				buf.WriteByte(0)
			}
		case flattypes.ColumnTypeFloat:
			_ = binary.Write(&buf, binary.LittleEndian, math.Float32bits(value.(float32)))
		case flattypes.ColumnTypeDouble:
			_ = binary.Write(&buf, binary.LittleEndian, math.Float64bits(value.(float64)))
		default:
			// Fixed-size integers are written as given.
			_ = binary.Write(&buf, binary.LittleEndian, value)
		}
	}
	return buf.Bytes()
}
