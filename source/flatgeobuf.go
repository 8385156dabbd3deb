package source

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	flatgeobuf "github.com/flatgeobuf/flatgeobuf/src/go"
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/paulmach/orb"

	featureavro "github.com/tingold/feature-avro"
)

// FlatGeobuf is a feature class read from a FlatGeobuf file.
//
// Features are iterated through the spatial index, so files written
// without one cannot be read.
type FlatGeobuf struct {
	fgb     *flatgeobuf.FlatGeoBuf
	header  *flattypes.Header
	fields  featureavro.FieldList
	columns []flattypes.ColumnType
}

// OpenFlatGeobuf opens the file at path.
// The file is memory-mapped for efficient access.
func OpenFlatGeobuf(path string) (*FlatGeobuf, error) {
	fgb, err := flatgeobuf.New(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %q", path)
	}
	return newFlatGeobuf(fgb)
}

// NewFlatGeobuf reads a FlatGeobuf file held in memory.
func NewFlatGeobuf(data []byte) (*FlatGeobuf, error) {
	fgb, err := flatgeobuf.NewWithData(data)
	if err != nil {
		return nil, errors.Wrap(err, "reading flatgeobuf")
	}
	return newFlatGeobuf(fgb)
}

func newFlatGeobuf(fgb *flatgeobuf.FlatGeoBuf) (*FlatGeobuf, error) {
	h := fgb.Header()
	if h == nil {
		return nil, errors.Wrap(ErrInvalidGeometry, "missing flatgeobuf header")
	}

	fields, columns := headerColumns(h)
	return &FlatGeobuf{fgb: fgb, header: h, fields: fields, columns: columns}, nil
}

// columnHeader is the part of the FlatGeobuf header describing columns.
type columnHeader interface {
	ColumnsLength() int
	Columns(obj *flattypes.Column, j int) bool
}

// headerColumns returns the field schema and property types, one slot per
// header column. A column that cannot be read is kept as an opaque binary
// column so that property indexes still line up.
func headerColumns(h columnHeader) (featureavro.FieldList, []flattypes.ColumnType) {
	colLen := h.ColumnsLength()
	fields := make(featureavro.FieldList, 0, colLen)
	columns := make([]flattypes.ColumnType, 0, colLen)
	for i := 0; i < colLen; i++ {
		var col flattypes.Column
		if !h.Columns(&col, i) {
			fields = append(fields, featureavro.Field{
				Name: "column_" + strconv.Itoa(i),
				Type: featureavro.FieldBlob,
			})
			columns = append(columns, flattypes.ColumnTypeBinary)
			continue
		}
		fields = append(fields, featureavro.Field{
			Name: string(col.Name()),
			Type: fgbFieldType(col.Type()),
		})
		columns = append(columns, col.Type())
	}
	return fields, columns
}

// Fields returns the column schema.
func (r *FlatGeobuf) Fields() featureavro.FieldList {
	return r.fields
}

func (r *FlatGeobuf) AuthorityCode() (int, bool) {
	var crs flattypes.Crs
	if r.header.Crs(&crs) == nil {
		return 0, false
	}
	org := strings.ToUpper(string(crs.Org()))
	if org != "" && org != "EPSG" {
		return 0, false
	}
	if code := int(crs.Code()); code > 0 {
		return code, true
	}
	return 0, false
}

func (r *FlatGeobuf) Search(_ context.Context) (featureavro.Cursor, error) {
	if r.header.IndexNodeSize() == 0 {
		return nil, ErrNoIndex
	}

	found, err := r.fgb.Search(-math.MaxFloat64, -math.MaxFloat64, math.MaxFloat64, math.MaxFloat64)
	if err != nil {
		return nil, errors.Wrap(err, "searching flatgeobuf index")
	}

	geomType := r.header.GeometryType()
	features := make([]*feature, 0, len(found))
	for _, fgbFeature := range found {
		if fgbFeature == nil {
			continue
		}
		features = append(features, r.convertFeature(fgbFeature, geomType))
	}
	return &sliceCursor{fields: r.fields, features: features}, nil
}

// Close releases resources associated with the reader.
func (r *FlatGeobuf) Close() error {
	// FlatGeoBuf has no Close; dropping the reference lets the mapping be
	// collected.
	r.fgb = nil
	return nil
}

func (r *FlatGeobuf) convertFeature(fgbFeature *flattypes.Feature, geomType flattypes.GeometryType) *feature {
	f := &feature{values: make([]interface{}, len(r.columns))}

	var geomObj flattypes.Geometry
	if geom := fgbFeature.Geometry(&geomObj); geom != nil {
		if g := geometryFromFGB(geom, geomType); g != nil {
			f.shape = featureavro.FromOrb(g)
		}
	}

	propsLen := fgbFeature.PropertiesLength()
	if propsLen > 0 && len(r.columns) > 0 {
		propsBytes := make([]byte, propsLen)
		for i := 0; i < propsLen; i++ {
			propsBytes[i] = byte(fgbFeature.Properties(i))
		}
		decodeProperties(propsBytes, r.columns, f.values)
	}
	return f
}

// fgbFieldType maps a FlatGeobuf column type to a field type. Unsigned
// columns move to the next signed width.
func fgbFieldType(t flattypes.ColumnType) featureavro.FieldType {
	switch t {
	case flattypes.ColumnTypeByte, flattypes.ColumnTypeUByte, flattypes.ColumnTypeShort:
		return featureavro.FieldSmallInteger
	case flattypes.ColumnTypeUShort, flattypes.ColumnTypeInt:
		return featureavro.FieldInteger
	case flattypes.ColumnTypeUInt, flattypes.ColumnTypeLong, flattypes.ColumnTypeULong:
		return featureavro.FieldBigInteger
	case flattypes.ColumnTypeFloat:
		return featureavro.FieldSingle
	case flattypes.ColumnTypeDouble:
		return featureavro.FieldDouble
	case flattypes.ColumnTypeString:
		return featureavro.FieldString
	case flattypes.ColumnTypeDateTime:
		return featureavro.FieldDate
	case flattypes.ColumnTypeBool:
		return featureavro.FieldBoolean
	default:
		return featureavro.FieldBlob
	}
}

// geometryFromFGB converts a FlatGeobuf geometry to an orb.Geometry.
// Features carry their own type only when the header type is Unknown.
func geometryFromFGB(g *flattypes.Geometry, headerType flattypes.GeometryType) orb.Geometry {
	geomType := g.Type()
	if geomType == flattypes.GeometryTypeUnknown {
		geomType = headerType
	}

	switch geomType {
	case flattypes.GeometryTypePoint:
		if g.XyLength() < 2 {
			return nil
		}
		return orb.Point{g.Xy(0), g.Xy(1)}

	case flattypes.GeometryTypeLineString:
		paths := pathsFromXYEnds(g)
		if len(paths) == 0 {
			return nil
		}
		return orb.LineString(paths[0])

	case flattypes.GeometryTypeMultiLineString:
		paths := pathsFromXYEnds(g)
		mls := make(orb.MultiLineString, 0, len(paths))
		for _, p := range paths {
			mls = append(mls, orb.LineString(p))
		}
		return mls

	case flattypes.GeometryTypePolygon:
		return polygonFromXYEnds(g)

	case flattypes.GeometryTypeMultiPolygon:
		partsLen := g.PartsLength()
		if partsLen == 0 {
			return orb.MultiPolygon{polygonFromXYEnds(g)}
		}
		mp := make(orb.MultiPolygon, 0, partsLen)
		for i := 0; i < partsLen; i++ {
			var part flattypes.Geometry
			if g.Parts(&part, i) {
				mp = append(mp, polygonFromXYEnds(&part))
			}
		}
		return mp

	default:
		return orb.Collection{}
	}
}

func polygonFromXYEnds(g *flattypes.Geometry) orb.Polygon {
	paths := pathsFromXYEnds(g)
	poly := make(orb.Polygon, 0, len(paths))
	for _, p := range paths {
		poly = append(poly, orb.Ring(p))
	}
	return poly
}

// pathsFromXYEnds splits the flat coordinate array of g at its part ends.
// Without ends all points form a single path.
func pathsFromXYEnds(g *flattypes.Geometry) [][]orb.Point {
	numPoints := uint32(g.XyLength() / 2)
	if numPoints == 0 {
		return nil
	}

	ends := make([]uint32, 0, g.EndsLength())
	for i := 0; i < g.EndsLength(); i++ {
		ends = append(ends, g.Ends(i))
	}
	if len(ends) == 0 {
		ends = append(ends, numPoints)
	}

	paths := make([][]orb.Point, 0, len(ends))
	start := uint32(0)
	for _, end := range ends {
		if end > numPoints {
			end = numPoints
		}
		if end < start {
			end = start
		}
		path := make([]orb.Point, 0, end-start)
		for j := start; j < end; j++ {
			idx := int(j) * 2
			path = append(path, orb.Point{g.Xy(idx), g.Xy(idx + 1)})
		}
		paths = append(paths, path)
		start = end
	}
	return paths
}

// decodeProperties decodes FlatGeobuf binary properties into values,
// indexed like columns. The format is [2-byte column index][value bytes]
// repeated for each non-null property.
func decodeProperties(data []byte, columns []flattypes.ColumnType, values []interface{}) {
	offset := 0
	for offset+2 <= len(data) {
		colIndex := int(binary.LittleEndian.Uint16(data[offset : offset+2]))
		offset += 2
		if colIndex >= len(columns) {
			return
		}

		colType := columns[colIndex]
		value, bytesRead := readPropertyValue(data[offset:], colType)
		if bytesRead == 0 {
			return
		}
		offset += bytesRead
		values[colIndex] = coerceFGB(value, colType)
	}
}

// coerceFGB converts unsigned values to the signed representation of
// their field type.
func coerceFGB(value interface{}, colType flattypes.ColumnType) interface{} {
	switch v := value.(type) {
	case uint8:
		if colType == flattypes.ColumnTypeUByte {
			return int16(v)
		}
	case uint16:
		return int32(v)
	}
	return value
}

// readPropertyValue reads a property value from the buffer.
// Returns the value and number of bytes read.
func readPropertyValue(data []byte, colType flattypes.ColumnType) (interface{}, int) {
	switch colType {
	case flattypes.ColumnTypeBool:
		if len(data) < 1 {
			return nil, 0
		}
		return data[0] != 0, 1

	case flattypes.ColumnTypeByte:
		if len(data) < 1 {
			return nil, 0
		}
		return int8(data[0]), 1

	case flattypes.ColumnTypeUByte:
		if len(data) < 1 {
			return nil, 0
		}
		return data[0], 1

	case flattypes.ColumnTypeShort:
		if len(data) < 2 {
			return nil, 0
		}
		return int16(binary.LittleEndian.Uint16(data[:2])), 2

	case flattypes.ColumnTypeUShort:
		if len(data) < 2 {
			return nil, 0
		}
		return binary.LittleEndian.Uint16(data[:2]), 2

	case flattypes.ColumnTypeInt:
		if len(data) < 4 {
			return nil, 0
		}
		return int32(binary.LittleEndian.Uint32(data[:4])), 4

	case flattypes.ColumnTypeUInt:
		if len(data) < 4 {
			return nil, 0
		}
		return binary.LittleEndian.Uint32(data[:4]), 4

	case flattypes.ColumnTypeLong:
		if len(data) < 8 {
			return nil, 0
		}
		return int64(binary.LittleEndian.Uint64(data[:8])), 8

	case flattypes.ColumnTypeULong:
		if len(data) < 8 {
			return nil, 0
		}
		return binary.LittleEndian.Uint64(data[:8]), 8

	case flattypes.ColumnTypeFloat:
		if len(data) < 4 {
			return nil, 0
		}
		return math.Float32frombits(binary.LittleEndian.Uint32(data[:4])), 4

	case flattypes.ColumnTypeDouble:
		if len(data) < 8 {
			return nil, 0
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(data[:8])), 8

	case flattypes.ColumnTypeString, flattypes.ColumnTypeDateTime, flattypes.ColumnTypeJson:
		if len(data) < 4 {
			return nil, 0
		}
		length := binary.LittleEndian.Uint32(data[:4])
		if uint64(len(data)) < 4+uint64(length) {
			return nil, 0
		}
		return string(data[4 : 4+length]), int(4 + length)

	case flattypes.ColumnTypeBinary:
		if len(data) < 4 {
			return nil, 0
		}
		length := binary.LittleEndian.Uint32(data[:4])
		if uint64(len(data)) < 4+uint64(length) {
			return nil, 0
		}
		return bytes.Clone(data[4 : 4+length]), int(4 + length)

	default:
		return nil, 0
	}
}
