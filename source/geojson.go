package source

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/paulmach/orb/geojson"

	featureavro "github.com/tingold/feature-avro"
)

// GeoJSON is a feature class read from a GeoJSON FeatureCollection.
//
// The field schema is inferred from the property values of all features.
// The authority code comes from the legacy "crs" member when present.
type GeoJSON struct {
	fc     *geojson.FeatureCollection
	fields featureavro.FieldList
}

// OpenGeoJSON reads the FeatureCollection at path.
func OpenGeoJSON(path string) (*GeoJSON, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %q", path)
	}
	return NewGeoJSON(data)
}

// NewGeoJSON parses a FeatureCollection document.
func NewGeoJSON(data []byte) (*GeoJSON, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, errors.Wrap(err, "parsing geojson")
	}
	return &GeoJSON{fc: fc, fields: inferFields(fc.Features)}, nil
}

// Fields returns the inferred field schema.
func (g *GeoJSON) Fields() featureavro.FieldList {
	return g.fields
}

func (g *GeoJSON) AuthorityCode() (int, bool) {
	crs, ok := g.fc.ExtraMembers["crs"].(map[string]interface{})
	if !ok {
		return 0, false
	}
	props, ok := crs["properties"].(map[string]interface{})
	if !ok {
		return 0, false
	}
	name, ok := props["name"].(string)
	if !ok {
		return 0, false
	}
	return parseEPSG(name)
}

func (g *GeoJSON) Search(_ context.Context) (featureavro.Cursor, error) {
	features := make([]*feature, 0, len(g.fc.Features))
	for _, f := range g.fc.Features {
		if f == nil {
			continue
		}
		values := make([]interface{}, len(g.fields))
		for i, field := range g.fields {
			values[i] = coerceJSON(f.Properties[field.Name], field.Type)
		}
		features = append(features, &feature{
			values: values,
			shape:  featureavro.FromOrb(f.Geometry),
		})
	}
	return &sliceCursor{fields: g.fields, features: features}, nil
}

func (g *GeoJSON) Close() error {
	return nil
}

// inferFields analyzes features and infers the field schema. Names keep
// the order of their first occurrence; the properties of one feature are
// visited in name order.
func inferFields(features []*geojson.Feature) featureavro.FieldList {
	types := make(map[string]featureavro.FieldType)
	typed := make(map[string]bool)
	var order []string

	for _, f := range features {
		if f == nil || f.Properties == nil {
			continue
		}
		names := make([]string, 0, len(f.Properties))
		for name := range f.Properties {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if _, seen := typed[name]; !seen {
				typed[name] = false
				order = append(order, name)
			}
			inferred, ok := inferFieldType(f.Properties[name])
			if !ok {
				continue
			}
			if !typed[name] {
				types[name] = inferred
				typed[name] = true
				continue
			}
			types[name] = promoteFieldType(types[name], inferred)
		}
	}

	// Fields holding only nulls are exported as strings.
	for _, name := range order {
		if !typed[name] {
			types[name] = featureavro.FieldString
		}
	}

	fields := make(featureavro.FieldList, 0, len(order))
	for _, name := range order {
		fields = append(fields, featureavro.Field{Name: name, Type: types[name]})
	}
	return fields
}

// inferFieldType determines the field type of a decoded JSON value.
// It returns false for null.
func inferFieldType(value interface{}) (featureavro.FieldType, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case bool:
		return featureavro.FieldBoolean, true
	case float64:
		if v == math.Trunc(v) && v >= math.MinInt32 && v <= math.MaxInt32 {
			return featureavro.FieldInteger, true
		}
		return featureavro.FieldDouble, true
	case string:
		return featureavro.FieldString, true
	default:
		return featureavro.FieldBlob, true
	}
}

// promoteFieldType returns the more general type when there's a conflict.
func promoteFieldType(a, b featureavro.FieldType) featureavro.FieldType {
	if a == b {
		return a
	}
	if a == featureavro.FieldBlob || b == featureavro.FieldBlob {
		return featureavro.FieldBlob
	}
	if a == featureavro.FieldString || b == featureavro.FieldString {
		return featureavro.FieldString
	}

	rank := map[featureavro.FieldType]int{
		featureavro.FieldBoolean: 0,
		featureavro.FieldInteger: 1,
		featureavro.FieldDouble:  2,
	}
	if rank[a] > rank[b] {
		return a
	}
	return b
}

// coerceJSON converts a decoded JSON value to the representation of t.
func coerceJSON(value interface{}, t featureavro.FieldType) interface{} {
	if value == nil {
		return nil
	}
	switch t {
	case featureavro.FieldInteger:
		switch v := value.(type) {
		case float64:
			return int32(v)
		case bool:
			if v {
				return int32(1)
			}
			return int32(0)
		}
	case featureavro.FieldDouble:
		switch v := value.(type) {
		case float64:
			return v
		case bool:
			if v {
				return float64(1)
			}
			return float64(0)
		}
	case featureavro.FieldString:
		if s, ok := value.(string); ok {
			return s
		}
		b, err := json.Marshal(value)
		if err != nil {
			return nil
		}
		return string(b)
	}
	return value
}
