package featureavro

import (
	"reflect"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/paulmach/orb"
)

func TestBuildRecord(t *testing.T) {
	sr := SpatialReference{WKID: 3857}
	attrs := Attributes{"name": "A"}

	t.Run("point", func(t *testing.T) {
		rec, ok := BuildRecord(sr, attrs, FromOrb(orb.Point{10, 20}))
		if !ok {
			t.Fatal("expected a record")
		}
		p, isPoint := rec.(*PointRecord)
		if !isPoint {
			t.Fatalf("got %T, want *PointRecord", rec)
		}
		want := &PointRecord{SpatialReference: sr, Coord: Coord{X: 10, Y: 20}, Attributes: attrs}
		if !reflect.DeepEqual(p, want) {
			t.Errorf("record = %#v, want %#v", p, want)
		}
	})

	t.Run("polyline", func(t *testing.T) {
		shape := pathShape{kind: GeometryPolyline, parts: [][]Coord{{{0, 0}, {1, 1}}, {{2, 2}, {3, 3}}}}
		rec, ok := BuildRecord(sr, attrs, shape)
		if !ok {
			t.Fatal("expected a record")
		}
		pl := rec.(*PolylineRecord)
		if want := (Parts{{{0, 0}, {1, 1}}, {{2, 2}, {3, 3}}}); !reflect.DeepEqual(pl.Paths, want) {
			t.Errorf("paths = %v, want %v", pl.Paths, want)
		}
		if rec.Kind() != GeometryPolyline {
			t.Errorf("kind = %v", rec.Kind())
		}
	})

	t.Run("polygon", func(t *testing.T) {
		ring := []Coord{{0, 0}, {1, 0}, {1, 1}, {0, 0}}
		rec, ok := BuildRecord(sr, attrs, pathShape{kind: GeometryPolygon, parts: [][]Coord{ring}})
		if !ok {
			t.Fatal("expected a record")
		}
		pg := rec.(*PolygonRecord)
		if !reflect.DeepEqual(pg.Rings, Parts{ring}) {
			t.Errorf("rings = %v", pg.Rings)
		}
		if !reflect.DeepEqual(rec.Attrs(), attrs) {
			t.Errorf("attrs = %v", rec.Attrs())
		}
	})

	t.Run("polygon without parts view", func(t *testing.T) {
		rec, ok := BuildRecord(sr, attrs, bareShape(GeometryPolygon))
		if !ok {
			t.Fatal("expected a record")
		}
		pg := rec.(*PolygonRecord)
		if pg.Rings == nil || len(pg.Rings) != 0 {
			t.Errorf("rings = %#v, want empty", pg.Rings)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if rec, ok := BuildRecord(sr, attrs, bareShape(GeometryUnknown)); ok {
			t.Errorf("expected no record, got %#v", rec)
		}
	})

	t.Run("point without coordinates", func(t *testing.T) {
		if rec, ok := BuildRecord(sr, attrs, bareShape(GeometryPoint)); ok {
			t.Errorf("expected no record, got %#v", rec)
		}
	})

	t.Run("nil shape", func(t *testing.T) {
		if rec, ok := BuildRecord(sr, attrs, nil); ok {
			t.Errorf("expected no record, got %#v", rec)
		}
	})
}

func TestRecordNative(t *testing.T) {
	rec := BuildPolygon(WGS84(), Attributes{"n": int32(3)}, Parts{{{1, 2}, {3, 4}}})

	native, err := rec.native()
	if err != nil {
		t.Fatalf("native failed: %v", err)
	}

	geom, ok := native["geometry"].(map[string]interface{})
	if !ok {
		t.Fatalf("geometry = %#v", native["geometry"])
	}
	polygon, ok := geom[avroPolygonName].(map[string]interface{})
	if !ok {
		t.Fatalf("missing %s branch in %#v", avroPolygonName, geom)
	}
	if sr := polygon["spatialReference"].(map[string]interface{}); sr["wkid"] != int32(4326) {
		t.Errorf("wkid = %#v", sr["wkid"])
	}

	attrs := native["attributes"].(map[string]interface{})
	if want := map[string]interface{}{avroInt: int32(3)}; !reflect.DeepEqual(attrs["n"], want) {
		t.Errorf("attribute n = %#v, want %#v", attrs["n"], want)
	}
}

func TestAttributesNative(t *testing.T) {
	attrs := Attributes{
		"null":   nil,
		"double": 1.5,
		"float":  float32(2.5),
		"int":    int32(-4),
		"string": "x",
	}

	got, err := attrs.native()
	if err != nil {
		t.Fatalf("native failed: %v", err)
	}
	want := map[string]interface{}{
		"null":   nil,
		"double": map[string]interface{}{avroDouble: 1.5},
		"float":  map[string]interface{}{avroFloat: float32(2.5)},
		"int":    map[string]interface{}{avroInt: int32(-4)},
		"string": map[string]interface{}{avroString: "x"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("native() = %#v, want %#v", got, want)
	}
}

func TestAttributesNative_Unsupported(t *testing.T) {
	_, err := Attributes{"big": int64(1)}.native()
	if !errors.Is(err, ErrUnsupportedValue) {
		t.Errorf("expected ErrUnsupportedValue, got %v", err)
	}
}
