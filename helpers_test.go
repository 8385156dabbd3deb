package featureavro

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/linkedin/goavro/v2"
	"github.com/spf13/afero"
)

// memFS is a FileSystem over an afero filesystem.
type memFS struct {
	fs afero.Fs

	// failAfter makes streams fail once this many bytes were written,
	// when positive.
	failAfter int
	created   []*memStream
	events    *releaseLog
}

func newMemFS() *memFS {
	return &memFS{fs: afero.NewMemMapFs()}
}

func (m *memFS) Exists(_ context.Context, path string) (bool, error) {
	return afero.Exists(m.fs, path)
}

func (m *memFS) Delete(_ context.Context, path string, recursive bool) error {
	if recursive {
		return m.fs.RemoveAll(path)
	}
	return m.fs.Remove(path)
}

func (m *memFS) Create(_ context.Context, path string) (io.WriteCloser, error) {
	if err := m.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := m.fs.Create(path)
	if err != nil {
		return nil, err
	}
	s := &memStream{f: f, failAfter: m.failAfter, events: m.events}
	m.created = append(m.created, s)
	return s, nil
}

func (m *memFS) read(t *testing.T, path string) []byte {
	t.Helper()
	data, err := afero.ReadFile(m.fs, path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return data
}

var errStreamBroken = errors.New("stream broken")

type memStream struct {
	f         afero.File
	failAfter int
	written   int
	closed    int
	events    *releaseLog
}

func (s *memStream) Write(p []byte) (int, error) {
	if s.failAfter > 0 && s.written+len(p) > s.failAfter {
		return 0, errStreamBroken
	}
	n, err := s.f.Write(p)
	s.written += n
	return n, err
}

func (s *memStream) Close() error {
	s.closed++
	s.events.add("stream")
	return s.f.Close()
}

// releaseLog records the order in which test handles are released.
type releaseLog []string

func (l *releaseLog) add(name string) {
	if l != nil {
		*l = append(*l, name)
	}
}

// testFeature is a cursor feature that records its release.
type testFeature struct {
	values   []interface{}
	shape    Shape
	released int
	events   *releaseLog
}

func (f *testFeature) Value(i int) interface{} { return f.values[i] }

func (f *testFeature) Shape() Shape { return f.shape }

func (f *testFeature) Release() {
	f.released++
	f.events.add("feature")
}

// testFields is a field schema that records its release.
type testFields struct {
	FieldList
	released int
	events   *releaseLog
}

func (f *testFields) Release() {
	f.released++
	f.events.add("fields")
}

type testCursor struct {
	fields   *testFields
	features []*testFeature
	pos      int
	err      error // returned once the features are consumed
	closed   int
	events   *releaseLog
}

func (c *testCursor) Fields() Fields { return c.fields }

func (c *testCursor) Next(_ context.Context) (Feature, error) {
	if c.pos >= len(c.features) {
		if c.err != nil {
			return nil, c.err
		}
		return nil, Done
	}
	f := c.features[c.pos]
	c.pos++
	return f, nil
}

func (c *testCursor) Close() error {
	c.closed++
	c.events.add("cursor")
	return nil
}

type testClass struct {
	code    int
	hasCode bool
	cursor  *testCursor
	err     error
}

func (c *testClass) AuthorityCode() (int, bool) { return c.code, c.hasCode }

func (c *testClass) Search(_ context.Context) (Cursor, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.cursor, nil
}

func newTestClass(code int, fields FieldList, features ...*testFeature) *testClass {
	return &testClass{
		code:    code,
		hasCode: code != 0,
		cursor:  &testCursor{fields: &testFields{FieldList: fields}, features: features},
	}
}

// pathShape is a polyline or polygon built from coordinate slices.
type pathShape struct {
	kind  GeometryKind
	parts [][]Coord
}

func (s pathShape) Kind() GeometryKind { return s.kind }

func (s pathShape) PartCount() int { return len(s.parts) }

func (s pathShape) Part(i int) interface{} { return coordPath(s.parts[i]) }

type coordPath []Coord

func (p coordPath) PointCount() int { return len(p) }

func (p coordPath) PointAt(i int) Coord { return p[i] }

// bareShape has a kind but no geometry view.
type bareShape GeometryKind

func (s bareShape) Kind() GeometryKind { return GeometryKind(s) }

// readRecords decodes every record of an Avro container.
func readRecords(t *testing.T, data []byte) ([]map[string]interface{}, *goavro.OCFReader) {
	t.Helper()
	ocfr, err := goavro.NewOCFReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("NewOCFReader failed: %v", err)
	}
	var records []map[string]interface{}
	for ocfr.Scan() {
		datum, err := ocfr.Read()
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		records = append(records, datum.(map[string]interface{}))
	}
	if err := ocfr.Err(); err != nil {
		t.Fatalf("scanning records: %v", err)
	}
	return records, ocfr
}

// geometryOf returns the union branch name and value of a decoded record.
func geometryOf(t *testing.T, record map[string]interface{}) (string, map[string]interface{}) {
	t.Helper()
	union, ok := record["geometry"].(map[string]interface{})
	if !ok || len(union) != 1 {
		t.Fatalf("unexpected geometry %#v", record["geometry"])
	}
	for name, v := range union {
		return name, v.(map[string]interface{})
	}
	return "", nil
}

// attributesOf unwraps the attribute unions of a decoded record.
func attributesOf(t *testing.T, record map[string]interface{}) map[string]interface{} {
	t.Helper()
	raw, ok := record["attributes"].(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected attributes %#v", record["attributes"])
	}
	attrs := make(map[string]interface{}, len(raw))
	for name, v := range raw {
		if v == nil {
			attrs[name] = nil
			continue
		}
		for _, inner := range v.(map[string]interface{}) {
			attrs[name] = inner
		}
	}
	return attrs
}

// coordsOf converts a decoded array of AvroCoord arrays.
func coordsOf(t *testing.T, v interface{}) Parts {
	t.Helper()
	var parts Parts
	for _, part := range v.([]interface{}) {
		coords := []Coord{}
		for _, c := range part.([]interface{}) {
			m := c.(map[string]interface{})
			coords = append(coords, Coord{X: m["x"].(float64), Y: m["y"].(float64)})
		}
		parts = append(parts, coords)
	}
	return parts
}
