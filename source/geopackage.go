package source

import (
	"context"
	"database/sql"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	_ "modernc.org/sqlite"

	featureavro "github.com/tingold/feature-avro"
)

// GeoPackage is a feature table of an OGC GeoPackage.
type GeoPackage struct {
	db         *sql.DB
	table      string
	geomColumn string
	code       int
	columns    []gpkgColumn
	fields     featureavro.FieldList
}

type gpkgColumn struct {
	name     string
	declared string // upper-cased declared type without size
}

// OpenGeoPackage opens the feature table layer of the GeoPackage at path.
// The first feature table in name order is used when layer is empty.
func OpenGeoPackage(ctx context.Context, path, layer string) (*GeoPackage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %q", path)
	}
	g, err := newGeoPackage(ctx, db, layer)
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "reading geopackage %q", path)
	}
	return g, nil
}

func newGeoPackage(ctx context.Context, db *sql.DB, layer string) (*GeoPackage, error) {
	if layer == "" {
		err := db.QueryRowContext(ctx,
			`SELECT table_name FROM gpkg_contents WHERE data_type = 'features' ORDER BY table_name LIMIT 1`,
		).Scan(&layer)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoLayer
		}
		if err != nil {
			return nil, err
		}
	}

	g := &GeoPackage{db: db, table: layer}

	var srsID int
	err := db.QueryRowContext(ctx,
		`SELECT column_name, srs_id FROM gpkg_geometry_columns WHERE table_name = ?`, layer,
	).Scan(&g.geomColumn, &srsID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNoLayer, "%q", layer)
	}
	if err != nil {
		return nil, err
	}

	var org string
	var orgID int
	err = db.QueryRowContext(ctx,
		`SELECT organization, organization_coordsys_id FROM gpkg_spatial_ref_sys WHERE srs_id = ?`, srsID,
	).Scan(&org, &orgID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, err
	case strings.EqualFold(org, "EPSG") && orgID > 0:
		g.code = orgID
	}

	if err := g.loadSchema(ctx); err != nil {
		return nil, err
	}
	return g, nil
}

// loadSchema reads the column list of the feature table.
func (g *GeoPackage) loadSchema(ctx context.Context) error {
	rows, err := g.db.QueryContext(ctx, `PRAGMA table_info(`+quoteIdent(g.table)+`)`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid     int
			name    string
			decl    string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &decl, &notNull, &dflt, &pk); err != nil {
			return err
		}
		col := gpkgColumn{name: name, declared: normalizeDeclared(decl)}
		g.columns = append(g.columns, col)
		g.fields = append(g.fields, featureavro.Field{
			Name: name,
			Type: g.fieldType(col, pk > 0),
		})
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(g.columns) == 0 {
		return errors.Wrapf(ErrNoLayer, "table %q has no columns", g.table)
	}
	return nil
}

func normalizeDeclared(decl string) string {
	decl = strings.ToUpper(strings.TrimSpace(decl))
	if i := strings.IndexByte(decl, '('); i >= 0 {
		decl = strings.TrimSpace(decl[:i])
	}
	return decl
}

// fieldType maps a GeoPackage column to a field type.
func (g *GeoPackage) fieldType(col gpkgColumn, pk bool) featureavro.FieldType {
	if col.name == g.geomColumn {
		return featureavro.FieldGeometry
	}
	switch col.declared {
	case "INTEGER", "INT", "MEDIUMINT":
		if pk {
			return featureavro.FieldOID
		}
		return featureavro.FieldInteger
	case "SMALLINT", "TINYINT":
		return featureavro.FieldSmallInteger
	case "FLOAT":
		return featureavro.FieldSingle
	case "DOUBLE", "REAL":
		return featureavro.FieldDouble
	case "TEXT":
		return featureavro.FieldString
	case "DATE", "DATETIME":
		return featureavro.FieldDate
	case "BOOLEAN":
		return featureavro.FieldBoolean
	default:
		return featureavro.FieldBlob
	}
}

// Fields returns the column schema.
func (g *GeoPackage) Fields() featureavro.FieldList {
	return g.fields
}

func (g *GeoPackage) AuthorityCode() (int, bool) {
	return g.code, g.code > 0
}

func (g *GeoPackage) Search(ctx context.Context) (featureavro.Cursor, error) {
	names := make([]string, 0, len(g.columns))
	for _, col := range g.columns {
		names = append(names, quoteIdent(col.name))
	}
	query := `SELECT ` + strings.Join(names, ", ") + ` FROM ` + quoteIdent(g.table)

	rows, err := g.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "querying %q", g.table)
	}
	return &gpkgCursor{g: g, rows: rows}, nil
}

// Close closes the database.
func (g *GeoPackage) Close() error {
	return g.db.Close()
}

// gpkgCursor streams the rows of a feature table.
type gpkgCursor struct {
	g    *GeoPackage
	rows *sql.Rows
}

func (c *gpkgCursor) Fields() featureavro.Fields { return c.g.fields }

func (c *gpkgCursor) Next(_ context.Context) (featureavro.Feature, error) {
	if !c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			return nil, err
		}
		return nil, featureavro.Done
	}

	raw := make([]interface{}, len(c.g.columns))
	dest := make([]interface{}, len(raw))
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := c.rows.Scan(dest...); err != nil {
		return nil, err
	}

	f := &feature{values: make([]interface{}, len(raw))}
	for i, field := range c.g.fields {
		if field.Type == featureavro.FieldGeometry {
			if blob, ok := raw[i].([]byte); ok {
				f.shape = shapeFromBlob(blob)
			}
			continue
		}
		f.values[i] = coerceSQL(raw[i], field.Type, c.g.columns[i].declared)
	}
	return f, nil
}

func (c *gpkgCursor) Close() error {
	return c.rows.Close()
}

// shapeFromBlob decodes a GeoPackage geometry blob. Undecodable and empty
// geometries have no shape.
func shapeFromBlob(blob []byte) featureavro.Shape {
	geom, err := decodeGeoPackageBinary(blob)
	if err != nil || geom == nil {
		return nil
	}
	return featureavro.FromOrb(geom)
}

// decodeGeoPackageBinary parses the GeoPackage binary header and decodes
// the WKB geometry that follows it.
func decodeGeoPackageBinary(b []byte) (orb.Geometry, error) {
	if len(b) < 8 || b[0] != 'G' || b[1] != 'P' {
		return nil, ErrInvalidGeometry
	}
	flags := b[3]
	if flags&0x20 != 0 {
		return nil, errors.Wrap(ErrInvalidGeometry, "extended geometry")
	}

	var envelope int
	switch (flags >> 1) & 0x07 {
	case 0:
	case 1:
		envelope = 32
	case 2, 3:
		envelope = 48
	case 4:
		envelope = 64
	default:
		return nil, errors.Wrap(ErrInvalidGeometry, "invalid envelope indicator")
	}
	if flags&0x10 != 0 {
		return nil, nil
	}

	start := 8 + envelope
	if len(b) < start {
		return nil, errors.Wrap(ErrInvalidGeometry, "truncated header")
	}
	return wkb.Unmarshal(b[start:])
}

// coerceSQL converts a scanned SQLite value to the representation of t.
// Integers out of range of their field become null.
func coerceSQL(value interface{}, t featureavro.FieldType, declared string) interface{} {
	if value == nil {
		return nil
	}
	switch t {
	case featureavro.FieldInteger:
		if v, ok := sqlInt(value); ok && v >= math.MinInt32 && v <= math.MaxInt32 {
			return int32(v)
		}
		return nil
	case featureavro.FieldSmallInteger:
		v, ok := sqlInt(value)
		if !ok {
			return nil
		}
		if declared == "TINYINT" {
			if v >= math.MinInt8 && v <= math.MaxInt8 {
				return int8(v)
			}
			return nil
		}
		if v >= math.MinInt16 && v <= math.MaxInt16 {
			return int16(v)
		}
		return nil
	case featureavro.FieldSingle:
		if v, ok := sqlFloat(value); ok {
			return float32(v)
		}
		return nil
	case featureavro.FieldDouble:
		if v, ok := sqlFloat(value); ok {
			return v
		}
		return nil
	case featureavro.FieldString:
		switch v := value.(type) {
		case string:
			return v
		case []byte:
			return string(v)
		case int64:
			return strconv.FormatInt(v, 10)
		case float64:
			return strconv.FormatFloat(v, 'g', -1, 64)
		}
		return nil
	}
	return value
}

func sqlInt(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case float64:
		if v == math.Trunc(v) {
			return int64(v), true
		}
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func sqlFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
