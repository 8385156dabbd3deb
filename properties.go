package featureavro

// FieldType is the declared type of an attribute field.
type FieldType uint8

const (
	FieldSmallInteger FieldType = iota // 16-bit or 8-bit signed integer
	FieldInteger                       // 32-bit signed integer
	FieldBigInteger                    // 64-bit signed integer
	FieldSingle                        // 32-bit float
	FieldDouble                        // 64-bit float
	FieldString
	FieldDate
	FieldOID
	FieldGeometry
	FieldBlob
	FieldRaster
	FieldGUID
	FieldGlobalID
	FieldXML
	FieldBoolean
)

var fieldTypeNames = [...]string{
	FieldSmallInteger: "SmallInteger",
	FieldInteger:      "Integer",
	FieldBigInteger:   "BigInteger",
	FieldSingle:       "Single",
	FieldDouble:       "Double",
	FieldString:       "String",
	FieldDate:         "Date",
	FieldOID:          "OID",
	FieldGeometry:     "Geometry",
	FieldBlob:         "Blob",
	FieldRaster:       "Raster",
	FieldGUID:         "GUID",
	FieldGlobalID:     "GlobalID",
	FieldXML:          "XML",
	FieldBoolean:      "Boolean",
}

func (t FieldType) String() string {
	if int(t) < len(fieldTypeNames) {
		return fieldTypeNames[t]
	}
	return "Unknown"
}

// Exported reports whether fields of type t appear in exported attributes.
func (t FieldType) Exported() bool {
	switch t {
	case FieldDouble, FieldString, FieldSingle, FieldInteger, FieldSmallInteger:
		return true
	default:
		return false
	}
}

// Field describes one attribute column.
type Field struct {
	Name string
	Type FieldType
}

// Fields is the ordered field schema of a cursor.
type Fields interface {
	FieldCount() int
	Field(i int) Field
}

// FieldList is a Fields backed by a slice.
type FieldList []Field

func (l FieldList) FieldCount() int { return len(l) }

func (l FieldList) Field(i int) Field { return l[i] }

// ProjectAttributes maps the values of f onto the names of fields.
//
// Double, String, Single and Integer values are copied unchanged.
// SmallInteger values held as int16 or int8 are widened to int32; any
// other representation is dropped. Fields of every other type are left
// out of the result. Nothing is reported for dropped fields: the
// projection is lossy on purpose.
func ProjectAttributes(fields Fields, f Feature) Attributes {
	count := fields.FieldCount()
	attrs := make(Attributes, count)
	for i := 0; i < count; i++ {
		field := fields.Field(i)
		value := f.Value(i)
		switch field.Type {
		case FieldDouble, FieldString, FieldSingle, FieldInteger:
			attrs[field.Name] = value
		case FieldSmallInteger:
			switch v := value.(type) {
			case int16:
				attrs[field.Name] = int32(v)
			case int8:
				attrs[field.Name] = int32(v)
			}
		}
	}
	return attrs
}
