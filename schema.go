package featureavro

// Schema is the Avro schema of every record written by a Writer.
const Schema = `{
  "type": "record",
  "name": "AvroFeature",
  "namespace": "com.esri",
  "fields": [
    {
      "name": "geometry",
      "type": [
        {
          "type": "record",
          "name": "AvroPoint",
          "fields": [
            {
              "name": "spatialReference",
              "type": {
                "type": "record",
                "name": "AvroSpatialReference",
                "fields": [{"name": "wkid", "type": "int"}]
              }
            },
            {
              "name": "coord",
              "type": {
                "type": "record",
                "name": "AvroCoord",
                "fields": [
                  {"name": "x", "type": "double"},
                  {"name": "y", "type": "double"}
                ]
              }
            }
          ]
        },
        {
          "type": "record",
          "name": "AvroPolyline",
          "fields": [
            {"name": "spatialReference", "type": "AvroSpatialReference"},
            {"name": "paths", "type": {"type": "array", "items": {"type": "array", "items": "AvroCoord"}}}
          ]
        },
        {
          "type": "record",
          "name": "AvroPolygon",
          "fields": [
            {"name": "spatialReference", "type": "AvroSpatialReference"},
            {"name": "rings", "type": {"type": "array", "items": {"type": "array", "items": "AvroCoord"}}}
          ]
        }
      ]
    },
    {
      "name": "attributes",
      "type": {"type": "map", "values": ["null", "double", "float", "int", "string"]}
    }
  ]
}`

// Union branch names used in native records.
const (
	avroPointName    = "com.esri.AvroPoint"
	avroPolylineName = "com.esri.AvroPolyline"
	avroPolygonName  = "com.esri.AvroPolygon"

	avroNull   = "null"
	avroDouble = "double"
	avroFloat  = "float"
	avroInt    = "int"
	avroString = "string"
)
