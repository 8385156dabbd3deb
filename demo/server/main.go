package main

import (
	"context"
	"net/http"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	featureavro "github.com/tingold/feature-avro"
	"github.com/tingold/feature-avro/remotefs"
	"github.com/tingold/feature-avro/source"
)

type City struct {
	Name       string
	Country    string
	Longitude  float64
	Latitude   float64
	Population int
	Capital    bool
}

var cities = []City{
	{"Tokyo", "Japan", 139.6917, 35.6895, 13960000, true},
	{"New York", "United States", -73.9857, 40.7484, 8336817, false},
	{"London", "United Kingdom", -0.1276, 51.5074, 8982000, true},
	{"Paris", "France", 2.3522, 48.8566, 2161000, true},
	{"Beijing", "China", 116.4074, 39.9042, 21540000, true},
	{"Moscow", "Russia", 37.6173, 55.7558, 12615000, true},
	{"São Paulo", "Brazil", -46.6333, -23.5505, 12300000, false},
	{"Mumbai", "India", 72.8777, 19.0760, 12400000, false},
	{"Los Angeles", "United States", -118.2437, 34.0522, 3971883, false},
	{"Shanghai", "China", 121.4737, 31.2304, 24870000, false},
	{"Istanbul", "Turkey", 28.9784, 41.0082, 15520000, false},
	{"Buenos Aires", "Argentina", -58.3816, -34.6037, 3075646, true},
	{"Cairo", "Egypt", 31.2357, 30.0444, 10230000, true},
	{"Sydney", "Australia", 151.2093, -33.8688, 5312000, false},
	{"Berlin", "Germany", 13.4050, 52.5200, 3669491, true},
}

const avroPath = "/world_cities.avro"

func main() {
	// Create GeoJSON FeatureCollection
	fc := geojson.NewFeatureCollection()
	for _, city := range cities {
		f := geojson.NewFeature(orb.Point{city.Longitude, city.Latitude})
		f.Properties = geojson.Properties{
			"name":       city.Name,
			"country":    city.Country,
			"population": city.Population,
			"capital":    city.Capital,
		}
		fc.Append(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode cities")
	}
	class, err := source.NewGeoJSON(data)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read cities")
	}

	// Export to an in-memory Avro file
	mem := afero.NewMemMapFs()
	ctx := log.Logger.WithContext(context.Background())
	count, err := featureavro.Export(ctx, class, remotefs.NewLocal(mem), avroPath,
		&featureavro.WriterOptions{Codec: featureavro.CodecDeflate})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to export cities")
	}
	log.Info().Int("features", count).Msgf("Exported %d features.", count)

	fs := http.FileServer(afero.NewHttpFs(mem))
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == avroPath {
			w.Header().Set("Content-Type", "avro/binary")
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		fs.ServeHTTP(w, r)
	})

	log.Info().Str("addr", "http://localhost:8080"+avroPath).Msg("Server starting")
	if err := http.ListenAndServe(":8080", nil); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}
