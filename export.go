package featureavro

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Export writes every feature of fc to a new Avro file at path on fs and
// returns the number of records written.
//
// Any existing file or directory at path is replaced. Features whose shape
// is not a point, polyline or polygon are skipped and not counted. On
// failure the count is 0 and the destination may hold a truncated file.
// The caller owns fs and closes it after Export returns.
func Export(ctx context.Context, fc FeatureClass, fs FileSystem, path string, opts *WriterOptions) (count int, err error) {
	if fc == nil {
		return 0, ErrNilFeatureClass
	}
	if fs == nil {
		return 0, ErrNilFileSystem
	}
	sr := ResolveSpatialReference(fc)

	w := NewWriter(fs, path, opts)
	defer func() {
		err = errors.CombineErrors(err, w.Close())
		if err != nil {
			count = 0
		}
	}()
	if err := w.Open(ctx); err != nil {
		return 0, err
	}

	cursor, err := fc.Search(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "opening cursor")
	}
	defer func() {
		err = errors.CombineErrors(err, errors.Wrap(cursor.Close(), "closing cursor"))
	}()

	if err := drain(ctx, cursor, sr, w); err != nil {
		return 0, err
	}
	return w.Count(), nil
}

// drain pulls features from cursor until it is exhausted and appends the
// recognized ones to w.
func drain(ctx context.Context, cursor Cursor, sr SpatialReference, w *Writer) error {
	fields := cursor.Fields()
	defer release(fields)

	logger := zerolog.Ctx(ctx)
	skipped := 0
	for {
		feature, err := cursor.Next(ctx)
		if errors.Is(err, Done) || (err == nil && feature == nil) {
			break
		}
		if err != nil {
			return errors.Wrap(err, "reading next feature")
		}
		ok, err := exportFeature(fields, feature, sr, w)
		if err != nil {
			return err
		}
		if !ok {
			skipped++
		}
	}

	logger.Debug().
		Int("written", w.Count()).
		Int("skipped", skipped).
		Msg("Cursor exhausted")
	return nil
}

// exportFeature appends feature to w and releases it. It returns false when
// the feature shape has no exported variant.
func exportFeature(fields Fields, feature Feature, sr SpatialReference, w *Writer) (bool, error) {
	defer release(feature)

	attrs := ProjectAttributes(fields, feature)
	rec, ok := BuildRecord(sr, attrs, feature.Shape())
	if !ok {
		return false, nil
	}
	if err := w.Append(rec); err != nil {
		return false, err
	}
	return true, nil
}
