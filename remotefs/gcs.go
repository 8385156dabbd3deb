package remotefs

import (
	"context"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/cockroachdb/errors"
	"google.golang.org/api/impersonate"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/tingold/feature-avro/identity"
)

// GCSConfig configures Google Cloud Storage clients.
type GCSConfig struct {
	// CredentialsFile is a service account key file. Application default
	// credentials are used when empty.
	CredentialsFile string `yaml:"credentials_file,omitempty"`
	// Impersonate makes the client act as the service account named by the
	// identity in the context.
	Impersonate bool `yaml:"impersonate,omitempty"`
}

// GCS is a FileSystem on a Google Cloud Storage bucket. Directories are
// object name prefixes ending in "/".
type GCS struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
}

// DialGCS opens a client for bucket.
func DialGCS(ctx context.Context, cfg GCSConfig, bucket string) (*GCS, error) {
	const scope = gcs.ScopeReadWrite
	opts := []option.ClientOption{option.WithScopes(scope)}

	var credOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		credOpts = append(credOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	if id, ok := identity.FromContext(ctx); ok && cfg.Impersonate {
		ts, err := impersonate.CredentialsTokenSource(ctx, impersonate.CredentialsConfig{
			TargetPrincipal: id.User,
			Scopes:          []string{scope},
		}, credOpts...)
		if err != nil {
			return nil, errors.Wrapf(err, "impersonating %q", id.User)
		}
		opts = append(opts, option.WithTokenSource(ts))
	} else {
		opts = append(opts, credOpts...)
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create google cloud client")
	}
	return &GCS{client: client, bucket: client.Bucket(bucket)}, nil
}

func (g *GCS) Exists(ctx context.Context, key string) (bool, error) {
	_, err := g.bucket.Object(key).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, gcs.ErrObjectNotExist) {
		return false, err
	}

	it := g.bucket.Objects(ctx, &gcs.Query{Prefix: dirPrefix(key)})
	_, err = it.Next()
	if errors.Is(err, iterator.Done) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "unable to list files in gcs bucket")
	}
	return true, nil
}

func (g *GCS) Delete(ctx context.Context, key string, recursive bool) error {
	if err := g.deleteObject(ctx, key); err != nil {
		return err
	}
	if !recursive {
		return nil
	}

	it := g.bucket.Objects(ctx, &gcs.Query{Prefix: dirPrefix(key)})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "unable to list files in gcs bucket")
		}
		if err := g.deleteObject(ctx, attrs.Name); err != nil {
			return err
		}
	}
}

func (g *GCS) deleteObject(ctx context.Context, key string) error {
	err := g.bucket.Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return errors.Wrapf(err, "deleting gs object %q", key)
	}
	return nil
}

// Create returns a writer whose Close commits the object.
func (g *GCS) Create(ctx context.Context, key string) (io.WriteCloser, error) {
	w := g.bucket.Object(key).NewWriter(ctx)
	w.ContentType = "avro/binary"
	return w, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

func objectKey(p string) string {
	return strings.Trim(p, "/")
}

func dirPrefix(key string) string {
	return strings.TrimSuffix(key, "/") + "/"
}
