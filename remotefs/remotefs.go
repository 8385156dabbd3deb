// Package remotefs resolves export destinations to filesystem clients.
//
// An output path names its filesystem through its URI scheme:
//
//	/user/alice/features.avro          default_fs, or the local filesystem
//	file:///tmp/features.avro          local filesystem
//	hdfs://namenode:8020/features.avro HDFS
//	gs://bucket/features.avro          Google Cloud Storage
//
// Clients are opened as the identity carried by the context, see package
// identity.
package remotefs

import (
	"context"
	"net/url"
	"path"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"

	featureavro "github.com/tingold/feature-avro"
)

// Supported URI schemes.
const (
	SchemeFile = "file"
	SchemeHDFS = "hdfs"
	SchemeGCS  = "gs"
)

// ErrUnsupportedScheme is returned for output paths naming an unknown
// filesystem.
var ErrUnsupportedScheme = errors.New("remotefs: unsupported scheme")

// FileSystem is an export destination holding a client connection.
type FileSystem interface {
	featureavro.FileSystem

	// Close releases the client.
	Close() error
}

// Config describes how to reach the destination filesystems.
type Config struct {
	// DefaultFS is used for output paths without a scheme, like Hadoop's
	// fs.defaultFS (e.g. "hdfs://namenode:8020").
	DefaultFS string      `yaml:"default_fs,omitempty"`
	HDFS      HDFSConfig  `yaml:"hdfs,omitempty"`
	GCS       GCSConfig   `yaml:"gcs,omitempty"`
	Local     LocalConfig `yaml:"local,omitempty"`
}

// LocalConfig configures the local filesystem.
type LocalConfig struct {
	// Root confines local paths below this directory when set.
	Root string `yaml:"root,omitempty"`
}

// Location is a resolved output path.
type Location struct {
	Scheme string // One of the Scheme constants
	Host   string // Namenode address or bucket name
	Path   string // Path within the filesystem
}

// Resolve parses output against cfg.
func Resolve(cfg Config, output string) (Location, error) {
	if output == "" {
		return Location{}, featureavro.ErrInvalidPath
	}
	u, err := url.Parse(output)
	if err != nil {
		return Location{}, errors.Wrapf(err, "parsing output path %q", output)
	}

	if u.Scheme == "" {
		loc := Location{Scheme: SchemeFile, Path: u.Path}
		if cfg.DefaultFS != "" {
			def, err := url.Parse(cfg.DefaultFS)
			if err != nil {
				return Location{}, errors.Wrapf(err, "parsing default_fs %q", cfg.DefaultFS)
			}
			if def.Scheme != "" {
				loc.Scheme = def.Scheme
				loc.Host = def.Host
			}
		}
		return cleanLocation(loc)
	}

	return cleanLocation(Location{Scheme: u.Scheme, Host: u.Host, Path: u.Path})
}

func cleanLocation(loc Location) (Location, error) {
	switch loc.Scheme {
	case SchemeFile, SchemeHDFS:
		if loc.Path == "" {
			return Location{}, featureavro.ErrInvalidPath
		}
		loc.Path = path.Clean(loc.Path)
	case SchemeGCS:
		if loc.Host == "" {
			return Location{}, errors.Wrap(featureavro.ErrInvalidPath, "missing bucket")
		}
		loc.Path = objectKey(loc.Path)
		if loc.Path == "" {
			return Location{}, errors.Wrap(featureavro.ErrInvalidPath, "missing object name")
		}
	default:
		return Location{}, errors.Wrapf(ErrUnsupportedScheme, "%q", loc.Scheme)
	}
	return loc, nil
}

// Open connects to the filesystem named by output and returns it with the
// path to write within it.
func Open(ctx context.Context, cfg Config, output string) (FileSystem, string, error) {
	loc, err := Resolve(cfg, output)
	if err != nil {
		return nil, "", err
	}

	var fs FileSystem
	switch loc.Scheme {
	case SchemeFile:
		base := afero.NewOsFs()
		if cfg.Local.Root != "" {
			base = afero.NewBasePathFs(base, cfg.Local.Root)
		}
		fs = NewLocal(base)
	case SchemeHDFS:
		fs, err = DialHDFS(ctx, cfg.HDFS, loc.Host)
	case SchemeGCS:
		fs, err = DialGCS(ctx, cfg.GCS, loc.Host)
	}
	if err != nil {
		return nil, "", err
	}
	return fs, loc.Path, nil
}
