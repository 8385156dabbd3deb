package remotefs

import (
	"context"
	"io"
	"os"
	"path"

	"github.com/cockroachdb/errors"
	"github.com/colinmarc/hdfs/v2"
	"github.com/colinmarc/hdfs/v2/hadoopconf"

	"github.com/tingold/feature-avro/identity"
)

// HDFSConfig configures HDFS clients.
type HDFSConfig struct {
	// Namenodes lists namenode addresses (host:port) used when the output
	// path names none.
	Namenodes []string `yaml:"namenodes,omitempty"`
	// HadoopConfDir is a directory holding core-site.xml and hdfs-site.xml.
	HadoopConfDir       string `yaml:"hadoop_conf_dir,omitempty"`
	UseDatanodeHostname bool   `yaml:"use_datanode_hostname,omitempty"`
}

// HDFS is a FileSystem on a Hadoop cluster.
type HDFS struct {
	client *hdfs.Client
}

// DialHDFS connects to the namenode at address, or to the namenodes of cfg
// when address is empty. The client acts as the identity in ctx, or as the
// process user when there is none.
func DialHDFS(ctx context.Context, cfg HDFSConfig, address string) (*HDFS, error) {
	var opts hdfs.ClientOptions
	if cfg.HadoopConfDir != "" {
		conf, err := hadoopconf.Load(cfg.HadoopConfDir)
		if err != nil {
			return nil, errors.Wrapf(err, "loading hadoop configuration from %q", cfg.HadoopConfDir)
		}
		opts = hdfs.ClientOptionsFromConf(conf)
	}
	switch {
	case address != "":
		opts.Addresses = []string{address}
	case len(cfg.Namenodes) > 0:
		opts.Addresses = cfg.Namenodes
	}
	if len(opts.Addresses) == 0 {
		return nil, errors.New("remotefs: no hdfs namenode configured")
	}
	opts.UseDatanodeHostname = opts.UseDatanodeHostname || cfg.UseDatanodeHostname

	id, ok := identity.FromContext(ctx)
	if !ok {
		var err error
		if id, err = identity.Current(); err != nil {
			return nil, err
		}
	}
	opts.User = id.User

	client, err := hdfs.NewClient(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to hdfs %v as %q", opts.Addresses, opts.User)
	}
	return &HDFS{client: client}, nil
}

func (h *HDFS) Exists(_ context.Context, name string) (bool, error) {
	_, err := h.client.Stat(name)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (h *HDFS) Delete(_ context.Context, name string, recursive bool) error {
	if recursive {
		return h.client.RemoveAll(name)
	}
	return h.client.Remove(name)
}

func (h *HDFS) Create(_ context.Context, name string) (io.WriteCloser, error) {
	dir := path.Dir(name)
	if err := h.client.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating directory %q", dir)
	}
	return h.client.Create(name)
}

func (h *HDFS) Close() error {
	return h.client.Close()
}
