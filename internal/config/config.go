// Package config loads the properties bundle describing how to reach the
// destination filesystem and how to encode the output.
package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	featureavro "github.com/tingold/feature-avro"
	"github.com/tingold/feature-avro/remotefs"
)

// Properties represents the root properties file structure.
type Properties struct {
	remotefs.Config `yaml:",inline"`

	Writer Writer `yaml:"writer,omitempty"`
}

// Writer holds the Avro container settings.
type Writer struct {
	Codec       string `yaml:"codec,omitempty"`
	BlockLength int    `yaml:"block_length,omitempty"`
	BufferSize  int    `yaml:"buffer_size,omitempty"`
}

// Load reads and parses the YAML properties file at path.
func Load(path string) (*Properties, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading properties %q", path)
	}
	return Parse(data)
}

// Parse parses a YAML properties document.
func Parse(data []byte) (*Properties, error) {
	var props Properties
	if err := yaml.Unmarshal(data, &props); err != nil {
		return nil, errors.Wrap(err, "parsing properties")
	}
	switch props.Writer.Codec {
	case "", featureavro.CodecNull, featureavro.CodecDeflate, featureavro.CodecSnappy:
	default:
		return nil, errors.Newf("unsupported codec %q", props.Writer.Codec)
	}
	return &props, nil
}

// WriterOptions returns the writer options described by p.
func (p *Properties) WriterOptions() *featureavro.WriterOptions {
	return &featureavro.WriterOptions{
		Codec:       p.Writer.Codec,
		BlockLength: p.Writer.BlockLength,
		BufferSize:  p.Writer.BufferSize,
	}
}
