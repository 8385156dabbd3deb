package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"

	featureavro "github.com/tingold/feature-avro"
	"github.com/tingold/feature-avro/identity"
	"github.com/tingold/feature-avro/internal/config"
	"github.com/tingold/feature-avro/internal/logger"
	"github.com/tingold/feature-avro/remotefs"
	"github.com/tingold/feature-avro/source"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	Properties string `short:"p" long:"properties" env:"FEATUREAVRO_PROPERTIES" description:"Path to properties file (default: ~/featureavro.yaml)"`
	User       string `short:"u" long:"user"       env:"FEATUREAVRO_USER"       description:"Remote user to write as (default: current user)"`
	Input      string `short:"i" long:"input"      env:"FEATUREAVRO_INPUT"      description:"Input feature file (.geojson, .fgb, .gpkg)" required:"true"`
	Layer      string `short:"l" long:"layer"      env:"FEATUREAVRO_LAYER"      description:"GeoPackage feature table"`
	Output     string `short:"o" long:"output"     env:"FEATUREAVRO_OUTPUT"     description:"Output path or URI (default: /user/<user>/features.avro)"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	if err := applyDefaults(&opts); err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve defaults")
	}

	props, err := loadProperties(opts.Properties, parser.FindOptionByLongName("properties").IsSet())
	if err != nil {
		log.Fatal().Err(err).Str("path", opts.Properties).Msg("Failed to load properties")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.Logger.WithContext(ctx)

	count, err := run(ctx, opts, props)
	if err != nil {
		stop()
		log.Fatal().Err(err).
			Str("input", opts.Input).
			Str("output", opts.Output).
			Msg("Export failed")
	}

	log.Info().
		Str("user", opts.User).
		Str("output", opts.Output).
		Msgf("Exported %d features.", count)
}

// applyDefaults fills the user and output path from the process user.
func applyDefaults(opts *Options) error {
	if opts.Properties == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "locating home directory")
		}
		opts.Properties = filepath.Join(home, "featureavro.yaml")
	}
	if opts.User == "" {
		id, err := identity.Current()
		if err != nil {
			return err
		}
		opts.User = id.User
	}
	if opts.Output == "" {
		opts.Output = "/user/" + opts.User + "/features.avro"
	}
	return nil
}

// loadProperties reads the properties file. A missing file is only an
// error when it was named explicitly.
func loadProperties(path string, explicit bool) (*config.Properties, error) {
	props, err := config.Load(path)
	if err != nil && !explicit && errors.Is(err, os.ErrNotExist) {
		log.Debug().Str("path", path).Msg("No properties file, using defaults")
		return &config.Properties{}, nil
	}
	return props, err
}

func run(ctx context.Context, opts Options, props *config.Properties) (int, error) {
	fc, err := source.Open(ctx, opts.Input, opts.Layer)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := fc.Close(); err != nil {
			log.Warn().Err(err).Str("input", opts.Input).Msg("Failed to close input")
		}
	}()

	return identity.RunAs(ctx, identity.Identity{User: opts.User}, func(ctx context.Context) (count int, err error) {
		fs, path, err := remotefs.Open(ctx, props.Config, opts.Output)
		if err != nil {
			return 0, err
		}
		defer func() {
			err = errors.CombineErrors(err, errors.Wrap(fs.Close(), "closing filesystem"))
			if err != nil {
				count = 0
			}
		}()
		return featureavro.Export(ctx, fc, fs, path, props.WriterOptions())
	})
}
