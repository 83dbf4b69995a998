package loader

import (
	"context"
	"io"

	"github.com/ajitpratap0/alphadata/pkg/config"
	"github.com/ajitpratap0/alphadata/pkg/errors"
)

// FromConfig builds the loader described by cfg together with a closer for
// the client resources it holds.
func FromConfig(ctx context.Context, cfg config.DatasetsConfig, opts ...Option) (Loader, io.Closer, error) {
	opts = append([]Option{WithIndexColumn(cfg.IndexColumn), WithMmap(cfg.UseMmap)}, opts...)

	switch cfg.Source {
	case config.SourceFile, "":
		return NewFileLoader(cfg.Root, opts...), nopCloser{}, nil
	case config.SourceS3:
		store, err := NewS3Store(ctx, cfg.Bucket, cfg.Region)
		if err != nil {
			return nil, nil, err
		}
		return NewObjectLoader(store, cfg.Prefix, opts...), nopCloser{}, nil
	case config.SourceGCS:
		store, err := NewGCSStore(ctx, cfg.Bucket, cfg.CredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		return NewObjectLoader(store, cfg.Prefix, opts...), store, nil
	default:
		return nil, nil, errors.Newf(errors.ErrorTypeConfig, "unknown dataset source %q", cfg.Source)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
