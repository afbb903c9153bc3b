// Package source builds the track fetch service selected by configuration.
package source

import (
	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/lyricbox/internal/app/coordinator"
	"github.com/osa030/lyricbox/internal/infra/config"
	"github.com/osa030/lyricbox/internal/infra/trackapi"
)

// Source type names accepted in configuration.
const (
	TypeHTTP = "http"
	TypeFile = "file"
)

// NewFromConfig creates the fetcher for cfg.Type from its settings.
func NewFromConfig(cfg config.SourceConfig) (coordinator.Fetcher, error) {
	zlog.Debug().Msgf("source: creating track source: type=%s settings=%+v", cfg.Type, cfg.Settings)

	switch cfg.Type {
	case TypeHTTP:
		var c trackapi.Config
		if err := mapstructure.Decode(cfg.Settings, &c); err != nil {
			return nil, errors.Wrap(err, "failed to decode http source settings")
		}
		client, err := trackapi.New(c)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create http source")
		}
		zlog.Info().Msgf("source: using track api: base_url=%s path=%s", c.BaseURL, c.Path)
		return client, nil

	case TypeFile:
		var c trackapi.FileConfig
		if err := mapstructure.Decode(cfg.Settings, &c); err != nil {
			return nil, errors.Wrap(err, "failed to decode file source settings")
		}
		fs, err := trackapi.NewFileSource(c)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create file source")
		}
		zlog.Info().Msgf("source: using descriptor file: path=%s", c.Path)
		return fs, nil

	default:
		return nil, errors.Newf("unsupported source type: %s", cfg.Type)
	}
}
