package trackapi

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/lyricbox/internal/domain/track"
)

// FileConfig represents file source configuration.
type FileConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// FileSource reads a track descriptor from disk on every fetch.
type FileSource struct {
	path string
}

// NewFileSource creates a file source.
func NewFileSource(cfg FileConfig) (*FileSource, error) {
	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid file source config")
	}
	return &FileSource{path: cfg.Path}, nil
}

// Fetch reads and decodes the descriptor. Relative locators resolve against its directory.
func (s *FileSource) Fetch(ctx context.Context) (track.Track, error) {
	if err := ctx.Err(); err != nil {
		return track.Track{}, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return track.Track{}, errors.Wrapf(ErrNotFound, "read %s", s.path)
	}
	if err != nil {
		return track.Track{}, errors.Wrap(err, "failed to read track descriptor")
	}

	t, err := track.Decode(data)
	if err != nil {
		return track.Track{}, err
	}

	dir := filepath.Dir(s.path)
	t.MediaURL = resolvePath(dir, t.MediaURL)
	t.ImageURL = resolvePath(dir, t.ImageURL)

	zlog.Debug().Msgf("trackapi: loaded descriptor: path=%s title=%s", s.path, t.Title)
	return t, nil
}

func resolvePath(dir, locator string) string {
	if locator == "" || strings.Contains(locator, "://") || filepath.IsAbs(locator) {
		return locator
	}
	return filepath.Join(dir, locator)
}
