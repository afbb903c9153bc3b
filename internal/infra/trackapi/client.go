// Package trackapi provides track fetch services: the remote JSON endpoint and a local descriptor file.
package trackapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/lyricbox/internal/domain/track"
)

// ErrNotFound is returned when the service has no track descriptor.
var ErrNotFound = errors.New("track not found")

const maxDescriptorSize = 4 << 20

// Config represents track API client configuration.
type Config struct {
	BaseURL   string `mapstructure:"base_url" default:"https://grepp-programmers-challenges.s3.ap-northeast-2.amazonaws.com" validate:"required,url"`
	Path      string `mapstructure:"path" default:"2020-flo/song.json" validate:"required"`
	TimeoutMs int    `mapstructure:"timeout_ms" default:"10000" validate:"gte=0"`
}

// Client is a track API client.
type Client struct {
	baseURL    string
	path       string
	httpClient *http.Client

	// Last descriptor and its validator, reused on 304 Not Modified
	cached  *track.Track
	etag    string
	cacheMu sync.RWMutex
}

// New creates a new track API client.
func New(cfg Config) (*Client, error) {
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid track api config")
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		path:       strings.TrimPrefix(cfg.Path, "/"),
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond},
	}, nil
}

// Fetch retrieves the track descriptor. Every call reaches the service; the
// previous descriptor is reused only when the service answers 304 Not Modified.
func (c *Client) Fetch(ctx context.Context) (track.Track, error) {
	reqURL := c.baseURL + "/" + c.path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return track.Track{}, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")

	c.cacheMu.RLock()
	cached, etag := c.cached, c.etag
	c.cacheMu.RUnlock()
	if cached != nil && etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return track.Track{}, errors.Wrap(err, "failed to execute request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && cached != nil {
		zlog.Debug().Msgf("trackapi: not modified: title=%s etag=%s", cached.Title, etag)
		return *cached, nil
	}
	if resp.StatusCode == http.StatusNotFound {
		return track.Track{}, errors.Wrapf(ErrNotFound, "GET %s", reqURL)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return track.Track{}, errors.Newf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDescriptorSize))
	if err != nil {
		return track.Track{}, errors.Wrap(err, "failed to read response body")
	}

	t, err := track.Decode(body)
	if err != nil {
		return track.Track{}, err
	}
	t.MediaURL = c.resolve(t.MediaURL)
	t.ImageURL = c.resolve(t.ImageURL)

	c.cacheMu.Lock()
	c.cached = &t
	c.etag = resp.Header.Get("ETag")
	c.cacheMu.Unlock()

	zlog.Info().Msgf("trackapi: fetched track: title=%s duration=%s", t.Title, t.Duration)
	return t, nil
}

// resolve turns a service-relative locator into an absolute URL.
func (c *Client) resolve(locator string) string {
	if locator == "" || strings.Contains(locator, "://") {
		return locator
	}
	return fmt.Sprintf("%s/%s", c.baseURL, strings.TrimPrefix(locator, "/"))
}
