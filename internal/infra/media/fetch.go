// Package media loads encoded audio into playable items backed by beep.
package media

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrUnavailable is returned when the media bytes cannot be retrieved.
var ErrUnavailable = errors.New("media unavailable")

const chunkSize = 32 * 1024

// ProgressFunc receives the number of bytes read so far and the expected total
// (<= 0 when the total is unknown).
type ProgressFunc func(received, total int64)

// Fetcher retrieves media bytes from http(s) URLs or local files.
type Fetcher struct {
	httpClient *http.Client
}

// NewFetcher creates a fetcher. A zero timeout disables the HTTP timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch reads the whole media at locator, reporting progress after every chunk.
func (f *Fetcher) Fetch(ctx context.Context, locator string, progress ProgressFunc) ([]byte, error) {
	if progress == nil {
		progress = func(int64, int64) {}
	}
	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		return f.fetchHTTP(ctx, locator, progress)
	}
	return f.fetchFile(ctx, strings.TrimPrefix(locator, "file://"), progress)
}

func (f *Fetcher) fetchHTTP(ctx context.Context, locator string, progress ProgressFunc) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to request media"), ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Mark(errors.Newf("unexpected status: %d", resp.StatusCode), ErrUnavailable)
	}

	return readAll(ctx, resp.Body, resp.ContentLength, progress)
}

func (f *Fetcher) fetchFile(ctx context.Context, path string, progress ProgressFunc) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to open %s", path), ErrUnavailable)
	}
	defer file.Close()

	total := int64(-1)
	if info, err := file.Stat(); err == nil {
		total = info.Size()
	}
	return readAll(ctx, file, total, progress)
}

func readAll(ctx context.Context, r io.Reader, total int64, progress ProgressFunc) ([]byte, error) {
	var data []byte
	if total > 0 {
		data = make([]byte, 0, total)
	}

	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "fetch cancelled")
		}

		n, err := r.Read(buf)
		if n > 0 {
			data = append(data, buf[:n]...)
			progress(int64(len(data)), total)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "failed to read media"), ErrUnavailable)
		}
	}

	if total <= 0 {
		// Unknown length: report completion against what was actually read.
		progress(int64(len(data)), int64(len(data)))
	}
	return data, nil
}
