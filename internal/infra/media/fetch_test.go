package media

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type progressRecorder struct {
	received []int64
	totals   []int64
}

func (r *progressRecorder) record(received, total int64) {
	r.received = append(r.received, received)
	r.totals = append(r.totals, total)
}

func TestFetch_HTTP(t *testing.T) {
	payload := bytes.Repeat([]byte("a"), chunkSize*3+10)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/music.mp3", r.URL.Path)
		http.ServeContent(w, r, "music.mp3", zeroTime, bytes.NewReader(payload))
	}))
	defer server.Close()

	var rec progressRecorder
	data, err := NewFetcher(0).Fetch(context.Background(), server.URL+"/music.mp3", rec.record)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	require.NotEmpty(t, rec.received)
	assert.IsNonDecreasing(t, rec.received)
	assert.Equal(t, int64(len(payload)), rec.received[len(rec.received)-1])
	assert.Equal(t, int64(len(payload)), rec.totals[len(rec.totals)-1])
}

func TestFetch_HTTPStatus(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := NewFetcher(0).Fetch(context.Background(), server.URL+"/missing.mp3", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestFetch_File(t *testing.T) {
	payload := []byte("ID3 not really an mp3")
	path := filepath.Join(t.TempDir(), "music.mp3")
	require.NoError(t, os.WriteFile(path, payload, 0o600))

	tests := []struct {
		name    string
		locator string
	}{
		{name: "plain path", locator: path},
		{name: "file url", locator: "file://" + path},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec progressRecorder
			data, err := NewFetcher(0).Fetch(context.Background(), tt.locator, rec.record)
			require.NoError(t, err)
			assert.Equal(t, payload, data)
			assert.Equal(t, []int64{int64(len(payload))}, rec.received)
			assert.Equal(t, []int64{int64(len(payload))}, rec.totals)
		})
	}
}

func TestFetch_MissingFile(t *testing.T) {
	_, err := NewFetcher(0).Fetch(context.Background(), filepath.Join(t.TempDir(), "nope.mp3"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestFetch_Cancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "music.mp3")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFetcher(0).Fetch(ctx, path, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
