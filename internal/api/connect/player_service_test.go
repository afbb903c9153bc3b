package connect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/lyricbox/internal/app/coordinator"
	"github.com/osa030/lyricbox/internal/app/notification"
	"github.com/osa030/lyricbox/internal/app/playback"
	"github.com/osa030/lyricbox/internal/domain/progress"
	"github.com/osa030/lyricbox/internal/domain/track"
)

type call struct {
	intent string
	value  float64
}

type fakeController struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (c *fakeController) record(intent string, value float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call{intent: intent, value: value})
	return c.err
}

func (c *fakeController) recorded() []call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]call(nil), c.calls...)
}

func (c *fakeController) FetchTrack() error        { return c.record(IntentFetch, 0) }
func (c *fakeController) Play() error              { return c.record(IntentPlay, 0) }
func (c *fakeController) Pause() error             { return c.record(IntentPause, 0) }
func (c *fakeController) BeginSeeking() error      { return c.record(IntentBeginSeeking, 0) }
func (c *fakeController) EndSeeking() error        { return c.record(IntentEndSeeking, 0) }
func (c *fakeController) Seek(f float64) error     { return c.record(IntentSeek, f) }
func (c *fakeController) SeekTime(s float64) error { return c.record(IntentSeekTime, s) }

func newTestServer(t *testing.T, controller Controller, broadcaster Broadcaster, token string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	path, handler := NewPlayerServiceHandler(NewPlayerService(controller, broadcaster), token)
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestPlayerService_Command(t *testing.T) {
	controller := &fakeController{}
	server := newTestServer(t, controller, notification.NewManager(4), "")
	client := NewPlayerClient(server.Client(), server.URL, "")

	ctx := context.Background()
	require.NoError(t, client.Send(ctx, IntentFetch, 0))
	require.NoError(t, client.Send(ctx, IntentPlay, 0))
	require.NoError(t, client.Send(ctx, IntentBeginSeeking, 0))
	require.NoError(t, client.Send(ctx, IntentSeek, 0.25))
	require.NoError(t, client.Send(ctx, IntentEndSeeking, 0))
	require.NoError(t, client.Send(ctx, IntentSeekTime, 85.3))
	require.NoError(t, client.Send(ctx, IntentPause, 0))

	assert.Equal(t, []call{
		{intent: IntentFetch},
		{intent: IntentPlay},
		{intent: IntentBeginSeeking},
		{intent: IntentSeek, value: 0.25},
		{intent: IntentEndSeeking},
		{intent: IntentSeekTime, value: 85.3},
		{intent: IntentPause},
	}, controller.recorded())
}

func TestPlayerService_CommandErrors(t *testing.T) {
	tests := []struct {
		name          string
		serverToken   string
		clientToken   string
		intent        string
		controllerErr error
		code          connect.Code
	}{
		{name: "unknown intent", intent: "rewind", code: connect.CodeInvalidArgument},
		{name: "missing intent", intent: "", code: connect.CodeInvalidArgument},
		{name: "missing token", serverToken: "secret", intent: IntentPlay, code: connect.CodeUnauthenticated},
		{name: "wrong token", serverToken: "secret", clientToken: "guess", intent: IntentPlay, code: connect.CodeUnauthenticated},
		{name: "coordinator closed", intent: IntentPlay, controllerErr: coordinator.ErrClosed, code: connect.CodeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			controller := &fakeController{err: tt.controllerErr}
			server := newTestServer(t, controller, notification.NewManager(4), tt.serverToken)
			client := NewPlayerClient(server.Client(), server.URL, tt.clientToken)

			err := client.Send(context.Background(), tt.intent, 0)
			require.Error(t, err)
			assert.Equal(t, tt.code, connect.CodeOf(err))
		})
	}
}

func TestPlayerService_CommandWithToken(t *testing.T) {
	controller := &fakeController{}
	server := newTestServer(t, controller, notification.NewManager(4), "secret")
	client := NewPlayerClient(server.Client(), server.URL, "secret")

	require.NoError(t, client.Send(context.Background(), IntentPlay, 0))
	assert.Len(t, controller.recorded(), 1)
}

func TestPlayerService_Subscribe(t *testing.T) {
	manager := notification.NewManager(8)
	manager.Publish(coordinator.ViewState{IsLoading: true})

	server := newTestServer(t, &fakeController{}, manager, "secret")
	client := NewPlayerClient(server.Client(), server.URL, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := client.Subscribe(ctx)
	require.NoError(t, err)
	defer stream.Close()

	require.True(t, stream.Receive(), "initial snapshot: %v", stream.Err())
	first := stream.Notification()
	assert.Equal(t, uint64(1), first.SequenceNo)
	assert.True(t, first.State.IsLoading)

	require.Eventually(t, func() bool { return manager.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)
	manager.Publish(coordinator.ViewState{
		Track:            mo.Some(track.Track{Title: "Title", MediaURL: "music.mp3", Duration: 198 * time.Second}),
		PlaybackProgress: mo.Some(progress.New(85.3, 198)),
		PlayerState:      playback.StatePlaying,
	})

	require.True(t, stream.Receive(), "published snapshot: %v", stream.Err())
	second := stream.Notification()
	assert.Equal(t, uint64(2), second.SequenceNo)
	assert.Equal(t, playback.StatePlaying, second.State.PlayerState)
	assert.Equal(t, "Title", second.State.Track.MustGet().Title)
	assert.Equal(t, progress.New(85.3, 198), second.State.PlaybackProgress.MustGet())

	cancel()
	require.Eventually(t, func() bool { return manager.SubscriberCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestWire_Notification(t *testing.T) {
	in := notification.Notification{
		SequenceNo: 42,
		State: coordinator.ViewState{
			Track: mo.Some(track.Track{
				Singer:    "Singer",
				Album:     "Album",
				Title:     "Title",
				Duration:  198 * time.Second,
				ImageURL:  "cover.jpg",
				MediaURL:  "music.mp3",
				RawLyrics: "[00:16:200]line",
			}),
			BufferProgress: mo.Some(progress.New(198, 198)),
			PlayerState:    playback.StatePaused,
			IsSeeking:      true,
			LoadError:      "boom",
		},
	}

	msg, err := EncodeNotification(in)
	require.NoError(t, err)
	assert.NotContains(t, msg.Fields, "playback_progress", "absent optionals are omitted")

	out, err := DecodeNotification(msg)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestWire_DecodeErrors(t *testing.T) {
	badState, err := structpb.NewStruct(map[string]any{"player_state": "rewinding"})
	require.NoError(t, err)
	_, err = DecodeNotification(badState)
	assert.ErrorContains(t, err, "unknown player state")

	badType, err := structpb.NewStruct(map[string]any{"player_state": "paused", "is_loading": "yes"})
	require.NoError(t, err)
	_, err = DecodeNotification(badType)
	assert.ErrorContains(t, err, "failed to decode view state")

	badValue, err := structpb.NewStruct(map[string]any{"intent": "seek", "value": "half"})
	require.NoError(t, err)
	_, err = DecodeCommand(badValue)
	assert.ErrorContains(t, err, "failed to decode command")
}
