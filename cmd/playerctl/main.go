// Package main provides the player control CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/lyricbox/internal/api/connect"
	"github.com/osa030/lyricbox/internal/app/lyricsview"
	"github.com/osa030/lyricbox/internal/app/notification"
)

var (
	app     = kingpin.New("lyricbox-playerctl", "lyricbox player control client")
	server  = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token   = app.Flag("token", "Player token (or set LYRICBOX_API_TOKEN env)").Envar("LYRICBOX_API_TOKEN").String()
	timeout = app.Flag("timeout", "Request timeout").Default("10s").Duration()

	// status command
	statusCmd = app.Command("status", "Show the current player state")

	// fetch command
	fetchCmd = app.Command("fetch", "Load the track from the track service")

	// play command
	playCmd = app.Command("play", "Start playback")

	// pause command
	pauseCmd = app.Command("pause", "Pause playback")

	// seek command
	seekCmd      = app.Command("seek", "Jump to a fraction of the track")
	seekFraction = seekCmd.Arg("fraction", "Position in [0,1]").Required().Float64()

	// seek-time command
	seekTimeCmd     = app.Command("seek-time", "Jump to a time in seconds")
	seekTimeSeconds = seekTimeCmd.Arg("seconds", "Position in seconds").Required().Float64()

	// tap command
	tapCmd  = app.Command("tap", "Jump to the start of a lyric line")
	tapLine = tapCmd.Arg("line", "Line index (0-based)").Required().Int()

	// drag command
	dragCmd      = app.Command("drag", "Simulate a slider drag ending at a fraction")
	dragFraction = dragCmd.Arg("fraction", "Position in [0,1]").Required().Float64()
	dragHold     = dragCmd.Flag("hold", "Time spent dragging").Default("500ms").Duration()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Create client
	client := apiconnect.NewPlayerClient(http.DefaultClient, *server, *token)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout+*dragHold)
	defer cancel()

	// Execute command
	var err error
	switch command {
	case statusCmd.FullCommand():
		err = status(ctx, client)
	case fetchCmd.FullCommand():
		err = client.Send(ctx, apiconnect.IntentFetch, 0)
	case playCmd.FullCommand():
		err = client.Send(ctx, apiconnect.IntentPlay, 0)
	case pauseCmd.FullCommand():
		err = client.Send(ctx, apiconnect.IntentPause, 0)
	case seekCmd.FullCommand():
		err = client.Send(ctx, apiconnect.IntentSeek, *seekFraction)
	case seekTimeCmd.FullCommand():
		err = client.Send(ctx, apiconnect.IntentSeekTime, *seekTimeSeconds)
	case tapCmd.FullCommand():
		err = tap(ctx, client, *tapLine)
	case dragCmd.FullCommand():
		err = drag(ctx, client, *dragFraction, *dragHold)
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// current reads the snapshot every new subscriber receives first.
func current(ctx context.Context, client *apiconnect.PlayerClient) (notification.Notification, error) {
	stream, err := client.Subscribe(ctx)
	if err != nil {
		return notification.Notification{}, err
	}
	defer stream.Close()

	if !stream.Receive() {
		if err := stream.Err(); err != nil {
			return notification.Notification{}, err
		}
		return notification.Notification{}, fmt.Errorf("server sent no state")
	}
	return stream.Notification(), nil
}

func status(ctx context.Context, client *apiconnect.PlayerClient) error {
	n, err := current(ctx, client)
	if err != nil {
		return err
	}
	s := n.State

	fmt.Println("\n=== CURRENT PLAYER STATE ===")
	fmt.Printf("Sequence: %d\n", n.SequenceNo)
	fmt.Printf("State: %s\n", s.PlayerState)
	fmt.Printf("Loading: %v\n", s.IsLoading)
	fmt.Printf("Seeking: %v\n", s.IsSeeking)
	if s.HasFailed() {
		fmt.Printf("Load Error: %s\n", s.LoadError)
	}

	if t, ok := s.Track.Get(); ok {
		fmt.Println("\nTrack:")
		fmt.Printf("  Title: %s\n", t.Title)
		fmt.Printf("  Singer: %s\n", t.Singer)
		fmt.Printf("  Album: %s\n", t.Album)
		fmt.Printf("  Duration: %s\n", t.Duration)
		fmt.Printf("  Lyric Lines: %d\n", t.Lyrics().Len())
	}
	if p, ok := s.PlaybackProgress.Get(); ok {
		fmt.Printf("\nPosition: %.1fs / %.1fs (%.0f%%)\n", p.Current, p.Total, p.Progress()*100)
	}
	if p, ok := s.BufferProgress.Get(); ok {
		fmt.Printf("Buffered: %.1fs / %.1fs (%.0f%%)\n", p.Current, p.Total, p.Progress()*100)
	}
	return nil
}

func tap(ctx context.Context, client *apiconnect.PlayerClient, line int) error {
	n, err := current(ctx, client)
	if err != nil {
		return err
	}
	t, ok := n.State.Track.Get()
	if !ok {
		return fmt.Errorf("no track loaded")
	}

	seconds, ok := lyricsview.NewTracker(t.Lyrics(), false).TapLine(line).Get()
	if !ok {
		return fmt.Errorf("line %d does not exist", line)
	}
	fmt.Printf("Seeking to line %d at %.3fs\n", line, seconds)
	return client.Send(ctx, apiconnect.IntentSeekTime, seconds)
}

// drag replays the intents a slider produces: grab, move, release.
func drag(ctx context.Context, client *apiconnect.PlayerClient, fraction float64, hold time.Duration) error {
	if err := client.Send(ctx, apiconnect.IntentBeginSeeking, 0); err != nil {
		return err
	}
	if err := client.Send(ctx, apiconnect.IntentSeek, fraction); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(hold):
	}
	return client.Send(ctx, apiconnect.IntentEndSeeking, 0)
}
