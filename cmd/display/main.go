// Package main provides the lyric display client entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"github.com/mattn/go-runewidth"

	apiconnect "github.com/osa030/lyricbox/internal/api/connect"
	"github.com/osa030/lyricbox/internal/app/coordinator"
	"github.com/osa030/lyricbox/internal/app/lyricsview"
	"github.com/osa030/lyricbox/internal/domain/progress"
	"github.com/osa030/lyricbox/internal/domain/track"
)

var (
	app    = kingpin.New("lyricbox-display", "lyricbox synced lyric display")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Player token (or set LYRICBOX_API_TOKEN env)").Envar("LYRICBOX_API_TOKEN").String()
	width  = app.Flag("width", "Maximum line width in terminal cells").Default("60").Int()
	follow = app.Flag("follow", "Print surrounding lines when the highlight moves").Default("true").Bool()
	around = app.Flag("context", "Lines shown around the active one while following").Default("1").Int()
)

const barWidth = 30

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	client := apiconnect.NewPlayerClient(http.DefaultClient, *server, *token)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nUnsubscribing...")
		cancel()
	}()

	stream, err := client.Subscribe(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer stream.Close()

	fmt.Println("Subscribed to player state. Press Ctrl+C to exit.")

	d := &display{tracker: lyricsview.NewTracker(nil, *follow)}
	for stream.Receive() {
		d.render(stream.Notification().State)
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		fmt.Printf("Stream error: %v\n", err)
		os.Exit(1)
	}
}

type display struct {
	tracker   *lyricsview.Tracker
	current   track.Track
	loading   bool
	loadError string
	state     string
}

func (d *display) render(s coordinator.ViewState) {
	if s.IsLoading != d.loading || s.LoadError != d.loadError {
		d.loading, d.loadError = s.IsLoading, s.LoadError
		switch {
		case s.HasFailed():
			fmt.Printf("\n✖ Load failed: %s\n", s.LoadError)
		case s.IsLoading:
			fmt.Println("\n⏳ Loading...")
		}
	}

	if t, ok := s.Track.Get(); ok && t != d.current {
		d.current = t
		d.tracker.SetDocument(t.Lyrics())
		fmt.Printf("\n=== %s / %s (%s) ===\n", t.Title, t.Singer, t.Album)
	}

	if state := s.PlayerState.String(); state != d.state {
		d.state = state
		fmt.Printf("[%s]\n", formatState(state, s.IsSeeking))
	}

	h, changed := d.tracker.Update(s.CurrentTime())
	if p, ok := s.PlaybackProgress.Get(); ok && changed {
		fmt.Printf("%s %s\n", bar(p, s.BufferProgress.OrEmpty()), formatTime(p))
	}
	if !changed {
		return
	}

	index, ok := h.Line.Get()
	if !ok {
		return
	}
	lines := d.tracker.Document().Lines()
	if _, ok := h.ScrollTo.Get(); !ok {
		fmt.Printf("▶ %s\n", truncate(lines[index].Text))
		return
	}
	from := max(0, index-*around)
	to := min(len(lines)-1, index+*around)
	for i := from; i <= to; i++ {
		marker := "  "
		if i == index {
			marker = "▶ "
		}
		fmt.Printf("%s%s\n", marker, truncate(lines[i].Text))
	}
}

func formatState(state string, seeking bool) string {
	if seeking {
		return "⇆ seeking"
	}
	switch state {
	case "playing":
		return "▶️  playing"
	case "paused":
		return "⏸  paused"
	default:
		return "⏹  " + state
	}
}

func formatTime(p progress.TimeProgress) string {
	return fmt.Sprintf("%s / %s", clock(p.Current), clock(p.Total))
}

func clock(seconds float64) string {
	s := int(seconds)
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

// bar draws playback over buffered progress: '#' played, '-' buffered, '.' missing.
func bar(played, buffered progress.TimeProgress) string {
	p := int(played.Progress() * barWidth)
	b := max(p, int(buffered.Progress()*barWidth))
	return "[" + strings.Repeat("#", p) + strings.Repeat("-", b-p) + strings.Repeat(".", barWidth-b) + "]"
}

func truncate(text string) string {
	return runewidth.Truncate(text, *width, "…")
}
