// Command bingo plays a round of Meeting Bingo against recorded or piped
// meeting audio. Audio is streamed to the configured live transcription
// service; every finalized phrase is matched against the card and the
// command exits at the first bingo or when the audio runs out.
//
// Flags:
//
//	--category  corporate, agile or tech (default: corporate)
//	--daily     play today's shared card
//	--audio     raw 16-bit little-endian mono PCM file, "-" for stdin (default: -)
//
// The API key and service settings come from the usual configuration
// (DEEPGRAM_API_KEY, TRANSCRIBE_*).
//
// Exit codes: 0 = bingo, 1 = error, 2 = audio ended without a bingo.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/meeting-bingo/internal/card"
	"github.com/robalobadob/meeting-bingo/internal/config"
	"github.com/robalobadob/meeting-bingo/internal/daily"
	"github.com/robalobadob/meeting-bingo/internal/game"
	"github.com/robalobadob/meeting-bingo/internal/transcribe"
	"github.com/robalobadob/meeting-bingo/internal/transcribe/stream"
	"github.com/robalobadob/meeting-bingo/internal/vocab"
)

var errAudioDone = errors.New("audio exhausted")

func main() {
	category := flag.String("category", string(vocab.Corporate), "word category")
	dailyFlag := flag.Bool("daily", false, "play today's shared card")
	audioPath := flag.String("audio", "-", `PCM audio file, "-" for stdin`)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if lvl, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := vocab.Init(); err != nil {
		log.Fatal().Err(err).Msg("load word lists")
	}

	var opts []game.Option
	if *dailyFlag {
		opts = append(opts, game.WithDaily(daily.DateKey(time.Now()), cfg.Daily.Salt))
	}
	g, err := game.New(vocab.CategoryID(*category), opts...)
	if err != nil {
		log.Fatal().Err(err).Str("category", *category).Msg("start game")
	}
	printCard(os.Stdout, g.Snapshot().Card)

	rec := stream.New(cfg.Transcribe.APIKey, openAudioOnce(*audioPath),
		stream.WithEndpoint(cfg.Transcribe.Endpoint),
		stream.WithModel(cfg.Transcribe.Model),
		stream.WithLanguage(cfg.Transcribe.Language),
		stream.WithSampleRate(cfg.Transcribe.SampleRate),
		stream.WithKeywords(g.Snapshot().Card.Words),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		mu       sync.Mutex
		started  bool
		once     sync.Once
		finished = make(chan struct{})
	)
	finish := func() { once.Do(func() { close(finished) }) }

	listener := transcribe.NewListener(rec, func(u transcribe.Update) {
		mu.Lock()
		defer mu.Unlock()
		if u.IsListening {
			started = true
		}
		if u.InterimText != "" {
			log.Debug().Str("interim", u.InterimText).Msg("hearing")
		}
		for _, w := range g.IngestFinal(u.FinalText) {
			fmt.Fprintf(os.Stdout, "heard %q\n", w)
		}
		if g.Status() == game.StatusWon || (started && !u.IsListening) {
			finish()
		}
	})

	if err := listener.Start(ctx); err != nil {
		if kind, ok := transcribe.KindOf(err); ok {
			log.Fatal().Err(err).Msg(kind.Message())
		}
		log.Fatal().Err(err).Msg("start listening")
	}

	select {
	case <-finished:
	case <-ctx.Done():
	}
	listener.Stop()

	mu.Lock()
	snap := g.Snapshot()
	mu.Unlock()

	if st := listener.State(); st.Err != nil && !errors.Is(st.Err, errAudioDone) {
		log.Warn().Err(st.Err).Msg("listening ended with an error")
	}
	if snap.Status != game.StatusWon {
		fmt.Fprintf(os.Stdout, "no bingo: %d/25 squares after %s\n", snap.FilledCount, time.Duration(snap.ElapsedMs)*time.Millisecond)
		os.Exit(2)
	}
	printCard(os.Stdout, snap.Card)
	fmt.Fprintf(os.Stdout, "BINGO! %s %d (%s) in %s\n",
		snap.WinningLine.Type, snap.WinningLine.Index+1,
		strings.Join(snap.WinningLine.Squares, ", "),
		time.Duration(snap.ElapsedMs)*time.Millisecond)
}

// openAudioOnce hands out the audio for the first stream only; a file is
// played once, so any restart after it ends fails and stops the listener.
func openAudioOnce(path string) stream.AudioSource {
	var mu sync.Mutex
	opened := false
	return func(context.Context) (io.ReadCloser, error) {
		mu.Lock()
		defer mu.Unlock()
		if opened {
			return nil, errAudioDone
		}
		opened = true
		if path == "-" {
			return stream.Interruptible(os.Stdin), nil
		}
		return os.Open(path)
	}
}

func printCard(w io.Writer, c card.Card) {
	for row := 0; row < card.Size; row++ {
		cells := make([]string, 0, card.Size)
		for col := 0; col < card.Size; col++ {
			sq := c.Squares[row][col]
			mark := " "
			if sq.IsFilled {
				mark = "x"
			}
			cells = append(cells, fmt.Sprintf("[%s] %-18s", mark, sq.Word))
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, " "), " "))
	}
	fmt.Fprintln(w)
}
