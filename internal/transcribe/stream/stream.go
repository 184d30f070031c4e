// Package stream provides a transcribe.Recognizer backed by a Deepgram-style
// live transcription websocket.
//
// Audio is read from an AudioSource (raw 16-bit little-endian PCM) and sent
// as binary frames; the service answers with JSON "Results" messages carrying
// interim and final transcripts. When the audio runs out, a CloseStream
// message asks the service to flush and close, which ends the stream.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/meeting-bingo/internal/transcribe"
)

const (
	DefaultEndpoint   = "wss://api.deepgram.com/v1/listen"
	defaultModel      = "nova-3"
	defaultLanguage   = "en-US"
	defaultSampleRate = 16000

	chunkSize    = 3200 // 100ms of 16kHz mono s16le
	closeTimeout = 5 * time.Second
)

// AudioSource opens the audio for one recognition run.
type AudioSource func(ctx context.Context) (io.ReadCloser, error)

// Interruptible wraps r so that Close unblocks a pending Read, which closing
// os.Stdin or a NopCloser does not do. Stop relies on Close to end the
// writer. The copying goroutine exits at r's next Read return.
func Interruptible(r io.Reader) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		_, err := io.Copy(pw, r)
		pw.CloseWithError(err)
	}()
	return pr
}

// Option configures a Recognizer.
type Option func(*Recognizer)

// WithEndpoint overrides the websocket endpoint.
func WithEndpoint(endpoint string) Option {
	return func(r *Recognizer) { r.endpoint = endpoint }
}

// WithModel sets the recognition model.
func WithModel(model string) Option {
	return func(r *Recognizer) { r.model = model }
}

// WithLanguage sets the BCP-47 recognition language.
func WithLanguage(language string) Option {
	return func(r *Recognizer) { r.language = language }
}

// WithSampleRate sets the PCM sample rate in Hz.
func WithSampleRate(rate int) Option {
	return func(r *Recognizer) { r.sampleRate = rate }
}

// WithKeywords boosts recognition of the given words, e.g. the words on a card.
func WithKeywords(words []string) Option {
	return func(r *Recognizer) { r.keywords = append([]string(nil), words...) }
}

// Recognizer implements transcribe.Recognizer.
type Recognizer struct {
	apiKey     string
	audio      AudioSource
	endpoint   string
	model      string
	language   string
	sampleRate int
	keywords   []string
}

// New creates a Recognizer. An empty apiKey or nil audio makes it unsupported.
func New(apiKey string, audio AudioSource, opts ...Option) *Recognizer {
	r := &Recognizer{
		apiKey:     apiKey,
		audio:      audio,
		endpoint:   DefaultEndpoint,
		model:      defaultModel,
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Supported reports whether credentials and audio are configured.
func (r *Recognizer) Supported() bool {
	return r.apiKey != "" && r.audio != nil
}

// buildURL constructs the streaming endpoint URL.
func (r *Recognizer) buildURL() (string, error) {
	u, err := url.Parse(r.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("model", r.model)
	q.Set("language", r.language)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(r.sampleRate))
	q.Set("channels", "1")
	q.Set("punctuate", "true")
	q.Set("interim_results", "true")
	for _, kw := range r.keywords {
		q.Add("keywords", kw)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Start dials the service and begins streaming audio.
func (r *Recognizer) Start(ctx context.Context) (transcribe.Stream, error) {
	if !r.Supported() {
		return nil, &transcribe.Error{Kind: transcribe.ServiceNotAllowed, Err: transcribe.ErrUnsupported}
	}
	wsURL, err := r.buildURL()
	if err != nil {
		return nil, &transcribe.Error{Kind: transcribe.Network, Err: fmt.Errorf("build url: %w", err)}
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+r.apiKey)
	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		kind := transcribe.Network
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			kind = transcribe.NotAllowed
		}
		return nil, &transcribe.Error{Kind: kind, Err: fmt.Errorf("dial: %w", err)}
	}

	audio, err := r.audio(ctx)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "audio unavailable")
		return nil, &transcribe.Error{Kind: transcribe.AudioCapture, Err: err}
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := &session{
		conn:   conn,
		audio:  audio,
		events: make(chan transcribe.Event, 64),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	s.wg.Add(2)
	go s.readLoop(runCtx)
	go s.writeLoop(runCtx)
	return s, nil
}

// response is the subset of a Results message the recognizer reads.
type response struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// parseResponse turns a message into a result event. ok is false for
// messages that carry no transcript.
func parseResponse(data []byte) (transcribe.Event, bool) {
	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return transcribe.Event{}, false
	}
	if resp.Type != "Results" || len(resp.Channel.Alternatives) == 0 {
		return transcribe.Event{}, false
	}
	text := resp.Channel.Alternatives[0].Transcript
	if text == "" {
		return transcribe.Event{}, false
	}
	return transcribe.Result(text, resp.IsFinal), true
}

// session is one live websocket run. It implements transcribe.Stream.
type session struct {
	conn   *websocket.Conn
	audio  io.ReadCloser
	events chan transcribe.Event
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func (s *session) Events() <-chan transcribe.Event { return s.events }

// Stop stops sending audio and asks the service to flush. Results already in
// flight are still delivered; the connection is force-closed after a grace
// period.
func (s *session) Stop() error {
	s.once.Do(func() {
		close(s.done)
		_ = s.audio.Close()
		go func() {
			timer := time.NewTimer(closeTimeout)
			defer timer.Stop()
			finished := make(chan struct{})
			go func() { s.wg.Wait(); close(finished) }()
			select {
			case <-finished:
			case <-timer.C:
				s.cancel()
				_ = s.conn.CloseNow()
			}
		}()
	})
	return nil
}

func (s *session) send(ev transcribe.Event) {
	s.events <- ev
}

// writeLoop pumps audio frames until the source is drained or Stop is called.
func (s *session) writeLoop(ctx context.Context) {
	defer s.wg.Done()
	buf := make([]byte, chunkSize)
	for {
		select {
		case <-s.done:
			s.closeStream(ctx)
			return
		default:
		}
		n, err := s.audio.Read(buf)
		if n > 0 {
			if werr := s.conn.Write(ctx, websocket.MessageBinary, buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				select {
				case <-s.done:
				default:
					log.Warn().Err(err).Msg("stream: audio read failed")
				}
			}
			s.closeStream(ctx)
			return
		}
	}
}

func (s *session) closeStream(ctx context.Context) {
	_ = s.conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`))
}

// readLoop dispatches results until the connection closes, then emits End.
func (s *session) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.events)
	defer s.cancel()

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			stopping := false
			select {
			case <-s.done:
				stopping = true
			default:
			}
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && !stopping && ctx.Err() == nil {
				s.send(transcribe.Failure(transcribe.Network, err))
			}
			_ = s.conn.CloseNow()
			s.send(transcribe.End())
			return
		}
		if ev, ok := parseResponse(msg); ok {
			s.send(ev)
		}
	}
}
