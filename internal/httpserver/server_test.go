package httpserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/meeting-bingo/internal/card"
	"github.com/robalobadob/meeting-bingo/internal/game"
	"github.com/robalobadob/meeting-bingo/internal/store"
)

var testSecret = []byte("test-secret")

func newTestServer(t *testing.T, st store.Store) (*Server, *httptest.Server) {
	t.Helper()
	if st == nil {
		st = store.NewMemoryStore()
	}
	srv := New(st, Options{Secret: testSecret, DailySalt: "salt", RequestTimeout: 5 * time.Second})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts
}

func do(t *testing.T, method, url, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func createSession(t *testing.T, ts *httptest.Server, category string, daily bool) createRes {
	t.Helper()
	resp, body := do(t, http.MethodPost, ts.URL+"/sessions", "", createReq{Category: category, Daily: daily})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var out createRes
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestHealthAndCategories(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, body := do(t, http.MethodGet, ts.URL+"/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	resp, body = do(t, http.MethodGet, ts.URL+"/categories", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cats []categoryRes
	require.NoError(t, json.Unmarshal(body, &cats))
	require.Len(t, cats, 3)
	assert.Equal(t, "agile", string(cats[0].ID))
	for _, c := range cats {
		assert.GreaterOrEqual(t, c.WordCount, 45)
		assert.NotEmpty(t, c.Icon)
	}
}

func TestCreateSessionErrors(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, body := do(t, http.MethodPost, ts.URL+"/sessions", "", createReq{Category: "sales"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "unknown_category")

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/sessions", strings.NewReader("{"))
	require.NoError(t, err)
	r, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)
}

func TestCreateSession(t *testing.T) {
	_, ts := newTestServer(t, nil)
	out := createSession(t, ts, "tech", false)

	assert.NotEmpty(t, out.Token)
	assert.Greater(t, out.ExpiresAt, time.Now().Unix())
	assert.Equal(t, game.StatusPlaying, out.Session.Status)
	assert.Len(t, out.Session.Card.Words, card.WordCount)
	assert.Equal(t, 1, out.Session.FilledCount)
	assert.Empty(t, out.Session.DailyDate)
}

func TestSessionRoutesRequireMatchingToken(t *testing.T) {
	srv, ts := newTestServer(t, nil)
	a := createSession(t, ts, "agile", false)
	b := createSession(t, ts, "agile", false)
	url := ts.URL + "/sessions/" + a.Session.ID

	resp, _ := do(t, http.MethodGet, url, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, url, "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, url, b.Token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := do(t, http.MethodGet, url, a.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap game.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, a.Session.ID, snap.ID)

	resp, _ = do(t, http.MethodGet, url+"?token="+a.Token, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "query token fallback")

	ghost, _, err := srv.tokens.Sign("ghost")
	require.NoError(t, err)
	resp, _ = do(t, http.MethodGet, ts.URL+"/sessions/ghost", ghost, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestToggleTranscriptAndReset(t *testing.T) {
	_, ts := newTestServer(t, nil)
	out := createSession(t, ts, "corporate", false)
	base := ts.URL + "/sessions/" + out.Session.ID

	resp, body := do(t, http.MethodPost, base+"/toggle", out.Token, toggleReq{SquareID: "4-4"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap game.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.True(t, snap.Card.Squares[4][4].IsFilled)
	assert.False(t, snap.Card.Squares[4][4].IsAutoFilled)

	// unknown square is a no-op, not an error
	resp, _ = do(t, http.MethodPost, base+"/toggle", out.Token, toggleReq{SquareID: "7-7"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var row0 []string
	for c := 0; c < card.Size; c++ {
		row0 = append(row0, snap.Card.Squares[0][c].Word)
	}
	resp, body = do(t, http.MethodPost, base+"/transcript", out.Token, transcriptReq{FinalText: strings.Join(row0, ", then ")})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tr transcriptRes
	require.NoError(t, json.Unmarshal(body, &tr))
	assert.Subset(t, tr.Detected, row0)
	assert.Equal(t, game.StatusWon, tr.Session.Status)
	require.NotNil(t, tr.Session.WinningLine)
	assert.Equal(t, card.LineRow, tr.Session.WinningLine.Type)
	assert.Equal(t, 0, tr.Session.WinningLine.Index)

	resp, body = do(t, http.MethodPost, base+"/reset", out.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, game.StatusPlaying, snap.Status)
	assert.Empty(t, snap.DetectedWords)
	assert.Nil(t, snap.WinningLine)

	resp, body = do(t, http.MethodPost, base+"/transcript", out.Token, transcriptReq{Text: "nothing to see here"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &tr))
	assert.Equal(t, []string{}, tr.Detected)
}

func TestDailySessionsShareTheCard(t *testing.T) {
	_, ts := newTestServer(t, nil)
	a := createSession(t, ts, "tech", true)
	b := createSession(t, ts, "tech", true)

	assert.NotEqual(t, a.Session.ID, b.Session.ID)
	assert.Equal(t, a.Session.Card.Words, b.Session.Card.Words)
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), a.Session.DailyDate)
}

func TestSessionsSurviveServerRestart(t *testing.T) {
	st := store.NewMemoryStore()
	_, first := newTestServer(t, st)
	out := createSession(t, first, "agile", false)
	resp, _ := do(t, http.MethodPost, first.URL+"/sessions/"+out.Session.ID+"/toggle", out.Token, toggleReq{SquareID: "0-0"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, second := newTestServer(t, st)
	resp, body := do(t, http.MethodGet, second.URL+"/sessions/"+out.Session.ID, out.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap game.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.True(t, snap.Card.Squares[0][0].IsFilled)
	assert.Equal(t, out.Session.Card.Words, snap.Card.Words)
}

func TestDeleteSession(t *testing.T) {
	_, ts := newTestServer(t, nil)
	out := createSession(t, ts, "agile", false)
	url := ts.URL + "/sessions/" + out.Session.ID

	resp, _ := do(t, http.MethodDelete, url, out.Token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, url, out.Token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPrune(t *testing.T) {
	srv, ts := newTestServer(t, nil)
	out := createSession(t, ts, "agile", false)

	n, err := srv.Prune(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = srv.Prune(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	resp, _ := do(t, http.MethodGet, ts.URL+"/sessions/"+out.Session.ID, out.Token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	_, ts := newTestServer(t, nil)
	resp, _ := do(t, http.MethodOptions, ts.URL+"/sessions", "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestTokenIssuer(t *testing.T) {
	t0 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	issuer := &tokenIssuer{secret: testSecret, ttl: time.Hour, now: func() time.Time { return t0 }}

	tok, exp, err := issuer.Sign("abc")
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Hour), exp)

	sid, err := issuer.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "abc", sid)

	later := &tokenIssuer{secret: testSecret, ttl: time.Hour, now: func() time.Time { return t0.Add(2 * time.Hour) }}
	_, err = later.Parse(tok)
	assert.ErrorIs(t, err, errBadToken, "expired")

	other := &tokenIssuer{secret: []byte("other"), ttl: time.Hour, now: func() time.Time { return t0 }}
	_, err = other.Parse(tok)
	assert.ErrorIs(t, err, errBadToken, "wrong secret")

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, sessionClaims{SessionID: "abc"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = issuer.Parse(unsigned)
	assert.ErrorIs(t, err, errBadToken, "alg none")
}

// readEvent reads the next SSE data line as an event.
func readEvent(t *testing.T, rd *bufio.Reader) event {
	t.Helper()
	for {
		line, err := rd.ReadString('\n')
		require.NoError(t, err)
		if data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: "); ok {
			var ev event
			require.NoError(t, json.Unmarshal([]byte(data), &ev))
			return ev
		}
	}
}

func TestEventsStreamSnapshots(t *testing.T) {
	_, ts := newTestServer(t, nil)
	out := createSession(t, ts, "tech", false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/sessions/"+out.Session.ID+"/events?token="+out.Token, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	rd := bufio.NewReader(resp.Body)
	first := readEvent(t, rd)
	assert.Equal(t, "snapshot", first.Type)
	require.NotNil(t, first.Session)
	assert.Equal(t, out.Session.ID, first.Session.ID)

	r, _ := do(t, http.MethodPost, ts.URL+"/sessions/"+out.Session.ID+"/toggle", out.Token, toggleReq{SquareID: "1-1"})
	require.Equal(t, http.StatusOK, r.StatusCode)

	next := readEvent(t, rd)
	require.NotNil(t, next.Session)
	assert.True(t, next.Session.Card.Squares[1][1].IsFilled)
}

func TestListenWebsocket(t *testing.T) {
	_, ts := newTestServer(t, nil)
	out := createSession(t, ts, "corporate", false)
	word := out.Session.Card.Squares[0][0].Word

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/sessions/" + out.Session.ID + "/listen?token=" + out.Token
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var ev event
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, "snapshot", ev.Type)

	require.NoError(t, wsjson.Write(ctx, conn, listenMsg{InterimText: "so we", IsListening: true}))
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Empty(t, ev.Detected)

	require.NoError(t, wsjson.Write(ctx, conn, listenMsg{FinalText: "so we said " + word, IsListening: true}))
	ev = event{}
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Contains(t, ev.Detected, word)
	require.NotNil(t, ev.Session)
	assert.True(t, ev.Session.Card.Squares[0][0].IsAutoFilled)

	// the same transcript again carries no new speech
	require.NoError(t, wsjson.Write(ctx, conn, listenMsg{FinalText: "so we said " + word, Error: "not-allowed"}))
	ev = event{}
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, "error", ev.Type)
	assert.Equal(t, "not-allowed", ev.Kind)
	assert.True(t, ev.Fatal)
	assert.Equal(t, "Microphone permission was denied.", ev.Message)

	ev = event{}
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, "snapshot", ev.Type)
	assert.Empty(t, ev.Detected)

	conn.Close(websocket.StatusNormalClosure, "")
}

func TestListenRequiresToken(t *testing.T) {
	_, ts := newTestServer(t, nil)
	out := createSession(t, ts, "corporate", false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/sessions/" + out.Session.ID + "/listen"
	_, resp, err := websocket.Dial(ctx, url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// flakyStore fails every Save while failSave is set.
type flakyStore struct {
	store.Store
	failSave atomic.Bool
}

func (f *flakyStore) Save(ctx context.Context, g *game.Session) error {
	if f.failSave.Load() {
		return errors.New("disk full")
	}
	return f.Store.Save(ctx, g)
}

func TestFailedSaveStillPublishesLiveState(t *testing.T) {
	st := &flakyStore{Store: store.NewMemoryStore()}
	srv, ts := newTestServer(t, st)
	out := createSession(t, ts, "agile", false)
	url := ts.URL + "/sessions/" + out.Session.ID

	sub := srv.sse.Register(out.Session.ID)
	defer srv.sse.Unregister(sub)

	st.failSave.Store(true)
	resp, body := do(t, http.MethodPost, url+"/toggle", out.Token, toggleReq{SquareID: "0-0"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, string(body), "server_error")

	select {
	case msg := <-sub.ch:
		var ev event
		require.NoError(t, json.Unmarshal([]byte(msg), &ev))
		require.NotNil(t, ev.Session)
		assert.True(t, ev.Session.Card.Squares[0][0].IsFilled)
	case <-time.After(time.Second):
		require.Fail(t, "change was not published")
	}

	resp, body = do(t, http.MethodGet, url, out.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap game.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.True(t, snap.Card.Squares[0][0].IsFilled)
}

func TestDeleteEndsEventStream(t *testing.T) {
	_, ts := newTestServer(t, nil)
	out := createSession(t, ts, "tech", false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/sessions/"+out.Session.ID+"/events?token="+out.Token, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	rd := bufio.NewReader(resp.Body)
	assert.Equal(t, "snapshot", readEvent(t, rd).Type)

	r, _ := do(t, http.MethodDelete, ts.URL+"/sessions/"+out.Session.ID, out.Token, nil)
	require.Equal(t, http.StatusNoContent, r.StatusCode)

	// the stream ends instead of running until the client gives up
	_, err = io.ReadAll(rd)
	require.NoError(t, err)
}
