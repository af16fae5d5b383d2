package web

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/guidoenr/tabviz/internal/app"
	"github.com/guidoenr/tabviz/internal/audio"
	"github.com/guidoenr/tabviz/internal/params"
	"github.com/guidoenr/tabviz/internal/present"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	mu       sync.Mutex
	status   app.Status
	startErr error
	applied  []params.Config
}

func newFakeController() *fakeController {
	cfg := params.Defaults()
	return &fakeController{status: app.Status{
		State:       "idle",
		Mode:        cfg.Mode,
		Theme:       cfg.Theme,
		Sensitivity: cfg.Sensitivity,
		Smoothing:   cfg.Smoothing,
	}}
}

func (f *fakeController) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		f.status.LastError = audio.UserMessage(f.startErr)
		return f.startErr
	}
	f.status.State = "capturing"
	f.status.Capturing = true
	return nil
}

func (f *fakeController) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status.State = "idle"
	f.status.Capturing = false
	return nil
}

func (f *fakeController) Apply(ctx context.Context, cfg params.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, cfg)
	f.status.Mode = cfg.Mode
	f.status.Theme = cfg.Theme
	f.status.Sensitivity = cfg.Sensitivity
	f.status.Smoothing = cfg.Smoothing
	return nil
}

func (f *fakeController) Status() app.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestServer(t *testing.T) (*Server, *fakeController, *httptest.Server) {
	t.Helper()
	ctrl := newFakeController()
	s := NewServer(ctrl, quietLogger(), time.Millisecond)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		_ = s.Close()
		ts.Close()
	})
	return s, ctrl, ts
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	res, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func decode[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&v))
	return v
}

func TestIndexIsEmbedded(t *testing.T) {
	_, _, ts := newTestServer(t)
	res, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), "<title>tabviz</title>")

	missing, err := http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestStartStopRoundTrip(t *testing.T) {
	_, _, ts := newTestServer(t)

	res, err := http.Get(ts.URL + "/api/start")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)

	started := postJSON(t, ts.URL+"/api/start", "")
	require.Equal(t, http.StatusOK, started.StatusCode)
	assert.True(t, decode[app.Status](t, started).Capturing)

	stopped := postJSON(t, ts.URL+"/api/stop", "")
	require.Equal(t, http.StatusOK, stopped.StatusCode)
	assert.Equal(t, "idle", decode[app.Status](t, stopped).State)
}

func TestStartFailuresMapToStatusCodes(t *testing.T) {
	cases := []struct {
		err  error
		code int
		text string
	}{
		{audio.ErrPermissionDenied, http.StatusForbidden, "allow sharing"},
		{audio.ErrNoAudioTrack, http.StatusUnprocessableEntity, "Share tab audio"},
		{&audio.CaptureError{Err: io.EOF}, http.StatusBadGateway, "try again"},
		{app.ErrStartInProgress, http.StatusConflict, "already in progress"},
	}
	for _, tc := range cases {
		_, ctrl, ts := newTestServer(t)
		ctrl.startErr = tc.err

		res := postJSON(t, ts.URL+"/api/start", "")
		assert.Equal(t, tc.code, res.StatusCode)
		body := decode[errorResponse](t, res)
		assert.Contains(t, body.Error, tc.text)
		assert.Equal(t, "idle", body.Status.State)
	}
}

func TestUpdateMergesPartialRequest(t *testing.T) {
	_, ctrl, ts := newTestServer(t)

	res := postJSON(t, ts.URL+"/api/update", `{"mode":"particles","smoothing":0}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	st := decode[app.Status](t, res)
	assert.Equal(t, params.ModeParticles, st.Mode)
	assert.Equal(t, 0.0, st.Smoothing)
	assert.Equal(t, "neon", st.Theme)
	assert.Equal(t, 1.5, st.Sensitivity)
	require.Len(t, ctrl.applied, 1)
}

func TestUpdateRejectsInvalidFields(t *testing.T) {
	_, ctrl, ts := newTestServer(t)
	for _, body := range []string{
		`{"mode":"laser"}`,
		`{"theme":"plaid"}`,
		`{"sensitivity":0}`,
		`{"smoothing":1.5}`,
		`not json`,
	} {
		res := postJSON(t, ts.URL+"/api/update", body)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode, body)
	}
	assert.Empty(t, ctrl.applied)
}

func TestModesAndThemes(t *testing.T) {
	_, _, ts := newTestServer(t)

	res, err := http.Get(ts.URL + "/api/modes")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, []string{"bars", "wave", "circular", "particles"}, decode[[]string](t, res))

	tres, err := http.Get(ts.URL + "/api/themes")
	require.NoError(t, err)
	defer tres.Body.Close()
	themes := decode[map[string][]string](t, tres)
	assert.Len(t, themes, 5)
	assert.Equal(t, "#ff00ff", themes["neon"][0])
}

func TestWebSocketStreamsStatusAndFrames(t *testing.T) {
	s, _, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	var st app.Status
	require.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, "idle", st.State)

	require.Eventually(t, func() bool { return s.clientCount() == 1 }, time.Second, 5*time.Millisecond)
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	require.NoError(t, s.Present(present.Frame{Image: img}))

	kind, data, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)
	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
}

func TestPresentThrottlesAndSkipsWithoutClients(t *testing.T) {
	s := NewServer(newFakeController(), quietLogger(), time.Second)
	clock := time.Unix(100, 0)
	s.now = func() time.Time { return clock }
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))

	require.NoError(t, s.Present(present.Frame{Image: img}))
	assert.True(t, s.lastFrame.IsZero(), "no clients, nothing encoded")

	client := &websocketClient{send: make(chan wsMessage, 4), server: s}
	s.clients[client] = true

	require.NoError(t, s.Present(present.Frame{Image: img}))
	require.NoError(t, s.Present(present.Frame{Image: img}))
	assert.Len(t, client.send, 1)

	clock = clock.Add(time.Second)
	require.NoError(t, s.Present(present.Frame{Image: img}))
	assert.Len(t, client.send, 2)
}
