package web

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/guidoenr/tabviz/internal/app"
	"github.com/guidoenr/tabviz/internal/audio"
	"github.com/guidoenr/tabviz/internal/params"
	"github.com/guidoenr/tabviz/internal/present"
	"github.com/guidoenr/tabviz/internal/theme"
	"github.com/sirupsen/logrus"
)

//go:embed index.html
var indexHTML []byte

const (
	statusInterval = 500 * time.Millisecond
	// DefaultFrameInterval caps the PNG frame stream at about 10 fps.
	DefaultFrameInterval = 100 * time.Millisecond

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Controller is the part of the app the web surface drives.
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Apply(ctx context.Context, cfg params.Config) error
	Status() app.Status
}

// UpdateRequest is a partial settings change. Absent fields keep their value.
type UpdateRequest struct {
	Mode        *string  `json:"mode,omitempty" validate:"omitempty,oneof=bars wave circular particles"`
	Theme       *string  `json:"theme,omitempty" validate:"omitempty,theme"`
	Sensitivity *float64 `json:"sensitivity,omitempty" validate:"omitempty,gt=0,lte=5"`
	Smoothing   *float64 `json:"smoothing,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// merge overlays the request on the current settings.
func (r UpdateRequest) merge(st app.Status) params.Config {
	cfg := params.Config{
		Mode:        st.Mode,
		Theme:       st.Theme,
		Sensitivity: st.Sensitivity,
		Smoothing:   st.Smoothing,
	}
	if r.Mode != nil {
		cfg.Mode = params.Mode(*r.Mode)
	}
	if r.Theme != nil {
		cfg.Theme = *r.Theme
	}
	if r.Sensitivity != nil {
		cfg.Sensitivity = *r.Sensitivity
	}
	if r.Smoothing != nil {
		cfg.Smoothing = *r.Smoothing
	}
	return cfg
}

type errorResponse struct {
	Error  string     `json:"error"`
	Status app.Status `json:"status"`
}

type wsMessage struct {
	kind int
	data []byte
}

type websocketClient struct {
	conn   *websocket.Conn
	send   chan wsMessage
	server *Server
}

// Server exposes the control API, the status stream and a throttled PNG
// frame stream. It is also a present.Sink.
type Server struct {
	mu        sync.RWMutex
	ctrl      Controller
	clients   map[*websocketClient]bool
	upgrader  websocket.Upgrader
	validate  *validator.Validate
	log       *logrus.Logger
	now       func() time.Time
	interval  time.Duration
	lastFrame time.Time
	frameBuf  bytes.Buffer
	encoder   png.Encoder
	httpSrv   *http.Server
}

var _ present.Sink = (*Server)(nil)

// NewServer builds a server for ctrl. A zero frameInterval uses DefaultFrameInterval.
func NewServer(ctrl Controller, log *logrus.Logger, frameInterval time.Duration) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if frameInterval <= 0 {
		frameInterval = DefaultFrameInterval
	}
	return &Server{
		ctrl:     ctrl,
		clients:  make(map[*websocketClient]bool),
		validate: params.NewValidator(),
		log:      log,
		now:      time.Now,
		interval: frameInterval,
		encoder:  png.Encoder{CompressionLevel: png.BestSpeed},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/start", s.handleStart)
	mux.HandleFunc("/api/stop", s.handleStop)
	mux.HandleFunc("/api/update", s.handleUpdate)
	mux.HandleFunc("/api/modes", s.handleModes)
	mux.HandleFunc("/api/themes", s.handleThemes)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.httpSrv = &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go s.statusLoop(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
	}()

	s.log.WithField("addr", addr).Info("web control listening")
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Present streams f as a PNG to connected clients, at most once per frame interval.
func (s *Server) Present(f present.Frame) error {
	if f.Image == nil || s.clientCount() == 0 {
		return nil
	}
	now := s.now()
	if now.Sub(s.lastFrame) < s.interval {
		return nil
	}
	s.lastFrame = now

	s.frameBuf.Reset()
	if err := s.encoder.Encode(&s.frameBuf, f.Image); err != nil {
		return err
	}
	data := make([]byte, s.frameBuf.Len())
	copy(data, s.frameBuf.Bytes())
	s.broadcast(wsMessage{kind: websocket.BinaryMessage, data: data})
	return nil
}

// Close disconnects every websocket client.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		close(client.send)
		delete(s.clients, client)
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.ctrl.Start(r.Context()); err != nil {
		s.log.WithError(err).Info("start request failed")
		writeJSON(w, startErrorCode(err), errorResponse{Error: startErrorText(err), Status: s.ctrl.Status()})
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.ctrl.Stop(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.ctrl.Apply(r.Context(), req.merge(s.ctrl.Status())); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleModes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, params.ModeNames())
}

func (s *Server) handleThemes(w http.ResponseWriter, r *http.Request) {
	themes := make(map[string][]string)
	for _, name := range theme.Names() {
		themes[name] = theme.HexFor(name)
	}
	writeJSON(w, http.StatusOK, themes)
}

func startErrorCode(err error) int {
	var ce *audio.CaptureError
	switch {
	case errors.Is(err, audio.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, audio.ErrNoAudioTrack):
		return http.StatusUnprocessableEntity
	case errors.Is(err, app.ErrStartInProgress), errors.Is(err, app.ErrStartAborted):
		return http.StatusConflict
	case errors.As(err, &ce):
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}

func startErrorText(err error) string {
	if errors.Is(err, app.ErrStartInProgress) || errors.Is(err, app.ErrStartAborted) {
		return err.Error()
	}
	return audio.UserMessage(err)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &websocketClient{
		conn:   conn,
		send:   make(chan wsMessage, 16),
		server: s,
	}

	// New clients get the current status straight away.
	if data, err := json.Marshal(s.ctrl.Status()); err == nil {
		client.send <- wsMessage{kind: websocket.TextMessage, data: data}
	}

	s.mu.Lock()
	s.clients[client] = true
	s.mu.Unlock()

	go client.writePump()
	go client.readPump()
}

func (s *Server) clientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// broadcast queues msg for every client, dropping clients that fell behind.
func (s *Server) broadcast(msg wsMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		select {
		case client.send <- msg:
		default:
			close(client.send)
			delete(s.clients, client)
		}
	}
}

func (s *Server) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.clientCount() == 0 {
				continue
			}
			data, err := json.Marshal(s.ctrl.Status())
			if err != nil {
				continue
			}
			s.broadcast(wsMessage{kind: websocket.TextMessage, data: data})
		}
	}
}

func (c *websocketClient) readPump() {
	defer func() {
		c.server.mu.Lock()
		if c.server.clients[c] {
			delete(c.server.clients, c)
			close(c.send)
		}
		c.server.mu.Unlock()
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *websocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(msg.kind, msg.data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
