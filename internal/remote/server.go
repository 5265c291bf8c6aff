// Package remote exposes the panel over a websocket so other programs can drive it.
//
// Protocol: each text frame is a panel action envelope
//
//	{"type": "set_slider", "data": {"index": 2, "value": 300}}
//
// and the server answers every frame with
//
//	{"status": "ok"} or {"status": "error", "error": "msg"}
//
// Only one session may be connected at a time. Nothing is pushed to the client
// unprompted.
package remote

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/xid"
	"go.uber.org/zap"

	"mixerpanel/internal/panel"
)

const (
	StatusOK    = "ok"
	StatusError = "error"

	DefaultListen  = "127.0.0.1:16992"
	DefaultPath    = "/ws"
	DefaultTimeout = time.Second

	writeWait      = 5 * time.Second
	pongWait       = 30 * time.Second
	pingPeriod     = 20 * time.Second
	maxMessageSize = 4096
	shutdownWait   = 3 * time.Second
)

var (
	// ErrBusy is reported (as HTTP 409) when a session is already connected.
	ErrBusy = errors.New("another remote session is active")
	// ErrShuttingDown is reported (as HTTP 503) once the endpoint is stopping.
	ErrShuttingDown = errors.New("remote endpoint is shutting down")
)

// Dispatcher applies an action on whichever goroutine owns the panel.
// *panel.Loop and *ui.Bridge implement it.
type Dispatcher interface {
	Dispatch(ctx context.Context, a panel.Action) error
}

// Response is sent back for every request frame.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Config configures the endpoint.
type Config struct {
	Listen string
	Path   string
	// Timeout bounds how long one action may wait for the panel.
	Timeout time.Duration
}

// Server is the single-session websocket endpoint.
type Server struct {
	cfg        Config
	dispatcher Dispatcher
	logger     *zap.SugaredLogger
	upgrader   websocket.Upgrader

	mu      sync.Mutex
	active  *session
	closing bool
	wg      sync.WaitGroup
}

type session struct {
	id   xid.ID
	conn *websocket.Conn
}

// NewServer builds the endpoint. Zero config fields take the defaults.
func NewServer(d Dispatcher, cfg Config, logger *zap.SugaredLogger) *Server {
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Server{
		cfg:        cfg,
		dispatcher: d,
		logger:     logger.Named("remote"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns a mux serving the websocket on the configured path.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleWS)
	return mux
}

// ListenAndServe binds cfg.Listen and serves until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Listen)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.cfg.Listen)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln and shuts down gracefully when ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Infow("Remote endpoint listening", "address", ln.Addr(), "path", s.cfg.Path)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- errors.Wrap(err, "HTTP server")
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()

		// Shutdown does not touch hijacked connections.
		s.closeActive()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "HTTP server shutdown")
		}
		<-errCh
		s.wg.Wait()
		s.logger.Info("Remote endpoint stopped")
		return nil

	case err := <-errCh:
		return err
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if err := s.claim(); err != nil {
		s.logger.Infow("Rejected remote session", "remote_addr", r.RemoteAddr, "reason", err)
		code := http.StatusConflict
		if errors.Is(err, ErrShuttingDown) {
			code = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), code)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.release(nil)
		s.logger.Warnw("Websocket upgrade failed", "error", err)
		return
	}

	sess := &session{id: xid.New(), conn: conn}
	if !s.adopt(sess) {
		s.logger.Infow("Dropped remote session (shutting down)", "remote_addr", r.RemoteAddr)
		_ = conn.Close()
		return
	}

	logger := s.logger.With("session", sess.id.String(), "remote_addr", r.RemoteAddr)
	logger.Info("Remote session connected")

	// The session outlives the handler's request context.
	go s.runSession(sess, logger)
}

// claim reserves the single session slot.
func (s *Server) claim() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return ErrShuttingDown
	}
	if s.active != nil {
		return ErrBusy
	}
	s.active = &session{}
	return nil
}

// adopt replaces the pending claim with sess and counts it in wg. After
// closeActive the claim is dropped instead and adopt returns false.
func (s *Server) adopt(sess *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		if s.active != nil && s.active.conn == nil {
			s.active = nil
		}
		return false
	}
	s.active = sess
	s.wg.Add(1)
	return true
}

// release frees the slot if sess (or a pending claim, for nil) still holds it.
func (s *Server) release(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return
	}
	if (sess == nil && s.active.conn == nil) || s.active == sess {
		s.active = nil
	}
}

// closeActive closes the current session and refuses any new one, including
// one still in the middle of its upgrade.
func (s *Server) closeActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closing = true
	if s.active != nil && s.active.conn != nil {
		deadline := time.Now().Add(writeWait)
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = s.active.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = s.active.conn.Close()
	}
}

// runSession reads request frames and answers each one in order.
func (s *Server) runSession(sess *session, logger *zap.SugaredLogger) {
	conn := sess.conn
	done := make(chan struct{})
	defer func() {
		defer s.wg.Done()
		close(done)
		_ = conn.Close()
		s.release(sess)
		logger.Info("Remote session disconnected")
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go keepAlive(conn, done, logger)

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if code, text, ok := closeStatus(err); ok {
				logger.Debugw("Session read ended (close)", "code", code, "reason", text)
			} else {
				logger.Debugw("Session read ended", "error", err)
			}
			return
		}

		var resp Response
		if mt != websocket.TextMessage {
			resp = errorResponse(errors.New("text frames only"))
		} else {
			resp = s.handle(data, logger)
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(resp); err != nil {
			logger.Infow("Session write failed", "error", err)
			return
		}
	}
}

func (s *Server) handle(data []byte, logger *zap.SugaredLogger) Response {
	a, err := panel.UnmarshalAction(data)
	if err != nil {
		logger.Debugw("Rejected request", "payload", string(data), "error", err)
		return errorResponse(errors.Wrap(err, "parse action"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	if err := s.dispatcher.Dispatch(ctx, a); err != nil {
		logger.Infow("Action failed", "action", a, "error", err)
		return errorResponse(err)
	}
	logger.Debugw("Action applied", "action", a)
	return Response{Status: StatusOK}
}

func errorResponse(err error) Response {
	return Response{Status: StatusError, Error: err.Error()}
}

// keepAlive pings until done. WriteControl may run alongside WriteJSON.
func keepAlive(conn *websocket.Conn, done <-chan struct{}, logger *zap.SugaredLogger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					logger.Debugw("Ping failed", "error", err)
				}
				return
			}
		}
	}
}

// closeStatus extracts the websocket close code and text when possible.
func closeStatus(err error) (code int, text string, ok bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return 0, "", false
}
