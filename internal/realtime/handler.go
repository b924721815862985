package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/missionops/internal/domain"
	"github.com/immxrtalbeast/missionops/internal/service"
	"github.com/immxrtalbeast/missionops/lib/logger/sl"
)

const authTimeout = 5 * time.Second

type Options struct {
	SendQueue       int
	WriteTimeout    time.Duration
	PongWait        time.Duration
	MaxMessageBytes int64
	CookieName      string
	// AllowedOrigins limits browser origins; "*" allows any.
	AllowedOrigins []string
}

func (o *Options) setDefaults() {
	if o.SendQueue <= 0 {
		o.SendQueue = 64
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 8192
	}
}

// Handler upgrades HTTP requests into realtime connections. Every
// connection is authenticated before any of its frames is dispatched.
type Handler struct {
	auth       service.Authenticator
	manager    *Manager
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
	opts       Options
	log        *slog.Logger

	ctx context.Context

	mu      sync.Mutex
	closing bool
	conns   sync.WaitGroup
}

func NewHandler(ctx context.Context, auth service.Authenticator, manager *Manager, dispatcher *Dispatcher, opts Options, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	opts.setDefaults()

	h := &Handler{
		auth:       auth,
		manager:    manager,
		dispatcher: dispatcher,
		opts:       opts,
		log:        log,
		ctx:        ctx,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(h.opts.AllowedOrigins, "*") || slices.Contains(h.opts.AllowedOrigins, origin)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "realtime.handler.serve"
	log := h.log.With(slog.String("op", op), slog.String("remote", r.RemoteAddr))

	if !h.acquire() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.conns.Done()

	token := service.ExtractToken(r, h.opts.CookieName)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Info("upgrade failed", sl.Err(err))
		return
	}

	authCtx, cancel := context.WithTimeout(h.ctx, authTimeout)
	user, err := h.auth.Authenticate(authCtx, token)
	cancel()
	if err != nil {
		log.Info("connection rejected", sl.Err(err))
		h.reject(conn, err)
		return
	}

	client := newClient(conn, user, h.opts.SendQueue, h.log)
	h.manager.Register(client)
	if h.isClosing() {
		client.Close()
	}
	log.Info("client connected", slog.String("client_id", client.ID), slog.String("user_id", user.ID.String()))

	go client.writePump(h.opts.WriteTimeout, h.opts.PongWait*9/10)

	client.readPump(h.opts.MaxMessageBytes, h.opts.PongWait, func(frame []byte) {
		if h.ctx.Err() != nil {
			client.Close()
			return
		}
		h.dispatcher.Dispatch(h.ctx, client, frame)
	})

	h.manager.Unregister(client)
	log.Info("client disconnected", slog.String("client_id", client.ID))
}

func (h *Handler) acquire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closing || h.ctx.Err() != nil {
		return false
	}
	h.conns.Add(1)
	return true
}

func (h *Handler) isClosing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closing
}

// Shutdown refuses new connections, disconnects the open ones and waits
// until their in-flight frames are handled.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	h.mu.Unlock()

	h.manager.CloseClients()

	done := make(chan struct{})
	go func() {
		h.conns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reject sends "unauthorized" and closes the connection.
func (h *Handler) reject(conn *websocket.Conn, cause error) {
	defer conn.Close()

	msg := service.PublicMessage(cause)
	if msg == service.InternalErrorMessage {
		msg = service.ErrUnauthorized.Error()
	}
	frame, err := Encode(domain.Unauthorized{Message: msg})
	if err != nil {
		return
	}

	deadline := time.Now().Add(h.opts.WriteTimeout)
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"),
		deadline,
	)
}
