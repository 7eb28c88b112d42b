package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/realtime"
)

const (
	defaultWriteTimeout = 10 * time.Second
	defaultPingInterval = 30 * time.Second
	defaultReadLimit    = 1 << 20
)

// Hub is the part of the realtime hub a transport needs.
// *realtime.Hub satisfies this interface.
type Hub interface {
	Connect() *realtime.Connection
	Disconnect(id string)
	HandleMessage(ctx context.Context, connID string, raw []byte) error
	Touch(id string)
}

// Options tunes the websocket transport. Zero values fall back to defaults.
type Options struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
	ReadLimit    int64
	// OriginPatterns lists the host patterns allowed to open cross-origin
	// sockets, as accepted by websocket.AcceptOptions.
	OriginPatterns []string
}

// Handler upgrades HTTP requests to websockets and pumps frames between the
// socket and the hub. Clients authenticate in-band with an AUTH command.
type Handler struct {
	hub  Hub
	opts Options
}

// NewHandler creates a websocket Handler.
func NewHandler(hub Hub, opts Options) *Handler {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = defaultReadLimit
	}
	return &Handler{hub: hub, opts: opts}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// The server-wide deadlines are meant for request/response traffic and
	// would cut long-lived sockets.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	client := h.hub.Connect()
	defer h.hub.Disconnect(client.ID())

	// Control frames are answered inside the library and never reach the
	// read loop, so they refresh liveness here.
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.opts.OriginPatterns,
		OnPingReceived: func(context.Context, []byte) bool {
			h.hub.Touch(client.ID())
			return true
		},
		OnPongReceived: func(context.Context, []byte) {
			h.hub.Touch(client.ID())
		},
	})
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(h.opts.ReadLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	log.Debug().Str("conn_id", client.ID()).Str("remote", r.RemoteAddr).Msg("websocket connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer cancel()
		h.writeLoop(ctx, conn, client)
	}()

	h.readLoop(ctx, conn, client)

	cancel()
	<-writerDone
	log.Debug().Str("conn_id", client.ID()).Msg("websocket disconnected")
}

// readLoop forwards inbound frames to the hub until the socket fails. A
// rejected command is answered with silence, not a closed socket.
func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, client *realtime.Connection) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status == -1 && ctx.Err() == nil {
				log.Debug().Err(err).Str("conn_id", client.ID()).Msg("websocket read")
			}
			return
		}

		if err := h.hub.HandleMessage(ctx, client.ID(), data); errors.Is(err, realtime.ErrUnknownConnection) {
			return
		}
	}
}

// writeLoop drains the connection's outbound queue onto the socket and
// keeps the peer alive with pings.
func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, client *realtime.Connection) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case <-client.Done():
			_ = conn.Close(websocket.StatusPolicyViolation, "disconnected by server")
			return
		case msg := <-client.Outbound():
			// A disconnect discards whatever is still queued.
			select {
			case <-client.Done():
				_ = conn.Close(websocket.StatusPolicyViolation, "disconnected by server")
				return
			default:
			}
			if err := h.write(ctx, conn, msg); err != nil {
				log.Debug().Err(err).Str("conn_id", client.ID()).Msg("websocket write")
				return
			}
		case <-ticker.C:
			pingCtx, pingCancel := context.WithTimeout(ctx, h.opts.WriteTimeout)
			err := conn.Ping(pingCtx)
			pingCancel()
			if err != nil {
				log.Debug().Err(err).Str("conn_id", client.ID()).Msg("websocket ping")
				return
			}
			h.hub.Touch(client.ID())
		}
	}
}

func (h *Handler) write(ctx context.Context, conn *websocket.Conn, msg []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, h.opts.WriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, msg)
}
