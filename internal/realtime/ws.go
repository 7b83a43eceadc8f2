package realtime

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	dom "taskboard/internal/domain"
)

// Encoder turns an event into the JSON value written to the socket.
type Encoder func(ev dom.MutationEvent) any

// WSOptions tunes a WebSocket session.
type WSOptions struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
}

func (o WSOptions) withDefaults() WSOptions {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	return o
}

// WSConn adapts a gorilla WebSocket to Conn. Data frames are written under
// writeMu; gorilla allows only one concurrent writer.
type WSConn struct {
	conn   *websocket.Conn
	encode Encoder
	opts   WSOptions

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func NewWSConn(conn *websocket.Conn, encode Encoder, opts WSOptions) *WSConn {
	return &WSConn{conn: conn, encode: encode, opts: opts.withDefaults()}
}

func (c *WSConn) Send(ctx context.Context, ev dom.MutationEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.WriteJSON(c.encode(ev))
}

// WriteJSON writes v as one text frame within the write timeout.
func (c *WSConn) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

func (c *WSConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}

// ServeConfig describes one push-channel connection.
type ServeConfig struct {
	Upgrader *websocket.Upgrader
	// Owner is the credential the socket was opened with; see DisconnectOwner.
	Owner   string
	Encode  Encoder
	Hello   func(SessionID) any
	Options WSOptions
}

// Serve upgrades the request, registers the socket with the hub and blocks
// until the peer goes away. Inbound messages are discarded; the socket is
// push-only. If cfg.Hello is set its value is the first frame the peer
// receives.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, cfg ServeConfig) error {
	opts := cfg.Options.withDefaults()
	up := cfg.Upgrader
	if up == nil {
		up = &websocket.Upgrader{}
	}
	raw, err := up.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	conn := NewWSConn(raw, cfg.Encode, opts)

	readWait := opts.PingInterval * 2
	_ = raw.SetReadDeadline(time.Now().Add(readWait))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(readWait))
	})

	// Hello is the session's first frame: events published after
	// registration queue behind it.
	var greet func(SessionID) error
	if cfg.Hello != nil {
		greet = func(id SessionID) error { return conn.WriteJSON(cfg.Hello(id)) }
	}
	id, err := h.register(conn, cfg.Owner, greet)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer h.Unregister(id)

	log := h.log.With("session_id", id)
	log.Info("push channel opened", "remote", r.RemoteAddr)

	done := make(chan struct{})
	defer close(done)
	go func() {
		t := time.NewTicker(opts.PingInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				if err := raw.WriteControl(websocket.PingMessage, nil, time.Now().Add(opts.WriteTimeout)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		if _, _, err := raw.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, websocket.ErrCloseSent) {
				log.Debug("push channel read ended", "err", err)
			}
			log.Info("push channel closed")
			return nil
		}
	}
}
