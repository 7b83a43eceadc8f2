package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"taskboard/internal/dto"
	"taskboard/internal/reconcile"
)

// WatchOptions tunes a Watcher. Zero values pick defaults.
type WatchOptions struct {
	Dialer      *websocket.Dialer
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
	HelloWait   time.Duration
	FrameBuffer int
	Logger      *slog.Logger
	// OnChange runs after every baseline load and every applied event.
	OnChange func(*reconcile.View)
}

func (o WatchOptions) withDefaults() WatchOptions {
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
	if o.MinBackoff <= 0 {
		o.MinBackoff = 500 * time.Millisecond
	}
	if o.MaxBackoff < o.MinBackoff {
		o.MaxBackoff = 30 * time.Second
	}
	if o.HelloWait <= 0 {
		o.HelloWait = 10 * time.Second
	}
	if o.FrameBuffer <= 0 {
		o.FrameBuffer = 256
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Watcher keeps a reconcile.View in step with the server.
//
// Each connection attempt opens the push channel, waits for the hello frame,
// then fetches the full list as the new baseline. Frames that arrive during
// the fetch are buffered and applied afterwards; applying an event the
// baseline already reflects leaves the view unchanged, so nothing published
// between registration and fetch is lost.
type Watcher struct {
	c    *Client
	view *reconcile.View
	opts WatchOptions
}

func (c *Client) NewWatcher(view *reconcile.View, opts WatchOptions) *Watcher {
	return &Watcher{c: c, view: view, opts: opts.withDefaults()}
}

// Run follows the board until ctx is done, reconnecting with exponential
// backoff. It returns early only when the server rejects the credential.
func (w *Watcher) Run(ctx context.Context) error {
	backoff := w.opts.MinBackoff
	for {
		synced, err := w.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if IsUnauthorized(err) {
			return err
		}
		if synced {
			backoff = w.opts.MinBackoff
		}
		w.opts.Logger.Warn("push channel lost, reconnecting", "err", err, "in", backoff)

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		backoff *= 2
		if backoff > w.opts.MaxBackoff {
			backoff = w.opts.MaxBackoff
		}
	}
}

// session runs one connection. synced reports whether a baseline was loaded.
func (w *Watcher) session(ctx context.Context) (synced bool, err error) {
	u := w.c.endpoint("ws")
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	header := http.Header{}
	if t := w.c.Token(); t != "" {
		header.Set("Authorization", "Bearer "+t)
	}
	conn, resp, err := w.opts.Dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode >= 300 {
			return false, &APIError{Status: resp.StatusCode, Message: "push channel refused"}
		}
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	_ = conn.SetReadDeadline(time.Now().Add(w.opts.HelloWait))
	var hello dto.EventMessage
	if err := conn.ReadJSON(&hello); err != nil {
		return false, fmt.Errorf("read hello: %w", err)
	}
	if hello.Type != dto.MessageHello {
		return false, fmt.Errorf("expected hello, got %q", hello.Type)
	}
	_ = conn.SetReadDeadline(time.Time{})
	log := w.opts.Logger.With("session_id", hello.SessionID)
	log.Info("push channel open")

	frames := make(chan dto.EventMessage, w.opts.FrameBuffer)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(frames)
		for {
			var m dto.EventMessage
			if err := conn.ReadJSON(&m); err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- m:
			case <-done:
				return
			}
		}
	}()

	tasks, _, err := w.c.ListTasks(ctx)
	if err != nil {
		return false, fmt.Errorf("fetch baseline: %w", err)
	}
	w.view.Load(tasks)
	w.changed()

	for m := range frames {
		ev, err := m.Event()
		if err != nil {
			log.Warn("skipping frame", "err", err)
			continue
		}
		if err := w.view.Apply(ev); err != nil {
			log.Warn("skipping event", "err", err)
			continue
		}
		w.changed()
	}
	err = <-readErr
	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		err = errors.New("server closed the push channel")
	}
	return true, err
}

func (w *Watcher) changed() {
	if w.opts.OnChange != nil {
		w.opts.OnChange(w.view)
	}
}
