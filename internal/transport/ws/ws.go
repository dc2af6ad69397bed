// Package ws serves the node over a WebSocket. One client is attached at a
// time; a second client is refused until the first one leaves.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/telemetry"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/transport"
)

// Path is where the socket is served.
const Path = "/ws"

const (
	writeTimeout    = 2 * time.Second
	shutdownTimeout = 2 * time.Second
)

// Envelope wraps a JSON frame so the client can tell the channels apart.
type Envelope struct {
	Channel telemetry.Channel `json:"channel"`
	Payload json.RawMessage   `json:"payload"`
}

// Transport is the WebSocket adapter.
type Transport struct {
	addr     string
	log      *logrus.Entry
	upgrader websocket.Upgrader

	mu   sync.Mutex
	conn *websocket.Conn
}

// New returns a transport that listens on addr, e.g. ":8080".
func New(addr string, logger *logrus.Logger) *Transport {
	return &Transport{
		addr: addr,
		log:  logger.WithField("transport", "ws"),
		upgrader: websocket.Upgrader{
			// Dashboards are served from anywhere on the local network.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (t *Transport) Name() string { return "ws" }

// Run serves HTTP until ctx is cancelled.
func (t *Transport) Run(ctx context.Context, events chan<- transport.Event) error {
	srv := &http.Server{Addr: t.addr, Handler: t.Handler(ctx, events)}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	t.log.Infof("websocket listening on %s%s", t.addr, Path)

	select {
	case err := <-errCh:
		return fmt.Errorf("ws: listen on %s: %w", t.addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	t.dropClient()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ws: shutdown: %w", err)
	}
	return nil
}

// Handler returns the HTTP handler serving Path.
func (t *Transport) Handler(ctx context.Context, events chan<- transport.Event) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(Path, func(w http.ResponseWriter, r *http.Request) {
		t.serve(ctx, events, w, r)
	})
	return mux
}

func (t *Transport) serve(ctx context.Context, events chan<- transport.Event, w http.ResponseWriter, r *http.Request) {
	t.mu.Lock()
	busy := t.conn != nil
	t.mu.Unlock()
	if busy {
		http.Error(w, "a client is already connected", http.StatusConflict)
		return
	}

	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.log.Warnf("websocket upgrade error: %v", err)
		return
	}

	t.mu.Lock()
	if t.conn != nil {
		t.mu.Unlock()
		conn.Close()
		return
	}
	t.conn = conn
	t.mu.Unlock()

	t.log.WithField("remote", r.RemoteAddr).Info("client connected")
	transport.Emit(ctx, events, transport.Event{Kind: transport.Connected})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				t.log.Warnf("websocket read error: %v", err)
			}
			break
		}
		if !transport.Emit(ctx, events, transport.Event{Kind: transport.Command, Data: data}) {
			break
		}
	}

	t.mu.Lock()
	if t.conn == conn {
		t.conn = nil
	}
	t.mu.Unlock()
	conn.Close()

	t.log.WithField("remote", r.RemoteAddr).Info("client disconnected")
	transport.Emit(ctx, events, transport.Event{Kind: transport.Disconnected})
}

func (t *Transport) dropClient() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
}

// Send writes one frame. JSON frames go out as an Envelope in a text
// message; anything else goes out as a binary message whose first byte is
// 'D' (data) or 'S' (status).
func (t *Transport) Send(ch telemetry.Channel, frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return transport.ErrNotConnected
	}

	msgType, msg := websocket.BinaryMessage, append([]byte{channelTag(ch)}, frame...)
	if json.Valid(frame) {
		b, err := json.Marshal(Envelope{Channel: ch, Payload: frame})
		if err != nil {
			return fmt.Errorf("ws: envelope: %w", err)
		}
		msgType, msg = websocket.TextMessage, b
	}

	if err := t.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("ws: set deadline: %w", err)
	}
	if err := t.conn.WriteMessage(msgType, msg); err != nil {
		return fmt.Errorf("ws: write: %w", err)
	}
	return nil
}

func channelTag(ch telemetry.Channel) byte {
	if ch == telemetry.Status {
		return 'S'
	}
	return 'D'
}
