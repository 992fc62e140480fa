package relay

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/op/go-logging"

	"github.com/deekay/bitcaptcha/internal/domain"
)

var log = logging.MustGetLogger("bitcaptcha")

// connectTimeout bounds how long a Connect call waits for the socket to
// become usable.
const connectTimeout = 30 * time.Second

// Handler receives every parsed inbound frame, in arrival order, from the
// transport's read loop.
type Handler func(Message)

// Transport holds exactly one physical websocket connection to the relay.
type Transport struct {
	url string

	mu      sync.Mutex
	conn    *websocket.Conn
	dialing chan struct{}
	dialErr error
	closed  bool

	writeMu sync.Mutex

	handler      Handler
	onDisconnect func(error)
}

// New returns an unconnected transport for the given websocket URL.
func New(url string) *Transport {
	return &Transport{url: url}
}

// OnMessage registers the single inbound frame handler. Must be called
// before Connect.
func (t *Transport) OnMessage(h Handler) {
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()
}

// OnDisconnect registers a callback fired once when the connection goes
// away, whether by Close or by a read failure.
func (t *Transport) OnDisconnect(f func(error)) {
	t.mu.Lock()
	t.onDisconnect = f
	t.mu.Unlock()
}

// Connect opens the websocket connection. It resolves once the connection is
// usable and fails after a bounded wait otherwise. A call while a dial is
// already outstanding joins the in-flight attempt.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return domain.E(domain.ErrTransport, "transport is closed")
	}
	if t.conn != nil {
		t.mu.Unlock()
		return nil
	}
	if t.dialing == nil {
		t.dialing = make(chan struct{})
		go t.dial(t.dialing)
	}
	done := t.dialing
	t.mu.Unlock()

	select {
	case <-done:
		t.mu.Lock()
		err := t.dialErr
		t.mu.Unlock()
		return err
	case <-ctx.Done():
		return domain.Wrap(domain.ErrTransport, "connect cancelled", ctx.Err())
	case <-time.After(connectTimeout):
		return domain.E(domain.ErrTransport, "relay connection not open after 30s")
	}
}

func (t *Transport) dial(done chan struct{}) {
	dialer := websocket.Dialer{HandshakeTimeout: connectTimeout}
	conn, _, err := dialer.Dial(t.url, nil)

	t.mu.Lock()
	t.dialing = nil
	if err != nil {
		t.dialErr = domain.Wrap(domain.ErrTransport, "dial "+t.url, err)
	} else if t.closed {
		conn.Close()
		t.dialErr = domain.E(domain.ErrTransport, "transport is closed")
	} else {
		t.dialErr = nil
		t.conn = conn
		go t.readLoop(conn)
		log.Debugf("connected to %s", t.url)
	}
	t.mu.Unlock()
	close(done)
}

func (t *Transport) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.teardown(domain.Wrap(domain.ErrTransport, "connection lost", err))
			return
		}
		log.Debugf("RECV %s", raw)

		msg, err := parseMessage(raw)
		if err != nil {
			log.Warningf("dropping frame: %v", err)
			continue
		}
		t.mu.Lock()
		h := t.handler
		t.mu.Unlock()
		if h != nil {
			h(msg)
		}
	}
}

// Subscribe sends a REQ control message carrying the caller's filter.
func (t *Transport) Subscribe(id string, f Filter) error {
	raw, err := encodeReq(id, f)
	if err != nil {
		return domain.Wrap(domain.ErrTransport, "encode REQ", err)
	}
	return t.write(raw)
}

// Publish sends a signed event.
func (t *Transport) Publish(ev *domain.Event) error {
	raw, err := encodeEvent(ev)
	if err != nil {
		return domain.Wrap(domain.ErrTransport, "encode EVENT", err)
	}
	return t.write(raw)
}

// Unsubscribe sends a CLOSE control message. Safe to call repeatedly or
// after the connection is gone.
func (t *Transport) Unsubscribe(id string) error {
	raw, err := encodeClose(id)
	if err != nil {
		return domain.Wrap(domain.ErrTransport, "encode CLOSE", err)
	}
	if err := t.write(raw); err != nil {
		// A vanished connection has no subscriptions left to close.
		return nil
	}
	return nil
}

func (t *Transport) write(raw []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return domain.E(domain.ErrTransport, "not connected")
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return domain.Wrap(domain.ErrTransport, "write", err)
	}
	log.Debugf("SEND %s", raw)
	return nil
}

// Close tears the connection down deterministically. Idempotent.
func (t *Transport) Close() error {
	t.teardown(domain.E(domain.ErrTransport, "transport closed"))
	return nil
}

func (t *Transport) teardown(cause error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	conn := t.conn
	t.conn = nil
	f := t.onDisconnect
	t.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if f != nil {
		f(cause)
	}
}
