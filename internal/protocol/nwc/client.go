package nwc

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/op/go-logging"

	"github.com/deekay/bitcaptcha/internal/crypto"
	"github.com/deekay/bitcaptcha/internal/domain"
	"github.com/deekay/bitcaptcha/internal/relay"
)

var log = logging.MustGetLogger("bitcaptcha")

// DefaultTimeout bounds one request round trip unless overridden per call.
const DefaultTimeout = 30 * time.Second

// clockSkewGrace is subtracted from the subscription's lower time bound so a
// wallet with a slightly slow clock is not filtered out.
const clockSkewGrace = 10 * time.Second

// Transport is the subset of the relay transport the client drives. The
// concrete implementation is relay.Transport.
type Transport interface {
	Connect(ctx context.Context) error
	Subscribe(id string, f relay.Filter) error
	Publish(ev *domain.Event) error
	Unsubscribe(id string) error
	OnMessage(h relay.Handler)
	OnDisconnect(f func(error))
	Close() error
}

// request is the payload encrypted into a request event. Field order is
// fixed, so serialization is deterministic.
type request struct {
	Method string `json:"method"`
	Params any    `json:"params"`
}

// response is the decrypted payload of a response event.
type response struct {
	ResultType string          `json:"result_type"`
	Error      *ResponseError  `json:"error,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
}

// ResponseError is the wallet's explicit protocol-level error object.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// walletErrNotImplemented is the wallet's "capability absent" error code.
const walletErrNotImplemented = "NOT_IMPLEMENTED"

// pendingRequest tracks one outstanding round trip. Events arriving before
// the subscription acknowledgment are dropped; active flips on EOSE.
type pendingRequest struct {
	active bool
	eose   chan struct{}
	events chan *domain.Event
	failed chan error
}

// Client correlates encrypted requests with relay-delivered responses over
// one shared transport connection.
type Client struct {
	transport Transport
	params    ConnectionParams
	conv      domain.ConversationKey
	localPub  domain.PublicKey
	timeout   time.Duration

	mu      sync.Mutex
	pending map[string]*pendingRequest
}

// New derives the conversation key from the connection params and wires the
// client into the transport's message stream.
func New(transport Transport, params ConnectionParams) (*Client, error) {
	conv, err := crypto.DeriveConversationKey(params.Secret, params.WalletPubKey)
	if err != nil {
		return nil, err
	}
	c := &Client{
		transport: transport,
		params:    params,
		conv:      conv,
		localPub:  crypto.DerivePublicKey(params.Secret),
		timeout:   DefaultTimeout,
		pending:   make(map[string]*pendingRequest),
	}
	transport.OnMessage(c.handle)
	transport.OnDisconnect(c.failAll)
	return c, nil
}

// PublicKey returns the client-side pubkey responses are addressed to.
func (c *Client) PublicKey() domain.PublicKey { return c.localPub }

// Close tears down the shared transport, failing every outstanding request.
func (c *Client) Close() error { return c.transport.Close() }

// handle demultiplexes inbound frames onto pending requests by
// subscription id.
func (c *Client) handle(m relay.Message) {
	switch m.Type {
	case "EOSE":
		c.mu.Lock()
		p := c.pending[m.SubscriptionID]
		if p != nil && !p.active {
			p.active = true
			close(p.eose)
		}
		c.mu.Unlock()
	case "EVENT":
		c.mu.Lock()
		p := c.pending[m.SubscriptionID]
		active := p != nil && p.active
		c.mu.Unlock()
		if !active {
			// Either cross-talk for a finished request or delivery before
			// the filter acknowledgment; both are dropped.
			log.Debugf("dropping uncorrelated event %s", m.Event.ID)
			return
		}
		select {
		case p.events <- m.Event:
		default:
		}
	}
}

// failAll rejects every outstanding request, used on transport teardown.
func (c *Client) failAll(cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, p := range c.pending {
		select {
		case p.failed <- cause:
		default:
		}
		delete(c.pending, id)
	}
}

// SendRequest runs one encrypted round trip: subscribe for the response,
// wait for the subscription acknowledgment, publish, then wait for the
// correlated response. A timeout of 0 means DefaultTimeout.
func (c *Client) SendRequest(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = c.timeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	if err := c.transport.Connect(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(request{Method: method, Params: params})
	if err != nil {
		return nil, domain.Wrap(domain.ErrProtocol, "encode request", err)
	}
	envelope, err := crypto.Encrypt(body, c.conv)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	ev := &domain.Event{
		CreatedAt: now.Unix(),
		Kind:      domain.KindWalletRequest,
		Tags:      [][]string{{"p", c.params.WalletPubKey.Hex()}},
		Content:   envelope,
	}
	if err := crypto.SignEvent(ev, c.params.Secret); err != nil {
		return nil, err
	}

	// The subscription id is the request's identity, so collisions across
	// concurrent requests are structurally impossible.
	subID := ev.ID
	p := &pendingRequest{
		eose:   make(chan struct{}),
		events: make(chan *domain.Event, 4),
		failed: make(chan error, 1),
	}
	c.mu.Lock()
	c.pending[subID] = p
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, subID)
		c.mu.Unlock()
		_ = c.transport.Unsubscribe(subID)
	}()

	filter := relay.Filter{
		Kinds:      []int{domain.KindWalletResponse},
		EventRefs:  []string{ev.ID},
		PubKeyRefs: []string{c.localPub.Hex()},
		Since:      now.Add(-clockSkewGrace).Unix(),
	}
	if err := c.transport.Subscribe(subID, filter); err != nil {
		return nil, err
	}

	// Publishing before the relay acknowledges the subscription risks the
	// wallet's response being delivered before the filter is installed.
	select {
	case <-p.eose:
	case err := <-p.failed:
		return nil, err
	case <-ctx.Done():
		return nil, domain.Wrap(domain.ErrTimeout, method+" cancelled", ctx.Err())
	case <-timer.C:
		return nil, domain.Ef(domain.ErrTimeout, "%s: no subscription acknowledgment within %s", method, timeout)
	}

	if err := c.transport.Publish(ev); err != nil {
		return nil, err
	}

	for {
		select {
		case resp := <-p.events:
			result, retry, err := c.accept(resp, ev.ID)
			if retry {
				continue
			}
			return result, err
		case err := <-p.failed:
			return nil, err
		case <-ctx.Done():
			return nil, domain.Wrap(domain.ErrTimeout, method+" cancelled", ctx.Err())
		case <-timer.C:
			return nil, domain.Ef(domain.ErrTimeout, "%s: no response within %s", method, timeout)
		}
	}
}

// accept validates and decrypts one candidate response. retry=true means the
// event was cross-talk and the caller should keep waiting.
func (c *Client) accept(resp *domain.Event, reqID string) (json.RawMessage, bool, error) {
	if resp.Kind != domain.KindWalletResponse {
		log.Debugf("ignoring event of kind %d", resp.Kind)
		return nil, true, nil
	}
	if resp.PubKey != c.params.WalletPubKey.Hex() {
		log.Warningf("ignoring response from unexpected sender %s", resp.PubKey)
		return nil, true, nil
	}
	if resp.Tag("e") != reqID {
		log.Warningf("ignoring response referencing %s, want %s", resp.Tag("e"), reqID)
		return nil, true, nil
	}
	if ok, err := crypto.VerifyEvent(resp); err != nil || !ok {
		log.Warningf("ignoring response with invalid signature")
		return nil, true, nil
	}

	plaintext, err := crypto.Decrypt(resp.Content, c.conv)
	if err != nil {
		// Protocol desync with the wallet, not a wallet-level error.
		return nil, false, domain.Wrap(domain.ErrCorrelation, "cannot decrypt correlated response", err)
	}
	var parsed response
	if err := json.Unmarshal(plaintext, &parsed); err != nil {
		return nil, false, domain.Wrap(domain.ErrCorrelation, "malformed response payload", err)
	}
	if parsed.Error != nil {
		code := domain.ErrProtocol
		if parsed.Error.Code == walletErrNotImplemented {
			code = domain.ErrUnsupported
		}
		return nil, false, domain.Ef(code, "wallet error %s: %s", parsed.Error.Code, parsed.Error.Message)
	}
	return parsed.Result, false, nil
}
