package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/voicewire/voicewire/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks

	// Buffered outbound frames before writes start failing.
	sendBuffer = 256
)

// State is the connection lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
	StateFailed     State = "failed"
)

// CredentialProvider supplies the bearer token embedded in the connect URL.
type CredentialProvider interface {
	BearerToken(ctx context.Context) (string, error)
}

// StaticToken is a CredentialProvider backed by a fixed token.
type StaticToken string

func (t StaticToken) BearerToken(ctx context.Context) (string, error) {
	return string(t), nil
}

// PlaybackSink receives one fully reassembled audio payload together with
// the format the server announced for it.
type PlaybackSink interface {
	Play(format string, audio []byte) error
}

// Hooks are optional observer callbacks. They are invoked outside the
// client's internal lock, from the goroutine that produced the event.
type Hooks struct {
	// StateChange fires on every connection-state transition.
	StateChange func(State)
	// Turn fires for every transcript turn appended, local or remote.
	Turn func(Turn)
	// Status fires for server processing-phase updates.
	Status func(status string)
	// ServerError fires for server error messages that are not consumed by
	// capability negotiation.
	ServerError func(message string)
	// TransportError fires before the failed-state reset when the socket
	// errors out.
	TransportError func(err error)
}

// Config holds the streaming client's connection and audio parameters.
type Config struct {
	// URL is the ws:// or wss:// endpoint. The bearer token is appended as
	// the "token" query parameter.
	URL string

	// ChunkSize is the preferred outbound chunk size announced during
	// capability negotiation.
	ChunkSize int

	Format     string
	SampleRate int
	Channels   int
}

func (c *Config) applyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 4096
	}
	if c.Format == "" {
		c.Format = "pcm"
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
}

type writeData struct {
	// messageType is the websocket frame type.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	messageType int
	payload     []byte
}

// Client is the duplex audio-streaming protocol client. It owns one
// websocket connection at a time, multiplexing JSON control messages and raw
// binary audio chunks over it.
//
// A Client is constructed with New, used through Connect/SendText/
// SendAudioChunk/EndAudioStream, and released with Disconnect.
type Client struct {
	cfg      Config
	creds    CredentialProvider
	playback PlaybackSink
	hooks    Hooks
	logger   *zap.Logger

	mu    sync.Mutex
	state State
	conn  *websocket.Conn
	send  chan writeData

	// gen identifies the current connection attempt. Pump callbacks carry
	// the gen they were started with; a mismatch means the event belongs to
	// a connection that has already been torn down.
	gen int

	negotiated bool
	queue      sendQueue
	stream     *reassemblyBuffer
	session    sessionState
}

// New creates a streaming client. playback may be nil if inbound audio
// should be discarded; hooks fields may be nil individually.
func New(cfg Config, creds CredentialProvider, playback PlaybackSink, hooks Hooks, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()
	return &Client{
		cfg:      cfg,
		creds:    creds,
		playback: playback,
		hooks:    hooks,
		logger:   logger,
		state:    StateIdle,
	}
}

// Connect opens the transport and starts capability negotiation. Calling
// Connect while already connecting or open is a no-op: at most one transport
// instance exists at any time. A missing credential is reported
// synchronously as ErrMissingCredential and no connection is attempted.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateOpen {
		c.mu.Unlock()
		return nil
	}
	if c.creds == nil {
		c.mu.Unlock()
		return ErrMissingCredential
	}
	c.mu.Unlock()

	token, err := c.creds.BearerToken(ctx)
	if err != nil {
		return fmt.Errorf("resolve bearer token: %w", err)
	}
	if token == "" {
		return ErrMissingCredential
	}

	endpoint, err := connectURL(c.cfg.URL, token)
	if err != nil {
		return fmt.Errorf("connect URL: %w", err)
	}

	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateOpen {
		c.mu.Unlock()
		return nil
	}
	c.gen++
	gen := c.gen
	c.state = StateConnecting
	c.mu.Unlock()
	c.notifyState(StateConnecting)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		c.mu.Lock()
		current := c.gen == gen
		if current {
			c.state = StateFailed
		}
		c.mu.Unlock()
		// A Disconnect that superseded this attempt already notified its own
		// transition; the failed dial is not an observable event then.
		if current {
			c.notifyState(StateFailed)
		}
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}

	c.mu.Lock()
	if c.gen != gen {
		// Disconnect raced the dial; the new connection is not wanted.
		c.mu.Unlock()
		conn.Close()
		return ErrConnectionSuperseded
	}
	c.conn = conn
	c.send = make(chan writeData, sendBuffer)
	c.state = StateOpen
	send := c.send
	c.mu.Unlock()

	go c.writePump(conn, send)
	go c.readPump(conn, gen)

	c.notifyState(StateOpen)

	c.announcePreferences()
	return nil
}

// Disconnect tears the connection down and resets all transient state. It is
// safe to call from any state and is an idempotent no-op when nothing is
// connected. Pending sends are not waited for.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.state == StateIdle || c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.gen++
	conn := c.conn
	c.teardownLocked(StateClosed)
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.notifyState(StateClosed)
}

// State reports the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the server-issued session identifier, or "" when no
// session has been established on the current connection.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.id
}

// Transcript returns a copy of the conversation history.
func (c *Client) Transcript() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.transcript()
}

// Negotiated reports whether capability negotiation has resolved on the
// current connection.
func (c *Client) Negotiated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.negotiated
}

// SentChunks returns the number of audio chunks transmitted since the last
// EndAudioStream.
func (c *Client) SentChunks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.sent
}

// PendingChunks returns the number of audio chunks waiting for negotiation
// or socket readiness.
func (c *Client) PendingChunks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue.pending)
}

// SendText appends an optimistic local user turn and transmits a text-input
// message. Transmission is fire-and-forget: a later transport failure does
// not roll the turn back.
func (c *Client) SendText(text string) error {
	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return ErrNotConnected
	}
	turn := c.session.append(AuthorUser, text, OriginTyped)
	err := c.writeJSONLocked(protocol.NewTextInput(text))
	hook := c.hooks.Turn
	c.mu.Unlock()

	if hook != nil {
		hook(turn)
	}
	return err
}

// SendAudioChunk transmits one outbound audio chunk, or queues it when the
// socket is not open or negotiation has not resolved yet. Every chunk passes
// through the queue: chunks held back by negotiation or transport
// backpressure are flushed, in submission order, before anything newer goes
// out. On a flush error the unsent chunks stay pending and are retried by
// the next send.
func (c *Client) SendAudioChunk(chunk []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.queue.enqueue(chunk)
	if c.state != StateOpen || !c.negotiated {
		return nil
	}
	_, err := c.queue.flush(c.sendBinaryLocked)
	return err
}

// EndAudioStream signals that local capture stopped, carrying the number of
// chunks actually transmitted for server-side reconciliation. Chunks still
// pending from an earlier failed flush are sent first; the sent counter
// restarts at zero for the next capture.
func (c *Client) EndAudioStream() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		return ErrNotConnected
	}
	if c.negotiated {
		if _, err := c.queue.flush(c.sendBinaryLocked); err != nil {
			return err
		}
	}
	if err := c.writeJSONLocked(protocol.NewAudioStreamEnd(c.queue.sent)); err != nil {
		return err
	}
	c.queue.sent = 0
	return nil
}

// teardownLocked resets every piece of per-connection state. The transcript
// survives; the session identifier, negotiation flag, reassembly buffer and
// queued chunks do not.
func (c *Client) teardownLocked(next State) {
	c.state = next
	c.conn = nil
	if c.send != nil {
		close(c.send)
		c.send = nil
	}
	c.negotiated = false
	c.queue.reset()
	c.stream = nil
	c.session.clearID()
}

// transportClosed handles a read-loop exit for the connection identified by
// gen. A normal close lands in StateClosed; anything else is a transport
// error and lands in StateFailed, surfaced to the TransportError hook before
// state observers see the reset.
func (c *Client) transportClosed(gen int, err error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.gen++
	conn := c.conn
	next := StateClosed
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		next = StateFailed
	}
	c.teardownLocked(next)
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if next == StateFailed {
		c.logger.Error("Transport error", zap.Error(err))
		if c.hooks.TransportError != nil {
			c.hooks.TransportError(err)
		}
	} else {
		c.logger.Info("Connection closed")
	}
	c.notifyState(next)
}

// readPump pumps frames from the websocket connection into the router.
func (c *Client) readPump(conn *websocket.Conn, gen int) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			c.transportClosed(gen, err)
			return
		}

		switch messageType {
		case websocket.TextMessage:
			c.handleText(gen, message)
		case websocket.BinaryMessage:
			c.handleBinary(gen, message)
		default:
			c.logger.Warn("Received unknown frame type", zap.Int("type", messageType))
		}
	}
}

// writePump serializes all writes to the websocket connection.
func (c *Client) writePump(conn *websocket.Conn, send <-chan writeData) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(message.messageType, message.payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendBinaryLocked(chunk []byte) error {
	return c.writeLocked(websocket.BinaryMessage, chunk)
}

func (c *Client) writeLocked(messageType int, payload []byte) error {
	if c.send == nil {
		return ErrNotConnected
	}
	select {
	case c.send <- writeData{messageType: messageType, payload: payload}:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Client) writeJSONLocked(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return c.writeLocked(websocket.TextMessage, payload)
}

func (c *Client) notifyState(s State) {
	if c.hooks.StateChange != nil {
		c.hooks.StateChange(s)
	}
}

func connectURL(raw, token string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
