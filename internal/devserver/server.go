// Package devserver implements the server half of the voicewire streaming
// protocol: a scripted voice backend used by the CLI demo and the end-to-end
// tests. It negotiates audio capabilities, accepts binary audio streams, and
// answers turns with canned text plus a chunked audio response.
package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/voicewire/voicewire/internal/audio"
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

	maxAckChunkSize = 32 * 1024
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Options configures the scripted behavior.
type Options struct {
	// Reply produces the assistant text for a user turn.
	Reply func(text string) string

	// Transcript produces the recognized text for a finished voice stream.
	Transcript func(chunks, bytes int) string

	// ResponseAudio, when non-empty, is streamed back in chunks after every
	// assistant reply.
	ResponseAudio  []byte
	AudioChunkSize int
	AudioFormat    string

	// RejectPreferences answers audio_preference with an error message
	// instead of an acknowledgment, the way servers predating the
	// capability handshake do.
	RejectPreferences bool

	// OnBinaryChunk observes every inbound binary frame, in arrival order.
	OnBinaryChunk func(chunk []byte)
}

func (o *Options) applyDefaults() {
	if o.Reply == nil {
		o.Reply = func(text string) string {
			return fmt.Sprintf("You said: %s", text)
		}
	}
	if o.Transcript == nil {
		o.Transcript = func(chunks, bytes int) string {
			return fmt.Sprintf("voice message (%d chunks, %d bytes)", chunks, bytes)
		}
	}
	if o.AudioChunkSize <= 0 {
		o.AudioChunkSize = 1024
	}
	if o.AudioFormat == "" {
		o.AudioFormat = "mp3"
	}
}

// Server upgrades authenticated requests and speaks the streaming protocol.
type Server struct {
	opts   Options
	logger *zap.Logger
}

// New creates a dev server with the given scripted behavior.
func New(opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.applyDefaults()
	return &Server{opts: opts, logger: logger}
}

// WriteData is one outbound websocket frame.
type WriteData struct {
	// Type is the websocket frame type.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// conn is one connected streaming client.
type conn struct {
	srv       *Server
	ws        *websocket.Conn
	send      chan WriteData
	deviceID  string
	sessionID string
	logger    *zap.Logger

	mu             sync.Mutex
	receivedChunks int
	receivedBytes  int
}

// Handle upgrades an authenticated request and runs the protocol until the
// client disconnects.
func (s *Server) Handle(c echo.Context, deviceID string) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	cn := &conn{
		srv:       s,
		ws:        ws,
		send:      make(chan WriteData, 256),
		deviceID:  deviceID,
		sessionID: uuid.NewString(),
		logger:    s.logger.With(zap.String("deviceID", deviceID)),
	}

	go cn.writePump()

	// Queue the session announcement before the read loop starts so it
	// cannot race the read loop closing the send channel.
	cn.sendJSON(protocol.NewConnected(cn.sessionID))
	go cn.readPump()
	cn.logger.Info("Client connected", zap.String("sessionID", cn.sessionID))
	return nil
}

// readPump pumps messages from the websocket connection into the handlers.
func (c *conn) readPump() {
	defer func() {
		close(c.send)
		c.ws.Close()
		c.logger.Info("Client disconnected", zap.String("sessionID", c.sessionID))
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processBinaryAudioChunk(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the send channel to the websocket
// connection.
func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.ws.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage dispatches one JSON control message from the client.
func (c *conn) processMessage(message []byte) {
	msg, err := protocol.DecodeClientMessage(message)
	if err != nil {
		c.logger.Error("Failed to parse message", zap.Error(err))
		c.sendJSON(protocol.NewServerError("invalid message"))
		return
	}

	switch m := msg.(type) {
	case protocol.AudioPreference:
		c.handleAudioPreference(m)
	case protocol.TextInput:
		c.handleTextInput(m)
	case protocol.AudioStreamEnd:
		c.handleAudioStreamEnd(m)
	case protocol.Unknown:
		c.logger.Warn("Unknown message type", zap.String("type", string(m.Tag)))
		c.sendJSON(protocol.NewServerError(fmt.Sprintf("Unknown message type: %s", m.Tag)))
	}
}

// processBinaryAudioChunk counts one inbound audio chunk toward the current
// capture stream.
func (c *conn) processBinaryAudioChunk(data []byte) {
	c.mu.Lock()
	c.receivedChunks++
	c.receivedBytes += len(data)
	chunks := c.receivedChunks
	c.mu.Unlock()

	c.logger.Debug("Received binary audio chunk",
		zap.Int("size", len(data)),
		zap.Int("totalChunks", chunks))

	if c.srv.opts.OnBinaryChunk != nil {
		c.srv.opts.OnBinaryChunk(append([]byte(nil), data...))
	}
}

func (c *conn) handleAudioPreference(m protocol.AudioPreference) {
	if c.srv.opts.RejectPreferences {
		c.logger.Warn("Rejecting audio preference announcement")
		c.sendJSON(protocol.NewServerError("Unknown message type: audio_preference"))
		return
	}

	maxChunk := m.ChunkSize
	if maxChunk <= 0 || maxChunk > maxAckChunkSize {
		maxChunk = maxAckChunkSize
	}

	c.logger.Info("Acknowledging audio preferences",
		zap.Int("chunkSize", maxChunk),
		zap.String("format", m.Format))
	c.sendJSON(protocol.NewPreferenceAck(protocol.AckPreferences{
		BinarySupported:  true,
		ChunkedSupported: true,
		MaxChunkSize:     maxChunk,
	}))
}

func (c *conn) handleTextInput(m protocol.TextInput) {
	c.logger.Info("Text input", zap.String("text", m.Text))
	c.respond(m.Text)
}

func (c *conn) handleAudioStreamEnd(m protocol.AudioStreamEnd) {
	c.mu.Lock()
	chunks := c.receivedChunks
	bytes := c.receivedBytes
	c.receivedChunks = 0
	c.receivedBytes = 0
	c.mu.Unlock()

	c.logger.Info("Audio stream ended",
		zap.Int("receivedChunks", chunks),
		zap.Int("claimedChunks", m.TotalChunksSent))

	transcript := c.srv.opts.Transcript(chunks, bytes)
	c.sendJSON(protocol.NewVoiceTranscript(transcript))
	c.respond(transcript)
}

// respond produces the scripted assistant reply for one user turn: a
// processing status, the text response, and the chunked audio stream when
// response audio is configured.
func (c *conn) respond(text string) {
	c.sendJSON(protocol.NewProcessingStatus("thinking"))
	c.sendJSON(protocol.NewTextResponse(c.srv.opts.Reply(text)))
	c.streamResponseAudio()
}

// streamResponseAudio sends the configured response audio as a stream-start
// announcement, binary chunks, and a stream-complete signal.
func (c *conn) streamResponseAudio() {
	data := c.srv.opts.ResponseAudio
	if len(data) == 0 {
		return
	}

	chunks := audio.Chunk(data, c.srv.opts.AudioChunkSize)
	c.sendJSON(protocol.NewStreamStart(len(chunks), len(data), c.srv.opts.AudioFormat))
	for _, chunk := range chunks {
		c.send <- WriteData{Type: websocket.BinaryMessage, Payload: chunk}
	}
	c.sendJSON(protocol.NewStreamComplete(true, len(chunks)))

	c.logger.Info("Streamed response audio",
		zap.Int("chunks", len(chunks)),
		zap.Int("bytes", len(data)))
}

func (c *conn) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to encode message", zap.Error(err))
		return
	}
	c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}
}
