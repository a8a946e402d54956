package client

import (
	"strings"

	"go.uber.org/zap"

	"github.com/voicewire/voicewire/internal/protocol"
)

// handleText decodes one inbound text frame and dispatches it by variant.
// Malformed frames and unknown type tags are logged and dropped; the server
// is allowed to evolve the protocol without breaking older clients.
func (c *Client) handleText(gen int, data []byte) {
	msg, err := protocol.DecodeServerMessage(data)
	if err != nil {
		c.logger.Warn("Discarding malformed control frame", zap.Error(err))
		return
	}

	var after []func()

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}

	switch m := msg.(type) {
	case protocol.Connected:
		c.session.setID(m.SessionID)
		c.logger.Info("Session established", zap.String("sessionID", m.SessionID))

	case protocol.PreferenceAck:
		c.logger.Info("Audio preferences acknowledged",
			zap.Bool("binarySupported", m.Preferences.BinarySupported),
			zap.Bool("chunkedSupported", m.Preferences.ChunkedSupported),
			zap.Int("maxChunkSize", m.Preferences.MaxChunkSize))
		c.negotiationReadyLocked()

	case protocol.TextResponse:
		turn := c.session.append(AuthorAssistant, m.Text, OriginTyped)
		if hook := c.hooks.Turn; hook != nil {
			after = append(after, func() { hook(turn) })
		}

	case protocol.VoiceTranscript:
		turn := c.session.append(AuthorUser, m.Transcript, OriginVoice)
		if hook := c.hooks.Turn; hook != nil {
			after = append(after, func() { hook(turn) })
		}

	case protocol.StreamStart:
		if c.stream != nil {
			c.logger.Warn("New audio stream started while one was active, discarding buffered chunks",
				zap.Int("buffered", c.stream.received()))
		}
		c.stream = newReassemblyBuffer(m.TotalChunks, m.TotalBytes, m.Format)
		c.logger.Info("Audio stream started",
			zap.Int("totalChunks", m.TotalChunks),
			zap.Int("totalBytes", m.TotalBytes),
			zap.String("format", m.Format))

	case protocol.StreamComplete:
		after = append(after, c.completeStreamLocked(m)...)

	case protocol.ProcessingStatus:
		c.logger.Debug("Processing status", zap.String("status", m.Status))
		if hook := c.hooks.Status; hook != nil {
			status := m.Status
			after = append(after, func() { hook(status) })
		}

	case protocol.ServerError:
		if !c.negotiated && preferenceRejected(m.Message) {
			// Older servers reject the preference announcement outright.
			// Treat that as an implicit acknowledgment and assume binary
			// transfer works.
			c.logger.Warn("Server rejected audio preferences, assuming binary support",
				zap.String("message", m.Message))
			c.negotiationReadyLocked()
		} else {
			c.logger.Warn("Server error", zap.String("message", m.Message))
			if hook := c.hooks.ServerError; hook != nil {
				message := m.Message
				after = append(after, func() { hook(message) })
			}
		}

	case protocol.Unknown:
		c.logger.Warn("Ignoring unknown message type", zap.String("type", string(m.Tag)))
	}
	c.mu.Unlock()

	for _, f := range after {
		f()
	}
}

// handleBinary routes one inbound binary frame to the live reassembly
// buffer. A binary frame outside a stream is dropped.
func (c *Client) handleBinary(gen int, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	if c.stream == nil {
		c.logger.Warn("Received binary chunk but no audio stream is active",
			zap.Int("size", len(data)))
		return
	}
	c.stream.append(data)
	c.logger.Debug("Buffered audio chunk",
		zap.Int("size", len(data)),
		zap.Int("received", c.stream.received()))
}

// completeStreamLocked resolves the live reassembly buffer. Playback runs
// after the lock is released; its result is deferred to the caller.
func (c *Client) completeStreamLocked(m protocol.StreamComplete) []func() {
	buf := c.stream
	c.stream = nil

	if buf == nil {
		c.logger.Warn("Stream complete with no active stream")
		return nil
	}
	if !m.Success || buf.received() == 0 {
		c.logger.Warn("Discarding audio stream",
			zap.Bool("success", m.Success),
			zap.Int("received", buf.received()))
		return nil
	}

	audio := buf.assemble()
	format := buf.format
	c.logger.Info("Audio stream complete",
		zap.Int("chunks", buf.received()),
		zap.Int("bytes", len(audio)),
		zap.String("format", format))

	sink := c.playback
	if sink == nil {
		return nil
	}
	logger := c.logger
	return []func(){func() {
		if err := sink.Play(format, audio); err != nil {
			logger.Error("Playback failed", zap.Error(err))
		}
	}}
}

// announcePreferences sends the capability announcement that starts
// negotiation. Binary sends stay queued until the server acknowledges (or
// rejects, see preferenceRejected) the announcement.
func (c *Client) announcePreferences() {
	c.mu.Lock()
	defer c.mu.Unlock()
	pref := protocol.NewAudioPreference(c.cfg.ChunkSize, c.cfg.Format, c.cfg.SampleRate, c.cfg.Channels)
	if err := c.writeJSONLocked(pref); err != nil {
		c.logger.Error("Failed to send audio preference", zap.Error(err))
	}
}

// negotiationReadyLocked marks negotiation resolved and flushes chunks
// queued while it was pending. Resolving twice is a no-op. A partial flush
// keeps the unsent chunks pending; the next outbound send retries them
// before anything newer.
func (c *Client) negotiationReadyLocked() {
	if c.negotiated {
		return
	}
	c.negotiated = true

	flushed, err := c.queue.flush(c.sendBinaryLocked)
	if err != nil {
		c.logger.Error("Failed to flush queued audio chunks",
			zap.Int("flushed", flushed),
			zap.Error(err))
		return
	}
	if flushed > 0 {
		c.logger.Info("Flushed queued audio chunks", zap.Int("count", flushed))
	}
}

// preferenceRejected reports whether a server error message indicates the
// preference announcement itself is unsupported, as opposed to an
// application-level failure.
func preferenceRejected(message string) bool {
	m := strings.ToLower(message)
	if !strings.Contains(m, string(protocol.MessageTypeAudioPreference)) {
		return false
	}
	return strings.Contains(m, "unknown message type") || strings.Contains(m, "unsupported")
}
