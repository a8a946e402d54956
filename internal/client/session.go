package client

import (
	"fmt"
	"time"
)

// Author identifies who produced a transcript turn.
type Author string

const (
	AuthorUser      Author = "user"
	AuthorAssistant Author = "assistant"
)

// Origin records how a turn entered the conversation.
type Origin string

const (
	OriginTyped Origin = "typed"
	OriginVoice Origin = "voice"
)

// Turn is one message in the conversation transcript.
type Turn struct {
	ID        string    `json:"id"`
	Author    Author    `json:"author"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Origin    Origin    `json:"origin"`
}

// sessionState tracks the server-issued session identifier and the linear
// transcript. The identifier is only valid for the connection that produced
// it; teardown clears the identifier but keeps the transcript.
type sessionState struct {
	id    string
	turns []Turn
}

func (s *sessionState) setID(id string) {
	s.id = id
}

func (s *sessionState) clearID() {
	s.id = ""
}

// append adds a turn with a locally generated identifier. Turns are trusted
// to arrive in causal order; there is no deduplication.
func (s *sessionState) append(author Author, text string, origin Origin) Turn {
	now := time.Now()
	turn := Turn{
		ID:        fmt.Sprintf("turn-%d", now.UnixNano()),
		Author:    author,
		Text:      text,
		Timestamp: now,
		Origin:    origin,
	}
	s.turns = append(s.turns, turn)
	return turn
}

func (s *sessionState) transcript() []Turn {
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}
