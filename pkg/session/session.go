// Package session holds the conversation state shared by the intent resolver
// and the orchestrator: the working Turn, iteration accounting, and a token
// estimate used to keep an eye on context growth.
package session

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"

	"github.com/go-go-golems/mangiafuoco/pkg/turns"
)

// Session is one conversation: the append-only Turn plus turn accounting.
// A Session is owned by a single run; no locking is needed.
type Session struct {
	ID         string
	Turn       *turns.Turn
	Iterations int

	codec tokenizer.Codec
}

// New creates a session seeded with the given turn.
func New(seed *turns.Turn) *Session {
	if seed == nil {
		seed = &turns.Turn{}
	}
	if seed.ID == "" {
		seed.ID = uuid.NewString()
	}
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		// Token accounting is advisory; the session still works without it.
		log.Warn().Err(err).Msg("session: tokenizer unavailable, token estimates disabled")
	}
	return &Session{
		ID:    uuid.NewString(),
		Turn:  seed,
		codec: codec,
	}
}

// Advance replaces the working turn with the engine's output and counts the
// iteration. Blocks are append-only, so the new turn strictly extends the old.
func (s *Session) Advance(updated *turns.Turn) {
	if updated != nil {
		s.Turn = updated
	}
	s.Iterations++
}

// AppendBlocks appends blocks to the working turn.
func (s *Session) AppendBlocks(blocks ...turns.Block) {
	turns.AppendBlocks(s.Turn, blocks...)
}

// TokenEstimate returns an approximate token count for the conversation text.
// Used for logging and for noticing runaway context growth; 0 when the
// tokenizer is unavailable.
func (s *Session) TokenEstimate() int {
	if s.codec == nil || s.Turn == nil {
		return 0
	}
	total := 0
	for _, b := range s.Turn.Blocks {
		if text, ok := b.Payload[turns.PayloadKeyText].(string); ok {
			ids, _, err := s.codec.Encode(text)
			if err != nil {
				continue
			}
			total += len(ids)
		}
		if result, ok := b.Payload[turns.PayloadKeyResult].(string); ok {
			ids, _, err := s.codec.Encode(result)
			if err != nil {
				continue
			}
			total += len(ids)
		}
	}
	return total
}
