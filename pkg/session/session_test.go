package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/mangiafuoco/pkg/turns"
)

func TestNewAssignsIDs(t *testing.T) {
	s := New(nil)
	require.NotNil(t, s.Turn)
	assert.NotEmpty(t, s.ID)
	assert.NotEmpty(t, s.Turn.ID)
	assert.Equal(t, 0, s.Iterations)
}

func TestAdvanceCountsIterations(t *testing.T) {
	s := New(&turns.Turn{})
	updated := s.Turn.Clone()
	turns.AppendBlock(updated, turns.NewAssistantTextBlock("hello"))

	s.Advance(updated)
	assert.Equal(t, 1, s.Iterations)
	assert.Same(t, updated, s.Turn)

	// A nil update still counts the iteration but keeps the turn.
	s.Advance(nil)
	assert.Equal(t, 2, s.Iterations)
	assert.Same(t, updated, s.Turn)
}

func TestTokenEstimateGrowsWithConversation(t *testing.T) {
	s := New(&turns.Turn{})
	base := s.TokenEstimate()

	s.AppendBlocks(turns.NewUserTextBlock("build me a playlist from the Social Codes feed"))
	afterUser := s.TokenEstimate()
	assert.Greater(t, afterUser, base)

	s.AppendBlocks(turns.NewToolUseBlock("call-1", `{"bestMatch":"Social Codes"}`))
	assert.Greater(t, s.TokenEstimate(), afterUser)
}
