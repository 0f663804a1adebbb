// Package conversation holds the bounded turn history of one conversation
// and the host facts folded into every system prompt.
package conversation

import (
	"sync"

	"github.com/normanking/voxaos/pkg/types"
)

// DefaultMaxHistory is the number of user/assistant pairs kept.
const DefaultMaxHistory = 20

// Store is an ordered, bounded history of turns. Capacity is 2×maxHistory;
// on overflow the oldest turns are dropped from the front.
type Store struct {
	mu         sync.Mutex
	maxHistory int
	turns      []types.ConversationTurn
}

// NewStore creates a store keeping maxHistory user/assistant pairs.
func NewStore(maxHistory int) *Store {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Store{maxHistory: maxHistory}
}

// Capacity is the maximum number of turns held.
func (s *Store) Capacity() int {
	return s.maxHistory * 2
}

// AddTurn appends a turn, trimming the oldest ones past capacity.
func (s *Store) AddTurn(role types.Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = append(s.turns, types.ConversationTurn{Role: role, Content: content})
	if over := len(s.turns) - s.Capacity(); over > 0 {
		kept := make([]types.ConversationTurn, s.Capacity())
		copy(kept, s.turns[over:])
		s.turns = kept
	}
}

// Messages returns a copy of the history, oldest first.
func (s *Store) Messages() []types.ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.ConversationTurn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Clear drops every turn.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
}
