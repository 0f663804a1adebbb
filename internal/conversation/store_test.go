package conversation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/voxaos/pkg/types"
)

func TestStore_KeepsMostRecent(t *testing.T) {
	const n = 3
	s := NewStore(n)
	assert.Equal(t, 6, s.Capacity())

	total := 2*n + 5
	for i := 0; i < total; i++ {
		role := types.RoleUser
		if i%2 == 1 {
			role = types.RoleAssistant
		}
		s.AddTurn(role, fmt.Sprintf("turn-%d", i))
		assert.LessOrEqual(t, s.Len(), s.Capacity())
	}

	msgs := s.Messages()
	require.Len(t, msgs, 2*n)
	for i, m := range msgs {
		assert.Equal(t, fmt.Sprintf("turn-%d", total-2*n+i), m.Content, "oldest first")
	}
}

func TestStore_DefaultCapacity(t *testing.T) {
	assert.Equal(t, 40, NewStore(0).Capacity())
}

func TestStore_MessagesIsCopy(t *testing.T) {
	s := NewStore(2)
	s.AddTurn(types.RoleUser, "hello")

	msgs := s.Messages()
	msgs[0].Content = "mutated"

	assert.Equal(t, "hello", s.Messages()[0].Content)
}

func TestStore_Clear(t *testing.T) {
	s := NewStore(2)
	s.AddTurn(types.RoleUser, "a")
	s.AddTurn(types.RoleAssistant, "b")
	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Messages())
}

func TestEnvironmentContext(t *testing.T) {
	orig := gpuQuery
	defer func() { gpuQuery = orig }()

	gpuQuery = func(context.Context) (string, error) { return "NVIDIA L40S, 1024, 46068", nil }
	env := EnvironmentContext(context.Background())
	assert.Contains(t, env, "- OS: ")
	assert.Contains(t, env, "- Hostname: ")
	assert.Contains(t, env, "- Working directory: ")
	assert.Contains(t, env, "- GPU: NVIDIA L40S, 1024, 46068")

	gpuQuery = func(context.Context) (string, error) { return "", errors.New("not found") }
	env = EnvironmentContext(context.Background())
	assert.Contains(t, env, "- GPU: not available")
}
