package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_AllowsUpToBurstThenBlocks(t *testing.T) {
	l := New(3)

	for i := 0; i < 3; i++ {
		allowed, retry := l.Allow("user:1")
		assert.True(t, allowed)
		assert.Equal(t, 0, retry)
	}

	allowed, retry := l.Allow("user:1")
	assert.False(t, allowed)
	assert.Greater(t, retry, 0)
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := New(1)

	allowed, _ := l.Allow("user:1")
	assert.True(t, allowed)

	allowed, _ = l.Allow("user:2")
	assert.True(t, allowed)
}

func TestGate_LargerRetryWins(t *testing.T) {
	g := NewGate(30, 1)

	allowed, _ := g.Check("u1", "1.2.3.4")
	assert.True(t, allowed)

	// Second call from the same IP should be blocked by the tighter IP bucket
	// even though the user bucket still has room.
	allowed, retry := g.Check("u1", "1.2.3.4")
	assert.False(t, allowed)
	assert.Greater(t, retry, 0)
}
