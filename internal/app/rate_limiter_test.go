package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJoinRateLimiter_Window(t *testing.T) {
	req := require.New(t)
	now := time.Unix(1_700_000_000, 0)
	rl := NewJoinRateLimiter(2, 10*time.Second)
	rl.now = func() time.Time { return now }

	req.True(rl.Allow("u1"))
	req.True(rl.Allow("u1"))
	req.False(rl.Allow("u1"))
	req.True(rl.Allow("u2"))

	// Once the window slides past the first attempts, joins are allowed again
	now = now.Add(11 * time.Second)
	req.True(rl.Allow("u1"))
}

func TestJoinRateLimiter_Sweep(t *testing.T) {
	req := require.New(t)
	now := time.Unix(1_700_000_000, 0)
	rl := NewJoinRateLimiter(1, time.Second)
	rl.now = func() time.Time { return now }
	rl.Allow("u1")

	now = now.Add(2 * time.Second)
	rl.Sweep()

	req.Empty(rl.history)
}

func TestPolicyFor(t *testing.T) {
	req := require.New(t)
	req.Equal(DropFrame, PolicyFor("DROP").OnBackPressure(nil))
	req.Equal(KickMember, PolicyFor("kick").OnBackPressure(nil))
	req.Equal(KickMember, PolicyFor("").OnBackPressure(nil))
}
