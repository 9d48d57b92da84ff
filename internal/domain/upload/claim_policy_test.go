package upload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClaimPolicy(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		policy, err := NewClaimPolicy(5 * time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 5*time.Minute, policy.Default())
	})

	t.Run("invalid default ttl", func(t *testing.T) {
		policy, err := NewClaimPolicy(0)
		require.ErrorIs(t, err, ErrInvalidDefaultClaimTTL)
		assert.Nil(t, policy)
	})
}

func TestClaimPolicy_Resolve(t *testing.T) {
	policy, err := NewClaimPolicy(5 * time.Minute)
	require.NoError(t, err)

	t.Run("explicit duration uses whole seconds", func(t *testing.T) {
		decision := policy.Resolve(45 * time.Second)
		assert.Equal(t, 45, decision.Seconds)
		assert.Equal(t, ClaimTTLSourceExplicit, decision.Source)
		assert.False(t, decision.Clamped())
	})

	t.Run("default duration when request is zero", func(t *testing.T) {
		decision := policy.Resolve(0)
		assert.Equal(t, 300, decision.Seconds)
		assert.Equal(t, ClaimTTLSourceDefault, decision.Source)
		assert.True(t, decision.UsedDefault())
	})

	t.Run("sub-second duration clamps to minimum", func(t *testing.T) {
		decision := policy.Resolve(500 * time.Millisecond)
		assert.Equal(t, 1, decision.Seconds)
		assert.Equal(t, ClaimTTLSourceClamped, decision.Source)
		assert.True(t, decision.Clamped())
	})

	t.Run("negative duration clamps to minimum", func(t *testing.T) {
		decision := policy.Resolve(-5 * time.Second)
		assert.Equal(t, 1, decision.Seconds)
		assert.Equal(t, ClaimTTLSourceClamped, decision.Source)
		assert.True(t, decision.Clamped())
	})
}
