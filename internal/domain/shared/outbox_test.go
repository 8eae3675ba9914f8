package shared

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOutboxEntry(t *testing.T) {
	transferID := uuid.New()
	entry := NewOutboxEntry(transferID, "payee@example.com", "You received a transfer of 100")

	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.Equal(t, transferID, entry.TransferID)
	assert.Equal(t, OutboxStatusPending, entry.Status)
	assert.Zero(t, entry.Attempts)
	assert.Nil(t, entry.ClaimedAt)
}

func TestOutboxEntry_Claim(t *testing.T) {
	now := time.Now()

	t.Run("claims pending entry", func(t *testing.T) {
		entry := &OutboxEntry{Status: OutboxStatusPending}
		require.NoError(t, entry.Claim(now))
		assert.Equal(t, OutboxStatusInFlight, entry.Status)
		require.NotNil(t, entry.ClaimedAt)
		assert.Equal(t, now, *entry.ClaimedAt)
	})

	t.Run("leaves in-flight entries to Reclaim", func(t *testing.T) {
		old := now.Add(-time.Hour)
		entry := &OutboxEntry{Status: OutboxStatusInFlight, ClaimedAt: &old}
		assert.ErrorIs(t, entry.Claim(now), ErrOutboxInFlight)
		assert.Equal(t, old, *entry.ClaimedAt)
	})

	t.Run("rejects terminal entries", func(t *testing.T) {
		for _, status := range []OutboxStatus{OutboxStatusSent, OutboxStatusFailed} {
			entry := &OutboxEntry{Status: status}
			assert.ErrorIs(t, entry.Claim(now), ErrOutboxTerminal)
			assert.Equal(t, status, entry.Status)
		}
	})
}

func TestOutboxEntry_Reclaim(t *testing.T) {
	now := time.Now()
	old := now.Add(-time.Hour)

	t.Run("counts the interrupted delivery", func(t *testing.T) {
		entry := &OutboxEntry{Status: OutboxStatusInFlight, ClaimedAt: &old, Attempts: 1}
		require.NoError(t, entry.Reclaim(now, 5))

		assert.Equal(t, OutboxStatusInFlight, entry.Status)
		assert.Equal(t, 2, entry.Attempts)
		assert.Equal(t, claimExpiredError, entry.LastError)
		require.NotNil(t, entry.ClaimedAt)
		assert.Equal(t, now, *entry.ClaimedAt)
	})

	t.Run("fails the entry once attempts are exhausted", func(t *testing.T) {
		entry := &OutboxEntry{Status: OutboxStatusInFlight, ClaimedAt: &old, Attempts: 2}
		require.NoError(t, entry.Reclaim(now, 3))

		assert.Equal(t, OutboxStatusFailed, entry.Status)
		assert.Equal(t, 3, entry.Attempts)
		assert.Nil(t, entry.ClaimedAt)
	})

	t.Run("rejects entries that are not in flight", func(t *testing.T) {
		for _, status := range []OutboxStatus{OutboxStatusPending, OutboxStatusSent, OutboxStatusFailed} {
			entry := &OutboxEntry{Status: status}
			assert.ErrorIs(t, entry.Reclaim(now, 5), ErrOutboxNotClaimed)
			assert.Zero(t, entry.Attempts)
		}
	})
}

func TestOutboxEntry_MarkSent(t *testing.T) {
	now := time.Now()

	t.Run("marks claimed entry as sent", func(t *testing.T) {
		entry := &OutboxEntry{Status: OutboxStatusPending, LastError: "HTTP 500"}
		require.NoError(t, entry.Claim(now))
		require.NoError(t, entry.MarkSent(now))

		assert.Equal(t, OutboxStatusSent, entry.Status)
		assert.NotNil(t, entry.SentAt)
		assert.Nil(t, entry.ClaimedAt)
		assert.Empty(t, entry.LastError)
		assert.True(t, entry.IsTerminal())
	})

	t.Run("requires claim", func(t *testing.T) {
		entry := &OutboxEntry{Status: OutboxStatusPending}
		assert.ErrorIs(t, entry.MarkSent(now), ErrOutboxNotClaimed)
		assert.Equal(t, OutboxStatusPending, entry.Status)
	})
}

func TestOutboxEntry_MarkAttemptFailed(t *testing.T) {
	now := time.Now()

	t.Run("returns to pending below max", func(t *testing.T) {
		entry := &OutboxEntry{Status: OutboxStatusInFlight, Attempts: 1}
		require.NoError(t, entry.MarkAttemptFailed("HTTP 503", 5, now))

		assert.Equal(t, OutboxStatusPending, entry.Status)
		assert.Equal(t, 2, entry.Attempts)
		assert.Equal(t, "HTTP 503", entry.LastError)
		assert.Nil(t, entry.ClaimedAt)
	})

	t.Run("demotes to failed exactly at max", func(t *testing.T) {
		entry := &OutboxEntry{Status: OutboxStatusPending}
		for i := 1; i <= 5; i++ {
			require.NoError(t, entry.Claim(now))
			require.NoError(t, entry.MarkAttemptFailed("connection refused", 5, now))
			if i < 5 {
				assert.Equal(t, OutboxStatusPending, entry.Status, "attempt %d", i)
			}
		}
		assert.Equal(t, OutboxStatusFailed, entry.Status)
		assert.Equal(t, 5, entry.Attempts)
		assert.ErrorIs(t, entry.Claim(now), ErrOutboxTerminal)
	})

	t.Run("uses default max when unset", func(t *testing.T) {
		entry := &OutboxEntry{Status: OutboxStatusInFlight, Attempts: DefaultMaxAttempts - 1}
		require.NoError(t, entry.MarkAttemptFailed("timeout", 0, now))
		assert.Equal(t, OutboxStatusFailed, entry.Status)
	})

	t.Run("requires claim", func(t *testing.T) {
		entry := &OutboxEntry{Status: OutboxStatusSent}
		assert.ErrorIs(t, entry.MarkAttemptFailed("x", 5, now), ErrOutboxNotClaimed)
		assert.Zero(t, entry.Attempts)
	})
}
