package accounts_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/mohammadpnp/roster-onboarding/internal/domain/roster"
	"github.com/mohammadpnp/roster-onboarding/internal/infrastructure/accounts"
)

func TestSimulatedAlwaysSucceedsWithZeroFailureRate(t *testing.T) {
	t.Parallel()

	creator := accounts.NewSimulated(accounts.SimulatedConfig{Seed: 3}, nil)
	for i := 0; i < 20; i++ {
		require.NoError(t, creator.Create(context.Background(), domain.Record{ID: "r"}))
	}
}

func TestSimulatedAlwaysFailsWithFullFailureRate(t *testing.T) {
	t.Parallel()

	creator := accounts.NewSimulated(accounts.SimulatedConfig{FailureRate: 1, Seed: 3}, nil)
	err := creator.Create(context.Background(), domain.Record{ID: "r"})
	assert.ErrorIs(t, err, domain.ErrAccountCreationFailed)
}

func TestSimulatedHonoursCancellation(t *testing.T) {
	t.Parallel()

	creator := accounts.NewSimulated(accounts.SimulatedConfig{MinDelay: time.Minute, MaxDelay: time.Minute}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := creator.Create(ctx, domain.Record{ID: "r"})
	assert.ErrorIs(t, err, context.Canceled)
}
