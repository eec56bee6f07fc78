package onboarding_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/mohammadpnp/roster-onboarding/internal/application/onboarding"
	domain "github.com/mohammadpnp/roster-onboarding/internal/domain/roster"
)

func roster(n int) []domain.Record {
	out := make([]domain.Record, n)
	for i := range out {
		out[i] = domain.Record{
			ID:          fmt.Sprintf("r-%d", i),
			FirstName:   fmt.Sprintf("Kid%d", i),
			LastInitial: "K",
			Password:    "happycat42",
		}
	}
	return out
}

type eventLog struct {
	mu        sync.Mutex
	updates   []domain.ProvisioningStatus
	snapshots []domain.ProvisioningSnapshot
}

func (l *eventLog) observe(update domain.ProvisioningStatus, snap domain.ProvisioningSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.updates = append(l.updates, update)
	l.snapshots = append(l.snapshots, snap)
}

func TestProvisionAllEmitsMonotonicTerminalEvents(t *testing.T) {
	t.Parallel()

	records := roster(5)
	creator := &fakeAccountCreator{failures: map[string]int{"r-1": 5, "r-3": 1}}
	orch := app.NewProvisioningOrchestrator(creator, records, app.ProvisioningConfig{}, nil, nil)

	events := &eventLog{}
	orch.Subscribe(events.observe)

	summary := orch.ProvisionAll(context.Background())

	assert.Equal(t, domain.ProvisioningSummary{CompletedCount: 4, ErrorCount: 1}, summary)
	assert.Equal(t, len(records), summary.CompletedCount+summary.ErrorCount)

	terminal := 0
	progress := 0
	for i, u := range events.updates {
		if u.State.Terminal() {
			terminal++
		}
		done := events.snapshots[i].Summary.CompletedCount + events.snapshots[i].Summary.ErrorCount
		assert.GreaterOrEqual(t, done, progress, "progress went backwards")
		progress = done
	}
	assert.Equal(t, len(records), terminal)

	snap := orch.Snapshot()
	assert.Equal(t, domain.StateCompleted, snap.Batch)
	assert.Equal(t, domain.StateError, snap.Statuses[1].State)
	assert.Equal(t, 2, snap.Statuses[1].Attempts)
	assert.NotEmpty(t, snap.Statuses[1].Reason)
	assert.Equal(t, domain.StateCompleted, snap.Statuses[3].State)
	assert.Equal(t, 2, snap.Statuses[3].Attempts, "one automatic retry")
	assert.Equal(t, 2, creator.callCount("r-1"))
}

func TestProvisionAllProcessesInOrder(t *testing.T) {
	t.Parallel()

	creator := &fakeAccountCreator{}
	orch := app.NewProvisioningOrchestrator(creator, roster(4), app.ProvisioningConfig{}, nil, nil)
	orch.ProvisionAll(context.Background())

	assert.Equal(t, []string{"r-0", "r-1", "r-2", "r-3"}, creator.calls)
}

func TestProvisionAllRunsOnce(t *testing.T) {
	t.Parallel()

	creator := &fakeAccountCreator{}
	orch := app.NewProvisioningOrchestrator(creator, roster(3), app.ProvisioningConfig{}, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			orch.ProvisionAll(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, creator.totalCalls())
	select {
	case <-orch.Done():
	default:
		t.Fatal("expected batch to be finished")
	}
}

func TestRetryFailedLeavesCompletedUntouched(t *testing.T) {
	t.Parallel()

	creator := &fakeAccountCreator{failures: map[string]int{"r-0": 2, "r-2": 2}}
	orch := app.NewProvisioningOrchestrator(creator, roster(3), app.ProvisioningConfig{}, nil, nil)
	orch.ProvisionAll(context.Background())

	before := orch.Snapshot()
	require.Equal(t, domain.ProvisioningSummary{CompletedCount: 1, ErrorCount: 2}, before.Summary)

	summary := orch.RetryFailed(context.Background())

	assert.Equal(t, domain.ProvisioningSummary{CompletedCount: 3, ErrorCount: 0}, summary)
	assert.Equal(t, 1, creator.callCount("r-1"), "completed record must not be re-created")
	assert.Equal(t, before.Statuses[1], orch.Snapshot().Statuses[1])

	// A second pass has nothing left to do.
	calls := creator.totalCalls()
	orch.RetryFailed(context.Background())
	assert.Equal(t, calls, creator.totalCalls())
}

func TestRetryOneMakesSingleAttempt(t *testing.T) {
	t.Parallel()

	creator := &fakeAccountCreator{failures: map[string]int{"r-0": 3}}
	orch := app.NewProvisioningOrchestrator(creator, roster(2), app.ProvisioningConfig{}, nil, nil)
	orch.ProvisionAll(context.Background())
	require.Equal(t, 2, creator.callCount("r-0"))

	st, err := orch.RetryOne(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, domain.StateError, st.State)
	assert.Equal(t, 3, st.Attempts)
	assert.Equal(t, 3, creator.callCount("r-0"))

	st, err = orch.RetryOne(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, st.State)

	_, err = orch.RetryOne(context.Background(), 0)
	assert.True(t, errors.Is(err, app.ErrNotRetryable))

	_, err = orch.RetryOne(context.Background(), 9)
	assert.True(t, errors.Is(err, app.ErrRecordNotFound))
}

func TestExistingAccountsAreNotRecreated(t *testing.T) {
	t.Parallel()

	records := roster(2)
	records[0].IsExisting = true

	creator := &fakeAccountCreator{}
	orch := app.NewProvisioningOrchestrator(creator, records, app.ProvisioningConfig{}, nil, nil)
	summary := orch.ProvisionAll(context.Background())

	assert.Equal(t, domain.ProvisioningSummary{CompletedCount: 2}, summary)
	assert.Zero(t, creator.callCount("r-0"))
}

func TestDetachStopsNotifications(t *testing.T) {
	t.Parallel()

	creator := &fakeAccountCreator{release: make(chan struct{})}
	orch := app.NewProvisioningOrchestrator(creator, roster(2), app.ProvisioningConfig{}, nil, nil)

	events := &eventLog{}
	orch.Subscribe(events.observe)
	orch.Start(context.Background())

	orch.Detach()
	close(creator.release)
	<-orch.Done()

	events.mu.Lock()
	defer events.mu.Unlock()
	for _, u := range events.updates {
		assert.False(t, u.State.Terminal(), "no terminal event after detach")
	}
	assert.Equal(t, 2, orch.Snapshot().Summary.CompletedCount)
}

func TestDetachDuringDeliverySkipsRemainingObservers(t *testing.T) {
	t.Parallel()

	orch := app.NewProvisioningOrchestrator(&fakeAccountCreator{}, roster(1), app.ProvisioningConfig{}, nil, nil)

	var first, second int
	orch.Subscribe(func(domain.ProvisioningStatus, domain.ProvisioningSnapshot) {
		first++
		orch.Detach()
	})
	orch.Subscribe(func(domain.ProvisioningStatus, domain.ProvisioningSnapshot) {
		second++
	})

	orch.ProvisionAll(context.Background())

	assert.Equal(t, 1, first)
	assert.Zero(t, second)
}

func TestBusyCoversRetrySequences(t *testing.T) {
	t.Parallel()

	creator := &fakeAccountCreator{failures: map[string]int{"r-0": 2}}
	orch := app.NewProvisioningOrchestrator(creator, roster(1), app.ProvisioningConfig{}, nil, nil)

	assert.True(t, orch.Busy(), "batch not finished")
	orch.ProvisionAll(context.Background())
	require.False(t, orch.Busy())

	creator.release = make(chan struct{})
	orch.StartRetryFailed(context.Background())
	assert.True(t, orch.Busy())

	close(creator.release)
	require.Eventually(t, func() bool { return !orch.Busy() }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, domain.ProvisioningSummary{CompletedCount: 1}, orch.Snapshot().Summary)
}
