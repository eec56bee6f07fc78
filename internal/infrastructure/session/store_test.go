package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/mohammadpnp/roster-onboarding/internal/application/onboarding"
	domain "github.com/mohammadpnp/roster-onboarding/internal/domain/roster"
	"github.com/mohammadpnp/roster-onboarding/internal/infrastructure/session"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newStore(ttl time.Duration) (*session.Store, *clock) {
	c := &clock{now: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)}
	s := session.NewStore(func() *app.Wizard {
		return app.NewWizard(app.WizardDeps{}, app.WizardConfig{})
	}, session.Config{TTL: ttl}, nil)
	s.SetClock(c.Now)
	return s, c
}

func TestStoreCreateAndGet(t *testing.T) {
	t.Parallel()

	s, _ := newStore(time.Hour)
	id, w := s.Create()

	got, err := s.Get(id)
	require.NoError(t, err)
	assert.Same(t, w, got)

	_, err = s.Get("unknown")
	assert.True(t, errors.Is(err, session.ErrSessionNotFound))
}

func TestStoreExpiresIdleSessions(t *testing.T) {
	t.Parallel()

	s, c := newStore(time.Hour)
	idle, _ := s.Create()
	active, _ := s.Create()

	c.Advance(40 * time.Minute)
	_, err := s.Get(active)
	require.NoError(t, err)

	c.Advance(30 * time.Minute)
	_, err = s.Get(idle)
	assert.True(t, errors.Is(err, session.ErrSessionNotFound))

	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, s.Len())
}

func TestStoreSweepsClosedSessions(t *testing.T) {
	t.Parallel()

	s, _ := newStore(time.Hour)
	_, w := s.Create()

	discarded, err := w.RequestClose()
	require.NoError(t, err)
	require.True(t, discarded)

	assert.Equal(t, 1, s.Sweep())
	assert.Zero(t, s.Len())
}

// slowPipeline parks every extraction until release is closed.
type slowPipeline struct {
	entered chan struct{}
	release chan struct{}
}

func (p *slowPipeline) Extract(ctx context.Context, text string) domain.ExtractionResult {
	p.entered <- struct{}{}
	<-p.release
	return domain.ExtractionResult{Source: domain.SourceNone}
}

func TestStoreSweepDoesNotWaitForIngestion(t *testing.T) {
	t.Parallel()

	p := &slowPipeline{entered: make(chan struct{}, 1), release: make(chan struct{})}
	s := session.NewStore(func() *app.Wizard {
		return app.NewWizard(app.WizardDeps{Pipeline: p}, app.WizardConfig{})
	}, session.Config{TTL: time.Hour}, nil)

	busyID, busy := s.Create()
	otherID, _ := s.Create()
	require.NoError(t, busy.SelectAccountType(app.AccountTypeCreateNew))
	require.NoError(t, busy.SetInput("Jane Doe"))

	submitted := make(chan error, 1)
	go func() {
		_, err := busy.SubmitInput(context.Background())
		submitted <- err
	}()
	<-p.entered

	swept := make(chan int, 1)
	go func() { swept <- s.Sweep() }()
	select {
	case n := <-swept:
		assert.Zero(t, n)
	case <-time.After(time.Second):
		close(p.release)
		t.Fatal("sweep waited for an in-flight extraction")
	}

	_, err := s.Get(otherID)
	require.NoError(t, err)
	_, err = s.Get(busyID)
	require.NoError(t, err)

	close(p.release)
	assert.True(t, errors.Is(<-submitted, app.ErrNoRecords))
}
