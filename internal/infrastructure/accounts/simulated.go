package accounts

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	domain "github.com/mohammadpnp/roster-onboarding/internal/domain/roster"
)

type SimulatedConfig struct {
	FailureRate float64
	MinDelay    time.Duration
	MaxDelay    time.Duration
	Seed        uint64
}

// Simulated stands in for the identity backend: it waits a random latency and fails a
// configurable share of calls.
type Simulated struct {
	cfg SimulatedConfig
	log logrus.FieldLogger

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSimulated(cfg SimulatedConfig, log logrus.FieldLogger) *Simulated {
	if cfg.FailureRate < 0 {
		cfg.FailureRate = 0
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Simulated{
		cfg: cfg,
		log: log,
		rnd: rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
}

func (s *Simulated) Create(ctx context.Context, record domain.Record) error {
	delay, fail := s.roll()

	if !sleepWithContext(ctx, delay) {
		return ctx.Err()
	}

	if fail {
		s.log.WithField("record_id", record.ID).Debug("simulated account creation failure")
		return domain.ErrAccountCreationFailed
	}
	return nil
}

func (s *Simulated) roll() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delay := s.cfg.MinDelay
	if span := s.cfg.MaxDelay - s.cfg.MinDelay; span > 0 {
		delay += time.Duration(s.rnd.Int64N(int64(span)))
	}
	return delay, s.rnd.Float64() < s.cfg.FailureRate
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

var _ domain.AccountCreator = (*Simulated)(nil)
