package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	app "github.com/mohammadpnp/roster-onboarding/internal/application/onboarding"
)

var ErrSessionNotFound = errors.New("session not found")

type Config struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

type entry struct {
	wizard   *app.Wizard
	lastSeen time.Time
}

// Store keeps wizard sessions in memory. Sessions idle for longer than TTL are dropped.
type Store struct {
	newWizard func() *app.Wizard
	cfg       Config
	log       logrus.FieldLogger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry

	once sync.Once
}

func NewStore(newWizard func() *app.Wizard, cfg Config, log logrus.FieldLogger) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Hour
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Store{
		newWizard: newWizard,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
		sessions:  map[string]*entry{},
	}
}

// Start runs the expiry sweep until ctx is done.
func (s *Store) Start(ctx context.Context) {
	s.once.Do(func() {
		go s.sweepLoop(ctx)
	})
}

func (s *Store) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.log.WithField("expired", n).Info("expired wizard sessions dropped")
			}
		}
	}
}

// Create opens a new session and returns its id.
func (s *Store) Create() (string, *app.Wizard) {
	id := uuid.NewString()
	w := s.newWizard()

	s.mu.Lock()
	s.sessions[id] = &entry{wizard: w, lastSeen: s.now()}
	s.mu.Unlock()

	return id, w
}

// Get returns the session and refreshes its idle timer.
func (s *Store) Get(id string) (*app.Wizard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok || s.now().Sub(e.lastSeen) > s.cfg.TTL {
		return nil, ErrSessionNotFound
	}
	e.lastSeen = s.now()
	return e.wizard, nil
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
}

// Sweep drops expired or closed sessions and returns how many were removed. Wizards are
// queried outside the store lock so a busy session never stalls the others.
func (s *Store) Sweep() int {
	s.mu.Lock()
	now := s.now()
	stale := map[string]*entry{}
	live := map[string]*entry{}
	for id, e := range s.sessions {
		if now.Sub(e.lastSeen) > s.cfg.TTL {
			stale[id] = e
		} else {
			live[id] = e
		}
	}
	s.mu.Unlock()

	for id, e := range live {
		if e.wizard.Closed() {
			stale[id] = e
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range stale {
		if s.sessions[id] == e {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sessions)
}

// SetClock replaces the time source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.now = now
}
