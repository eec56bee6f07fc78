package onboarding_test

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/mohammadpnp/roster-onboarding/internal/domain/roster"
)

type fakeExtractionService struct {
	mu       sync.Mutex
	resp     domain.ServiceResponse
	err      error
	calls    int
	gotTexts []string
	// entered receives a value when a call starts; gate holds the call until closed.
	entered chan struct{}
	gate    chan struct{}
}

func (f *fakeExtractionService) Extract(ctx context.Context, text string) (domain.ServiceResponse, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return domain.ServiceResponse{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.gotTexts = append(f.gotTexts, text)
	if f.err != nil {
		return domain.ServiceResponse{}, f.err
	}
	return f.resp, nil
}

type fakeCredentials struct {
	mu   sync.Mutex
	next int
}

func (f *fakeCredentials) NewID() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.next++
	return fmt.Sprintf("rec-%d", f.next)
}

func (f *fakeCredentials) Password() string {
	return "happycat42"
}

func (f *fakeCredentials) Username(firstName, lastInitial string) string {
	if firstName == "" || lastInitial == "" {
		return ""
	}
	return firstName + lastInitial + "100"
}

func (f *fakeCredentials) LinkingCode() string {
	return "123456"
}

// fakeAccountCreator fails the listed record ids a fixed number of times before succeeding.
type fakeAccountCreator struct {
	mu       sync.Mutex
	failures map[string]int
	calls    []string
	release  chan struct{}

	active    int
	maxActive int
}

func (f *fakeAccountCreator) Create(ctx context.Context, record domain.Record) error {
	f.enter()
	defer f.leave()

	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, record.ID)
	if f.failures[record.ID] > 0 {
		f.failures[record.ID]--
		return domain.ErrAccountCreationFailed
	}
	return nil
}

func (f *fakeAccountCreator) enter() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.active++
	f.maxActive = max(f.maxActive, f.active)
}

func (f *fakeAccountCreator) leave() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.active--
}

// maxConcurrent is the highest number of Create calls that were in flight at once.
func (f *fakeAccountCreator) maxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.maxActive
}

func (f *fakeAccountCreator) callCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.calls {
		if c == id {
			n++
		}
	}
	return n
}

func (f *fakeAccountCreator) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.calls)
}

func students(names ...string) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(names)/2)
	for i := 0; i+1 < len(names); i += 2 {
		out = append(out, domain.Candidate{FirstName: names[i], LastName: names[i+1], Confidence: 1})
	}
	return out
}
