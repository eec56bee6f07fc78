package onboarding

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	domain "github.com/mohammadpnp/roster-onboarding/internal/domain/roster"
)

// StatusObserver receives every status transition together with the snapshot it produced.
type StatusObserver func(update domain.ProvisioningStatus, snapshot domain.ProvisioningSnapshot)

type ProvisioningConfig struct {
	// AutomaticAttempts is the per-record attempt budget of batch runs and RetryFailed.
	AutomaticAttempts int
	// ManualAttempts is the budget of RetryOne.
	ManualAttempts int
}

// ProvisioningOrchestrator creates accounts for one roster revision, one record at a time.
type ProvisioningOrchestrator struct {
	creator domain.AccountCreator
	auto    RetryPolicy
	manual  RetryPolicy
	log     logrus.FieldLogger
	metrics *Metrics

	// work serialises attempt sequences so two creation calls never overlap.
	work sync.Mutex
	once sync.Once
	done chan struct{}

	mu           sync.Mutex
	records      []domain.Record
	statuses     []domain.ProvisioningStatus
	batch        domain.ProvisioningState
	observers    []observer
	nextObserver int
	// retries counts retry sequences that were started and have not returned yet.
	retries int
}

type observer struct {
	id int
	fn StatusObserver
}

func NewProvisioningOrchestrator(creator domain.AccountCreator, records []domain.Record, cfg ProvisioningConfig, log logrus.FieldLogger, metrics *Metrics) *ProvisioningOrchestrator {
	if cfg.AutomaticAttempts <= 0 {
		cfg.AutomaticAttempts = 2
	}
	if cfg.ManualAttempts <= 0 {
		cfg.ManualAttempts = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	records = domain.CloneRecords(records)
	statuses := make([]domain.ProvisioningStatus, len(records))
	for i, r := range records {
		statuses[i] = domain.ProvisioningStatus{RecordID: r.ID, State: domain.StatePending}
	}

	return &ProvisioningOrchestrator{
		creator:  creator,
		auto:     RetryPolicy{MaxAttempts: cfg.AutomaticAttempts},
		manual:   RetryPolicy{MaxAttempts: cfg.ManualAttempts},
		log:      log,
		metrics:  metrics,
		done:     make(chan struct{}),
		records:  records,
		statuses: statuses,
		batch:    domain.StatePending,
	}
}

// Start runs ProvisionAll in the background. Repeated calls do not start another run.
func (o *ProvisioningOrchestrator) Start(ctx context.Context) {
	go o.ProvisionAll(ctx)
}

// ProvisionAll attempts every record in order and returns the aggregate. Only the first call
// runs the batch; later calls wait for it and return the current aggregate.
func (o *ProvisioningOrchestrator) ProvisionAll(ctx context.Context) domain.ProvisioningSummary {
	o.once.Do(func() {
		defer close(o.done)

		o.work.Lock()
		defer o.work.Unlock()

		o.setBatch(domain.StateCreating)
		for i := range o.records {
			o.attempt(ctx, i, o.auto)
		}
		o.setBatch(domain.StateCompleted)
		o.metrics.observeBatch()

		summary := o.Snapshot().Summary
		o.log.WithFields(logrus.Fields{
			"total":     len(o.records),
			"completed": summary.CompletedCount,
			"errors":    summary.ErrorCount,
		}).Info("provisioning batch finished")
	})
	return o.Snapshot().Summary
}

// Done is closed once the initial batch has attempted every record.
func (o *ProvisioningOrchestrator) Done() <-chan struct{} {
	return o.done
}

// Finished reports whether the initial batch is over.
func (o *ProvisioningOrchestrator) Finished() bool {
	select {
	case <-o.done:
		return true
	default:
		return false
	}
}

// Busy reports whether the creator may still be called: the initial batch is running or a
// retry sequence has not returned.
func (o *ProvisioningOrchestrator) Busy() bool {
	if !o.Finished() {
		return true
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	return o.retries > 0
}

// RetryFailed waits for the initial batch, then re-attempts every record currently in error
// state. Completed records are untouched.
func (o *ProvisioningOrchestrator) RetryFailed(ctx context.Context) domain.ProvisioningSummary {
	o.hold()
	defer o.release()

	return o.retryFailed(ctx)
}

// StartRetryFailed runs RetryFailed in the background. Busy is true from the moment it returns.
func (o *ProvisioningOrchestrator) StartRetryFailed(ctx context.Context) {
	o.hold()
	go func() {
		defer o.release()
		o.retryFailed(ctx)
	}()
}

func (o *ProvisioningOrchestrator) retryFailed(ctx context.Context) domain.ProvisioningSummary {
	<-o.done

	o.work.Lock()
	defer o.work.Unlock()

	for _, i := range o.failedIndexes() {
		o.attempt(ctx, i, o.auto)
	}
	return o.Snapshot().Summary
}

// CanRetry reports whether RetryOne would accept index right now.
func (o *ProvisioningOrchestrator) CanRetry(index int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.retryableLocked(index)
}

// RetryOne waits for the initial batch, then makes a single attempt for the record at index,
// which must be in error state.
func (o *ProvisioningOrchestrator) RetryOne(ctx context.Context, index int) (domain.ProvisioningStatus, error) {
	o.hold()
	defer o.release()

	return o.retryOne(ctx, index)
}

// StartRetryOne validates index and runs RetryOne in the background.
func (o *ProvisioningOrchestrator) StartRetryOne(ctx context.Context, index int) error {
	if err := o.CanRetry(index); err != nil {
		return err
	}

	o.hold()
	go func() {
		defer o.release()
		if _, err := o.retryOne(ctx, index); err != nil {
			o.log.WithError(err).WithField("index", index).Debug("manual retry skipped")
		}
	}()
	return nil
}

func (o *ProvisioningOrchestrator) retryOne(ctx context.Context, index int) (domain.ProvisioningStatus, error) {
	<-o.done

	o.work.Lock()
	defer o.work.Unlock()

	if err := o.CanRetry(index); err != nil {
		return domain.ProvisioningStatus{}, err
	}
	return o.attempt(ctx, index, o.manual), nil
}

// Subscribe registers fn for future transitions. The returned func detaches it.
func (o *ProvisioningOrchestrator) Subscribe(fn StatusObserver) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextObserver
	o.nextObserver++
	o.observers = append(o.observers, observer{id: id, fn: fn})

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.observers = slices.DeleteFunc(o.observers, func(ob observer) bool { return ob.id == id })
	}
}

// Detach drops every observer. In-flight creation calls are not interrupted. An observer
// whose call had already begun when Detach was invoked still finishes that call.
func (o *ProvisioningOrchestrator) Detach() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.observers = nil
}

// Snapshot returns a consistent copy of the batch.
func (o *ProvisioningOrchestrator) Snapshot() domain.ProvisioningSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.snapshotLocked()
}

func (o *ProvisioningOrchestrator) attempt(ctx context.Context, index int, policy RetryPolicy) domain.ProvisioningStatus {
	record := o.records[index]
	entry := o.log.WithField("record_id", record.ID)

	if record.IsExisting {
		return o.transition(index, domain.StateCompleted, "", 0)
	}

	o.transition(index, domain.StateCreating, "", 0)
	attempts, err := policy.Do(ctx, func(ctx context.Context) error {
		err := o.creator.Create(ctx, record)
		o.metrics.observeAttempt(err)
		return err
	})
	if err != nil {
		entry.WithError(err).WithField("attempts", attempts).Warn("account creation failed")
		return o.transition(index, domain.StateError, truncateReason(err.Error()), attempts)
	}

	entry.WithField("attempts", attempts).Debug("account created")
	return o.transition(index, domain.StateCompleted, "", attempts)
}

func (o *ProvisioningOrchestrator) transition(index int, state domain.ProvisioningState, reason string, attempts int) domain.ProvisioningStatus {
	o.mu.Lock()
	st := &o.statuses[index]
	st.State = state
	st.Reason = reason
	st.Attempts += attempts
	update := *st
	snapshot := o.snapshotLocked()
	observers := slices.Clone(o.observers)
	o.mu.Unlock()

	for _, ob := range observers {
		if o.subscribed(ob.id) {
			ob.fn(update, snapshot)
		}
	}
	return update
}

func (o *ProvisioningOrchestrator) subscribed(id int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return slices.ContainsFunc(o.observers, func(ob observer) bool { return ob.id == id })
}

func (o *ProvisioningOrchestrator) hold() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.retries++
}

func (o *ProvisioningOrchestrator) release() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.retries--
}

func (o *ProvisioningOrchestrator) setBatch(state domain.ProvisioningState) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.batch = state
}

func (o *ProvisioningOrchestrator) failedIndexes() []int {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out []int
	for i, st := range o.statuses {
		if st.State == domain.StateError {
			out = append(out, i)
		}
	}
	return out
}

func (o *ProvisioningOrchestrator) retryableLocked(index int) error {
	if index < 0 || index >= len(o.statuses) {
		return fmt.Errorf("%w: index %d", ErrRecordNotFound, index)
	}
	if o.statuses[index].State != domain.StateError {
		return ErrNotRetryable
	}
	return nil
}

func (o *ProvisioningOrchestrator) snapshotLocked() domain.ProvisioningSnapshot {
	statuses := make([]domain.ProvisioningStatus, len(o.statuses))
	copy(statuses, o.statuses)

	return domain.ProvisioningSnapshot{
		Batch:    o.batch,
		Records:  domain.CloneRecords(o.records),
		Statuses: statuses,
		Summary:  domain.Summarize(statuses),
		Total:    len(statuses),
	}
}

func truncateReason(reason string) string {
	const maxLen = 1000
	reason = strings.TrimSpace(reason)
	if len(reason) <= maxLen {
		return reason
	}
	return reason[:maxLen]
}
