package operator

import (
	"sort"
	"sync"
	"time"

	"github.com/giantswarm/kopkit/pkg/names"
)

// ReconcileState is the reconcile state of one resource.
type ReconcileState string

const (
	// StatePending means the resource is awaiting reconciliation.
	StatePending ReconcileState = "Pending"

	// StateReconciling means reconciliation is in progress.
	StateReconciling ReconcileState = "Reconciling"

	// StateSynced means the last attempt succeeded.
	StateSynced ReconcileState = "Synced"

	// StateError means the last attempt failed.
	StateError ReconcileState = "Error"
)

// ReconcileStatus describes the reconcile history of one resource.
type ReconcileStatus struct {
	Name names.NamespacedName

	State ReconcileState

	// LastError is the message of the most recent failure.
	LastError string

	// RetryCount counts consecutive failures.
	RetryCount int

	// LastReconcileTime is when the resource was last reconciled successfully.
	LastReconcileTime *time.Time
}

type statusTracker struct {
	mu       sync.RWMutex
	statuses map[names.NamespacedName]*ReconcileStatus
}

func newStatusTracker() *statusTracker {
	return &statusTracker{statuses: make(map[names.NamespacedName]*ReconcileStatus)}
}

// pending records a newly seen resource without overriding an existing state.
func (s *statusTracker) pending(key names.NamespacedName) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.statuses[key]; !ok {
		s.statuses[key] = &ReconcileStatus{Name: key, State: StatePending}
	}
}

func (s *statusTracker) update(key names.NamespacedName, state ReconcileState, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, ok := s.statuses[key]
	if !ok {
		status = &ReconcileStatus{Name: key}
		s.statuses[key] = status
	}

	status.State = state
	switch state {
	case StateSynced:
		now := time.Now()
		status.LastReconcileTime = &now
		status.RetryCount = 0
		status.LastError = ""
	case StateError:
		status.RetryCount++
		status.LastError = errMsg
	}
}

func (s *statusTracker) get(key names.NamespacedName) (ReconcileStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status, ok := s.statuses[key]
	if !ok {
		return ReconcileStatus{}, false
	}
	return *status, true
}

func (s *statusTracker) all() []ReconcileStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ReconcileStatus, 0, len(s.statuses))
	for _, status := range s.statuses {
		out = append(out, *status)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name.Namespace != out[j].Name.Namespace {
			return out[i].Name.Namespace < out[j].Name.Namespace
		}
		return out[i].Name.Name < out[j].Name.Name
	})
	return out
}
