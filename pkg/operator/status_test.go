package operator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/kopkit/pkg/names"
)

func TestStatusTracker(t *testing.T) {
	s := newStatusTracker()
	a := names.NamespacedName{Namespace: "b", Name: "a"}
	b := names.NamespacedName{Namespace: "a", Name: "z"}

	_, ok := s.get(a)
	assert.False(t, ok)

	s.pending(a)
	s.update(b, StateError, "boom")
	s.pending(b)

	status, ok := s.get(b)
	require.True(t, ok)
	assert.Equal(t, StateError, status.State, "pending does not override a known state")
	assert.Equal(t, 1, status.RetryCount)

	all := s.all()
	require.Len(t, all, 2)
	assert.Equal(t, b, all[0].Name)
	assert.Equal(t, a, all[1].Name)

	s.update(b, StateReconciling, "")
	status, _ = s.get(b)
	assert.Equal(t, "boom", status.LastError, "last error survives until a sync")

	s.update(b, StateSynced, "")
	status, _ = s.get(b)
	assert.Empty(t, status.LastError)
	assert.Zero(t, status.RetryCount)
	require.NotNil(t, status.LastReconcileTime)
}

func TestStatusTracker_ReturnsCopies(t *testing.T) {
	s := newStatusTracker()
	key := names.NamespacedName{Name: "a"}
	s.pending(key)

	status, _ := s.get(key)
	status.State = StateSynced

	status, _ = s.get(key)
	assert.Equal(t, StatePending, status.State)
}
