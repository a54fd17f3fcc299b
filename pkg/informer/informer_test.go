package informer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

type recordedEvent struct {
	event EventType
	name  string
}

// recorder collects notifications for assertions.
type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) handle(event EventType, obj client.Object) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{event: event, name: obj.GetName()})
}

func (r *recorder) snapshot() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedEvent(nil), r.events...)
}

func (r *recorder) has(event EventType, name string) bool {
	for _, e := range r.snapshot() {
		if e.event == event && e.name == name {
			return true
		}
	}
	return false
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "Added", Added.String())
	assert.Equal(t, "Modified", Modified.String())
	assert.Equal(t, "Deleted", Deleted.String())
	assert.Equal(t, "EventType(7)", EventType(7).String())
}

func TestDeliver_RecoversPanics(t *testing.T) {
	obj := &corev1.ConfigMap{ObjectMeta: metav1.ObjectMeta{Name: "a"}}
	gvk := corev1.SchemeGroupVersion.WithKind("ConfigMap")

	assert.NotPanics(t, func() {
		deliver(logSubsystem, gvk, func(EventType, client.Object) { panic("boom") }, Added, obj)
	})

	rec := &recorder{}
	deliver(logSubsystem, gvk, rec.handle, Modified, obj)
	assert.Equal(t, []recordedEvent{{Modified, "a"}}, rec.snapshot())
}
