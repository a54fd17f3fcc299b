package operator

import (
	"context"
	"sync"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/giantswarm/kopkit/pkg/informer"
)

var (
	configMapGVK = corev1.SchemeGroupVersion.WithKind("ConfigMap")
	secretGVK    = corev1.SchemeGroupVersion.WithKind("Secret")
)

// fakeInformer delivers events synchronously to its registered handlers.
type fakeInformer struct {
	gvk schema.GroupVersionKind

	mu       sync.Mutex
	handlers map[int]informer.Handler
	nextID   int
	ready    chan struct{}
	once     sync.Once
}

func newFakeInformer(gvk schema.GroupVersionKind, ready bool) *fakeInformer {
	f := &fakeInformer{
		gvk:      gvk,
		handlers: make(map[int]informer.Handler),
		ready:    make(chan struct{}),
	}
	if ready {
		f.markReady()
	}
	return f
}

func (f *fakeInformer) GroupVersionKind() schema.GroupVersionKind {
	return f.gvk
}

func (f *fakeInformer) Register(handler informer.Handler) (informer.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.handlers[id] = handler
	return &fakeRegistration{informer: f, id: id}, nil
}

func (f *fakeInformer) markReady() {
	f.once.Do(func() { close(f.ready) })
}

func (f *fakeInformer) handlerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

func (f *fakeInformer) emit(event informer.EventType, obj client.Object) {
	f.mu.Lock()
	handlers := make([]informer.Handler, 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(event, obj)
	}
}

type fakeRegistration struct {
	informer *fakeInformer
	id       int
}

func (r *fakeRegistration) Ready(ctx context.Context) error {
	select {
	case <-r.informer.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *fakeRegistration) Dispose() error {
	r.informer.mu.Lock()
	defer r.informer.mu.Unlock()
	delete(r.informer.handlers, r.id)
	return nil
}

// recordingReconciler records every call and answers with result, when set.
type recordingReconciler struct {
	mu     sync.Mutex
	calls  []ReconcileParameters[*corev1.ConfigMap]
	result func(ctx context.Context, params ReconcileParameters[*corev1.ConfigMap]) ReconcileResult
}

func (r *recordingReconciler) Reconcile(ctx context.Context, params ReconcileParameters[*corev1.ConfigMap]) ReconcileResult {
	r.mu.Lock()
	r.calls = append(r.calls, params)
	result := r.result
	r.mu.Unlock()

	if result != nil {
		return result(ctx, params)
	}
	return ReconcileResult{}
}

func (r *recordingReconciler) snapshot() []ReconcileParameters[*corev1.ConfigMap] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ReconcileParameters[*corev1.ConfigMap](nil), r.calls...)
}

func newConfigMap(name string) *corev1.ConfigMap {
	return &corev1.ConfigMap{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "ConfigMap"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "default",
			UID:       types.UID("uid-" + name),
		},
		Data: map[string]string{"key": "value"},
	}
}

func ownedSecret(name string, owners ...string) *corev1.Secret {
	secret := &corev1.Secret{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Secret"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "default",
		},
	}
	for _, owner := range owners {
		secret.OwnerReferences = append(secret.OwnerReferences, metav1.OwnerReference{
			APIVersion: "v1",
			Kind:       "ConfigMap",
			Name:       owner,
			UID:        types.UID("uid-" + owner),
		})
	}
	return secret
}
