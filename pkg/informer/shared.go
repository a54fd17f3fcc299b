package informer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"k8s.io/apimachinery/pkg/runtime/schema"
	toolscache "k8s.io/client-go/tools/cache"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/giantswarm/kopkit/pkg/logging"
)

const logSubsystem = "Informer"

// SharedInformer is the subset of client-go's SharedInformer, and of
// controller-runtime's cache.Informer, that the adapter needs.
type SharedInformer interface {
	AddEventHandler(handler toolscache.ResourceEventHandler) (toolscache.ResourceEventHandlerRegistration, error)
	RemoveEventHandler(handle toolscache.ResourceEventHandlerRegistration) error
	HasSynced() bool
}

// FromShared adapts a shared informer for kind gvk.
func FromShared(gvk schema.GroupVersionKind, inf SharedInformer) Informer {
	return &sharedInformer{gvk: gvk, inf: inf}
}

type sharedInformer struct {
	gvk schema.GroupVersionKind
	inf SharedInformer
}

func (s *sharedInformer) GroupVersionKind() schema.GroupVersionKind {
	return s.gvk
}

func (s *sharedInformer) Register(handler Handler) (Registration, error) {
	if handler == nil {
		return nil, errors.New("handler must not be nil")
	}

	emit := func(event EventType, obj interface{}) {
		if tombstone, ok := obj.(toolscache.DeletedFinalStateUnknown); ok {
			obj = tombstone.Obj
		}
		o, ok := obj.(client.Object)
		if !ok {
			logging.Warn(logSubsystem, "Ignoring %s notification for %s with unexpected type %T", event, s.gvk.Kind, obj)
			return
		}
		deliver(logSubsystem, s.gvk, handler, event, o)
	}

	reg, err := s.inf.AddEventHandler(toolscache.ResourceEventHandlerFuncs{
		AddFunc:    func(obj interface{}) { emit(Added, obj) },
		UpdateFunc: func(_, obj interface{}) { emit(Modified, obj) },
		DeleteFunc: func(obj interface{}) { emit(Deleted, obj) },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add event handler for %s: %w", s.gvk, err)
	}

	logging.Debug(logSubsystem, "Registered handler for %s", s.gvk)
	return &sharedRegistration{gvk: s.gvk, inf: s.inf, reg: reg}, nil
}

type sharedRegistration struct {
	gvk schema.GroupVersionKind
	inf SharedInformer
	reg toolscache.ResourceEventHandlerRegistration

	once sync.Once
	err  error
}

// Ready waits for the informer's initial listing and, when the informer
// handed out a registration handle, for its delivery to this handler.
func (r *sharedRegistration) Ready(ctx context.Context) error {
	synced := func() bool {
		return r.inf.HasSynced() && (r.reg == nil || r.reg.HasSynced())
	}
	if toolscache.WaitForCacheSync(ctx.Done(), synced) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fmt.Errorf("informer for %s did not sync", r.gvk)
}

func (r *sharedRegistration) Dispose() error {
	r.once.Do(func() {
		r.err = r.inf.RemoveEventHandler(r.reg)
		logging.Debug(logSubsystem, "Disposed handler for %s", r.gvk)
	})
	return r.err
}
