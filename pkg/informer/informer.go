// Package informer delivers watch notifications for one resource kind to
// registered handlers.
//
// An Informer hands out a Registration per handler. The registration reports
// when the initial listing has been delivered (Ready) and stops delivery when
// disposed. Implementations exist for client-go and controller-runtime shared
// informers (FromShared, KubernetesSource) and for a directory of YAML
// manifests (FileInformer).
//
// Handlers are called from the informer's own goroutines. A panicking
// handler is recovered and logged so that other handlers, and other kinds,
// keep receiving events.
package informer

import (
	"context"
	"fmt"
	"runtime/debug"

	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/giantswarm/kopkit/pkg/logging"
)

// EventType is the kind of change a notification describes.
type EventType int

const (
	Added EventType = iota
	Modified
	Deleted
)

func (e EventType) String() string {
	switch e {
	case Added:
		return "Added"
	case Modified:
		return "Modified"
	case Deleted:
		return "Deleted"
	default:
		return fmt.Sprintf("EventType(%d)", int(e))
	}
}

// Handler receives notifications. For Deleted events obj is the last known
// state of the object.
type Handler func(event EventType, obj client.Object)

// Informer watches one resource kind.
type Informer interface {
	// GroupVersionKind identifies the watched kind.
	GroupVersionKind() schema.GroupVersionKind
	// Register starts delivering notifications to handler.
	Register(handler Handler) (Registration, error)
}

// Registration is the handle of one registered handler.
type Registration interface {
	// Ready blocks until the initial listing was delivered to the handler
	// or ctx is done.
	Ready(ctx context.Context) error
	// Dispose stops delivery. It is safe to call more than once.
	Dispose() error
}

// deliver calls handler and recovers a panic raised by it.
func deliver(subsystem string, gvk schema.GroupVersionKind, handler Handler, event EventType, obj client.Object) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error(subsystem, fmt.Errorf("panic: %v", r), "Handler for %s panicked on %s %s/%s\n%s",
				gvk.Kind, event, obj.GetNamespace(), obj.GetName(), debug.Stack())
		}
	}()
	handler(event, obj)
}
