package operator

import (
	"context"
	"errors"
	"fmt"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/giantswarm/kopkit/pkg/names"
)

// ReconcileParameters is the input of one reconcile attempt. Both the
// resource and the related resources are copies owned by the Reconciler.
type ReconcileParameters[T client.Object] struct {
	Resource         T
	RelatedResources map[names.GroupKindNamespacedName]client.Object
}

// ReconcileResult tells the controller whether and when to retry.
type ReconcileResult struct {
	// Requeue re-adds the resource with rate-limited backoff.
	Requeue bool

	// RequeueAfter re-adds the resource after a fixed delay. It takes
	// precedence over Requeue.
	RequeueAfter time.Duration

	// Error is recorded in the resource status. It does not trigger a retry
	// on its own.
	Error error
}

// Reconciler drives one primary resource toward its desired state.
type Reconciler[T client.Object] interface {
	Reconcile(ctx context.Context, params ReconcileParameters[T]) ReconcileResult
}

// ReconcilerFunc adapts a function to the Reconciler interface.
type ReconcilerFunc[T client.Object] func(ctx context.Context, params ReconcileParameters[T]) ReconcileResult

// Reconcile calls f.
func (f ReconcilerFunc[T]) Reconcile(ctx context.Context, params ReconcileParameters[T]) ReconcileResult {
	return f(ctx, params)
}

// GenerateResult is the desired state derived from a primary resource.
type GenerateResult struct {
	// ShouldReconcile is false when the generator chose not to act.
	ShouldReconcile bool
	// Resources are the child objects that should exist.
	Resources []client.Object
}

// Generator produces the desired child objects of a primary resource.
type Generator[T client.Object] interface {
	Generate(ctx context.Context, resource T) (GenerateResult, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc[T client.Object] func(ctx context.Context, resource T) (GenerateResult, error)

// Generate calls f.
func (f GeneratorFunc[T]) Generate(ctx context.Context, resource T) (GenerateResult, error) {
	return f(ctx, resource)
}

// ReconcilerError is a reconcile failure reported by the API server.
type ReconcilerError struct {
	Status metav1.Status
	Err    error
}

func (e *ReconcilerError) Error() string {
	if e.Status.Message != "" {
		return fmt.Sprintf("%s (%s, code %d)", e.Status.Message, e.Status.Reason, e.Status.Code)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Status.Reason)
}

func (e *ReconcilerError) Unwrap() error {
	return e.Err
}

// wrapAPIError attaches the API status of err, when it has one.
func wrapAPIError(err error) error {
	if err == nil {
		return nil
	}
	var status apierrors.APIStatus
	if errors.As(err, &status) {
		return &ReconcilerError{Status: status.Status(), Err: err}
	}
	return err
}
