// Package operator runs the reconciliation control loop of a Kubernetes
// style operator.
//
// A Controller watches one primary kind and any number of related kinds
// through informers. Every notification updates the controller's cache of
// work items and enqueues the identity of the affected primary resource:
// events for the primary kind enqueue the resource itself, events for a
// related kind enqueue the owner named by the object's owner references.
// Workers drain the rate-limited queue and call the Reconciler with a copy
// of the primary resource and the related resources it owns.
//
// The queue hands an identity to at most one worker at a time, so a
// Reconciler never runs concurrently for the same resource. Failed attempts
// stay queued with backoff until the Reconciler stops asking for a requeue.
//
// GeneratingReconciler is the default Reconciler: it asks a Generator for
// the desired child objects and applies them with three-way JSON patches,
// recording what it applied in the last-applied-configuration annotation.
package operator
